package matching

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/winefeed/vine/internal/repositories"
	"github.com/winefeed/vine/pkg/models"
	"github.com/winefeed/vine/pkg/normalizers"
	"github.com/winefeed/vine/pkg/redis"
	"github.com/winefeed/vine/pkg/tracing"
)

// AutoCreateConfig controls the auto-create policy.
type AutoCreateConfig struct {
	Enabled      bool
	WindowDays   int
	MaxPerWindow int64
}

// AutoCreateOutcome describes what the policy did for a line.
type AutoCreateOutcome struct {
	// Product is the catalog product the line now points at. May be an
	// existing product when a concurrent create won the race.
	Product *models.CatalogProduct
	// Created is true when this call inserted the product.
	Created bool
	// CapReached is true when the rolling-window cap blocked the create.
	CapReached bool
	// SkipReasons lists the missing fields when the line's data was
	// insufficient to seed a product.
	SkipReasons []string
}

// Eligible reports whether the policy produced a product for the line.
func (o *AutoCreateOutcome) Eligible() bool {
	return o != nil && o.Product != nil
}

// AutoCreator seeds catalog products from lines that carry a hard identifier
// but match nothing. Creation is idempotent per (producer, name, vintage) and
// capped globally over a rolling window.
type AutoCreator struct {
	products repositories.CatalogProductRepo
	limiter  *redis.RateLimiter
	locker   *redis.Locker
	config   AutoCreateConfig
	logger   ectologger.Logger
}

// NewAutoCreator creates a new AutoCreator. limiter and locker may be nil;
// without a limiter the rolling-window cap falls back to a database count.
func NewAutoCreator(products repositories.CatalogProductRepo, limiter *redis.RateLimiter, locker *redis.Locker, config AutoCreateConfig, logger ectologger.Logger) *AutoCreator {
	if config.WindowDays < 1 {
		config.WindowDays = 7
	}
	return &AutoCreator{
		products: products,
		limiter:  limiter,
		locker:   locker,
		config:   config,
		logger:   logger,
	}
}

const autoCreateRateKey = "autocreate"

// Maybe applies the policy to a line that resolved to nothing. It never
// returns an error for policy outcomes; those are reported on the outcome so
// the caller can pick the right status.
func (a *AutoCreator) Maybe(ctx context.Context, line *models.Line) (*AutoCreateOutcome, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.AutoCreator.Maybe")
	defer span.End()

	outcome := &AutoCreateOutcome{}

	if !a.config.Enabled {
		outcome.SkipReasons = append(outcome.SkipReasons, "auto-create disabled")
		return outcome, nil
	}
	if !line.HasHardIdentifier() {
		outcome.SkipReasons = append(outcome.SkipReasons, "no hard identifier")
		return outcome, nil
	}
	if missing := missingSeedFields(line); len(missing) > 0 {
		outcome.SkipReasons = missing
		return outcome, nil
	}

	allowed, err := a.allowCreate(ctx, line)
	if err != nil {
		return nil, err
	}
	if !allowed {
		outcome.CapReached = true
		a.logger.WithContext(ctx).WithFields(map[string]any{
			"line_id":     line.ID,
			"window_days": a.config.WindowDays,
			"cap":         a.config.MaxPerWindow,
		}).Warn("auto-create cap reached, routing line to review")
		return outcome, nil
	}

	create := func() error {
		product, created, err := a.products.InsertIfAbsent(ctx, line.TenantID, seedProduct(line))
		if err != nil {
			return err
		}
		outcome.Product = product
		outcome.Created = created
		return nil
	}

	if a.locker != nil {
		lockKey := fmt.Sprintf("autocreate:%s:%s", line.TenantID, seedKey(line))
		err = a.locker.WithLock(ctx, lockKey, 10*time.Second, func() error {
			return create()
		})
		if errors.Is(err, redis.ErrLockNotAcquired) {
			// the holder is creating the same product; the idempotent
			// insert makes a plain retry safe
			err = create()
		}
	} else {
		err = create()
	}
	if err != nil {
		return nil, err
	}

	if outcome.Created {
		a.logger.WithContext(ctx).WithFields(map[string]any{
			"line_id":    line.ID,
			"product_id": outcome.Product.ID,
		}).Info("auto-created catalog product")
	}

	return outcome, nil
}

// allowCreate consumes one slot from the rolling-window cap. Falls back to a
// database count when no limiter is configured.
func (a *AutoCreator) allowCreate(ctx context.Context, line *models.Line) (bool, error) {
	window := time.Duration(a.config.WindowDays) * 24 * time.Hour

	if a.limiter != nil {
		result, err := a.limiter.Allow(ctx, autoCreateRateKey, a.config.MaxPerWindow, window)
		if err != nil {
			a.logger.WithContext(ctx).WithError(err).Warn("rate limiter unavailable, falling back to database count")
		} else {
			return result.Allowed, nil
		}
	}

	count, err := a.products.CountAutoCreatedSince(ctx, line.TenantID, time.Now().UTC().Add(-window))
	if err != nil {
		return false, err
	}
	return int64(count) < a.config.MaxPerWindow, nil
}

// missingSeedFields lists what the line lacks to seed a product. A nil
// vintage is a valid non-vintage declaration, not a gap.
func missingSeedFields(line *models.Line) []string {
	var missing []string
	if strings.TrimSpace(line.Name) == "" {
		missing = append(missing, "missing name")
	}
	if line.VolumeML == nil {
		missing = append(missing, "missing volume")
	}
	if strings.TrimSpace(line.Country) == "" {
		missing = append(missing, "missing country")
	}
	return missing
}

func seedKey(line *models.Line) string {
	return normalizers.Canonical(line.Producer, line.Name, line.Vintage, nil)
}

func seedProduct(line *models.Line) *models.CreateCatalogProductRequest {
	return &models.CreateCatalogProductRequest{
		GTIN:         line.GTIN,
		LWIN:         line.LWIN,
		ProducerSKU:  line.ProducerSKU,
		IssuerID:     line.IssuerID,
		Name:         line.Name,
		Producer:     line.Producer,
		Vintage:      line.Vintage,
		Country:      line.Country,
		Region:       line.Region,
		VolumeML:     line.VolumeML,
		PackType:     line.PackType,
		UnitsPerCase: line.UnitsPerCase,
		ABVPercent:   line.ABVPercent,
		AutoCreated:  true,
	}
}
