package matching

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/winefeed/vine/internal/repositories"
	"github.com/winefeed/vine/pkg/events"
	"github.com/winefeed/vine/pkg/metrics"
	"github.com/winefeed/vine/pkg/models"
	"github.com/winefeed/vine/pkg/tracing"
)

// ServiceConfig controls the matching service.
type ServiceConfig struct {
	// WorkerCount bounds concurrent line matching within a batch.
	WorkerCount int
}

// BatchResult summarizes a batch match run.
type BatchResult struct {
	Results      []*models.MatchResult
	TotalLines   int
	SuccessCount int
	FailureCount int
}

// Service runs the per-line matching pipeline: identifier resolution,
// canonical text matching, guardrail validation, the decision, and the
// auto-create policy, then persists the outcome.
type Service struct {
	lines      repositories.ImportLineRepo
	results    repositories.MatchResultRepo
	violations repositories.ViolationRepo

	resolver    *Resolver
	matcher     *Matcher
	guardrails  *GuardrailValidator
	decider     *Decider
	autoCreator *AutoCreator
	emitter     *events.Emitter

	config ServiceConfig
	logger ectologger.Logger
}

// NewService creates a new matching service.
func NewService(
	lines repositories.ImportLineRepo,
	results repositories.MatchResultRepo,
	violations repositories.ViolationRepo,
	resolver *Resolver,
	matcher *Matcher,
	guardrails *GuardrailValidator,
	decider *Decider,
	autoCreator *AutoCreator,
	emitter *events.Emitter,
	config ServiceConfig,
	logger ectologger.Logger,
) *Service {
	if config.WorkerCount < 1 {
		config.WorkerCount = 4
	}
	return &Service{
		lines:       lines,
		results:     results,
		violations:  violations,
		resolver:    resolver,
		matcher:     matcher,
		guardrails:  guardrails,
		decider:     decider,
		autoCreator: autoCreator,
		emitter:     emitter,
		config:      config,
		logger:      logger,
	}
}

// IngestBatch stores the submitted lines and matches them. Used by both the
// HTTP surface and the Kafka consumer. Line storage is idempotent per
// (tenant, import, line number) so a redelivered batch does not duplicate.
func (s *Service) IngestBatch(ctx context.Context, tenantID, importID, sourceType, sourceID string, reqs []models.CreateLineRequest) (*BatchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Service.IngestBatch")
	defer span.End()

	now := time.Now().UTC()
	lines := make([]*models.Line, 0, len(reqs))
	for i := range reqs {
		req := &reqs[i]
		if req.ImportID == "" {
			req.ImportID = importID
		}
		if req.SourceType == "" {
			req.SourceType = sourceType
		}
		if req.SourceID == "" {
			req.SourceID = sourceID
		}
		lines = append(lines, &models.Line{
			ID:           uuid.New().String(),
			TenantID:     tenantID,
			ImportID:     req.ImportID,
			LineNumber:   req.LineNumber,
			GTIN:         req.GTIN,
			LWIN:         req.LWIN,
			ProducerSKU:  req.ProducerSKU,
			IssuerID:     req.IssuerID,
			Name:         req.Name,
			Producer:     req.Producer,
			Vintage:      req.Vintage,
			Country:      req.Country,
			Region:       req.Region,
			VolumeML:     req.VolumeML,
			PackType:     req.PackType,
			UnitsPerCase: req.UnitsPerCase,
			ABVPercent:   req.ABVPercent,
			SourceType:   req.SourceType,
			SourceID:     req.SourceID,
			CreatedAt:    now,
		})
	}

	if err := s.lines.CreateBatch(ctx, lines); err != nil {
		return nil, err
	}

	// re-read so redelivered lines resolve to their stored identity
	stored, err := s.lines.ListByImport(ctx, tenantID, importID)
	if err != nil {
		return nil, err
	}
	byNumber := make(map[int]*models.Line, len(stored))
	for i := range stored {
		byNumber[stored[i].LineNumber] = &stored[i]
	}
	for i, line := range lines {
		if existing, ok := byNumber[line.LineNumber]; ok {
			lines[i] = existing
		}
	}

	return s.MatchBatch(ctx, lines)
}

// MatchBatch matches lines concurrently with a bounded worker pool. A failure
// on one line never stops the others.
func (s *Service) MatchBatch(ctx context.Context, lines []*models.Line) (*BatchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Service.MatchBatch")
	defer span.End()

	batch := &BatchResult{
		Results:    make([]*models.MatchResult, len(lines)),
		TotalLines: len(lines),
	}
	if len(lines) == 0 {
		return batch, nil
	}

	workers := s.config.WorkerCount
	if workers > len(lines) {
		workers = len(lines)
	}

	type indexedLine struct {
		index int
		line  *models.Line
	}
	type indexedResult struct {
		index  int
		result *models.MatchResult
		err    error
	}

	lineChan := make(chan indexedLine, len(lines))
	resultChan := make(chan indexedResult, len(lines))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range lineChan {
				result, err := s.MatchLine(ctx, item.line)
				resultChan <- indexedResult{index: item.index, result: result, err: err}
			}
		}()
	}

	for i, line := range lines {
		lineChan <- indexedLine{index: i, line: line}
	}
	close(lineChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	for res := range resultChan {
		batch.Results[res.index] = res.result
		if res.err != nil {
			batch.FailureCount++
		} else {
			batch.SuccessCount++
		}
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"total":    batch.TotalLines,
		"success":  batch.SuccessCount,
		"failures": batch.FailureCount,
	}).Info("Batch match completed")

	return batch, nil
}

// MatchLine runs the full pipeline for one line and persists the outcome. A
// pipeline failure degrades to a persisted PENDING_REVIEW result so the line
// is never silently lost; the original error is still returned.
func (s *Service) MatchLine(ctx context.Context, line *models.Line) (*models.MatchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Service.MatchLine")
	defer span.End()

	metrics.LinesInFlight.Inc()
	defer metrics.LinesInFlight.Dec()
	start := time.Now()

	result, err := s.matchLine(ctx, line)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"line_id": line.ID,
		}).Error("Match pipeline failed, holding line for review")

		fallback := &models.MatchResult{
			TenantID:    line.TenantID,
			LineID:      line.ID,
			Status:      models.MatchStatusPendingReview,
			Method:      models.MatchMethodNoMatch,
			Explanation: fmt.Sprintf("matching failed and needs manual attention: %s", err),
		}
		if persisted, persistErr := s.results.Append(ctx, fallback); persistErr == nil {
			return persisted, err
		}
		return nil, err
	}

	metrics.RecordDecision(line.TenantID, string(result.Status), string(result.Method), result.Confidence, time.Since(start).Seconds())
	for _, flag := range result.RiskFlags {
		metrics.RecordRiskFlag(line.TenantID, string(flag.Type))
	}

	if emitErr := s.emitter.EmitLineMatched(ctx, line, result); emitErr != nil {
		// the decision is already durable; event delivery is best effort
		s.logger.WithContext(ctx).WithError(emitErr).Warn("Match event emission failed")
	}

	return result, nil
}

func (s *Service) matchLine(ctx context.Context, line *models.Line) (*models.MatchResult, error) {
	input := DecisionInput{Line: line}

	resolution, err := s.resolver.Resolve(ctx, line)
	if err != nil {
		return nil, err
	}
	input.Resolution = resolution

	if resolution == nil {
		textMatch, err := s.matcher.Match(ctx, line)
		if err != nil {
			return nil, err
		}
		input.TextMatch = textMatch

		if textMatch.Best() == nil && line.HasHardIdentifier() {
			outcome, err := s.autoCreator.Maybe(ctx, line)
			if err != nil {
				return nil, err
			}
			input.AutoCreate = outcome
			s.recordAutoCreate(line.TenantID, outcome)

			if outcome.Created {
				if emitErr := s.emitter.EmitProductAutoCreated(ctx, line, outcome.Product); emitErr != nil {
					s.logger.WithContext(ctx).WithError(emitErr).Warn("Auto-create event emission failed")
				}
			}
		}
	}

	if product := input.matchedProduct(); product != nil {
		input.Violations = s.guardrails.Validate(line, product)
	}

	result := s.decider.Decide(input)

	persisted, err := s.results.Append(ctx, result)
	if err != nil {
		return nil, err
	}

	if len(input.Violations) > 0 {
		for i := range input.Violations {
			input.Violations[i].StatusAtDecision = persisted.Status
			input.Violations[i].ConfidenceAtDecision = persisted.Confidence
			metrics.RecordViolation(line.TenantID, string(input.Violations[i].Type))
		}
		if err := s.violations.CreateBatch(ctx, input.Violations); err != nil {
			return nil, err
		}
	}

	return persisted, nil
}

func (s *Service) recordAutoCreate(tenantID string, outcome *AutoCreateOutcome) {
	switch {
	case outcome == nil:
	case outcome.Created:
		metrics.RecordAutoCreate(tenantID, "created")
	case outcome.CapReached:
		metrics.RecordAutoCreate(tenantID, "cap_reached")
	case outcome.Product != nil:
		metrics.RecordAutoCreate(tenantID, "existing")
	default:
		metrics.RecordAutoCreate(tenantID, "skipped")
	}
}

// Confirm records a human confirmation for a line. The product defaults to
// the one on the latest result when the request names none.
func (s *Service) Confirm(ctx context.Context, tenantID, lineID string, req *models.ReviewRequest) (*models.MatchResult, error) {
	return s.review(ctx, tenantID, lineID, req, models.MatchStatusConfirmed)
}

// Reject records a human rejection for a line.
func (s *Service) Reject(ctx context.Context, tenantID, lineID string, req *models.ReviewRequest) (*models.MatchResult, error) {
	return s.review(ctx, tenantID, lineID, req, models.MatchStatusRejected)
}

func (s *Service) review(ctx context.Context, tenantID, lineID string, req *models.ReviewRequest, status models.MatchStatus) (*models.MatchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Service.review")
	defer span.End()

	line, err := s.lines.Get(ctx, tenantID, lineID)
	if err != nil {
		return nil, err
	}

	latest, err := s.results.GetLatestByLine(ctx, tenantID, lineID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "line has no match result to review")
	}
	if latest.Status.IsTerminal() {
		return nil, httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf("line already reviewed with status %s", latest.Status))
	}

	productID := latest.MatchedProductID
	if req != nil && req.ProductID != nil {
		productID = req.ProductID
	}
	if status == models.MatchStatusConfirmed && productID == nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "confirmation requires a product id")
	}

	result := &models.MatchResult{
		TenantID:         tenantID,
		LineID:           lineID,
		Status:           status,
		Method:           models.MatchMethodManual,
		Confidence:       latest.Confidence,
		MatchedProductID: productID,
		Explanation:      reviewExplanation(status, req),
	}
	if status == models.MatchStatusRejected {
		result.MatchedProductID = nil
	}

	persisted, err := s.results.Append(ctx, result)
	if err != nil {
		return nil, err
	}

	if emitErr := s.emitter.EmitLineReviewed(ctx, line, persisted); emitErr != nil {
		s.logger.WithContext(ctx).WithError(emitErr).Warn("Review event emission failed")
	}

	return persisted, nil
}

func reviewExplanation(status models.MatchStatus, req *models.ReviewRequest) string {
	verb := "confirmed"
	if status == models.MatchStatusRejected {
		verb = "rejected"
	}
	if req != nil && req.Note != "" {
		return fmt.Sprintf("manually %s: %s", verb, req.Note)
	}
	return fmt.Sprintf("manually %s", verb)
}
