package matchresult

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/winefeed/vine/pkg/database"
	"github.com/winefeed/vine/pkg/models"
	"github.com/winefeed/vine/pkg/tracing"
)

// Repository handles match result persistence. Results are append-only: the
// only update ever issued is flipping is_latest off the previous row.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new match result repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const resultColumns = "id, tenant_id, line_id, status, method, confidence, matched_product_id, explanation, candidates, risk_flags, is_latest, created_at"

type resultRow struct {
	ID               string                             `db:"id"`
	TenantID         string                             `db:"tenant_id"`
	LineID           string                             `db:"line_id"`
	Status           models.MatchStatus                 `db:"status"`
	Method           models.MatchMethod                 `db:"method"`
	Confidence       float64                            `db:"confidence"`
	MatchedProductID *string                            `db:"matched_product_id"`
	Explanation      string                             `db:"explanation"`
	Candidates       database.JSONB[[]models.Candidate] `db:"candidates"`
	RiskFlags        database.JSONB[[]models.RiskFlag]  `db:"risk_flags"`
	IsLatest         bool                               `db:"is_latest"`
	CreatedAt        time.Time                          `db:"created_at"`
}

func (row *resultRow) toModel() models.MatchResult {
	return models.MatchResult{
		ID:               row.ID,
		TenantID:         row.TenantID,
		LineID:           row.LineID,
		Status:           row.Status,
		Method:           row.Method,
		Confidence:       row.Confidence,
		MatchedProductID: row.MatchedProductID,
		Explanation:      row.Explanation,
		Candidates:       row.Candidates.GetValue(),
		RiskFlags:        row.RiskFlags.GetValue(),
		IsLatest:         row.IsLatest,
		CreatedAt:        row.CreatedAt,
	}
}

// Append writes a new result for a line and flips is_latest off the previous
// one in the same transaction.
func (r *Repository) Append(ctx context.Context, result *models.MatchResult) (*models.MatchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "matchresult.Repository.Append")
	defer span.End()

	if result.ID == "" {
		result.ID = uuid.New().String()
	}
	result.IsLatest = true
	result.CreatedAt = time.Now().UTC()

	txCtx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	demote := `
		UPDATE match_results
		SET is_latest = FALSE
		WHERE tenant_id = $1
		AND line_id = $2
		AND is_latest = TRUE
	`
	if _, err := tx.ExecContext(txCtx, demote, result.TenantID, result.LineID); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to demote previous match result")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to append match result")
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("match_results")
	sb.Cols("id", "tenant_id", "line_id", "status", "method", "confidence", "matched_product_id", "explanation", "candidates", "risk_flags", "is_latest", "created_at")
	sb.Values(
		result.ID, result.TenantID, result.LineID, result.Status, result.Method, result.Confidence,
		result.MatchedProductID, result.Explanation,
		database.JSONB[[]models.Candidate]{Data: result.Candidates},
		database.JSONB[[]models.RiskFlag]{Data: result.RiskFlags},
		result.IsLatest, result.CreatedAt,
	)

	query, args := sb.Build()
	if _, err := tx.ExecContext(txCtx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"line_id": result.LineID}).Error("Failed to insert match result")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to append match result")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to append match result")
	}

	return result, nil
}

// GetLatestByLine retrieves the current result for a line. Returns nil when
// the line has never been matched.
func (r *Repository) GetLatestByLine(ctx context.Context, tenantID string, lineID string) (*models.MatchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "matchresult.Repository.GetLatestByLine")
	defer span.End()

	query := `
		SELECT ` + resultColumns + `
		FROM match_results
		WHERE tenant_id = $1
		AND line_id = $2
		AND is_latest = TRUE
		LIMIT 1
	`

	var row resultRow
	if err := r.db.GetContext(ctx, &row, query, tenantID, lineID); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get latest match result")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get latest match result")
	}

	result := row.toModel()
	return &result, nil
}

// ListByLine retrieves the full decision history of a line, newest first.
func (r *Repository) ListByLine(ctx context.Context, tenantID string, lineID string) ([]models.MatchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "matchresult.Repository.ListByLine")
	defer span.End()

	query := `
		SELECT ` + resultColumns + `
		FROM match_results
		WHERE tenant_id = $1
		AND line_id = $2
		ORDER BY created_at DESC
	`

	var rows []resultRow
	if err := r.db.SelectContext(ctx, &rows, query, tenantID, lineID); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list match results")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list match results")
	}

	results := make([]models.MatchResult, 0, len(rows))
	for i := range rows {
		results = append(results, rows[i].toModel())
	}
	return results, nil
}

// ListByStatus retrieves the latest results currently in a status, for review
// queues.
func (r *Repository) ListByStatus(ctx context.Context, tenantID string, status models.MatchStatus, limit int) ([]models.MatchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "matchresult.Repository.ListByStatus")
	defer span.End()

	if limit < 1 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT ` + resultColumns + `
		FROM match_results
		WHERE tenant_id = $1
		AND status = $2
		AND is_latest = TRUE
		ORDER BY created_at DESC
		LIMIT $3
	`

	var rows []resultRow
	if err := r.db.SelectContext(ctx, &rows, query, tenantID, status, limit); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list match results by status")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list match results")
	}

	results := make([]models.MatchResult, 0, len(rows))
	for i := range rows {
		results = append(results, rows[i].toModel())
	}
	return results, nil
}

// ListRecent retrieves the latest results created after a cutoff, newest
// first.
func (r *Repository) ListRecent(ctx context.Context, tenantID string, since time.Time, limit int) ([]models.MatchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "matchresult.Repository.ListRecent")
	defer span.End()

	if limit < 1 || limit > 500 {
		limit = 50
	}

	query := `
		SELECT ` + resultColumns + `
		FROM match_results
		WHERE tenant_id = $1
		AND is_latest = TRUE
		AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT $3
	`

	var rows []resultRow
	if err := r.db.SelectContext(ctx, &rows, query, tenantID, since, limit); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list recent match results")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list recent match results")
	}

	results := make([]models.MatchResult, 0, len(rows))
	for i := range rows {
		results = append(results, rows[i].toModel())
	}
	return results, nil
}

// StatusCount aggregates latest results by status within a window.
type StatusCount struct {
	Status        models.MatchStatus `db:"status"`
	Count         int                `db:"count"`
	AvgConfidence float64            `db:"avg_confidence"`
}

// CountByStatusSince aggregates the latest results created after a cutoff.
func (r *Repository) CountByStatusSince(ctx context.Context, tenantID string, since time.Time) ([]StatusCount, error) {
	ctx, span := tracing.StartSpan(ctx, "matchresult.Repository.CountByStatusSince")
	defer span.End()

	query := `
		SELECT status, COUNT(*) AS count, COALESCE(AVG(confidence), 0) AS avg_confidence
		FROM match_results
		WHERE tenant_id = $1
		AND is_latest = TRUE
		AND created_at >= $2
		GROUP BY status
	`

	var counts []StatusCount
	if err := r.db.SelectContext(ctx, &counts, query, tenantID, since); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count match results by status")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count match results")
	}

	return counts, nil
}

// Get retrieves a result by ID
func (r *Repository) Get(ctx context.Context, tenantID string, id string) (*models.MatchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "matchresult.Repository.Get")
	defer span.End()

	query := `
		SELECT ` + resultColumns + `
		FROM match_results
		WHERE tenant_id = $1
		AND id = $2
		LIMIT 1
	`

	var row resultRow
	if err := r.db.GetContext(ctx, &row, query, tenantID, id); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("match result %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get match result")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get match result")
	}

	result := row.toModel()
	return &result, nil
}
