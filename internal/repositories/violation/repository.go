package violation

import (
	"context"
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

// Repository handles guardrail violation persistence. The table is
// append-only; violations are never updated or deleted.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new violation repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const violationColumns = "id, tenant_id, line_id, product_id, type, line_value, product_value, reason, status_at_decision, confidence_at_decision, created_at"

// CreateBatch records the violations found for one line in one decision.
func (r *Repository) CreateBatch(ctx context.Context, violations []models.GuardrailViolation) error {
	ctx, span := tracing.StartSpan(ctx, "violation.Repository.CreateBatch")
	defer span.End()

	if len(violations) == 0 {
		return nil
	}

	now := time.Now().UTC()
	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("guardrail_violations")
	sb.Cols("id", "tenant_id", "line_id", "product_id", "type", "line_value", "product_value", "reason", "status_at_decision", "confidence_at_decision", "created_at")

	for i := range violations {
		v := &violations[i]
		if v.ID == "" {
			v.ID = uuid.New().String()
		}
		v.CreatedAt = now
		sb.Values(v.ID, v.TenantID, v.LineID, v.ProductID, v.Type, v.LineValue, v.ProductValue, v.Reason, v.StatusAtDecision, v.ConfidenceAtDecision, v.CreatedAt)
	}

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create guardrail violations")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create guardrail violations")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"count": len(violations)}).Debug("Recorded guardrail violations")
	return nil
}

// ListByLine retrieves all violations ever recorded for a line, newest first.
func (r *Repository) ListByLine(ctx context.Context, tenantID string, lineID string) ([]models.GuardrailViolation, error) {
	ctx, span := tracing.StartSpan(ctx, "violation.Repository.ListByLine")
	defer span.End()

	query := `
		SELECT ` + violationColumns + `
		FROM guardrail_violations
		WHERE tenant_id = $1
		AND line_id = $2
		ORDER BY created_at DESC
	`

	var violations []models.GuardrailViolation
	if err := r.db.SelectContext(ctx, &violations, query, tenantID, lineID); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list guardrail violations")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list guardrail violations")
	}

	return violations, nil
}

// ListByImport retrieves all violations recorded against lines of one import.
func (r *Repository) ListByImport(ctx context.Context, tenantID string, importID string) ([]models.GuardrailViolation, error) {
	ctx, span := tracing.StartSpan(ctx, "violation.Repository.ListByImport")
	defer span.End()

	query := `
		SELECT v.id, v.tenant_id, v.line_id, v.product_id, v.type, v.line_value, v.product_value, v.reason, v.status_at_decision, v.confidence_at_decision, v.created_at
		FROM guardrail_violations v
		JOIN import_lines l ON l.id = v.line_id
		WHERE v.tenant_id = $1
		AND l.import_id = $2
		ORDER BY l.line_number ASC, v.created_at DESC
	`

	var violations []models.GuardrailViolation
	if err := r.db.SelectContext(ctx, &violations, query, tenantID, importID); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list guardrail violations by import")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list guardrail violations")
	}

	return violations, nil
}

// TypeCount is one violation type tally.
type TypeCount struct {
	Type  models.ViolationType `db:"type"`
	Count int                  `db:"count"`
}

// CountByTypeSince counts violations by type within a window.
func (r *Repository) CountByTypeSince(ctx context.Context, tenantID string, since time.Time) ([]TypeCount, error) {
	ctx, span := tracing.StartSpan(ctx, "violation.Repository.CountByTypeSince")
	defer span.End()

	query := `
		SELECT type, COUNT(*) AS count
		FROM guardrail_violations
		WHERE tenant_id = $1
		AND created_at >= $2
		GROUP BY type
	`

	var counts []TypeCount
	if err := r.db.SelectContext(ctx, &counts, query, tenantID, since); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count guardrail violations by type")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count guardrail violations")
	}

	return counts, nil
}
