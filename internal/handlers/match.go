package handlers

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/winefeed/vine/internal/repositories"
	"github.com/winefeed/vine/pkg/matching"
	"github.com/winefeed/vine/pkg/models"
	"github.com/winefeed/vine/pkg/tracing"
)

// MatchHandler handles line submission, match results and review actions.
type MatchHandler struct {
	service    *matching.Service
	lines      repositories.ImportLineRepo
	results    repositories.MatchResultRepo
	violations repositories.ViolationRepo
	validate   *validator.Validate
	logger     ectologger.Logger
}

// NewMatchHandler creates a new match handler
func NewMatchHandler(
	service *matching.Service,
	lines repositories.ImportLineRepo,
	results repositories.MatchResultRepo,
	violations repositories.ViolationRepo,
	logger ectologger.Logger,
) *MatchHandler {
	return &MatchHandler{
		service:    service,
		lines:      lines,
		results:    results,
		violations: violations,
		validate:   validator.New(),
		logger:     logger,
	}
}

// SubmitBatchRequest is the request body for submitting an import.
type SubmitBatchRequest struct {
	ImportID   string                     `json:"import_id" validate:"required"`
	SourceType string                     `json:"source_type"`
	SourceID   string                     `json:"source_id"`
	Lines      []models.CreateLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// Register registers match routes
func (h *MatchHandler) Register(g *echo.Group) {
	g.POST("/imports", h.SubmitBatch)
	g.GET("/imports/:importId/lines", h.ListLines)
	g.GET("/imports/:importId/violations", h.ListImportViolations)
	g.GET("/lines/:id", h.GetLine)
	g.GET("/lines/:id/result", h.GetLatestResult)
	g.GET("/lines/:id/results", h.ListResults)
	g.GET("/lines/:id/violations", h.ListLineViolations)
	g.POST("/lines/:id/confirm", h.Confirm)
	g.POST("/lines/:id/reject", h.Reject)
	g.GET("/results", h.ListByStatus)
}

// SubmitBatch accepts an import's lines and matches them synchronously.
func (h *MatchHandler) SubmitBatch(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "MatchHandler.SubmitBatch")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	var req SubmitBatchRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return BadRequest(err.Error())
	}

	batch, err := h.service.IngestBatch(ctx, tenantID, req.ImportID, req.SourceType, req.SourceID, req.Lines)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"import_id": req.ImportID,
		}).Error("Failed to ingest import batch")
		return err
	}

	h.logger.WithContext(ctx).WithFields(map[string]any{
		"import_id": req.ImportID,
		"total":     batch.TotalLines,
		"failures":  batch.FailureCount,
	}).Info("Import batch matched")

	return CreatedResponse(c, batch)
}

// GetLine returns a single line
func (h *MatchHandler) GetLine(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "MatchHandler.GetLine")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}
	id, err := RequireParam(c, "id")
	if err != nil {
		return err
	}

	line, err := h.lines.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, line)
}

// ListLines returns every line of an import
func (h *MatchHandler) ListLines(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "MatchHandler.ListLines")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}
	importID, err := RequireParam(c, "importId")
	if err != nil {
		return err
	}

	lines, err := h.lines.ListByImport(ctx, tenantID, importID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, models.LineListResponse{
		Items:      lines,
		TotalCount: len(lines),
	})
}

// GetLatestResult returns the current match result for a line
func (h *MatchHandler) GetLatestResult(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "MatchHandler.GetLatestResult")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}
	id, err := RequireParam(c, "id")
	if err != nil {
		return err
	}

	result, err := h.results.GetLatestByLine(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if result == nil {
		return NotFound("line has no match result")
	}

	return SuccessResponse(c, result)
}

// ListResults returns the full decision history for a line
func (h *MatchHandler) ListResults(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "MatchHandler.ListResults")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}
	id, err := RequireParam(c, "id")
	if err != nil {
		return err
	}

	results, err := h.results.ListByLine(ctx, tenantID, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, models.MatchResultListResponse{
		Items:      results,
		TotalCount: len(results),
	})
}

// ListByStatus returns the latest results carrying a given status
func (h *MatchHandler) ListByStatus(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "MatchHandler.ListByStatus")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	status := models.MatchStatus(c.QueryParam("status"))
	if status == "" {
		return BadRequest("status query parameter is required")
	}

	limit := 0
	if err := echo.QueryParamsBinder(c).Int("limit", &limit).BindError(); err != nil {
		return BadRequest("invalid limit")
	}

	results, err := h.results.ListByStatus(ctx, tenantID, status, limit)
	if err != nil {
		return err
	}

	return SuccessResponse(c, models.MatchResultListResponse{
		Items:      results,
		TotalCount: len(results),
	})
}

// ListLineViolations returns the guardrail violations recorded for a line
func (h *MatchHandler) ListLineViolations(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "MatchHandler.ListLineViolations")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}
	id, err := RequireParam(c, "id")
	if err != nil {
		return err
	}

	violations, err := h.violations.ListByLine(ctx, tenantID, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, violations)
}

// ListImportViolations returns the guardrail violations recorded for an import
func (h *MatchHandler) ListImportViolations(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "MatchHandler.ListImportViolations")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}
	importID, err := RequireParam(c, "importId")
	if err != nil {
		return err
	}

	violations, err := h.violations.ListByImport(ctx, tenantID, importID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, violations)
}

// Confirm records a human confirmation for a line's match
func (h *MatchHandler) Confirm(c echo.Context) error {
	return h.review(c, "MatchHandler.Confirm", h.service.Confirm)
}

// Reject records a human rejection for a line's match
func (h *MatchHandler) Reject(c echo.Context) error {
	return h.review(c, "MatchHandler.Reject", h.service.Reject)
}

func (h *MatchHandler) review(c echo.Context, spanName string, action func(ctx context.Context, tenantID, lineID string, req *models.ReviewRequest) (*models.MatchResult, error)) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), spanName)
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}
	id, err := RequireParam(c, "id")
	if err != nil {
		return err
	}

	var req models.ReviewRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}

	result, err := action(ctx, tenantID, id, &req)
	if err != nil {
		return err
	}

	return SuccessResponse(c, result)
}
