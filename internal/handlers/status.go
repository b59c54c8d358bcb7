package handlers

import (
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/winefeed/vine/pkg/health"
	"github.com/winefeed/vine/pkg/tracing"
)

// StatusHandler serves the match-quality report.
type StatusHandler struct {
	reporter *health.Reporter
	logger   ectologger.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(reporter *health.Reporter, logger ectologger.Logger) *StatusHandler {
	return &StatusHandler{
		reporter: reporter,
		logger:   logger,
	}
}

// Register registers status routes
func (h *StatusHandler) Register(g *echo.Group) {
	g.GET("/status", h.GetStatus)
}

// GetStatus returns the rolling-window match quality summary. The payload is
// scanned for commercial terms before it leaves the process.
func (h *StatusHandler) GetStatus(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "StatusHandler.GetStatus")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	report, err := h.reporter.Report(ctx, tenantID)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to build status report")
		return err
	}

	if err := health.VerifyFieldDiscipline(report); err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Status report failed field discipline scan")
		return err
	}

	return SuccessResponse(c, report)
}
