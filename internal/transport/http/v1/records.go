package v1

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Pythonista7/context-tracker-backend/internal/domain"
)

// ListRecords lists a session's context records in sequence order.
// GET /v1/sessions/:session_id/records?status=
func (h *Handler) ListRecords(c echo.Context) error {
	var filter domain.RecordFilter
	if raw := c.QueryParam("status"); raw != "" {
		status, ok := domain.ParseAnalysisStatus(raw)
		if !ok {
			return badRequest(c, "unknown status "+raw)
		}
		filter.Status = status
	}

	records, err := h.service.ListRecords(c.Request().Context(), c.Param("session_id"), filter)
	if err != nil {
		return errorJSON(c, err)
	}
	if records == nil {
		records = []domain.ContextRecord{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"records": records,
	})
}

// GetSessionEvents retrieves events for a session.
// GET /v1/sessions/:session_id/events?after_ts=&types=&limit=
func (h *Handler) GetSessionEvents(c echo.Context) error {
	limit := 100
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil {
			limit = val
		}
	}
	afterTs := int64(0)
	if t := c.QueryParam("after_ts"); t != "" {
		if val, err := strconv.ParseInt(t, 10, 64); err == nil {
			afterTs = val
		}
	}
	var types []string
	if raw := c.QueryParam("types"); raw != "" {
		types = strings.Split(raw, ",")
	}

	events, err := h.service.GetSessionEvents(c.Request().Context(), c.Param("session_id"), afterTs, types, limit)
	if err != nil {
		return errorJSON(c, err)
	}
	if events == nil {
		events = []domain.Event{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"events": events,
	})
}
