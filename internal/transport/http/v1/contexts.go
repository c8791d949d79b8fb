package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Pythonista7/context-tracker-backend/internal/domain"
)

// CreateContext creates a named work context. An existing name is returned with 200.
// POST /v1/contexts
func (h *Handler) CreateContext(c echo.Context) error {
	var req domain.CreateContextRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	wc, created, err := h.service.CreateContext(c.Request().Context(), req)
	if err != nil {
		return errorJSON(c, err)
	}
	if !created {
		return c.JSON(http.StatusOK, wc)
	}
	return c.JSON(http.StatusCreated, wc)
}

// ListContexts lists work contexts, most recently active first.
// GET /v1/contexts
func (h *Handler) ListContexts(c echo.Context) error {
	contexts, err := h.service.ListContexts(c.Request().Context())
	if err != nil {
		return errorJSON(c, err)
	}
	if contexts == nil {
		contexts = []domain.WorkContext{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"contexts": contexts,
	})
}

// GetContext returns one work context.
// GET /v1/contexts/:context_id
func (h *Handler) GetContext(c echo.Context) error {
	wc, err := h.service.GetContext(c.Request().Context(), c.Param("context_id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, wc)
}
