// Package v1 provides the HTTP handlers of the context tracker API.
package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Pythonista7/context-tracker-backend/internal/domain"
	"github.com/Pythonista7/context-tracker-backend/internal/service"
	"github.com/Pythonista7/context-tracker-backend/internal/transport/ws"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
	stream  *ws.Server
}

// NewHandler creates a new handler. stream may be nil to disable the live endpoint.
func NewHandler(service *service.Service, stream *ws.Server) *Handler {
	return &Handler{
		service: service,
		stream:  stream,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Work contexts
	e.POST("/v1/contexts", h.CreateContext)
	e.GET("/v1/contexts", h.ListContexts)
	e.GET("/v1/contexts/:context_id", h.GetContext)

	// Session lifecycle
	e.POST("/v1/sessions", h.CreateSession)
	e.GET("/v1/sessions", h.ListSessions)
	e.GET("/v1/sessions/:session_id", h.GetSession)
	e.POST("/v1/sessions/:session_id/end", h.EndSession)
	e.POST("/v1/sessions/:session_id/:event", h.TransitionSession)

	// Session context
	e.GET("/v1/sessions/:session_id/records", h.ListRecords)
	e.GET("/v1/sessions/:session_id/events", h.GetSessionEvents)
	e.GET("/v1/sessions/:session_id/summary", h.GetSummary)
	if h.stream != nil {
		e.GET("/v1/sessions/:session_id/stream", h.stream.HandleStream)
	}

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

// errorJSON maps service errors to HTTP status codes.
func errorJSON(c echo.Context, err error) error {
	status, code := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInvalidTransition):
		status, code = http.StatusConflict, "invalid_transition"
	case errors.Is(err, domain.ErrNoRecords):
		status, code = http.StatusUnprocessableEntity, "no_records"
	case errors.Is(err, domain.ErrInvalidArgument):
		status, code = http.StatusBadRequest, "invalid_argument"
	}
	return c.JSON(status, domain.ErrorResponse{Error: err.Error(), Code: code})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, domain.ErrorResponse{Error: msg, Code: "invalid_argument"})
}
