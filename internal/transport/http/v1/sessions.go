package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Pythonista7/context-tracker-backend/internal/domain"
)

// CreateSession creates a session, optionally starting it.
// POST /v1/sessions
func (h *Handler) CreateSession(c echo.Context) error {
	var req domain.CreateSessionRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
	}

	sess, err := h.service.CreateSession(c.Request().Context(), req)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusCreated, sess)
}

// ListSessions lists sessions, optionally filtered by ?status=.
// GET /v1/sessions
func (h *Handler) ListSessions(c echo.Context) error {
	var status domain.SessionStatus
	if raw := c.QueryParam("status"); raw != "" {
		switch s := domain.SessionStatus(raw); s {
		case domain.SessionStatusCreated, domain.SessionStatusActive, domain.SessionStatusPaused, domain.SessionStatusStopped:
			status = s
		default:
			return badRequest(c, "unknown status "+raw)
		}
	}

	sessions, err := h.service.ListSessions(c.Request().Context(), status)
	if err != nil {
		return errorJSON(c, err)
	}
	if sessions == nil {
		sessions = []domain.Session{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"sessions": sessions,
	})
}

// GetSession returns one session.
// GET /v1/sessions/:session_id
func (h *Handler) GetSession(c echo.Context) error {
	sess, err := h.service.GetSession(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

// TransitionSession applies a lifecycle event (start, pause, resume, stop).
// POST /v1/sessions/:session_id/:event
func (h *Handler) TransitionSession(c echo.Context) error {
	event, ok := domain.ParseSessionEvent(c.Param("event"))
	if !ok {
		return badRequest(c, "unknown session event "+c.Param("event"))
	}

	sess, err := h.service.Transition(c.Request().Context(), c.Param("session_id"), event)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

// EndSession stops a session and returns its summary.
// POST /v1/sessions/:session_id/end
func (h *Handler) EndSession(c echo.Context) error {
	resp, err := h.service.EndSession(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// GetSummary summarizes a session's succeeded records.
// GET /v1/sessions/:session_id/summary
func (h *Handler) GetSummary(c echo.Context) error {
	summary, err := h.service.Summarize(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, summary)
}
