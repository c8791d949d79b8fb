package domain

// CreateSessionRequest is the body of POST /v1/sessions. ContextID, when set,
// must name an existing context.
type CreateSessionRequest struct {
	ContextID         string            `json:"context_id,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	CaptureIntervalMs int64             `json:"capture_interval_ms,omitempty"`
	Start             bool              `json:"start,omitempty"`
}

// CreateContextRequest is the body of POST /v1/contexts.
type CreateContextRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// EndSessionResponse is returned when a session is stopped and summarized.
type EndSessionResponse struct {
	Session *Session        `json:"session"`
	Summary *SessionSummary `json:"summary,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ErrorResponse is the JSON body of every failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
