package domain

import (
	"encoding/json"
	"math"
	"time"
)

// MaxCaptureIntervalMs is the largest capture interval that fits a time.Duration.
const MaxCaptureIntervalMs = int64(math.MaxInt64 / time.Millisecond)

// Session is a bounded period of tracked activity with its own lifecycle.
type Session struct {
	SessionID         string            `json:"session_id"`
	Status            SessionStatus     `json:"status"`
	ContextID         string            `json:"context_id,omitempty"`
	CaptureIntervalMs int64             `json:"capture_interval_ms"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
	StoppedAt         *time.Time        `json:"stopped_at,omitempty"`
}

// CaptureInterval returns the session's capture period.
func (s *Session) CaptureInterval() time.Duration {
	return time.Duration(s.CaptureIntervalMs) * time.Millisecond
}

// ValidInterval reports whether the session can be scheduled.
func (s *Session) ValidInterval() bool {
	return s.CaptureIntervalMs > 0 && s.CaptureIntervalMs <= MaxCaptureIntervalMs
}

// AcceptsContext reports whether new context records may attach to the session.
func (s *Session) AcceptsContext() bool {
	return s.Status == SessionStatusActive
}

// Event is an entry in a session's event log.
type Event struct {
	EventID   string          `json:"event_id"`
	SessionID string          `json:"session_id"`
	Ts        int64           `json:"ts"` // Unix milliseconds
	Type      EventType       `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// TransitionPayload is recorded for every successful lifecycle transition.
type TransitionPayload struct {
	Event SessionEvent  `json:"event"`
	From  SessionStatus `json:"from"`
	To    SessionStatus `json:"to"`
}

// CaptureSkippedPayload is recorded when a capture tick produced no record.
type CaptureSkippedPayload struct {
	Reason string `json:"reason"`
}

// RetryPayload is recorded before an analysis or persistence attempt is retried.
type RetryPayload struct {
	Sequence  int64  `json:"sequence"`
	Attempt   int    `json:"attempt"`
	BackoffMs int64  `json:"backoff_ms"`
	Error     string `json:"error"`
}

// RecordPersistedPayload is recorded once a context record reaches the store.
type RecordPersistedPayload struct {
	Sequence   int64          `json:"sequence"`
	Status     AnalysisStatus `json:"status"`
	RetryCount int            `json:"retry_count"`
}

// SummaryGeneratedPayload is recorded when a summary is synthesized.
type SummaryGeneratedPayload struct {
	RecordCount int    `json:"record_count"`
	FailedCount int    `json:"failed_count"`
	Fingerprint string `json:"fingerprint"`
	Cached      bool   `json:"cached"`
}
