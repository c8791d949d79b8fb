package domain

import (
	"encoding/json"
	"time"
)

// RawFrame is one capture produced by a capture source. Bytes stay owned by
// the source; records keep only Ref and MIMEType.
type RawFrame struct {
	Data       []byte    `json:"-"`
	MIMEType   string    `json:"mime_type"`
	Ref        string    `json:"ref,omitempty"`
	CapturedAt time.Time `json:"captured_at"`

	// Filled in by the pipeline before analysis, never persisted.
	Context  string          `json:"-"` // the session's WorkContext.PromptText
	Previous json.RawMessage `json:"-"` // last SUCCEEDED payload of the session
}

// ContextRecord is the persisted result (or failure) of analyzing one capture.
type ContextRecord struct {
	SessionID  string          `json:"session_id"`
	Sequence   int64           `json:"sequence"`
	CapturedAt time.Time       `json:"captured_at"`
	FrameRef   string          `json:"frame_ref,omitempty"`
	MIMEType   string          `json:"mime_type,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Status     AnalysisStatus  `json:"status"`
	RetryCount int             `json:"retry_count"`
	Error      string          `json:"error,omitempty"`
	AnalyzedAt *time.Time      `json:"analyzed_at,omitempty"`
}

// ScreenActivity is the structured observation an analyzer produces for one
// screen capture.
type ScreenActivity struct {
	MainTopic            string   `json:"main_topic"`
	Activity             string   `json:"activity"`
	Summary              string   `json:"summary"`
	Notes                string   `json:"notes,omitempty"`
	Resources            []string `json:"resources,omitempty"`
	IsLearningMoment     bool     `json:"is_learning_moment"`
	LearningObservations []string `json:"learning_observations,omitempty"`
}

// SessionSummary is a synthesis over every succeeded record of a session.
type SessionSummary struct {
	SessionID    string    `json:"session_id"`
	GeneratedAt  time.Time `json:"generated_at"`
	RecordCount  int       `json:"record_count"`
	FailedCount  int       `json:"failed_count"`
	LastSequence int64     `json:"last_sequence"`
	Fingerprint  string    `json:"fingerprint"`
	Text         string    `json:"text"`
}

// RecordFilter narrows a record listing. A zero Status lists every record.
type RecordFilter struct {
	Status AnalysisStatus
}
