// Package domain defines the core domain models for the context tracker.
package domain

import "strings"

// SessionStatus represents the lifecycle state of a session.
type SessionStatus string

const (
	SessionStatusCreated SessionStatus = "CREATED"
	SessionStatusActive  SessionStatus = "ACTIVE"
	SessionStatusPaused  SessionStatus = "PAUSED"
	SessionStatusStopped SessionStatus = "STOPPED"
)

// IsTerminal reports whether no further transitions are permitted.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusStopped
}

// SessionEvent is a lifecycle event applied to a session.
type SessionEvent string

const (
	SessionEventStart  SessionEvent = "start"
	SessionEventPause  SessionEvent = "pause"
	SessionEventResume SessionEvent = "resume"
	SessionEventStop   SessionEvent = "stop"
)

// ParseSessionEvent converts a raw string into a SessionEvent.
func ParseSessionEvent(raw string) (SessionEvent, bool) {
	switch e := SessionEvent(raw); e {
	case SessionEventStart, SessionEventPause, SessionEventResume, SessionEventStop:
		return e, true
	}
	return "", false
}

// AnalysisStatus represents the analysis state of a context record.
type AnalysisStatus string

const (
	AnalysisStatusPending   AnalysisStatus = "PENDING"
	AnalysisStatusSucceeded AnalysisStatus = "SUCCEEDED"
	AnalysisStatusFailed    AnalysisStatus = "FAILED"
)

// IsTerminal reports whether the status can no longer change.
func (s AnalysisStatus) IsTerminal() bool {
	return s == AnalysisStatusSucceeded || s == AnalysisStatusFailed
}

// ParseAnalysisStatus converts a raw string (case-insensitive) into an AnalysisStatus.
func ParseAnalysisStatus(raw string) (AnalysisStatus, bool) {
	switch s := AnalysisStatus(strings.ToUpper(raw)); s {
	case AnalysisStatusPending, AnalysisStatusSucceeded, AnalysisStatusFailed:
		return s, true
	}
	return "", false
}

// EventType represents the type of a session event.
type EventType string

const (
	EventTypeSessionCreated    EventType = "session_created"
	EventTypeSessionTransition EventType = "session_transition"
	EventTypeCaptureSkipped    EventType = "capture_skipped"
	EventTypeAnalysisRetry     EventType = "analysis_retry"
	EventTypeRecordPersisted   EventType = "record_persisted"
	EventTypePersistRetry      EventType = "persist_retry"
	EventTypeSummaryGenerated  EventType = "summary_generated"
)
