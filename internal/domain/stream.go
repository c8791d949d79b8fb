package domain

// StreamMessageType identifies the kind of a live stream message.
type StreamMessageType string

const (
	StreamMessageRecord StreamMessageType = "record"
	StreamMessageEvent  StreamMessageType = "event"
)

// StreamMessage is pushed to live subscribers of a session.
type StreamMessage struct {
	Type      StreamMessageType `json:"type"`
	SessionID string            `json:"session_id"`
	Record    *ContextRecord    `json:"record,omitempty"`
	Event     *Event            `json:"event,omitempty"`
}
