package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Pythonista7/context-tracker-backend/internal/domain"
)

// recordEvent records an event to the store and publishes it to live subscribers.
func (s *Service) recordEvent(ctx context.Context, sessionID string, eventType domain.EventType, payload interface{}) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	event := &domain.Event{
		EventID:   "evt_" + uuid.New().String()[:8],
		SessionID: sessionID,
		Ts:        time.Now().UnixMilli(),
		Type:      eventType,
		Payload:   payloadBytes,
	}

	if err := s.store.CreateEvent(ctx, event); err != nil {
		return err
	}
	s.notifier.Publish(sessionID, domain.StreamMessage{
		Type:      domain.StreamMessageEvent,
		SessionID: sessionID,
		Event:     event,
	})
	return nil
}

// logEvent records an event and logs instead of failing the caller.
func (s *Service) logEvent(ctx context.Context, sessionID string, eventType domain.EventType, payload interface{}) {
	if err := s.recordEvent(ctx, sessionID, eventType, payload); err != nil {
		s.logger.Warn("failed to record event", "session_id", sessionID, "type", eventType, "error", err)
	}
}

// GetSessionEvents returns a session's events after afterTs, optionally
// filtered by type.
func (s *Service) GetSessionEvents(ctx context.Context, sessionID string, afterTs int64, types []string, limit int) ([]domain.Event, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	events, err := s.store.GetEvents(ctx, sessionID, afterTs, types, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	return events, nil
}
