package service

import (
	"context"
	"fmt"

	"github.com/Pythonista7/context-tracker-backend/internal/domain"
)

// Submit hands a captured frame to the analysis pipeline and returns the
// PENDING record with its assigned sequence number.
func (s *Service) Submit(ctx context.Context, sessionID string, frame domain.RawFrame) (*domain.ContextRecord, error) {
	return s.pipeline.submit(ctx, sessionID, frame)
}

// Flush waits until every frame submitted for the session so far has been
// persisted.
func (s *Service) Flush(ctx context.Context, sessionID string) error {
	return s.pipeline.flush(ctx, sessionID)
}

// ListRecords returns a session's persisted records in sequence order.
func (s *Service) ListRecords(ctx context.Context, sessionID string, filter domain.RecordFilter) ([]domain.ContextRecord, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	records, err := s.store.ListRecords(ctx, sessionID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return records, nil
}

// GetRecord returns one persisted record or domain.ErrNotFound.
func (s *Service) GetRecord(ctx context.Context, sessionID string, sequence int64) (*domain.ContextRecord, error) {
	rec, err := s.store.GetRecord(ctx, sessionID, sequence)
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: record %s/%d", domain.ErrNotFound, sessionID, sequence)
	}
	return rec, nil
}
