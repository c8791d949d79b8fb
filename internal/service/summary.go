package service

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zeebo/blake3"

	"github.com/Pythonista7/context-tracker-backend/internal/domain"
)

// Summarize synthesizes a summary over the session's SUCCEEDED records. A
// cached summary is reused while the set of SUCCEEDED records is unchanged.
func (s *Service) Summarize(ctx context.Context, sessionID string) (*domain.SessionSummary, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	succeeded, err := s.store.ListRecords(ctx, sessionID, domain.RecordFilter{Status: domain.AnalysisStatusSucceeded})
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	if len(succeeded) == 0 {
		return nil, fmt.Errorf("%w: session %s", domain.ErrNoRecords, sessionID)
	}
	failed, err := s.store.ListRecords(ctx, sessionID, domain.RecordFilter{Status: domain.AnalysisStatusFailed})
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	fp := fingerprint(succeeded)
	cached, err := s.store.GetSummary(ctx, sessionID)
	if err != nil {
		s.logger.Warn("failed to read cached summary", "session_id", sessionID, "error", err)
	}
	if cached != nil && cached.Fingerprint == fp {
		cached.FailedCount = len(failed)
		s.logEvent(ctx, sessionID, domain.EventTypeSummaryGenerated, domain.SummaryGeneratedPayload{
			RecordCount: cached.RecordCount,
			FailedCount: cached.FailedCount,
			Fingerprint: fp,
			Cached:      true,
		})
		return cached, nil
	}

	payloads := make([]json.RawMessage, len(succeeded))
	for i := range succeeded {
		payloads[i] = succeeded[i].Payload
	}

	var text string
	_, err = s.retry(ctx, func(callCtx context.Context) error {
		out, err := s.analyzer.Summarize(callCtx, payloads)
		if err != nil {
			return err
		}
		text = out
		return nil
	}, func(attempt int, backoff time.Duration, err error) {
		s.logger.Warn("summary attempt failed, retrying", "session_id", sessionID, "attempt", attempt, "backoff", backoff, "error", err)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to summarize session %s: %w", sessionID, err)
	}

	summary := &domain.SessionSummary{
		SessionID:    sessionID,
		GeneratedAt:  time.Now().UTC(),
		RecordCount:  len(succeeded),
		FailedCount:  len(failed),
		LastSequence: succeeded[len(succeeded)-1].Sequence,
		Fingerprint:  fp,
		Text:         text,
	}
	if err := s.store.PutSummary(ctx, summary); err != nil {
		s.logger.Warn("failed to cache summary", "session_id", sessionID, "error", err)
	}
	s.logEvent(ctx, sessionID, domain.EventTypeSummaryGenerated, domain.SummaryGeneratedPayload{
		RecordCount: summary.RecordCount,
		FailedCount: summary.FailedCount,
		Fingerprint: fp,
	})
	s.logger.Info("summary generated", "session_id", sessionID, "records", summary.RecordCount, "failed", summary.FailedCount)
	return summary, nil
}

// EndSession stops the session, waits for its pending records and summarizes
// it. A session without any SUCCEEDED record ends without a summary.
func (s *Service) EndSession(ctx context.Context, sessionID string) (*domain.EndSessionResponse, error) {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Status.IsTerminal() {
		sess, err = s.Transition(ctx, sessionID, domain.SessionEventStop)
		if err != nil {
			return nil, err
		}
	}

	if err := s.Flush(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("failed to flush session %s: %w", sessionID, err)
	}

	resp := &domain.EndSessionResponse{Session: sess}
	summary, err := s.Summarize(ctx, sessionID)
	switch {
	case errors.Is(err, domain.ErrNoRecords):
		resp.Error = err.Error()
	case err != nil:
		return nil, err
	default:
		resp.Summary = summary
	}
	return resp, nil
}

// fingerprint digests the ordered sequence numbers of the summary inputs.
func fingerprint(records []domain.ContextRecord) string {
	h := blake3.New()
	var buf [8]byte
	for i := range records {
		binary.BigEndian.PutUint64(buf[:], uint64(records[i].Sequence))
		_, _ = h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}
