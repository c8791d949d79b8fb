package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Pythonista7/context-tracker-backend/internal/adapter/capture"
	"github.com/Pythonista7/context-tracker-backend/internal/domain"
)

// lockTable hands out one mutex per session id. An entry lives only while
// some caller holds or waits for it.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*lockEntry)}
}

func (t *lockTable) lock(sessionID string) func() {
	t.mu.Lock()
	e, ok := t.locks[sessionID]
	if !ok {
		e = &lockEntry{}
		t.locks[sessionID] = e
	}
	e.refs++
	t.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		t.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(t.locks, sessionID)
		}
		t.mu.Unlock()
	}
}

func (t *lockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}

// transitions maps (event, from) to the target state.
var transitions = map[domain.SessionEvent]map[domain.SessionStatus]domain.SessionStatus{
	domain.SessionEventStart: {
		domain.SessionStatusCreated: domain.SessionStatusActive,
		domain.SessionStatusActive:  domain.SessionStatusActive,
	},
	domain.SessionEventPause: {
		domain.SessionStatusActive: domain.SessionStatusPaused,
		domain.SessionStatusPaused: domain.SessionStatusPaused,
	},
	domain.SessionEventResume: {
		domain.SessionStatusPaused: domain.SessionStatusActive,
		domain.SessionStatusActive: domain.SessionStatusActive,
	},
	domain.SessionEventStop: {
		domain.SessionStatusCreated: domain.SessionStatusStopped,
		domain.SessionStatusActive:  domain.SessionStatusStopped,
		domain.SessionStatusPaused:  domain.SessionStatusStopped,
	},
}

func nextStatus(from domain.SessionStatus, event domain.SessionEvent) (domain.SessionStatus, error) {
	if from.IsTerminal() {
		return "", fmt.Errorf("%w: session is %s", domain.ErrInvalidTransition, from)
	}
	to, ok := transitions[event][from]
	if !ok {
		return "", fmt.Errorf("%w: cannot %s a %s session", domain.ErrInvalidTransition, event, from)
	}
	return to, nil
}

// CreateSession creates a session in CREATED state, starting it when req.Start is set.
func (s *Service) CreateSession(ctx context.Context, req domain.CreateSessionRequest) (*domain.Session, error) {
	if req.CaptureIntervalMs < 0 || req.CaptureIntervalMs > domain.MaxCaptureIntervalMs {
		return nil, fmt.Errorf("%w: capture_interval_ms must be between 1 and %d", domain.ErrInvalidArgument, domain.MaxCaptureIntervalMs)
	}
	intervalMs := req.CaptureIntervalMs
	if intervalMs == 0 {
		intervalMs = s.config.DefaultCaptureInterval.Milliseconds()
	}

	if req.ContextID != "" {
		wc, err := s.GetContext(ctx, req.ContextID)
		if err != nil {
			return nil, err
		}
		s.touchContext(ctx, wc)
	}

	now := time.Now().UTC()
	sess := &domain.Session{
		SessionID:         "sess_" + uuid.New().String()[:8],
		Status:            domain.SessionStatusCreated,
		ContextID:         req.ContextID,
		CaptureIntervalMs: intervalMs,
		Metadata:          req.Metadata,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.store.PutSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	s.logEvent(ctx, sess.SessionID, domain.EventTypeSessionCreated, sess)
	s.logger.Info("session created", "session_id", sess.SessionID, "interval", sess.CaptureInterval())

	if req.Start {
		return s.Transition(ctx, sess.SessionID, domain.SessionEventStart)
	}
	return sess, nil
}

// GetSession returns a session or domain.ErrNotFound.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if sess == nil {
		return nil, fmt.Errorf("%w: session %s", domain.ErrNotFound, sessionID)
	}
	return sess, nil
}

// ListSessions returns sessions, optionally filtered by status.
func (s *Service) ListSessions(ctx context.Context, status domain.SessionStatus) ([]domain.Session, error) {
	sessions, err := s.store.ListSessions(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// Transition applies a lifecycle event to a session. The new state is
// persisted before the scheduler is notified; both happen under the
// session's lock.
func (s *Service) Transition(ctx context.Context, sessionID string, event domain.SessionEvent) (*domain.Session, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	from := sess.Status
	to, err := nextStatus(from, event)
	if err != nil {
		return nil, err
	}
	if to == from {
		return sess, nil
	}
	if to == domain.SessionStatusActive && !sess.ValidInterval() {
		return nil, fmt.Errorf("%w: session %s has capture interval %dms", domain.ErrInvalidArgument, sessionID, sess.CaptureIntervalMs)
	}

	now := time.Now().UTC()
	updated := *sess
	updated.Status = to
	updated.UpdatedAt = now
	if to == domain.SessionStatusStopped {
		updated.StoppedAt = &now
	}
	if err := s.store.PutSession(ctx, &updated); err != nil {
		return nil, fmt.Errorf("failed to persist session transition: %w", err)
	}

	switch {
	case to == domain.SessionStatusActive:
		if err := s.activate(&updated); err != nil {
			if rerr := s.store.PutSession(ctx, sess); rerr != nil {
				s.logger.Error("failed to roll back session transition", "session_id", sessionID, "error", rerr)
			}
			return nil, err
		}
	case from == domain.SessionStatusActive:
		s.deactivate(sessionID)
	}
	if to == domain.SessionStatusStopped {
		s.release(sessionID)
	}

	s.logEvent(ctx, sessionID, domain.EventTypeSessionTransition, domain.TransitionPayload{
		Event: event,
		From:  from,
		To:    to,
	})
	s.logger.Info("session transition", "session_id", sessionID, "event", event, "from", from, "to", to)
	return &updated, nil
}

// activate must be called with the session lock held.
func (s *Service) activate(sess *domain.Session) error {
	s.pipeline.open(sess.SessionID)
	if err := s.scheduler.activate(s.ctx, sess.SessionID, sess.CaptureInterval()); err != nil {
		s.pipeline.close(sess.SessionID)
		return err
	}
	return nil
}

// deactivate must be called with the session lock held. A tick in progress
// may still submit its frame before the pipeline closes.
func (s *Service) deactivate(sessionID string) {
	s.scheduler.deactivate(sessionID)
	s.pipeline.close(sessionID)
}

// release drops per-session state kept outside the store once a session is
// stopped. Records still in the pipeline are persisted first.
func (s *Service) release(sessionID string) {
	s.pipeline.retire(sessionID)
	if r, ok := s.source.(capture.Releaser); ok {
		r.Release(sessionID)
	}
}
