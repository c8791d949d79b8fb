package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Pythonista7/context-tracker-backend/internal/domain"
	"github.com/Pythonista7/context-tracker-backend/internal/policy"
)

// scheduler runs one ticking worker per active session.
type scheduler struct {
	mu      sync.Mutex
	workers map[string]*worker
	tick    func(ctx context.Context, sessionID string)
	logger  *slog.Logger
}

type worker struct {
	stop chan struct{}
	done chan struct{}
}

func newScheduler(tick func(ctx context.Context, sessionID string), logger *slog.Logger) *scheduler {
	return &scheduler{
		workers: make(map[string]*worker),
		tick:    tick,
		logger:  logger,
	}
}

// activate starts the session's worker. Ticks are relative to activation.
func (s *scheduler) activate(ctx context.Context, sessionID string, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("%w: cannot schedule session %s every %s", domain.ErrInvalidArgument, sessionID, interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workers[sessionID]; ok {
		return nil
	}
	w := &worker{stop: make(chan struct{}), done: make(chan struct{})}
	s.workers[sessionID] = w
	go s.run(ctx, sessionID, interval, w)
	return nil
}

// deactivate stops the session's worker and returns once it has exited.
// A tick already in progress runs to completion.
func (s *scheduler) deactivate(sessionID string) {
	s.mu.Lock()
	w, ok := s.workers[sessionID]
	delete(s.workers, sessionID)
	s.mu.Unlock()
	if !ok {
		return
	}
	close(w.stop)
	<-w.done
}

func (s *scheduler) deactivateAll() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.workers))
	for id := range s.workers {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	for _, id := range ids {
		s.deactivate(id)
	}
}

func (s *scheduler) active(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.workers[sessionID]
	return ok
}

func (s *scheduler) run(ctx context.Context, sessionID string, interval time.Duration, w *worker) {
	defer close(w.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			// stop wins over a tick that fired concurrently
			select {
			case <-w.stop:
				return
			default:
			}
			s.runTick(ctx, sessionID)
		}
	}
}

// runTick isolates a panicking tick to its own session.
func (s *scheduler) runTick(ctx context.Context, sessionID string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("capture tick panicked", "session_id", sessionID, "panic", r)
		}
	}()
	s.tick(ctx, sessionID)
}

// captureTick consults the capture policy, captures a frame and submits it
// to the pipeline. It must not take the session lock: deactivate waits for
// the tick while the lock is held.
func (s *Service) captureTick(ctx context.Context, sessionID string) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil || sess == nil {
		s.logger.Warn("capture tick: session lookup failed", "session_id", sessionID, "error", err)
		return
	}
	if !sess.AcceptsContext() {
		return
	}

	if s.policyEngine != nil {
		now := time.Now()
		decision, err := s.policyEngine.Evaluate(ctx, policy.Input{
			SessionID: sessionID,
			Metadata:  sess.Metadata,
			Hour:      now.Hour(),
			Weekday:   now.Weekday().String(),
		})
		if err != nil {
			s.logger.Warn("capture policy evaluation failed", "session_id", sessionID, "error", err)
			s.logEvent(ctx, sessionID, domain.EventTypeCaptureSkipped, domain.CaptureSkippedPayload{Reason: "policy error: " + err.Error()})
			return
		}
		if !decision.Allowed() {
			s.logger.Debug("capture skipped by policy", "session_id", sessionID, "reason", decision.Reason)
			s.logEvent(ctx, sessionID, domain.EventTypeCaptureSkipped, domain.CaptureSkippedPayload{Reason: "policy: " + decision.Reason})
			return
		}
	}

	frame, err := s.source.Capture(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrCaptureUnavailable) {
			s.logger.Debug("capture unavailable", "session_id", sessionID, "error", err)
		} else {
			s.logger.Warn("capture failed", "session_id", sessionID, "error", err)
		}
		s.logEvent(ctx, sessionID, domain.EventTypeCaptureSkipped, domain.CaptureSkippedPayload{Reason: err.Error()})
		return
	}
	if frame.CapturedAt.IsZero() {
		frame.CapturedAt = time.Now().UTC()
	}

	if _, err := s.pipeline.submit(ctx, sessionID, frame); err != nil {
		s.logger.Warn("submit failed", "session_id", sessionID, "error", err)
	}
}
