// Package service implements the session and capture orchestration core.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Pythonista7/context-tracker-backend/internal/adapter/capture"
	"github.com/Pythonista7/context-tracker-backend/internal/adapter/llm"
	"github.com/Pythonista7/context-tracker-backend/internal/config"
	"github.com/Pythonista7/context-tracker-backend/internal/domain"
	"github.com/Pythonista7/context-tracker-backend/internal/policy"
	"github.com/Pythonista7/context-tracker-backend/internal/repository"
)

// Notifier receives every persisted record and recorded event.
type Notifier interface {
	Publish(sessionID string, msg domain.StreamMessage)
}

type nopNotifier struct{}

func (nopNotifier) Publish(string, domain.StreamMessage) {}

type Service struct {
	store        repository.Store
	analyzer     llm.Analyzer
	source       capture.Source
	policyEngine *policy.Engine
	notifier     Notifier
	config       *config.Config
	logger       *slog.Logger

	// ctx outlives individual requests; analysis and persistence run under it.
	ctx    context.Context
	cancel context.CancelFunc

	locks     *lockTable
	scheduler *scheduler
	pipeline  *pipeline
}

// New creates the orchestration service. policyEngine and notifier may be nil.
func New(store repository.Store, analyzer llm.Analyzer, source capture.Source, policyEngine *policy.Engine, notifier Notifier, cfg *config.Config, logger *slog.Logger) *Service {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Service{
		store:        store,
		analyzer:     analyzer,
		source:       source,
		policyEngine: policyEngine,
		notifier:     notifier,
		config:       cfg,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
		locks:        newLockTable(),
	}
	s.scheduler = newScheduler(s.captureTick, logger)
	s.pipeline = newPipeline(s)
	return s
}

// Recover re-activates sessions persisted as ACTIVE, e.g. after a restart.
func (s *Service) Recover(ctx context.Context) error {
	sessions, err := s.store.ListSessions(ctx, domain.SessionStatusActive)
	if err != nil {
		return fmt.Errorf("failed to list active sessions: %w", err)
	}
	for i := range sessions {
		sess := sessions[i]
		unlock := s.locks.lock(sess.SessionID)
		err := s.activate(&sess)
		unlock()
		if err != nil {
			s.logger.Error("failed to recover session", "session_id", sess.SessionID, "error", err)
			continue
		}
		s.logger.Info("session recovered", "session_id", sess.SessionID, "interval", sess.CaptureInterval())
	}
	return nil
}

// Close stops every capture worker, waits for submitted records to be
// persisted until ctx expires, then cancels in-flight analysis.
func (s *Service) Close(ctx context.Context) error {
	s.scheduler.deactivateAll()
	err := s.pipeline.flushAll(ctx)
	s.cancel()
	return err
}
