package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Pythonista7/context-tracker-backend/internal/domain"
)

// pipeline turns frames into context records. Analysis runs concurrently;
// persistence is strictly ordered by sequence within a session.
type pipeline struct {
	svc *Service

	mu     sync.Mutex
	queues map[string]*sessionQueue
}

type sessionQueue struct {
	mu        sync.Mutex
	open      bool
	seeded    bool
	nextSeq   int64
	watermark int64 // highest persisted sequence, -1 if none
	items     []*pipelineItem
	running   bool
	stopped   bool
	retired   bool          // session stopped; the queue is dropped once drained
	progress  chan struct{} // closed and replaced whenever the watermark moves

	// analysis hints copied into every frame
	contextText string
	previous    json.RawMessage
}

type pipelineItem struct {
	record *domain.ContextRecord
	frame  domain.RawFrame
	done   chan struct{}
}

func newPipeline(svc *Service) *pipeline {
	return &pipeline{
		svc:    svc,
		queues: make(map[string]*sessionQueue),
	}
}

func (p *pipeline) queue(sessionID string) *sessionQueue {
	p.mu.Lock()
	defer p.mu.Unlock()
	q, ok := p.queues[sessionID]
	if !ok {
		q = &sessionQueue{watermark: -1, progress: make(chan struct{})}
		p.queues[sessionID] = q
	}
	return q
}

func (p *pipeline) lookup(sessionID string) *sessionQueue {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queues[sessionID]
}

func (p *pipeline) open(sessionID string) {
	q := p.queue(sessionID)
	q.mu.Lock()
	q.open = true
	q.mu.Unlock()
}

func (p *pipeline) close(sessionID string) {
	q := p.lookup(sessionID)
	if q == nil {
		return
	}
	q.mu.Lock()
	q.open = false
	q.mu.Unlock()
}

// retire drops the session's queue once every submitted record is persisted.
func (p *pipeline) retire(sessionID string) {
	q := p.lookup(sessionID)
	if q == nil {
		return
	}
	q.mu.Lock()
	q.open = false
	q.retired = true
	idle := !q.running && len(q.items) == 0
	q.mu.Unlock()
	if idle {
		p.forget(sessionID, q)
	}
}

func (p *pipeline) forget(sessionID string, q *sessionQueue) {
	p.mu.Lock()
	if p.queues[sessionID] == q {
		delete(p.queues, sessionID)
	}
	p.mu.Unlock()
}

// seed loads the sequence counter and analysis hints from the store. Called
// with q.mu held.
func (p *pipeline) seed(ctx context.Context, sessionID string, q *sessionQueue) error {
	store := p.svc.store
	maxSeq, err := store.MaxSequence(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to seed sequence: %w", err)
	}

	sess, err := store.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if sess != nil && sess.ContextID != "" {
		wc, err := store.GetContext(ctx, sess.ContextID)
		if err != nil {
			return fmt.Errorf("failed to load context: %w", err)
		}
		if wc != nil {
			q.contextText = wc.PromptText()
		}
	}

	succeeded, err := store.ListRecords(ctx, sessionID, domain.RecordFilter{Status: domain.AnalysisStatusSucceeded})
	if err != nil {
		return fmt.Errorf("failed to load previous analysis: %w", err)
	}
	if n := len(succeeded); n > 0 {
		q.previous = succeeded[n-1].Payload
	}

	q.nextSeq = maxSeq + 1
	q.watermark = maxSeq
	q.seeded = true
	return nil
}

// submit assigns the next sequence number, enqueues a PENDING record and
// starts its analysis. It never waits for the analyzer.
func (p *pipeline) submit(ctx context.Context, sessionID string, frame domain.RawFrame) (*domain.ContextRecord, error) {
	q := p.lookup(sessionID)
	if q == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotActive, sessionID)
	}

	q.mu.Lock()
	if !q.open {
		q.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotActive, sessionID)
	}
	if !q.seeded {
		if err := p.seed(ctx, sessionID, q); err != nil {
			q.mu.Unlock()
			return nil, err
		}
	}
	frame.Context = q.contextText
	frame.Previous = q.previous

	rec := &domain.ContextRecord{
		SessionID:  sessionID,
		Sequence:   q.nextSeq,
		CapturedAt: frame.CapturedAt,
		FrameRef:   frame.Ref,
		MIMEType:   frame.MIMEType,
		Status:     domain.AnalysisStatusPending,
	}
	q.nextSeq++
	item := &pipelineItem{record: rec, frame: frame, done: make(chan struct{})}
	q.items = append(q.items, item)
	if !q.running {
		q.running = true
		q.stopped = false
		go p.persistLoop(sessionID, q)
	}
	snapshot := *rec
	q.mu.Unlock()

	go p.analyze(item)
	return &snapshot, nil
}

func (p *pipeline) analyze(item *pipelineItem) {
	defer close(item.done)
	s := p.svc
	rec := item.record

	var ctx context.Context
	var cancel context.CancelFunc
	if s.config.AnalyzeCeiling > 0 {
		ctx, cancel = context.WithTimeout(s.ctx, s.config.AnalyzeCeiling)
	} else {
		ctx, cancel = context.WithCancel(s.ctx)
	}
	defer cancel()

	var payload json.RawMessage
	retries, err := s.retry(ctx, func(callCtx context.Context) error {
		out, err := s.analyzer.Analyze(callCtx, item.frame)
		if err != nil {
			return err
		}
		if !isJSONObject(out) {
			return fmt.Errorf("%w: analyzer payload is not a JSON object", domain.ErrMalformed)
		}
		payload = out
		return nil
	}, func(attempt int, backoff time.Duration, err error) {
		s.logger.Warn("analysis attempt failed, retrying",
			"session_id", rec.SessionID, "sequence", rec.Sequence, "attempt", attempt, "backoff", backoff, "error", err)
		s.logEvent(ctx, rec.SessionID, domain.EventTypeAnalysisRetry, domain.RetryPayload{
			Sequence:  rec.Sequence,
			Attempt:   attempt,
			BackoffMs: backoff.Milliseconds(),
			Error:     err.Error(),
		})
	})

	now := time.Now().UTC()
	rec.RetryCount = retries
	rec.AnalyzedAt = &now
	if err != nil {
		rec.Status = domain.AnalysisStatusFailed
		rec.Error = err.Error()
		s.logger.Warn("analysis failed", "session_id", rec.SessionID, "sequence", rec.Sequence,
			"permanent", errors.Is(err, domain.ErrPermanentAnalysis), "error", err)
	} else {
		rec.Status = domain.AnalysisStatusSucceeded
		rec.Payload = payload
	}
	item.frame = domain.RawFrame{}
}

// persistLoop writes finished records in sequence order. A record is only
// written once every earlier record of the session has been written.
func (p *pipeline) persistLoop(sessionID string, q *sessionQueue) {
	s := p.svc
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.running = false
			retired := q.retired
			q.mu.Unlock()
			if retired {
				p.forget(sessionID, q)
			}
			return
		}
		item := q.items[0]
		q.mu.Unlock()

		select {
		case <-item.done:
		case <-s.ctx.Done():
			p.abandon(sessionID, q)
			return
		}

		if !p.persist(item.record) {
			p.abandon(sessionID, q)
			return
		}

		rec := *item.record
		q.mu.Lock()
		q.items = q.items[1:]
		q.watermark = rec.Sequence
		if rec.Status == domain.AnalysisStatusSucceeded {
			q.previous = rec.Payload
		}
		close(q.progress)
		q.progress = make(chan struct{})
		q.mu.Unlock()

		s.notifier.Publish(sessionID, domain.StreamMessage{
			Type:      domain.StreamMessageRecord,
			SessionID: sessionID,
			Record:    &rec,
		})
		s.logEvent(s.ctx, sessionID, domain.EventTypeRecordPersisted, domain.RecordPersistedPayload{
			Sequence:   rec.Sequence,
			Status:     rec.Status,
			RetryCount: rec.RetryCount,
		})
	}
}

// persist retries the write with backoff until it succeeds or the service
// shuts down.
func (p *pipeline) persist(rec *domain.ContextRecord) bool {
	s := p.svc
	for attempt := 0; ; attempt++ {
		err := s.store.PutRecord(s.ctx, rec)
		if err == nil {
			return true
		}
		delay := s.backoff(attempt)
		s.logger.Error("failed to persist record, retrying",
			"session_id", rec.SessionID, "sequence", rec.Sequence, "attempt", attempt+1, "backoff", delay, "error", err)
		s.logEvent(s.ctx, rec.SessionID, domain.EventTypePersistRetry, domain.RetryPayload{
			Sequence:  rec.Sequence,
			Attempt:   attempt + 1,
			BackoffMs: delay.Milliseconds(),
			Error:     err.Error(),
		})
		if !sleepCtx(s.ctx, delay) {
			return false
		}
	}
}

func (p *pipeline) abandon(sessionID string, q *sessionQueue) {
	q.mu.Lock()
	dropped := len(q.items)
	q.running = false
	q.stopped = true
	close(q.progress)
	q.progress = make(chan struct{})
	q.mu.Unlock()
	p.svc.logger.Warn("pipeline stopped with unpersisted records", "session_id", sessionID, "count", dropped)
}

// flush waits until every record submitted before the call is persisted.
func (p *pipeline) flush(ctx context.Context, sessionID string) error {
	q := p.lookup(sessionID)
	if q == nil {
		return nil
	}

	q.mu.Lock()
	target := q.nextSeq - 1
	q.mu.Unlock()

	for {
		q.mu.Lock()
		if q.watermark >= target || !q.seeded {
			q.mu.Unlock()
			return nil
		}
		if q.stopped {
			q.mu.Unlock()
			return fmt.Errorf("pipeline for session %s stopped before sequence %d was persisted", sessionID, target)
		}
		progress := q.progress
		q.mu.Unlock()

		select {
		case <-progress:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *pipeline) flushAll(ctx context.Context) error {
	p.mu.Lock()
	ids := make([]string, 0, len(p.queues))
	for id := range p.queues {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := p.flush(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *pipeline) watermark(sessionID string) int64 {
	q := p.lookup(sessionID)
	if q == nil {
		return -1
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.watermark
}

func isJSONObject(raw json.RawMessage) bool {
	var obj map[string]json.RawMessage
	return json.Unmarshal(raw, &obj) == nil && obj != nil
}
