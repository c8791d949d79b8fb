package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Pythonista7/context-tracker-backend/internal/adapter/capture"
	"github.com/Pythonista7/context-tracker-backend/internal/config"
	"github.com/Pythonista7/context-tracker-backend/internal/domain"
	"github.com/Pythonista7/context-tracker-backend/internal/policy"
	"github.com/Pythonista7/context-tracker-backend/internal/repository"
	"github.com/Pythonista7/context-tracker-backend/tests/helpers"
)

// fakeAnalyzer delegates to per-test functions and counts calls.
type fakeAnalyzer struct {
	mu             sync.Mutex
	analyzeCalls   int
	summarizeCalls int
	analyze        func(ctx context.Context, call int, frame domain.RawFrame) (json.RawMessage, error)
	summarize      func(ctx context.Context, payloads []json.RawMessage) (string, error)
}

func (f *fakeAnalyzer) Name() string { return "fake" }

func (f *fakeAnalyzer) Analyze(ctx context.Context, frame domain.RawFrame) (json.RawMessage, error) {
	f.mu.Lock()
	f.analyzeCalls++
	call := f.analyzeCalls
	fn := f.analyze
	f.mu.Unlock()
	if fn == nil {
		return json.RawMessage(fmt.Sprintf(`{"summary":%q}`, frame.Ref)), nil
	}
	return fn(ctx, call, frame)
}

func (f *fakeAnalyzer) Summarize(ctx context.Context, payloads []json.RawMessage) (string, error) {
	f.mu.Lock()
	f.summarizeCalls++
	fn := f.summarize
	f.mu.Unlock()
	if fn == nil {
		return fmt.Sprintf("summary of %d observations", len(payloads)), nil
	}
	return fn(ctx, payloads)
}

func (f *fakeAnalyzer) calls() (analyze, summarize int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.analyzeCalls, f.summarizeCalls
}

// recordingStore wraps a store to observe and fail record writes.
type recordingStore struct {
	repository.Store

	mu       sync.Mutex
	written  []int64
	failNext int
}

func (r *recordingStore) PutRecord(ctx context.Context, record *domain.ContextRecord) error {
	r.mu.Lock()
	if r.failNext > 0 {
		r.failNext--
		r.mu.Unlock()
		return errors.New("disk full")
	}
	r.written = append(r.written, record.Sequence)
	r.mu.Unlock()
	return r.Store.PutRecord(ctx, record)
}

func (r *recordingStore) writes() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.written...)
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.DefaultCaptureInterval = time.Hour
	cfg.MaxAttempts = 3
	cfg.BackoffBase = time.Millisecond
	cfg.BackoffMultiplier = 2
	cfg.BackoffMax = 10 * time.Millisecond
	cfg.AnalyzeTimeout = time.Second
	cfg.AnalyzeCeiling = 5 * time.Second
	return cfg
}

type testEnv struct {
	svc      *Service
	store    *recordingStore
	analyzer *fakeAnalyzer
}

type testOption func(*testOptions)

type testOptions struct {
	cfg    *config.Config
	source capture.Source
	policy *policy.Engine
}

func withConfig(fn func(cfg *config.Config)) testOption {
	return func(o *testOptions) { fn(o.cfg) }
}

func withSource(src capture.Source) testOption {
	return func(o *testOptions) { o.source = src }
}

func withPolicy(engine *policy.Engine) testOption {
	return func(o *testOptions) { o.policy = engine }
}

func newTestService(t *testing.T, analyzer *fakeAnalyzer, opts ...testOption) *testEnv {
	t.Helper()
	o := &testOptions{cfg: testConfig(), source: capture.Unavailable}
	for _, opt := range opts {
		opt(o)
	}
	if analyzer == nil {
		analyzer = &fakeAnalyzer{}
	}

	store := &recordingStore{Store: helpers.NewTestSQLiteStore(t)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := New(store, analyzer, o.source, o.policy, nil, o.cfg, logger)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Close(ctx)
	})
	return &testEnv{svc: svc, store: store, analyzer: analyzer}
}

// startSession creates and starts a session.
func (e *testEnv) startSession(t *testing.T, req domain.CreateSessionRequest) *domain.Session {
	t.Helper()
	req.Start = true
	sess, err := e.svc.CreateSession(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if sess.Status != domain.SessionStatusActive {
		t.Fatalf("expected ACTIVE, got %s", sess.Status)
	}
	return sess
}

func frame(ref string) domain.RawFrame {
	return domain.RawFrame{Data: []byte(ref), MIMEType: "image/png", Ref: ref, CapturedAt: time.Now().UTC()}
}

func flush(t *testing.T, svc *Service, sessionID string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := svc.Flush(ctx, sessionID); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}

func sequences(records []domain.ContextRecord) []int64 {
	out := make([]int64, len(records))
	for i := range records {
		out[i] = records[i].Sequence
	}
	return out
}
