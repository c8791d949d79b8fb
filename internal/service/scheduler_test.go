package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pythonista7/context-tracker-backend/internal/adapter/capture"
	"github.com/Pythonista7/context-tracker-backend/internal/domain"
	"github.com/Pythonista7/context-tracker-backend/internal/policy"
)

func countingSource(n *atomic.Int32) capture.Source {
	return capture.FuncSource(func(ctx context.Context, sessionID string) (domain.RawFrame, error) {
		i := n.Add(1)
		return frame(fmt.Sprintf("tick-%d", i)), nil
	})
}

func TestSchedulerTicksWhileActive(t *testing.T) {
	var captures atomic.Int32
	env := newTestService(t, nil, withSource(countingSource(&captures)))
	ctx := context.Background()

	sess := env.startSession(t, domain.CreateSessionRequest{CaptureIntervalMs: 10})
	assert.Eventually(t, func() bool { return captures.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	_, err := env.svc.Transition(ctx, sess.SessionID, domain.SessionEventPause)
	require.NoError(t, err)
	paused := captures.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, paused, captures.Load(), "no ticks while paused")

	_, err = env.svc.Transition(ctx, sess.SessionID, domain.SessionEventResume)
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return captures.Load() > paused }, 2*time.Second, 5*time.Millisecond)

	_, err = env.svc.Transition(ctx, sess.SessionID, domain.SessionEventStop)
	require.NoError(t, err)
	stopped := captures.Load()
	flush(t, env.svc, sess.SessionID)

	records, err := env.svc.ListRecords(ctx, sess.SessionID, domain.RecordFilter{})
	require.NoError(t, err)
	assert.Len(t, records, int(stopped), "every capture before stop is persisted")
	for i, rec := range records {
		assert.Equal(t, int64(i), rec.Sequence)
	}

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, stopped, captures.Load(), "no ticks after stop")
}

func TestCaptureUnavailableSkipsTick(t *testing.T) {
	env := newTestService(t, nil)
	ctx := context.Background()
	sess := env.startSession(t, domain.CreateSessionRequest{CaptureIntervalMs: 10})

	assert.Eventually(t, func() bool {
		events, err := env.svc.GetSessionEvents(ctx, sess.SessionID, 0, []string{string(domain.EventTypeCaptureSkipped)}, 0)
		return err == nil && len(events) >= 2
	}, 2*time.Second, 5*time.Millisecond)

	assert.True(t, env.svc.scheduler.active(sess.SessionID), "scheduling continues after skipped ticks")
	records, err := env.svc.ListRecords(ctx, sess.SessionID, domain.RecordFilter{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestPolicySkipsPrivateSessions(t *testing.T) {
	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)

	var captures atomic.Int32
	env := newTestService(t, nil, withSource(countingSource(&captures)), withPolicy(engine))
	ctx := context.Background()

	private := env.startSession(t, domain.CreateSessionRequest{
		CaptureIntervalMs: 10,
		Metadata:          map[string]string{"private": "true"},
	})
	assert.Eventually(t, func() bool {
		events, err := env.svc.GetSessionEvents(ctx, private.SessionID, 0, []string{string(domain.EventTypeCaptureSkipped)}, 0)
		return err == nil && len(events) >= 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), captures.Load())

	public := env.startSession(t, domain.CreateSessionRequest{CaptureIntervalMs: 10})
	assert.Eventually(t, func() bool { return captures.Load() >= 1 }, 2*time.Second, 5*time.Millisecond)
	_, err = env.svc.Transition(ctx, public.SessionID, domain.SessionEventStop)
	require.NoError(t, err)
}

func TestTickPanicIsIsolated(t *testing.T) {
	var calls atomic.Int32
	src := capture.FuncSource(func(ctx context.Context, sessionID string) (domain.RawFrame, error) {
		if calls.Add(1) == 1 {
			panic("capture exploded")
		}
		return frame("ok"), nil
	})
	env := newTestService(t, nil, withSource(src))
	sess := env.startSession(t, domain.CreateSessionRequest{CaptureIntervalMs: 10})

	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, env.svc.scheduler.active(sess.SessionID))
}

func TestCloseStopsAllWorkers(t *testing.T) {
	var captures atomic.Int32
	env := newTestService(t, nil, withSource(countingSource(&captures)))
	a := env.startSession(t, domain.CreateSessionRequest{CaptureIntervalMs: 10})
	b := env.startSession(t, domain.CreateSessionRequest{CaptureIntervalMs: 10})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, env.svc.Close(ctx))
	assert.False(t, env.svc.scheduler.active(a.SessionID))
	assert.False(t, env.svc.scheduler.active(b.SessionID))

	n := captures.Load()
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, n, captures.Load())
}

func TestPauseWaitsForCaptureInFlight(t *testing.T) {
	var captures atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})
	src := capture.FuncSource(func(ctx context.Context, sessionID string) (domain.RawFrame, error) {
		if captures.Add(1) == 1 {
			close(entered)
			<-release
		}
		return frame("slow"), nil
	})
	env := newTestService(t, nil, withSource(src))
	ctx := context.Background()
	sess := env.startSession(t, domain.CreateSessionRequest{CaptureIntervalMs: 10})

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("capture never started")
	}

	paused := make(chan error, 1)
	go func() {
		_, err := env.svc.Transition(ctx, sess.SessionID, domain.SessionEventPause)
		paused <- err
	}()

	select {
	case err := <-paused:
		t.Fatalf("pause returned while a capture was in flight: %v", err)
	case <-time.After(30 * time.Millisecond):
	}
	close(release)

	select {
	case err := <-paused:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pause did not return after the capture finished")
	}
	flush(t, env.svc, sess.SessionID)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), captures.Load(), "no capture after pause")
	records, err := env.svc.ListRecords(ctx, sess.SessionID, domain.RecordFilter{})
	require.NoError(t, err)
	assert.Len(t, records, 1)

	got, err := env.svc.GetSession(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusPaused, got.Status)
}
