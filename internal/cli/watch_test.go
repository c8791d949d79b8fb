package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pythonista7/context-tracker-backend/internal/domain"
	"github.com/Pythonista7/context-tracker-backend/internal/transport/ws"
)

func TestStreamURL(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{"localhost:8080", "ws://localhost:8080/v1/sessions/sess_1/stream"},
		{"http://127.0.0.1:9000/", "ws://127.0.0.1:9000/v1/sessions/sess_1/stream"},
		{"https://tracker.example/api", "wss://tracker.example/api/v1/sessions/sess_1/stream"},
	}
	for _, tt := range tests {
		got, err := streamURL(tt.addr, "sess_1")
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.addr)
	}
}

func TestWatchPrintsStream(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := ws.NewHub(logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	lookup := func(ctx context.Context, sessionID string) (*domain.Session, error) {
		return &domain.Session{SessionID: sessionID}, nil
	}
	e := echo.New()
	e.GET("/v1/sessions/:session_id/stream", ws.NewServer(hub, lookup, logger).HandleStream)
	server := httptest.NewServer(e)
	defer server.Close()

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"watch", "sess_w", "--addr", server.URL, "--count", "2"})

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool { return hub.HasSubscribers("sess_w") }, 2*time.Second, 5*time.Millisecond)
	hub.Publish("sess_w", domain.StreamMessage{
		Type:      domain.StreamMessageRecord,
		SessionID: "sess_w",
		Record: &domain.ContextRecord{
			SessionID: "sess_w",
			Sequence:  3,
			Status:    domain.AnalysisStatusSucceeded,
			Payload:   []byte(`{"summary":"editing config"}`),
		},
	})
	hub.Publish("sess_w", domain.StreamMessage{
		Type:      domain.StreamMessageEvent,
		SessionID: "sess_w",
		Event:     &domain.Event{SessionID: "sess_w", Ts: time.Now().UnixMilli(), Type: domain.EventTypeCaptureSkipped},
	})

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("watch did not exit after two messages")
	}
	assert.Contains(t, out.String(), "record #3 SUCCEEDED retries=0 | editing config")
	assert.Contains(t, out.String(), "capture_skipped")
}
