package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/Pythonista7/context-tracker-backend/internal/config"
	"github.com/Pythonista7/context-tracker-backend/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewAnalyzerSelectsProvider(t *testing.T) {
	cfg := config.Default()
	cfg.Provider = "mock"
	a, err := NewAnalyzer(cfg, discardLogger())
	if err != nil {
		t.Fatalf("NewAnalyzer failed: %v", err)
	}
	if a.Name() != "mock" {
		t.Fatalf("expected mock analyzer, got %s", a.Name())
	}

	cfg.Provider = "Anthropic"
	cfg.Anthropic.APIKey = "k"
	a, err = NewAnalyzer(cfg, discardLogger())
	if err != nil {
		t.Fatalf("NewAnalyzer failed: %v", err)
	}
	if a.Name() != "anthropic" {
		t.Fatalf("expected anthropic analyzer, got %s", a.Name())
	}
}

func TestNewAnalyzerUnknownProvider(t *testing.T) {
	cfg := config.Default()
	cfg.Provider = "bogus"
	_, err := NewAnalyzer(cfg, discardLogger())
	if err == nil || !strings.Contains(err.Error(), "bogus") {
		t.Fatalf("expected unknown provider error, got %v", err)
	}
}

func TestNewAnalyzerMockMode(t *testing.T) {
	t.Setenv(EnvTrackerMode, ModeMock)
	cfg := config.Default()
	cfg.Provider = "openai"
	cfg.OpenAI.APIKey = ""
	a, err := NewAnalyzer(cfg, discardLogger())
	if err != nil {
		t.Fatalf("NewAnalyzer failed: %v", err)
	}
	if a.Name() != "mock" {
		t.Fatalf("expected mock analyzer, got %s", a.Name())
	}
}

func TestMockAnalyzer(t *testing.T) {
	m := NewMockAnalyzer()
	ctx := context.Background()

	payload, err := m.Analyze(ctx, domain.RawFrame{Data: []byte("abc"), MIMEType: "image/png", Ref: "shot.png"})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	var activity domain.ScreenActivity
	if err := json.Unmarshal(payload, &activity); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if activity.Summary != "[MOCK] 3 bytes of image/png" || len(activity.Resources) != 1 {
		t.Fatalf("unexpected activity: %+v", activity)
	}

	if _, err := m.Analyze(ctx, domain.RawFrame{}); !errors.Is(err, domain.ErrMalformed) {
		t.Fatalf("expected malformed error for empty frame, got %v", err)
	}

	text, err := m.Summarize(ctx, []json.RawMessage{payload, payload})
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if !strings.HasPrefix(text, "[MOCK] Session of 2 observations.") {
		t.Fatalf("unexpected summary: %q", text)
	}
}

func TestParseObject(t *testing.T) {
	got, err := parseObject("```json\n{ \"a\": 1 }\n```")
	if err != nil {
		t.Fatalf("parseObject failed: %v", err)
	}
	if string(got) != `{"a":1}` {
		t.Fatalf("unexpected object: %s", got)
	}

	for _, in := range []string{"", "[1,2]", "\"text\"", "not json"} {
		if _, err := parseObject(in); !errors.Is(err, domain.ErrMalformed) {
			t.Fatalf("expected malformed for %q, got %v", in, err)
		}
	}
}

func TestBuildSummaryPrompt(t *testing.T) {
	prompt := BuildSummaryPrompt([]json.RawMessage{
		json.RawMessage(`{ "summary": "one" }`),
		json.RawMessage(`{"summary":"two"}`),
	})
	if !strings.Contains(prompt, "2 observations") {
		t.Fatalf("missing count: %s", prompt)
	}
	if !strings.Contains(prompt, `[1] {"summary":"one"}`) || !strings.Contains(prompt, `[2] {"summary":"two"}`) {
		t.Fatalf("missing payloads: %s", prompt)
	}
}
