package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Pythonista7/context-tracker-backend/internal/domain"
)

// MockAnalyzer is a deterministic analyzer for testing and offline runs.
type MockAnalyzer struct{}

// NewMockAnalyzer creates a new mock analyzer.
func NewMockAnalyzer() *MockAnalyzer {
	return &MockAnalyzer{}
}

// Name returns the provider name.
func (m *MockAnalyzer) Name() string { return "mock" }

// Analyze returns a screen-activity payload derived from the frame metadata.
func (m *MockAnalyzer) Analyze(ctx context.Context, frame domain.RawFrame) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkFrame(frame); err != nil {
		return nil, err
	}

	topic := "mock"
	if frame.Context != "" {
		topic = frame.Context
	}
	activity := domain.ScreenActivity{
		MainTopic: topic,
		Activity:  "observing",
		Summary:   fmt.Sprintf("[MOCK] %d bytes of %s", len(frame.Data), frameMIME(frame)),
		Resources: []string{},
	}
	if frame.Ref != "" {
		activity.Resources = append(activity.Resources, frame.Ref)
	}
	return json.Marshal(activity)
}

// Summarize concatenates the observed summaries.
func (m *MockAnalyzer) Summarize(ctx context.Context, payloads []json.RawMessage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	parts := make([]string, 0, len(payloads))
	for _, p := range payloads {
		var activity domain.ScreenActivity
		if err := json.Unmarshal(p, &activity); err != nil || activity.Summary == "" {
			continue
		}
		parts = append(parts, activity.Summary)
	}
	return fmt.Sprintf("[MOCK] Session of %d observations. %s", len(payloads), strings.Join(parts, "; ")), nil
}
