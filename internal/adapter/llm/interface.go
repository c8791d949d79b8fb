// Package llm provides the analyzer abstraction over LLM providers.
package llm

import (
	"context"
	"encoding/json"

	"github.com/Pythonista7/context-tracker-backend/internal/domain"
)

// Analyzer turns captures into semantic payloads and payloads into summaries.
// Errors wrap one of domain.ErrRateLimited, domain.ErrTimeout, domain.ErrAuth
// or domain.ErrMalformed when the failure class is known.
type Analyzer interface {
	// Analyze returns a JSON object describing the activity visible in frame.
	Analyze(ctx context.Context, frame domain.RawFrame) (json.RawMessage, error)

	// Summarize synthesizes a session summary from analyzed payloads, given
	// in ascending sequence order.
	Summarize(ctx context.Context, payloads []json.RawMessage) (string, error)

	// Name returns the provider name.
	Name() string
}

// Ensure implementations satisfy Analyzer.
var (
	_ Analyzer = (*OpenAIAnalyzer)(nil)
	_ Analyzer = (*AnthropicAnalyzer)(nil)
	_ Analyzer = (*MockAnalyzer)(nil)
)
