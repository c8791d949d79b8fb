package llm

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/Pythonista7/context-tracker-backend/internal/config"
)

const (
	// EnvTrackerMode is the environment variable name for mode selection.
	EnvTrackerMode = "TRACKER_MODE"
	// ModeMock indicates mock mode should be used.
	ModeMock = "MOCK"
)

// Constructor builds an analyzer from configuration.
type Constructor func(cfg *config.Config) (Analyzer, error)

var registry = map[string]Constructor{
	"openai": func(cfg *config.Config) (Analyzer, error) {
		return NewOpenAIAnalyzer(cfg.OpenAI, cfg.AnalyzeTimeout)
	},
	"anthropic": func(cfg *config.Config) (Analyzer, error) {
		return NewAnthropicAnalyzer(cfg.Anthropic, cfg.AnalyzeTimeout)
	},
	"mock": func(cfg *config.Config) (Analyzer, error) {
		return NewMockAnalyzer(), nil
	},
}

// Providers returns the registered provider names.
func Providers() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewAnalyzer creates the analyzer selected by cfg.Provider.
// If TRACKER_MODE=MOCK, returns a MockAnalyzer regardless of the provider.
func NewAnalyzer(cfg *config.Config, logger *slog.Logger) (Analyzer, error) {
	if os.Getenv(EnvTrackerMode) == ModeMock {
		logger.Info("TRACKER_MODE=MOCK detected, using mock analyzer")
		return NewMockAnalyzer(), nil
	}

	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	constructor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown analyzer provider %q (available: %s)", cfg.Provider, strings.Join(Providers(), ", "))
	}
	analyzer, err := constructor(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s analyzer: %w", name, err)
	}
	logger.Info("analyzer configured", "provider", analyzer.Name())
	return analyzer, nil
}
