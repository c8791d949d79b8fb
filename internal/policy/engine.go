// Package policy decides whether a scheduled capture may be taken.
package policy

import (
	"context"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/rego"
)

// Capture actions.
const (
	ActionCapture = "capture"
	ActionSkip    = "skip"
)

// Decision is the outcome of a capture policy evaluation.
type Decision struct {
	Action string
	Reason string
}

// Allowed reports whether the capture may proceed.
func (d Decision) Allowed() bool {
	return d.Action != ActionSkip
}

// Input is the document a capture policy is evaluated against.
type Input struct {
	SessionID string            `json:"session_id"`
	Metadata  map[string]string `json:"metadata"`
	Hour      int               `json:"hour"`
	Weekday   string            `json:"weekday"`
}

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.capture_policy.decision"),
		rego.Module("capture_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// LoadEngine builds an engine from a policy file, or from DefaultPolicy when
// path is empty.
func LoadEngine(ctx context.Context, path string) (*Engine, error) {
	if path == "" {
		return NewEngine(ctx, DefaultPolicy)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return NewEngine(ctx, string(content))
}

// Evaluate checks the capture policy.
// The rule may yield a bare action string or an object {"action", "reason"}.
func (e *Engine) Evaluate(ctx context.Context, input Input) (Decision, error) {
	if input.Metadata == nil {
		input.Metadata = map[string]string{}
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Decision{}, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Decision{Action: ActionCapture, Reason: "default"}, nil
	}

	switch val := results[0].Expressions[0].Value.(type) {
	case string:
		return Decision{Action: val}, nil
	case map[string]interface{}:
		d := Decision{Action: ActionCapture}
		if action, ok := val["action"].(string); ok && action != "" {
			d.Action = action
		}
		if reason, ok := val["reason"].(string); ok {
			d.Reason = reason
		}
		return d, nil
	default:
		return Decision{Action: ActionCapture, Reason: "unexpected return type"}, nil
	}
}

// DefaultPolicy is the default policy content.
const DefaultPolicy = `
package capture_policy

default decision = {"action": "capture", "reason": ""}

# Sessions tagged private are never captured.
decision = {"action": "skip", "reason": "session marked private"} {
	input.metadata.private == "true"
}
`
