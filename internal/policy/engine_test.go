package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultPolicy(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, DefaultPolicy)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	d, err := engine.Evaluate(ctx, Input{SessionID: "s1"})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !d.Allowed() {
		t.Fatalf("expected capture, got %+v", d)
	}

	d, err = engine.Evaluate(ctx, Input{SessionID: "s1", Metadata: map[string]string{"private": "true"}})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if d.Allowed() || d.Reason != "session marked private" {
		t.Fatalf("expected skip, got %+v", d)
	}
}

func TestStringDecisionPolicy(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, `
package capture_policy

default decision = "capture"

decision = "skip" {
	input.hour < 8
}
`)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	d, err := engine.Evaluate(ctx, Input{Hour: 3})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if d.Action != ActionSkip {
		t.Fatalf("expected skip at night, got %+v", d)
	}

	d, err = engine.Evaluate(ctx, Input{Hour: 10})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if d.Action != ActionCapture {
		t.Fatalf("expected capture, got %+v", d)
	}
}

func TestLoadEngineFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.rego")
	content := "package capture_policy\n\ndefault decision = \"skip\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	engine, err := LoadEngine(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadEngine failed: %v", err)
	}
	d, err := engine.Evaluate(context.Background(), Input{})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if d.Allowed() {
		t.Fatalf("expected skip, got %+v", d)
	}

	if _, err := LoadEngine(context.Background(), filepath.Join(t.TempDir(), "missing.rego")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestInvalidPolicy(t *testing.T) {
	if _, err := NewEngine(context.Background(), "package capture_policy\n\ndecision = {"); err == nil {
		t.Fatalf("expected compile error")
	}
}
