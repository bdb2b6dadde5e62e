package gates

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/burl-dev/burl/internal/config"
)

func TestPlanPrefersBuildCommandOverProfile(t *testing.T) {
	cfg := &config.Config{
		BuildCommand:      "go build ./...",
		ValidationProfile: "full",
		ValidationProfiles: map[string][]config.ValidationStep{
			"full": {{Name: "lint", Command: "golangci-lint run"}},
		},
	}
	steps, err := Plan(cfg)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(steps) != 1 || steps[0].Command != "go build ./..." {
		t.Fatalf("unexpected plan: %+v", steps)
	}
}

func TestPlanRejectsUnknownProfile(t *testing.T) {
	cfg := &config.Config{ValidationProfile: "missing"}
	if _, err := Plan(cfg); err == nil {
		t.Fatalf("expected error for undefined validation_profile")
	}
}

func TestShouldRunStepSkipsWhenNoConditionMatches(t *testing.T) {
	step := config.ValidationStep{RunIfChangedExtensions: []string{"py"}}
	if ShouldRunStep(step, []string{"internal/frob.go"}) {
		t.Fatalf("expected step to be skipped")
	}
	if !ShouldRunStep(step, []string{"scripts/run.py"}) {
		t.Fatalf("expected step to run")
	}
}

func TestShouldRunStepWithNoConditionsAlwaysRuns(t *testing.T) {
	if !ShouldRunStep(config.ValidationStep{}, nil) {
		t.Fatalf("expected unconditional step to run")
	}
}

func TestRunStepCapturesFailureOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("runs a #!/bin/sh script as the step command")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "fail.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\necho boom\nexit 1\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	result := RunStep(context.Background(), dir, config.ValidationStep{Name: "check", Command: script})
	if result.Passed {
		t.Fatalf("expected failing step")
	}
	if result.Output == "" {
		t.Errorf("expected captured output")
	}
}

func TestRunStepPassesOnZeroExit(t *testing.T) {
	result := RunStep(context.Background(), t.TempDir(), config.ValidationStep{Name: "ok", Command: "true"})
	if !result.Passed {
		t.Fatalf("expected passing step, got %+v", result)
	}
}
