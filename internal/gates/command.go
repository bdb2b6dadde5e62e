package gates

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/burl-dev/burl/internal/config"
)

// outputCap bounds how much of a command's combined output is retained for
// QA-report inclusion: the last outputCap bytes, which is where the
// failure detail usually lives.
const outputCap = 16 * 1024

// StepResult is the outcome of one build_command or validation_profile
// step.
type StepResult struct {
	Name   string
	Argv   []string
	Passed bool
	Output string
	Err    error
}

// Plan resolves which steps to run for a given config: a single
// build_command step when build_command is set (validation_profile is then
// not consulted), otherwise the named validation profile's steps, and no
// steps when neither is configured. A validation_profile name that is not
// defined in validation_profiles is an error.
func Plan(cfg *config.Config) ([]config.ValidationStep, error) {
	if cfg.BuildCommand != "" {
		return []config.ValidationStep{{Name: "build_command", Command: cfg.BuildCommand}}, nil
	}
	if cfg.ValidationProfile == "" {
		return nil, nil
	}
	steps, ok := cfg.ValidationProfiles[cfg.ValidationProfile]
	if !ok {
		return nil, fmt.Errorf("validation_profile %q is not defined in validation_profiles", cfg.ValidationProfile)
	}
	return steps, nil
}

// ShouldRunStep reports whether step applies given the set of changed
// files, per its run_if_changed_extensions/run_if_changed_globs
// conditions. A step with neither condition always runs.
func ShouldRunStep(step config.ValidationStep, changedFiles []string) bool {
	if len(step.RunIfChangedExtensions) == 0 && len(step.RunIfChangedGlobs) == 0 {
		return true
	}
	exts := make(map[string]struct{}, len(step.RunIfChangedExtensions))
	for _, e := range step.RunIfChangedExtensions {
		exts[strings.ToLower(e)] = struct{}{}
	}
	for _, f := range changedFiles {
		clean := toSlash(f)
		if _, ok := exts[extensionOf(clean)]; ok {
			return true
		}
		if _, ok := matchAny(step.RunIfChangedGlobs, clean); ok {
			return true
		}
	}
	return false
}

// RunStep executes step.Command in dir as an argv array (no shell),
// returning the bounded tail of its combined output.
func RunStep(ctx context.Context, dir string, step config.ValidationStep) StepResult {
	argv, err := config.SplitShellWords(step.Command)
	if err != nil {
		return StepResult{Name: step.Name, Passed: false, Err: fmt.Errorf("splitting command %q: %w", step.Command, err)}
	}
	if len(argv) == 0 {
		return StepResult{Name: step.Name, Passed: false, Err: fmt.Errorf("command %q is empty", step.Name)}
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir

	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	runErr := cmd.Run()
	return StepResult{
		Name:   step.Name,
		Argv:   argv,
		Passed: runErr == nil,
		Output: boundedTail(combined.Bytes(), outputCap),
		Err:    runErr,
	}
}

func boundedTail(data []byte, n int) string {
	if len(data) <= n {
		return string(data)
	}
	return string(data[len(data)-n:])
}
