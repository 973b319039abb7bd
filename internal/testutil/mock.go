// Package testutil provides testing utilities for the goalplan project.
package testutil

import (
	"context"
	"os/exec"
)

// MockCommandFunc creates a mock command that outputs the given response.
// Usage: ai.CommandContext = testutil.MockCommandFunc(jsonResponse)
func MockCommandFunc(output string) func(ctx context.Context, name string, args ...string) *exec.Cmd {
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "echo", "-n", output)
	}
}

// FailingCommandFunc creates a mock command that always exits non-zero,
// simulating an unavailable generation backend.
func FailingCommandFunc() func(ctx context.Context, name string, args ...string) *exec.Cmd {
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "sh", "-c", "exit 1")
	}
}

// FakeLookPath pretends the named binary exists.
// Usage: ai.LookPath = testutil.FakeLookPath
func FakeLookPath(file string) (string, error) {
	return "/usr/local/bin/" + file, nil
}
