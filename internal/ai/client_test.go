package ai

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/mpalmer/goalplan/internal/testutil"
	"go.uber.org/zap"
)

// withFakeClaude pretends the claude binary exists and mocks its execution.
func withFakeClaude(t *testing.T, cmdFunc func(ctx context.Context, name string, args ...string) *exec.Cmd) {
	t.Helper()
	origLook := LookPath
	origCmd := CommandContext
	LookPath = testutil.FakeLookPath
	CommandContext = cmdFunc
	t.Cleanup(func() {
		LookPath = origLook
		CommandContext = origCmd
	})
}

func fastOptions() Options {
	return Options{MaxRetries: 2, RetryDelay: time.Millisecond}
}

func TestGenerateSuccessEnvelope(t *testing.T) {
	withFakeClaude(t, testutil.MockCommandFunc(`{"type":"result","result":"generated text","is_error":false}`))

	client := NewClient(zap.NewNop())
	got, err := client.Generate(context.Background(), "prompt", fastOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "generated text" {
		t.Errorf("Generate = %q, want %q", got, "generated text")
	}
}

func TestGenerateRawOutput(t *testing.T) {
	withFakeClaude(t, testutil.MockCommandFunc(`plain model output`))

	client := NewClient(zap.NewNop())
	got, err := client.Generate(context.Background(), "prompt", fastOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "plain model output" {
		t.Errorf("Generate = %q, want raw output", got)
	}
}

func TestGenerateExhaustsAllBackends(t *testing.T) {
	calls := 0
	withFakeClaude(t, func(ctx context.Context, name string, args ...string) *exec.Cmd {
		calls++
		return exec.CommandContext(ctx, "sh", "-c", "exit 1")
	})

	client := NewClient(zap.NewNop(), "model-a", "model-b")
	_, err := client.Generate(context.Background(), "prompt", fastOptions())
	if err == nil {
		t.Fatal("expected error after all backends fail")
	}
	if !errors.Is(err, ErrAllBackendsExhausted) {
		t.Errorf("error = %v, want ErrAllBackendsExhausted", err)
	}
	// Two models, two attempts each.
	if calls != 4 {
		t.Errorf("backend invocations = %d, want 4", calls)
	}
}

func TestGeneratePinnedModelSkipsRankedList(t *testing.T) {
	calls := 0
	withFakeClaude(t, func(ctx context.Context, name string, args ...string) *exec.Cmd {
		calls++
		return exec.CommandContext(ctx, "sh", "-c", "exit 1")
	})

	client := NewClient(zap.NewNop(), "model-a", "model-b")
	opts := fastOptions()
	opts.Model = "pinned"
	_, err := client.Generate(context.Background(), "prompt", opts)
	if !errors.Is(err, ErrAllBackendsExhausted) {
		t.Fatalf("error = %v, want ErrAllBackendsExhausted", err)
	}
	// One pinned model, two attempts.
	if calls != 2 {
		t.Errorf("backend invocations = %d, want 2", calls)
	}
}

func TestGenerateCommandFailure(t *testing.T) {
	withFakeClaude(t, testutil.FailingCommandFunc())

	client := NewClient(zap.NewNop(), "model-a")
	_, err := client.Generate(context.Background(), "prompt", fastOptions())
	if !errors.Is(err, ErrAllBackendsExhausted) {
		t.Fatalf("error = %v, want ErrAllBackendsExhausted", err)
	}
}

func TestGenerateErrorEnvelope(t *testing.T) {
	withFakeClaude(t, testutil.MockCommandFunc(`{"type":"result","result":"overloaded","is_error":true}`))

	client := NewClient(zap.NewNop(), "model-a")
	_, err := client.Generate(context.Background(), "prompt", fastOptions())
	if !errors.Is(err, ErrAllBackendsExhausted) {
		t.Fatalf("error = %v, want ErrAllBackendsExhausted", err)
	}
}

func TestGenerateUnavailableBinary(t *testing.T) {
	origLook := LookPath
	LookPath = func(string) (string, error) { return "", errors.New("not found") }
	t.Cleanup(func() { LookPath = origLook })

	client := NewClient(zap.NewNop(), "model-a")
	_, err := client.Generate(context.Background(), "prompt", fastOptions())
	if !errors.Is(err, ErrAllBackendsExhausted) {
		t.Fatalf("error = %v, want ErrAllBackendsExhausted", err)
	}
}

func TestOfflineGenerator(t *testing.T) {
	var gen Generator = OfflineGenerator{}
	_, err := gen.Generate(context.Background(), "prompt", Options{})
	if !errors.Is(err, ErrAllBackendsExhausted) {
		t.Errorf("error = %v, want ErrAllBackendsExhausted", err)
	}
}

func TestOptionsDefaults(t *testing.T) {
	opts := Options{}.withDefaults()
	if opts.MaxTokens != DefaultMaxTokens {
		t.Errorf("MaxTokens = %d, want %d", opts.MaxTokens, DefaultMaxTokens)
	}
	if opts.MaxRetries != DefaultMaxRetries {
		t.Errorf("MaxRetries = %d, want %d", opts.MaxRetries, DefaultMaxRetries)
	}
	if opts.RetryDelay != DefaultRetryDelay {
		t.Errorf("RetryDelay = %v, want %v", opts.RetryDelay, DefaultRetryDelay)
	}
}
