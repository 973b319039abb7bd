// Package ai wraps the external text-generation backend and the defensive
// JSON extraction every pipeline stage performs on its output.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// claudeResponse represents the JSON structure returned by Claude Code CLI
// when using --output-format json.
type claudeResponse struct {
	Type    string `json:"type"`
	Result  string `json:"result"`
	IsError bool   `json:"is_error"`
}

// CommandContext is the function used to create exec.Cmd instances.
// It can be replaced in tests to mock command execution.
var CommandContext = exec.CommandContext

// LookPath is the function used to locate the claude binary.
// It can be replaced in tests to pretend claude exists.
var LookPath = exec.LookPath

// ErrAllBackendsExhausted is returned once every backend/attempt combination
// has failed. It wraps the last underlying error.
var ErrAllBackendsExhausted = errors.New("all generation backends exhausted")

// DefaultModels is the ranked list of candidate backends tried in order when
// the caller does not pin a model.
var DefaultModels = []string{"sonnet", "haiku"}

// Default generation options. The retry budget is intentionally small and
// fixed: every caller has its own deterministic fallback and must not block
// indefinitely, so there is no backoff growth and no circuit breaker.
const (
	DefaultMaxTokens  = 500
	DefaultMaxRetries = 3
	DefaultRetryDelay = time.Second
)

// Options configure a single Generate call.
type Options struct {
	// Model pins a single backend. Empty means try the client's ranked list.
	Model string
	// MaxTokens caps the response size for backends that support it.
	MaxTokens int
	// MaxRetries is the attempt budget per backend.
	MaxRetries int
	// RetryDelay is the fixed pause between attempts.
	RetryDelay time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	return o
}

// Generator is the single capability the pipeline consumes from its
// environment: text in, text out, may fail or time out. Stages depend on
// this interface so tests can substitute deterministic fakes.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
}

// Client issues prompts to the Claude Code CLI, trying each candidate model
// in rank order with a bounded number of attempts per model.
type Client struct {
	models []string
	log    *zap.Logger
}

// NewClient creates a generation client. With no models, the ranked default
// list is used.
func NewClient(log *zap.Logger, models ...string) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	if len(models) == 0 {
		models = DefaultModels
	}
	return &Client{models: models, log: log}
}

// IsClaudeAvailable checks if the claude command exists in PATH.
func IsClaudeAvailable() bool {
	_, err := LookPath("claude")
	return err == nil
}

// Generate tries each candidate backend in order, attempting each up to
// MaxRetries times with a fixed inter-attempt delay, and returns the first
// successful response's content. It fails with ErrAllBackendsExhausted only
// after every backend/attempt combination has failed.
func (c *Client) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	opts = opts.withDefaults()

	candidates := c.models
	if opts.Model != "" {
		candidates = []string{opts.Model}
	}

	var lastErr error
	for _, model := range candidates {
		for attempt := 1; attempt <= opts.MaxRetries; attempt++ {
			out, err := c.invoke(ctx, prompt, model)
			if err == nil {
				return out, nil
			}
			lastErr = err
			c.log.Warn("generation attempt failed",
				zap.String("model", model),
				zap.Int("attempt", attempt),
				zap.Error(err))

			if ctx.Err() != nil {
				return "", fmt.Errorf("%w: %w", ErrAllBackendsExhausted, ctx.Err())
			}
			if attempt < opts.MaxRetries {
				select {
				case <-ctx.Done():
					return "", fmt.Errorf("%w: %w", ErrAllBackendsExhausted, ctx.Err())
				case <-time.After(opts.RetryDelay):
				}
			}
		}
	}

	return "", fmt.Errorf("%w: %w", ErrAllBackendsExhausted, lastErr)
}

// invoke runs one claude -p invocation against a specific model.
// --dangerously-skip-permissions is required for non-interactive use. This is
// safe here because we only use the -p flag with a controlled prompt (no file
// access or tool use).
func (c *Client) invoke(ctx context.Context, prompt, model string) (string, error) {
	if !IsClaudeAvailable() {
		return "", errors.New("claude CLI not found in PATH")
	}

	args := []string{"-p", prompt, "--output-format", "json", "--dangerously-skip-permissions"}
	if model != "" {
		args = append(args, "--model", model)
	}

	cmd := CommandContext(ctx, "claude", args...)
	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", errors.New("generation timed out")
		}
		if ctx.Err() == context.Canceled {
			return "", errors.New("generation was cancelled")
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("claude command failed: %s", string(exitErr.Stderr))
		}
		return "", fmt.Errorf("failed to execute claude command: %w", err)
	}

	// Unwrap the CLI response envelope when present; raw text otherwise.
	var resp claudeResponse
	if err := json.Unmarshal(output, &resp); err == nil && resp.Type == "result" {
		if resp.IsError {
			return "", errors.New("claude returned an error: " + resp.Result)
		}
		return resp.Result, nil
	}

	return strings.TrimSpace(string(output)), nil
}

// OfflineGenerator always fails with ErrAllBackendsExhausted, forcing every
// stage onto its deterministic fallback path. Used by --offline mode and in
// tests.
type OfflineGenerator struct{}

// Generate implements Generator.
func (OfflineGenerator) Generate(context.Context, string, Options) (string, error) {
	return "", fmt.Errorf("%w: offline mode", ErrAllBackendsExhausted)
}
