// Package stages implements the plan-synthesis pipeline stages: goal
// analysis, task decomposition, priority scoring, schedule construction, and
// reflection. Each stage prompts the generation backend under a strict
// output contract and degrades to a deterministic fallback when the call
// fails or returns unusable data. Stages are stateless request/response
// functions with an injected generation capability.
package stages

import (
	"context"
	"strconv"
	"strings"

	"github.com/mpalmer/goalplan/internal/ai"
)

// Source records which path produced a stage's artifact.
type Source string

const (
	// SourceGenerated means the artifact was parsed from backend output.
	SourceGenerated Source = "generated"
	// SourceFallback means the deterministic fallback produced the artifact.
	SourceFallback Source = "fallback"
)

// generate issues one prompt and extracts its JSON payload. A nil error
// means payload holds a valid JSON value; any failure reports which side
// (generation or parsing) broke so callers can trace it before falling back.
func generate(ctx context.Context, gen ai.Generator, prompt string, opts ai.Options) ([]byte, error) {
	raw, err := gen.Generate(ctx, prompt, opts)
	if err != nil {
		return nil, err
	}
	return ai.ExtractJSON(raw)
}

// toFloat coerces a decoded JSON value to float64. Models emit numbers as
// numbers or quoted strings interchangeably.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// toInt coerces a decoded JSON value to int.
func toInt(v any) (int, bool) {
	f, ok := toFloat(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// clampScore forces a priority score into [1,10].
func clampScore(s int) int {
	if s < 1 {
		return 1
	}
	if s > 10 {
		return 10
	}
	return s
}
