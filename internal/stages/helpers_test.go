package stages

import (
	"context"
	"errors"
	"fmt"

	"github.com/mpalmer/goalplan/internal/ai"
)

// fakeGenerator returns a canned response (or error) and records the last
// prompt, so tests can drive both the generated and fallback paths without
// a live backend.
type fakeGenerator struct {
	response   string
	err        error
	lastPrompt string
	calls      int
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string, _ ai.Options) (string, error) {
	f.calls++
	f.lastPrompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

// failingGenerator simulates a fully unavailable backend.
func failingGenerator() *fakeGenerator {
	return &fakeGenerator{err: fmt.Errorf("%w: %w", ai.ErrAllBackendsExhausted, errors.New("backend down"))}
}
