package stages

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/mpalmer/goalplan/internal/ai"
	"github.com/mpalmer/goalplan/internal/plan"
)

// ErrEmptyGoal is the only fatal failure of goal analysis: there is nothing
// to analyze. Every other failure degrades to the heuristic descriptor.
var ErrEmptyGoal = errors.New("goal text is empty")

// deadlinePattern detects time constraints in free-text goals: time-unit
// words, the word "deadline", or "by <word>".
var deadlinePattern = regexp.MustCompile(`(?i)(\d+\s*(day|week|month|year)s?|\b(day|week|month|year)s?\b|deadline|by\s+\w+)`)

// goalPayload is the output contract for the goal-analysis prompt.
type goalPayload struct {
	ParsedDeadline      string `json:"parsedDeadline"`
	Subject             string `json:"subject"`
	Complexity          string `json:"complexity"`
	RecommendedApproach string `json:"recommendedApproach"`
}

// AnalyzeGoal turns a free-text goal into a structured descriptor. It fails
// only on empty input; generation or parse failures fall back to heuristics,
// so a caller always gets a usable descriptor otherwise.
func AnalyzeGoal(ctx context.Context, gen ai.Generator, goalText string) (plan.GoalDescriptor, Source, error) {
	goalText = strings.TrimSpace(goalText)
	if goalText == "" {
		return plan.GoalDescriptor{}, SourceFallback, ErrEmptyGoal
	}

	payload, err := generate(ctx, gen, buildGoalPrompt(goalText), ai.Options{})
	if err != nil {
		return fallbackGoalDescriptor(goalText), SourceFallback, nil
	}

	var parsed goalPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return fallbackGoalDescriptor(goalText), SourceFallback, nil
	}

	// Partial validity beats wholesale fallback: each bad field gets its
	// own default instead of rejecting the payload.
	desc := plan.GoalDescriptor{
		OriginalGoal:        goalText,
		ParsedDeadline:      strings.TrimSpace(parsed.ParsedDeadline),
		Subject:             strings.TrimSpace(parsed.Subject),
		Complexity:          strings.ToLower(strings.TrimSpace(parsed.Complexity)),
		RecommendedApproach: strings.TrimSpace(parsed.RecommendedApproach),
	}
	if desc.ParsedDeadline == "" {
		desc.ParsedDeadline = plan.DeadlineNotSpecified
	}
	if desc.Subject == "" {
		desc.Subject = truncate(goalText, 50)
	}
	if !plan.ValidComplexity(desc.Complexity) {
		desc.Complexity = plan.ComplexityMedium
	}
	if desc.RecommendedApproach == "" {
		desc.RecommendedApproach = "Work through the tasks in order, front-loading the fundamentals."
	}

	return desc, SourceGenerated, nil
}

func buildGoalPrompt(goalText string) string {
	return fmt.Sprintf(`You are a study planner. Analyze this goal and return a JSON object.

GOAL:
%s

OUTPUT REQUIREMENTS:
Return a JSON object with this exact structure:
{
  "parsedDeadline": "the deadline stated in the goal, or 'not specified'",
  "subject": "the subject being learned or worked on",
  "complexity": "low, medium, or high",
  "recommendedApproach": "One or two sentences on how to approach this goal"
}

Return ONLY the JSON, no markdown formatting or explanation.`, goalText)
}

// fallbackGoalDescriptor derives a descriptor from the goal text alone:
// deadline presence via a fixed regex, complexity from word count, subject
// from truncation.
func fallbackGoalDescriptor(goalText string) plan.GoalDescriptor {
	deadline := plan.DeadlineNotSpecified
	if m := deadlinePattern.FindString(goalText); m != "" {
		deadline = strings.TrimSpace(m)
	}

	words := len(strings.Fields(goalText))
	complexity := plan.ComplexityLow
	switch {
	case words > 20:
		complexity = plan.ComplexityHigh
	case words > 10:
		complexity = plan.ComplexityMedium
	}

	return plan.GoalDescriptor{
		OriginalGoal:        goalText,
		ParsedDeadline:      deadline,
		Subject:             truncate(goalText, 50),
		Complexity:          complexity,
		RecommendedApproach: "Break the goal into small daily sessions and review regularly.",
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n])
}
