package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/mpalmer/goalplan/internal/ai"
	"github.com/mpalmer/goalplan/internal/plan"
)

// urgencyPattern flags deadlines that should pull scores upward.
var urgencyPattern = regexp.MustCompile(`(?i)(\d+\s*(day|week)s?|tomorrow|urgent)`)

// scorePayload is one entry of the scoring output contract, aligned to task
// input order by taskIndex.
type scorePayload struct {
	TaskIndex any    `json:"taskIndex"`
	Score     any    `json:"score"`
	Reasoning string `json:"reasoning"`
}

// ScoreTasks annotates every task with an integer urgency/importance score
// in [1,10], mutating the slice in place. Tasks the generated payload does
// not cover get a per-task heuristic score; a total generation or parse
// failure scores every task with the richer context-aware heuristic. The
// returned Source reports which path ran.
func ScoreTasks(ctx context.Context, gen ai.Generator, tasks []plan.Task, userCtx plan.UserContext) Source {
	if len(tasks) == 0 {
		return SourceGenerated
	}

	payload, err := generate(ctx, gen, buildScorePrompt(tasks, userCtx), ai.Options{})
	if err != nil {
		fallbackScoreAll(tasks, userCtx)
		return SourceFallback
	}

	var parsed []scorePayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		fallbackScoreAll(tasks, userCtx)
		return SourceFallback
	}

	byIndex := make(map[int]scorePayload, len(parsed))
	for _, p := range parsed {
		if idx, ok := toInt(p.TaskIndex); ok {
			byIndex[idx] = p
		}
	}

	for i := range tasks {
		entry, ok := byIndex[i]
		if !ok {
			tasks[i].PriorityScore = heuristicScore(&tasks[i])
			tasks[i].ScoreReasoning = "Scored heuristically: no model score for this task."
			continue
		}
		score, ok := toInt(entry.Score)
		if !ok {
			score = 5
		}
		tasks[i].PriorityScore = clampScore(score)
		tasks[i].ScoreReasoning = strings.TrimSpace(entry.Reasoning)
		if tasks[i].ScoreReasoning == "" {
			tasks[i].ScoreReasoning = "No reasoning provided."
		}
	}

	return SourceGenerated
}

func buildScorePrompt(tasks []plan.Task, userCtx plan.UserContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You are a study planner. Score each task 1-10 for urgency and importance.

USER CONTEXT:
- Deadline: %s
- Tendency: %s
- Tasks completed historically: %d
- Overdue tasks historically: %d

TASKS:
`, userCtx.Deadline, userCtx.UserTendency, userCtx.CompletedTasksCount, userCtx.OverdueHistory)

	for i, t := range tasks {
		fmt.Fprintf(&b, "%d. [%s, %.1fh] %s\n", i, t.Priority, t.EstimatedHours, t.Description)
	}

	b.WriteString(`
OUTPUT REQUIREMENTS:
Return a JSON array aligned to the task numbers above:
[
  {"taskIndex": 0, "score": 8, "reasoning": "Why this score"}
]

Return ONLY the JSON array, no markdown formatting or explanation.`)
	return b.String()
}

// heuristicScore is the per-task default for tasks the model skipped:
// base 5, adjusted for priority, with a small boost for the first two tasks.
func heuristicScore(t *plan.Task) int {
	score := 5
	switch t.Priority {
	case plan.PriorityHigh:
		score += 2
	case plan.PriorityLow:
		score--
	}
	if t.Order <= 2 {
		score++
	}
	return clampScore(score)
}

// fallbackScoreAll scores every task with the richer heuristic used when
// generation fails completely: priority weight, positional decay, deadline
// urgency, and a nudge toward early tasks for procrastinators.
func fallbackScoreAll(tasks []plan.Task, userCtx plan.UserContext) {
	urgent := urgencyPattern.MatchString(userCtx.Deadline)

	for i := range tasks {
		score := 5.0
		switch tasks[i].Priority {
		case plan.PriorityHigh:
			score += 3
		case plan.PriorityLow:
			score -= 2
		}

		if decay := 3 - float64(i)*0.5; decay > 0 {
			score += decay
		}
		if urgent {
			score += 2
		}
		if userCtx.UserTendency == "procrastinator" && i < 2 {
			score++
		}

		tasks[i].PriorityScore = clampScore(int(score + 0.5))
		tasks[i].ScoreReasoning = "Scored heuristically from priority, position, and deadline urgency."
	}
}
