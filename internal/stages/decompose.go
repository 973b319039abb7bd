package stages

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mpalmer/goalplan/internal/ai"
	"github.com/mpalmer/goalplan/internal/plan"
	"github.com/mpalmer/goalplan/internal/util"
)

// ErrEmptyDecomposition is fatal: the pipeline cannot proceed without at
// least one task, and neither generation nor the fallback produced any.
var ErrEmptyDecomposition = errors.New("decomposition produced no tasks")

// taskPayload is one entry of the decomposition output contract. Hours and
// order are decoded loosely because models emit them as numbers or strings.
type taskPayload struct {
	Description    string `json:"description"`
	EstimatedHours any    `json:"estimatedHours"`
	Priority       string `json:"priority"`
	Order          any    `json:"order"`
}

// fallbackShape maps goal complexity to the synthetic task count and the
// per-task base hours used when generation yields nothing usable.
var fallbackShape = map[string]struct {
	count     int
	baseHours float64
}{
	plan.ComplexityHigh:   {5, 3},
	plan.ComplexityMedium: {4, 2},
	plan.ComplexityLow:    {3, 1.5},
}

var fallbackTemplates = []string{
	"Research fundamentals and gather learning resources for %s",
	"Set up your environment and work through an introductory tutorial on %s",
	"Practice the core concepts of %s with focused exercises",
	"Apply %s in a small end-to-end project",
	"Review, fill gaps, and consolidate notes on %s",
}

// DecomposeTasks turns a goal descriptor into an ordered list of atomic
// tasks with clamped hour estimates. It never returns an empty list with a
// nil error: a run that produces zero tasks from every path is fatal.
func DecomposeTasks(ctx context.Context, gen ai.Generator, goal plan.GoalDescriptor) ([]plan.Task, Source, error) {
	payload, err := generate(ctx, gen, buildDecomposePrompt(goal), ai.Options{})
	if err != nil {
		return fallbackTasks(goal)
	}

	var parsed []taskPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		// Not an array: the contract is broken, synthesize instead.
		return fallbackTasks(goal)
	}

	tasks := make([]plan.Task, 0, len(parsed))
	for i, p := range parsed {
		desc := strings.TrimSpace(p.Description)
		if desc == "" {
			continue
		}

		hours, ok := toFloat(p.EstimatedHours)
		if !ok {
			hours = plan.DefaultEstimatedHours
		}

		priority := strings.ToLower(strings.TrimSpace(p.Priority))
		if !plan.ValidPriority(priority) {
			priority = plan.PriorityMedium
		}

		order, ok := toInt(p.Order)
		if !ok || order < 1 {
			order = i + 1
		}

		tasks = append(tasks, plan.Task{
			Description:    desc,
			EstimatedHours: plan.ClampHours(hours),
			Priority:       priority,
			Order:          order,
			Status:         plan.TaskStatusPending,
			Goal:           goal.OriginalGoal,
		})
	}

	if len(tasks) == 0 {
		return fallbackTasks(goal)
	}

	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].Order < tasks[j].Order })
	for i := range tasks {
		tasks[i].ID = util.GenerateTaskID(i)
		tasks[i].Order = i + 1
	}

	return tasks, SourceGenerated, nil
}

func buildDecomposePrompt(goal plan.GoalDescriptor) string {
	return fmt.Sprintf(`You are a study planner. Break this goal into concrete tasks.

GOAL: %s
SUBJECT: %s
COMPLEXITY: %s
DEADLINE: %s

OUTPUT REQUIREMENTS:
Return a JSON array of 3-10 task objects, ordered logically:
[
  {
    "description": "One concrete, atomic unit of work",
    "estimatedHours": 2.5,
    "priority": "high, medium, or low",
    "order": 1
  }
]

TASK GUIDELINES:
- Tasks must be completable in sequence (later tasks can build on earlier ones)
- Estimate hours realistically; no task should exceed 40 hours
- Order tasks so fundamentals come first

Return ONLY the JSON array, no markdown formatting or explanation.`,
		goal.OriginalGoal, goal.Subject, goal.Complexity, goal.ParsedDeadline)
}

// fallbackTasks synthesizes a complexity-scaled task list from templates.
// The first two tasks are high priority, the rest medium.
func fallbackTasks(goal plan.GoalDescriptor) ([]plan.Task, Source, error) {
	shape, ok := fallbackShape[goal.Complexity]
	if !ok {
		shape = fallbackShape[plan.ComplexityMedium]
	}

	subject := goal.Subject
	if subject == "" {
		subject = goal.OriginalGoal
	}
	if subject == "" {
		return nil, SourceFallback, ErrEmptyDecomposition
	}

	tasks := make([]plan.Task, 0, shape.count)
	for i := 0; i < shape.count && i < len(fallbackTemplates); i++ {
		priority := plan.PriorityMedium
		if i < 2 {
			priority = plan.PriorityHigh
		}
		tasks = append(tasks, plan.Task{
			ID:             util.GenerateTaskID(i),
			Description:    fmt.Sprintf(fallbackTemplates[i], subject),
			EstimatedHours: plan.RoundHalf(shape.baseHours),
			Priority:       priority,
			Order:          i + 1,
			Status:         plan.TaskStatusPending,
			Goal:           goal.OriginalGoal,
		})
	}

	return tasks, SourceFallback, nil
}
