package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mpalmer/goalplan/internal/ai"
	"github.com/mpalmer/goalplan/internal/memory"
	"github.com/mpalmer/goalplan/internal/plan"
	"github.com/mpalmer/goalplan/internal/util"
)

// Analysis is the interpretive half of a reflection.
type Analysis struct {
	WhyTasksMissed     string   `json:"whyTasksMissed"`
	IdentifiedPatterns []string `json:"identifiedPatterns"`
	UserTendency       string   `json:"userTendency"`
}

// PriorityChange rescores one scheduled task, matched by the plan task's ID.
type PriorityChange struct {
	TaskID      string `json:"taskId"`
	NewPriority int    `json:"newPriority"`
	Reason      string `json:"reason"`
}

// Adjustments are the actionable half of a reflection.
type Adjustments struct {
	ScheduleChanges          []string         `json:"scheduleChanges"`
	PriorityChanges          []PriorityChange `json:"priorityChanges"`
	RecommendedBufferPercent float64          `json:"recommendedBufferPercent"`
}

// Reflection is the full output of the reflection stage.
type Reflection struct {
	Analysis       Analysis               `json:"analysis"`
	Adjustments    Adjustments            `json:"adjustments"`
	MemoryUpdates  []memory.PatternUpdate `json:"memoryUpdates"`
	Insights       []string               `json:"insights"`
	CompletionRate float64                `json:"completionRate"`
	OnTimeRate     float64                `json:"onTimeRate"`
}

// Reflect analyzes observed task outcomes against the current schedule and
// long-term memory. Generation or parse failures degrade to the
// deterministic analysis; the stage itself never fails.
func Reflect(ctx context.Context, gen ai.Generator, schedule []plan.ScheduleDay, progress []plan.TaskProgress, mem *memory.UserMemory) (*Reflection, Source) {
	completionRate, onTimeRate := progressRates(progress)

	payload, err := generate(ctx, gen, buildReflectPrompt(schedule, progress, mem, completionRate, onTimeRate), ai.Options{})
	if err != nil {
		return fallbackReflection(progress, completionRate, onTimeRate), SourceFallback
	}

	var parsed Reflection
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return fallbackReflection(progress, completionRate, onTimeRate), SourceFallback
	}

	parsed.CompletionRate = completionRate
	parsed.OnTimeRate = onTimeRate
	if parsed.Analysis.UserTendency == "" {
		parsed.Analysis.UserTendency = classifyTendency(completionRate)
	}
	for i := range parsed.Adjustments.PriorityChanges {
		parsed.Adjustments.PriorityChanges[i].NewPriority = clampScore(parsed.Adjustments.PriorityChanges[i].NewPriority)
	}
	// Models name patterns freely; memory needs stable kebab-case keys to
	// merge repeat observations.
	for i := range parsed.MemoryUpdates {
		parsed.MemoryUpdates[i].Pattern = util.KebabCase(parsed.MemoryUpdates[i].Pattern)
	}

	return &parsed, SourceGenerated
}

// progressRates computes the completion rate over all observations and the
// on-time rate over completed ones, both as percentages.
func progressRates(progress []plan.TaskProgress) (completionRate, onTimeRate float64) {
	if len(progress) == 0 {
		return 0, 0
	}
	var completed, onTime int
	for _, p := range progress {
		if p.Status == plan.TaskStatusCompleted {
			completed++
			if p.CompletedOnTime {
				onTime++
			}
		}
	}
	completionRate = float64(completed) / float64(len(progress)) * 100
	if completed > 0 {
		onTimeRate = float64(onTime) / float64(completed) * 100
	}
	return completionRate, onTimeRate
}

func buildReflectPrompt(schedule []plan.ScheduleDay, progress []plan.TaskProgress, mem *memory.UserMemory, completionRate, onTimeRate float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You are a study coach reviewing a plan in progress.

OBSERVED OUTCOMES (completion rate %.0f%%, on-time rate %.0f%%):
`, completionRate, onTimeRate)

	for _, p := range progress {
		completedAt := "-"
		if !p.CompletedTime.IsZero() {
			completedAt = p.CompletedTime.Format(time.RFC3339)
		}
		fmt.Fprintf(&b, "- %s [%s] completed=%s onTime=%t score=%d\n",
			p.TaskID, p.Status, completedAt, p.CompletedOnTime, p.PriorityScore)
	}

	remainingTasks := 0
	for _, day := range schedule {
		remainingTasks += len(day.Tasks)
	}
	fmt.Fprintf(&b, "\nREMAINING SCHEDULE: %d days, %d scheduled task instances.\n", len(schedule), remainingTasks)

	if len(mem.Patterns) > 0 {
		b.WriteString("KNOWN PATTERNS:\n")
		for _, p := range mem.Patterns {
			fmt.Fprintf(&b, "- %s (%s, seen %d times)\n", p.Pattern, p.Description, p.Occurrences)
		}
	}

	b.WriteString(`
OUTPUT REQUIREMENTS:
Return a JSON object with this exact structure:
{
  "analysis": {
    "whyTasksMissed": "Short diagnosis",
    "identifiedPatterns": ["pattern descriptions"],
    "userTendency": "realistic, slightly optimistic, or overly optimistic"
  },
  "adjustments": {
    "scheduleChanges": ["described changes"],
    "priorityChanges": [{"taskId": "t03", "newPriority": 9, "reason": "..."}],
    "recommendedBufferPercent": 20
  },
  "memoryUpdates": [{"pattern": "kebab-case-key", "description": "...", "confidence": 0.7}],
  "insights": ["short observations for the user"]
}

Return ONLY the JSON, no markdown formatting or explanation.`)
	return b.String()
}

// fallbackReflection derives analysis from the observation set alone. The
// schedule is deliberately left unmodified on this path: without a parsed
// adjustment object no partial patch is attempted.
func fallbackReflection(progress []plan.TaskProgress, completionRate, onTimeRate float64) *Reflection {
	var completed, missed, eveningCompleted int
	for _, p := range progress {
		switch p.Status {
		case plan.TaskStatusCompleted:
			completed++
			if !p.CompletedTime.IsZero() && p.CompletedTime.Hour() >= 18 {
				eveningCompleted++
			}
		case plan.TaskStatusMissed:
			missed++
		}
	}

	r := &Reflection{
		CompletionRate: completionRate,
		OnTimeRate:     onTimeRate,
		Analysis: Analysis{
			WhyTasksMissed: "Scheduled sessions were likely too ambitious for the available time.",
			UserTendency:   classifyTendency(completionRate),
		},
	}

	if completionRate < 50 {
		r.Insights = append(r.Insights, "Completion rate is below 50%. Consider scheduling fewer hours per day.")
		r.Analysis.IdentifiedPatterns = append(r.Analysis.IdentifiedPatterns, "low completion rate")
	}
	if missed > completed {
		r.Insights = append(r.Insights, "More tasks were missed than completed. The plan may need smaller tasks or more buffer time.")
		r.Analysis.IdentifiedPatterns = append(r.Analysis.IdentifiedPatterns, "more missed than completed")
	}
	if completed > 0 && float64(eveningCompleted)/float64(completed) > 0.6 {
		r.Insights = append(r.Insights, "Most completed tasks were finished in the evening. Scheduling evening sessions may fit better.")
		r.Analysis.IdentifiedPatterns = append(r.Analysis.IdentifiedPatterns, "evening completion bias")
		r.MemoryUpdates = append(r.MemoryUpdates, memory.PatternUpdate{
			Pattern:     "evening-productivity",
			Description: "Completes most tasks in the evening",
			Confidence:  0.6,
		})
	}

	switch {
	case completionRate < 60:
		r.Adjustments.RecommendedBufferPercent = 30
	case completionRate < 80:
		r.Adjustments.RecommendedBufferPercent = 20
	default:
		r.Adjustments.RecommendedBufferPercent = 15
	}

	return r
}

// classifyTendency buckets a completion rate into the tendency labels used
// by scoring context.
func classifyTendency(completionRate float64) string {
	switch {
	case completionRate > 80:
		return "realistic"
	case completionRate > 50:
		return "slightly optimistic"
	default:
		return "overly optimistic"
	}
}

// ApplyAdjustments mutates a schedule with a reflection's adjustments:
// priority changes overwrite matching instances' scores, a recommended
// buffer percentage recomputes every instance's buffer, and each day's
// total is recomputed as the sum of duration plus buffer.
func ApplyAdjustments(schedule []plan.ScheduleDay, adj Adjustments) {
	changes := make(map[string]PriorityChange, len(adj.PriorityChanges))
	for _, c := range adj.PriorityChanges {
		if c.TaskID != "" {
			changes[c.TaskID] = c
		}
	}

	for di := range schedule {
		day := &schedule[di]
		var total float64
		for ti := range day.Tasks {
			inst := &day.Tasks[ti]
			if c, ok := changes[inst.TaskID]; ok {
				inst.PriorityScore = clampScore(c.NewPriority)
			}
			if adj.RecommendedBufferPercent > 0 {
				inst.BufferAfter = round2(inst.Duration * adj.RecommendedBufferPercent / 100)
			}
			total += inst.Duration + inst.BufferAfter
		}
		day.TotalHours = round2(total)
	}
}

// UpdateMemory folds a reflection into the user's long-term memory: pattern
// upserts, rolled-up stats from this observation set, and a preferred-time
// hint when completions cluster in the evening.
func UpdateMemory(mem *memory.UserMemory, r *Reflection, progress []plan.TaskProgress, now time.Time) {
	for _, u := range r.MemoryUpdates {
		mem.UpsertPattern(u, now)
	}

	var completed, eveningCompleted int
	for _, p := range progress {
		if p.Status == plan.TaskStatusCompleted {
			completed++
			if !p.CompletedTime.IsZero() && p.CompletedTime.Hour() >= 18 {
				eveningCompleted++
			}
		}
	}
	mem.RecordOutcomes(len(progress), completed)

	if completed > 0 && float64(eveningCompleted)/float64(completed) > 0.6 {
		mem.AddPreferredTime(plan.TimeEvening)
	}
}

// NeedsReplanning reports whether reflection output warrants rebuilding the
// schedule: a completion rate under 50%, more than 3 schedule changes, or
// more than 2 priority changes.
func NeedsReplanning(r *Reflection) bool {
	if r == nil {
		return false
	}
	return r.CompletionRate < 50 ||
		len(r.Adjustments.ScheduleChanges) > 3 ||
		len(r.Adjustments.PriorityChanges) > 2
}
