// Package orchestrator drives the plan-synthesis pipeline end to end: goal
// analysis, decomposition, scoring, and scheduling for plan creation, plus
// the reflection loop that adapts an existing plan to observed progress.
package orchestrator

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mpalmer/goalplan/internal/ai"
	"github.com/mpalmer/goalplan/internal/memory"
	"github.com/mpalmer/goalplan/internal/plan"
	"github.com/mpalmer/goalplan/internal/stages"
)

// ErrNilPlan is returned when an adjustment is requested without a plan.
var ErrNilPlan = errors.New("no plan to adjust")

var (
	urgentDeadlinePattern = regexp.MustCompile(`(?i)(urgent|asap|tomorrow)`)
	shortDeadlinePattern  = regexp.MustCompile(`(?i)\d+\s*days?\b`)
)

// Orchestrator wires the pipeline stages to one generation backend. The
// zero value is not usable; construct with New.
type Orchestrator struct {
	gen ai.Generator
	log *zap.Logger

	// TraceSink, when set, receives every trace entry as it is recorded.
	TraceSink *TraceLogger
}

// New returns an orchestrator using the given generation backend. A nil
// logger disables logging.
func New(gen ai.Generator, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{gen: gen, log: log}
}

// CreateOptions parameterizes plan creation. Preferences left nil, or with
// an unset AvailableHoursPerDay, get a daily hour budget derived from the
// goal's parsed deadline.
type CreateOptions struct {
	UserID      string
	UserContext plan.UserContext
	Preferences *plan.Preferences
}

// RunResult is the outcome of a creation run. On a fatal stage error Plan is
// nil and Trace records the steps that completed before the failure.
type RunResult struct {
	Plan  *plan.Plan
	Trace Trace
}

// CreatePlan runs the full synthesis pipeline for a free-text goal. Only two
// failures are fatal: an empty goal and an empty decomposition; every other
// degradation lands in the trace as a fallback step.
func (o *Orchestrator) CreatePlan(ctx context.Context, goal string, opts CreateOptions) (*RunResult, error) {
	result := &RunResult{}

	desc, src, err := stages.AnalyzeGoal(ctx, o.gen, goal)
	if err != nil {
		return result, err
	}
	o.record(&result.Trace, StepGoalAnalysis, src, "complexity "+desc.Complexity+", deadline "+desc.ParsedDeadline)
	o.log.Info("goal analyzed",
		zap.String("subject", desc.Subject),
		zap.String("complexity", desc.Complexity),
		zap.String("source", string(src)))

	prefs := o.resolvePreferences(opts.Preferences, desc)

	tasks, src, err := stages.DecomposeTasks(ctx, o.gen, desc)
	if err != nil {
		return result, err
	}
	o.record(&result.Trace, StepDecomposition, src, "")
	o.log.Info("goal decomposed", zap.Int("tasks", len(tasks)), zap.String("source", string(src)))

	userCtx := opts.UserContext
	if userCtx.Deadline == "" {
		userCtx.Deadline = desc.ParsedDeadline
	}
	src = stages.ScoreTasks(ctx, o.gen, tasks, userCtx)
	o.record(&result.Trace, StepScoring, src, "")
	o.log.Info("tasks scored", zap.String("source", string(src)))

	schedule, src := stages.BuildSchedule(ctx, o.gen, tasks, prefs)
	o.record(&result.Trace, StepSchedule, src, "")
	o.log.Info("schedule built", zap.Int("days", len(schedule)), zap.String("source", string(src)))

	now := time.Now()
	result.Plan = &plan.Plan{
		ID:        uuid.NewString(),
		UserID:    opts.UserID,
		Goal:      desc,
		Tasks:     tasks,
		Schedule:  schedule,
		Summary:   buildSummary(tasks, schedule, now),
		CreatedAt: now,
	}
	o.record(&result.Trace, StepAssembled, stages.SourceGenerated, "plan "+result.Plan.ID)
	return result, nil
}

// resolvePreferences fills in scheduling preferences. Explicit values win;
// the daily hour budget is derived from the deadline's urgency whenever it
// was left unset, not only when the whole struct is missing.
func (o *Orchestrator) resolvePreferences(explicit *plan.Preferences, desc plan.GoalDescriptor) plan.Preferences {
	if explicit == nil {
		prefs := plan.DefaultPreferences()
		prefs.AvailableHoursPerDay = deriveHoursPerDay(desc.ParsedDeadline)
		return prefs
	}
	prefs := *explicit
	if prefs.AvailableHoursPerDay <= 0 {
		prefs.AvailableHoursPerDay = deriveHoursPerDay(desc.ParsedDeadline)
	}
	return prefs
}

// deriveHoursPerDay sizes the daily budget from the deadline: urgent
// language gets 6 hours, a day-count deadline gets 5, anything else the
// default 4.
func deriveHoursPerDay(deadline string) float64 {
	switch {
	case urgentDeadlinePattern.MatchString(deadline):
		return 6
	case shortDeadlinePattern.MatchString(deadline):
		return 5
	default:
		return 4
	}
}

func buildSummary(tasks []plan.Task, schedule []plan.ScheduleDay, now time.Time) plan.Summary {
	s := plan.Summary{
		TotalDays:      len(schedule),
		TotalHours:     plan.TotalEstimatedHours(tasks),
		TasksScheduled: len(tasks),
		GeneratedAt:    now,
	}
	if s.TotalDays > 0 {
		s.AverageHoursPerDay = s.TotalHours / float64(s.TotalDays)
	}
	return s
}

// AdjustResult is the outcome of one reflection pass.
type AdjustResult struct {
	Plan       *plan.Plan
	Reflection *stages.Reflection
	Memory     *memory.UserMemory
	Replanned  bool
	Trace      Trace
}

// AdjustPlan reflects observed progress back into a plan: completed tasks
// are marked, memory is updated, and the schedule is either patched with the
// reflection's adjustments or rebuilt from scratch for the remaining tasks
// when the reflection warrants replanning. The plan is mutated in place and
// also returned.
func (o *Orchestrator) AdjustPlan(ctx context.Context, p *plan.Plan, progress []plan.TaskProgress, mem *memory.UserMemory, prefs plan.Preferences) (*AdjustResult, error) {
	if p == nil {
		return nil, ErrNilPlan
	}
	if mem == nil {
		mem = memory.New()
	}

	result := &AdjustResult{Plan: p, Memory: mem}

	reflection, src := stages.Reflect(ctx, o.gen, p.Schedule, progress, mem)
	result.Reflection = reflection
	o.record(&result.Trace, StepReflection, src, "")
	o.log.Info("reflection complete",
		zap.Float64("completionRate", reflection.CompletionRate),
		zap.String("tendency", reflection.Analysis.UserTendency),
		zap.String("source", string(src)))

	markCompleted(p, progress)
	stages.UpdateMemory(mem, reflection, progress, time.Now())

	if reflection.Adjustments.RecommendedBufferPercent > 0 {
		prefs.BufferTimePercent = reflection.Adjustments.RecommendedBufferPercent
	}

	if stages.NeedsReplanning(reflection) {
		remaining := incompleteTasks(p.Tasks)
		schedule, src := stages.BuildSchedule(ctx, o.gen, remaining, prefs)
		p.Schedule = schedule
		p.Summary = buildSummary(remaining, schedule, time.Now())
		result.Replanned = true
		o.record(&result.Trace, StepReplanning, src, "")
		o.log.Info("schedule rebuilt", zap.Int("remainingTasks", len(remaining)), zap.String("source", string(src)))
	} else if src == stages.SourceGenerated {
		// A fallback reflection carries no parsed adjustment object, so the
		// schedule is left exactly as it was.
		stages.ApplyAdjustments(p.Schedule, reflection.Adjustments)
	}

	return result, nil
}

// markCompleted flips plan tasks to completed for every completed
// observation that matches by task ID.
func markCompleted(p *plan.Plan, progress []plan.TaskProgress) {
	completed := make(map[string]bool, len(progress))
	for _, obs := range progress {
		if obs.Status == plan.TaskStatusCompleted {
			completed[obs.TaskID] = true
		}
	}
	for i := range p.Tasks {
		if completed[p.Tasks[i].ID] {
			p.Tasks[i].Status = plan.TaskStatusCompleted
		}
	}
}

func incompleteTasks(tasks []plan.Task) []plan.Task {
	var remaining []plan.Task
	for _, t := range tasks {
		if t.Status != plan.TaskStatusCompleted {
			remaining = append(remaining, t)
		}
	}
	return remaining
}

func (o *Orchestrator) record(t *Trace, step string, src stages.Source, detail string) {
	t.record(step, src, detail)
	if o.TraceSink == nil {
		return
	}
	if err := o.TraceSink.Log(t.Entries[len(t.Entries)-1]); err != nil {
		o.log.Warn("trace sink write failed", zap.Error(err))
	}
}
