package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mpalmer/goalplan/internal/ai"
	"github.com/mpalmer/goalplan/internal/memory"
	"github.com/mpalmer/goalplan/internal/plan"
	"github.com/mpalmer/goalplan/internal/stages"
)

// scriptedGenerator replays one canned response per call, in order. Calls
// past the script fail as an exhausted backend.
type scriptedGenerator struct {
	responses []string
	calls     int
}

func (s *scriptedGenerator) Generate(_ context.Context, _ string, _ ai.Options) (string, error) {
	s.calls++
	if s.calls > len(s.responses) {
		return "", fmt.Errorf("%w: script exhausted", ai.ErrAllBackendsExhausted)
	}
	return s.responses[s.calls-1], nil
}

func offlineOrchestrator() *Orchestrator {
	return New(&scriptedGenerator{}, nil)
}

func TestCreatePlanFallbackEndToEnd(t *testing.T) {
	o := offlineOrchestrator()

	result, err := o.CreatePlan(context.Background(), "Learn Python basics in 2 weeks", CreateOptions{UserID: "u1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := result.Plan
	if p == nil {
		t.Fatal("plan is nil")
	}
	if p.ID == "" || p.UserID != "u1" {
		t.Errorf("identity = %q/%q, want generated id and u1", p.ID, p.UserID)
	}
	if p.Goal.OriginalGoal != "Learn Python basics in 2 weeks" {
		t.Errorf("OriginalGoal = %q", p.Goal.OriginalGoal)
	}
	if len(p.Tasks) == 0 || len(p.Schedule) == 0 {
		t.Fatalf("tasks/schedule = %d/%d, want non-empty", len(p.Tasks), len(p.Schedule))
	}
	for i, task := range p.Tasks {
		if task.PriorityScore < 1 || task.PriorityScore > 10 {
			t.Errorf("task %d score %d out of [1,10]", i, task.PriorityScore)
		}
	}

	// The schedule redistributes hours but never invents or drops them.
	var scheduled float64
	for _, day := range p.Schedule {
		for _, inst := range day.Tasks {
			scheduled += inst.Duration
		}
	}
	if scheduled != p.Summary.TotalHours {
		t.Errorf("scheduled hours = %v, summary = %v, want equal", scheduled, p.Summary.TotalHours)
	}
	if p.Summary.TotalDays != len(p.Schedule) || p.Summary.TasksScheduled != len(p.Tasks) {
		t.Errorf("summary = %+v, want totals matching plan", p.Summary)
	}

	// Every pre-assembly step ran on the fallback path.
	if len(result.Trace.Entries) != 5 {
		t.Fatalf("trace entries = %d, want 5", len(result.Trace.Entries))
	}
	fallbacks := result.Trace.FallbackSteps()
	if len(fallbacks) != 4 {
		t.Errorf("fallback steps = %v, want all 4 pipeline stages", fallbacks)
	}
	if result.Trace.Entries[4].Step != StepAssembled {
		t.Errorf("final step = %s, want %s", result.Trace.Entries[4].Step, StepAssembled)
	}
}

func TestCreatePlanEmptyGoalIsFatal(t *testing.T) {
	o := offlineOrchestrator()

	result, err := o.CreatePlan(context.Background(), "  ", CreateOptions{})
	if !errors.Is(err, stages.ErrEmptyGoal) {
		t.Fatalf("error = %v, want ErrEmptyGoal", err)
	}
	if result.Plan != nil {
		t.Error("plan should be nil on a fatal stage error")
	}
	if len(result.Trace.Entries) != 0 {
		t.Errorf("trace = %v, want empty before the first step completes", result.Trace.Entries)
	}
}

func TestCreatePlanExplicitPreferences(t *testing.T) {
	o := offlineOrchestrator()
	prefs := plan.Preferences{
		AvailableHoursPerDay: 2,
		PreferredStudyTimes:  []string{plan.TimeEvening},
		BufferTimePercent:    0,
		StartDate:            time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC),
	}

	result, err := o.CreatePlan(context.Background(), "Learn to juggle", CreateOptions{Preferences: &prefs})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	schedule := result.Plan.Schedule
	if schedule[0].Date != "2026-04-06" {
		t.Errorf("first date = %s, want explicit start date", schedule[0].Date)
	}
	for i, day := range schedule {
		if day.TimeOfDay != plan.TimeEvening {
			t.Errorf("day %d timeOfDay = %s, want evening", i, day.TimeOfDay)
		}
	}
}

func TestResolvePreferencesDerivesMissingHours(t *testing.T) {
	o := offlineOrchestrator()
	desc := plan.GoalDescriptor{ParsedDeadline: "urgent"}

	got := o.resolvePreferences(nil, desc)
	if got.AvailableHoursPerDay != 6 {
		t.Errorf("nil prefs hours = %v, want 6 from urgent deadline", got.AvailableHoursPerDay)
	}

	// Setting only the buffer must not pin the hours to the default.
	partial := &plan.Preferences{BufferTimePercent: 25}
	got = o.resolvePreferences(partial, desc)
	if got.AvailableHoursPerDay != 6 {
		t.Errorf("partial prefs hours = %v, want derived 6", got.AvailableHoursPerDay)
	}
	if got.BufferTimePercent != 25 {
		t.Errorf("buffer = %v, want explicit 25 kept", got.BufferTimePercent)
	}

	explicit := &plan.Preferences{AvailableHoursPerDay: 2}
	if got = o.resolvePreferences(explicit, desc); got.AvailableHoursPerDay != 2 {
		t.Errorf("explicit hours = %v, want 2 untouched", got.AvailableHoursPerDay)
	}
}

func TestDeriveHoursPerDay(t *testing.T) {
	tests := []struct {
		deadline string
		want     float64
	}{
		{"urgent", 6},
		{"tomorrow", 6},
		{"ASAP", 6},
		{"3 days", 5},
		{"2 weeks", 4},
		{plan.DeadlineNotSpecified, 4},
	}
	for _, tt := range tests {
		if got := deriveHoursPerDay(tt.deadline); got != tt.want {
			t.Errorf("deriveHoursPerDay(%q) = %v, want %v", tt.deadline, got, tt.want)
		}
	}
}

func adjustablePlan() *plan.Plan {
	return &plan.Plan{
		ID:     "p1",
		UserID: "u1",
		Tasks: []plan.Task{
			{ID: "t01", Description: "Read chapter", EstimatedHours: 2, Priority: plan.PriorityHigh, Order: 1, Status: plan.TaskStatusPending, PriorityScore: 8},
			{ID: "t02", Description: "Exercises", EstimatedHours: 2, Priority: plan.PriorityMedium, Order: 2, Status: plan.TaskStatusPending, PriorityScore: 6},
			{ID: "t03", Description: "Project", EstimatedHours: 3, Priority: plan.PriorityMedium, Order: 3, Status: plan.TaskStatusPending, PriorityScore: 5},
		},
		Schedule: []plan.ScheduleDay{
			{
				Day: 1, Date: "2026-03-02", TimeOfDay: plan.TimeMorning, TotalHours: 4.8,
				Tasks: []plan.ScheduledTask{
					{TaskID: "t01", Duration: 2, BufferAfter: 0.4, PriorityScore: 8, StartTime: "09:00"},
					{TaskID: "t02", Duration: 2, BufferAfter: 0.4, PriorityScore: 6, StartTime: "11:24"},
				},
			},
			{
				Day: 2, Date: "2026-03-03", TimeOfDay: plan.TimeMorning, TotalHours: 3.6,
				Tasks: []plan.ScheduledTask{
					{TaskID: "t03", Duration: 3, BufferAfter: 0.6, PriorityScore: 5, StartTime: "09:00"},
				},
			},
		},
	}
}

func TestAdjustPlanAppliesAdjustments(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{`{
		"analysis": {"whyTasksMissed": "", "userTendency": "realistic"},
		"adjustments": {
			"scheduleChanges": [],
			"priorityChanges": [{"taskId": "t03", "newPriority": 9, "reason": "deadline pressure"}],
			"recommendedBufferPercent": 25
		},
		"memoryUpdates": [],
		"insights": []
	}`}}
	o := New(gen, nil)

	p := adjustablePlan()
	done := time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)
	progress := []plan.TaskProgress{
		{TaskID: "t01", Status: plan.TaskStatusCompleted, CompletedTime: done, CompletedOnTime: true},
		{TaskID: "t02", Status: plan.TaskStatusCompleted, CompletedTime: done, CompletedOnTime: true},
	}

	mem := memory.New()
	result, err := o.AdjustPlan(context.Background(), p, progress, mem, plan.DefaultPreferences())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Replanned {
		t.Error("100% completion should not trigger replanning")
	}
	if p.Tasks[0].Status != plan.TaskStatusCompleted || p.Tasks[1].Status != plan.TaskStatusCompleted {
		t.Error("completed observations not marked on plan tasks")
	}
	if p.Tasks[2].Status != plan.TaskStatusPending {
		t.Error("unobserved task must stay pending")
	}
	if got := p.Schedule[1].Tasks[0].PriorityScore; got != 9 {
		t.Errorf("t03 score = %d, want adjusted 9", got)
	}
	// 25% buffer recompute: 3h task gets 0.75.
	if got := p.Schedule[1].Tasks[0].BufferAfter; got != 0.75 {
		t.Errorf("t03 buffer = %v, want 0.75", got)
	}
	if mem.Stats.TotalTasksAttempted != 2 || mem.Stats.TotalTasksCompleted != 2 {
		t.Errorf("memory stats = %+v, want 2/2", mem.Stats)
	}
	if len(result.Trace.Entries) != 1 || result.Trace.Entries[0].Step != StepReflection {
		t.Errorf("trace = %+v, want single reflection step", result.Trace.Entries)
	}
}

func TestAdjustPlanFallbackReflectionKeepsSchedule(t *testing.T) {
	o := offlineOrchestrator()

	p := adjustablePlan()
	done := time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)
	progress := []plan.TaskProgress{
		{TaskID: "t01", Status: plan.TaskStatusCompleted, CompletedTime: done, CompletedOnTime: true},
		{TaskID: "t02", Status: plan.TaskStatusCompleted, CompletedTime: done, CompletedOnTime: true},
	}

	result, err := o.AdjustPlan(context.Background(), p, progress, memory.New(), plan.DefaultPreferences())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Replanned {
		t.Fatal("100% completion should not trigger replanning")
	}
	if got := result.Reflection.Adjustments.RecommendedBufferPercent; got != 15 {
		t.Fatalf("recommended buffer = %v, want 15 at full completion", got)
	}

	// Without a parsed adjustment object, no partial patch: buffers and day
	// totals stay exactly as they were.
	if got := p.Schedule[0].Tasks[0].BufferAfter; got != 0.4 {
		t.Errorf("t01 buffer = %v, want original 0.4", got)
	}
	if got := p.Schedule[1].Tasks[0].BufferAfter; got != 0.6 {
		t.Errorf("t03 buffer = %v, want original 0.6", got)
	}
	if p.Schedule[0].TotalHours != 4.8 || p.Schedule[1].TotalHours != 3.6 {
		t.Errorf("day totals = %v/%v, want original 4.8/3.6",
			p.Schedule[0].TotalHours, p.Schedule[1].TotalHours)
	}
}

func TestAdjustPlanReplansOnLowCompletion(t *testing.T) {
	o := offlineOrchestrator()

	p := adjustablePlan()
	done := time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)
	progress := []plan.TaskProgress{
		{TaskID: "t01", Status: plan.TaskStatusCompleted, CompletedTime: done, CompletedOnTime: true},
		{TaskID: "t02", Status: plan.TaskStatusMissed},
		{TaskID: "t03", Status: plan.TaskStatusMissed},
	}

	result, err := o.AdjustPlan(context.Background(), p, progress, memory.New(), plan.DefaultPreferences())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Replanned {
		t.Fatal("33% completion should trigger replanning")
	}

	// Only the incomplete tasks are rescheduled.
	ids := map[string]bool{}
	for _, day := range p.Schedule {
		for _, inst := range day.Tasks {
			ids[inst.TaskID] = true
		}
	}
	if ids["t01"] {
		t.Error("completed task must not be rescheduled")
	}
	if !ids["t02"] || !ids["t03"] {
		t.Errorf("rescheduled ids = %v, want t02 and t03", ids)
	}
	if p.Summary.TasksScheduled != 2 || p.Summary.TotalHours != 5 {
		t.Errorf("summary = %+v, want 2 tasks / 5 hours remaining", p.Summary)
	}

	// The fallback reflection recommends a 30% buffer below 60% completion;
	// the rebuilt schedule carries it.
	if got := p.Schedule[0].Tasks[0].BufferAfter; got != p.Schedule[0].Tasks[0].Duration*0.3 {
		t.Errorf("buffer = %v, want 30%% of %v", got, p.Schedule[0].Tasks[0].Duration)
	}

	last := result.Trace.Entries[len(result.Trace.Entries)-1]
	if last.Step != StepReplanning {
		t.Errorf("final trace step = %s, want %s", last.Step, StepReplanning)
	}
}

func TestAdjustPlanNilPlan(t *testing.T) {
	o := offlineOrchestrator()
	if _, err := o.AdjustPlan(context.Background(), nil, nil, memory.New(), plan.DefaultPreferences()); !errors.Is(err, ErrNilPlan) {
		t.Fatalf("error = %v, want ErrNilPlan", err)
	}
}
