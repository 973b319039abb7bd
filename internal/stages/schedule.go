package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/mpalmer/goalplan/internal/ai"
	"github.com/mpalmer/goalplan/internal/plan"
)

var startTimePattern = regexp.MustCompile(`^([01]?\d|2[0-3]):[0-5]\d$`)

type scheduleInstancePayload struct {
	TaskID          string `json:"taskId"`
	TaskDescription string `json:"taskDescription"`
	StartTime       string `json:"startTime"`
	Duration        any    `json:"duration"`
}

type scheduleDayPayload struct {
	Day       any                       `json:"day"`
	Date      string                    `json:"date"`
	TimeOfDay string                    `json:"timeOfDay"`
	Tasks     []scheduleInstancePayload `json:"tasks"`
}

// BuildSchedule places scored tasks into a day-by-day calendar. The
// generated path is normalized hard enough to keep the hour-conservation
// invariant (instance durations always equal task estimates, every task is
// placed exactly once); anything unusable degrades to the deterministic
// first-fit packing. BuildSchedule never fails: one of the two paths always
// yields a non-empty schedule for a non-empty task list.
func BuildSchedule(ctx context.Context, gen ai.Generator, tasks []plan.Task, prefs plan.Preferences) ([]plan.ScheduleDay, Source) {
	prefs = normalizePrefs(prefs)
	if len(tasks) == 0 {
		return nil, SourceGenerated
	}

	payload, err := generate(ctx, gen, buildSchedulePrompt(tasks, prefs), ai.Options{})
	if err != nil {
		return fallbackSchedule(tasks, prefs), SourceFallback
	}

	var parsed []scheduleDayPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return fallbackSchedule(tasks, prefs), SourceFallback
	}

	schedule, ok := normalizeSchedule(parsed, tasks, prefs)
	if !ok {
		return fallbackSchedule(tasks, prefs), SourceFallback
	}
	return schedule, SourceGenerated
}

func normalizePrefs(p plan.Preferences) plan.Preferences {
	if p.AvailableHoursPerDay <= 0 {
		p.AvailableHoursPerDay = 4
	}
	if len(p.PreferredStudyTimes) == 0 {
		p.PreferredStudyTimes = []string{plan.TimeMorning, plan.TimeAfternoon}
	}
	if p.BufferTimePercent <= 0 {
		p.BufferTimePercent = 20
	}
	if p.StartDate.IsZero() {
		p.StartDate = time.Now()
	}
	return p
}

func buildSchedulePrompt(tasks []plan.Task, prefs plan.Preferences) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You are a study planner. Build a day-by-day schedule for these tasks.

PREFERENCES:
- Available hours per day: %.1f
- Preferred study times: %s
- Buffer time between tasks: %.0f%% of task duration
- Start date: %s

TASKS (higher score should be scheduled earlier; preserve order as tie-break):
`, prefs.AvailableHoursPerDay, strings.Join(prefs.PreferredStudyTimes, ", "),
		prefs.BufferTimePercent, prefs.StartDate.Format("2006-01-02"))

	for _, t := range tasks {
		fmt.Fprintf(&b, "- %s [score %d, %.1fh, order %d] %s\n",
			t.ID, t.PriorityScore, t.EstimatedHours, t.Order, t.Description)
	}

	b.WriteString(`
OUTPUT REQUIREMENTS:
Return a JSON array of day objects:
[
  {
    "day": 1,
    "date": "2026-01-15",
    "timeOfDay": "morning, afternoon, or evening",
    "tasks": [
      {"taskId": "t01", "taskDescription": "...", "startTime": "09:00", "duration": 2.5}
    ]
  }
]

SCHEDULING RULES:
- Respect the daily hour cap including buffer time
- Distribute the load evenly across days
- Schedule every task exactly once

Return ONLY the JSON array, no markdown formatting or explanation.`)
	return b.String()
}

// normalizeSchedule repairs a generated schedule into a valid one. Each
// instance is resolved to an unplaced task (by canonical id, else the next
// unplaced task in input order) and takes that task's estimate as its
// duration; duplicate placements are dropped and unplaced tasks are appended
// to the final day. Returns false when no instance resolved at all.
func normalizeSchedule(parsed []scheduleDayPayload, tasks []plan.Task, prefs plan.Preferences) ([]plan.ScheduleDay, bool) {
	unplaced := make([]*plan.Task, len(tasks))
	byID := make(map[string]int, len(tasks))
	for i := range tasks {
		unplaced[i] = &tasks[i]
		byID[tasks[i].ID] = i
	}
	take := func(id string) *plan.Task {
		if idx, ok := byID[id]; ok && unplaced[idx] != nil {
			t := unplaced[idx]
			unplaced[idx] = nil
			return t
		}
		for i, t := range unplaced {
			if t != nil {
				unplaced[i] = nil
				return t
			}
		}
		return nil
	}

	var days []plan.ScheduleDay
	for pos, pd := range parsed {
		timeOfDay := strings.ToLower(strings.TrimSpace(pd.TimeOfDay))
		if timeOfDay != plan.TimeMorning && timeOfDay != plan.TimeAfternoon && timeOfDay != plan.TimeEvening {
			timeOfDay = plan.TimeMorning
		}

		day := plan.ScheduleDay{
			Day:       pos + 1,
			Date:      prefs.StartDate.AddDate(0, 0, pos).Format("2006-01-02"),
			TimeOfDay: timeOfDay,
		}
		if d, ok := toInt(pd.Day); ok && d >= 1 {
			day.Day = d
		}
		if _, err := time.Parse("2006-01-02", pd.Date); err == nil {
			day.Date = pd.Date
		}

		base := plan.BaseHour(day.TimeOfDay)
		var acc float64
		for _, inst := range pd.Tasks {
			t := take(inst.TaskID)
			if t == nil {
				continue
			}
			duration := t.EstimatedHours
			buffer := round2(duration * prefs.BufferTimePercent / 100)

			start := inst.StartTime
			if !startTimePattern.MatchString(start) {
				start = formatStartTime(base, acc)
			}

			day.Tasks = append(day.Tasks, plan.ScheduledTask{
				TaskID:          t.ID,
				TaskDescription: t.Description,
				PriorityScore:   t.PriorityScore,
				StartTime:       start,
				Duration:        duration,
				BufferAfter:     buffer,
			})
			acc += duration + buffer
		}

		if len(day.Tasks) == 0 {
			continue
		}
		day.TotalHours = round2(acc)
		days = append(days, day)
	}

	if len(days) == 0 {
		return nil, false
	}

	// Tasks the model never placed land on the final day.
	last := &days[len(days)-1]
	base := plan.BaseHour(last.TimeOfDay)
	acc := last.TotalHours
	for _, t := range unplaced {
		if t == nil {
			continue
		}
		buffer := round2(t.EstimatedHours * prefs.BufferTimePercent / 100)
		last.Tasks = append(last.Tasks, plan.ScheduledTask{
			TaskID:          t.ID,
			TaskDescription: t.Description,
			PriorityScore:   t.PriorityScore,
			StartTime:       formatStartTime(base, acc),
			Duration:        t.EstimatedHours,
			BufferAfter:     buffer,
		})
		acc += t.EstimatedHours + buffer
	}
	last.TotalHours = round2(acc)

	return days, true
}

// fallbackSchedule is the deterministic bin-packing path: first-fit,
// decreasing by score with input order as tie-break. A task whose buffered
// duration would overflow the daily cap closes the current day only if that
// day already holds a task, so a single oversized task gets its own day that
// exceeds the nominal cap. Feasibility analysis surfaces those days; they
// are not hidden here.
func fallbackSchedule(tasks []plan.Task, prefs plan.Preferences) []plan.ScheduleDay {
	ordered := make([]plan.Task, len(tasks))
	copy(ordered, tasks)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].PriorityScore != ordered[j].PriorityScore {
			return ordered[i].PriorityScore > ordered[j].PriorityScore
		}
		return ordered[i].Order < ordered[j].Order
	})

	newDay := func(index int) plan.ScheduleDay {
		timeOfDay := prefs.PreferredStudyTimes[index%len(prefs.PreferredStudyTimes)]
		return plan.ScheduleDay{
			Day:       index + 1,
			Date:      prefs.StartDate.AddDate(0, 0, index).Format("2006-01-02"),
			TimeOfDay: timeOfDay,
		}
	}

	var days []plan.ScheduleDay
	current := newDay(0)
	var acc float64

	closeDay := func() {
		current.TotalHours = round2(acc)
		days = append(days, current)
		current = newDay(len(days))
		acc = 0
	}

	for _, t := range ordered {
		buffer := round2(t.EstimatedHours * prefs.BufferTimePercent / 100)
		buffered := t.EstimatedHours + buffer

		if len(current.Tasks) > 0 && acc+buffered > prefs.AvailableHoursPerDay {
			closeDay()
		}

		current.Tasks = append(current.Tasks, plan.ScheduledTask{
			TaskID:          t.ID,
			TaskDescription: t.Description,
			PriorityScore:   t.PriorityScore,
			StartTime:       formatStartTime(plan.BaseHour(current.TimeOfDay), acc),
			Duration:        t.EstimatedHours,
			BufferAfter:     buffer,
		})
		acc += buffered
	}
	if len(current.Tasks) > 0 {
		current.TotalHours = round2(acc)
		days = append(days, current)
	}

	return days
}

// formatStartTime converts a base clock hour plus accumulated fractional
// hours into "HH:MM".
func formatStartTime(baseHour int, accumulated float64) string {
	hour := baseHour + int(accumulated)
	minutes := int((accumulated-math.Floor(accumulated))*60 + 0.5)
	if minutes >= 60 {
		hour++
		minutes -= 60
	}
	return fmt.Sprintf("%02d:%02d", hour%24, minutes)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
