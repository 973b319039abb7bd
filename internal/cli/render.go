package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/mpalmer/goalplan/internal/plan"
	"github.com/mpalmer/goalplan/internal/stages"
	"github.com/mpalmer/goalplan/internal/styles"
)

func renderPlan(w io.Writer, p *plan.Plan) {
	fmt.Fprintln(w, styles.TitleStyle.Render(p.Goal.OriginalGoal))
	fmt.Fprintln(w, styles.SubtleStyle.Render(fmt.Sprintf(
		"plan %s  |  %s complexity  |  deadline: %s",
		p.ID, p.Goal.Complexity, p.Goal.ParsedDeadline)))
	if p.Goal.RecommendedApproach != "" {
		fmt.Fprintln(w, styles.SubtleStyle.Render(p.Goal.RecommendedApproach))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, styles.HighlightStyle.Render("Tasks"))
	for _, t := range p.Tasks {
		status := ""
		if t.Status == plan.TaskStatusCompleted {
			status = styles.SuccessStyle.Render(" [done]")
		}
		fmt.Fprintf(w, "  %s (score %d, %.1fh) %s%s\n",
			t.ID, t.PriorityScore, t.EstimatedHours, t.Description, status)
	}
	fmt.Fprintln(w)

	renderSchedule(w, p.Schedule)

	fmt.Fprintln(w, styles.SubtleStyle.Render(fmt.Sprintf(
		"%d tasks over %d days, %.1fh total (%.1fh/day average)",
		p.Summary.TasksScheduled, p.Summary.TotalDays,
		p.Summary.TotalHours, p.Summary.AverageHoursPerDay)))
}

func renderSchedule(w io.Writer, schedule []plan.ScheduleDay) {
	fmt.Fprintln(w, styles.HighlightStyle.Render("Schedule"))
	for _, day := range schedule {
		fmt.Fprintf(w, "  Day %d  %s (%s, %.1fh)\n", day.Day, day.Date, day.TimeOfDay, day.TotalHours)
		for _, inst := range day.Tasks {
			fmt.Fprintf(w, "    %s  %s  %.1fh  %s\n",
				inst.StartTime, inst.TaskID, inst.Duration, inst.TaskDescription)
		}
	}
	fmt.Fprintln(w)
}

func renderFeasibility(w io.Writer, f plan.Feasibility) {
	line := fmt.Sprintf("Load: %.0f%% of capacity. %s", f.LoadPercent, f.Recommendation)
	switch {
	case !f.IsFeasible:
		fmt.Fprintln(w, styles.WarningStyle.Render(fmt.Sprintf(
			"%d overloaded day(s). %s", f.OverloadedDays, line)))
	case f.LoadPercent > 80:
		fmt.Fprintln(w, styles.WarningStyle.Render(line))
	default:
		fmt.Fprintln(w, styles.SuccessStyle.Render(line))
	}
}

func renderReflection(w io.Writer, r *stages.Reflection, replanned bool) {
	fmt.Fprintln(w, styles.TitleStyle.Render("Reflection"))
	fmt.Fprintf(w, "Completion rate: %s  On-time rate: %s\n",
		styles.HighlightStyle.Render(fmt.Sprintf("%.0f%%", r.CompletionRate)),
		styles.HighlightStyle.Render(fmt.Sprintf("%.0f%%", r.OnTimeRate)))
	fmt.Fprintln(w, styles.SubtleStyle.Render("Tendency: "+r.Analysis.UserTendency))
	if r.Analysis.WhyTasksMissed != "" {
		fmt.Fprintln(w, r.Analysis.WhyTasksMissed)
	}

	for _, insight := range r.Insights {
		fmt.Fprintf(w, "  - %s\n", insight)
	}
	for _, c := range r.Adjustments.PriorityChanges {
		fmt.Fprintf(w, "  - %s reprioritized to %d: %s\n", c.TaskID, c.NewPriority, c.Reason)
	}
	if r.Adjustments.RecommendedBufferPercent > 0 {
		fmt.Fprintln(w, styles.SubtleStyle.Render(fmt.Sprintf(
			"Recommended buffer: %.0f%%", r.Adjustments.RecommendedBufferPercent)))
	}

	if replanned {
		fmt.Fprintln(w, styles.WarningStyle.Render("Too much slipped; the remaining tasks were rescheduled."))
	}
	fmt.Fprintln(w)
}

func renderFallbackNotice(w io.Writer, fallbackSteps []string) {
	if len(fallbackSteps) == 0 {
		return
	}
	fmt.Fprintln(w, styles.WarningStyle.Render(
		"Generated without backend help: "+strings.Join(fallbackSteps, ", ")))
}
