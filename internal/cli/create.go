package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mpalmer/goalplan/internal/orchestrator"
	"github.com/mpalmer/goalplan/internal/plan"
)

var (
	createDeadline string
	createTendency string
	createTrace    string
)

var createCmd = &cobra.Command{
	Use:   "create <goal>",
	Short: "Create a plan from a free-text goal",
	Long:  `Create a plan by analyzing a goal, decomposing it into tasks, scoring them, and packing them into a day-by-day schedule. Scheduling preferences left unset are derived from the goal's deadline.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		goal := strings.Join(args, " ")

		prefs, err := buildPreferences(cmd.Flags())
		if err != nil {
			return err
		}

		log := newLogger()
		defer log.Sync()

		o := orchestrator.New(newGenerator(log), log)
		if createTrace != "" {
			o.TraceSink = orchestrator.NewTraceLogger(createTrace)
		}

		result, err := o.CreatePlan(context.Background(), goal, orchestrator.CreateOptions{
			UserID: flagUser,
			UserContext: plan.UserContext{
				Deadline:     createDeadline,
				UserTendency: createTendency,
			},
			Preferences: prefs,
		})
		if err != nil {
			return err
		}

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.SavePlan(result.Plan); err != nil {
			return err
		}

		renderPlan(cmd.OutOrStdout(), result.Plan)
		renderFallbackNotice(cmd.OutOrStdout(), result.Trace.FallbackSteps())
		return nil
	},
}

func init() {
	createCmd.Flags().StringVar(&createDeadline, "deadline", "", "Deadline hint overriding the one parsed from the goal")
	createCmd.Flags().StringVar(&createTendency, "tendency", "", "Self-reported planning tendency (e.g. procrastinator)")
	createCmd.Flags().StringVar(&createTrace, "trace", "", "Append pipeline trace entries to this JSONL file")
	registerPreferenceFlags(createCmd.Flags())
}

func registerPreferenceFlags(flags *pflag.FlagSet) {
	flags.Float64("hours-per-day", 0, "Available study hours per day")
	flags.Float64("buffer", 0, "Buffer time percentage between tasks")
	flags.String("start", "", "Schedule start date (YYYY-MM-DD)")
	flags.StringSlice("times", nil, "Preferred study times (morning, afternoon, evening)")
}

// buildPreferences returns nil when no scheduling flag was set. Only flags
// the user actually passed are filled in; fields left at their zero value
// are derived downstream (hours from the goal's deadline, the rest from the
// scheduling defaults).
func buildPreferences(flags *pflag.FlagSet) (*plan.Preferences, error) {
	changed := false
	for _, name := range []string{"hours-per-day", "buffer", "start", "times"} {
		if flags.Changed(name) {
			changed = true
			break
		}
	}
	if !changed {
		return nil, nil
	}

	var prefs plan.Preferences
	if flags.Changed("hours-per-day") {
		hours, err := flags.GetFloat64("hours-per-day")
		if err != nil {
			return nil, err
		}
		if hours <= 0 {
			return nil, fmt.Errorf("--hours-per-day must be positive")
		}
		prefs.AvailableHoursPerDay = hours
	}
	if flags.Changed("buffer") {
		buffer, err := flags.GetFloat64("buffer")
		if err != nil {
			return nil, err
		}
		if buffer < 0 || buffer > 100 {
			return nil, fmt.Errorf("--buffer must be between 0 and 100")
		}
		prefs.BufferTimePercent = buffer
	}
	if flags.Changed("start") {
		raw, err := flags.GetString("start")
		if err != nil {
			return nil, err
		}
		start, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, fmt.Errorf("invalid --start date %q, want YYYY-MM-DD", raw)
		}
		prefs.StartDate = start
	}
	if flags.Changed("times") {
		times, err := flags.GetStringSlice("times")
		if err != nil {
			return nil, err
		}
		for _, t := range times {
			if t != plan.TimeMorning && t != plan.TimeAfternoon && t != plan.TimeEvening {
				return nil, fmt.Errorf("invalid study time %q, want morning, afternoon, or evening", t)
			}
		}
		prefs.PreferredStudyTimes = times
	}
	return &prefs, nil
}
