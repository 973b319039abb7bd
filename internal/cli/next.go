package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mpalmer/goalplan/internal/plan"
	"github.com/mpalmer/goalplan/internal/store"
	"github.com/mpalmer/goalplan/internal/styles"
)

var nextCmd = &cobra.Command{
	Use:   "next [plan-id]",
	Short: "Show the highest-priority task left to do",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		p, err := loadPlanArg(s, args)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		task := plan.NextTask(p, nil)
		if task == nil {
			fmt.Fprintln(out, styles.SuccessStyle.Render("All tasks are done."))
			return nil
		}

		fmt.Fprintf(out, "%s %s\n",
			styles.HighlightStyle.Render(task.ID+":"),
			task.Description)
		fmt.Fprintln(out, styles.SubtleStyle.Render(fmt.Sprintf(
			"score %d, %.1fh, %s priority", task.PriorityScore, task.EstimatedHours, task.Priority)))
		if task.ScoreReasoning != "" {
			fmt.Fprintln(out, styles.SubtleStyle.Render(task.ScoreReasoning))
		}
		return nil
	},
}

// loadPlanArg resolves the optional plan-id argument, defaulting to the
// user's most recent plan.
func loadPlanArg(s *store.Store, args []string) (*plan.Plan, error) {
	if len(args) > 0 {
		return s.GetPlan(args[0])
	}
	return s.LatestPlan(flagUser)
}
