package cli

import (
	"github.com/spf13/cobra"

	"github.com/mpalmer/goalplan/internal/plan"
)

var showHoursPerDay float64

var showCmd = &cobra.Command{
	Use:   "show [plan-id]",
	Short: "Show a plan's tasks, schedule, and feasibility",
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
		renderPlan(out, p)
		renderFeasibility(out, plan.AnalyzeFeasibility(p.Schedule, showHoursPerDay))
		return nil
	},
}

func init() {
	showCmd.Flags().Float64Var(&showHoursPerDay, "hours-per-day", 4, "Daily hour cap used for the feasibility check")
}
