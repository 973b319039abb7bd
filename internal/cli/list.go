package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mpalmer/goalplan/internal/styles"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List plans, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		plans, err := s.ListPlans(flagUser)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(plans) == 0 {
			fmt.Fprintln(out, styles.SubtleStyle.Render("No plans yet. Run `goalplan create` to make one."))
			return nil
		}

		for _, p := range plans {
			fmt.Fprintf(out, "%s  %s\n",
				styles.HighlightStyle.Render(p.ID),
				p.Goal.OriginalGoal)
			fmt.Fprintf(out, "      %s\n", styles.SubtleStyle.Render(fmt.Sprintf(
				"%d tasks, %d days, %.1fh total, created %s",
				len(p.Tasks), p.Summary.TotalDays, p.Summary.TotalHours,
				p.CreatedAt.Format("2006-01-02"))))
		}
		return nil
	},
}
