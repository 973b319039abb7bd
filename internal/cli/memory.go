package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mpalmer/goalplan/internal/styles"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Show what has been learned about your study habits",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		mem, _, err := s.GetMemory(flagUser)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, styles.TitleStyle.Render("Memory for "+flagUser))

		if mem.Stats.TotalTasksAttempted == 0 && len(mem.Patterns) == 0 {
			fmt.Fprintln(out, styles.SubtleStyle.Render("Nothing yet. Run `goalplan reflect` after working on a plan."))
			return nil
		}

		if mem.Stats.TotalTasksAttempted > 0 {
			fmt.Fprintf(out, "Completion rate: %s (%d of %d tasks)\n",
				styles.HighlightStyle.Render(fmt.Sprintf("%.0f%%", mem.CompletionRate)),
				mem.Stats.TotalTasksCompleted, mem.Stats.TotalTasksAttempted)
		}
		if len(mem.PreferredTimes) > 0 {
			fmt.Fprintf(out, "Preferred times: %v\n", mem.PreferredTimes)
		}
		for _, p := range mem.Patterns {
			fmt.Fprintf(out, "  %s  %s\n",
				styles.HighlightStyle.Render(p.Pattern),
				styles.SubtleStyle.Render(fmt.Sprintf("%s (confidence %.1f, seen %d times)",
					p.Description, p.Confidence, p.Occurrences)))
		}
		return nil
	},
}
