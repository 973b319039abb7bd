package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mpalmer/goalplan/internal/orchestrator"
	"github.com/mpalmer/goalplan/internal/plan"
	"github.com/mpalmer/goalplan/internal/store"
)

var (
	reflectProgress    string
	reflectHoursPerDay float64
)

var reflectCmd = &cobra.Command{
	Use:   "reflect [plan-id]",
	Short: "Reflect observed progress back into a plan",
	Long:  `Reflect reads a JSON file of task outcomes, analyzes them against the plan, updates your memory, and either patches the schedule or rebuilds it when too much has slipped.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		progress, err := readProgress(reflectProgress)
		if err != nil {
			return err
		}

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		lock := store.NewReflectLock(filepath.Dir(flagDB))
		if err := lock.Acquire(); err != nil {
			return err
		}
		defer lock.Release()

		p, err := loadPlanArg(s, args)
		if err != nil {
			return err
		}
		mem, memVersion, err := s.GetMemory(flagUser)
		if err != nil {
			return err
		}

		log := newLogger()
		defer log.Sync()

		prefs := plan.DefaultPreferences()
		if reflectHoursPerDay > 0 {
			prefs.AvailableHoursPerDay = reflectHoursPerDay
		}

		o := orchestrator.New(newGenerator(log), log)
		result, err := o.AdjustPlan(context.Background(), p, progress, mem, prefs)
		if err != nil {
			return err
		}

		if err := s.PutMemory(flagUser, result.Memory, memVersion); err != nil {
			return fmt.Errorf("saving memory: %w", err)
		}
		if err := s.SavePlan(result.Plan); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		renderReflection(out, result.Reflection, result.Replanned)
		if result.Replanned {
			renderSchedule(out, result.Plan.Schedule)
		}
		return nil
	},
}

func init() {
	reflectCmd.Flags().StringVar(&reflectProgress, "progress", "", "Path to a JSON file of task outcomes (required)")
	reflectCmd.Flags().Float64Var(&reflectHoursPerDay, "hours-per-day", 0, "Daily hour cap if the schedule is rebuilt")
	reflectCmd.MarkFlagRequired("progress")
}

func readProgress(path string) ([]plan.TaskProgress, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading progress file: %w", err)
	}
	var progress []plan.TaskProgress
	if err := json.Unmarshal(data, &progress); err != nil {
		return nil, fmt.Errorf("parsing progress file: %w", err)
	}
	if len(progress) == 0 {
		return nil, fmt.Errorf("progress file %s holds no observations", path)
	}
	return progress, nil
}
