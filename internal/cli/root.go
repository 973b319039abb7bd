// Package cli implements the goalplan command tree.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mpalmer/goalplan/internal/ai"
	"github.com/mpalmer/goalplan/internal/store"
	"github.com/mpalmer/goalplan/internal/version"
)

var (
	flagDB      string
	flagUser    string
	flagOffline bool
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:           "goalplan",
	Short:         "Turn a goal into a scored task list and day-by-day schedule",
	Long:          `Goalplan turns a free-text goal into a prioritized task list and a day-by-day study schedule, then adapts the plan as you report progress.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", defaultDBPath(), "Path to the plan database")
	rootCmd.PersistentFlags().StringVar(&flagUser, "user", "default", "User the plans belong to")
	rootCmd.PersistentFlags().BoolVar(&flagOffline, "offline", false, "Skip the generation backend and use deterministic fallbacks")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable debug logging")

	rootCmd.AddCommand(createCmd, showCmd, listCmd, nextCmd, reflectCmd, memoryCmd)
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func defaultDBPath() string {
	return filepath.Join(".goalplan", "goalplan.db")
}

func newLogger() *zap.Logger {
	if !flagVerbose {
		return zap.NewNop()
	}
	log, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func newGenerator(log *zap.Logger) ai.Generator {
	if flagOffline {
		return ai.OfflineGenerator{}
	}
	return ai.NewClient(log)
}

func openStore() (*store.Store, error) {
	return store.Open(flagDB)
}
