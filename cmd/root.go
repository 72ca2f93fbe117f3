package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/musicdw/internal/config"
	"github.com/sells-group/musicdw/internal/pipeline"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "musicdw",
	Short: "Music genre batch ETL into a star-schema warehouse",
	Long:  "Validates raw music feature and survey tables, cleans and aggregates them by genre, and loads the results into a SQLite or Postgres warehouse.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// exitCode maps a command error to the process exit status. A failed
// pipeline step exits with that step's status.
func exitCode(err error) int {
	var failure *pipeline.StepFailure
	if errors.As(err, &failure) {
		return failure.ExitCode()
	}
	return 1
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}
