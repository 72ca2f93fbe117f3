package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/musicdw/internal/monitoring"
	"github.com/sells-group/musicdw/internal/pipeline"
	"github.com/sells-group/musicdw/internal/store"
)

var (
	runClean   bool
	runTimeout time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run ingest, transform and load in order",
	Long:  "Runs each stage as a separate process, stopping at the first failure. A failure is written to the alert log and the process exits with the failing stage's status.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return withStageLog("pipeline", func(log *zap.Logger) error {
			steps, err := stageSteps()
			if err != nil {
				return err
			}

			st, err := store.NewSQLite(cfg.Paths.RunHistory)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				return err
			}

			alerter, err := monitoring.NewAlerter(cfg.Alerts)
			if err != nil {
				return err
			}
			defer alerter.Close() //nolint:errcheck

			timeout := cfg.Pipeline.StepTimeout
			if cmd.Flags().Changed("timeout") {
				timeout = runTimeout
			}

			o := pipeline.New(steps, pipeline.Options{
				Clean:         runClean,
				ProcessedDir:  cfg.Paths.ProcessedDir,
				WarehousePath: cfg.Paths.Warehouse,
				StepTimeout:   timeout,
				LockFile:      cfg.Pipeline.LockFile,
			}, st, alerter)

			out, err := o.Run(ctx)
			if err != nil {
				return err
			}
			log.Info("Run recorded", zap.String("run_id", out.RunID))

			fmt.Fprintln(cmd.OutOrStdout(), "SUCCESS: pipeline finished")
			return nil
		})
	},
}

// stageSteps builds the three stage subprocesses. Each re-invokes this
// binary with logging to stderr turned off so that a failing stage's stderr
// holds only its error. Ingest is skipped only when the stage binary is
// missing; without a manifest file it validates against the built-in one.
func stageSteps() ([]pipeline.Step, error) {
	binary := cfg.Pipeline.Binary
	if binary == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, eris.Wrap(err, "run: locate executable")
		}
		binary = exe
	}
	env := []string{"MUSICDW_LOG_OUTPUT=none"}

	ingestStep := pipeline.NewExecStep("ingest", binary, "ingest")
	ingestStep.Requires = binary
	ingestStep.Env = env

	transformStep := pipeline.NewExecStep("transform", binary, "transform")
	transformStep.Env = env

	loadStep := pipeline.NewExecStep("load", binary, "load")
	loadStep.Env = env

	return []pipeline.Step{ingestStep, transformStep, loadStep}, nil
}

func init() {
	runCmd.Flags().BoolVar(&runClean, "clean", false, "remove processed outputs and the warehouse before running")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "per-step timeout (default from config, 0 = none)")
	rootCmd.AddCommand(runCmd)
}
