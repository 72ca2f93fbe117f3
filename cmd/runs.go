package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/musicdw/internal/model"
	"github.com/sells-group/musicdw/internal/monitoring"
	"github.com/sells-group/musicdw/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect pipeline run history",
	Long:  "Commands for listing runs, viewing their steps, and summarizing pipeline health.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pipeline runs, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := st.ListRuns(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		w := cmd.OutOrStdout()
		fmt.Fprintln(w, formatRunsList(runs, shouldColorize(w)))
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run and its steps",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		steps, err := st.ListSteps(ctx, run.ID)
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		if format, _ := cmd.Flags().GetString("format"); format == "json" {
			return writeJSON(cmd.OutOrStdout(), map[string]any{"run": run, "steps": steps})
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Run %s: %s", run.ID, run.Status)
		if run.FailedStep != "" {
			fmt.Fprintf(w, " at %s (status %d)", run.FailedStep, run.ExitStatus)
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, formatSteps(steps, shouldColorize(w)))
		return nil
	},
}

// -- runs health --

var runsHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Summarize recent runs and report failure streaks",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		window, _ := cmd.Flags().GetInt("window")
		snap, err := monitoring.NewCollector(st).Collect(ctx, window)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		formatHealth(w, snap)
		for _, alert := range monitoring.Evaluate(cfg.Alerts, snap) {
			fmt.Fprintln(w, "WARNING: "+alert.Line())
		}
		return nil
	},
}

func initStore(ctx context.Context) (*store.SQLiteStore, error) {
	st, err := store.NewSQLite(cfg.Paths.RunHistory)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

func init() {
	runsListCmd.Flags().Int("limit", 20, "max number of runs to display")
	runsShowCmd.Flags().String("format", "table", "output format: table or json")
	runsHealthCmd.Flags().Int("window", 20, "number of recent runs to summarize")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsHealthCmd)
	rootCmd.AddCommand(runsCmd)
}

func formatRunsList(runs []model.Run, colorize bool) string {
	rows := make([][]string, len(runs))
	for i, r := range runs {
		dur := ""
		if r.FinishedAt != nil {
			dur = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		rows[i] = []string{
			truncateID(r.ID),
			string(r.Status),
			r.FailedStep,
			strconv.Itoa(r.ExitStatus),
			strconv.FormatBool(r.Clean),
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			dur,
		}
	}
	return renderTable(
		[]string{"ID", "Status", "Failed Step", "Exit", "Clean", "Started", "Duration"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignRight},
		colorize,
	)
}

func formatSteps(steps []model.StepRecord, colorize bool) string {
	rows := make([][]string, len(steps))
	for i, s := range steps {
		rows[i] = []string{
			s.Name,
			string(s.Status),
			strconv.Itoa(s.ExitStatus),
			s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond).String(),
			s.Message,
		}
	}
	return renderTable(
		[]string{"Step", "Status", "Exit", "Duration", "Message"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
		colorize,
	)
}

func formatHealth(w io.Writer, snap *monitoring.MetricsSnapshot) {
	_, _ = fmt.Fprintf(w, "Runs:           %d (last %d)\n", snap.Runs, snap.Window)
	_, _ = fmt.Fprintf(w, "Succeeded:      %d\n", snap.Succeeded)
	_, _ = fmt.Fprintf(w, "Failed:         %d\n", snap.Failed)
	_, _ = fmt.Fprintf(w, "Fail rate:      %.1f%%\n", snap.FailRate*100)
	_, _ = fmt.Fprintf(w, "Failure streak: %d\n", snap.FailureStreak)
	if snap.LastFailure != nil {
		_, _ = fmt.Fprintf(w, "Last failure:   %s at step %s\n", truncateID(snap.LastFailure.ID), snap.LastFailure.FailedStep)
	}
}

// truncateID shortens a UUID to its first 8 characters for display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
