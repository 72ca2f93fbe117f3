package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/musicdw/internal/fetcher"
	"github.com/sells-group/musicdw/internal/ingest"
)

var acquireCmd = &cobra.Command{
	Use:   "acquire [url...]",
	Short: "Download raw source files into the raw directory",
	Long:  "Downloads each URL (http, https or ftp) into the raw directory and extracts .zip archives. Without arguments the configured acquire.sources are used.",
	RunE: func(cmd *cobra.Command, args []string) error {
		sources := args
		if len(sources) == 0 {
			sources = cfg.Acquire.Sources
		}

		return withStageLog("acquire", func(log *zap.Logger) error {
			a := &ingest.Acquirer{
				RawDir: cfg.Paths.RawDir,
				Options: fetcher.Options{
					UserAgent:   cfg.Acquire.UserAgent,
					Timeout:     cfg.Acquire.Timeout,
					MaxAttempts: cfg.Acquire.MaxAttempts,
				},
			}
			files, err := a.Acquire(cmd.Context(), sources)
			if err != nil {
				return err
			}
			log.Info("Raw files acquired", zap.Strings("files", files))

			fmt.Fprintf(cmd.OutOrStdout(), "SUCCESS: %d raw files in %s\n", len(files), cfg.Paths.RawDir)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(acquireCmd)
}
