package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/musicdw/internal/ingest"
)

var ingestInit bool

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Validate the raw files against the required-column manifest",
	Long:  "Checks that every raw file listed in the manifest exists, is not empty and has its required columns. Without a manifest file the built-in one is used.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if ingestInit {
			if err := ingest.WriteManifest(cfg.Paths.Manifest, ingest.DefaultManifest()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "SUCCESS: manifest written to %s\n", cfg.Paths.Manifest)
			return nil
		}

		return withStageLog("ingest", func(log *zap.Logger) error {
			manifest, err := loadManifest(log)
			if err != nil {
				return err
			}

			log.Info("Starting ingestion validation", zap.String("raw_dir", cfg.Paths.RawDir))
			report := ingest.Validate(cfg.Paths.RawDir, manifest)
			if err := report.Err(); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "SUCCESS: Raw datasets are ready.")
			return nil
		})
	},
}

func loadManifest(log *zap.Logger) (ingest.Manifest, error) {
	ok, err := ingest.ManifestExists(cfg.Paths.Manifest)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Info("No manifest file, using built-in manifest", zap.String("path", cfg.Paths.Manifest))
		return ingest.DefaultManifest(), nil
	}
	return ingest.LoadManifest(cfg.Paths.Manifest)
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestInit, "init", false, "write the built-in manifest to the configured path and exit")
	rootCmd.AddCommand(ingestCmd)
}
