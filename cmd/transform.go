package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/musicdw/internal/transform"
)

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Clean the raw tables and write per-genre aggregates",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStageLog("transform", func(log *zap.Logger) error {
			rules, err := transform.RulesFromConfig(cfg.Transform)
			if err != nil {
				return err
			}

			res, err := transform.Run(cmd.Context(), cfg.Paths, rules)
			if err != nil {
				return err
			}
			log.Info("Processed tables written",
				zap.String("features", res.FeaturePath),
				zap.Int("feature_genres", len(res.Features.Rows)),
				zap.String("indicators", res.IndicatorPath),
				zap.Int("indicator_genres", len(res.Indicators.Rows)),
			)

			fmt.Fprintf(cmd.OutOrStdout(), "SUCCESS: processed tables created in %s\n", cfg.Paths.ProcessedDir)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(transformCmd)
}
