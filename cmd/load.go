package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/musicdw/internal/warehouse"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load the processed aggregates into the warehouse",
	Long:  "Adds new genres to dim_genre, then clears and reloads both fact tables in one transaction.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStageLog("warehouse", func(log *zap.Logger) error {
			stats, err := warehouse.Run(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if stats.SkippedUnknown > 0 {
				log.Warn("Facts skipped for genres missing from dim_genre", zap.Int("skipped", stats.SkippedUnknown))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "SUCCESS: Data Warehouse created/updated: %s\n", warehouseTarget())
			return nil
		})
	},
}

// warehouseTarget names the warehouse for user-facing messages without
// printing connection credentials.
func warehouseTarget() string {
	if cfg.Warehouse.Driver == warehouse.DriverPostgres {
		return "postgres"
	}
	return cfg.Paths.Warehouse
}

func init() {
	rootCmd.AddCommand(loadCmd)
}
