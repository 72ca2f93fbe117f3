package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sells-group/musicdw/internal/warehouse"
)

var (
	reportGenre  string
	reportFormat string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show the genres and facts stored in the warehouse",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		reader, err := warehouse.OpenReader(cfg.Warehouse, cfg.Paths.Warehouse)
		if err != nil {
			return err
		}
		defer reader.Close() //nolint:errcheck

		w := cmd.OutOrStdout()
		if reportGenre == "" {
			genres, err := reader.Genres(ctx)
			if err != nil {
				return err
			}
			if reportFormat == "json" {
				return writeJSON(w, genres)
			}
			if len(genres) == 0 {
				fmt.Fprintln(w, "Warehouse has no genres.")
				return nil
			}
			fmt.Fprintln(w, formatGenres(genres, shouldColorize(w)))
			return nil
		}

		summary, err := reader.Genre(ctx, reportGenre)
		if err != nil {
			return err
		}
		facts, err := reader.Facts(ctx, reportGenre)
		if err != nil {
			return err
		}
		if reportFormat == "json" {
			return writeJSON(w, map[string]any{"genre": summary, "facts": facts})
		}
		fmt.Fprintf(w, "%s (genre_id %d)\n", summary.Genre, summary.ID)
		fmt.Fprintln(w, formatFacts(facts, shouldColorize(w)))
		return nil
	},
}

func formatGenres(genres []warehouse.GenreSummary, colorize bool) string {
	rows := make([][]string, len(genres))
	for i, g := range genres {
		rows[i] = []string{
			strconv.FormatInt(g.ID, 10),
			g.Genre,
			strconv.Itoa(g.Features),
			strconv.Itoa(g.Metrics),
		}
	}
	return renderTable(
		[]string{"ID", "Genre", "Features", "Metrics"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignRight},
		colorize,
	)
}

func formatFacts(facts []warehouse.Fact, colorize bool) string {
	rows := make([][]string, len(facts))
	for i, f := range facts {
		value := "NULL"
		if f.Value != nil {
			value = strconv.FormatFloat(*f.Value, 'f', 4, 64)
		}
		rows[i] = []string{f.Source, f.Name, value}
	}
	return renderTable(
		[]string{"Source", "Name", "Value"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight},
		colorize,
	)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	reportCmd.Flags().StringVar(&reportGenre, "genre", "", "show the facts of one genre")
	reportCmd.Flags().StringVar(&reportFormat, "format", "table", "output format: table or json")
	rootCmd.AddCommand(reportCmd)
}
