package warehouse

import (
	"context"
	"fmt"
	"slices"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/musicdw/internal/config"
	"github.com/sells-group/musicdw/internal/fetcher"
	"github.com/sells-group/musicdw/internal/model"
)

// IntegrityError describes a fact whose genre has no dimension key. Such
// facts are skipped, not loaded.
type IntegrityError struct {
	Table string
	Genre string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("no dim_genre key for genre %q in %s", e.Genre, e.Table)
}

// LoadStats summarizes one load.
type LoadStats struct {
	GenresInserted int64
	GenresTotal    int
	FactRows       map[string]int
	SkippedUnknown int
}

// Loader performs the clear-and-reload of the warehouse.
type Loader struct {
	repo Repository
	log  *zap.Logger
}

// NewLoader creates a Loader over repo. The caller keeps ownership of repo.
func NewLoader(repo Repository) *Loader {
	return &Loader{
		repo: repo,
		log:  zap.L().With(zap.String("component", "warehouse")),
	}
}

// Load makes the fact tables equal to the two aggregates. Genres are added
// to the dimension and never removed; the facts are replaced in a single
// transaction, so a failed load leaves the previous facts in place.
func (l *Loader) Load(ctx context.Context, features, indicators model.AggregatedTable) (*LoadStats, error) {
	if err := l.repo.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	genres := unionGenres(features, indicators)
	inserted, err := l.repo.EnsureGenres(ctx, genres)
	if err != nil {
		return nil, err
	}

	ids, err := l.repo.GenreIDs(ctx)
	if err != nil {
		return nil, err
	}

	stats := &LoadStats{
		GenresInserted: inserted,
		GenresTotal:    len(ids),
		FactRows:       map[string]int{},
	}
	batches := []FactBatch{
		l.factBatch(MusicFeatures, features, ids, stats),
		l.factBatch(MentalHealth, indicators, ids, stats),
	}

	if err := l.repo.ReplaceFacts(ctx, batches); err != nil {
		return nil, err
	}

	l.log.Info("warehouse loaded",
		zap.Int64("genres_inserted", stats.GenresInserted),
		zap.Int("genres_total", stats.GenresTotal),
		zap.Int(MusicFeatures.Name, stats.FactRows[MusicFeatures.Name]),
		zap.Int(MentalHealth.Name, stats.FactRows[MentalHealth.Name]),
		zap.Int("skipped_unknown", stats.SkippedUnknown),
	)
	return stats, nil
}

func (l *Loader) factBatch(table FactTable, agg model.AggregatedTable, ids map[string]int64, stats *LoadStats) FactBatch {
	batch := FactBatch{Table: table}
	for _, row := range agg.Rows {
		id, ok := ids[row.Category]
		if !ok {
			stats.SkippedUnknown += len(agg.Columns)
			l.log.Warn("skipping facts", zap.Error(&IntegrityError{Table: table.Name, Genre: row.Category}))
			continue
		}
		for i, col := range agg.Columns {
			fr := FactRow{GenreID: id, Name: col}
			if i < len(row.Values) {
				fr.Value = row.Values[i]
			}
			batch.Rows = append(batch.Rows, fr)
		}
	}
	stats.FactRows[table.Name] = len(batch.Rows)
	return batch
}

func unionGenres(tables ...model.AggregatedTable) []string {
	var genres []string
	for _, t := range tables {
		for _, c := range t.Categories() {
			if !slices.Contains(genres, c) {
				genres = append(genres, c)
			}
		}
	}
	slices.Sort(genres)
	return genres
}

// Run reads the two processed aggregates and loads them into the configured
// warehouse.
func Run(ctx context.Context, cfg *config.Config) (*LoadStats, error) {
	category := cfg.Transform.CategoryColumn

	features, err := fetcher.ReadAggregate(cfg.Paths.FeatureAggregatePath(), category)
	if err != nil {
		return nil, eris.Wrap(err, "warehouse: read feature aggregate")
	}
	indicators, err := fetcher.ReadAggregate(cfg.Paths.IndicatorAggregatePath(), category)
	if err != nil {
		return nil, eris.Wrap(err, "warehouse: read indicator aggregate")
	}

	repo, err := Open(ctx, cfg.Warehouse, cfg.Paths.Warehouse)
	if err != nil {
		return nil, err
	}
	defer repo.Close() //nolint:errcheck

	return NewLoader(repo).Load(ctx, features, indicators)
}
