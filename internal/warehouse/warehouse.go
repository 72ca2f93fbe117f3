// Package warehouse owns the genre star schema: one dimension table and two
// fact tables keyed by (genre, metric name). It creates the schema, loads
// aggregated tables into it and reads it back.
package warehouse

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"

	"github.com/sells-group/musicdw/internal/config"
	"github.com/sells-group/musicdw/internal/db"
)

// Supported warehouse drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// FactTable describes one fact table's layout.
type FactTable struct {
	Name        string
	NameColumn  string
	ValueColumn string
}

var (
	// MusicFeatures holds per-genre audio feature means.
	MusicFeatures = FactTable{Name: "fact_music_features", NameColumn: "feature_name", ValueColumn: "feature_value"}
	// MentalHealth holds per-genre survey indicator means.
	MentalHealth = FactTable{Name: "fact_mental_health", NameColumn: "metric_name", ValueColumn: "metric_value"}
)

// FactTables lists every fact table in load order.
func FactTables() []FactTable {
	return []FactTable{MusicFeatures, MentalHealth}
}

// FactRow is one (genre, name, value) fact. A null Value is stored as NULL.
type FactRow struct {
	GenreID int64
	Name    string
	Value   sql.NullFloat64
}

// FactBatch is the complete new content of one fact table.
type FactBatch struct {
	Table FactTable
	Rows  []FactRow
}

// Repository is the backend-specific half of the warehouse.
type Repository interface {
	// EnsureSchema creates the dimension and fact tables if they are missing.
	EnsureSchema(ctx context.Context) error
	// EnsureGenres inserts genres not yet in the dimension and returns how
	// many were new. Existing keys are never changed.
	EnsureGenres(ctx context.Context, genres []string) (int64, error)
	// GenreIDs returns the whole dimension as genre -> key.
	GenreIDs(ctx context.Context) (map[string]int64, error)
	// ReplaceFacts clears every fact table and writes the batches, all in
	// one transaction.
	ReplaceFacts(ctx context.Context, batches []FactBatch) error
	Close() error
}

// Open returns the repository for the configured driver. path is the
// SQLite file; Postgres uses cfg.DatabaseURL.
func Open(ctx context.Context, cfg config.WarehouseConfig, path string) (Repository, error) {
	switch cfg.Driver {
	case DriverSQLite, "":
		return NewSQLite(ctx, path)
	case DriverPostgres:
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "warehouse: connect postgres")
		}
		return NewPostgres(pool), nil
	default:
		return nil, eris.Errorf("warehouse: unsupported driver %q", cfg.Driver)
	}
}

func nullable(v sql.NullFloat64) any {
	if !v.Valid {
		return nil
	}
	return v.Float64
}
