package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/rotisserie/eris"

	"github.com/sells-group/musicdw/internal/config"
)

// ErrGenreNotFound is returned by Reader.Genre for an unknown genre.
var ErrGenreNotFound = errors.New("warehouse: genre not found")

// GenreSummary is a dimension row with its fact counts.
type GenreSummary struct {
	ID       int64  `db:"genre_id" json:"id"`
	Genre    string `db:"genre" json:"genre"`
	Features int    `db:"features" json:"features"`
	Metrics  int    `db:"metrics" json:"metrics"`
}

// Fact is one stored value. Source is "feature" or "metric".
type Fact struct {
	Source string   `db:"source" json:"source"`
	Name   string   `db:"name" json:"name"`
	Value  *float64 `db:"value" json:"value"`
}

// Reader runs read-only queries against a loaded warehouse.
type Reader struct {
	db *sqlx.DB
}

// NewReader wraps an open handle.
func NewReader(db *sqlx.DB) *Reader {
	return &Reader{db: db}
}

// OpenReader connects to the configured warehouse. A missing SQLite file is
// an error rather than an empty warehouse.
func OpenReader(cfg config.WarehouseConfig, path string) (*Reader, error) {
	var (
		db  *sqlx.DB
		err error
	)
	switch cfg.Driver {
	case DriverSQLite, "":
		if _, statErr := os.Stat(path); statErr != nil {
			return nil, eris.Wrapf(statErr, "warehouse: open %s", path)
		}
		db, err = sqlx.Open("sqlite", path)
	case DriverPostgres:
		db, err = sqlx.Open("pgx", cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("warehouse: unsupported driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, eris.Wrap(err, "warehouse: open reader")
	}
	return NewReader(db), nil
}

const summaryQuery = `
SELECT g.genre_id, g.genre,
	(SELECT COUNT(*) FROM fact_music_features f WHERE f.genre_id = g.genre_id) AS features,
	(SELECT COUNT(*) FROM fact_mental_health m WHERE m.genre_id = g.genre_id) AS metrics
FROM dim_genre g`

// Genres lists every genre in the dimension, ordered by name.
func (r *Reader) Genres(ctx context.Context) ([]GenreSummary, error) {
	var out []GenreSummary
	if err := r.db.SelectContext(ctx, &out, summaryQuery+" ORDER BY g.genre"); err != nil {
		return nil, eris.Wrap(err, "warehouse: list genres")
	}
	return out, nil
}

// Genre returns one genre's summary or ErrGenreNotFound.
func (r *Reader) Genre(ctx context.Context, genre string) (*GenreSummary, error) {
	var out GenreSummary
	err := r.db.GetContext(ctx, &out, r.db.Rebind(summaryQuery+" WHERE g.genre = ?"), genre)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGenreNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "warehouse: get genre %q", genre)
	}
	return &out, nil
}

const factsQuery = `
SELECT 'feature' AS source, f.feature_name AS name, f.feature_value AS value
FROM fact_music_features f JOIN dim_genre g ON g.genre_id = f.genre_id
WHERE g.genre = ?
UNION ALL
SELECT 'metric' AS source, m.metric_name AS name, m.metric_value AS value
FROM fact_mental_health m JOIN dim_genre g ON g.genre_id = m.genre_id
WHERE g.genre = ?
ORDER BY source, name`

// Facts returns every fact stored for genre.
func (r *Reader) Facts(ctx context.Context, genre string) ([]Fact, error) {
	var out []Fact
	if err := r.db.SelectContext(ctx, &out, r.db.Rebind(factsQuery), genre, genre); err != nil {
		return nil, eris.Wrapf(err, "warehouse: facts for %q", genre)
	}
	return out, nil
}

// Close closes the underlying handle.
func (r *Reader) Close() error {
	return r.db.Close()
}
