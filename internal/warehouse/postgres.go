package warehouse

import (
	"context"
	_ "embed"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/musicdw/internal/db"
)

//go:embed schema/postgres.sql
var postgresSchema string

// PostgresRepository stores the warehouse in Postgres.
type PostgresRepository struct {
	pool db.Pool
}

// NewPostgres wraps an open pool. Close closes the pool.
func NewPostgres(pool db.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, postgresSchema); err != nil {
		return eris.Wrap(err, "warehouse: ensure postgres schema")
	}
	return nil
}

func (r *PostgresRepository) EnsureGenres(ctx context.Context, genres []string) (int64, error) {
	if len(genres) == 0 {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO dim_genre (genre) SELECT unnest($1::text[]) ON CONFLICT (genre) DO NOTHING`,
		genres,
	)
	if err != nil {
		return 0, eris.Wrap(err, "warehouse: insert genres")
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) GenreIDs(ctx context.Context) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT genre, genre_id FROM dim_genre`)
	if err != nil {
		return nil, eris.Wrap(err, "warehouse: query genres")
	}
	defer rows.Close()

	ids := make(map[string]int64)
	for rows.Next() {
		var genre string
		var id int64
		if err := rows.Scan(&genre, &id); err != nil {
			return nil, eris.Wrap(err, "warehouse: scan genre")
		}
		ids[genre] = id
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "warehouse: iterate genres")
	}
	return ids, nil
}

func (r *PostgresRepository) ReplaceFacts(ctx context.Context, batches []FactBatch) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "warehouse: begin fact tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, t := range FactTables() {
		if _, err := tx.Exec(ctx, "DELETE FROM "+pgx.Identifier{t.Name}.Sanitize()); err != nil {
			return eris.Wrapf(err, "warehouse: clear %s", t.Name)
		}
	}

	for _, b := range batches {
		rows := make([][]any, len(b.Rows))
		for i, row := range b.Rows {
			rows[i] = []any{row.GenreID, row.Name, nullable(row.Value)}
		}
		_, err := db.BulkUpsert(ctx, tx, db.UpsertConfig{
			Table:        b.Table.Name,
			Columns:      []string{"genre_id", b.Table.NameColumn, b.Table.ValueColumn},
			ConflictKeys: []string{"genre_id", b.Table.NameColumn},
		}, rows)
		if err != nil {
			return eris.Wrapf(err, "warehouse: load %s", b.Table.Name)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "warehouse: commit facts")
	}
	return nil
}

func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}
