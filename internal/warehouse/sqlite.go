package warehouse

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

//go:embed schema/sqlite.sql
var sqliteSchema string

// SQLiteRepository stores the warehouse in a single SQLite file.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the warehouse file. The pool is held
// to one connection so the foreign key pragma applies to every statement.
func NewSQLite(ctx context.Context, path string) (*SQLiteRepository, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, eris.Wrap(err, "warehouse: create directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "warehouse: open sqlite")
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "warehouse: exec %s", pragma)
		}
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, sqliteSchema)
	if err != nil {
		return eris.Wrap(err, "warehouse: ensure sqlite schema")
	}
	return nil
}

func (r *SQLiteRepository) EnsureGenres(ctx context.Context, genres []string) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "warehouse: begin genre tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO dim_genre (genre) VALUES (?)`)
	if err != nil {
		return 0, eris.Wrap(err, "warehouse: prepare genre insert")
	}
	defer stmt.Close() //nolint:errcheck

	var inserted int64
	for _, g := range genres {
		res, err := stmt.ExecContext(ctx, g)
		if err != nil {
			return 0, eris.Wrapf(err, "warehouse: insert genre %q", g)
		}
		n, _ := res.RowsAffected()
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "warehouse: commit genres")
	}
	return inserted, nil
}

func (r *SQLiteRepository) GenreIDs(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT genre, genre_id FROM dim_genre`)
	if err != nil {
		return nil, eris.Wrap(err, "warehouse: query genres")
	}
	defer rows.Close() //nolint:errcheck

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

func (r *SQLiteRepository) ReplaceFacts(ctx context.Context, batches []FactBatch) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "warehouse: begin fact tx")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, t := range FactTables() {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+t.Name); err != nil {
			return eris.Wrapf(err, "warehouse: clear %s", t.Name)
		}
	}

	for _, b := range batches {
		query := fmt.Sprintf(
			"INSERT OR REPLACE INTO %s (genre_id, %s, %s) VALUES (?, ?, ?)",
			b.Table.Name, b.Table.NameColumn, b.Table.ValueColumn,
		)
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return eris.Wrapf(err, "warehouse: prepare insert into %s", b.Table.Name)
		}
		for _, row := range b.Rows {
			if _, err := stmt.ExecContext(ctx, row.GenreID, row.Name, nullable(row.Value)); err != nil {
				stmt.Close() //nolint:errcheck
				return eris.Wrapf(err, "warehouse: insert %s (%d, %s)", b.Table.Name, row.GenreID, row.Name)
			}
		}
		stmt.Close() //nolint:errcheck
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "warehouse: commit facts")
	}
	return nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
