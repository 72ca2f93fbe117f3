package warehouse

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) (*SQLiteRepository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "warehouse", "music_dw.sqlite")
	repo, err := NewSQLite(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() }) //nolint:errcheck
	require.NoError(t, repo.EnsureSchema(context.Background()))
	return repo, path
}

func tableNames(t *testing.T, repo *SQLiteRepository) []string {
	t.Helper()
	rows, err := repo.db.Query(`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	require.NoError(t, err)
	defer rows.Close() //nolint:errcheck

	var names []string
	for rows.Next() {
		var n string
		require.NoError(t, rows.Scan(&n))
		names = append(names, n)
	}
	return names
}

func TestSQLite_EnsureSchemaIdempotent(t *testing.T) {
	repo, _ := newTestSQLite(t)
	require.NoError(t, repo.EnsureSchema(context.Background()))

	assert.Equal(t, []string{"dim_genre", "fact_mental_health", "fact_music_features"}, tableNames(t, repo))
}

func TestSQLite_EnsureGenresStableKeys(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestSQLite(t)

	n, err := repo.EnsureGenres(ctx, []string{"A", "B"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	first, err := repo.GenreIDs(ctx)
	require.NoError(t, err)

	n, err = repo.EnsureGenres(ctx, []string{"A", "C"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	second, err := repo.GenreIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, second, 3)
	assert.Equal(t, first["A"], second["A"])
	assert.Equal(t, first["B"], second["B"])
	assert.Greater(t, second["C"], second["B"])
}

func TestSQLite_ForeignKeysEnforced(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestSQLite(t)

	_, err := repo.EnsureGenres(ctx, []string{"rock"})
	require.NoError(t, err)
	ids, err := repo.GenreIDs(ctx)
	require.NoError(t, err)

	good := FactBatch{Table: MusicFeatures, Rows: []FactRow{{GenreID: ids["rock"], Name: "tempo", Value: sql.NullFloat64{Float64: 120, Valid: true}}}}
	require.NoError(t, repo.ReplaceFacts(ctx, []FactBatch{good}))

	bad := FactBatch{Table: MentalHealth, Rows: []FactRow{{GenreID: 999, Name: "Age"}}}
	err = repo.ReplaceFacts(ctx, []FactBatch{good, bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FOREIGN KEY")

	var count int
	require.NoError(t, repo.db.QueryRow(`SELECT COUNT(*) FROM fact_music_features`).Scan(&count))
	assert.Equal(t, 1, count, "failed load rolls back, previous facts remain")
}

func TestSQLite_ReplaceFactsClearsEveryTable(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestSQLite(t)

	_, err := repo.EnsureGenres(ctx, []string{"pop"})
	require.NoError(t, err)
	ids, err := repo.GenreIDs(ctx)
	require.NoError(t, err)

	require.NoError(t, repo.ReplaceFacts(ctx, []FactBatch{
		{Table: MusicFeatures, Rows: []FactRow{{GenreID: ids["pop"], Name: "tempo"}}},
		{Table: MentalHealth, Rows: []FactRow{{GenreID: ids["pop"], Name: "Age", Value: sql.NullFloat64{Float64: 20, Valid: true}}}},
	}))
	require.NoError(t, repo.ReplaceFacts(ctx, []FactBatch{
		{Table: MusicFeatures, Rows: []FactRow{{GenreID: ids["pop"], Name: "energy"}}},
	}))

	var features, metrics int
	require.NoError(t, repo.db.QueryRow(`SELECT COUNT(*) FROM fact_music_features`).Scan(&features))
	require.NoError(t, repo.db.QueryRow(`SELECT COUNT(*) FROM fact_mental_health`).Scan(&metrics))
	assert.Equal(t, 1, features)
	assert.Equal(t, 0, metrics)

	var value sql.NullFloat64
	require.NoError(t, repo.db.QueryRow(`SELECT feature_value FROM fact_music_features WHERE feature_name = 'energy'`).Scan(&value))
	assert.False(t, value.Valid, "null value stored as NULL")
}

func TestOpen_Drivers(t *testing.T) {
	ctx := context.Background()

	repo, err := Open(ctx, configFor(DriverSQLite), filepath.Join(t.TempDir(), "dw.sqlite"))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteRepository{}, repo)
	require.NoError(t, repo.Close())

	_, err = Open(ctx, configFor("oracle"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported driver "oracle"`)

	_, err = Open(ctx, configFor(DriverPostgres), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database_url is empty")
}
