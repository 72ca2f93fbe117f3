package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*PostgresRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgres(mock), mock
}

func TestPostgres_EnsureSchema(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS dim_genre").WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, repo.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_EnsureGenres(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(`INSERT INTO dim_genre \(genre\) SELECT unnest\(\$1::text\[\]\) ON CONFLICT \(genre\) DO NOTHING`).
		WithArgs([]string{"A", "C"}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	n, err := repo.EnsureGenres(context.Background(), []string{"A", "C"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_EnsureGenresEmpty(t *testing.T) {
	repo, mock := newMockRepo(t)

	n, err := repo.EnsureGenres(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GenreIDs(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT genre, genre_id FROM dim_genre").
		WillReturnRows(pgxmock.NewRows([]string{"genre", "genre_id"}).
			AddRow("hip-hop", int64(1)).
			AddRow("rock", int64(2)))

	ids, err := repo.GenreIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"hip-hop": 1, "rock": 2}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ReplaceFacts(t *testing.T) {
	repo, mock := newMockRepo(t)
	cols := []string{"genre_id", "feature_name", "feature_value"}

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "fact_music_features"`).WillReturnResult(pgxmock.NewResult("DELETE", 4))
	mock.ExpectExec(`DELETE FROM "fact_mental_health"`).WillReturnResult(pgxmock.NewResult("DELETE", 4))
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_fact_music_features"}, cols).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "fact_music_features"`).WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	err := repo.ReplaceFacts(context.Background(), []FactBatch{
		{Table: MusicFeatures, Rows: []FactRow{
			{GenreID: 1, Name: "tempo", Value: sql.NullFloat64{Float64: 20, Valid: true}},
			{GenreID: 1, Name: "energy"},
		}},
		{Table: MentalHealth},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ReplaceFactsRollsBack(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "fact_music_features"`).WillReturnResult(pgxmock.NewResult("DELETE", 4))
	mock.ExpectExec(`DELETE FROM "fact_mental_health"`).WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	err := repo.ReplaceFacts(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clear fact_mental_health")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_LoaderEndToEnd(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("INSERT INTO dim_genre").
		WithArgs([]string{"pop"}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT genre, genre_id FROM dim_genre").
		WillReturnRows(pgxmock.NewRows([]string{"genre", "genre_id"}).AddRow("pop", int64(7)))
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("DELETE FROM").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_fact_music_features"}, []string{"genre_id", "feature_name", "feature_value"}).WillReturnResult(2)
	mock.ExpectExec("INSERT INTO").WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_fact_mental_health"}, []string{"genre_id", "metric_name", "metric_value"}).WillReturnResult(2)
	mock.ExpectExec("INSERT INTO").WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	stats, err := NewLoader(repo).Load(context.Background(),
		featureAggWith("pop", num(100), num(0.5)),
		indicatorAggWith("pop", num(22), sql.NullFloat64{}),
	)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.GenresInserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
