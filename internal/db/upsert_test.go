package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := [][]any{{"1", "fed-cut"}, {"2", "btc-100k"}}
	mock.ExpectCopyFrom(pgx.Identifier{"markets"}, []string{"id", "slug"}).WillReturnResult(2)

	n, err := CopyFrom(context.Background(), mock, "markets", []string{"id", "slug"}, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFromEmpty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	n, err := CopyFrom(context.Background(), mock, "markets", []string{"id"}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBulkUpsertEmpty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "markets",
		Columns:      []string{"id", "slug"},
		ConflictKeys: []string{"id"},
	}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBulkUpsertValidation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = BulkUpsert(context.Background(), mock, UpsertConfig{Table: "markets"}, [][]any{{"1"}})
	assert.ErrorContains(t, err, "no columns")

	_, err = BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:   "markets",
		Columns: []string{"id"},
	}, [][]any{{"1"}})
	assert.ErrorContains(t, err, "no conflict keys")
}

func TestUpsertConfigUpdateColumns(t *testing.T) {
	cfg := UpsertConfig{
		Columns:      []string{"id", "slug", "question"},
		ConflictKeys: []string{"id"},
	}
	assert.Equal(t, []string{"slug", "question"}, cfg.updateColumns())

	cfg.UpdateCols = []string{"question"}
	assert.Equal(t, []string{"question"}, cfg.updateColumns())
}

func TestBulkUpsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_markets"}, []string{"id", "slug"}).WillReturnResult(2)
	mock.ExpectExec("INSERT INTO \"markets\"").WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "markets",
		Columns:      []string{"id", "slug"},
		ConflictKeys: []string{"id"},
	}, [][]any{{"1", "a"}, {"2", "b"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
