package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLiteRunLifecycle(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	input := json.RawMessage(`{"sub_events": [{"title": "Q1"}]}`)
	run, err := s.CreateRun(ctx, RunKindResearch, input)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, RunStatusRunning, run.Status)

	result := json.RawMessage(`{"synthesis": "done"}`)
	require.NoError(t, s.CompleteRun(ctx, run.ID, result))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunKindResearch, got.Kind)
	assert.Equal(t, RunStatusComplete, got.Status)
	assert.JSONEq(t, string(input), string(got.Input))
	assert.JSONEq(t, string(result), string(got.Result))
}

func TestSQLiteFailRun(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, RunKindRisk, nil)
	require.NoError(t, err)
	require.NoError(t, s.FailRun(ctx, run.ID, "invalid input"))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, got.Status)
	assert.Equal(t, "invalid input", got.Error)
	assert.Empty(t, got.Result)
}

func TestSQLiteRunNotFound(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.GetRun(ctx, "missing")
	assert.Error(t, err)
	assert.Error(t, s.CompleteRun(ctx, "missing", nil))
	assert.Error(t, s.FailRun(ctx, "missing", "x"))
}

func TestSQLiteListRuns(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	r1, err := s.CreateRun(ctx, RunKindResearch, nil)
	require.NoError(t, err)
	_, err = s.CreateRun(ctx, RunKindRisk, nil)
	require.NoError(t, err)
	require.NoError(t, s.CompleteRun(ctx, r1.ID, json.RawMessage(`{}`)))

	all, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	research, err := s.ListRuns(ctx, RunFilter{Kind: RunKindResearch})
	require.NoError(t, err)
	require.Len(t, research, 1)
	assert.Equal(t, r1.ID, research[0].ID)

	complete, err := s.ListRuns(ctx, RunFilter{Status: RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, complete, 1)
	assert.Equal(t, r1.ID, complete[0].ID)
}

func TestSQLiteMarketCatalog(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	price := 0.64
	now := time.Now().UTC().Truncate(time.Second)
	markets := []CatalogMarket{
		{ID: "1", Slug: "fed-cut-march", Question: "Fed cuts rates in March?", EventTitle: "Fed decisions", Active: true, Volume: 1200, YesPrice: &price, SyncedAt: now},
		{ID: "2", Slug: "btc-100k", Question: "BTC above $100k by June?", Active: true, Volume: 90000, SyncedAt: now},
	}

	n, err := s.UpsertMarkets(ctx, markets)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Upsert again with updated fields; no duplicates.
	markets[0].Volume = 5000
	_, err = s.UpsertMarkets(ctx, markets)
	require.NoError(t, err)

	found, err := s.SearchMarkets(ctx, "fed", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "1", found[0].ID)
	assert.Equal(t, float64(5000), found[0].Volume)
	require.NotNil(t, found[0].YesPrice)
	assert.Equal(t, price, *found[0].YesPrice)

	// Results ordered by volume.
	all, err := s.SearchMarkets(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "2", all[0].ID)
}
