package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/charlie-robison/pythia/internal/store"
)

func TestFormatRuns(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	runs := []store.Run{
		{
			ID:        "0b5e1f2a-1111-2222-3333-444455556666",
			Kind:      store.RunKindResearch,
			Status:    store.RunStatusComplete,
			CreatedAt: created,
			UpdatedAt: created.Add(95 * time.Second),
		},
	}

	var buf bytes.Buffer
	formatRuns(&buf, runs)

	out := buf.String()
	assert.Contains(t, out, "0b5e1f2a")
	assert.NotContains(t, out, "444455556666")
	assert.Contains(t, out, "research")
	assert.Contains(t, out, "complete")
	assert.Contains(t, out, "1m35s")
}

func TestFormatMarkets(t *testing.T) {
	price := 0.64
	var buf bytes.Buffer
	formatMarkets(&buf, []store.CatalogMarket{
		{ID: "100", Question: "Will the Fed cut rates in March?", YesPrice: &price, Volume: 125000, EventTitle: "Fed Decision"},
		{ID: "101", Question: "Will it rain?"},
	})

	out := buf.String()
	assert.Contains(t, out, "0.640")
	assert.Contains(t, out, "125000")
	assert.Contains(t, out, "Fed Decision")
	// Markets without a synced price show a dash.
	assert.Contains(t, out, "-")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "12345678", truncateID("123456789abc"))
	assert.Equal(t, "short", truncateID("short"))
}
