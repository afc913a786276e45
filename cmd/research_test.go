package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charlie-robison/pythia/internal/research"
	"github.com/charlie-robison/pythia/internal/risk"
)

func TestReadYAMLResearchInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.yaml")
	doc := `
main_event:
  title: Presidential Election 2028
  description: Who wins the presidency.
sub_events:
  - title: Candidate A wins
  - id: b-wins
    title: Candidate B wins
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	var in research.Input
	require.NoError(t, readYAML(path, &in))

	require.NotNil(t, in.MainEvent)
	assert.Equal(t, "Presidential Election 2028", in.MainEvent.Title)
	require.Len(t, in.SubEvents, 2)
	assert.Empty(t, in.SubEvents[0].ID)
	assert.Equal(t, "b-wins", in.SubEvents[1].ID)
}

func TestReadYAMLRiskInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "markets.yaml")
	doc := `
markets:
  - id: m1
    question: Will the Fed cut rates?
    current_price: 0.64
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	var in risk.Input
	require.NoError(t, readYAML(path, &in))

	require.Len(t, in.Markets, 1)
	require.NotNil(t, in.Markets[0].CurrentPrice)
	assert.InDelta(t, 0.64, *in.Markets[0].CurrentPrice, 1e-9)
}

func TestReadYAMLMissingFile(t *testing.T) {
	var in research.Input
	assert.Error(t, readYAML(filepath.Join(t.TempDir(), "nope.yaml"), &in))
}

func TestWriteResultToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, writeResult(path, map[string]string{"synthesis": "done"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "done", got["synthesis"])
}
