package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charlie-robison/pythia/internal/pipeline"
)

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"plain fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"embedded in prose", `Sure, here is the answer: {"a":1} hope that helps!`, `{"a":1}`},
		{"nested braces", `note {"a":{"b":2}} done`, `{"a":{"b":2}}`},
		{"no object", "no json here", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanJSON(tt.in))
		})
	}
}

func TestExtractJSON(t *testing.T) {
	t.Run("fenced object", func(t *testing.T) {
		var dst struct {
			Signals []string `json:"signals"`
		}
		err := ExtractJSON("```json\n{\"signals\":[\"a\",\"b\"]}\n```", &dst)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, dst.Signals)
	})

	t.Run("no object is malformed", func(t *testing.T) {
		var dst map[string]any
		err := ExtractJSON("I could not produce JSON, sorry.", &dst)
		require.Error(t, err)
		assert.ErrorIs(t, err, pipeline.ErrMalformed)
	})

	t.Run("truncated object is malformed", func(t *testing.T) {
		var dst map[string]any
		err := ExtractJSON(`{"a": [1, 2`, &dst)
		require.Error(t, err)
		assert.ErrorIs(t, err, pipeline.ErrMalformed)
	})
}

func TestAsString(t *testing.T) {
	assert.Equal(t, "", AsString(nil))
	assert.Equal(t, "hi", AsString("hi"))
	assert.Equal(t, "3.5", AsString(3.5))
	assert.Equal(t, "true", AsString(true))
	assert.Equal(t, "", AsString([]any{"x"}))
}

func TestAsStringList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, AsStringList([]any{"a", " b ", "", nil}))
	assert.Equal(t, []string{"solo"}, AsStringList("solo"))
	assert.Nil(t, AsStringList("  "))
	assert.Nil(t, AsStringList(42.0))
}

func TestAsFloat(t *testing.T) {
	f, ok := AsFloat(0.62)
	assert.True(t, ok)
	assert.InDelta(t, 0.62, f, 1e-9)

	_, ok = AsFloat("0.62")
	assert.False(t, ok)
}

func TestAsMapList(t *testing.T) {
	got := AsMapList([]any{map[string]any{"id": "a"}, "noise", map[string]any{"id": "b"}})
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0]["id"])

	assert.Nil(t, AsMapList("not a list"))
}
