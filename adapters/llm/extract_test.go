package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject_DirectParse(t *testing.T) {
	var out map[string]interface{}
	err := ExtractJSONObject(`{"a": "b"}`, &out)
	require.NoError(t, err)
	assert.Equal(t, "b", out["a"])
}

func TestExtractJSONObject_MarkdownFences(t *testing.T) {
	var out map[string]interface{}
	err := ExtractJSONObject("```json\n{\"a\": \"b\"}\n```", &out)
	require.NoError(t, err)
	assert.Equal(t, "b", out["a"])
}

func TestExtractJSONObject_ThinkBlock(t *testing.T) {
	var out map[string]interface{}
	err := ExtractJSONObject("<think>\nlet me reason about this\n</think>\n{\"a\": \"b\"}", &out)
	require.NoError(t, err)
	assert.Equal(t, "b", out["a"])
}

func TestExtractJSONObject_ChatterLines(t *testing.T) {
	var out map[string]interface{}
	err := ExtractJSONObject("Here is the mapping you asked for:\n{\"a\": \"b\"}", &out)
	require.NoError(t, err)
	assert.Equal(t, "b", out["a"])
}

func TestExtractJSONObject_SubstringFallback(t *testing.T) {
	var out map[string]interface{}
	err := ExtractJSONObject(`The best match is {"a": "b"} based on the names.`, &out)
	require.NoError(t, err)
	assert.Equal(t, "b", out["a"])
}

func TestExtractJSONObject_NoObject(t *testing.T) {
	var out map[string]interface{}
	err := ExtractJSONObject("there is nothing json-like in here", &out)
	assert.Error(t, err)
}

func TestStripThink_RemovesBlock(t *testing.T) {
	got := StripThink("<think>internal monologue</think>answer")
	assert.Equal(t, "answer", got)
}

func TestStripThink_MultilineBlock(t *testing.T) {
	got := StripThink("<think>\nline one\nline two\n</think>\nanswer")
	assert.Equal(t, "answer", got)
}
