package schemas_test

import (
	"encoding/json"
	"testing"

	"github.com/jonathan/article-agent/internal/schemas"
	rootschemas "github.com/jonathan/article-agent/schemas"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllSchemaFiles_ValidJSON(t *testing.T) {
	names, err := rootschemas.Names()
	require.NoError(t, err)
	require.NotEmpty(t, names)

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			content, err := rootschemas.Load(name)
			require.NoError(t, err)

			var schemaObj map[string]interface{}
			require.NoError(t, json.Unmarshal([]byte(content), &schemaObj), "schema file should be valid JSON: %s", name)

			_, hasType := schemaObj["type"]
			_, hasSchema := schemaObj["$schema"]
			assert.True(t, hasType && hasSchema, "schema should declare type and $schema")
		})
	}
}

func TestStyleProfileSchema_ValidatesExample(t *testing.T) {
	schema, err := rootschemas.Load(rootschemas.StyleProfile)
	require.NoError(t, err)

	valid := `{
		"opening_style": {"type": "story_intro", "description": "starts with a scene"},
		"sentence_pattern": {"avg_length": 22, "short_ratio": 0.6},
		"paragraph_rhythm": {"variation": "medium", "avg_paragraph_length": 80},
		"tone": {"type": "warm_friend", "formality": 0.3},
		"ending_style": {"type": "reflection"},
		"expressions": {"high_freq_words": ["其实"], "avoid_words": ["赋能"]}
	}`
	assert.NoError(t, schemas.ValidateJSONString(schema, valid))

	invalid := `{"tone": {"formality": 3}}`
	err = schemas.ValidateJSONString(schema, invalid)
	require.Error(t, err)
	var ve *schemas.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestLoad_Unknown(t *testing.T) {
	_, err := rootschemas.Load("missing.schema.json")
	assert.Error(t, err)
}
