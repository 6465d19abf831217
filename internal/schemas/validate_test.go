package schemas

import (
	"testing"

	rootschemas "github.com/jonathan/article-agent/schemas"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEmbedded_StyleProfile(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{name: "empty profile", doc: `{}`},
		{name: "full profile", doc: `{
			"opening_style": {"type": "question"},
			"tone": {"type": "warm_friend", "formality": 0.2},
			"ending_style": {"type": "call_to_action"},
			"structural_logic": ["hook", "story", "insight"]
		}`},
		{name: "tone without type", doc: `{"tone": {"formality": 0.2}}`, wantErr: true},
		{name: "short ratio out of range", doc: `{"sentence_pattern": {"short_ratio": 1.4}}`, wantErr: true},
		{name: "unknown rhythm variation", doc: `{"paragraph_rhythm": {"variation": "wild"}}`, wantErr: true},
		{name: "structural logic not a list", doc: `{"structural_logic": "hook"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmbedded(rootschemas.StyleProfile, []byte(tt.doc))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			validationErr, ok := err.(*ValidationError)
			require.True(t, ok, "error should be ValidationError type")
			assert.Greater(t, len(validationErr.Errors), 0)
			assert.Equal(t, rootschemas.StyleProfile, validationErr.Schema)
		})
	}
}

func TestValidateEmbedded_UnknownSchema(t *testing.T) {
	err := ValidateEmbedded("nope.schema.json", []byte(`{}`))
	require.Error(t, err)

	var loadErr *SchemaLoadError
	assert.ErrorAs(t, err, &loadErr)
}

func TestValidateEmbedded_MalformedDocument(t *testing.T) {
	err := ValidateEmbedded(rootschemas.StyleProfile, []byte(`{not json`))
	require.Error(t, err)

	var loadErr *SchemaLoadError
	assert.ErrorAs(t, err, &loadErr)
}

func TestValidateValue(t *testing.T) {
	type tone struct {
		Type string `json:"type"`
	}
	assert.NoError(t, ValidateValue(rootschemas.StyleProfile, map[string]any{"tone": tone{Type: "calm"}}))
	assert.Error(t, ValidateValue(rootschemas.StyleProfile, map[string]any{"tone": tone{}}))
}

func TestValidateJSONString_Valid(t *testing.T) {
	schema := `{"type": "object", "required": ["name"], "properties": {"name": {"type": "string"}}}`
	assert.NoError(t, ValidateJSONString(schema, `{"name": "deep_reading"}`))
}

func TestValidateJSONString_Invalid(t *testing.T) {
	schema := `{"type": "object", "required": ["name"], "properties": {"name": {"type": "string"}}}`

	err := ValidateJSONString(schema, `{"name": 42}`)
	require.Error(t, err)
	validationErr, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Equal(t, "name", validationErr.Errors[0].Field)
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{
		Schema: "x.schema.json",
		Errors: []FieldError{
			{Field: "tone", Message: "type is required"},
			{Field: "(root)", Message: "bad"},
		},
	}

	msg := err.Error()
	assert.Contains(t, msg, "against x.schema.json")
	assert.Contains(t, msg, "1. tone: type is required")
	assert.Contains(t, msg, "2. (root): bad")
}
