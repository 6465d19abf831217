package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanJSONBlock_MarkdownCodeBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "json code block",
			input:    "```json\n{\"key\": \"value\"}\n```",
			expected: `{"key": "value"}`,
		},
		{
			name:     "generic code block",
			input:    "```\n{\"key\": \"value\"}\n```",
			expected: `{"key": "value"}`,
		},
		{
			name:     "code block with language",
			input:    "```javascript\n{\"key\": \"value\"}\n```",
			expected: `{"key": "value"}`,
		},
		{
			name:     "plain JSON",
			input:    `{"key": "value"}`,
			expected: `{"key": "value"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanJSONBlock(tt.input))
		})
	}
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "simple object", input: `{"key": "value"}`, expected: `{"key": "value"}`},
		{name: "preamble", input: "好的，以下是分析结果：\n{\"theme\": \"亲子阅读\"}", expected: `{"theme": "亲子阅读"}`},
		{name: "trailing text", input: `{"key": "value"} and some more text`, expected: `{"key": "value"}`},
		{name: "braces inside string", input: `{"template": "Hello {name}!"}`, expected: `{"template": "Hello {name}!"}`},
		{name: "escaped quote", input: `Result: {"m": "say \"}\""}`, expected: `{"m": "say \"}\""}`},
		{name: "fenced", input: "```json\n{\"a\": {\"b\": 1}}\n```", expected: `{"a": {"b": 1}}`},
		{name: "empty input", input: "", expected: ""},
		{name: "no object", input: "not json", expected: ""},
		{name: "unbalanced", input: `{"a": 1`, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractJSONObject(tt.input))
		})
	}
}

func TestExtractJSONArray(t *testing.T) {
	assert.Equal(t, `["a", "b"]`, ExtractJSONArray("Here are the tags:\n[\"a\", \"b\"]"))
	assert.Equal(t, `[[1, 2], [3]]`, ExtractJSONArray(`[[1, 2], [3]] extra`))
	assert.Equal(t, "", ExtractJSONArray("none"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "写作", Truncate("写作助手", 2))
	assert.Equal(t, "", Truncate("abc", 0))
}
