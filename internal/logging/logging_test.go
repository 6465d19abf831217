package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithWriters_Fanout(t *testing.T) {
	var text, js bytes.Buffer
	logger := WithWriters(&text, &js, slog.LevelInfo)

	logger.Info("step completed", "task_id", "t-1", "step", 3)
	logger.Debug("hidden")

	assert.Contains(t, text.String(), "step completed")
	assert.Contains(t, text.String(), "task_id=t-1")
	assert.NotContains(t, text.String(), "hidden")

	var record map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(js.Bytes()), &record))
	assert.Equal(t, "step completed", record["msg"])
	assert.Equal(t, float64(3), record["step"])
}

func TestSetup_WritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.log")
	logger, cleanup := Setup(path, slog.LevelWarn)

	logger.Warn("materials unavailable", "channel", "parenting")
	logger.Info("dropped")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"msg":"materials unavailable"`)
}

func TestSetup_FallsBackToStderr(t *testing.T) {
	logger, cleanup := Setup(filepath.Join(t.TempDir(), "missing", "dir", "agent.log"), slog.LevelInfo)
	require.NotNil(t, logger)
	assert.NoError(t, cleanup())
}
