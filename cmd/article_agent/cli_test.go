package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/article-agent/internal/llm"
	"github.com/jonathan/article-agent/internal/pipeline/steps"
	"github.com/jonathan/article-agent/internal/types"
)

const testConfig = `store:
  backend: memory
llm:
  provider: stub
embedding:
  provider: none
research:
  provider: none
channels:
  - slug: parenting
    name: 亲子阅读
    target_audience: 3-8岁孩子的家长
`

// setupCLI writes a memory-backend config and pins the environment so a
// local .env cannot redirect the commands.
func setupCLI(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o644))

	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("LLM_PROVIDER", "stub")
	t.Setenv("EMBEDDING_PROVIDER", "none")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_FILE", "")
	t.Setenv("BLOCKED_WORDS_FILE", "")
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configPath, backend, databaseURL, logFile, verbose = "", "", "", "", false
	taskChannel, taskTitle, taskBrief, taskBriefFile = "", "", "", ""
	runStopAfter, runYes, executeParams = 0, false, nil

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestChannelList_SeededFromConfig(t *testing.T) {
	path := setupCLI(t)

	out, err := runCLI(t, "channel", "list", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "parenting")
	assert.Contains(t, out, "亲子阅读")
}

func TestTaskRun_StopAfterFirstStep(t *testing.T) {
	path := setupCLI(t)

	out, err := runCLI(t, "task", "run", "--config", path,
		"--channel", "parenting", "--brief", "写一篇关于睡前阅读的文章", "--stop-after", "1", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "created task")
	assert.Contains(t, out, "is processing at step 2")
}

func TestTaskRun_Errors(t *testing.T) {
	path := setupCLI(t)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{
			name:    "missing channel flag",
			args:    []string{"task", "run", "--config", path, "--brief", "x"},
			wantErr: "--channel is required",
		},
		{
			name:    "unknown channel",
			args:    []string{"task", "run", "--config", path, "--channel", "cooking", "--brief", "x"},
			wantErr: "cooking",
		},
		{
			name:    "bad task id",
			args:    []string{"task", "run", "not-a-uuid", "--config", path},
			wantErr: "invalid task ID",
		},
		{
			name:    "bad param",
			args:    []string{"task", "execute", "6f1c2a34-5b6d-4e7f-8a9b-0c1d2e3f4a5b", "--config", path, "-p", "novalue"},
			wantErr: "expected key=value",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMigrate_RequiresPostgres(t *testing.T) {
	path := setupCLI(t)

	_, err := runCLI(t, "migrate", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
}

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[string]string
		wantErr bool
	}{
		{name: "none", pairs: nil, want: nil},
		{name: "pairs", pairs: []string{"topic=睡前故事", "tone = warm"}, want: map[string]string{"topic": "睡前故事", "tone": " warm"}},
		{name: "value with equals", pairs: []string{"q=a=b"}, want: map[string]string{"q": "a=b"}},
		{name: "missing equals", pairs: []string{"topic"}, wantErr: true},
		{name: "empty key", pairs: []string{"=x"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseParams(tt.pairs)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPromptConfirm(t *testing.T) {
	registry, err := steps.NewBuiltinRegistry(steps.DefaultCheckpoints, steps.Deps{Generator: llm.NewStub(nil)})
	require.NoError(t, err)

	tests := []struct {
		name   string
		step   int
		input  string
		wantOK bool
		want   types.Confirmation
	}{
		{name: "enter accepts", step: 2, input: "\n", wantOK: true},
		{name: "q stops", step: 2, input: "q\n", wantOK: false},
		{name: "eof stops", step: 2, input: "", wantOK: false},
		{name: "topic reply", step: 3, input: "孩子为什么不爱读书\n", wantOK: true, want: types.Confirmation{SelectedTopic: "孩子为什么不爱读书"}},
		{name: "materials reply", step: 6, input: "上周家长会的案例\n", wantOK: true, want: types.Confirmation{UserMaterials: "上周家长会的案例"}},
		{name: "note elsewhere", step: 5, input: "语气再轻松一点\n", wantOK: true, want: types.Confirmation{Note: "语气再轻松一点"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			confirm := promptConfirm(strings.NewReader(tt.input), &out, registry)

			got, ok := confirm(&types.WritingTask{CurrentStep: tt.step, Status: types.StatusWaitingConfirm})
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.want, got)
			}
			assert.Contains(t, out.String(), "Confirm step")
		})
	}
}

func TestConfirmationFromFlags(t *testing.T) {
	dir := t.TempDir()
	override := filepath.Join(dir, "override.json")
	require.NoError(t, os.WriteFile(override, []byte(`{"custom_requirement":"多用短句"}`), 0o644))

	confirmTopic, confirmNote, confirmMaterials, confirmMaterialFile = "睡前阅读", "ok", "", ""
	confirmSummary, confirmSummarySet = "摘要", true
	confirmSample = "6f1c2a34-5b6d-4e7f-8a9b-0c1d2e3f4a5b"
	confirmOverrideFile = override
	t.Cleanup(func() {
		confirmTopic, confirmNote, confirmSummary, confirmSample, confirmOverrideFile = "", "", "", "", ""
		confirmSummarySet = false
	})

	in, err := confirmationFromFlags()
	require.NoError(t, err)
	assert.Equal(t, "睡前阅读", in.SelectedTopic)
	require.NotNil(t, in.KnowledgeSummary)
	assert.Equal(t, "摘要", *in.KnowledgeSummary)
	require.NotNil(t, in.SelectedSampleID)
	require.NotNil(t, in.StyleOverride)
	assert.Equal(t, "多用短句", in.StyleOverride.CustomRequirement)

	confirmSample = "bad"
	_, err = confirmationFromFlags()
	assert.Error(t, err)
}
