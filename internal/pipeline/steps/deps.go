package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/article-agent/internal/llm"
	"github.com/jonathan/article-agent/internal/prompts"
	"github.com/jonathan/article-agent/internal/research"
	"github.com/jonathan/article-agent/internal/types"
	"github.com/jonathan/article-agent/internal/vocab"
)

const promptFile = "sop.json"

// SampleLister lists a channel's style samples for suggestions.
type SampleLister interface {
	ListSamples(ctx context.Context, channelID uuid.UUID) ([]types.StyleSample, error)
}

// Deps are the collaborators shared by the built-in executors.
type Deps struct {
	Generator llm.Generator
	Searcher  research.Searcher
	Research  research.Options
	Samples   SampleLister
	Blocked   vocab.Source
	Logger    *slog.Logger
}

// Builtin returns the nine standard executors.
func Builtin(d Deps) []Executor {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Research.MaxResults == 0 {
		d.Research = research.DefaultOptions()
	}
	return []Executor{
		&briefStep{d},
		&knowledgeStep{d},
		&topicsStep{d},
		&checklistStep{d},
		&stylePlanStep{d},
		&materialsStep{d},
		&draftStep{d},
		&reviewStep{d},
		&illustrationStep{d},
	}
}

// NewBuiltinRegistry is NewRegistry over Builtin(d).
func NewBuiltinRegistry(checkpoints []int, d Deps) (*Registry, error) {
	return NewRegistry(checkpoints, Builtin(d)...)
}

// call describes one prompt-pair generation.
type call struct {
	prompt      string
	data        map[string]string
	temperature float64
	maxTokens   int
	json        bool
}

func (d Deps) generate(ctx context.Context, c call) (string, error) {
	if d.Generator == nil {
		return "", fmt.Errorf("no generator configured")
	}
	system, user, err := prompts.Pair(promptFile, c.prompt, c.data)
	if err != nil {
		return "", err
	}
	out, err := d.Generator.Generate(ctx, llm.Request{
		System:          system,
		User:            user,
		Temperature:     c.temperature,
		MaxOutputTokens: c.maxTokens,
		JSON:            c.json,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func encode(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode step data: %w", err)
	}
	return data, nil
}

// decodePrior unmarshals the Data of an earlier step into v.
// It reports false when the step is absent or its data does not decode.
func decodePrior(in Input, step int, v any) bool {
	out, ok := in.Prior[step]
	if !ok || len(out.Data) == 0 {
		return false
	}
	return json.Unmarshal(out.Data, v) == nil
}

func info(step int, format string, args ...any) types.LogNote {
	return types.LogNote{Step: step, Level: types.LogInfo, Message: fmt.Sprintf(format, args...)}
}

func warn(step int, format string, args ...any) types.LogNote {
	return types.LogNote{Step: step, Level: types.LogWarn, Message: fmt.Sprintf(format, args...)}
}

func bulletList(items []string) string {
	if len(items) == 0 {
		return "- 无"
	}
	var sb strings.Builder
	for i, item := range items {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("- ")
		sb.WriteString(item)
	}
	return sb.String()
}

func joinOr(items []string, sep, empty string) string {
	if len(items) == 0 {
		return empty
	}
	return strings.Join(items, sep)
}

func strPtr(s string) *string { return &s }
