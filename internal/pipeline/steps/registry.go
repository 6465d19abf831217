// Package steps provides the nine SOP step executors and the registry that
// carries step metadata, including which steps are checkpoints.
package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jonathan/article-agent/internal/curation"
	"github.com/jonathan/article-agent/internal/types"
)

// DefaultCheckpoints are the steps that wait for editor confirmation.
var DefaultCheckpoints = []int{2, 3, 5, 6}

// Step names
const (
	StepBrief        = "brief_analysis"
	StepKnowledge    = "knowledge_research"
	StepTopics       = "topic_proposals"
	StepChecklist    = "collaboration_checklist"
	StepStylePlan    = "style_material_plan"
	StepMaterials    = "materials_confirmation"
	StepDraft        = "draft"
	StepReview       = "three_pass_review"
	StepIllustration = "illustration_plan"
)

// Definition is the registry metadata for one step.
type Definition struct {
	Step           int    `json:"step"`
	Name           string `json:"name"`
	Checkpoint     bool   `json:"is_checkpoint"`
	NeedsStyle     bool   `json:"needs_style"`
	NeedsMaterials bool   `json:"needs_materials"`
}

// MaterialSet is the curated retrieval result handed to the material-planning step.
type MaterialSet struct {
	Curated *curation.Result `json:"curated"`
	Method  string           `json:"method"`
	Query   string           `json:"query"`
}

// Input is everything an executor may read. Prior only holds outputs of
// steps lower than the one being executed.
type Input struct {
	Task      *types.WritingTask
	Prior     map[int]types.StepOutput
	Channel   *types.Channel
	Style     *types.EffectiveStyle
	Materials *MaterialSet
	Params    map[string]string
}

// Result is what an executor produces. The registry decides IsCheckpoint.
type Result struct {
	Output       string
	Data         json.RawMessage
	LogMessage   string
	IsCheckpoint bool
	Fields       types.StepFields
	Notes        []types.LogNote
}

// Executor runs one step.
type Executor interface {
	Step() int
	Name() string
	Execute(ctx context.Context, in Input) (*Result, error)
}

// Registry maps step numbers to executors and definitions.
type Registry struct {
	executors   map[int]Executor
	definitions map[int]Definition
}

// UnknownStepError is returned for a step outside the registry.
type UnknownStepError struct {
	Step int
}

func (e *UnknownStepError) Error() string {
	return fmt.Sprintf("unknown step: %d", e.Step)
}

// NewRegistry builds a registry for steps 1..9. Every step needs exactly one
// executor and every checkpoint must name a registered step.
func NewRegistry(checkpoints []int, executors ...Executor) (*Registry, error) {
	r := &Registry{
		executors:   make(map[int]Executor, len(executors)),
		definitions: make(map[int]Definition, len(executors)),
	}
	for _, e := range executors {
		step := e.Step()
		if step < types.FirstStep || step > types.LastStep {
			return nil, &UnknownStepError{Step: step}
		}
		if _, dup := r.executors[step]; dup {
			return nil, fmt.Errorf("duplicate executor for step %d", step)
		}
		r.executors[step] = e
		r.definitions[step] = Definition{
			Step:           step,
			Name:           e.Name(),
			NeedsStyle:     step == 5 || step == 7 || step == 8,
			NeedsMaterials: step == 5,
		}
	}
	for step := types.FirstStep; step <= types.LastStep; step++ {
		if _, ok := r.executors[step]; !ok {
			return nil, fmt.Errorf("no executor registered for step %d", step)
		}
	}
	for _, step := range checkpoints {
		def, ok := r.definitions[step]
		if !ok {
			return nil, &UnknownStepError{Step: step}
		}
		def.Checkpoint = true
		r.definitions[step] = def
	}
	return r, nil
}

// Definition returns the metadata for step.
func (r *Registry) Definition(step int) (Definition, bool) {
	def, ok := r.definitions[step]
	return def, ok
}

// Definitions returns all definitions ordered by step.
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, 0, len(r.definitions))
	for _, def := range r.definitions {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Step < out[j].Step })
	return out
}

// IsCheckpoint reports whether step waits for confirmation.
func (r *Registry) IsCheckpoint(step int) bool {
	return r.definitions[step].Checkpoint
}

// Run executes step and stamps the configured checkpoint flag on the result.
func (r *Registry) Run(ctx context.Context, step int, in Input) (*Result, error) {
	e, ok := r.executors[step]
	if !ok {
		return nil, &UnknownStepError{Step: step}
	}
	res, err := e.Execute(ctx, in)
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = &Result{}
	}
	res.IsCheckpoint = r.definitions[step].Checkpoint
	return res, nil
}
