package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Mutation is the closed set of writes a task store accepts.
// Each mutation carries the log notes that must be appended with it.
type Mutation interface {
	// Name identifies the mutation in logs and persistence errors.
	Name() string
	// Notes returns the log lines written atomically with the mutation.
	Notes() []LogNote
	apply(t *WritingTask, now time.Time)
}

// Apply applies m to t, bumps the version and stamps UpdatedAt.
func Apply(t *WritingTask, m Mutation, now time.Time) {
	if t.StepOutputs == nil {
		t.StepOutputs = map[int]StepOutput{}
	}
	m.apply(t, now)
	t.Version++
	t.UpdatedAt = now
}

// StepFields are the large-text task fields a step may write.
// Each is only honoured for the step that owns it.
type StepFields struct {
	KnowledgeText    *string `json:"knowledge_text,omitempty"`
	KnowledgeSummary *string `json:"knowledge_summary,omitempty"`
	DraftText        *string `json:"draft_text,omitempty"`
	FinalText        *string `json:"final_text,omitempty"`
}

// StepCompleted records a successful step execution.
type StepCompleted struct {
	Output StepOutput
	Fields StepFields
	Log    []LogNote
}

// Name implements Mutation.
func (m StepCompleted) Name() string { return "step_completed" }

// Notes implements Mutation.
func (m StepCompleted) Notes() []LogNote { return m.Log }

func (m StepCompleted) apply(t *WritingTask, now time.Time) {
	out := m.Output
	if out.CompletedAt.IsZero() {
		out.CompletedAt = now
	}
	t.StepOutputs[out.Step] = out

	switch out.Step {
	case 2:
		if m.Fields.KnowledgeText != nil {
			t.KnowledgeText = *m.Fields.KnowledgeText
		}
		if m.Fields.KnowledgeSummary != nil {
			t.KnowledgeSummary = *m.Fields.KnowledgeSummary
		}
	case 7:
		if m.Fields.DraftText != nil {
			t.DraftText = *m.Fields.DraftText
		}
	case 8:
		if m.Fields.FinalText != nil {
			t.FinalText = *m.Fields.FinalText
		}
	}

	switch {
	case out.IsCheckpoint:
		t.Status = StatusWaitingConfirm
	case out.Step >= LastStep:
		t.CurrentStep = LastStep
		t.Status = StatusCompleted
		t.CompletedAt = &now
	default:
		t.CurrentStep = out.Step + 1
		t.Status = StatusProcessing
	}
}

// StepFailed records a handler failure. The task stays on the same step.
type StepFailed struct {
	Step   int
	Reason string
}

// Name implements Mutation.
func (m StepFailed) Name() string { return "step_failed" }

// Notes implements Mutation.
func (m StepFailed) Notes() []LogNote {
	return []LogNote{{Step: m.Step, Level: LogError, Message: fmt.Sprintf("step %d failed: %s", m.Step, m.Reason)}}
}

func (m StepFailed) apply(t *WritingTask, _ time.Time) {
	t.Status = StatusError
}

// Confirmation is the editor's input when accepting a checkpoint.
// Zero-valued fields are left untouched on the task.
type Confirmation struct {
	KnowledgeConfirmed bool               `json:"knowledge_confirmed,omitempty"`
	KnowledgeSummary   *string            `json:"knowledge_summary,omitempty"`
	SelectedTopic      string             `json:"selected_topic,omitempty"`
	SelectedSampleID   *uuid.UUID         `json:"selected_sample_id,omitempty"`
	StyleOverride      *UserStyleOverride `json:"user_style_override,omitempty"`
	MaterialsReady     bool               `json:"materials_ready,omitempty"`
	UserMaterials      string             `json:"user_materials,omitempty"`
	Note               string             `json:"note,omitempty"`
}

// CheckpointConfirmed accepts the current checkpoint output and advances.
type CheckpointConfirmed struct {
	Step  int
	Input Confirmation
	// SampleProfile is pinned on the task together with Input.SelectedSampleID.
	SampleProfile *StyleProfile
	// Ignored names input fields the checkpoint does not accept.
	Ignored []string
}

// Name implements Mutation.
func (m CheckpointConfirmed) Name() string { return "checkpoint_confirmed" }

// Notes implements Mutation.
func (m CheckpointConfirmed) Notes() []LogNote {
	msg := fmt.Sprintf("checkpoint %d confirmed", m.Step)
	if m.Input.Note != "" {
		msg += ": " + m.Input.Note
	}
	notes := []LogNote{{Step: m.Step, Level: LogInfo, Message: msg}}
	if len(m.Ignored) > 0 {
		notes = append(notes, LogNote{Step: m.Step, Level: LogWarn,
			Message: fmt.Sprintf("checkpoint %d ignored input it does not accept: %s", m.Step, strings.Join(m.Ignored, ", "))})
	}
	return notes
}

func (m CheckpointConfirmed) apply(t *WritingTask, now time.Time) {
	in := m.Input
	if in.KnowledgeConfirmed {
		t.KnowledgeConfirmed = true
	}
	if in.KnowledgeSummary != nil {
		t.KnowledgeSummary = *in.KnowledgeSummary
	}
	if in.SelectedTopic != "" {
		t.SelectedTopic = in.SelectedTopic
	}
	if in.SelectedSampleID != nil {
		id := *in.SelectedSampleID
		t.SelectedSampleID = &id
		t.SelectedSampleProfile = m.SampleProfile.Clone()
	}
	if in.StyleOverride != nil {
		t.UserStyleOverride = in.StyleOverride.Clone()
	}
	if in.MaterialsReady {
		t.MaterialsReady = true
	}
	if in.UserMaterials != "" {
		t.UserMaterials = in.UserMaterials
	}

	if m.Step >= LastStep {
		t.CurrentStep = LastStep
		t.Status = StatusCompleted
		t.CompletedAt = &now
		return
	}
	t.CurrentStep = m.Step + 1
	t.Status = StatusProcessing
}

// TaskAborted ends the task. current_step is left where it was.
type TaskAborted struct {
	Step   int
	Reason string
}

// Name implements Mutation.
func (m TaskAborted) Name() string { return "task_aborted" }

// Notes implements Mutation.
func (m TaskAborted) Notes() []LogNote {
	msg := "task aborted"
	if m.Reason != "" {
		msg += ": " + m.Reason
	}
	return []LogNote{{Step: m.Step, Level: LogWarn, Message: msg}}
}

func (m TaskAborted) apply(t *WritingTask, _ time.Time) {
	t.Status = StatusAborted
}
