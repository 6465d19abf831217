// Package types provides type definitions for structured data used throughout the article agent.
package types

import (
	"encoding/json"
	"maps"
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle state of a writing task.
type TaskStatus string

// Task statuses
const (
	StatusProcessing     TaskStatus = "processing"
	StatusWaitingConfirm TaskStatus = "waiting_confirm"
	StatusCompleted      TaskStatus = "completed"
	StatusError          TaskStatus = "error"
	StatusAborted        TaskStatus = "aborted"
)

// Step bounds of the SOP.
const (
	FirstStep = 1
	LastStep  = 9
)

// IsTerminal reports whether no further transition is allowed from s.
func (s TaskStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusAborted
}

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusProcessing, StatusWaitingConfirm, StatusCompleted, StatusError, StatusAborted:
		return true
	}
	return false
}

// WritingTask is one writing job moving through the 9-step SOP.
type WritingTask struct {
	ID          uuid.UUID          `json:"id"`
	ChannelID   uuid.UUID          `json:"channel_id"`
	Title       string             `json:"title,omitempty"`
	Brief       string             `json:"brief"`
	CurrentStep int                `json:"current_step"`
	Status      TaskStatus         `json:"status"`
	StepOutputs map[int]StepOutput `json:"step_outputs"`

	// Written only by step 2
	KnowledgeText    string `json:"knowledge_text,omitempty"`
	KnowledgeSummary string `json:"knowledge_summary,omitempty"`
	// Written by steps 7 and 8
	DraftText string `json:"draft_text,omitempty"`
	FinalText string `json:"final_text,omitempty"`

	// Written only by confirmation
	SelectedTopic    string     `json:"selected_topic,omitempty"`
	SelectedSampleID *uuid.UUID `json:"selected_sample_id,omitempty"`
	// SelectedSampleProfile is the sample's profile as it was when selected.
	SelectedSampleProfile *StyleProfile      `json:"selected_sample_profile,omitempty"`
	UserStyleOverride     *UserStyleOverride `json:"user_style_override,omitempty"`
	UserMaterials         string             `json:"user_materials,omitempty"`
	KnowledgeConfirmed    bool               `json:"knowledge_confirmed"`
	MaterialsReady        bool               `json:"materials_ready"`

	Version     int64      `json:"version"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewWritingTask returns a task at step 1 in processing state.
func NewWritingTask(channelID uuid.UUID, title, brief string, now time.Time) *WritingTask {
	return &WritingTask{
		ID:          uuid.New(),
		ChannelID:   channelID,
		Title:       title,
		Brief:       brief,
		CurrentStep: FirstStep,
		Status:      StatusProcessing,
		StepOutputs: map[int]StepOutput{},
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Clone returns a deep copy so callers can mutate it without aliasing stored state.
func (t *WritingTask) Clone() *WritingTask {
	if t == nil {
		return nil
	}
	c := *t
	c.StepOutputs = make(map[int]StepOutput, len(t.StepOutputs))
	for k, v := range t.StepOutputs {
		c.StepOutputs[k] = v.clone()
	}
	if t.SelectedSampleID != nil {
		id := *t.SelectedSampleID
		c.SelectedSampleID = &id
	}
	c.SelectedSampleProfile = t.SelectedSampleProfile.Clone()
	if t.UserStyleOverride != nil {
		o := t.UserStyleOverride.Clone()
		c.UserStyleOverride = o
	}
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		c.CompletedAt = &ts
	}
	return &c
}

// OutputsBefore returns the outputs of all steps strictly lower than step.
func (t *WritingTask) OutputsBefore(step int) map[int]StepOutput {
	prior := make(map[int]StepOutput)
	for k, v := range t.StepOutputs {
		if k < step {
			prior[k] = v.clone()
		}
	}
	return prior
}

// StepOutput is the recorded result of one step execution.
type StepOutput struct {
	Step         int             `json:"step"`
	Output       string          `json:"output"`
	Data         json.RawMessage `json:"data,omitempty"`
	LogMessage   string          `json:"log_message,omitempty"`
	IsCheckpoint bool            `json:"is_checkpoint"`
	Style        *EffectiveStyle `json:"style,omitempty"` // snapshot of the style in effect
	CompletedAt  time.Time       `json:"completed_at"`
}

func (o StepOutput) clone() StepOutput {
	c := o
	if o.Data != nil {
		c.Data = append(json.RawMessage(nil), o.Data...)
	}
	if o.Style != nil {
		s := o.Style.Clone()
		c.Style = s
	}
	return c
}

// LogLevel classifies a task log entry.
type LogLevel string

// Log levels
const (
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// LogEntry is one append-only line of a task's think-aloud trail.
type LogEntry struct {
	TaskID    uuid.UUID `json:"task_id"`
	Seq       int64     `json:"seq"`
	Step      int       `json:"step"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// LogNote is a log entry before the store assigns it a sequence number.
type LogNote struct {
	Step    int
	Level   LogLevel
	Message string
}

// Entry materializes the note for task id at time now.
func (n LogNote) Entry(taskID uuid.UUID, now time.Time) LogEntry {
	level := n.Level
	if level == "" {
		level = LogInfo
	}
	return LogEntry{TaskID: taskID, Step: n.Step, Level: level, Message: n.Message, Timestamp: now}
}

// TaskFilter narrows task listings.
type TaskFilter struct {
	ChannelID *uuid.UUID
	Status    *TaskStatus
	Limit     int
	Offset    int
}

// CloneStrings copies a string slice, preserving nil.
func CloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

// cloneStringMap copies a string map, preserving nil.
func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	return maps.Clone(m)
}
