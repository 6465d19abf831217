// Package pipeline drives writing tasks through consecutive SOP steps on
// top of the workflow controller.
package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/article-agent/internal/types"
	"github.com/jonathan/article-agent/internal/workflow"
)

// Event categories
const (
	CategoryStep       = "step"
	CategoryCheckpoint = "checkpoint"
	CategoryConfirm    = "confirm"
	CategoryDone       = "done"
)

// ProgressEvent represents a progress update while a task is driven
type ProgressEvent struct {
	Step     int    `json:"step"`
	Name     string `json:"name,omitempty"`
	Category string `json:"category"`
	Message  string `json:"message"`
	TaskID   string `json:"task_id,omitempty"`
	Content  any    `json:"content,omitempty"`
}

// ProgressCallback is called when driving progresses
type ProgressCallback func(event ProgressEvent)

// ConfirmFunc decides how to confirm a waiting checkpoint. Returning false
// stops the run at the checkpoint.
type ConfirmFunc func(task *types.WritingTask) (types.Confirmation, bool)

// Controller is the subset of the workflow controller the runner needs.
type Controller interface {
	GetTask(ctx context.Context, id uuid.UUID) (*types.WritingTask, error)
	ExecuteStep(ctx context.Context, id uuid.UUID, step int, params map[string]string) (*workflow.StepResult, error)
	ConfirmCheckpoint(ctx context.Context, id uuid.UUID, in types.Confirmation) (*types.WritingTask, error)
}

// RunOptions holds configuration for driving a task
type RunOptions struct {
	// StopAfter stops once this step has completed. Zero runs to the end.
	StopAfter  int
	Params     map[string]string
	Confirm    ConfirmFunc
	OnProgress ProgressCallback
	// StepName labels events. Optional.
	StepName func(step int) string
}

// AlwaysConfirm accepts every checkpoint without edits.
func AlwaysConfirm(*types.WritingTask) (types.Confirmation, bool) {
	return types.Confirmation{}, true
}

func emitProgress(opts *RunOptions, task *types.WritingTask, step int, category, message string, content any) {
	if opts.OnProgress == nil {
		return
	}
	name := ""
	if opts.StepName != nil {
		name = opts.StepName(step)
	}
	opts.OnProgress(ProgressEvent{
		Step:     step,
		Name:     name,
		Category: category,
		Message:  message,
		TaskID:   task.ID.String(),
		Content:  content,
	})
}

// Run executes the task's current step and keeps going until a checkpoint
// is left unconfirmed, StopAfter is reached, or the task ends. It returns the
// last observed task state. A step failure is returned as is; the task is
// left in error for a later retry.
func Run(ctx context.Context, c Controller, id uuid.UUID, opts RunOptions) (*types.WritingTask, error) {
	task, err := c.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return task, err
		}

		switch task.Status {
		case types.StatusCompleted, types.StatusAborted:
			emitProgress(&opts, task, task.CurrentStep, CategoryDone, fmt.Sprintf("task %s", task.Status), nil)
			return task, nil

		case types.StatusWaitingConfirm:
			step := task.CurrentStep
			if opts.Confirm == nil {
				return task, nil
			}
			in, ok := opts.Confirm(task)
			if !ok {
				return task, nil
			}
			task, err = c.ConfirmCheckpoint(ctx, id, in)
			if err != nil {
				return nil, fmt.Errorf("confirm step %d failed: %w", step, err)
			}
			emitProgress(&opts, task, step, CategoryConfirm, fmt.Sprintf("Confirmed step %d", step), nil)
			if opts.StopAfter > 0 && step >= opts.StopAfter {
				return task, nil
			}

		default:
			step := task.CurrentStep
			res, err := c.ExecuteStep(ctx, id, step, opts.Params)
			if err != nil {
				return nil, fmt.Errorf("step %d failed: %w", step, err)
			}
			task = res.Task
			category := CategoryStep
			msg := res.Output.LogMessage
			if msg == "" {
				msg = fmt.Sprintf("Completed step %d", step)
			}
			if res.Output.IsCheckpoint {
				category = CategoryCheckpoint
			}
			emitProgress(&opts, task, step, category, msg, res.Output)
			if opts.StopAfter > 0 && step >= opts.StopAfter && !res.Output.IsCheckpoint {
				return task, nil
			}
		}
	}
}
