// Package workflow drives writing tasks through the nine-step SOP. It owns
// every status transition; executors only produce step results.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/article-agent/internal/pipeline/steps"
	"github.com/jonathan/article-agent/internal/style"
	"github.com/jonathan/article-agent/internal/types"
)

// Listing limits
const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// abortAttempts bounds how often an abort re-reads a task that moved under it.
const abortAttempts = 3

// Options wires a Controller.
type Options struct {
	Store     TaskStore
	Channels  ChannelProvider
	Registry  *steps.Registry
	Resolver  *style.Resolver
	Materials MaterialGatherer
	Retry     RetryPolicy
	Logger    *slog.Logger
	// PollInterval is how often log followers re-read the store without a signal.
	PollInterval time.Duration
	Now          func() time.Time
}

// Controller is the workflow state machine.
type Controller struct {
	store     TaskStore
	channels  ChannelProvider
	registry  *steps.Registry
	resolver  *style.Resolver
	materials MaterialGatherer
	logger    *slog.Logger
	poll      time.Duration
	now       func() time.Time

	guard *taskGuard
	hub   *hub
}

// NewController validates opts and returns a controller.
func NewController(opts Options) (*Controller, error) {
	if opts.Store == nil {
		return nil, &ConfigurationError{Message: "task store is required"}
	}
	if opts.Channels == nil {
		return nil, &ConfigurationError{Message: "channel provider is required"}
	}
	if opts.Registry == nil {
		return nil, &ConfigurationError{Message: "step registry is required"}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	resolver := opts.Resolver
	if resolver == nil {
		resolver = style.NewResolver(nil, logger)
	}
	if opts.Retry.Attempts == 0 {
		opts.Retry = DefaultRetryPolicy()
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = time.Second
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Controller{
		store:     WithRetry(opts.Store, opts.Retry, logger),
		channels:  opts.Channels,
		registry:  opts.Registry,
		resolver:  resolver,
		materials: opts.Materials,
		logger:    logger,
		poll:      poll,
		now:       now,
		guard:     newTaskGuard(),
		hub:       newHub(),
	}, nil
}

// Registry returns the step registry the controller runs.
func (c *Controller) Registry() *steps.Registry {
	return c.registry
}

// CreateTaskInput is the input of CreateTask.
type CreateTaskInput struct {
	ChannelID uuid.UUID `json:"channel_id"`
	Title     string    `json:"title,omitempty"`
	Brief     string    `json:"brief"`
}

// CreateTask creates a task at step 1 for an active channel.
func (c *Controller) CreateTask(ctx context.Context, in CreateTaskInput) (*types.WritingTask, error) {
	brief := strings.TrimSpace(in.Brief)
	if brief == "" {
		return nil, &ValidationError{Op: "create", Message: "brief is required"}
	}
	channel, err := c.loadChannel(ctx, in.ChannelID)
	if err != nil {
		return nil, err
	}
	if !channel.IsActive {
		return nil, &ConfigurationError{Message: fmt.Sprintf("channel %s is inactive", channel.Slug)}
	}

	task := types.NewWritingTask(channel.ID, strings.TrimSpace(in.Title), brief, c.now())
	if err := c.store.Create(ctx, task); err != nil {
		return nil, err
	}
	c.appendLog(ctx, task.ID, types.LogNote{
		Step:    types.FirstStep,
		Level:   types.LogInfo,
		Message: fmt.Sprintf("task created for channel %s", channel.Slug),
	})
	c.logger.Info("task created", "task_id", task.ID, "channel", channel.Slug)
	return task, nil
}

// StepResult is the outcome of ExecuteStep.
type StepResult struct {
	Task   *types.WritingTask `json:"task"`
	Output types.StepOutput   `json:"output"`
	// Replayed is set when a checkpoint was re-executed and the stored output returned.
	Replayed bool `json:"replayed"`
}

// ExecuteStep runs step for a task. The step must be the task's current step
// and the task must be processing or in error. Re-executing a checkpoint that
// is waiting for confirmation returns the stored output without running the
// handler or writing anything.
func (c *Controller) ExecuteStep(ctx context.Context, id uuid.UUID, step int, params map[string]string) (*StepResult, error) {
	release, running, ok := c.guard.acquire(id, fmt.Sprintf("execute step %d", step))
	if !ok {
		return nil, &ConflictError{TaskID: id, Message: running + " is in progress"}
	}
	defer release()

	task, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	def, known := c.registry.Definition(step)
	if !known {
		return nil, &ValidationError{Op: "execute", TaskID: id, Message: fmt.Sprintf("unknown step %d", step)}
	}

	if task.Status == types.StatusWaitingConfirm && task.CurrentStep == step {
		if out, ok := task.StepOutputs[step]; ok && out.IsCheckpoint {
			return &StepResult{Task: task, Output: out, Replayed: true}, nil
		}
	}
	if err := checkExecutable(task, step); err != nil {
		return nil, err
	}

	channel, err := c.loadChannel(ctx, task.ChannelID)
	if err != nil {
		c.appendLog(ctx, id, types.LogNote{Step: step, Level: types.LogError, Message: err.Error()})
		return nil, err
	}

	in := steps.Input{
		Task:    task.Clone(),
		Prior:   task.OutputsBefore(step),
		Channel: channel,
		Params:  params,
	}
	pre := []types.LogNote{{Step: step, Level: types.LogInfo, Message: fmt.Sprintf("executing step %d (%s)", step, def.Name)}}

	if def.NeedsStyle {
		res := c.resolver.Resolve(ctx, task, channel)
		in.Style = res.Style
		pre = append(pre, types.LogNote{Step: step, Level: types.LogInfo, Message: "style resolved from " + res.Style.SourceLabel})
		for _, w := range res.Warnings {
			pre = append(pre, types.LogNote{Step: step, Level: types.LogWarn, Message: w})
		}
	}
	if def.NeedsMaterials && c.materials != nil {
		set, err := c.materials.Gather(ctx, in)
		if err != nil {
			c.logger.Warn("material gathering failed", "task_id", id, "step", step, "error", err)
			pre = append(pre, types.LogNote{Step: step, Level: types.LogWarn, Message: "materials unavailable: " + err.Error()})
		} else {
			in.Materials = set
			pre = append(pre, types.LogNote{Step: step, Level: types.LogInfo,
				Message: fmt.Sprintf("retrieved materials via %s: %d long, %d short", set.Method, len(set.Curated.Long), len(set.Curated.Short))})
		}
	}
	c.appendLog(ctx, id, pre...)

	started := c.now()
	result, err := c.registry.Run(ctx, step, in)
	if err != nil {
		c.fail(ctx, task, step, err)
		return nil, err
	}

	out := types.StepOutput{
		Step:         step,
		Output:       result.Output,
		Data:         result.Data,
		LogMessage:   result.LogMessage,
		IsCheckpoint: result.IsCheckpoint,
		Style:        in.Style.Clone(),
	}
	notes := make([]types.LogNote, 0, len(result.Notes)+2)
	if result.LogMessage != "" {
		notes = append(notes, types.LogNote{Step: step, Level: types.LogInfo, Message: result.LogMessage})
	}
	notes = append(notes, result.Notes...)
	notes = append(notes, completionNote(step, result.IsCheckpoint, c.now().Sub(started)))

	updated, err := c.store.Update(ctx, id, task.Version, types.StepCompleted{Output: out, Fields: result.Fields, Log: notes})
	if err != nil {
		var vc *VersionConflictError
		if errors.As(err, &vc) {
			c.appendLog(ctx, id, types.LogNote{Step: step, Level: types.LogWarn,
				Message: fmt.Sprintf("step %d result discarded: task changed during execution", step)})
		}
		return nil, err
	}
	c.hub.notify(id)
	c.logger.Info("step completed", "task_id", id, "step", step, "status", updated.Status, "duration", c.now().Sub(started))
	return &StepResult{Task: updated, Output: updated.StepOutputs[step]}, nil
}

// ConfirmCheckpoint accepts the output of the checkpoint the task is waiting
// on, merges the editor input and advances to the next step. Confirming the
// last step completes the task.
func (c *Controller) ConfirmCheckpoint(ctx context.Context, id uuid.UUID, in types.Confirmation) (*types.WritingTask, error) {
	release, running, ok := c.guard.acquire(id, "confirm")
	if !ok {
		return nil, &ConflictError{TaskID: id, Message: running + " is in progress"}
	}
	defer release()

	task, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Status != types.StatusWaitingConfirm {
		return nil, &ValidationError{Op: "confirm", TaskID: id,
			Message: fmt.Sprintf("task is %s, not waiting for confirmation", task.Status)}
	}

	step := task.CurrentStep
	var name string
	if def, ok := c.registry.Definition(step); ok {
		name = def.Name
	}
	in.SelectedTopic = strings.TrimSpace(in.SelectedTopic)
	in, ignored := scopeConfirmation(name, in)
	if len(ignored) > 0 {
		c.logger.Warn("confirmation fields ignored", "task_id", id, "step", step, "fields", ignored)
	}
	if in.KnowledgeSummary != nil {
		s := strings.TrimSpace(*in.KnowledgeSummary)
		in.KnowledgeSummary = &s
	}

	m := types.CheckpointConfirmed{Step: step, Input: in, Ignored: ignored}
	if in.SelectedSampleID != nil {
		profile, err := c.pinSample(ctx, task, *in.SelectedSampleID)
		if err != nil {
			return nil, err
		}
		m.SampleProfile = profile
	}

	updated, err := c.store.Update(ctx, id, task.Version, m)
	if err != nil {
		return nil, err
	}
	c.hub.notify(id)
	c.logger.Info("checkpoint confirmed", "task_id", id, "step", step, "next_step", updated.CurrentStep, "status", updated.Status)
	return updated, nil
}

// pinSample checks that sampleID belongs to the task's channel and returns
// the profile to pin on the task. An unanalyzed sample pins nothing.
func (c *Controller) pinSample(ctx context.Context, task *types.WritingTask, sampleID uuid.UUID) (*types.StyleProfile, error) {
	sample, err := c.resolver.Sample(ctx, sampleID)
	if err != nil {
		if errors.Is(err, style.ErrNoSampleStore) {
			return nil, &ConfigurationError{Message: "cannot select a style sample", Cause: err}
		}
		var pe *PersistenceError
		if errors.As(err, &pe) {
			return nil, err
		}
		return nil, &PersistenceError{Op: "get_sample", Cause: err}
	}
	if sample == nil {
		return nil, &ValidationError{Op: "confirm", TaskID: task.ID,
			Message: fmt.Sprintf("style sample %s not found", sampleID)}
	}
	if sample.ChannelID != task.ChannelID {
		return nil, &ValidationError{Op: "confirm", TaskID: task.ID,
			Message: fmt.Sprintf("style sample %s belongs to another channel", sampleID)}
	}
	return style.PinnableProfile(sample), nil
}

// AbortTask ends a non-terminal task. An execution still in flight keeps
// running but its result is discarded when it tries to write.
func (c *Controller) AbortTask(ctx context.Context, id uuid.UUID, reason string) (*types.WritingTask, error) {
	reason = strings.TrimSpace(reason)
	for attempt := 1; ; attempt++ {
		task, err := c.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if task.Status.IsTerminal() {
			return nil, &ValidationError{Op: "abort", TaskID: id, Message: fmt.Sprintf("task is already %s", task.Status)}
		}
		updated, err := c.store.Update(ctx, id, task.Version, types.TaskAborted{Step: task.CurrentStep, Reason: reason})
		if err == nil {
			c.hub.notify(id)
			c.logger.Info("task aborted", "task_id", id, "step", updated.CurrentStep)
			return updated, nil
		}
		var vc *VersionConflictError
		if !errors.As(err, &vc) || attempt == abortAttempts {
			return nil, err
		}
	}
}

// GetTask returns one task.
func (c *Controller) GetTask(ctx context.Context, id uuid.UUID) (*types.WritingTask, error) {
	return c.load(ctx, id)
}

// ListTasks returns tasks newest first. The limit defaults to DefaultListLimit
// and is capped at MaxListLimit.
func (c *Controller) ListTasks(ctx context.Context, filter types.TaskFilter) ([]types.WritingTask, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, &ValidationError{Op: "list", Message: fmt.Sprintf("unknown status %q", *filter.Status)}
	}
	if filter.Limit <= 0 {
		filter.Limit = DefaultListLimit
	}
	if filter.Limit > MaxListLimit {
		filter.Limit = MaxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return c.store.List(ctx, filter)
}

// DeleteTask removes a task and its log. A task with a call in flight cannot be deleted.
func (c *Controller) DeleteTask(ctx context.Context, id uuid.UUID) error {
	release, running, ok := c.guard.acquire(id, "delete")
	if !ok {
		return &ConflictError{TaskID: id, Message: running + " is in progress"}
	}
	defer release()

	if _, err := c.load(ctx, id); err != nil {
		return err
	}
	if err := c.store.Delete(ctx, id); err != nil {
		return err
	}
	c.hub.notify(id)
	c.logger.Info("task deleted", "task_id", id)
	return nil
}

// Logs returns the task log entries after afterSeq.
func (c *Controller) Logs(ctx context.Context, id uuid.UUID, afterSeq int64) ([]types.LogEntry, error) {
	if _, err := c.load(ctx, id); err != nil {
		return nil, err
	}
	return c.store.ListLogs(ctx, id, afterSeq)
}

// StreamLog replays entries after afterSeq and then follows new ones. The
// channel closes when ctx is done, the task is deleted, or the task is
// terminal and every entry has been delivered.
func (c *Controller) StreamLog(ctx context.Context, id uuid.UUID, afterSeq int64) (<-chan types.LogEntry, error) {
	if _, err := c.load(ctx, id); err != nil {
		return nil, err
	}
	signal, cancel := c.hub.subscribe(id)
	out := make(chan types.LogEntry)

	go func() {
		defer close(out)
		defer cancel()
		ticker := time.NewTicker(c.poll)
		defer ticker.Stop()

		cursor := afterSeq
		drain := func() bool {
			entries, err := c.store.ListLogs(ctx, id, cursor)
			if err != nil {
				c.logger.Warn("log follow read failed", "task_id", id, "error", err)
				return true
			}
			for _, e := range entries {
				select {
				case out <- e:
					cursor = e.Seq
				case <-ctx.Done():
					return false
				}
			}
			return true
		}

		for {
			if !drain() {
				return
			}
			task, err := c.store.Get(ctx, id)
			switch {
			case err != nil:
				c.logger.Warn("log follow status read failed", "task_id", id, "error", err)
			case task == nil:
				return
			case task.Status.IsTerminal():
				drain()
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-signal:
			case <-ticker.C:
			}
		}
	}()
	return out, nil
}

// checkExecutable enforces that only the current step of a processing or
// failed task may run.
func checkExecutable(task *types.WritingTask, step int) error {
	switch task.Status {
	case types.StatusProcessing, types.StatusError:
	case types.StatusWaitingConfirm:
		return &ValidationError{Op: "execute", TaskID: task.ID,
			Message: fmt.Sprintf("step %d is waiting for confirmation", task.CurrentStep)}
	default:
		return &ValidationError{Op: "execute", TaskID: task.ID, Message: fmt.Sprintf("task is %s", task.Status)}
	}
	if step != task.CurrentStep {
		return &ValidationError{Op: "execute", TaskID: task.ID,
			Message: fmt.Sprintf("cannot execute step %d, current step is %d", step, task.CurrentStep)}
	}
	return nil
}

func completionNote(step int, checkpoint bool, took time.Duration) types.LogNote {
	msg := fmt.Sprintf("step %d completed in %s", step, took.Round(time.Millisecond))
	if checkpoint {
		msg = fmt.Sprintf("step %d completed in %s, waiting for confirmation", step, took.Round(time.Millisecond))
	}
	return types.LogNote{Step: step, Level: types.LogInfo, Message: msg}
}

// fail records a handler failure. The write uses a context detached from
// cancellation so a cancelled request still leaves the task in error.
func (c *Controller) fail(ctx context.Context, task *types.WritingTask, step int, cause error) {
	c.logger.Error("step failed", "task_id", task.ID, "step", step, "error", cause)
	wctx := context.WithoutCancel(ctx)
	if _, err := c.store.Update(wctx, task.ID, task.Version, types.StepFailed{Step: step, Reason: cause.Error()}); err != nil {
		c.logger.Warn("failed to record step failure", "task_id", task.ID, "step", step, "error", err)
		c.appendLog(wctx, task.ID, types.LogNote{Step: step, Level: types.LogError,
			Message: fmt.Sprintf("step %d failed: %v", step, cause)})
		return
	}
	c.hub.notify(task.ID)
}

func (c *Controller) load(ctx context.Context, id uuid.UUID) (*types.WritingTask, error) {
	task, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, &NotFoundError{TaskID: id}
	}
	return task, nil
}

func (c *Controller) loadChannel(ctx context.Context, id uuid.UUID) (*types.Channel, error) {
	channel, err := c.channels.GetChannel(ctx, id)
	if err != nil {
		return nil, &PersistenceError{Op: "get_channel", Cause: err}
	}
	if channel == nil {
		return nil, &ConfigurationError{Message: fmt.Sprintf("unknown channel %s", id)}
	}
	return channel, nil
}

// appendLog writes notes outside any transition. Failures are logged, not returned.
func (c *Controller) appendLog(ctx context.Context, id uuid.UUID, notes ...types.LogNote) {
	if len(notes) == 0 {
		return
	}
	if _, err := c.store.AppendLog(ctx, id, notes...); err != nil {
		c.logger.Warn("failed to append task log", "task_id", id, "error", err)
		return
	}
	c.hub.notify(id)
}
