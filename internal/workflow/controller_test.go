package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/article-agent/internal/curation"
	"github.com/jonathan/article-agent/internal/llm"
	"github.com/jonathan/article-agent/internal/pipeline/steps"
	"github.com/jonathan/article-agent/internal/store"
	"github.com/jonathan/article-agent/internal/style"
	"github.com/jonathan/article-agent/internal/types"
	"github.com/jonathan/article-agent/internal/workflow"
)

// scriptedStep is a test executor whose behaviour can be swapped per step.
type scriptedStep struct {
	step int
	h    *harness
}

func (s *scriptedStep) Step() int    { return s.step }
func (s *scriptedStep) Name() string { return stepNames[s.step-1] }

var stepNames = []string{
	steps.StepBrief, steps.StepKnowledge, steps.StepTopics,
	steps.StepChecklist, steps.StepStylePlan, steps.StepMaterials,
	steps.StepDraft, steps.StepReview, steps.StepIllustration,
}

func (s *scriptedStep) Execute(ctx context.Context, in steps.Input) (*steps.Result, error) {
	s.h.mu.Lock()
	s.h.calls[s.step]++
	s.h.inputs[s.step] = in
	fn := s.h.behaviour[s.step]
	s.h.mu.Unlock()
	if fn != nil {
		return fn(ctx, in)
	}
	return &steps.Result{
		Output:     fmt.Sprintf("output of step %d", s.step),
		LogMessage: fmt.Sprintf("step %d produced output", s.step),
	}, nil
}

type harness struct {
	ctrl    *workflow.Controller
	mem     *store.Memory
	channel *types.Channel

	mu        sync.Mutex
	calls     map[int]int
	inputs    map[int]steps.Input
	behaviour map[int]func(context.Context, steps.Input) (*steps.Result, error)
}

type harnessOption func(*workflow.Options)

func newHarness(t *testing.T, checkpoints []int, opts ...harnessOption) *harness {
	t.Helper()
	h := &harness{
		mem:       store.NewMemory(),
		calls:     map[int]int{},
		inputs:    map[int]steps.Input{},
		behaviour: map[int]func(context.Context, steps.Input) (*steps.Result, error){},
	}
	var execs []steps.Executor
	for step := types.FirstStep; step <= types.LastStep; step++ {
		execs = append(execs, &scriptedStep{step: step, h: h})
	}
	registry, err := steps.NewRegistry(checkpoints, execs...)
	require.NoError(t, err)

	h.channel = &types.Channel{Slug: "parenting", Name: "Parenting", IsActive: true, BlockedPhrases: []string{"赋能"}}
	require.NoError(t, h.mem.CreateChannel(context.Background(), h.channel))

	o := workflow.Options{
		Store:        h.mem,
		Channels:     h.mem,
		Registry:     registry,
		Resolver:     style.NewResolver(h.mem, nil),
		PollInterval: 10 * time.Millisecond,
		Retry:        workflow.RetryPolicy{Attempts: 1},
	}
	for _, opt := range opts {
		opt(&o)
	}
	h.ctrl, err = workflow.NewController(o)
	require.NoError(t, err)
	return h
}

func (h *harness) on(step int, fn func(context.Context, steps.Input) (*steps.Result, error)) {
	h.mu.Lock()
	h.behaviour[step] = fn
	h.mu.Unlock()
}

func (h *harness) callCount(step int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[step]
}

func (h *harness) input(step int) steps.Input {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.inputs[step]
}

func (h *harness) create(t *testing.T) *types.WritingTask {
	t.Helper()
	task, err := h.ctrl.CreateTask(context.Background(), workflow.CreateTaskInput{
		ChannelID: h.channel.ID,
		Brief:     "write about toddler sleep",
	})
	require.NoError(t, err)
	return task
}

// advance runs the task forward until it reaches step, confirming checkpoints.
func (h *harness) advance(t *testing.T, id uuid.UUID, step int) *types.WritingTask {
	t.Helper()
	ctx := context.Background()
	for {
		task, err := h.ctrl.GetTask(ctx, id)
		require.NoError(t, err)
		if task.CurrentStep == step && task.Status == types.StatusProcessing {
			return task
		}
		switch task.Status {
		case types.StatusWaitingConfirm:
			_, err = h.ctrl.ConfirmCheckpoint(ctx, id, types.Confirmation{})
		case types.StatusProcessing:
			_, err = h.ctrl.ExecuteStep(ctx, id, task.CurrentStep, nil)
		default:
			t.Fatalf("task stuck in %s at step %d", task.Status, task.CurrentStep)
		}
		require.NoError(t, err)
	}
}

func messages(t *testing.T, h *harness, id uuid.UUID) []string {
	t.Helper()
	entries, err := h.mem.ListLogs(context.Background(), id, 0)
	require.NoError(t, err)
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Message)
	}
	return out
}

func containsMessage(msgs []string, sub string) bool {
	for _, m := range msgs {
		if strings.Contains(m, sub) {
			return true
		}
	}
	return false
}

func TestController_HappyPathToFirstConfirm(t *testing.T) {
	h := newHarness(t, steps.DefaultCheckpoints)
	ctx := context.Background()
	task := h.create(t)

	res, err := h.ctrl.ExecuteStep(ctx, task.ID, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Task.CurrentStep)
	assert.Equal(t, types.StatusProcessing, res.Task.Status)
	assert.False(t, res.Output.IsCheckpoint)

	res, err = h.ctrl.ExecuteStep(ctx, task.ID, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Task.CurrentStep)
	assert.Equal(t, types.StatusWaitingConfirm, res.Task.Status)
	assert.True(t, res.Output.IsCheckpoint)

	confirmed, err := h.ctrl.ConfirmCheckpoint(ctx, task.ID, types.Confirmation{})
	require.NoError(t, err)
	assert.Equal(t, 3, confirmed.CurrentStep)
	assert.Equal(t, types.StatusProcessing, confirmed.Status)
	assert.True(t, confirmed.KnowledgeConfirmed, "confirming the knowledge step marks it confirmed")

	// step 3 sees the outputs of 1 and 2 only
	_, err = h.ctrl.ExecuteStep(ctx, task.ID, 3, nil)
	require.NoError(t, err)
	prior := h.input(3).Prior
	assert.Len(t, prior, 2)
	assert.Contains(t, prior, 1)
	assert.Contains(t, prior, 2)

	msgs := messages(t, h, task.ID)
	assert.True(t, containsMessage(msgs, "task created"))
	assert.True(t, containsMessage(msgs, "step 1 produced output"))
	assert.True(t, containsMessage(msgs, "waiting for confirmation"))
	assert.True(t, containsMessage(msgs, "checkpoint 2 confirmed"))
}

func TestController_CheckpointReexecuteIsReplay(t *testing.T) {
	h := newHarness(t, steps.DefaultCheckpoints)
	ctx := context.Background()
	task := h.create(t)
	h.advance(t, task.ID, 2)

	first, err := h.ctrl.ExecuteStep(ctx, task.ID, 2, nil)
	require.NoError(t, err)
	logsBefore := len(messages(t, h, task.ID))

	again, err := h.ctrl.ExecuteStep(ctx, task.ID, 2, nil)
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.Output.Output, again.Output.Output)
	assert.Equal(t, first.Task.Version, again.Task.Version)
	assert.Equal(t, 1, h.callCount(2), "handler is not called again")
	assert.Len(t, messages(t, h, task.ID), logsBefore, "replay writes nothing")
}

func TestController_IllegalTransitions(t *testing.T) {
	h := newHarness(t, steps.DefaultCheckpoints)
	ctx := context.Background()
	task := h.create(t)

	var ve *workflow.ValidationError

	_, err := h.ctrl.ExecuteStep(ctx, task.ID, 3, nil)
	require.ErrorAs(t, err, &ve, "skipping ahead")

	_, err = h.ctrl.ConfirmCheckpoint(ctx, task.ID, types.Confirmation{})
	require.ErrorAs(t, err, &ve, "confirm while processing")

	h.advance(t, task.ID, 2)
	_, err = h.ctrl.ExecuteStep(ctx, task.ID, 1, nil)
	require.ErrorAs(t, err, &ve, "re-running an earlier step")

	_, err = h.ctrl.ExecuteStep(ctx, task.ID, 2, nil)
	require.NoError(t, err)
	_, err = h.ctrl.ExecuteStep(ctx, task.ID, 3, nil)
	require.ErrorAs(t, err, &ve, "running past a waiting checkpoint")

	_, err = h.ctrl.AbortTask(ctx, task.ID, "stop")
	require.NoError(t, err)
	_, err = h.ctrl.ExecuteStep(ctx, task.ID, 2, nil)
	require.ErrorAs(t, err, &ve, "execute after abort")
	_, err = h.ctrl.AbortTask(ctx, task.ID, "again")
	require.ErrorAs(t, err, &ve, "abort twice")

	_, err = h.ctrl.ExecuteStep(ctx, uuid.New(), 1, nil)
	var nf *workflow.NotFoundError
	require.ErrorAs(t, err, &nf)

	got, err := h.ctrl.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentStep)
	assert.Equal(t, types.StatusAborted, got.Status)
}

func TestController_MonotonicThroughCompletion(t *testing.T) {
	h := newHarness(t, steps.DefaultCheckpoints)
	ctx := context.Background()
	task := h.create(t)

	lastStep, lastVersion := task.CurrentStep, task.Version
	for {
		cur, err := h.ctrl.GetTask(ctx, task.ID)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, cur.CurrentStep, lastStep)
		assert.GreaterOrEqual(t, cur.Version, lastVersion)
		lastStep, lastVersion = cur.CurrentStep, cur.Version

		if cur.Status == types.StatusCompleted {
			break
		}
		if cur.Status == types.StatusWaitingConfirm {
			_, err = h.ctrl.ConfirmCheckpoint(ctx, task.ID, types.Confirmation{})
		} else {
			_, err = h.ctrl.ExecuteStep(ctx, task.ID, cur.CurrentStep, nil)
		}
		require.NoError(t, err)
	}

	done, err := h.ctrl.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.LastStep, done.CurrentStep)
	assert.NotNil(t, done.CompletedAt)
	assert.Len(t, done.StepOutputs, types.LastStep)
	for step := types.FirstStep; step <= types.LastStep; step++ {
		assert.Equal(t, 1, h.callCount(step))
	}
	assert.True(t, done.MaterialsReady)
}

func TestController_ConfirmAdvances(t *testing.T) {
	h := newHarness(t, []int{3, 9})
	ctx := context.Background()
	task := h.create(t)
	h.advance(t, task.ID, 3)

	_, err := h.ctrl.ExecuteStep(ctx, task.ID, 3, nil)
	require.NoError(t, err)

	confirmed, err := h.ctrl.ConfirmCheckpoint(ctx, task.ID, types.Confirmation{SelectedTopic: "  bedtime battles  "})
	require.NoError(t, err)
	assert.Equal(t, 4, confirmed.CurrentStep)
	assert.Equal(t, types.StatusProcessing, confirmed.Status)
	assert.Equal(t, "bedtime battles", confirmed.SelectedTopic)

	// confirming the last checkpoint completes the task
	h.advance(t, task.ID, 9)
	_, err = h.ctrl.ExecuteStep(ctx, task.ID, 9, nil)
	require.NoError(t, err)
	final, err := h.ctrl.ConfirmCheckpoint(ctx, task.ID, types.Confirmation{})
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, final.Status)
	assert.Equal(t, 9, final.CurrentStep)
}

func TestController_AbortDuringStepFive(t *testing.T) {
	h := newHarness(t, steps.DefaultCheckpoints)
	ctx := context.Background()
	task := h.create(t)
	h.advance(t, task.ID, 5)

	started := make(chan struct{})
	release := make(chan struct{})
	h.on(5, func(context.Context, steps.Input) (*steps.Result, error) {
		close(started)
		<-release
		return &steps.Result{Output: "late plan"}, nil
	})

	errc := make(chan error, 1)
	go func() {
		_, err := h.ctrl.ExecuteStep(ctx, task.ID, 5, nil)
		errc <- err
	}()
	<-started

	aborted, err := h.ctrl.AbortTask(ctx, task.ID, "editor cancelled")
	require.NoError(t, err)
	assert.Equal(t, types.StatusAborted, aborted.Status)
	assert.Equal(t, 5, aborted.CurrentStep)

	close(release)
	err = <-errc
	var vc *workflow.VersionConflictError
	require.ErrorAs(t, err, &vc, "the late result is discarded")

	got, err := h.ctrl.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusAborted, got.Status)
	assert.Equal(t, 5, got.CurrentStep)
	assert.NotContains(t, got.StepOutputs, 5)
	assert.True(t, containsMessage(messages(t, h, task.ID), "editor cancelled"))
}

func TestController_GenerationFailureRecovery(t *testing.T) {
	h := newHarness(t, steps.DefaultCheckpoints)
	ctx := context.Background()
	task := h.create(t)
	h.advance(t, task.ID, 7)

	h.on(7, func(context.Context, steps.Input) (*steps.Result, error) {
		return nil, &llm.GenerationError{Provider: llm.ProviderStub, Message: "provider unavailable"}
	})
	_, err := h.ctrl.ExecuteStep(ctx, task.ID, 7, nil)
	var ge *llm.GenerationError
	require.ErrorAs(t, err, &ge)

	failed, err := h.ctrl.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusError, failed.Status)
	assert.Equal(t, 7, failed.CurrentStep)
	assert.True(t, containsMessage(messages(t, h, task.ID), "step 7 failed"))

	h.on(7, nil)
	res, err := h.ctrl.ExecuteStep(ctx, task.ID, 7, nil)
	require.NoError(t, err)
	assert.Equal(t, 8, res.Task.CurrentStep)
	assert.Equal(t, types.StatusProcessing, res.Task.Status)
	assert.Equal(t, 2, h.callCount(7))
}

func TestController_ConcurrentExecuteRejected(t *testing.T) {
	h := newHarness(t, steps.DefaultCheckpoints)
	ctx := context.Background()
	task := h.create(t)

	started := make(chan struct{})
	release := make(chan struct{})
	h.on(1, func(context.Context, steps.Input) (*steps.Result, error) {
		close(started)
		<-release
		return &steps.Result{Output: "analysis"}, nil
	})

	errc := make(chan error, 1)
	go func() {
		_, err := h.ctrl.ExecuteStep(ctx, task.ID, 1, nil)
		errc <- err
	}()
	<-started

	_, err := h.ctrl.ExecuteStep(ctx, task.ID, 1, nil)
	var ce *workflow.ConflictError
	require.ErrorAs(t, err, &ce)

	err = h.ctrl.DeleteTask(ctx, task.ID)
	require.ErrorAs(t, err, &ce, "running tasks cannot be deleted")

	close(release)
	require.NoError(t, <-errc)
	assert.Equal(t, 1, h.callCount(1))

	got, err := h.ctrl.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentStep)
}

type fakeGatherer struct {
	set *steps.MaterialSet
	err error
}

func (f fakeGatherer) Gather(context.Context, steps.Input) (*steps.MaterialSet, error) {
	return f.set, f.err
}

func TestController_StyleAndMaterialsForPlanning(t *testing.T) {
	set := &steps.MaterialSet{
		Curated: &curation.Result{Long: []curation.Curated{}, Short: []curation.Curated{{Candidate: curation.Candidate{ID: "m1", Content: "c"}}}},
		Method:  "keyword",
		Query:   "toddler sleep",
	}
	h := newHarness(t, steps.DefaultCheckpoints, func(o *workflow.Options) {
		o.Materials = fakeGatherer{set: set}
	})
	ctx := context.Background()
	task := h.create(t)
	h.advance(t, task.ID, 5)

	res, err := h.ctrl.ExecuteStep(ctx, task.ID, 5, nil)
	require.NoError(t, err)

	in := h.input(5)
	require.NotNil(t, in.Style)
	assert.Equal(t, style.SourceBuiltinDefault, in.Style.SourceLabel)
	assert.Contains(t, in.Style.AvoidedVocabulary, "赋能")
	require.NotNil(t, in.Materials)
	assert.Equal(t, "keyword", in.Materials.Method)

	require.NotNil(t, res.Output.Style, "the output keeps a style snapshot")
	assert.Equal(t, in.Style.SourceLabel, res.Output.Style.SourceLabel)

	msgs := messages(t, h, task.ID)
	assert.True(t, containsMessage(msgs, "style resolved from builtin_default"))
	assert.True(t, containsMessage(msgs, "retrieved materials via keyword"))

	// steps without style needs get none
	assert.Nil(t, h.input(4).Style)
}

func TestController_MissingSampleFallsBackWithWarning(t *testing.T) {
	h := newHarness(t, steps.DefaultCheckpoints, func(o *workflow.Options) {
		o.Materials = fakeGatherer{err: errors.New("index offline")}
	})
	ctx := context.Background()
	task := h.create(t)
	h.advance(t, task.ID, 5)

	// step 5 still runs when materials fail
	_, err := h.ctrl.ExecuteStep(ctx, task.ID, 5, nil)
	require.NoError(t, err)
	assert.Nil(t, h.input(5).Materials)

	// an unanalyzed sample pins no profile, so its deletion surfaces at step 7
	sample := &types.StyleSample{ChannelID: h.channel.ID, Title: "draft sample", Content: "正文"}
	require.NoError(t, h.mem.CreateSample(ctx, sample))
	confirmed, err := h.ctrl.ConfirmCheckpoint(ctx, task.ID, types.Confirmation{SelectedSampleID: &sample.ID})
	require.NoError(t, err)
	assert.Nil(t, confirmed.SelectedSampleProfile)
	require.NoError(t, h.mem.DeleteSample(ctx, sample.ID))

	h.advance(t, task.ID, 7)
	_, err = h.ctrl.ExecuteStep(ctx, task.ID, 7, nil)
	require.NoError(t, err)

	assert.Equal(t, style.SourceBuiltinDefault, h.input(7).Style.SourceLabel)
	msgs := messages(t, h, task.ID)
	assert.True(t, containsMessage(msgs, "materials unavailable"))
	assert.True(t, containsMessage(msgs, "not found, using channel default"))
}

func analyzedSample(channelID uuid.UUID, opening string) *types.StyleSample {
	return &types.StyleSample{
		ChannelID:  channelID,
		Title:      "reference",
		Content:    "正文",
		IsAnalyzed: true,
		Profile: &types.StyleProfile{
			Opening: &types.Opening{Type: opening},
			Tone:    &types.Tone{Type: opening + "_tone"},
		},
	}
}

func TestController_ConfirmSampleChecks(t *testing.T) {
	h := newHarness(t, steps.DefaultCheckpoints)
	ctx := context.Background()

	finance := &types.Channel{Slug: "finance", Name: "Finance", IsActive: true}
	require.NoError(t, h.mem.CreateChannel(ctx, finance))
	foreign := analyzedSample(finance.ID, "finance_hook")
	require.NoError(t, h.mem.CreateSample(ctx, foreign))
	missing := uuid.New()

	task := h.create(t)
	h.advance(t, task.ID, 5)
	_, err := h.ctrl.ExecuteStep(ctx, task.ID, 5, nil)
	require.NoError(t, err)

	tests := []struct {
		name     string
		sampleID uuid.UUID
		wantMsg  string
	}{
		{name: "sample of another channel", sampleID: foreign.ID, wantMsg: "belongs to another channel"},
		{name: "unknown sample", sampleID: missing, wantMsg: "not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := tt.sampleID
			_, err := h.ctrl.ConfirmCheckpoint(ctx, task.ID, types.Confirmation{SelectedSampleID: &id})
			var ve *workflow.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Message, tt.wantMsg)

			got, err := h.ctrl.GetTask(ctx, task.ID)
			require.NoError(t, err)
			assert.Equal(t, types.StatusWaitingConfirm, got.Status)
			assert.Equal(t, 5, got.CurrentStep)
			assert.Nil(t, got.SelectedSampleID)
		})
	}
}

func TestController_PinnedSampleSurvivesDeletion(t *testing.T) {
	h := newHarness(t, steps.DefaultCheckpoints)
	ctx := context.Background()
	sample := analyzedSample(h.channel.ID, "pinned_hook")
	require.NoError(t, h.mem.CreateSample(ctx, sample))

	task := h.create(t)
	h.advance(t, task.ID, 5)
	_, err := h.ctrl.ExecuteStep(ctx, task.ID, 5, nil)
	require.NoError(t, err)
	confirmed, err := h.ctrl.ConfirmCheckpoint(ctx, task.ID, types.Confirmation{SelectedSampleID: &sample.ID})
	require.NoError(t, err)
	require.NotNil(t, confirmed.SelectedSampleProfile)
	assert.Equal(t, "pinned_hook", confirmed.SelectedSampleProfile.Opening.Type)

	h.advance(t, task.ID, 7)
	_, err = h.ctrl.ExecuteStep(ctx, task.ID, 7, nil)
	require.NoError(t, err)
	label := style.SourceSamplePrefix + sample.ID.String()
	assert.Equal(t, label, h.input(7).Style.SourceLabel)

	// re-analysis and deletion after the draft leave the review's style alone
	sample.Profile.Opening.Type = "changed_hook"
	require.NoError(t, h.mem.UpdateSample(ctx, sample))
	require.NoError(t, h.mem.DeleteSample(ctx, sample.ID))

	_, err = h.ctrl.ExecuteStep(ctx, task.ID, 8, nil)
	require.NoError(t, err)
	review := h.input(8).Style
	require.NotNil(t, review)
	assert.Equal(t, label, review.SourceLabel)
	assert.Contains(t, review.Dimensions.Opening, "pinned_hook")
	assert.False(t, containsMessage(messages(t, h, task.ID), "using channel default"))
}

func TestController_ConfirmScopesFieldsToCheckpoint(t *testing.T) {
	h := newHarness(t, steps.DefaultCheckpoints)
	ctx := context.Background()
	task := h.create(t)

	h.advance(t, task.ID, 2)
	_, err := h.ctrl.ExecuteStep(ctx, task.ID, 2, nil)
	require.NoError(t, err)
	summary := "孩子需要固定的睡前仪式"
	_, err = h.ctrl.ConfirmCheckpoint(ctx, task.ID, types.Confirmation{KnowledgeSummary: &summary})
	require.NoError(t, err)

	_, err = h.ctrl.ExecuteStep(ctx, task.ID, 3, nil)
	require.NoError(t, err)
	_, err = h.ctrl.ConfirmCheckpoint(ctx, task.ID, types.Confirmation{SelectedTopic: "bedtime battles"})
	require.NoError(t, err)

	h.advance(t, task.ID, 5)
	_, err = h.ctrl.ExecuteStep(ctx, task.ID, 5, nil)
	require.NoError(t, err)
	rewritten := "rewritten at step 5"
	confirmed, err := h.ctrl.ConfirmCheckpoint(ctx, task.ID, types.Confirmation{
		KnowledgeSummary: &rewritten,
		SelectedTopic:    "new topic at step 5",
		UserMaterials:    "early materials",
		StyleOverride:    &types.UserStyleOverride{CustomRequirement: "more dialogue"},
		Note:             "style ok",
	})
	require.NoError(t, err)

	assert.Equal(t, summary, confirmed.KnowledgeSummary)
	assert.Equal(t, "bedtime battles", confirmed.SelectedTopic)
	assert.Empty(t, confirmed.UserMaterials)
	assert.False(t, confirmed.MaterialsReady)
	require.NotNil(t, confirmed.UserStyleOverride)
	assert.Equal(t, "more dialogue", confirmed.UserStyleOverride.CustomRequirement)
	assert.Equal(t, 6, confirmed.CurrentStep)

	msgs := messages(t, h, task.ID)
	assert.True(t, containsMessage(msgs, "checkpoint 5 confirmed: style ok"))
	assert.True(t, containsMessage(msgs, "ignored input it does not accept: knowledge_summary, selected_topic, user_materials"))
}

func TestController_CreateTask(t *testing.T) {
	h := newHarness(t, steps.DefaultCheckpoints)
	ctx := context.Background()

	var ve *workflow.ValidationError
	_, err := h.ctrl.CreateTask(ctx, workflow.CreateTaskInput{ChannelID: h.channel.ID, Brief: "   "})
	require.ErrorAs(t, err, &ve)

	var ce *workflow.ConfigurationError
	_, err = h.ctrl.CreateTask(ctx, workflow.CreateTaskInput{ChannelID: uuid.New(), Brief: "brief"})
	require.ErrorAs(t, err, &ce)

	other := &types.Channel{Slug: "retired", Name: "Retired", IsActive: false}
	require.NoError(t, h.mem.CreateChannel(ctx, other))
	_, err = h.ctrl.CreateTask(ctx, workflow.CreateTaskInput{ChannelID: other.ID, Brief: "brief"})
	require.ErrorAs(t, err, &ce)

	task, err := h.ctrl.CreateTask(ctx, workflow.CreateTaskInput{ChannelID: h.channel.ID, Title: " Sleep ", Brief: "brief"})
	require.NoError(t, err)
	assert.Equal(t, "Sleep", task.Title)
	assert.Equal(t, 1, task.CurrentStep)
	assert.Equal(t, types.StatusProcessing, task.Status)
}

func TestController_ListAndDelete(t *testing.T) {
	h := newHarness(t, steps.DefaultCheckpoints)
	ctx := context.Background()
	a := h.create(t)
	h.create(t)

	all, err := h.ctrl.ListTasks(ctx, types.TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	bad := types.TaskStatus("paused")
	_, err = h.ctrl.ListTasks(ctx, types.TaskFilter{Status: &bad})
	var ve *workflow.ValidationError
	require.ErrorAs(t, err, &ve)

	require.NoError(t, h.ctrl.DeleteTask(ctx, a.ID))
	_, err = h.ctrl.GetTask(ctx, a.ID)
	var nf *workflow.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestController_StreamLog(t *testing.T) {
	h := newHarness(t, steps.DefaultCheckpoints)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	task := h.create(t)

	_, err := h.ctrl.ExecuteStep(ctx, task.ID, 1, nil)
	require.NoError(t, err)

	entries, err := h.ctrl.StreamLog(ctx, task.ID, 0)
	require.NoError(t, err)

	go func() {
		_, _ = h.ctrl.ExecuteStep(ctx, task.ID, 2, nil)
		_, _ = h.ctrl.AbortTask(ctx, task.ID, "done watching")
	}()

	var got []types.LogEntry
	for e := range entries {
		got = append(got, e)
	}
	require.NotEmpty(t, got)
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i].Seq, got[i-1].Seq, "entries arrive in order without duplicates")
	}
	assert.Contains(t, got[len(got)-1].Message, "done watching")

	// a late subscriber gets only what it missed, then the stream closes
	tail, err := h.ctrl.StreamLog(ctx, task.ID, got[len(got)-2].Seq)
	require.NoError(t, err)
	var rest []types.LogEntry
	for e := range tail {
		rest = append(rest, e)
	}
	require.Len(t, rest, 1)
	assert.Equal(t, got[len(got)-1].Seq, rest[0].Seq)

	_, err = h.ctrl.StreamLog(ctx, uuid.New(), 0)
	var nf *workflow.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestNewController_RequiresCollaborators(t *testing.T) {
	_, err := workflow.NewController(workflow.Options{})
	var ce *workflow.ConfigurationError
	require.ErrorAs(t, err, &ce)
}
