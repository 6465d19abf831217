package style

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/article-agent/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSamples map[uuid.UUID]*types.StyleSample

func (f fakeSamples) GetSample(_ context.Context, id uuid.UUID) (*types.StyleSample, error) {
	return f[id], nil
}

type failingSamples struct{}

func (failingSamples) GetSample(context.Context, uuid.UUID) (*types.StyleSample, error) {
	return nil, errors.New("connection refused")
}

func sampleProfile() *types.StyleProfile {
	return &types.StyleProfile{
		Opening:         &types.Opening{Type: "question", Description: "ask the reader a question"},
		Tone:            &types.Tone{Type: "expert", Description: "calm and precise"},
		Expressions:     &types.Expressions{HighFreqWords: []string{"其实", "慢慢来"}, AvoidWords: []string{"必须"}},
		StructuralLogic: []string{"question", "case", "method"},
	}
}

func channelProfile() *types.StyleProfile {
	return &types.StyleProfile{
		Opening:           &types.Opening{Type: "scene"},
		Ending:            &types.Ending{Type: "call_to_action", Description: "invite the reader to try"},
		Expressions:       &types.Expressions{HighFreqWords: []string{"孩子", "其实"}},
		WritingGuidelines: []string{"one idea per paragraph"},
	}
}

func TestMerge_BuiltinWhenNothingConfigured(t *testing.T) {
	es := Merge(Layers{})

	assert.Equal(t, SourceBuiltinDefault, es.SourceLabel)
	assert.Contains(t, es.Dimensions.Opening, "story_intro")
	assert.Contains(t, es.Dimensions.Tone, "warm_friend")
	assert.Contains(t, es.Dimensions.Ending, "reflection")
	assert.Empty(t, es.AvoidedVocabulary)
	assert.NotEmpty(t, es.StructuralSequence)
	for _, f := range ResolvedFields {
		assert.Equal(t, SourceBuiltinDefault, es.FieldSources[f], f)
	}
}

func TestMerge_FieldLevelPrecedence(t *testing.T) {
	sampleID := uuid.New().String()
	override := &types.UserStyleOverride{
		Opening: &types.OverrideText{Value: "start with dialogue", IsCustomized: true},
		// not customized, must not win
		Tone: &types.OverrideText{Value: "sarcastic", IsCustomized: false},
	}

	es := Merge(Layers{
		Override: override,
		Sample:   sampleProfile(),
		SampleID: sampleID,
		Channel:  channelProfile(),
	})

	tests := []struct {
		field  string
		source string
	}{
		{FieldOpening, SourceUserOverride},
		{FieldTone, SourceSamplePrefix + sampleID},
		{FieldStructuralLogic, SourceSamplePrefix + sampleID},
		{FieldEnding, SourceChannelDefault},
		{FieldWritingGuidelines, SourceChannelDefault},
		{FieldSentencePattern, SourceBuiltinDefault},
		{FieldExpressions, SourceSamplePrefix + sampleID},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.source, es.FieldSources[tt.field])
		})
	}

	assert.Equal(t, "start with dialogue", es.Dimensions.Opening)
	assert.Contains(t, es.Dimensions.Tone, "expert")
	assert.NotContains(t, es.Dimensions.Tone, "sarcastic")
	assert.Equal(t, []string{"question", "case", "method"}, es.StructuralSequence)
	assert.Equal(t, []string{"one idea per paragraph"}, es.WritingGuidelines)
	assert.Equal(t, SourceUserOverride, es.SourceLabel)
}

func TestMerge_OverrideOnlyOneFieldSampleTwo(t *testing.T) {
	sampleID := uuid.New().String()
	es := Merge(Layers{
		Override: &types.UserStyleOverride{
			Tone: &types.OverrideText{Value: "playful", IsCustomized: true},
		},
		Sample:   sampleProfile(),
		SampleID: sampleID,
	})

	assert.Equal(t, "playful", es.Dimensions.Tone)
	assert.Equal(t, SourceUserOverride, es.FieldSources[FieldTone])
	assert.Contains(t, es.Dimensions.Opening, "question")
	assert.Equal(t, SourceSamplePrefix+sampleID, es.FieldSources[FieldOpening])
}

func TestMerge_CustomRequirementAlwaysInjected(t *testing.T) {
	es := Merge(Layers{
		Override: &types.UserStyleOverride{CustomRequirement: "每段不超过三句话"},
		Channel:  channelProfile(),
	})

	assert.Equal(t, "每段不超过三句话", es.CustomRequirement)
	assert.Equal(t, SourceUserOverride, es.FieldSources[FieldCustomRequirement])
	assert.Equal(t, SourceUserOverride, es.SourceLabel)
	assert.Equal(t, SourceChannelDefault, es.FieldSources[FieldOpening])
}

func TestMerge_ListOverrides(t *testing.T) {
	es := Merge(Layers{
		Override: &types.UserStyleOverride{
			StructuralLogic:   &types.OverrideList{Value: []string{"a", "b"}, IsCustomized: true},
			WritingGuidelines: &types.OverrideList{Value: []string{"no jargon"}, IsCustomized: true},
			Expressions:       &types.OverrideList{Value: []string{"说实话"}, IsCustomized: true},
		},
		Sample: sampleProfile(),
	})

	assert.Equal(t, []string{"a", "b"}, es.StructuralSequence)
	assert.Equal(t, []string{"no jargon"}, es.WritingGuidelines)
	assert.Equal(t, "说实话", es.Dimensions.Expressions)
	assert.Equal(t, "说实话", es.PreferredVocabulary[0])
}

func TestMerge_VocabularyUnion(t *testing.T) {
	es := Merge(Layers{
		Sample:           sampleProfile(),
		Channel:          channelProfile(),
		BannedVocabulary: []string{"赋能", "必须"},
	})

	assert.Equal(t, []string{"其实", "慢慢来", "孩子"}, es.PreferredVocabulary)
	assert.Equal(t, []string{"必须", "赋能"}, es.AvoidedVocabulary)
}

func TestMerge_ChannelOnlyLabel(t *testing.T) {
	es := Merge(Layers{Channel: channelProfile()})
	assert.Equal(t, SourceChannelDefault, es.SourceLabel)
}

func TestResolver_Resolve(t *testing.T) {
	ctx := context.Background()
	channel := &types.Channel{ID: uuid.New(), DefaultStyle: channelProfile(), BlockedPhrases: []string{"赋能"}}
	sample := &types.StyleSample{ID: uuid.New(), ChannelID: channel.ID, Title: "s", Profile: sampleProfile(), IsAnalyzed: true}

	t.Run("selected sample", func(t *testing.T) {
		task := types.NewWritingTask(channel.ID, "", "brief", time.Now())
		task.SelectedSampleID = &sample.ID

		res := NewResolver(fakeSamples{sample.ID: sample}, nil).Resolve(ctx, task, channel)
		assert.Empty(t, res.Warnings)
		assert.Equal(t, SourceSamplePrefix+sample.ID.String(), res.Style.SourceLabel)
		assert.Contains(t, res.Style.AvoidedVocabulary, "赋能")
	})

	t.Run("missing sample falls back to channel", func(t *testing.T) {
		task := types.NewWritingTask(channel.ID, "", "brief", time.Now())
		missing := uuid.New()
		task.SelectedSampleID = &missing

		res := NewResolver(fakeSamples{}, nil).Resolve(ctx, task, channel)
		require.Len(t, res.Warnings, 1)
		assert.Contains(t, res.Warnings[0], "not found")
		assert.Equal(t, SourceChannelDefault, res.Style.SourceLabel)
	})

	t.Run("lookup error falls back", func(t *testing.T) {
		task := types.NewWritingTask(channel.ID, "", "brief", time.Now())
		task.SelectedSampleID = &sample.ID

		res := NewResolver(failingSamples{}, nil).Resolve(ctx, task, channel)
		require.Len(t, res.Warnings, 1)
		assert.Equal(t, SourceChannelDefault, res.Style.SourceLabel)
	})

	t.Run("invalid sample profile is skipped", func(t *testing.T) {
		bad := &types.StyleSample{ID: uuid.New(), ChannelID: channel.ID, IsAnalyzed: true, Profile: &types.StyleProfile{
			SentencePattern: &types.SentencePattern{ShortRatio: 3},
		}}
		task := types.NewWritingTask(channel.ID, "", "brief", time.Now())
		task.SelectedSampleID = &bad.ID

		res := NewResolver(fakeSamples{bad.ID: bad}, nil).Resolve(ctx, task, channel)
		require.Len(t, res.Warnings, 1)
		assert.Contains(t, res.Warnings[0], "invalid profile")
	})

	t.Run("sample of another channel is skipped", func(t *testing.T) {
		foreign := &types.StyleSample{ID: uuid.New(), ChannelID: uuid.New(), IsAnalyzed: true, Profile: sampleProfile()}
		task := types.NewWritingTask(channel.ID, "", "brief", time.Now())
		task.SelectedSampleID = &foreign.ID

		res := NewResolver(fakeSamples{foreign.ID: foreign}, nil).Resolve(ctx, task, channel)
		require.Len(t, res.Warnings, 1)
		assert.Contains(t, res.Warnings[0], "another channel")
		assert.Equal(t, SourceChannelDefault, res.Style.SourceLabel)
	})

	t.Run("pinned profile wins over the stored sample", func(t *testing.T) {
		task := types.NewWritingTask(channel.ID, "", "brief", time.Now())
		task.SelectedSampleID = &sample.ID
		task.SelectedSampleProfile = &types.StyleProfile{Opening: &types.Opening{Type: "pinned_hook"}}

		// the sample is gone from the store
		res := NewResolver(fakeSamples{}, nil).Resolve(ctx, task, channel)
		assert.Empty(t, res.Warnings)
		assert.Equal(t, SourceSamplePrefix+sample.ID.String(), res.Style.SourceLabel)
		assert.Contains(t, res.Style.Dimensions.Opening, "pinned_hook")
	})

	t.Run("nothing configured", func(t *testing.T) {
		task := types.NewWritingTask(uuid.New(), "", "brief", time.Now())
		res := NewResolver(nil, nil).Resolve(ctx, task, nil)
		assert.Empty(t, res.Warnings)
		assert.Equal(t, SourceBuiltinDefault, res.Style.SourceLabel)
	})
}

func TestPinnableProfile(t *testing.T) {
	tests := []struct {
		name   string
		sample *types.StyleSample
		want   bool
	}{
		{name: "nil sample", sample: nil},
		{name: "not analyzed", sample: &types.StyleSample{}},
		{name: "invalid profile", sample: &types.StyleSample{Profile: &types.StyleProfile{
			SentencePattern: &types.SentencePattern{ShortRatio: 3},
		}}},
		{name: "analyzed", sample: &types.StyleSample{Profile: sampleProfile()}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PinnableProfile(tt.sample)
			if !tt.want {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.sample.Profile, got)
			got.Opening.Type = "changed"
			assert.NotEqual(t, "changed", tt.sample.Profile.Opening.Type)
		})
	}
}
