package style

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jonathan/article-agent/internal/schemas"
	"github.com/jonathan/article-agent/internal/types"
	rootschemas "github.com/jonathan/article-agent/schemas"
)

// ErrNoSampleStore is returned by Sample when the resolver has no sample source.
var ErrNoSampleStore = errors.New("no sample store configured")

// SampleSource looks up style samples. It returns (nil, nil) when no sample
// with the given id exists.
type SampleSource interface {
	GetSample(ctx context.Context, id uuid.UUID) (*types.StyleSample, error)
}

// Resolution is the resolved directive plus any soft warnings raised on the way.
type Resolution struct {
	Style    *types.EffectiveStyle
	Warnings []string
}

// Resolver turns a task's style inputs into one effective directive.
// It never fails: missing or unusable inputs degrade to lower levels.
type Resolver struct {
	samples SampleSource
	logger  *slog.Logger
}

// NewResolver creates a resolver. samples may be nil when no sample store exists.
func NewResolver(samples SampleSource, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{samples: samples, logger: logger}
}

// Resolve computes the effective style for task under channel.
func (r *Resolver) Resolve(ctx context.Context, task *types.WritingTask, channel *types.Channel) Resolution {
	var warnings []string
	layers := Layers{Override: task.UserStyleOverride}

	if id := task.SelectedSampleID; id != nil {
		if task.SelectedSampleProfile != nil {
			layers.Sample = task.SelectedSampleProfile
			layers.SampleID = id.String()
		} else {
			sample, warn := r.loadSample(ctx, task.ChannelID, *id)
			if warn != "" {
				warnings = append(warnings, warn)
				r.logger.Warn("style sample unavailable, falling back",
					"task_id", task.ID, "sample_id", id, "reason", warn)
			}
			if sample != nil {
				layers.Sample = sample.Profile
				layers.SampleID = sample.ID.String()
			}
		}
	}

	if channel != nil {
		layers.Channel = channel.DefaultStyle
		layers.BannedVocabulary = channel.BlockedPhrases
	}

	return Resolution{Style: Merge(layers), Warnings: warnings}
}

// Sample returns the sample with id, or nil when it does not exist.
func (r *Resolver) Sample(ctx context.Context, id uuid.UUID) (*types.StyleSample, error) {
	if r.samples == nil {
		return nil, ErrNoSampleStore
	}
	return r.samples.GetSample(ctx, id)
}

// PinnableProfile returns a copy of the sample's profile when it is usable
// as a style level, nil otherwise.
func PinnableProfile(sample *types.StyleSample) *types.StyleProfile {
	if sample == nil || sample.Profile.IsEmpty() {
		return nil
	}
	if err := schemas.ValidateValue(rootschemas.StyleProfile, sample.Profile); err != nil {
		return nil
	}
	return sample.Profile.Clone()
}

// loadSample reads a selected sample that was not pinned at confirmation.
func (r *Resolver) loadSample(ctx context.Context, channelID, id uuid.UUID) (*types.StyleSample, string) {
	sample, err := r.Sample(ctx, id)
	if errors.Is(err, ErrNoSampleStore) {
		return nil, fmt.Sprintf("selected sample %s cannot be loaded: no sample store", id)
	}
	if err != nil {
		return nil, fmt.Sprintf("selected sample %s could not be loaded: %v", id, err)
	}
	if sample == nil {
		return nil, fmt.Sprintf("selected sample %s not found, using channel default", id)
	}
	if sample.ChannelID != channelID {
		return nil, fmt.Sprintf("selected sample %s belongs to another channel, using channel default", id)
	}
	if sample.Profile.IsEmpty() {
		return nil, fmt.Sprintf("selected sample %s has not been analyzed, using channel default", id)
	}
	if err := schemas.ValidateValue(rootschemas.StyleProfile, sample.Profile); err != nil {
		return nil, fmt.Sprintf("selected sample %s has an invalid profile, using channel default: %v", id, err)
	}
	return sample, ""
}

// Layers are the precedence levels fed to Merge, highest first.
type Layers struct {
	Override         *types.UserStyleOverride
	Sample           *types.StyleProfile
	SampleID         string
	Channel          *types.StyleProfile
	BannedVocabulary []string
}

// level is one profile source with its label and rank (lower wins).
type level struct {
	label   string
	rank    int
	profile *types.StyleProfile
}

// Merge applies field-level precedence across layers and the builtin default.
func Merge(l Layers) *types.EffectiveStyle {
	levels := make([]level, 0, 3)
	if l.Sample != nil {
		levels = append(levels, level{label: SourceSamplePrefix + l.SampleID, rank: 3, profile: l.Sample})
	}
	if l.Channel != nil {
		levels = append(levels, level{label: SourceChannelDefault, rank: 4, profile: l.Channel})
	}
	levels = append(levels, level{label: SourceBuiltinDefault, rank: 5, profile: BuiltinDefault()})

	out := &types.EffectiveStyle{FieldSources: make(map[string]string, len(ResolvedFields)+1)}
	best := 5
	mark := func(field, label string, rank int) {
		out.FieldSources[field] = label
		if rank < best {
			best = rank
		}
	}

	ov := l.Override
	if ov != nil && strings.TrimSpace(ov.CustomRequirement) != "" {
		out.CustomRequirement = ov.CustomRequirement
		mark(FieldCustomRequirement, SourceUserOverride, 1)
	}

	// structural logic and guidelines
	if ov != nil && ov.StructuralLogic.Active() {
		out.StructuralSequence = types.CloneStrings(ov.StructuralLogic.Value)
		mark(FieldStructuralLogic, SourceUserOverride, 2)
	} else {
		lv := pick(levels, func(p *types.StyleProfile) bool { return len(p.StructuralLogic) > 0 })
		out.StructuralSequence = types.CloneStrings(lv.profile.StructuralLogic)
		mark(FieldStructuralLogic, lv.label, lv.rank)
	}
	if ov != nil && ov.WritingGuidelines.Active() {
		out.WritingGuidelines = types.CloneStrings(ov.WritingGuidelines.Value)
		mark(FieldWritingGuidelines, SourceUserOverride, 2)
	} else {
		lv := pick(levels, func(p *types.StyleProfile) bool { return len(p.WritingGuidelines) > 0 })
		out.WritingGuidelines = types.CloneStrings(lv.profile.WritingGuidelines)
		mark(FieldWritingGuidelines, lv.label, lv.rank)
	}

	// six dimensions
	resolveText := func(field string, o *types.OverrideText, has func(*types.StyleProfile) bool, describe func(*types.StyleProfile) string) string {
		if o.Active() {
			mark(field, SourceUserOverride, 2)
			return o.Value
		}
		lv := pick(levels, has)
		mark(field, lv.label, lv.rank)
		return describe(lv.profile)
	}
	var oOpening, oSentence, oRhythm, oTone, oEnding *types.OverrideText
	var oExpressions *types.OverrideList
	if ov != nil {
		oOpening, oSentence, oRhythm = ov.Opening, ov.SentencePattern, ov.ParagraphRhythm
		oTone, oEnding, oExpressions = ov.Tone, ov.Ending, ov.Expressions
	}

	out.Dimensions.Opening = resolveText(FieldOpening, oOpening,
		func(p *types.StyleProfile) bool { return p.Opening != nil && p.Opening.Type != "" },
		func(p *types.StyleProfile) string { return describeOpening(p.Opening) })
	out.Dimensions.SentencePattern = resolveText(FieldSentencePattern, oSentence,
		func(p *types.StyleProfile) bool { return p.SentencePattern != nil },
		func(p *types.StyleProfile) string { return describeSentence(p.SentencePattern) })
	out.Dimensions.ParagraphRhythm = resolveText(FieldParagraphRhythm, oRhythm,
		func(p *types.StyleProfile) bool { return p.ParagraphRhythm != nil },
		func(p *types.StyleProfile) string { return describeRhythm(p.ParagraphRhythm) })
	out.Dimensions.Tone = resolveText(FieldTone, oTone,
		func(p *types.StyleProfile) bool { return p.Tone != nil && p.Tone.Type != "" },
		func(p *types.StyleProfile) string { return describeTone(p.Tone) })
	out.Dimensions.Ending = resolveText(FieldEnding, oEnding,
		func(p *types.StyleProfile) bool { return p.Ending != nil && p.Ending.Type != "" },
		func(p *types.StyleProfile) string { return describeEnding(p.Ending) })

	if oExpressions.Active() {
		out.Dimensions.Expressions = strings.Join(oExpressions.Value, ", ")
		mark(FieldExpressions, SourceUserOverride, 2)
	} else {
		lv := pick(levels, func(p *types.StyleProfile) bool { return !expressionsEmpty(p.Expressions) })
		out.Dimensions.Expressions = describeExpressions(lv.profile.Expressions)
		mark(FieldExpressions, lv.label, lv.rank)
	}

	// vocabulary is a union across levels, highest first
	var preferred, avoided []string
	if oExpressions.Active() {
		preferred = append(preferred, oExpressions.Value...)
	}
	for _, lv := range levels {
		if e := lv.profile.Expressions; e != nil {
			preferred = append(preferred, e.HighFreqWords...)
			avoided = append(avoided, e.AvoidWords...)
		}
	}
	avoided = append(avoided, l.BannedVocabulary...)
	out.PreferredVocabulary = uniqueStrings(preferred)
	out.AvoidedVocabulary = uniqueStrings(avoided)

	out.SourceLabel = labelFor(best, levels)
	return out
}

// pick returns the highest level whose profile satisfies has.
// The builtin level always satisfies the dimensions it defines.
func pick(levels []level, has func(*types.StyleProfile) bool) level {
	for _, lv := range levels {
		if has(lv.profile) {
			return lv
		}
	}
	return levels[len(levels)-1]
}

func labelFor(rank int, levels []level) string {
	if rank <= 2 {
		return SourceUserOverride
	}
	for _, lv := range levels {
		if lv.rank == rank {
			return lv.label
		}
	}
	return SourceBuiltinDefault
}

func describeOpening(o *types.Opening) string {
	if o == nil {
		return ""
	}
	return joinDescriptor(o.Type, o.Description, o.Example)
}

func describeTone(t *types.Tone) string {
	if t == nil {
		return ""
	}
	s := joinDescriptor(t.Type, t.Description, "")
	if t.Formality > 0 {
		s += fmt.Sprintf(" (formality %.1f)", t.Formality)
	}
	return s
}

func describeEnding(e *types.Ending) string {
	if e == nil {
		return ""
	}
	return joinDescriptor(e.Type, e.Description, e.Example)
}

func describeSentence(s *types.SentencePattern) string {
	if s == nil {
		return ""
	}
	if s.Description != "" {
		return s.Description
	}
	return fmt.Sprintf("average %d characters, %.0f%% short sentences", s.AvgLength, s.ShortRatio*100)
}

func describeRhythm(r *types.ParagraphRhythm) string {
	if r == nil {
		return ""
	}
	return joinDescriptor(r.Variation, r.Description, "")
}

func describeExpressions(e *types.Expressions) string {
	if expressionsEmpty(e) {
		return ""
	}
	var parts []string
	if len(e.HighFreqWords) > 0 {
		parts = append(parts, "frequent words: "+strings.Join(e.HighFreqWords, ", "))
	}
	if len(e.TransitionPhrases) > 0 {
		parts = append(parts, "transitions: "+strings.Join(e.TransitionPhrases, ", "))
	}
	if len(e.AvoidWords) > 0 {
		parts = append(parts, "avoid: "+strings.Join(e.AvoidWords, ", "))
	}
	return strings.Join(parts, "; ")
}

func expressionsEmpty(e *types.Expressions) bool {
	return e == nil || (len(e.HighFreqWords) == 0 && len(e.TransitionPhrases) == 0 && len(e.AvoidWords) == 0)
}

func joinDescriptor(kind, description, example string) string {
	s := kind
	if description != "" {
		if s != "" {
			s += ": "
		}
		s += description
	}
	if example != "" {
		s += fmt.Sprintf(" (e.g. %q)", example)
	}
	return s
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
