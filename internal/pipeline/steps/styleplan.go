package steps

import (
	"context"
	"fmt"

	"github.com/jonathan/article-agent/internal/curation"
	"github.com/jonathan/article-agent/internal/style"
	"github.com/jonathan/article-agent/internal/types"
)

// maxSuggestions caps the sample suggestions shown at the checkpoint.
const maxSuggestions = 5

type stylePlanStep struct{ Deps }

func (s *stylePlanStep) Step() int    { return 5 }
func (s *stylePlanStep) Name() string { return StepStylePlan }

func (s *stylePlanStep) Execute(ctx context.Context, in Input) (*Result, error) {
	topic := TopicOf(in)
	var notes []types.LogNote

	plan := StylePlan{
		Topic:           topic,
		Style:           in.Style,
		Samples:         []style.SampleMatch{},
		Materials:       []curation.Curated{},
		RetrievalMethod: "none",
	}
	if in.Materials != nil {
		plan.RetrievalMethod = in.Materials.Method
		plan.Query = in.Materials.Query
		if in.Materials.Curated != nil {
			plan.Materials = in.Materials.Curated.All()
			plan.Stats = in.Materials.Curated.Stats
		}
	}

	if s.Samples != nil && in.Task != nil {
		samples, err := s.Samples.ListSamples(ctx, in.Task.ChannelID)
		if err != nil {
			notes = append(notes, warn(5, "sample suggestions unavailable: %v", err))
		} else {
			matches := style.MatchSamples(samples, append(KeywordsOf(in), topic))
			if len(matches) > maxSuggestions {
				matches = matches[:maxSuggestions]
			}
			plan.Samples = matches
		}
	}

	channelName, tags := "", "无"
	if in.Channel != nil {
		channelName = in.Channel.Name
		tags = joinOr(in.Channel.MaterialTags, ", ", "无")
	}

	out, err := s.generate(ctx, call{
		prompt: "style-plan",
		data: map[string]string{
			"Channel":      channelName,
			"MaterialTags": tags,
			"Style":        RenderStyle(in.Style),
			"Topic":        topic,
			"Materials":    formatMaterials(plan.Materials),
		},
		temperature: 0.5,
	})
	if err != nil {
		return nil, err
	}

	data, err := encode(plan)
	if err != nil {
		return nil, err
	}

	label := style.SourceBuiltinDefault
	if in.Style != nil {
		label = in.Style.SourceLabel
	}
	notes = append(notes,
		info(5, "retrieved %d materials via %s (%d long, %d short)", len(plan.Materials), plan.RetrievalMethod, plan.Stats.Long, plan.Stats.Short),
		info(5, "%d style samples suggested", len(plan.Samples)),
	)
	return &Result{
		Output:     out,
		Data:       data,
		LogMessage: fmt.Sprintf("planning style (%s) and materials", label),
		Notes:      notes,
	}, nil
}
