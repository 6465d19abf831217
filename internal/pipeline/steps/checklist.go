package steps

import (
	"context"

	"github.com/jonathan/article-agent/internal/types"
)

type checklistStep struct{ Deps }

func (s *checklistStep) Step() int    { return 4 }
func (s *checklistStep) Name() string { return StepChecklist }

func (s *checklistStep) Execute(ctx context.Context, in Input) (*Result, error) {
	topic := TopicOf(in)
	out, err := s.generate(ctx, call{
		prompt:      "checklist",
		data:        map[string]string{"Topic": topic},
		temperature: 0.3,
	})
	if err != nil {
		return nil, err
	}

	checklist := Checklist{Topic: topic, Sections: []Section{}}
	items := 0
	for _, sec := range parseSections(out) {
		if len(sec.Items) == 0 {
			continue
		}
		checklist.Sections = append(checklist.Sections, sec)
		items += len(sec.Items)
	}
	data, err := encode(checklist)
	if err != nil {
		return nil, err
	}

	return &Result{
		Output:     out,
		Data:       data,
		LogMessage: "building collaboration checklist for: " + topic,
		Notes:      []types.LogNote{info(4, "checklist has %d items in %d sections", items, len(checklist.Sections))},
	}, nil
}
