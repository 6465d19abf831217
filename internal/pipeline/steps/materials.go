package steps

import (
	"context"
	"strconv"

	"github.com/jonathan/article-agent/internal/prompts"
	"github.com/jonathan/article-agent/internal/types"
)

// materialsStep prints the readiness sheet. It makes no model call.
type materialsStep struct{ Deps }

func (s *materialsStep) Step() int    { return 6 }
func (s *materialsStep) Name() string { return StepMaterials }

func (s *materialsStep) Execute(_ context.Context, in Input) (*Result, error) {
	sheet := MaterialsSheet{Method: "none"}
	var plan StylePlan
	if decodePrior(in, 5, &plan) {
		sheet.MaterialCount = len(plan.Materials)
		sheet.Method = plan.RetrievalMethod
	}

	template, err := prompts.Get(promptFile, "materials-sheet")
	if err != nil {
		return nil, err
	}
	out := prompts.Format(template, map[string]string{
		"MaterialCount": strconv.Itoa(sheet.MaterialCount),
		"Method":        sheet.Method,
	})
	for _, sec := range parseSections(out) {
		sheet.Items = append(sheet.Items, sec.Items...)
	}

	data, err := encode(sheet)
	if err != nil {
		return nil, err
	}
	return &Result{
		Output:     out,
		Data:       data,
		LogMessage: "waiting for the editor to confirm materials are ready",
		Notes:      []types.LogNote{info(6, "%d curated materials available for drafting", sheet.MaterialCount)},
	}, nil
}
