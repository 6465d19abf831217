package workflow

import (
	"github.com/jonathan/article-agent/internal/pipeline/steps"
	"github.com/jonathan/article-agent/internal/types"
)

// scopeConfirmation keeps the fields the checkpoint named stepName accepts
// and reports the others by their JSON name. Note is accepted everywhere.
// Confirming knowledge or materials implies the matching flag.
func scopeConfirmation(stepName string, in types.Confirmation) (types.Confirmation, []string) {
	out := types.Confirmation{Note: in.Note}
	var ignored []string

	switch stepName {
	case steps.StepKnowledge:
		out.KnowledgeConfirmed = true
		out.KnowledgeSummary = in.KnowledgeSummary
	case steps.StepTopics:
		out.SelectedTopic = in.SelectedTopic
	case steps.StepStylePlan:
		out.SelectedSampleID = in.SelectedSampleID
		out.StyleOverride = in.StyleOverride
	case steps.StepMaterials:
		out.MaterialsReady = true
		out.UserMaterials = in.UserMaterials
	}

	check := func(name string, given, kept bool) {
		if given && !kept {
			ignored = append(ignored, name)
		}
	}
	check("knowledge_confirmed", in.KnowledgeConfirmed, out.KnowledgeConfirmed)
	check("knowledge_summary", in.KnowledgeSummary != nil, out.KnowledgeSummary != nil)
	check("selected_topic", in.SelectedTopic != "", out.SelectedTopic != "")
	check("selected_sample_id", in.SelectedSampleID != nil, out.SelectedSampleID != nil)
	check("user_style_override", in.StyleOverride != nil, out.StyleOverride != nil)
	check("materials_ready", in.MaterialsReady, out.MaterialsReady)
	check("user_materials", in.UserMaterials != "", out.UserMaterials != "")
	return out, ignored
}
