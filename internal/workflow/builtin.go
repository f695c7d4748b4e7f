package workflow

import (
	"github.com/danshapiro/courier/internal/pipeline"
	"github.com/danshapiro/courier/internal/route"
)

// CoordinatorName names the builtin travel-desk router.
const CoordinatorName = "coordinator"

const builtinSource = "builtin:"

// coordinatorDefinition describes route.NewCoordinator declaratively.
func coordinatorDefinition() Definition {
	return Definition{
		Kind:        KindRouter,
		Name:        CoordinatorName,
		Description: "Travel desk coordinator that delegates to booking or information handlers.",
		Instruction: route.CoordinatorInstruction,
		Fallback:    string(route.LabelUnclear),
		Routes: []RouteDef{
			{Label: string(route.LabelBooker), Handler: string(route.LabelBooker)},
			{Label: string(route.LabelInfo), Handler: string(route.LabelInfo)},
			{Label: string(route.LabelUnclear), Handler: string(route.LabelUnclear)},
		},
		Source: builtinSource + CoordinatorName,
	}
}

// reflectionDefinition describes pipeline.NewReflection declaratively.
func reflectionDefinition() Definition {
	return Definition{
		Kind:        KindPipeline,
		Name:        pipeline.ReflectionName,
		Description: "Write a draft, fact-check it, then revise it.",
		Stages: []StageDef{
			{
				Name:        pipeline.StageDrafter,
				Instruction: pipeline.DraftInstruction,
				OutputKey:   pipeline.KeyDraft,
			},
			{
				Name:        pipeline.StageReviewer,
				Instruction: pipeline.ReviewInstruction,
				Reads:       []string{pipeline.KeyDraft},
				OutputKey:   pipeline.KeyReview,
				Schema:      SchemaReview,
			},
			{
				Name:        pipeline.StageReviser,
				Instruction: pipeline.ReviseInstruction,
				Reads:       []string{pipeline.KeyDraft, pipeline.KeyReview},
				OutputKey:   pipeline.KeyFinal,
			},
		},
		Source: builtinSource + pipeline.ReflectionName,
	}
}
