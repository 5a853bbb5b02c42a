package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func gatedStage() *Stage {
	return &Stage{
		StageID:    "stg_1",
		PipelineID: "pip_1",
		Name:       "Proposta",
		Ordinal:    2,
		Checklist: []ChecklistItemDefinition{
			{ItemID: "chk_doc", StageID: "stg_1", Title: "Documentos recebidos", Ordinal: 1, Mandatory: true, Active: true},
			{ItemID: "chk_call", StageID: "stg_1", Title: "Ligação de qualificação", Ordinal: 2, Mandatory: true, Active: true},
			{ItemID: "chk_extra", StageID: "stg_1", Title: "Material enviado", Ordinal: 3, Mandatory: false, Active: true},
			{ItemID: "chk_old", StageID: "stg_1", Title: "Item desativado", Ordinal: 4, Mandatory: true, Active: false},
		},
	}
}

func TestEvaluateChecklist_AllMandatoryComplete(t *testing.T) {
	entry := &Entry{
		EntryID:   "ent_1",
		Checklist: map[string]bool{"chk_doc": true, "chk_call": true},
	}

	evaluation := EvaluateChecklist(entry, gatedStage())
	assert.True(t, evaluation.Allowed)
	assert.Empty(t, evaluation.MissingMandatory)
}

func TestEvaluateChecklist_MissingMandatoryBlocks(t *testing.T) {
	entry := &Entry{
		EntryID:   "ent_1",
		Checklist: map[string]bool{"chk_doc": true, "chk_call": false},
	}

	evaluation := EvaluateChecklist(entry, gatedStage())
	assert.False(t, evaluation.Allowed)
	assert.Len(t, evaluation.MissingMandatory, 1)
	assert.Equal(t, "chk_call", evaluation.MissingMandatory[0].ItemID)
}

func TestEvaluateChecklist_OptionalItemsNeverBlock(t *testing.T) {
	entry := &Entry{
		EntryID:   "ent_1",
		Checklist: map[string]bool{"chk_doc": true, "chk_call": true, "chk_extra": false},
	}

	evaluation := EvaluateChecklist(entry, gatedStage())
	assert.True(t, evaluation.Allowed)
}

func TestEvaluateChecklist_InactiveMandatoryIgnored(t *testing.T) {
	entry := &Entry{
		EntryID:   "ent_1",
		Checklist: map[string]bool{"chk_doc": true, "chk_call": true},
	}

	// chk_old is mandatory but inactive; it must not gate.
	evaluation := EvaluateChecklist(entry, gatedStage())
	assert.True(t, evaluation.Allowed)
}

func TestEvaluateChecklist_NilStateMissesEverything(t *testing.T) {
	entry := &Entry{EntryID: "ent_1"}

	evaluation := EvaluateChecklist(entry, gatedStage())
	assert.False(t, evaluation.Allowed)
	assert.Len(t, evaluation.MissingMandatory, 2)
}

func TestEvaluateChecklist_NoDefinitionsAlwaysAllowed(t *testing.T) {
	entry := &Entry{EntryID: "ent_1"}
	stage := &Stage{StageID: "stg_2", Name: "Entrada", Ordinal: 1}

	evaluation := EvaluateChecklist(entry, stage)
	assert.True(t, evaluation.Allowed)
}
