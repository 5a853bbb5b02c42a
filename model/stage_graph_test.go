/*
Copyright 2024 Pipeflow Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func linearStages() []*Stage {
	return []*Stage{
		{StageID: "stg_a", PipelineID: "pip_1", Name: "A", Ordinal: 1},
		{StageID: "stg_b", PipelineID: "pip_1", Name: "B", Ordinal: 2},
		{StageID: "stg_c", PipelineID: "pip_1", Name: "C", Ordinal: 3},
	}
}

func TestStageGraph_NextByOrdinal(t *testing.T) {
	graph := NewStageGraph("pip_1", linearStages())

	next := graph.NextStage("stg_a")
	assert.NotNil(t, next)
	assert.Equal(t, "stg_b", next.StageID)

	next = graph.NextStage("stg_b")
	assert.NotNil(t, next)
	assert.Equal(t, "stg_c", next.StageID)
}

func TestStageGraph_TerminalStage(t *testing.T) {
	graph := NewStageGraph("pip_1", linearStages())

	assert.Nil(t, graph.NextStage("stg_c"))
	assert.True(t, graph.IsTerminal("stg_c"))
	assert.False(t, graph.IsTerminal("stg_a"))
}

func TestStageGraph_ExplicitSuccessorWinsOverOrdinal(t *testing.T) {
	// Entrada(1), Qualificado(2, successor=Entrada): the entry cycles back
	// instead of falling off the end.
	stages := []*Stage{
		{StageID: "stg_entrada", PipelineID: "pip_1", Name: "Entrada", Ordinal: 1},
		{StageID: "stg_qualificado", PipelineID: "pip_1", Name: "Qualificado", Ordinal: 2, SuccessorStageID: "stg_entrada"},
	}
	graph := NewStageGraph("pip_1", stages)

	next := graph.NextStage("stg_qualificado")
	assert.NotNil(t, next)
	assert.Equal(t, "stg_entrada", next.StageID)
	assert.False(t, graph.IsTerminal("stg_qualificado"))
}

func TestStageGraph_PreviousIsStrictlyOrdinal(t *testing.T) {
	stages := []*Stage{
		{StageID: "stg_entrada", PipelineID: "pip_1", Name: "Entrada", Ordinal: 1},
		{StageID: "stg_qualificado", PipelineID: "pip_1", Name: "Qualificado", Ordinal: 2, SuccessorStageID: "stg_entrada"},
	}
	graph := NewStageGraph("pip_1", stages)

	// No cyclic "previous": the successor override does not apply backwards.
	previous := graph.PreviousStage("stg_qualificado")
	assert.NotNil(t, previous)
	assert.Equal(t, "stg_entrada", previous.StageID)

	assert.Nil(t, graph.PreviousStage("stg_entrada"))
}

func TestStageGraph_DanglingSuccessorFallsBackToOrdinal(t *testing.T) {
	stages := []*Stage{
		{StageID: "stg_a", PipelineID: "pip_1", Name: "A", Ordinal: 1, SuccessorStageID: "stg_gone"},
		{StageID: "stg_b", PipelineID: "pip_1", Name: "B", Ordinal: 2},
	}
	graph := NewStageGraph("pip_1", stages)

	next := graph.NextStage("stg_a")
	assert.NotNil(t, next)
	assert.Equal(t, "stg_b", next.StageID)
}

func TestStageGraph_ToleratesDuplicateOrdinals(t *testing.T) {
	// Mid-reorder reads can observe duplicate ordinals; ordering must stay
	// deterministic (ties break on stage ID).
	stages := []*Stage{
		{StageID: "stg_y", PipelineID: "pip_1", Name: "Y", Ordinal: 2},
		{StageID: "stg_x", PipelineID: "pip_1", Name: "X", Ordinal: 2},
		{StageID: "stg_w", PipelineID: "pip_1", Name: "W", Ordinal: 1},
	}
	graph := NewStageGraph("pip_1", stages)

	ordered := graph.Stages()
	assert.Equal(t, "stg_w", ordered[0].StageID)
	assert.Equal(t, "stg_x", ordered[1].StageID)
	assert.Equal(t, "stg_y", ordered[2].StageID)
}

func TestStageGraph_UnknownStage(t *testing.T) {
	graph := NewStageGraph("pip_1", linearStages())

	assert.Nil(t, graph.Stage("stg_missing"))
	assert.Nil(t, graph.NextStage("stg_missing"))
	assert.Nil(t, graph.PreviousStage("stg_missing"))
	assert.False(t, graph.IsTerminal("stg_missing"))
}
