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

import "sort"

// StageGraph is an immutable, ordered view of one pipeline's stages. The
// default "next" edge follows ordinal order; a stage that declares an explicit
// successor overrides it, which allows cyclic flows (a follow-up stage looping
// back to an earlier one). "Previous" is always strict ordinal order.
type StageGraph struct {
	pipelineID string
	ordered    []*Stage
	byID       map[string]*Stage
}

// NewStageGraph builds a graph from a pipeline's stages. The input order is
// not trusted; stages are sorted by ordinal. The engine tolerates transient
// duplicate ordinals (mid-reorder reads): ties break on stage ID so the view
// stays deterministic.
func NewStageGraph(pipelineID string, stages []*Stage) *StageGraph {
	ordered := make([]*Stage, len(stages))
	copy(ordered, stages)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Ordinal != ordered[j].Ordinal {
			return ordered[i].Ordinal < ordered[j].Ordinal
		}
		return ordered[i].StageID < ordered[j].StageID
	})

	byID := make(map[string]*Stage, len(ordered))
	for _, s := range ordered {
		byID[s.StageID] = s
	}
	return &StageGraph{pipelineID: pipelineID, ordered: ordered, byID: byID}
}

// PipelineID returns the pipeline this graph describes.
func (g *StageGraph) PipelineID() string {
	return g.pipelineID
}

// Stages returns the stages in ordinal order.
func (g *StageGraph) Stages() []*Stage {
	return g.ordered
}

// Stage returns the stage with the given ID, or nil if it is not part of the
// pipeline.
func (g *StageGraph) Stage(stageID string) *Stage {
	return g.byID[stageID]
}

// NextStage resolves the advancement target of a stage. An explicit successor
// wins over ordinal order; otherwise the next ordinal stage is returned. A nil
// result means the stage is terminal.
func (g *StageGraph) NextStage(stageID string) *Stage {
	current := g.byID[stageID]
	if current == nil {
		return nil
	}
	if current.SuccessorStageID != "" {
		if successor := g.byID[current.SuccessorStageID]; successor != nil {
			return successor
		}
	}
	for i, s := range g.ordered {
		if s.StageID == stageID && i+1 < len(g.ordered) {
			return g.ordered[i+1]
		}
	}
	return nil
}

// PreviousStage returns the ordinal-previous stage, ignoring explicit
// successors. There is no cyclic "previous": the first stage has none.
func (g *StageGraph) PreviousStage(stageID string) *Stage {
	for i, s := range g.ordered {
		if s.StageID == stageID {
			if i == 0 {
				return nil
			}
			return g.ordered[i-1]
		}
	}
	return nil
}

// IsTerminal reports whether a stage has no advancement target.
func (g *StageGraph) IsTerminal(stageID string) bool {
	if g.byID[stageID] == nil {
		return false
	}
	return g.NextStage(stageID) == nil
}
