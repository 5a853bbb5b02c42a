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

// GateMode controls how a checklist evaluation is enforced. It is a per-call
// parameter, not a global flag: drag-and-drop moves warn (soft) while explicit
// cross-pipeline compliance flows block (hard).
type GateMode string

const (
	GateSoft GateMode = "SOFT"
	GateHard GateMode = "HARD"
)

// ChecklistEvaluation is the outcome of gating an entry against a stage's
// mandatory checklist items.
type ChecklistEvaluation struct {
	Allowed          bool                      `json:"allowed"`
	MissingMandatory []ChecklistItemDefinition `json:"missing_mandatory,omitempty"`
}

// EvaluateChecklist checks the entry's recorded checklist state against the
// stage's mandatory items. Allowed is true iff every active mandatory item is
// present and true in the entry state; optional items never block.
func EvaluateChecklist(entry *Entry, stage *Stage) ChecklistEvaluation {
	var missing []ChecklistItemDefinition
	for _, item := range stage.MandatoryItems() {
		if entry.Checklist == nil || !entry.Checklist[item.ItemID] {
			missing = append(missing, item)
		}
	}
	return ChecklistEvaluation{Allowed: len(missing) == 0, MissingMandatory: missing}
}
