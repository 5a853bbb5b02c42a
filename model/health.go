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
	"math"
	"time"
)

const (
	// DefaultYellowThresholdRatio is the tunable share of a stage's SLA
	// duration treated as the warning window before the deadline.
	DefaultYellowThresholdRatio = 0.3

	LabelOverdue  = "overdue"
	LabelDueToday = "due_today"
)

// HealthCalculator derives an entry's time-based urgency classification from
// its SLA anchor and the stage's allotted duration.
type HealthCalculator struct {
	YellowThresholdRatio float64
}

// NewHealthCalculator returns a calculator with the given yellow-window ratio.
// A non-positive ratio falls back to the default.
func NewHealthCalculator(yellowRatio float64) *HealthCalculator {
	if yellowRatio <= 0 {
		yellowRatio = DefaultYellowThresholdRatio
	}
	return &HealthCalculator{YellowThresholdRatio: yellowRatio}
}

// AnchorDate resolves the reference timestamp of an entry in a stage. In
// linked-appointment mode the appointment's scheduled start wins when present,
// falling back to the stage-entry timestamp.
func AnchorDate(entry *Entry, stage *Stage) time.Time {
	if stage.SLAAnchor == AnchorLinkedAppointment && entry.LinkedAppointmentAt != nil {
		return *entry.LinkedAppointmentAt
	}
	return entry.StageEnteredAt
}

// Compute classifies an entry's health in its current stage at `now`.
// terminal marks stages with no advancement target: those carry no urgency
// badge regardless of SLA, as do stages without an SLA duration.
func (h *HealthCalculator) Compute(entry *Entry, stage *Stage, terminal bool, now time.Time) HealthSnapshot {
	snapshot := HealthSnapshot{
		EntryID:         entry.EntryID,
		DaysSinceAnchor: DaysBetween(AnchorDate(entry, stage), now),
		ComputedAt:      now,
	}

	if stage.SLADurationDays == nil || terminal {
		return snapshot
	}

	remaining := *stage.SLADurationDays - snapshot.DaysSinceAnchor
	snapshot.DaysRemaining = &remaining

	yellowWindow := int(math.Ceil(float64(*stage.SLADurationDays) * h.YellowThresholdRatio))
	switch {
	case remaining < 0:
		snapshot.Health = HealthRed
		snapshot.Label = LabelOverdue
	case remaining == 0:
		snapshot.Health = HealthRed
		snapshot.Label = LabelDueToday
	case remaining <= yellowWindow:
		snapshot.Health = HealthYellow
	default:
		snapshot.Health = HealthGreen
	}
	return snapshot
}

// DaysOverdue returns how many days past the deadline the snapshot is, or 0.
func (s HealthSnapshot) DaysOverdue() int {
	if s.DaysRemaining == nil || *s.DaysRemaining >= 0 {
		return 0
	}
	return -*s.DaysRemaining
}
