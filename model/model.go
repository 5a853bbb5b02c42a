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
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateUUIDWithSuffix generates a UUID with a given module name as a prefix.
// This is useful for creating unique identifiers with context-specific prefixes.
func GenerateUUIDWithSuffix(module string) string {
	id := uuid.New()
	uuidStr := id.String()
	idWithSuffix := fmt.Sprintf("%s_%s", module, uuidStr)
	return idWithSuffix
}

// DaysBetween returns the number of whole days elapsed from `from` to `to`,
// truncating partial days.
func DaysBetween(from, to time.Time) int {
	hours := to.Sub(from).Hours()
	days := int(hours / 24)
	if hours < 0 && hours/24 != float64(days) {
		days--
	}
	return days
}

// NextBusinessSlot returns the next weekday 09:00 UTC slot strictly after t.
// Auto-generated appointments are anchored there so they never land on a
// weekend or in the past.
func NextBusinessSlot(t time.Time) time.Time {
	slot := time.Date(t.Year(), t.Month(), t.Day(), 9, 0, 0, 0, time.UTC)
	for !slot.After(t) || slot.Weekday() == time.Saturday || slot.Weekday() == time.Sunday {
		slot = slot.AddDate(0, 0, 1)
	}
	return slot
}
