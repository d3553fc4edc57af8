// Copyright 2025 Leeaandrob
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import "time"

// Filter is a Qdrant payload filter. Nil slices are omitted from the
// wire form.
type Filter struct {
	Must    []Condition `json:"must,omitempty"`
	Should  []Condition `json:"should,omitempty"`
	MustNot []Condition `json:"must_not,omitempty"`
}

// Condition matches one payload field by exact value or numeric range.
type Condition struct {
	Key   string `json:"key"`
	Match *Match `json:"match,omitempty"`
	Range *Range `json:"range,omitempty"`
}

// Match is an exact-value condition.
type Match struct {
	Value any `json:"value"`
}

// Range is a range condition. Bounds are numbers, or RFC 3339 strings
// against datetime-indexed fields. Unset bounds are omitted.
type Range struct {
	GTE any `json:"gte,omitempty"`
	LTE any `json:"lte,omitempty"`
	GT  any `json:"gt,omitempty"`
	LT  any `json:"lt,omitempty"`
}

// OrderBy asks Qdrant to order scroll results by a payload field.
type OrderBy struct {
	Key       string `json:"key"`
	Direction string `json:"direction,omitempty"` // "asc" or "desc"
}

// FieldMatch builds an exact-match condition.
func FieldMatch(key string, value any) Condition {
	return Condition{Key: key, Match: &Match{Value: value}}
}

// FieldRange builds a range condition.
func FieldRange(key string, r Range) Condition {
	return Condition{Key: key, Range: &r}
}

// TimeRange builds a half-open [start, end) condition on a
// datetime-indexed field.
func TimeRange(key string, start, end time.Time) Condition {
	return Condition{Key: key, Range: &Range{
		GTE: start.UTC().Format(time.RFC3339Nano),
		LT:  end.UTC().Format(time.RFC3339Nano),
	}}
}
