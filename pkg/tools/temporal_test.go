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

package tools

import (
	"errors"
	"testing"
	"time"

	"github.com/Leeaandrob/claude-code-self-reflect/pkg/storage"
)

func TestParseTimeRange(t *testing.T) {
	// A Wednesday afternoon.
	now := time.Date(2025, 6, 18, 15, 30, 0, 0, time.UTC)
	day := 24 * time.Hour
	today := time.Date(2025, 6, 18, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		phrase string
		start  time.Time
		end    time.Time
	}{
		{"today", today, today.Add(day)},
		{"Yesterday", today.Add(-day), today},
		{"last week", today.Add(-6 * day), today.Add(day)},
		{"past 3 days", today.Add(-2 * day), today.Add(day)},
		{"past 1 day", today, today.Add(day)},
		// Same weekday: since wednesday is today.
		{"since wednesday", today, today.Add(day)},
		// Monday two days back.
		{"since monday", today.Add(-2 * day), today.Add(day)},
		// Friday wraps to the previous week.
		{"since friday", today.Add(-5 * day), today.Add(day)},
	}
	for _, tc := range cases {
		start, end, err := ParseTimeRange(tc.phrase, now)
		if err != nil {
			t.Errorf("%q: %v", tc.phrase, err)
			continue
		}
		if !start.Equal(tc.start) || !end.Equal(tc.end) {
			t.Errorf("%q: got [%v, %v), want [%v, %v)", tc.phrase, start, end, tc.start, tc.end)
		}
	}
}

func TestParseTimeRangeRejectsUnknown(t *testing.T) {
	now := time.Now()
	for _, phrase := range []string{"", "fortnight ago", "since someday", "next week"} {
		if _, _, err := ParseTimeRange(phrase, now); !errors.Is(err, storage.ErrBadRequest) {
			t.Errorf("%q: err = %v", phrase, err)
		}
	}
}
