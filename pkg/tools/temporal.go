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
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Leeaandrob/claude-code-self-reflect/pkg/storage"
)

var pastDaysRe = regexp.MustCompile(`^past (\d+) days?$`)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseTimeRange turns a natural phrase into a half-open [start, end)
// UTC interval. Recognized: "today", "yesterday", "last week",
// "past N days", "since <weekday>". Anything else fails with
// storage.ErrBadRequest.
func ParseTimeRange(phrase string, now time.Time) (start, end time.Time, err error) {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	tomorrow := today.Add(24 * time.Hour)

	switch p := strings.ToLower(strings.TrimSpace(phrase)); {
	case p == "today":
		return today, tomorrow, nil
	case p == "yesterday":
		return today.Add(-24 * time.Hour), today, nil
	case p == "last week":
		return today.Add(-6 * 24 * time.Hour), tomorrow, nil
	case pastDaysRe.MatchString(p):
		n, _ := strconv.Atoi(pastDaysRe.FindStringSubmatch(p)[1])
		if n < 1 {
			n = 1
		}
		return today.Add(-time.Duration(n-1) * 24 * time.Hour), tomorrow, nil
	case strings.HasPrefix(p, "since "):
		day, ok := weekdays[strings.TrimPrefix(p, "since ")]
		if !ok {
			return start, end, fmt.Errorf("%w: unknown weekday in %q", storage.ErrBadRequest, phrase)
		}
		// Most recent occurrence, today included.
		back := (int(now.Weekday()) - int(day) + 7) % 7
		return today.Add(-time.Duration(back) * 24 * time.Hour), tomorrow, nil
	default:
		return start, end, fmt.Errorf("%w: unrecognized time phrase %q", storage.ErrBadRequest, phrase)
	}
}

// timestampFilter builds the payload-level time filter for a range.
func timestampFilter(start, end time.Time) *storage.Filter {
	return &storage.Filter{
		Must: []storage.Condition{storage.TimeRange("timestamp", start, end)},
	}
}
