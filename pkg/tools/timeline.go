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
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Leeaandrob/claude-code-self-reflect/pkg/project"
	"github.com/Leeaandrob/claude-code-self-reflect/pkg/storage"
)

// Timeline granularities.
const (
	GranularityHour = "hour"
	GranularityDay  = "day"
	GranularityWeek = "week"
)

// rangeScrollPage bounds one scroll request while paging a range.
const rangeScrollPage = 256

// rangeScroll pages through every chunk of the resolved collections
// inside [start, end).
func (e *Engine) rangeScroll(ctx context.Context, projectQuery string, start, end time.Time) ([]Hit, error) {
	collections, err := project.ResolveCollections(ctx, e.store, projectQuery)
	if err != nil {
		return nil, err
	}

	filter := timestampFilter(start, end)
	var hits []Hit
	for _, name := range collections {
		var offset any
		for {
			points, next, err := e.store.Scroll(ctx, name, storage.ScrollRequest{
				Filter:      filter,
				Limit:       rangeScrollPage,
				WithPayload: true,
				Offset:      offset,
			})
			if err != nil {
				if storage.IsNotFound(err) {
					break
				}
				return nil, fmt.Errorf("scroll %s: %w", name, err)
			}
			for _, p := range points {
				hits = append(hits, hitFromPayload(name, 0, p.Payload))
			}
			if next == nil || len(points) == 0 {
				break
			}
			offset = next
		}
	}
	return hits, nil
}

// TimelineArgs parameterizes an activity timeline.
type TimelineArgs struct {
	Project     string
	Granularity string // hour, day, or week; day when empty
	Since       string // temporal phrase; "last week" when empty
}

// Bucket is one timeline interval with activity rollups.
type Bucket struct {
	Start     time.Time `json:"start"`
	Chunks    int       `json:"chunks"`
	Messages  int       `json:"messages"`
	Projects  []string  `json:"projects,omitempty"`
	TopFiles  []string  `json:"top_files,omitempty"`
	TopTopics []string  `json:"top_topics,omitempty"`
}

// Timeline scrolls the range-filtered chunks and buckets them
// client-side by timestamp.
func (e *Engine) Timeline(ctx context.Context, args TimelineArgs) ([]Bucket, error) {
	switch args.Granularity {
	case "":
		args.Granularity = GranularityDay
	case GranularityHour, GranularityDay, GranularityWeek:
	default:
		return nil, fmt.Errorf("%w: granularity %q", storage.ErrBadRequest, args.Granularity)
	}
	if args.Since == "" {
		args.Since = "last week"
	}
	start, end, err := ParseTimeRange(args.Since, e.now())
	if err != nil {
		return nil, err
	}

	hits, err := e.rangeScroll(ctx, args.Project, start, end)
	if err != nil {
		return nil, err
	}

	type agg struct {
		chunks   int
		messages int
		projects map[string]bool
		files    map[string]int
		topics   map[string]int
	}
	buckets := make(map[time.Time]*agg)

	for _, h := range hits {
		if h.Timestamp.IsZero() {
			continue
		}
		key := bucketStart(h.Timestamp, args.Granularity)
		b := buckets[key]
		if b == nil {
			b = &agg{
				projects: make(map[string]bool),
				files:    make(map[string]int),
				topics:   make(map[string]int),
			}
			buckets[key] = b
		}
		b.chunks++
		b.messages += h.messageCount
		if h.Project != "" {
			b.projects[h.Project] = true
		}
		for _, f := range h.Files {
			b.files[f]++
		}
		for _, c := range h.Concepts {
			b.topics[c]++
		}
	}

	out := make([]Bucket, 0, len(buckets))
	for key, b := range buckets {
		out = append(out, Bucket{
			Start:     key,
			Chunks:    b.chunks,
			Messages:  b.messages,
			Projects:  sortedKeys(b.projects),
			TopFiles:  topN(b.files, 5),
			TopTopics: topN(b.topics, 5),
		})
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Start.Before(out[k].Start) })
	return out, nil
}

// bucketStart truncates a timestamp to its interval start.
func bucketStart(ts time.Time, granularity string) time.Time {
	ts = ts.UTC()
	switch granularity {
	case GranularityHour:
		return ts.Truncate(time.Hour)
	case GranularityWeek:
		day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
		// Weeks start on Monday.
		back := (int(day.Weekday()) + 6) % 7
		return day.Add(-time.Duration(back) * 24 * time.Hour)
	default:
		return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	}
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// topN returns the n highest-count keys, count then name order.
func topN(counts map[string]int, n int) []string {
	type kv struct {
		key   string
		count int
	}
	items := make([]kv, 0, len(counts))
	for k, c := range counts {
		items = append(items, kv{k, c})
	}
	sort.Slice(items, func(i, k int) bool {
		if items[i].count != items[k].count {
			return items[i].count > items[k].count
		}
		return items[i].key < items[k].key
	})
	if len(items) > n {
		items = items[:n]
	}
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.key
	}
	return out
}
