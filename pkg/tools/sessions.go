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
	"sort"
	"time"
)

// sessionGap splits work into sessions: a pause longer than this
// starts a new one.
const sessionGap = 120 * time.Minute

// Session is a contiguous stretch of conversation activity.
type Session struct {
	Start           time.Time `json:"start_time"`
	End             time.Time `json:"end_time"`
	DurationMinutes int       `json:"duration_minutes"`
	MessageCount    int       `json:"message_count"`
	Conversations   []string  `json:"conversations"`
	MainTopics      []string  `json:"main_topics,omitempty"`
}

// Sessions groups a project's chunks into work sessions, splitting
// wherever consecutive chunks sit more than two hours apart.
func (e *Engine) Sessions(ctx context.Context, projectQuery string, since string) ([]Session, error) {
	if since == "" {
		since = "last week"
	}
	start, end, err := ParseTimeRange(since, e.now())
	if err != nil {
		return nil, err
	}

	// Reuse the timeline scroll path: every chunk in range, no cap.
	hits, err := e.rangeScroll(ctx, projectQuery, start, end)
	if err != nil {
		return nil, err
	}
	sort.Slice(hits, func(i, k int) bool {
		return hits[i].Timestamp.Before(hits[k].Timestamp)
	})

	var sessions []Session
	var cur *session
	for _, h := range hits {
		if h.Timestamp.IsZero() {
			continue
		}
		if cur == nil || h.Timestamp.Sub(cur.end) > sessionGap {
			if cur != nil {
				sessions = append(sessions, cur.finish())
			}
			cur = &session{start: h.Timestamp, convs: make(map[string]bool), topics: make(map[string]int)}
		}
		cur.end = h.Timestamp
		cur.messages += h.messageCount
		if h.ConversationID != "" {
			cur.convs[h.ConversationID] = true
		}
		for _, c := range h.Concepts {
			cur.topics[c]++
		}
	}
	if cur != nil {
		sessions = append(sessions, cur.finish())
	}
	return sessions, nil
}

type session struct {
	start    time.Time
	end      time.Time
	messages int
	convs    map[string]bool
	topics   map[string]int
}

func (s *session) finish() Session {
	return Session{
		Start:           s.start,
		End:             s.end,
		DurationMinutes: int(s.end.Sub(s.start).Minutes()),
		MessageCount:    s.messages,
		Conversations:   sortedKeys(s.convs),
		MainTopics:      topN(s.topics, 3),
	}
}
