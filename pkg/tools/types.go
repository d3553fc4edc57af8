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
	"time"
)

// excerptLen caps the chunk text returned with a hit.
const excerptLen = 350

// Hit is one retrieval result across any of the search operations.
type Hit struct {
	Score          float64   `json:"score"`
	Project        string    `json:"project"`
	ConversationID string    `json:"conversation_id"`
	ChunkIndex     int       `json:"chunk_index"`
	Timestamp      time.Time `json:"timestamp"`
	Excerpt        string    `json:"excerpt"`
	Files          []string  `json:"files,omitempty"`
	Concepts       []string  `json:"concepts,omitempty"`
	Collection     string    `json:"-"`

	messageCount int
}

// hitFromPayload builds a Hit from a stored chunk payload.
func hitFromPayload(collection string, score float64, payload map[string]any) Hit {
	h := Hit{
		Score:          score,
		Collection:     collection,
		Project:        str(payload["project"]),
		ConversationID: str(payload["conversation_id"]),
		ChunkIndex:     intVal(payload["chunk_index"]),
		Excerpt:        Truncate(str(payload["text"]), excerptLen),
		messageCount:   intVal(payload["message_count"]),
	}
	if ts, err := time.Parse(time.RFC3339Nano, str(payload["timestamp"])); err == nil {
		h.Timestamp = ts
	}
	h.Files = strSlice(payload["files_analyzed"])
	h.Files = append(h.Files, strSlice(payload["files_edited"])...)
	h.Concepts = strSlice(payload["concepts"])
	return h
}

// Truncate shortens s to maxLen runes of text, marking the cut.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func intVal(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return 0
}

func strSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
