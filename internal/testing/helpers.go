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

package testing

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Leeaandrob/claude-code-self-reflect/pkg/storage"
)

// SetupTestStore starts a FakeQdrant and returns a storage client
// pointed at it. Both stop when the test finishes.
//
// Example:
//
//	func TestMyFeature(t *testing.T) {
//	    store, fake := testing.SetupTestStore(t)
//
//	    fake.Seed("conv_abcd1234_qwen_2048d", 8, 42, vec, payload)
//	    hits, err := store.Search(t.Context(), "conv_abcd1234_qwen_2048d", req)
//	    ...
//	}
func SetupTestStore(t *testing.T) (*storage.Client, *FakeQdrant) {
	t.Helper()
	fake := NewFakeQdrant(t)
	return storage.NewClient(fake.URL(), nil), fake
}

// ChunkPayload builds a conversation-chunk payload in the stored shape.
// Callers overlay extra top-level fields (files_analyzed, concepts,
// start_role) on the result.
func ChunkPayload(project, conversationID string, chunkIndex int, text string, ts time.Time) map[string]any {
	return map[string]any{
		"text":            text,
		"conversation_id": conversationID,
		"chunk_index":     chunkIndex,
		"timestamp":       ts.UTC().Format(time.RFC3339Nano),
		"project":         project,
		"start_role":      "user",
		"message_count":   2,
		"total_messages":  2,
		"message_indices": []any{1, 2},
	}
}

// WriteTranscript writes a JSONL transcript file and returns its path.
// Lines are written verbatim, one per line.
func WriteTranscript(t *testing.T, dir, name string, lines []string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create transcript dir: %v", err)
	}
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write transcript: %v", err)
	}
	return path
}

// UserMessage builds a transcript line for a plain user message.
func UserMessage(content string, ts time.Time) string {
	return transcriptLine("user", map[string]any{
		"role":    "user",
		"content": content,
	}, ts)
}

// AssistantMessage builds a transcript line for an assistant text reply.
// Assistant content is the structured-parts form.
func AssistantMessage(content string, ts time.Time) string {
	return transcriptLine("assistant", map[string]any{
		"role": "assistant",
		"content": []any{
			map[string]any{"type": "text", "text": content},
		},
	}, ts)
}

// ToolUseMessage builds an assistant line carrying one tool invocation.
func ToolUseMessage(tool string, input map[string]any, ts time.Time) string {
	return transcriptLine("assistant", map[string]any{
		"role": "assistant",
		"content": []any{
			map[string]any{"type": "tool_use", "name": tool, "input": input},
		},
	}, ts)
}

// SummaryLine builds a summary record, which importers skip.
func SummaryLine(summary string) string {
	data, _ := json.Marshal(map[string]any{
		"type":    "summary",
		"summary": summary,
	})
	return string(data)
}

func transcriptLine(typ string, message map[string]any, ts time.Time) string {
	data, _ := json.Marshal(map[string]any{
		"type":      typ,
		"message":   message,
		"timestamp": ts.UTC().Format(time.RFC3339Nano),
	})
	return string(data)
}
