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
	"strings"
	"testing"
	"time"

	"github.com/Leeaandrob/claude-code-self-reflect/pkg/storage"
)

func TestPayloadValueDottedPath(t *testing.T) {
	payload := map[string]any{
		"project": "my-app",
		"usage": map[string]any{
			"models": []any{"qwen", "voyage"},
		},
	}

	v, ok := payloadValue(payload, "project")
	if !ok || v != "my-app" {
		t.Fatalf("project = %v, %v", v, ok)
	}
	v, ok = payloadValue(payload, "usage.models")
	if !ok {
		t.Fatal("usage.models not found")
	}
	if arr, _ := v.([]any); len(arr) != 2 {
		t.Fatalf("models = %v", v)
	}
	if _, ok := payloadValue(payload, "usage.missing"); ok {
		t.Fatal("missing key resolved")
	}
}

func TestMatchFilterArrayAndRange(t *testing.T) {
	payload := map[string]any{
		"timestamp":      100.0,
		"files_analyzed": []any{"main.go", "util.go"},
	}

	byFile := &storage.Filter{
		Must: []storage.Condition{storage.FieldMatch("files_analyzed", "util.go")},
	}
	if !matchFilter(payload, byFile) {
		t.Fatal("array match failed")
	}

	inRange := &storage.Filter{
		Must: []storage.Condition{storage.FieldRange("timestamp", storage.Range{GTE: 50.0, LT: 100.5})},
	}
	if !matchFilter(payload, inRange) {
		t.Fatal("range match failed")
	}

	outOfRange := &storage.Filter{
		Must: []storage.Condition{storage.FieldRange("timestamp", storage.Range{GT: 100.0})},
	}
	if matchFilter(payload, outOfRange) {
		t.Fatal("exclusive bound matched")
	}

	datePayload := map[string]any{"timestamp": "2025-06-01T12:00:00Z"}
	dateRange := &storage.Filter{
		Must: []storage.Condition{storage.TimeRange("timestamp",
			time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC))},
	}
	if !matchFilter(datePayload, dateRange) {
		t.Fatal("datetime range match failed")
	}

	excluded := &storage.Filter{
		MustNot: []storage.Condition{storage.FieldMatch("files_analyzed", "main.go")},
	}
	if matchFilter(payload, excluded) {
		t.Fatal("must_not did not exclude")
	}
}

func TestTranscriptHelpers(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	path := WriteTranscript(t, t.TempDir(), "conv.jsonl", []string{
		SummaryLine("earlier session"),
		UserMessage("fix the build", ts),
		AssistantMessage("done", ts.Add(time.Minute)),
		ToolUseMessage("Edit", map[string]any{"file_path": "main.go"}, ts.Add(2*time.Minute)),
	})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := 0
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		lines++
		var record map[string]any
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", lines, err)
		}
		if _, ok := record["type"]; !ok {
			t.Fatalf("line %d has no type", lines)
		}
	}
	if lines != 4 {
		t.Fatalf("wrote %d lines, want 4", lines)
	}
}
