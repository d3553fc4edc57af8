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

package ingest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestContentValueStringForm(t *testing.T) {
	var line Line
	raw := `{"type":"user","message":{"role":"user","content":"fix the build"}}`
	if err := json.Unmarshal([]byte(raw), &line); err != nil {
		t.Fatal(err)
	}
	if got := line.Message.Content.PlainText(); got != "fix the build" {
		t.Fatalf("PlainText() = %q", got)
	}
}

func TestContentValueListForm(t *testing.T) {
	var line Line
	raw := `{"type":"assistant","message":{"role":"assistant","content":[
		{"type":"text","text":"Looking at the error."},
		{"type":"tool_use","name":"Read","input":{"file_path":"main.go"}},
		{"type":"text","text":"Found it."}
	]}}`
	if err := json.Unmarshal([]byte(raw), &line); err != nil {
		t.Fatal(err)
	}
	want := "Looking at the error.\nFound it."
	if got := line.Message.Content.PlainText(); got != want {
		t.Fatalf("PlainText() = %q, want %q", got, want)
	}
	if len(line.Message.Content.Parts) != 3 {
		t.Fatalf("parts = %d", len(line.Message.Content.Parts))
	}
	if line.Message.Content.Parts[1].Name != "Read" {
		t.Fatalf("tool name = %q", line.Message.Content.Parts[1].Name)
	}
}

func TestEachLineSkipsGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conv.jsonl")
	content := `{"type":"user","message":{"role":"user","content":"hello"}}
not json at all
{"type":"assistant","message":{"role":"assistant","content":"hi"}}

{broken
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	var seen int
	skipped, err := EachLine(path, func(line *Line) error {
		seen++
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if seen != 2 {
		t.Fatalf("parsed %d lines, want 2", seen)
	}
	if skipped != 2 {
		t.Fatalf("skipped %d lines, want 2", skipped)
	}
}

func TestConversationID(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/logs/-Users-a-projects-app/abc-123.jsonl", "abc-123"},
		{"plain.jsonl", "plain"},
		{"/deep/nested/x.jsonl", "x"},
	}
	for _, tt := range tests {
		if got := ConversationID(tt.path); got != tt.want {
			t.Errorf("ConversationID(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
