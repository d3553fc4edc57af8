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

package narrative

import (
	"strings"
	"testing"
)

func TestParsePlainJSON(t *testing.T) {
	n, err := Parse(`{"summary":"Fixed the build","problem":"broken CI","outcome":"success","complexity":"low","tags":["ci"]}`)
	if err != nil {
		t.Fatal(err)
	}
	if n.Summary != "Fixed the build" || n.Problem != "broken CI" {
		t.Fatalf("narrative = %+v", n)
	}
	if n.Complexity != "low" || n.Outcome != "success" {
		t.Fatalf("narrative = %+v", n)
	}
}

func TestParseFencedJSON(t *testing.T) {
	content := "```json\n{\"summary\":\"Refactored the importer\"}\n```"
	n, err := Parse(content)
	if err != nil {
		t.Fatal(err)
	}
	if n.Summary != "Refactored the importer" {
		t.Fatalf("summary = %q", n.Summary)
	}

	// Bare fence without a language marker.
	n, err = Parse("```\n{\"summary\":\"also works\"}\n```")
	if err != nil {
		t.Fatal(err)
	}
	if n.Summary != "also works" {
		t.Fatalf("summary = %q", n.Summary)
	}
}

func TestParseDefaults(t *testing.T) {
	n, err := Parse(`{"summary":"minimal"}`)
	if err != nil {
		t.Fatal(err)
	}
	if n.Complexity != "medium" {
		t.Fatalf("complexity default = %q", n.Complexity)
	}
	if n.Outcome != "success" {
		t.Fatalf("outcome default = %q", n.Outcome)
	}
}

func TestParseRejectsNonJSON(t *testing.T) {
	if _, err := Parse("I could not summarize this conversation."); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSearchableText(t *testing.T) {
	n := &Narrative{
		Summary:       "Migrated the cache layer",
		Problem:       "stale reads",
		Solution:      "write-through cache",
		Decisions:     []string{"keep TTL at 60s", "evict on write"},
		FilesModified: []string{"cache.go"},
		KeyInsights:   []string{"reads dominate"},
		Tags:          []string{"cache", "performance"},
	}
	text := n.SearchableText()

	want := "Summary: Migrated the cache layer | Problem: stale reads | Solution: write-through cache | Decisions: keep TTL at 60s, evict on write | Files: cache.go | Insights: reads dominate | Tags: cache, performance"
	if text != want {
		t.Fatalf("searchable text = %q", text)
	}
}

func TestSearchableTextSkipsEmptyFields(t *testing.T) {
	n := &Narrative{Summary: "only a summary"}
	text := n.SearchableText()
	if text != "Summary: only a summary" {
		t.Fatalf("searchable text = %q", text)
	}
	if strings.Contains(text, "|") {
		t.Fatal("no delimiter expected for a single field")
	}
}
