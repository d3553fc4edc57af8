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
	"encoding/json"
	"fmt"
	"strings"
)

// Narrative is the structured summary the model produces for one
// conversation.
type Narrative struct {
	Summary       string   `json:"summary"`
	Problem       string   `json:"problem"`
	Solution      string   `json:"solution"`
	Decisions     []string `json:"decisions"`
	FilesModified []string `json:"files_modified"`
	KeyInsights   []string `json:"key_insights"`
	Tags          []string `json:"tags"`
	Complexity    string   `json:"complexity"`
	Outcome       string   `json:"outcome"`
}

// Parse decodes a model response into a Narrative. Responses are
// requested as raw JSON, but some models wrap the object in a fenced
// code block anyway, so fences are stripped before decoding. Missing
// complexity and outcome fall back to "medium" and "success".
func Parse(content string) (*Narrative, error) {
	text := strings.TrimSpace(content)
	if after, ok := strings.CutPrefix(text, "```json"); ok {
		text = after
	} else if after, ok := strings.CutPrefix(text, "```"); ok {
		text = after
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	text = strings.TrimSpace(text)

	var n Narrative
	if err := json.Unmarshal([]byte(text), &n); err != nil {
		return nil, fmt.Errorf("parse narrative: %w", err)
	}
	if n.Complexity == "" {
		n.Complexity = "medium"
	}
	if n.Outcome == "" {
		n.Outcome = "success"
	}
	return &n, nil
}

// SearchableText flattens the narrative into one labelled string, the
// text that gets embedded for semantic search.
func (n *Narrative) SearchableText() string {
	var parts []string
	if n.Summary != "" {
		parts = append(parts, "Summary: "+n.Summary)
	}
	if n.Problem != "" {
		parts = append(parts, "Problem: "+n.Problem)
	}
	if n.Solution != "" {
		parts = append(parts, "Solution: "+n.Solution)
	}
	if len(n.Decisions) > 0 {
		parts = append(parts, "Decisions: "+strings.Join(n.Decisions, ", "))
	}
	if len(n.FilesModified) > 0 {
		parts = append(parts, "Files: "+strings.Join(n.FilesModified, ", "))
	}
	if len(n.KeyInsights) > 0 {
		parts = append(parts, "Insights: "+strings.Join(n.KeyInsights, ", "))
	}
	if len(n.Tags) > 0 {
		parts = append(parts, "Tags: "+strings.Join(n.Tags, ", "))
	}
	return strings.Join(parts, " | ")
}
