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
	"os"
	"regexp"
	"strings"
	"time"
)

// Caps on conversation metadata lists. Payloads stay bounded no matter
// how long a session ran.
const (
	maxMetaFiles    = 20
	maxMetaTools    = 15
	maxMetaConcepts = 10
	maxMetaSymbols  = 30
)

// editTools are the tools that modify files; every other tool marks
// its path as analyzed.
var editTools = map[string]bool{
	"Edit":         true,
	"Write":        true,
	"MultiEdit":    true,
	"NotebookEdit": true,
}

// conceptPatterns maps development concepts to the keywords that
// signal them. Matched case-insensitively over the whole conversation.
var conceptPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"docker", regexp.MustCompile(`(?i)\b(docker|container|dockerfile|docker-compose)\b`)},
	{"testing", regexp.MustCompile(`(?i)\b(test|testing|pytest|unittest|jest|mocha)\b`)},
	{"database", regexp.MustCompile(`(?i)\b(database|sql|postgres|mysql|mongodb|redis|qdrant)\b`)},
	{"api", regexp.MustCompile(`(?i)\b(api|rest|graphql|endpoint|webhook)\b`)},
	{"security", regexp.MustCompile(`(?i)\b(security|auth|authentication|vulnerability|cve)\b`)},
	{"performance", regexp.MustCompile(`(?i)\b(performance|optimization|speed|memory|cpu)\b`)},
	{"debugging", regexp.MustCompile(`(?i)\b(debug|debugging|error|exception|traceback)\b`)},
	{"deployment", regexp.MustCompile(`(?i)\b(deploy|deployment|ci/cd|github actions|kubernetes)\b`)},
	{"git", regexp.MustCompile(`(?i)\b(git|commit|branch|merge|pull request)\b`)},
	{"mcp", regexp.MustCompile(`(?i)\b(mcp|model context protocol|claude desktop)\b`)},
	{"embeddings", regexp.MustCompile(`(?i)\b(embedding|vector|semantic|similarity)\b`)},
}

// codeFence matches fenced code blocks with an optional language tag.
var codeFence = regexp.MustCompile("(?s)```([a-zA-Z0-9]*)\\n(.*?)```")

// Metadata is the pass-1 summary of one transcript.
type Metadata struct {
	Timestamp     time.Time
	TotalMessages int
	FilesAnalyzed []string
	FilesEdited   []string
	ToolsUsed     []string
	Concepts      []string
	Symbols       []string
	HasCodeBlocks bool
	SkippedLines  int
}

// Payload returns the metadata in the stored payload shape. These keys
// live at the top level of every chunk payload; filters and existing
// collections address them unprefixed.
func (m *Metadata) Payload() map[string]any {
	return map[string]any{
		"files_analyzed":  toAnyList(m.FilesAnalyzed),
		"files_edited":    toAnyList(m.FilesEdited),
		"tools_used":      toAnyList(m.ToolsUsed),
		"concepts":        toAnyList(m.Concepts),
		"ast_elements":    toAnyList(m.Symbols),
		"has_code_blocks": m.HasCodeBlocks,
	}
}

func toAnyList(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// ExtractMetadata walks the whole transcript once and collects
// conversation-level metadata. The conversation timestamp is the first
// parseable line timestamp, falling back to the file mtime.
func ExtractMetadata(path string) (*Metadata, error) {
	meta := &Metadata{}

	var (
		text          strings.Builder
		filesAnalyzed []string
		filesEdited   []string
		tools         []string
		symbols       []string
	)

	skipped, err := EachLine(path, func(line *Line) error {
		if meta.Timestamp.IsZero() {
			if ts := line.Time(); !ts.IsZero() {
				meta.Timestamp = ts
			}
		}
		if !line.IsConversational() {
			return nil
		}
		meta.TotalMessages++

		if plain := line.Message.Content.PlainText(); plain != "" {
			text.WriteString(plain)
			text.WriteByte('\n')
			if strings.Contains(plain, "```") {
				meta.HasCodeBlocks = true
			}
			for _, m := range codeFence.FindAllStringSubmatch(plain, -1) {
				symbols = append(symbols, ExtractSymbols(m[2], m[1])...)
			}
		}

		for _, part := range line.Message.Content.Parts {
			if part.Type != "tool_use" || part.Name == "" {
				continue
			}
			tools = append(tools, part.Name)
			target := toolFilePath(part.Input)
			if target == "" {
				continue
			}
			if editTools[part.Name] {
				filesEdited = append(filesEdited, target)
			} else {
				filesAnalyzed = append(filesAnalyzed, target)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	meta.SkippedLines = skipped

	if meta.Timestamp.IsZero() {
		if info, err := os.Stat(path); err == nil {
			meta.Timestamp = info.ModTime().UTC()
		}
	}

	conversation := text.String()
	var concepts []string
	for _, cp := range conceptPatterns {
		if cp.re.MatchString(conversation) {
			concepts = append(concepts, cp.name)
		}
	}

	meta.FilesAnalyzed = capList(dedupe(filesAnalyzed), maxMetaFiles)
	meta.FilesEdited = capList(dedupe(filesEdited), maxMetaFiles)
	meta.ToolsUsed = capList(dedupe(tools), maxMetaTools)
	meta.Concepts = capList(concepts, maxMetaConcepts)
	meta.Symbols = capList(dedupe(symbols), maxMetaSymbols)
	return meta, nil
}

// toolFilePath pulls the target path out of a tool_use input.
func toolFilePath(input map[string]any) string {
	for _, key := range []string{"file_path", "path"} {
		if v, ok := input[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func capList(values []string, max int) []string {
	if len(values) > max {
		return values[:max]
	}
	return values
}
