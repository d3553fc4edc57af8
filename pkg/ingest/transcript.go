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
	"bufio"
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"
)

// maxLineBytes bounds one transcript line. Tool results with large
// file dumps can run into megabytes.
const maxLineBytes = 16 * 1024 * 1024

// Line is one JSONL transcript record.
type Line struct {
	Type      string   `json:"type"`
	Timestamp string   `json:"timestamp"`
	Message   *Message `json:"message"`
}

// Message is the payload of a user or assistant line.
type Message struct {
	Role    string       `json:"role"`
	Content ContentValue `json:"content"`
}

// ContentValue is the content union: a plain string for simple user
// messages, or a list of typed parts for assistant output and tool
// traffic.
type ContentValue struct {
	Text   string
	Parts  []ContentPart
	isList bool
}

// ContentPart is one element of a structured content list.
type ContentPart struct {
	Type  string         `json:"type"`
	Text  string         `json:"text,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`
}

// UnmarshalJSON accepts both the string and the list form.
func (c *ContentValue) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "\"") {
		return json.Unmarshal(data, &c.Text)
	}
	c.isList = true
	return json.Unmarshal(data, &c.Parts)
}

// MarshalJSON round-trips the form that was decoded.
func (c ContentValue) MarshalJSON() ([]byte, error) {
	if c.isList {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

// PlainText returns the readable text of the content: the string form
// as-is, or the text parts of a list joined by newlines. Tool parts
// contribute nothing here.
func (c ContentValue) PlainText() string {
	if !c.isList {
		return c.Text
	}
	var parts []string
	for _, p := range c.Parts {
		if p.Type == "text" && p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// IsConversational reports whether the line is a user or assistant
// message that counts toward chunking.
func (l *Line) IsConversational() bool {
	return (l.Type == "user" || l.Type == "assistant") && l.Message != nil
}

// Time parses the line timestamp. Zero time when absent or malformed.
func (l *Line) Time() time.Time {
	if l.Timestamp == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339Nano, l.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return ts
}

// EachLine streams a JSONL file, calling fn with each parsed line.
// Unparseable lines are counted and skipped, not fatal. fn returning
// io.EOF stops the walk early without error.
func EachLine(path string, fn func(line *Line) error) (skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	for scanner.Scan() {
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var line Line
		if err := json.Unmarshal([]byte(raw), &line); err != nil {
			skipped++
			continue
		}
		if err := fn(&line); err != nil {
			if err == io.EOF {
				return skipped, nil
			}
			return skipped, err
		}
	}
	return skipped, scanner.Err()
}

// ConversationID is the file stem of a transcript path.
func ConversationID(path string) string {
	base := path
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	return strings.TrimSuffix(base, ".jsonl")
}
