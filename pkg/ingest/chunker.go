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
	"strings"
	"time"
)

// Chunk is a run of consecutive user/assistant messages from one
// conversation.
type Chunk struct {
	// Index is the 0-based position of the chunk in the conversation.
	Index int

	// Text is the embeddable form: "ROLE: content" per message, joined
	// by blank lines.
	Text string

	// StartRole is the role of the first message in the chunk.
	StartRole string

	// MessageCount is how many messages the chunk holds.
	MessageCount int

	// FirstIndex is the 1-based conversation position of the first
	// message; MessageIndices carries all of them.
	FirstIndex     int
	MessageIndices []int

	// CreatedAt is the timestamp of the first message carrying one.
	CreatedAt time.Time
}

// chunkBuilder accumulates messages until the chunk is full.
type chunkBuilder struct {
	parts     []string
	startRole string
	indices   []int
	createdAt time.Time
}

func (b *chunkBuilder) add(role, content string, index int, ts time.Time) {
	if len(b.parts) == 0 {
		b.startRole = role
	}
	if b.createdAt.IsZero() && !ts.IsZero() {
		b.createdAt = ts
	}
	b.parts = append(b.parts, strings.ToUpper(role)+": "+content)
	b.indices = append(b.indices, index)
}

func (b *chunkBuilder) build(chunkIndex int) Chunk {
	return Chunk{
		Index:          chunkIndex,
		Text:           strings.Join(b.parts, "\n\n"),
		StartRole:      b.startRole,
		MessageCount:   len(b.parts),
		FirstIndex:     b.indices[0],
		MessageIndices: b.indices,
		CreatedAt:      b.createdAt,
	}
}

func (b *chunkBuilder) reset() {
	b.parts = b.parts[:0]
	b.startRole = ""
	b.indices = nil
	b.createdAt = time.Time{}
}

// StreamChunks walks the transcript and emits chunks of up to
// maxMessages user/assistant messages each. Summary records,
// unparseable lines, and messages with no text (tool-use-only turns)
// are skipped entirely; only kept messages take a conversation index,
// so concatenating chunks in order reproduces the message sequence
// without gaps. Returns the kept message count and the skipped line
// count.
func StreamChunks(path string, maxMessages int, fn func(Chunk) error) (messages, skipped int, err error) {
	builder := &chunkBuilder{}
	chunkIndex := 0

	flush := func() error {
		if len(builder.parts) == 0 {
			return nil
		}
		chunk := builder.build(chunkIndex)
		chunkIndex++
		builder.reset()
		return fn(chunk)
	}

	skipped, err = EachLine(path, func(line *Line) error {
		if line.Type == "summary" || !line.IsConversational() {
			return nil
		}
		content := line.Message.Content.PlainText()
		if content == "" {
			return nil
		}
		messages++
		builder.add(line.Message.Role, content, messages, line.Time())
		if len(builder.parts) >= maxMessages {
			return flush()
		}
		return nil
	})
	if err != nil {
		return messages, skipped, err
	}
	return messages, skipped, flush()
}
