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

	"github.com/Leeaandrob/claude-code-self-reflect/internal/contract"
)

// jsonOverhead uplifts token estimates for JSON-like text; structural
// characters tokenize worse than prose.
const jsonOverhead = 1.3

// EstimateTokens approximates the token cost of a text: characters
// divided by the configured ratio, rounded up, with a 10% margin.
func EstimateTokens(text string) int {
	ratio := contract.TokenRatio()
	base := (len(text) + ratio - 1) / ratio
	return int(float64(base) * 1.1)
}

// jsonLike reports whether the text carries JSON or code structure.
func jsonLike(text string) bool {
	return strings.ContainsAny(text, "{}[]")
}

// batchCost is what one chunk contributes to the batch budget: the
// token estimate, uplifted for JSON-like text only.
func batchCost(text string) int {
	cost := EstimateTokens(text)
	if jsonLike(text) {
		cost = int(float64(cost) * jsonOverhead)
	}
	return cost
}

// Batch is a group of chunks embedded in one provider call.
type Batch struct {
	Chunks []Chunk
	Tokens int
}

// Batcher groups chunks so each batch stays under the token budget.
// Add returns a completed batch when the incoming chunk would
// overflow; Flush returns the remainder.
type Batcher struct {
	budget  int
	current Batch
}

// NewBatcher creates a batcher. A non-positive budget selects the
// configured MAX_TOKENS_PER_BATCH.
func NewBatcher(budget int) *Batcher {
	if budget <= 0 {
		budget = contract.MaxTokensPerBatch()
	}
	return &Batcher{budget: budget}
}

// Add appends a chunk, returning the batch that filled up, or nil.
// A chunk whose own cost exceeds the budget still travels alone; the
// importer splits it on message boundaries before embedding.
func (b *Batcher) Add(chunk Chunk) *Batch {
	cost := batchCost(chunk.Text)

	var full *Batch
	if len(b.current.Chunks) > 0 && b.current.Tokens+cost > b.budget {
		done := b.current
		b.current = Batch{}
		full = &done
	}

	b.current.Chunks = append(b.current.Chunks, chunk)
	b.current.Tokens += cost

	if full != nil {
		return full
	}
	if b.current.Tokens > b.budget {
		done := b.current
		b.current = Batch{}
		return &done
	}
	return nil
}

// Flush returns the in-progress batch, or nil when empty.
func (b *Batcher) Flush() *Batch {
	if len(b.current.Chunks) == 0 {
		return nil
	}
	done := b.current
	b.current = Batch{}
	return &done
}

// Budget returns the configured token budget.
func (b *Batcher) Budget() int { return b.budget }

// SplitOnMessages splits an oversize chunk text into pieces on message
// boundaries so each piece fits the budget. The pieces are embedded
// separately and averaged back into the chunk's single vector. A lone
// message over the budget stays whole; providers apply their own
// character-level splitting.
func SplitOnMessages(text string, budget int) []string {
	if batchCost(text) <= budget {
		return []string{text}
	}

	messages := strings.Split(text, "\n\n")
	var pieces []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			pieces = append(pieces, cur.String())
			cur.Reset()
		}
	}
	for _, msg := range messages {
		joined := msg
		if cur.Len() > 0 {
			joined = cur.String() + "\n\n" + msg
		}
		if batchCost(joined) > budget && cur.Len() > 0 {
			flush()
			joined = msg
		}
		cur.Reset()
		cur.WriteString(joined)
	}
	flush()
	return pieces
}
