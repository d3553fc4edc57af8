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

package embedding

import (
	"context"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Leeaandrob/claude-code-self-reflect/pkg/llm"
)

const (
	// QwenModel is the DashScope embedding model.
	QwenModel = "text-embedding-v4"

	// QwenDimension is the vector size requested from the model.
	QwenDimension = 2048

	// QwenTag is the collection suffix for qwen vectors.
	QwenTag = "qwen_2048d"

	// qwenMaxBatch is the hard DashScope limit on inputs per request.
	qwenMaxBatch = 10

	// qwenMaxChars is the per-text character budget. Longer texts are
	// sentence-split, embedded piecewise, and averaged back into one
	// vector.
	qwenMaxChars = 6000
)

// Qwen embeds text through the DashScope compatible-mode API.
type Qwen struct {
	api    llm.EmbeddingAPI
	model  string
	logger *slog.Logger
}

// NewQwen creates a qwen provider on top of a DashScope client.
func NewQwen(api llm.EmbeddingAPI, logger *slog.Logger) *Qwen {
	if logger == nil {
		logger = slog.Default()
	}
	return &Qwen{api: api, model: QwenModel, logger: logger}
}

// Dimension implements Provider.
func (q *Qwen) Dimension() int { return QwenDimension }

// Tag implements Provider.
func (q *Qwen) Tag() string { return QwenTag }

// Embed implements Provider.
//
// Texts over the character budget are split on sentence boundaries;
// each piece is embedded and the pieces are averaged element-wise, so
// the caller always gets exactly one vector per input text. Requests
// are issued in groups of at most qwenMaxBatch pieces.
func (q *Qwen) Embed(ctx context.Context, kind InputKind, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	// Flatten texts into pieces, remembering which text each piece
	// belongs to.
	var pieces []string
	var owner []int
	for i, text := range texts {
		split := splitForBudget(text, qwenMaxChars)
		if len(split) > 1 {
			q.logger.Debug("embedding.qwen.split", "text_index", i, "chars", len(text), "pieces", len(split))
		}
		for _, p := range split {
			pieces = append(pieces, p)
			owner = append(owner, i)
		}
	}

	pieceVecs := make([][]float32, len(pieces))
	for start := 0; start < len(pieces); start += qwenMaxBatch {
		end := min(start+qwenMaxBatch, len(pieces))
		resp, err := q.api.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
			Input:      pieces[start:end],
			Model:      openai.EmbeddingModel(q.model),
			Dimensions: QwenDimension,
		})
		if err != nil {
			if llm.IsRetryable(err) {
				return nil, transientf("qwen embeddings: %v", err)
			}
			return nil, fatalf("qwen embeddings: %v", err)
		}
		if len(resp.Data) != end-start {
			return nil, fatalf("qwen returned %d embeddings for %d inputs", len(resp.Data), end-start)
		}
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= end-start {
				return nil, fatalf("qwen returned out-of-range index %d", d.Index)
			}
			pieceVecs[start+d.Index] = d.Embedding
		}
	}

	// Average pieces back into one vector per original text.
	out := make([][]float32, len(texts))
	counts := make([]int, len(texts))
	for pi, vec := range pieceVecs {
		ti := owner[pi]
		if len(vec) != QwenDimension {
			return nil, fatalf("qwen vector dimension %d, want %d", len(vec), QwenDimension)
		}
		if out[ti] == nil {
			out[ti] = make([]float32, QwenDimension)
		}
		for j, v := range vec {
			out[ti][j] += v
		}
		counts[ti]++
	}
	for ti := range out {
		if counts[ti] == 0 {
			return nil, fatalf("no embedding produced for text %d", ti)
		}
		if counts[ti] > 1 {
			n := float32(counts[ti])
			for j := range out[ti] {
				out[ti][j] /= n
			}
		}
	}
	return out, nil
}

// splitForBudget splits text into pieces of at most maxChars, breaking
// on sentence boundaries where possible. Terminal ! and ? are folded
// into periods first; a single sentence over the budget is hard-cut.
func splitForBudget(text string, maxChars int) []string {
	if len(text) <= maxChars {
		return []string{text}
	}

	normalized := strings.NewReplacer("!", ".", "?", ".").Replace(text)
	sentences := strings.Split(normalized, ".")

	var pieces []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			pieces = append(pieces, cur.String())
			cur.Reset()
		}
	}
	for _, s := range sentences {
		if s == "" {
			continue
		}
		s += "."
		if len(s) > maxChars {
			// Oversize sentence: hard-cut into budget-sized slices.
			flush()
			for len(s) > maxChars {
				pieces = append(pieces, s[:maxChars])
				s = s[maxChars:]
			}
			if s != "" {
				cur.WriteString(s)
			}
			continue
		}
		if cur.Len()+len(s) > maxChars {
			flush()
		}
		cur.WriteString(s)
	}
	flush()

	if len(pieces) == 0 {
		return []string{text[:maxChars]}
	}
	return pieces
}
