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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	// VoyageModel is the Voyage AI embedding model.
	VoyageModel = "voyage-3"

	// VoyageDimension is the vector size voyage-3 produces.
	VoyageDimension = 1024

	// VoyageTag is the collection suffix for voyage vectors.
	VoyageTag = "voyage_1024d"

	// voyageURL is the Voyage AI embeddings endpoint.
	voyageURL = "https://api.voyageai.com/v1/embeddings"

	// voyageMaxBatch is the Voyage API limit on inputs per request.
	voyageMaxBatch = 128

	// voyageMaxChars is the per-text character budget. Longer texts are
	// sentence-split, embedded piecewise, and averaged back into one
	// vector.
	voyageMaxChars = 16000
)

// Voyage embeds text through the Voyage AI HTTP API.
type Voyage struct {
	apiKey     string
	endpoint   string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// voyageRequest is the request body for the Voyage embeddings API.
type voyageRequest struct {
	Input     []string `json:"input"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type,omitempty"` // "document" or "query"
}

// voyageResponse is the response from the Voyage embeddings API.
type voyageResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// voyageError is an error response from the Voyage API.
type voyageError struct {
	Detail string `json:"detail"`
}

// NewVoyage creates a voyage provider. An empty endpoint selects the
// public API URL.
func NewVoyage(apiKey, endpoint string, logger *slog.Logger) *Voyage {
	if endpoint == "" {
		endpoint = voyageURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Voyage{
		apiKey:   apiKey,
		endpoint: endpoint,
		model:    VoyageModel,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

// Dimension implements Provider.
func (v *Voyage) Dimension() int { return VoyageDimension }

// Tag implements Provider.
func (v *Voyage) Tag() string { return VoyageTag }

// Embed implements Provider.
//
// Texts over the character budget are split on sentence boundaries;
// each piece is embedded and the pieces are averaged element-wise, so
// the caller always gets exactly one vector per input text. Requests
// are issued in groups of at most voyageMaxBatch pieces.
func (v *Voyage) Embed(ctx context.Context, kind InputKind, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var pieces []string
	var owner []int
	for i, text := range texts {
		split := splitForBudget(text, voyageMaxChars)
		if len(split) > 1 {
			v.logger.Debug("embedding.voyage.split", "text_index", i, "chars", len(text), "pieces", len(split))
		}
		for _, p := range split {
			pieces = append(pieces, p)
			owner = append(owner, i)
		}
	}

	pieceVecs := make([][]float32, len(pieces))
	for start := 0; start < len(pieces); start += voyageMaxBatch {
		end := min(start+voyageMaxBatch, len(pieces))
		vecs, err := v.embedRequest(ctx, kind, pieces[start:end])
		if err != nil {
			return nil, err
		}
		copy(pieceVecs[start:end], vecs)
	}

	// Average pieces back into one vector per original text.
	out := make([][]float32, len(texts))
	counts := make([]int, len(texts))
	for pi, vec := range pieceVecs {
		ti := owner[pi]
		if out[ti] == nil {
			out[ti] = make([]float32, VoyageDimension)
		}
		for j, val := range vec {
			out[ti][j] += val
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

// embedRequest issues one embeddings call for at most voyageMaxBatch
// inputs.
func (v *Voyage) embedRequest(ctx context.Context, kind InputKind, texts []string) ([][]float32, error) {
	reqBody := voyageRequest{
		Input:     texts,
		Model:     v.model,
		InputType: string(kind),
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fatalf("marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+v.apiKey)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, transientf("voyage request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transientf("read voyage response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		detail := string(body)
		var ve voyageError
		if err := json.Unmarshal(body, &ve); err == nil && ve.Detail != "" {
			detail = ve.Detail
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, transientf("voyage API status %d: %s", resp.StatusCode, detail)
		}
		return nil, fatalf("voyage API status %d: %s", resp.StatusCode, detail)
	}

	var embedResp voyageResponse
	if err := json.Unmarshal(body, &embedResp); err != nil {
		return nil, fatalf("parse voyage response: %v", err)
	}
	if len(embedResp.Data) != len(texts) {
		return nil, fatalf("voyage returned %d embeddings for %d inputs", len(embedResp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range embedResp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fatalf("voyage returned out-of-range index %d", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	for i, vec := range out {
		if len(vec) != VoyageDimension {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, want %d", ErrFatal, i, len(vec), VoyageDimension)
		}
	}
	return out, nil
}
