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

package tools

import (
	"context"
	"fmt"

	"github.com/Leeaandrob/claude-code-self-reflect/pkg/narrative"
	"github.com/Leeaandrob/claude-code-self-reflect/pkg/storage"
)

// errNoNarratives is returned when narrative search is requested but
// the engine was built without a narrative store.
var errNoNarratives = fmt.Errorf("%w: narrative search not configured", storage.ErrBadRequest)

// SearchNarratives searches the generated conversation summaries
// instead of raw chunks.
func (e *Engine) SearchNarratives(ctx context.Context, query, projectQuery string, limit int, minScore float64) ([]narrative.Hit, error) {
	if e.narratives == nil {
		return nil, errNoNarratives
	}
	return e.narratives.Search(ctx, query, projectQuery, limit, minScore, nil)
}

// HybridResult pairs narrative-level and chunk-level hits for one
// query.
type HybridResult struct {
	Narratives []narrative.Hit `json:"narratives"`
	Chunks     []Hit           `json:"chunks"`
}

// HybridSearch answers a query on both levels at once: narratives for
// decisions and outcomes, chunks for the detailed discussion. Each
// side returns up to limit hits; a failure on either side fails the
// whole call.
func (e *Engine) HybridSearch(ctx context.Context, query, projectQuery string, limit int, minScore float64) (*HybridResult, error) {
	if e.narratives == nil {
		return nil, errNoNarratives
	}

	narrHits, err := e.narratives.Search(ctx, query, projectQuery, limit, minScore, nil)
	if err != nil {
		return nil, fmt.Errorf("narrative side: %w", err)
	}

	chunkHits, err := e.Search(ctx, SearchArgs{
		Query:    query,
		Project:  projectQuery,
		Limit:    limit,
		MinScore: minScore,
	})
	if err != nil {
		return nil, fmt.Errorf("chunk side: %w", err)
	}

	return &HybridResult{Narratives: narrHits, Chunks: chunkHits}, nil
}

// NarrativeStats reports how many narratives exist per collection.
func (e *Engine) NarrativeStats(ctx context.Context, projectQuery string) (*narrative.StoreStats, error) {
	if e.narratives == nil {
		return nil, errNoNarratives
	}
	return e.narratives.Stats(ctx, projectQuery)
}
