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
	"io"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/Leeaandrob/claude-code-self-reflect/pkg/embedding"
	"github.com/Leeaandrob/claude-code-self-reflect/pkg/narrative"
	"github.com/Leeaandrob/claude-code-self-reflect/pkg/project"
	"github.com/Leeaandrob/claude-code-self-reflect/pkg/storage"
)

// Search defaults. Decay keeps old conversations findable while
// favoring recent ones: final = score * (alpha + (1-alpha) *
// exp(-age_days / halfLife)).
const (
	DefaultLimit    = 5
	DefaultMinScore = 0.7

	decayAlpha        = 0.5
	decayHalfLifeDays = 90.0
)

// Engine answers retrieval queries over conversation chunks and
// narratives.
type Engine struct {
	store      *storage.Client
	provider   embedding.Provider
	narratives *narrative.Store
	logger     *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewEngine builds the retrieval engine. narratives may be nil when
// narrative search is not configured.
func NewEngine(store *storage.Client, provider embedding.Provider, narratives *narrative.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		store:      store,
		provider:   provider,
		narratives: narratives,
		logger:     logger,
		now:        time.Now,
	}
}

// SearchArgs parameterizes semantic search. Zero values select the
// defaults; NoDecay disables time-decay re-scoring.
type SearchArgs struct {
	Query    string
	Project  string // empty or "all" searches everything
	Limit    int
	MinScore float64
	Since    string // temporal phrase, see ParseTimeRange
	NoDecay  bool
}

// Search embeds the query and fans out across the project's chunk
// collections. With decay enabled the min-score cut happens after
// re-scoring, so a stale high-similarity hit can still fall out.
func (e *Engine) Search(ctx context.Context, args SearchArgs) ([]Hit, error) {
	if args.Query == "" {
		return nil, fmt.Errorf("%w: query is required", storage.ErrBadRequest)
	}
	if args.Limit <= 0 {
		args.Limit = DefaultLimit
	}
	if args.MinScore <= 0 {
		args.MinScore = DefaultMinScore
	}

	var filter *storage.Filter
	if args.Since != "" {
		start, end, err := ParseTimeRange(args.Since, e.now())
		if err != nil {
			return nil, err
		}
		filter = timestampFilter(start, end)
	}

	collections, err := project.ResolveCollections(ctx, e.store, args.Project)
	if err != nil {
		return nil, err
	}
	if len(collections) == 0 {
		return nil, nil
	}

	vectors, err := e.provider.Embed(ctx, embedding.Query, []string{args.Query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	// With decay the threshold applies to the decayed score, so the
	// store-side cut must not happen first.
	storeThreshold := args.MinScore
	if !args.NoDecay {
		storeThreshold = 0
	}

	var hits []Hit
	for _, name := range collections {
		points, err := e.store.Search(ctx, name, storage.SearchRequest{
			Vector:         vectors[0],
			Limit:          args.Limit,
			Filter:         filter,
			ScoreThreshold: storeThreshold,
			WithPayload:    true,
		})
		if err != nil {
			if storage.IsNotFound(err) {
				continue
			}
			return nil, fmt.Errorf("search %s: %w", name, err)
		}
		for _, p := range points {
			hits = append(hits, hitFromPayload(name, p.Score, p.Payload))
		}
	}

	if !args.NoDecay {
		now := e.now()
		rescored := hits[:0]
		for _, h := range hits {
			// Hits without a parseable timestamp keep their raw score.
			if !h.Timestamp.IsZero() {
				ageDays := now.Sub(h.Timestamp).Hours() / 24
				if ageDays < 0 {
					ageDays = 0
				}
				h.Score *= decayAlpha + (1-decayAlpha)*math.Exp(-ageDays/decayHalfLifeDays)
			}
			if h.Score >= args.MinScore {
				rescored = append(rescored, h)
			}
		}
		hits = rescored
	}

	sort.Slice(hits, func(i, k int) bool { return hits[i].Score > hits[k].Score })
	if len(hits) > args.Limit {
		hits = hits[:args.Limit]
	}

	e.logger.Debug("tools.search",
		"collections", len(collections), "hits", len(hits), "decay", !args.NoDecay)
	return hits, nil
}
