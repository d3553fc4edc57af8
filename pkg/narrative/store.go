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
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/Leeaandrob/claude-code-self-reflect/pkg/embedding"
	"github.com/Leeaandrob/claude-code-self-reflect/pkg/ingest"
	"github.com/Leeaandrob/claude-code-self-reflect/pkg/project"
	"github.com/Leeaandrob/claude-code-self-reflect/pkg/storage"
)

// DefaultMinScore is the search cutoff for narratives. Summaries are
// denser than raw chunks, so the threshold sits well below the chunk
// default.
const DefaultMinScore = 0.3

// Fields indexed in every narrative collection for filtered search.
var indexedFields = []string{"conversation_id", "project", "outcome", "complexity"}

// Store writes and searches narratives in per-project narratives_*
// collections.
type Store struct {
	client   *storage.Client
	provider embedding.Provider
	logger   *slog.Logger
}

func NewStore(client *storage.Client, provider embedding.Provider, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{client: client, provider: provider, logger: logger}
}

// ensureCollection creates the project's narrative collection and its
// payload indexes when missing.
func (st *Store) ensureCollection(ctx context.Context, proj string) (string, error) {
	name := project.NarrativeCollectionName(proj)
	info, err := st.client.EnsureCollection(ctx, name, st.provider.Dimension())
	if err != nil {
		return "", err
	}
	// Fresh collection: index the filterable fields.
	if info.PointsCount == 0 {
		for _, field := range indexedFields {
			if err := st.client.CreatePayloadIndex(ctx, name, field, "keyword"); err != nil {
				return "", fmt.Errorf("index %s on %s: %w", field, name, err)
			}
		}
	}
	return name, nil
}

// Upsert embeds the narrative's searchable text and writes the point.
// The point ID is derived from the conversation ID, so regenerating a
// narrative overwrites the previous one.
func (st *Store) Upsert(ctx context.Context, conversationID, proj string, n *Narrative, model string) (uint64, error) {
	collection, err := st.ensureCollection(ctx, proj)
	if err != nil {
		return 0, err
	}

	text := n.SearchableText()
	if text == "" {
		return 0, fmt.Errorf("narrative for %s has no content", conversationID)
	}
	vectors, err := st.provider.Embed(ctx, embedding.Document, []string{text})
	if err != nil {
		return 0, fmt.Errorf("embed narrative: %w", err)
	}
	if err := embedding.ValidateBatch(vectors, 1, st.provider.Dimension()); err != nil {
		return 0, err
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	id := ingest.NarrativePointID(conversationID)
	point := storage.Point{
		ID:     id,
		Vector: vectors[0],
		Payload: map[string]any{
			"conversation_id": conversationID,
			"project":         proj,
			"timestamp":       now,
			"summary":         n.Summary,
			"problem":         n.Problem,
			"solution":        n.Solution,
			"decisions":       n.Decisions,
			"files_modified":  n.FilesModified,
			"key_insights":    n.KeyInsights,
			"tags":            n.Tags,
			"complexity":      n.Complexity,
			"outcome":         n.Outcome,
			"generated_at":    now,
			"model":           model,
			"searchable_text": text,
		},
	}
	if err := st.client.Upsert(ctx, collection, []storage.Point{point}, true); err != nil {
		return 0, fmt.Errorf("upsert narrative: %w", err)
	}

	st.logger.Debug("narrative.stored",
		"conversation", conversationID, "collection", collection, "point", id)
	return id, nil
}

// Hit is one narrative search result.
type Hit struct {
	Collection string
	Score      float64
	Payload    map[string]any
}

// Search embeds the query and searches narrative collections. An empty
// or "all" projectQuery fans out across every narratives_* collection
// and merges by score. minScore <= 0 selects DefaultMinScore.
func (st *Store) Search(ctx context.Context, query, projectQuery string, limit int, minScore float64, filter *storage.Filter) ([]Hit, error) {
	if limit <= 0 {
		limit = 10
	}
	if minScore <= 0 {
		minScore = DefaultMinScore
	}

	collections, err := project.ResolveNarrativeCollections(ctx, st.client, projectQuery)
	if err != nil {
		return nil, err
	}
	if len(collections) == 0 {
		return nil, nil
	}

	vectors, err := st.provider.Embed(ctx, embedding.Query, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var hits []Hit
	for _, name := range collections {
		points, err := st.client.Search(ctx, name, storage.SearchRequest{
			Vector:         vectors[0],
			Limit:          limit,
			Filter:         filter,
			ScoreThreshold: minScore,
			WithPayload:    true,
		})
		if err != nil {
			if storage.IsNotFound(err) {
				continue
			}
			return nil, fmt.Errorf("search %s: %w", name, err)
		}
		for _, p := range points {
			hits = append(hits, Hit{Collection: name, Score: p.Score, Payload: p.Payload})
		}
	}

	sort.Slice(hits, func(i, k int) bool { return hits[i].Score > hits[k].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// StoreStats summarizes narrative storage.
type StoreStats struct {
	Total         uint64
	PerCollection map[string]uint64
}

// Stats counts stored narratives, per collection and in total.
func (st *Store) Stats(ctx context.Context, projectQuery string) (*StoreStats, error) {
	collections, err := project.ResolveNarrativeCollections(ctx, st.client, projectQuery)
	if err != nil {
		return nil, err
	}

	stats := &StoreStats{PerCollection: make(map[string]uint64)}
	for _, name := range collections {
		n, err := st.client.Count(ctx, name, nil)
		if err != nil {
			if storage.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		stats.PerCollection[name] = n
		stats.Total += n
	}
	return stats, nil
}
