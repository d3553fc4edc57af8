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
	"sort"

	"github.com/Leeaandrob/claude-code-self-reflect/pkg/project"
	"github.com/Leeaandrob/claude-code-self-reflect/pkg/storage"
)

// SearchByFile finds chunks whose conversations touched a file, either
// reading or editing it. Matching is exact against the stored paths.
func (e *Engine) SearchByFile(ctx context.Context, path, projectQuery string, limit int) ([]Hit, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: file path is required", storage.ErrBadRequest)
	}
	filter := &storage.Filter{
		Should: []storage.Condition{
			storage.FieldMatch("files_analyzed", path),
			storage.FieldMatch("files_edited", path),
		},
	}
	return e.filterScroll(ctx, projectQuery, filter, limit)
}

// SearchByConcept finds chunks tagged with a development concept
// (docker, testing, database, ...).
func (e *Engine) SearchByConcept(ctx context.Context, concept, projectQuery string, limit int) ([]Hit, error) {
	if concept == "" {
		return nil, fmt.Errorf("%w: concept is required", storage.ErrBadRequest)
	}
	filter := &storage.Filter{
		Must: []storage.Condition{
			storage.FieldMatch("concepts", concept),
		},
	}
	return e.filterScroll(ctx, projectQuery, filter, limit)
}

// filterScroll runs a filter-only scroll across the resolved
// collections, newest first.
func (e *Engine) filterScroll(ctx context.Context, projectQuery string, filter *storage.Filter, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 10
	}

	collections, err := project.ResolveCollections(ctx, e.store, projectQuery)
	if err != nil {
		return nil, err
	}

	var hits []Hit
	for _, name := range collections {
		points, _, err := e.store.Scroll(ctx, name, storage.ScrollRequest{
			Filter:      filter,
			Limit:       limit,
			WithPayload: true,
			OrderBy:     &storage.OrderBy{Key: "timestamp", Direction: "desc"},
		})
		if err != nil {
			if storage.IsNotFound(err) {
				continue
			}
			return nil, fmt.Errorf("scroll %s: %w", name, err)
		}
		for _, p := range points {
			hits = append(hits, hitFromPayload(name, 0, p.Payload))
		}
	}

	sort.Slice(hits, func(i, k int) bool {
		return hits[i].Timestamp.After(hits[k].Timestamp)
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}
