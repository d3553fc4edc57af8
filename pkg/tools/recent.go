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

// RecentWork lists the newest chunks across a project's collections,
// ordered by payload timestamp descending. No query vector is
// involved.
func (e *Engine) RecentWork(ctx context.Context, projectQuery string, limit int) ([]Hit, error) {
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
