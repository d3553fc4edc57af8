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

package project

import (
	"context"
	"sort"
	"strings"
)

const (
	convPrefix      = "conv_"
	narrativePrefix = "narratives_"

	// All selects every project when passed as a project query.
	All = "all"
)

// KnownSuffixes lists the embedding suffixes conversation collections
// have been created with across importer generations. Ordering matters:
// when a project has collections under several suffixes, earlier entries
// are preferred.
var KnownSuffixes = []string{"qwen_2048d", "qwen_1024d", "voyage_1024d", "local_384d"}

// CollectionLister is the subset of the vector store client the
// resolver needs. *storage.Client satisfies it.
type CollectionLister interface {
	ListCollections(ctx context.Context) ([]string, error)
}

// IsConversationCollection reports whether name follows the
// conversation collection naming scheme.
func IsConversationCollection(name string) bool {
	return strings.HasPrefix(name, convPrefix)
}

// IsNarrativeCollection reports whether name follows the narrative
// collection naming scheme.
func IsNarrativeCollection(name string) bool {
	return strings.HasPrefix(name, narrativePrefix)
}

// SuffixOf extracts the embedding suffix from a conversation collection
// name: "conv_7f6df0fc_voyage_1024d" yields "voyage_1024d". Returns ""
// for names that do not follow the scheme (legacy collections).
func SuffixOf(collection string) string {
	rest, ok := strings.CutPrefix(collection, convPrefix)
	if !ok {
		return ""
	}
	// Hash segment is fixed-width: 8 hex chars then "_suffix".
	if len(rest) < 10 || rest[8] != '_' {
		return ""
	}
	return rest[9:]
}

// ResolveCollections maps a project query to the conversation
// collections a search should fan out to.
//
// The literal query "all" (or an empty query) selects every
// conversation collection. Anything else is normalized and matched by
// hash prefix. Legacy collections that carry the project name directly
// instead of a hash are also accepted when their name contains the
// normalized query. The result is sorted and deduplicated; an empty
// result is not an error.
func ResolveCollections(ctx context.Context, store CollectionLister, query string) ([]string, error) {
	names, err := store.ListCollections(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}

	if query == All || query == "" {
		for _, n := range names {
			if IsConversationCollection(n) {
				add(n)
			}
		}
		sort.Strings(out)
		return out, nil
	}

	normalized := Normalize(query)
	prefix := convPrefix + HashName(normalized) + "_"
	for _, n := range names {
		if !IsConversationCollection(n) {
			continue
		}
		if strings.HasPrefix(n, prefix) {
			add(n)
			continue
		}
		// Legacy naming: collections created before hashing embed the
		// project name itself.
		if n == query || strings.Contains(n, normalized) {
			add(n)
		}
	}
	sort.Strings(out)
	return out, nil
}

// ResolveNarrativeCollections maps a project query to narrative
// collections. "all" selects every narrative collection; anything else
// resolves to the project's single hashed collection if it exists.
func ResolveNarrativeCollections(ctx context.Context, store CollectionLister, query string) ([]string, error) {
	names, err := store.ListCollections(ctx)
	if err != nil {
		return nil, err
	}

	var out []string
	if query == All || query == "" {
		for _, n := range names {
			if IsNarrativeCollection(n) {
				out = append(out, n)
			}
		}
		sort.Strings(out)
		return out, nil
	}

	want := NarrativeCollectionName(query)
	for _, n := range names {
		if n == want {
			out = append(out, n)
		}
	}
	return out, nil
}

// MatchesProject reports whether a stored payload project field refers
// to the target project. Stored values vary across importer
// generations: bare names, flattened directory names, and names with
// "-" and "_" interchanged all appear in old payloads, so matching is
// deliberately tolerant.
func MatchesProject(stored, target string) bool {
	if stored == target {
		return true
	}
	s := strings.ReplaceAll(stored, "-", "_")
	t := strings.ReplaceAll(target, "-", "_")
	if s == t || strings.HasSuffix(s, "_"+t) {
		return true
	}
	return strings.HasSuffix(stored, "-"+target)
}
