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

package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	cstesting "github.com/Leeaandrob/claude-code-self-reflect/internal/testing"
	"github.com/Leeaandrob/claude-code-self-reflect/pkg/embedding"
	"github.com/Leeaandrob/claude-code-self-reflect/pkg/storage"
)

func TestEnsureCollectionCreatesOnce(t *testing.T) {
	store, fake := cstesting.SetupTestStore(t)
	ctx := context.Background()

	info, err := store.EnsureCollection(ctx, "conv_abcd1234_qwen_2048d", 8)
	if err != nil {
		t.Fatal(err)
	}
	if info.VectorSize != 8 {
		t.Fatalf("vector size = %d", info.VectorSize)
	}

	// Second call is a no-op against the existing collection.
	if _, err := store.EnsureCollection(ctx, "conv_abcd1234_qwen_2048d", 8); err != nil {
		t.Fatal(err)
	}

	names, err := store.ListCollections(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "conv_abcd1234_qwen_2048d" {
		t.Fatalf("collections = %v", names)
	}
	_ = fake
}

func TestEnsureCollectionDimensionMismatch(t *testing.T) {
	store, _ := cstesting.SetupTestStore(t)
	ctx := context.Background()

	if _, err := store.EnsureCollection(ctx, "conv_x_qwen_2048d", 8); err != nil {
		t.Fatal(err)
	}
	_, err := store.EnsureCollection(ctx, "conv_x_qwen_2048d", 16)
	if !errors.Is(err, storage.ErrBadRequest) {
		t.Fatalf("dimension mismatch should be a bad request, got %v", err)
	}
}

func TestUpsertAndSearch(t *testing.T) {
	store, _ := cstesting.SetupTestStore(t)
	ctx := context.Background()
	const col = "conv_abcd1234_qwen_2048d"

	if _, err := store.EnsureCollection(ctx, col, 8); err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	points := []storage.Point{
		{ID: 1, Vector: embedding.MockVector("docker compose failing", 8),
			Payload: cstesting.ChunkPayload("my-app", "c1", 0, "docker compose failing", now)},
		{ID: 2, Vector: embedding.MockVector("added unit tests", 8),
			Payload: cstesting.ChunkPayload("my-app", "c1", 1, "added unit tests", now)},
		{ID: 3, Vector: embedding.MockVector("unrelated refactor", 8),
			Payload: cstesting.ChunkPayload("other", "c2", 0, "unrelated refactor", now)},
	}
	if err := store.Upsert(ctx, col, points, true); err != nil {
		t.Fatal(err)
	}

	hits, err := store.Search(ctx, col, storage.SearchRequest{
		Vector:      embedding.MockVector("docker compose failing", 8),
		Limit:       10,
		WithPayload: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) == 0 {
		t.Fatal("no hits")
	}
	if hits[0].ID != 1 {
		t.Fatalf("top hit = %d, want 1 (exact vector match)", hits[0].ID)
	}
	if hits[0].Score < 0.999 {
		t.Fatalf("exact match score = %f", hits[0].Score)
	}
	if hits[0].Payload["conversation_id"] != "c1" {
		t.Fatalf("payload missing: %v", hits[0].Payload)
	}

	// Project filter cuts the other conversation out.
	filtered, err := store.Search(ctx, col, storage.SearchRequest{
		Vector:      embedding.MockVector("unrelated refactor", 8),
		Limit:       10,
		Filter:      &storage.Filter{Must: []storage.Condition{storage.FieldMatch("project", "my-app")}},
		WithPayload: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, h := range filtered {
		if h.Payload["project"] != "my-app" {
			t.Fatalf("filter leaked project %v", h.Payload["project"])
		}
	}
}

func TestUpsertDimensionRejected(t *testing.T) {
	store, _ := cstesting.SetupTestStore(t)
	ctx := context.Background()
	const col = "conv_abcd1234_qwen_2048d"

	if _, err := store.EnsureCollection(ctx, col, 8); err != nil {
		t.Fatal(err)
	}
	err := store.Upsert(ctx, col, []storage.Point{
		{ID: 1, Vector: make([]float32, 4), Payload: map[string]any{}},
	}, true)
	if !errors.Is(err, storage.ErrBadRequest) {
		t.Fatalf("wrong-dimension upsert should fail with bad request, got %v", err)
	}
}

func TestScrollOrderedPaging(t *testing.T) {
	store, fake := cstesting.SetupTestStore(t)
	ctx := context.Background()
	const col = "conv_abcd1234_qwen_2048d"

	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		fake.Seed(col, 8, uint64(i+1),
			embedding.MockVector("chunk", 8),
			cstesting.ChunkPayload("my-app", "c1", i, "chunk", base.Add(time.Duration(i)*time.Hour)))
	}

	var seen []uint64
	var offset any
	for {
		page, next, err := store.Scroll(ctx, col, storage.ScrollRequest{
			Limit:       2,
			WithPayload: true,
			OrderBy:     &storage.OrderBy{Key: "timestamp", Direction: "desc"},
			Offset:      offset,
		})
		if err != nil {
			t.Fatal(err)
		}
		for _, p := range page {
			seen = append(seen, p.ID)
		}
		if next == nil {
			break
		}
		offset = next
	}

	want := []uint64{5, 4, 3, 2, 1}
	if len(seen) != len(want) {
		t.Fatalf("scrolled %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("scrolled %v, want %v", seen, want)
		}
	}
}

func TestCountWithFilter(t *testing.T) {
	store, fake := cstesting.SetupTestStore(t)
	ctx := context.Background()
	const col = "conv_abcd1234_qwen_2048d"

	now := time.Now()
	fake.Seed(col, 8, 1, embedding.MockVector("a", 8), cstesting.ChunkPayload("my-app", "c1", 0, "a", now))
	fake.Seed(col, 8, 2, embedding.MockVector("b", 8), cstesting.ChunkPayload("my-app", "c1", 1, "b", now))
	fake.Seed(col, 8, 3, embedding.MockVector("c", 8), cstesting.ChunkPayload("other", "c2", 0, "c", now))

	total, err := store.Count(ctx, col, nil)
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 {
		t.Fatalf("total = %d", total)
	}

	mine, err := store.Count(ctx, col, &storage.Filter{
		Must: []storage.Condition{storage.FieldMatch("project", "my-app")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if mine != 2 {
		t.Fatalf("filtered count = %d", mine)
	}
}

func TestErrorClassification(t *testing.T) {
	store, fake := cstesting.SetupTestStore(t)
	ctx := context.Background()

	_, err := store.GetCollection(ctx, "missing")
	if !storage.IsNotFound(err) {
		t.Fatalf("missing collection: %v", err)
	}

	fake.FailNext = true
	_, err = store.ListCollections(ctx)
	if !errors.Is(err, storage.ErrTransient) {
		t.Fatalf("503 should be transient: %v", err)
	}
}

func TestDeleteCollection(t *testing.T) {
	store, _ := cstesting.SetupTestStore(t)
	ctx := context.Background()

	if _, err := store.EnsureCollection(ctx, "conv_dead_qwen_2048d", 8); err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteCollection(ctx, "conv_dead_qwen_2048d"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetCollection(ctx, "conv_dead_qwen_2048d"); !storage.IsNotFound(err) {
		t.Fatalf("deleted collection still resolves: %v", err)
	}
}

func TestCreatePayloadIndex(t *testing.T) {
	store, fake := cstesting.SetupTestStore(t)
	ctx := context.Background()
	const col = "narratives_abcd1234efgh"

	if _, err := store.EnsureCollection(ctx, col, 8); err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{"conversation_id", "project", "outcome", "complexity"} {
		if err := store.CreatePayloadIndex(ctx, col, field, "keyword"); err != nil {
			t.Fatal(err)
		}
	}
	idx := fake.Indexes(col)
	if len(idx) != 4 || idx["project"] != "keyword" {
		t.Fatalf("indexes = %v", idx)
	}
}
