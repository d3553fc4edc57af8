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
	"errors"
	"testing"
	"time"

	cstesting "github.com/Leeaandrob/claude-code-self-reflect/internal/testing"
	"github.com/Leeaandrob/claude-code-self-reflect/pkg/embedding"
	"github.com/Leeaandrob/claude-code-self-reflect/pkg/narrative"
	"github.com/Leeaandrob/claude-code-self-reflect/pkg/project"
	"github.com/Leeaandrob/claude-code-self-reflect/pkg/storage"
)

const testDim = 8

// engineFixture seeds a fake store and pins the engine clock.
type engineFixture struct {
	engine *Engine
	fake   *cstesting.FakeQdrant
	store  *storage.Client
	narr   *narrative.Store
	now    time.Time
	nextID uint64
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	store, fake := cstesting.SetupTestStore(t)
	provider := &embedding.Mock{Dim: testDim}
	narr := narrative.NewStore(store, provider, nil)

	f := &engineFixture{
		engine: NewEngine(store, provider, narr, nil),
		fake:   fake,
		store:  store,
		narr:   narr,
		now:    time.Date(2025, 6, 18, 15, 0, 0, 0, time.UTC),
	}
	f.engine.now = func() time.Time { return f.now }
	return f
}

func (f *engineFixture) collection(proj string) string {
	return project.CollectionName(proj, "mock_8d")
}

// seedChunk stores one chunk whose vector is the mock embedding of its
// text, so searching for that text is an exact hit. Metadata fields
// overlay the payload top level, the shape the importer writes.
func (f *engineFixture) seedChunk(proj, conv string, idx int, text string, ts time.Time, meta map[string]any) {
	f.nextID++
	payload := cstesting.ChunkPayload(proj, conv, idx, text, ts)
	for k, v := range meta {
		payload[k] = v
	}
	f.fake.Seed(f.collection(proj), testDim, f.nextID, embedding.MockVector(text, testDim), payload)
}

func TestSearchReturnsTopHit(t *testing.T) {
	f := newEngineFixture(t)
	recent := f.now.Add(-2 * time.Hour)
	f.seedChunk("my-app", "conv-a", 0, "USER: how do I fix the docker build?", recent, nil)
	f.seedChunk("my-app", "conv-b", 1, "USER: rename the settings struct", recent, nil)

	hits, err := f.engine.Search(context.Background(), SearchArgs{
		Query:   "USER: how do I fix the docker build?",
		Project: "my-app",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) == 0 {
		t.Fatal("no hits")
	}
	top := hits[0]
	if top.ConversationID != "conv-a" || top.ChunkIndex != 0 {
		t.Fatalf("top hit = %+v", top)
	}
	if top.Project != "my-app" {
		t.Fatalf("project = %q", top.Project)
	}
	if top.Excerpt == "" || top.Timestamp.IsZero() {
		t.Fatalf("hit missing payload fields: %+v", top)
	}
	// Two hours old: decay barely moves the exact-match score.
	if top.Score < 0.95 {
		t.Fatalf("score = %f", top.Score)
	}
}

func TestSearchDecayDropsStaleHits(t *testing.T) {
	f := newEngineFixture(t)
	text := "USER: why did the cache invalidation break?"
	// 900 days old: decay multiplies an exact match down to ~0.5.
	f.seedChunk("my-app", "conv-old", 0, text, f.now.Add(-900*24*time.Hour), nil)

	hits, err := f.engine.Search(context.Background(), SearchArgs{Query: text, Project: "my-app"})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Fatalf("decayed hit survived the cut: %+v", hits)
	}

	// Without decay the raw similarity stands.
	hits, err = f.engine.Search(context.Background(), SearchArgs{
		Query:   text,
		Project: "my-app",
		NoDecay: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("hits = %+v", hits)
	}
}

func TestSearchSinceFilter(t *testing.T) {
	f := newEngineFixture(t)
	text := "USER: tighten the retry backoff"
	f.seedChunk("my-app", "conv-today", 0, text, f.now.Add(-time.Hour), nil)
	f.seedChunk("my-app", "conv-last-month", 0, text, f.now.Add(-30*24*time.Hour), nil)

	hits, err := f.engine.Search(context.Background(), SearchArgs{
		Query:   text,
		Project: "my-app",
		Since:   "today",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ConversationID != "conv-today" {
		t.Fatalf("hits = %+v", hits)
	}
}

func TestSearchRejectsBadPhrase(t *testing.T) {
	f := newEngineFixture(t)
	_, err := f.engine.Search(context.Background(), SearchArgs{
		Query: "anything",
		Since: "a while back",
	})
	if !errors.Is(err, storage.ErrBadRequest) {
		t.Fatalf("err = %v", err)
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	f := newEngineFixture(t)
	if _, err := f.engine.Search(context.Background(), SearchArgs{}); !errors.Is(err, storage.ErrBadRequest) {
		t.Fatalf("err = %v", err)
	}
}

func TestRecentWork(t *testing.T) {
	f := newEngineFixture(t)
	f.seedChunk("my-app", "conv-1", 0, "oldest", f.now.Add(-3*time.Hour), nil)
	f.seedChunk("my-app", "conv-2", 0, "middle", f.now.Add(-2*time.Hour), nil)
	f.seedChunk("other", "conv-3", 0, "newest", f.now.Add(-time.Hour), nil)

	hits, err := f.engine.RecentWork(context.Background(), "all", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("hits = %+v", hits)
	}
	if hits[0].ConversationID != "conv-3" || hits[1].ConversationID != "conv-2" {
		t.Fatalf("order = %s, %s", hits[0].ConversationID, hits[1].ConversationID)
	}

	scoped, err := f.engine.RecentWork(context.Background(), "my-app", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(scoped) != 2 {
		t.Fatalf("scoped = %+v", scoped)
	}
}

func TestTimelineBucketsByDay(t *testing.T) {
	f := newEngineFixture(t)
	meta := map[string]any{
		"files_analyzed": []any{"main.go"},
		"files_edited":   []any{},
		"concepts":       []any{"docker"},
	}
	yesterday := f.now.Add(-24 * time.Hour)
	f.seedChunk("my-app", "conv-1", 0, "a", yesterday, meta)
	f.seedChunk("my-app", "conv-1", 1, "b", yesterday.Add(time.Hour), meta)
	f.seedChunk("my-app", "conv-2", 0, "c", f.now.Add(-time.Hour), nil)

	buckets, err := f.engine.Timeline(context.Background(), TimelineArgs{
		Project: "my-app",
		Since:   "last week",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(buckets) != 2 {
		t.Fatalf("buckets = %+v", buckets)
	}
	first := buckets[0]
	if first.Chunks != 2 || first.Messages != 4 {
		t.Fatalf("first bucket = %+v", first)
	}
	if len(first.TopTopics) != 1 || first.TopTopics[0] != "docker" {
		t.Fatalf("topics = %v", first.TopTopics)
	}
	if len(first.TopFiles) != 1 || first.TopFiles[0] != "main.go" {
		t.Fatalf("files = %v", first.TopFiles)
	}
	if !buckets[0].Start.Before(buckets[1].Start) {
		t.Fatal("buckets out of order")
	}
}

func TestTimelineRejectsGranularity(t *testing.T) {
	f := newEngineFixture(t)
	_, err := f.engine.Timeline(context.Background(), TimelineArgs{Granularity: "month"})
	if !errors.Is(err, storage.ErrBadRequest) {
		t.Fatalf("err = %v", err)
	}
}

func TestBucketStart(t *testing.T) {
	// A Wednesday.
	ts := time.Date(2025, 6, 18, 14, 45, 12, 0, time.UTC)
	if got := bucketStart(ts, GranularityHour); got.Hour() != 14 || got.Minute() != 0 {
		t.Fatalf("hour bucket = %v", got)
	}
	if got := bucketStart(ts, GranularityDay); !got.Equal(time.Date(2025, 6, 18, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("day bucket = %v", got)
	}
	// Week starts on the preceding Monday.
	if got := bucketStart(ts, GranularityWeek); !got.Equal(time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("week bucket = %v", got)
	}
}

func TestSearchByFileAndConcept(t *testing.T) {
	f := newEngineFixture(t)
	ts := f.now.Add(-time.Hour)
	f.seedChunk("my-app", "conv-1", 0, "edited the compose file", ts, map[string]any{
		"files_analyzed": []any{},
		"files_edited":   []any{"docker-compose.yaml"},
		"concepts":       []any{"docker"},
	})
	f.seedChunk("my-app", "conv-2", 0, "read the compose file", ts.Add(-time.Hour), map[string]any{
		"files_analyzed": []any{"docker-compose.yaml"},
		"files_edited":   []any{},
		"concepts":       []any{"deployment"},
	})
	f.seedChunk("my-app", "conv-3", 0, "unrelated work", ts, map[string]any{
		"files_analyzed": []any{"README.md"},
		"files_edited":   []any{},
		"concepts":       []any{"git"},
	})

	// Edited or analyzed both match.
	hits, err := f.engine.SearchByFile(context.Background(), "docker-compose.yaml", "my-app", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("file hits = %+v", hits)
	}
	if hits[0].ConversationID != "conv-1" {
		t.Fatalf("newest first expected, got %s", hits[0].ConversationID)
	}

	hits, err = f.engine.SearchByConcept(context.Background(), "deployment", "my-app", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ConversationID != "conv-2" {
		t.Fatalf("concept hits = %+v", hits)
	}

	if _, err := f.engine.SearchByFile(context.Background(), "", "my-app", 10); !errors.Is(err, storage.ErrBadRequest) {
		t.Fatalf("empty path err = %v", err)
	}
}

func TestSessionsSplitAtGaps(t *testing.T) {
	f := newEngineFixture(t)
	morning := time.Date(2025, 6, 18, 9, 0, 0, 0, time.UTC)
	meta := map[string]any{"concepts": []any{"testing"}}

	f.seedChunk("my-app", "conv-1", 0, "a", morning, meta)
	f.seedChunk("my-app", "conv-1", 1, "b", morning.Add(30*time.Minute), meta)
	// Three-hour pause: a new session.
	f.seedChunk("my-app", "conv-2", 0, "c", morning.Add(3*time.Hour+30*time.Minute), nil)

	sessions, err := f.engine.Sessions(context.Background(), "my-app", "today")
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 {
		t.Fatalf("sessions = %+v", sessions)
	}
	first := sessions[0]
	if first.DurationMinutes != 30 || first.MessageCount != 4 {
		t.Fatalf("first session = %+v", first)
	}
	if len(first.Conversations) != 1 || first.Conversations[0] != "conv-1" {
		t.Fatalf("conversations = %v", first.Conversations)
	}
	if len(first.MainTopics) != 1 || first.MainTopics[0] != "testing" {
		t.Fatalf("topics = %v", first.MainTopics)
	}
	if sessions[1].DurationMinutes != 0 {
		t.Fatalf("second session = %+v", sessions[1])
	}
}

func TestHybridSearch(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	n := &narrative.Narrative{
		Summary: "speed up the import pipeline",
		Tags:    []string{"performance"},
	}
	if _, err := f.narr.Upsert(ctx, "conv-1", "my-app", n, "qwen-plus"); err != nil {
		t.Fatal(err)
	}

	// The mock provider only scores exact text matches highly, so the
	// seeded chunk carries the narrative's searchable text and the
	// query repeats it: both sides then return their point.
	text := n.SearchableText()
	f.seedChunk("my-app", "conv-1", 0, text, f.now.Add(-time.Hour), nil)

	res, err := f.engine.HybridSearch(ctx, text, "my-app", 5, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Chunks) != 1 {
		t.Fatalf("chunks = %+v", res.Chunks)
	}
	if len(res.Narratives) == 0 {
		t.Fatalf("narratives = %+v", res.Narratives)
	}

	stats, err := f.engine.NarrativeStats(ctx, "all")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestNarrativeSearchUnconfigured(t *testing.T) {
	store, _ := cstesting.SetupTestStore(t)
	e := NewEngine(store, &embedding.Mock{Dim: testDim}, nil, nil)
	if _, err := e.SearchNarratives(context.Background(), "q", "all", 5, 0); !errors.Is(err, storage.ErrBadRequest) {
		t.Fatalf("err = %v", err)
	}
}
