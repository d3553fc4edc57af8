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

package testing

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Leeaandrob/claude-code-self-reflect/pkg/storage"
)

// FakeQdrant is an in-memory Qdrant serving the REST subset the storage
// client uses: collection lifecycle, payload indexes, upserts, cosine
// search, scrolling with order_by, and exact counts.
type FakeQdrant struct {
	mu          sync.Mutex
	collections map[string]*fakeCollection
	srv         *httptest.Server

	// FailNext makes the next request answer 503, then clears itself.
	FailNext bool
}

type fakeCollection struct {
	vectorSize int
	points     map[uint64]fakePoint
	indexes    map[string]string
}

type fakePoint struct {
	ID      uint64         `json:"id"`
	Vector  []float32      `json:"vector,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// NewFakeQdrant starts a fake instance that stops with the test.
func NewFakeQdrant(t *testing.T) *FakeQdrant {
	t.Helper()
	f := &FakeQdrant{collections: make(map[string]*fakeCollection)}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

// URL is the base URL to hand to storage.NewClient.
func (f *FakeQdrant) URL() string { return f.srv.URL }

// PointCount returns how many points a collection holds, zero when the
// collection does not exist.
func (f *FakeQdrant) PointCount(collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	col, ok := f.collections[collection]
	if !ok {
		return 0
	}
	return len(col.points)
}

// Payload returns the stored payload of one point.
func (f *FakeQdrant) Payload(collection string, id uint64) (map[string]any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	col, ok := f.collections[collection]
	if !ok {
		return nil, false
	}
	p, ok := col.points[id]
	return p.Payload, ok
}

// Indexes returns the payload indexes created on a collection.
func (f *FakeQdrant) Indexes(collection string) map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	col, ok := f.collections[collection]
	if !ok {
		return nil
	}
	out := make(map[string]string, len(col.indexes))
	for k, v := range col.indexes {
		out[k] = v
	}
	return out
}

// Seed inserts a point directly, bypassing HTTP.
func (f *FakeQdrant) Seed(collection string, vectorSize int, id uint64, vector []float32, payload map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	col, ok := f.collections[collection]
	if !ok {
		col = &fakeCollection{
			vectorSize: vectorSize,
			points:     make(map[uint64]fakePoint),
			indexes:    make(map[string]string),
		}
		f.collections[collection] = col
	}
	col.points[id] = fakePoint{ID: id, Vector: vector, Payload: payload}
}

func (f *FakeQdrant) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	if f.FailNext {
		f.FailNext = false
		f.mu.Unlock()
		writeError(w, http.StatusServiceUnavailable, "simulated outage")
		return
	}
	defer f.mu.Unlock()

	segs := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(segs) == 0 || segs[0] != "collections" {
		writeError(w, http.StatusNotFound, "unknown path "+r.URL.Path)
		return
	}

	switch {
	case len(segs) == 1 && r.Method == http.MethodGet:
		f.listCollections(w)
	case len(segs) == 2:
		f.collectionOp(w, r, segs[1])
	case len(segs) == 3 && segs[2] == "index" && r.Method == http.MethodPut:
		f.createIndex(w, r, segs[1])
	case len(segs) == 3 && segs[2] == "points" && r.Method == http.MethodPut:
		f.upsert(w, r, segs[1])
	case len(segs) == 4 && segs[2] == "points" && r.Method == http.MethodPost:
		f.pointsOp(w, r, segs[1], segs[3])
	default:
		writeError(w, http.StatusNotFound, "unknown path "+r.URL.Path)
	}
}

func (f *FakeQdrant) listCollections(w http.ResponseWriter) {
	type entry struct {
		Name string `json:"name"`
	}
	names := make([]string, 0, len(f.collections))
	for name := range f.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	entries := make([]entry, len(names))
	for i, n := range names {
		entries[i] = entry{Name: n}
	}
	writeResult(w, map[string]any{"collections": entries})
}

func (f *FakeQdrant) collectionOp(w http.ResponseWriter, r *http.Request, name string) {
	switch r.Method {
	case http.MethodGet:
		col, ok := f.collections[name]
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Sprintf("collection %q not found", name))
			return
		}
		writeResult(w, map[string]any{
			"status":       "green",
			"points_count": len(col.points),
			"config": map[string]any{
				"params": map[string]any{
					"vectors": map[string]any{"size": col.vectorSize, "distance": "Cosine"},
				},
			},
		})

	case http.MethodPut:
		var body struct {
			Vectors struct {
				Size int `json:"size"`
			} `json:"vectors"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.collections[name] = &fakeCollection{
			vectorSize: body.Vectors.Size,
			points:     make(map[uint64]fakePoint),
			indexes:    make(map[string]string),
		}
		writeResult(w, true)

	case http.MethodDelete:
		if _, ok := f.collections[name]; !ok {
			writeError(w, http.StatusNotFound, fmt.Sprintf("collection %q not found", name))
			return
		}
		delete(f.collections, name)
		writeResult(w, true)

	default:
		writeError(w, http.StatusMethodNotAllowed, r.Method)
	}
}

func (f *FakeQdrant) createIndex(w http.ResponseWriter, r *http.Request, name string) {
	col, ok := f.collections[name]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("collection %q not found", name))
		return
	}
	var body struct {
		FieldName   string `json:"field_name"`
		FieldSchema string `json:"field_schema"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	col.indexes[body.FieldName] = body.FieldSchema
	writeResult(w, true)
}

func (f *FakeQdrant) upsert(w http.ResponseWriter, r *http.Request, name string) {
	col, ok := f.collections[name]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("collection %q not found", name))
		return
	}
	var body struct {
		Points []fakePoint `json:"points"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	for _, p := range body.Points {
		if len(p.Vector) != col.vectorSize {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("vector dimension %d does not match collection size %d", len(p.Vector), col.vectorSize))
			return
		}
		col.points[p.ID] = p
	}
	writeResult(w, map[string]any{"status": "completed"})
}

func (f *FakeQdrant) pointsOp(w http.ResponseWriter, r *http.Request, name, op string) {
	col, ok := f.collections[name]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("collection %q not found", name))
		return
	}

	switch op {
	case "search":
		var req storage.SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		var hits []storage.ScoredPoint
		for _, p := range col.points {
			if !matchFilter(p.Payload, req.Filter) {
				continue
			}
			score := cosine(req.Vector, p.Vector)
			if req.ScoreThreshold != 0 && score < req.ScoreThreshold {
				continue
			}
			hit := storage.ScoredPoint{ID: p.ID, Score: score}
			if req.WithPayload {
				hit.Payload = p.Payload
			}
			hits = append(hits, hit)
		}
		sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
		if req.Limit > 0 && len(hits) > req.Limit {
			hits = hits[:req.Limit]
		}
		if hits == nil {
			hits = []storage.ScoredPoint{}
		}
		writeResult(w, hits)

	case "scroll":
		var req storage.ScrollRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		var matched []fakePoint
		for _, p := range col.points {
			if matchFilter(p.Payload, req.Filter) {
				matched = append(matched, p)
			}
		}
		if req.OrderBy != nil {
			key, desc := req.OrderBy.Key, req.OrderBy.Direction == "desc"
			sort.Slice(matched, func(i, j int) bool {
				less := lessPayload(matched[i].Payload, matched[j].Payload, key)
				if desc {
					return !less && !equalPayload(matched[i].Payload, matched[j].Payload, key)
				}
				return less
			})
		} else {
			sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
		}

		offset := toInt(req.Offset)
		if offset > len(matched) {
			offset = len(matched)
		}
		end := len(matched)
		if req.Limit > 0 && offset+req.Limit < end {
			end = offset + req.Limit
		}

		page := make([]storage.Point, 0, end-offset)
		for _, p := range matched[offset:end] {
			out := storage.Point{ID: p.ID}
			if req.WithPayload {
				out.Payload = p.Payload
			}
			page = append(page, out)
		}
		var next any
		if end < len(matched) {
			next = end
		}
		writeResult(w, map[string]any{"points": page, "next_page_offset": next})

	case "count":
		var req struct {
			Filter *storage.Filter `json:"filter"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		count := 0
		for _, p := range col.points {
			if matchFilter(p.Payload, req.Filter) {
				count++
			}
		}
		writeResult(w, map[string]any{"count": count})

	default:
		writeError(w, http.StatusNotFound, "unknown points op "+op)
	}
}

func writeResult(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"result": result,
		"status": "ok",
		"time":   0.001,
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": map[string]any{"error": msg},
		"time":   0.001,
	})
}

// matchFilter evaluates a Qdrant payload filter: every must, no
// must_not, and at least one should when any are present.
func matchFilter(payload map[string]any, filter *storage.Filter) bool {
	if filter == nil {
		return true
	}
	for _, c := range filter.Must {
		if !matchCondition(payload, c) {
			return false
		}
	}
	for _, c := range filter.MustNot {
		if matchCondition(payload, c) {
			return false
		}
	}
	if len(filter.Should) > 0 {
		ok := false
		for _, c := range filter.Should {
			if matchCondition(payload, c) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func matchCondition(payload map[string]any, c storage.Condition) bool {
	value, ok := payloadValue(payload, c.Key)
	if !ok {
		return false
	}

	if c.Match != nil {
		// An array field matches when any element does.
		if arr, isArr := value.([]any); isArr {
			for _, el := range arr {
				if equalValue(el, c.Match.Value) {
					return true
				}
			}
			return false
		}
		return equalValue(value, c.Match.Value)
	}

	if c.Range != nil {
		num, isNum := asComparable(value)
		if !isNum {
			return false
		}
		r := c.Range
		if b, ok := asComparable(r.GTE); ok && num < b {
			return false
		}
		if b, ok := asComparable(r.LTE); ok && num > b {
			return false
		}
		if b, ok := asComparable(r.GT); ok && num <= b {
			return false
		}
		if b, ok := asComparable(r.LT); ok && num >= b {
			return false
		}
		return true
	}
	return false
}

// payloadValue resolves a dotted key like "metadata.concepts".
func payloadValue(payload map[string]any, key string) (any, bool) {
	var cur any = payload
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func equalValue(a, b any) bool {
	if af, ok := asFloat(a); ok {
		if bf, ok := asFloat(b); ok {
			return af == bf
		}
		return false
	}
	return a == b
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// asComparable widens asFloat with RFC 3339 strings, which compare as
// unix seconds the way a datetime-indexed field would.
func asComparable(v any) (float64, bool) {
	if f, ok := asFloat(v); ok {
		return f, true
	}
	if s, ok := v.(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return float64(ts.UnixNano()) / 1e9, true
		}
	}
	return 0, false
}

func lessPayload(a, b map[string]any, key string) bool {
	av, _ := payloadValue(a, key)
	bv, _ := payloadValue(b, key)
	if af, ok := asComparable(av); ok {
		if bf, ok := asComparable(bv); ok {
			return af < bf
		}
	}
	as, _ := av.(string)
	bs, _ := bv.(string)
	return as < bs
}

func equalPayload(a, b map[string]any, key string) bool {
	av, _ := payloadValue(a, key)
	bv, _ := payloadValue(b, key)
	return equalValue(av, bv)
}

func toInt(v any) int {
	switch n := v.(type) {
	case nil:
		return 0
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
