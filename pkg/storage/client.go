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

package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultQdrantURL is the local Qdrant instance most setups run.
const DefaultQdrantURL = "http://localhost:6333"

// Client talks to Qdrant over the HTTP REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Qdrant client. An empty baseURL selects
// DefaultQdrantURL.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultQdrantURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// Point is one stored vector with its payload.
type Point struct {
	ID      uint64         `json:"id"`
	Vector  []float32      `json:"vector,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// ScoredPoint is a search hit.
type ScoredPoint struct {
	ID      uint64         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// CollectionInfo summarizes a collection.
type CollectionInfo struct {
	PointsCount uint64
	VectorSize  int
	Status      string
}

// SearchRequest is a vector search against one collection.
type SearchRequest struct {
	Vector         []float32 `json:"vector"`
	Limit          int       `json:"limit"`
	Filter         *Filter   `json:"filter,omitempty"`
	ScoreThreshold float64   `json:"score_threshold,omitempty"`
	WithPayload    bool      `json:"with_payload"`
}

// ScrollRequest pages through points without a query vector.
type ScrollRequest struct {
	Filter      *Filter  `json:"filter,omitempty"`
	Limit       int      `json:"limit"`
	WithPayload bool     `json:"with_payload"`
	OrderBy     *OrderBy `json:"order_by,omitempty"`
	Offset      any      `json:"offset,omitempty"`
}

// envelope is the wrapper Qdrant puts around every response.
type envelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
	Time   float64         `json:"time"`
}

// do issues one request and decodes the result field into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrTransient, err)
	}

	c.logger.Debug("storage.request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp.StatusCode, qdrantDetail(respBody))
	}

	if out != nil {
		var env envelope
		if err := json.Unmarshal(respBody, &env); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("parse result: %w", err)
		}
	}
	return nil
}

// qdrantDetail pulls the error description out of an error envelope.
func qdrantDetail(body []byte) string {
	var env struct {
		Status struct {
			Error string `json:"error"`
		} `json:"status"`
	}
	if err := json.Unmarshal(body, &env); err == nil && env.Status.Error != "" {
		return env.Status.Error
	}
	return strings.TrimSpace(string(body))
}

// EnsureCollection creates the collection if it does not exist and
// returns its info. An existing collection with a different vector size
// is an error: points written with the wrong dimension would be
// rejected one by one later, which is much harder to diagnose.
func (c *Client) EnsureCollection(ctx context.Context, name string, vectorSize int) (*CollectionInfo, error) {
	info, err := c.GetCollection(ctx, name)
	if err == nil {
		if info.VectorSize != 0 && info.VectorSize != vectorSize {
			return nil, fmt.Errorf("%w: collection %q has vector size %d, want %d",
				ErrBadRequest, name, info.VectorSize, vectorSize)
		}
		return info, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}

	c.logger.Info("storage.collection.create", "collection", name, "vector_size", vectorSize)
	body := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	if err := c.do(ctx, http.MethodPut, "/collections/"+url.PathEscape(name), body, nil); err != nil {
		return nil, fmt.Errorf("create collection %q: %w", name, err)
	}
	return &CollectionInfo{VectorSize: vectorSize, Status: "green"}, nil
}

// GetCollection fetches info for one collection.
func (c *Client) GetCollection(ctx context.Context, name string) (*CollectionInfo, error) {
	var result struct {
		Status      string `json:"status"`
		PointsCount uint64 `json:"points_count"`
		Config      struct {
			Params struct {
				Vectors struct {
					Size int `json:"size"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	}
	if err := c.do(ctx, http.MethodGet, "/collections/"+url.PathEscape(name), nil, &result); err != nil {
		return nil, err
	}
	return &CollectionInfo{
		PointsCount: result.PointsCount,
		VectorSize:  result.Config.Params.Vectors.Size,
		Status:      result.Status,
	}, nil
}

// ListCollections returns the names of all collections.
func (c *Client) ListCollections(ctx context.Context) ([]string, error) {
	var result struct {
		Collections []struct {
			Name string `json:"name"`
		} `json:"collections"`
	}
	if err := c.do(ctx, http.MethodGet, "/collections", nil, &result); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(result.Collections))
	for _, col := range result.Collections {
		names = append(names, col.Name)
	}
	return names, nil
}

// DeleteCollection removes a collection and all its points.
func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/collections/"+url.PathEscape(name), nil, nil)
}

// CreatePayloadIndex indexes a payload field for filtering. Schema is a
// Qdrant field type such as "keyword" or "float".
func (c *Client) CreatePayloadIndex(ctx context.Context, collection, field, schema string) error {
	body := map[string]any{
		"field_name":   field,
		"field_schema": schema,
	}
	err := c.do(ctx, http.MethodPut, "/collections/"+url.PathEscape(collection)+"/index", body, nil)
	if err != nil {
		return fmt.Errorf("index %s.%s: %w", collection, field, err)
	}
	return nil
}

// Upsert writes points. With wait set the call blocks until Qdrant has
// persisted them.
func (c *Client) Upsert(ctx context.Context, collection string, points []Point, wait bool) error {
	if len(points) == 0 {
		return nil
	}
	body := map[string]any{"points": points}
	path := fmt.Sprintf("/collections/%s/points?wait=%t", url.PathEscape(collection), wait)
	if err := c.do(ctx, http.MethodPut, path, body, nil); err != nil {
		return fmt.Errorf("upsert %d points into %s: %w", len(points), collection, err)
	}
	return nil
}

// Search runs a vector similarity search.
func (c *Client) Search(ctx context.Context, collection string, req SearchRequest) ([]ScoredPoint, error) {
	var hits []ScoredPoint
	err := c.do(ctx, http.MethodPost, "/collections/"+url.PathEscape(collection)+"/points/search", req, &hits)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", collection, err)
	}
	return hits, nil
}

// Scroll pages through points. The returned offset is non-nil when more
// pages remain; pass it back in the next request.
func (c *Client) Scroll(ctx context.Context, collection string, req ScrollRequest) ([]Point, any, error) {
	var result struct {
		Points         []Point `json:"points"`
		NextPageOffset any     `json:"next_page_offset"`
	}
	err := c.do(ctx, http.MethodPost, "/collections/"+url.PathEscape(collection)+"/points/scroll", req, &result)
	if err != nil {
		return nil, nil, fmt.Errorf("scroll %s: %w", collection, err)
	}
	return result.Points, result.NextPageOffset, nil
}

// Count returns the exact number of points matching the filter. A nil
// filter counts the whole collection.
func (c *Client) Count(ctx context.Context, collection string, filter *Filter) (uint64, error) {
	body := map[string]any{"exact": true}
	if filter != nil {
		body["filter"] = filter
	}
	var result struct {
		Count uint64 `json:"count"`
	}
	err := c.do(ctx, http.MethodPost, "/collections/"+url.PathEscape(collection)+"/points/count", body, &result)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return result.Count, nil
}

// Healthy reports whether the Qdrant instance answers its root
// endpoint.
func (c *Client) Healthy(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/collections", nil, nil)
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
