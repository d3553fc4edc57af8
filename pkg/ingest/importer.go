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

package ingest

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/Leeaandrob/claude-code-self-reflect/internal/contract"
	"github.com/Leeaandrob/claude-code-self-reflect/pkg/embedding"
	"github.com/Leeaandrob/claude-code-self-reflect/pkg/project"
	"github.com/Leeaandrob/claude-code-self-reflect/pkg/storage"
)

// Embedding retry policy for transient provider errors.
const (
	retryAttempts = 5
	retryBase     = 1 * time.Second
	retryCap      = 30 * time.Second
)

// Importer moves one transcript at a time into the vector store.
type Importer struct {
	store    *storage.Client
	provider embedding.Provider
	state    *State
	logger   *slog.Logger

	maxChunkSize int
	tokenBudget  int
}

// ImportResult summarizes one file import.
type ImportResult struct {
	Project      string
	Collection   string
	Chunks       int
	Messages     int
	SkippedLines int
}

// NewImporter wires an importer. Chunk size and token budget come from
// the environment-backed contract defaults.
func NewImporter(store *storage.Client, provider embedding.Provider, state *State, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		store:        store,
		provider:     provider,
		state:        state,
		logger:       logger,
		maxChunkSize: contract.MaxChunkSize(),
		tokenBudget:  contract.MaxTokensPerBatch(),
	}
}

// ImportFile ingests one transcript: pass-1 metadata, streamed
// chunking, token-aware batching, embedding with retry, and upserts
// under deterministic point IDs. The state ledger is updated whether
// the import completes or fails.
func (im *Importer) ImportFile(ctx context.Context, path string) (*ImportResult, error) {
	start := time.Now()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat transcript: %w", err)
	}
	mtime := float64(info.ModTime().UnixNano()) / 1e9

	proj := project.Normalize(filepath.Base(filepath.Dir(absPath)))
	collection := project.CollectionName(proj, im.provider.Tag())
	convID := ConversationID(absPath)

	result, err := im.importInto(ctx, absPath, proj, collection, convID)
	now := time.Now().UTC().Format(time.RFC3339)

	if err != nil {
		im.state.UpdateFile(absPath, FileRecord{
			LastModified: mtime,
			ImportedAt:   now,
			Status:       StatusFailed,
			Suffix:       im.provider.Tag(),
		})
		if saveErr := im.state.Save(); saveErr != nil {
			im.logger.Warn("ingest.state.save_failed", "error", saveErr)
		}
		recordFileFailed()
		im.logger.Error("ingest.import.failed", "path", absPath, "project", proj, "error", err)
		return nil, err
	}

	im.state.UpdateFile(absPath, FileRecord{
		LastModified: mtime,
		Chunks:       result.Chunks,
		ImportedAt:   now,
		Status:       StatusCompleted,
		Suffix:       im.provider.Tag(),
	})
	if saveErr := im.state.Save(); saveErr != nil {
		im.logger.Warn("ingest.state.save_failed", "error", saveErr)
	}

	recordFileImported(result.Chunks, result.SkippedLines, time.Since(start).Seconds())
	im.logger.Info("ingest.import.completed",
		"path", absPath,
		"project", proj,
		"collection", collection,
		"chunks", result.Chunks,
		"messages", result.Messages,
		"skipped_lines", result.SkippedLines,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// importInto runs the staged pipeline: parse → batch → embed → upsert.
// Bounded channels give backpressure; a consumer error cancels the
// upstream stages.
func (im *Importer) importInto(ctx context.Context, path, proj, collection, convID string) (*ImportResult, error) {
	meta, err := ExtractMetadata(path)
	if err != nil {
		return nil, fmt.Errorf("extract metadata: %w", err)
	}

	info, err := im.store.EnsureCollection(ctx, collection, im.provider.Dimension())
	if err != nil {
		return nil, fmt.Errorf("ensure collection: %w", err)
	}
	// Fresh collection: timestamp needs a datetime index before
	// order_by scrolls work.
	if info.PointsCount == 0 {
		if err := im.store.CreatePayloadIndex(ctx, collection, "timestamp", "datetime"); err != nil {
			im.logger.Warn("ingest.index.create_failed", "collection", collection, "error", err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunkCh := make(chan Chunk, 16)
	batchCh := make(chan Batch, 4)

	var messages, skippedLines int
	var parseErr error
	go func() {
		defer close(chunkCh)
		messages, skippedLines, parseErr = StreamChunks(path, im.maxChunkSize, func(c Chunk) error {
			select {
			case chunkCh <- c:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()

	go func() {
		defer close(batchCh)
		batcher := NewBatcher(im.tokenBudget)
		send := func(b *Batch) bool {
			if b == nil {
				return true
			}
			select {
			case batchCh <- *b:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for c := range chunkCh {
			if !send(batcher.Add(c)) {
				return
			}
		}
		send(batcher.Flush())
	}()

	chunks := 0
	for batch := range batchCh {
		if err := im.embedAndUpsert(ctx, batch, meta, proj, collection, convID); err != nil {
			cancel()
			for range batchCh {
			}
			return nil, err
		}
		chunks += len(batch.Chunks)
	}
	if parseErr != nil && !stderrors.Is(parseErr, context.Canceled) {
		return nil, fmt.Errorf("stream chunks: %w", parseErr)
	}

	return &ImportResult{
		Project:      proj,
		Collection:   collection,
		Chunks:       chunks,
		Messages:     messages,
		SkippedLines: skippedLines,
	}, nil
}

// embedAndUpsert turns one batch into points. Oversize chunks are
// split on message boundaries, embedded piecewise, and averaged back
// into their single point vector.
func (im *Importer) embedAndUpsert(ctx context.Context, batch Batch, meta *Metadata, proj, collection, convID string) error {
	var texts []string
	owner := make([]int, 0, len(batch.Chunks))
	for i, c := range batch.Chunks {
		for _, piece := range SplitOnMessages(c.Text, im.tokenBudget) {
			texts = append(texts, piece)
			owner = append(owner, i)
		}
	}

	embedStart := time.Now()
	vectors, err := im.embedWithRetry(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}
	recordEmbedBatch(time.Since(embedStart).Seconds())

	dim := im.provider.Dimension()
	if err := embedding.ValidateBatch(vectors, len(texts), dim); err != nil {
		return fmt.Errorf("validate embeddings: %w", err)
	}

	merged := make([][]float32, len(batch.Chunks))
	counts := make([]int, len(batch.Chunks))
	for pi, vec := range vectors {
		ci := owner[pi]
		if merged[ci] == nil {
			merged[ci] = make([]float32, dim)
		}
		for j, v := range vec {
			merged[ci][j] += v
		}
		counts[ci]++
	}

	points := make([]storage.Point, len(batch.Chunks))
	for i, c := range batch.Chunks {
		if counts[i] > 1 {
			n := float32(counts[i])
			for j := range merged[i] {
				merged[i][j] /= n
			}
		}
		points[i] = storage.Point{
			ID:      ChunkPointID(convID, c.Index),
			Vector:  merged[i],
			Payload: im.chunkPayload(c, meta, proj, convID),
		}
	}

	if err := im.store.Upsert(ctx, collection, points, false); err != nil {
		if !storage.IsNotFound(err) {
			return err
		}
		// Collection vanished mid-import (external reset): recreate
		// once and retry.
		if _, err := im.store.EnsureCollection(ctx, collection, dim); err != nil {
			return fmt.Errorf("re-ensure collection: %w", err)
		}
		if err := im.store.Upsert(ctx, collection, points, false); err != nil {
			return err
		}
	}
	return nil
}

func (im *Importer) chunkPayload(c Chunk, meta *Metadata, proj, convID string) map[string]any {
	ts := c.CreatedAt
	if ts.IsZero() {
		ts = meta.Timestamp
	}
	indices := make([]any, len(c.MessageIndices))
	for i, v := range c.MessageIndices {
		indices[i] = v
	}
	payload := map[string]any{
		"text":            c.Text,
		"conversation_id": convID,
		"chunk_index":     c.Index,
		"timestamp":       ts.UTC().Format(time.RFC3339Nano),
		"project":         proj,
		"start_role":      c.StartRole,
		"message_count":   c.MessageCount,
		"total_messages":  meta.TotalMessages,
		"message_index":   c.FirstIndex,
		"message_indices": indices,
	}
	// Conversation metadata merges into the top level; stored filters
	// address files_analyzed, concepts, etc. unprefixed.
	for k, v := range meta.Payload() {
		payload[k] = v
	}
	return payload
}

// embedWithRetry retries transient provider errors with exponential
// backoff and jitter. Fatal errors and context cancellation return
// immediately.
func (im *Importer) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if attempt > 0 {
			recordEmbedRetry()
			delay := backoffDelay(attempt)
			im.logger.Debug("ingest.embed.retry", "attempt", attempt, "delay", delay, "error", lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		vectors, err := im.provider.Embed(ctx, embedding.Document, texts)
		if err == nil {
			return vectors, nil
		}
		if !stderrors.Is(err, embedding.ErrTransient) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("embedding failed after %d attempts: %w", retryAttempts, lastErr)
}

// backoffDelay is retryBase doubled per attempt, capped, with jitter in
// [0.5x, 1.5x] to spread concurrent retries.
func backoffDelay(attempt int) time.Duration {
	delay := retryBase << (attempt - 1)
	if delay > retryCap {
		delay = retryCap
	}
	jitter := 0.5 + rand.Float64()
	return time.Duration(float64(delay) * jitter)
}
