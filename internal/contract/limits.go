// Copyright 2025 Leeaandrob
// SPDX-License-Identifier: AGPL-3.0-or-later

package contract

import (
	"os"
	"strconv"
)

const (
	// DefaultMaxChunkSize is the number of conversation messages per chunk.
	DefaultMaxChunkSize = 50

	// DefaultMaxTokensPerBatch caps the estimated token count of one
	// embedding batch.
	DefaultMaxTokensPerBatch = 100_000

	// DefaultTokenRatio is the characters-per-token estimate used when
	// sizing embedding batches.
	DefaultTokenRatio = 3

	// DefaultMaxFilesPerCycle caps how many changed files one watcher
	// cycle may enqueue.
	DefaultMaxFilesPerCycle = 1000

	// MaxConversationChars caps the conversation text included in one
	// narrative batch request. Longer conversations are truncated with a
	// marker rather than rejected.
	MaxConversationChars = 400_000
)

// envInt reads a positive integer from the environment, falling back to
// def when the variable is unset, unparseable, or non-positive.
func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// MaxChunkSize returns the effective messages-per-chunk limit.
// Controlled via env MAX_CHUNK_SIZE; falls back to DefaultMaxChunkSize.
func MaxChunkSize() int {
	return envInt("MAX_CHUNK_SIZE", DefaultMaxChunkSize)
}

// MaxTokensPerBatch returns the effective token cap for one embedding
// batch. Controlled via env MAX_TOKENS_PER_BATCH.
func MaxTokensPerBatch() int {
	return envInt("MAX_TOKENS_PER_BATCH", DefaultMaxTokensPerBatch)
}

// TokenRatio returns the characters-per-token estimate. Controlled via
// env TOKEN_ESTIMATION_RATIO.
func TokenRatio() int {
	return envInt("TOKEN_ESTIMATION_RATIO", DefaultTokenRatio)
}

// MaxFilesPerCycle returns the per-cycle file cap for the watcher.
// Controlled via env MAX_FILES_PER_CYCLE.
func MaxFilesPerCycle() int {
	return envInt("MAX_FILES_PER_CYCLE", DefaultMaxFilesPerCycle)
}
