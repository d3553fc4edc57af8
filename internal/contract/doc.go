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

// Package contract holds the import pipeline's size limits.
//
// These limits shape how transcripts are chunked, how embedding batches
// are sized, and how much work a single watcher cycle may take on. They
// are constants with environment overrides so that deployments with
// unusual transcript sizes or rate limits can tune them without a
// config file change.
//
// # Limits
//
//   - MaxChunkSize (MAX_CHUNK_SIZE, default 50): messages per chunk.
//   - MaxTokensPerBatch (MAX_TOKENS_PER_BATCH, default 100000):
//     estimated token cap for one embedding batch.
//   - TokenRatio (TOKEN_ESTIMATION_RATIO, default 3): characters per
//     token used by the batch size estimator.
//   - MaxFilesPerCycle (MAX_FILES_PER_CYCLE, default 1000): changed
//     files one watcher cycle may enqueue.
//   - MaxConversationChars (constant, 400000): conversation text cap
//     for one narrative batch request.
//
// # Configuration via Environment
//
// Example:
//
//	export MAX_TOKENS_PER_BATCH=50000  # halve batch sizes
//
// Unset, unparseable, or non-positive values fall back to the defaults.
package contract
