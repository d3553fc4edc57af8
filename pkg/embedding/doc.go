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

// Package embedding turns text into vectors through cloud providers.
//
// The Provider interface is deliberately narrow: Embed, Dimension, Tag.
// Two implementations exist, qwen (DashScope text-embedding-v4, 2048
// dimensions) and voyage (voyage-3, 1024 dimensions). The Tag doubles
// as the collection-name suffix, which ties stored vectors to the
// provider and dimension they were produced with.
//
// NewFromEnv selects the provider: an explicit EMBEDDING_PROVIDER wins,
// otherwise the first configured API key does, qwen before voyage.
//
// Errors are split into two classes. Transient failures (timeouts,
// 429/5xx) match ErrTransient via errors.Is and are worth retrying with
// backoff. Everything else, including degenerate output detected by the
// Validate helpers, matches ErrFatal.
package embedding
