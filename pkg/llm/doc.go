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

// Package llm wraps the OpenAI-compatible HTTP surface of DashScope.
//
// Two subsystems consume it: the qwen embedding provider (the
// /embeddings endpoint through EmbeddingAPI) and the narrative batch
// service (file upload, batch lifecycle, and result download through
// BatchAPI). Both interfaces are satisfied by *openai.Client, so tests
// can substitute fakes without touching the network.
//
// Error classification lives here too: IsRetryable separates transport
// failures, timeouts, 429 and 5xx responses (worth retrying with
// backoff) from auth and request errors (fatal for the operation).
package llm
