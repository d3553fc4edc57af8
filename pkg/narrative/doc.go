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

// Package narrative generates and stores structured conversation
// summaries.
//
// Imported conversations are summarized in bulk through the DashScope
// Batch API: candidates are read from the import state, packed into a
// JSONL request file, submitted, and polled until the remote job
// finishes. Each parsed narrative is embedded and upserted into a
// per-project narratives_* collection so it can be searched alongside
// the raw conversation chunks.
//
// The Orchestrator drives the whole backfill as a singleton run,
// bounded by batch count and inter-batch cooldown.
package narrative
