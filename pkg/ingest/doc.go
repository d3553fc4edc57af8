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

// Package ingest turns Claude Code JSONL transcripts into embedded
// chunks in the vector store.
//
// A transcript is processed in two passes. Pass one walks the whole
// file and extracts conversation-level metadata: files touched, tools
// used, concepts, code symbols. Pass two streams user/assistant
// messages into fixed-size chunks, which are batched by estimated token
// cost, embedded, and upserted with deterministic point IDs so
// re-imports overwrite instead of duplicating.
//
// The import state file tracks what has been imported at which mtime;
// the watcher uses it to pick up only new or changed transcripts.
package ingest
