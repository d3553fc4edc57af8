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

// Package testing provides test helpers shared across packages.
//
// The central piece is FakeQdrant, an in-memory Qdrant behind an
// httptest server. Tests point a real storage.Client at it and get
// working collections, cosine search, filters and scrolling without a
// running instance:
//
//	func TestMyFeature(t *testing.T) {
//	    store, fake := testing.SetupTestStore(t)
//
//	    fake.Seed("conv_abc_qwen_2048d", 8, 42, vec, payload)
//	    // Search, scroll, count through store...
//	}
//
// Transcript helpers build JSONL fixture files in the format the
// importer reads.
package testing
