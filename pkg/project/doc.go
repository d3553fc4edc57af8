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

// Package project maps project names and paths to the vector store
// collections that hold their conversation history.
//
// Claude Code stores each project's transcripts under a directory whose
// name is the project path with "/" flattened to "-", for example
// "-Users-alice-projects-my-app". The functions in this package reduce
// any of the forms a project may be referred to by (absolute path,
// flattened directory name, bare name) to a single canonical name, and
// derive the collection names from it:
//
//	name := project.Normalize("-Users-alice-projects-my-app") // "my-app"
//	conv := project.CollectionName(name, "voyage_1024d")      // "conv_<hash8>_voyage_1024d"
//	narr := project.NarrativeCollectionName(name)             // "narratives_<hash12>"
//
// Collection names embed a truncated MD5 of the canonical name rather
// than the name itself so that arbitrary project names stay within
// collection naming limits. The hashes are load-bearing: existing
// deployments have collections on disk named this way, so Normalize
// and the hashing scheme must not change behavior.
//
// The Resolver half of the package answers the reverse question: given
// a user-supplied project query (or "all"), which collections should a
// search fan out to? See ResolveCollections and MatchesProject.
package project
