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

// Package bootstrap prepares the reflect workspace before commands run.
//
// It creates the directory layout under ~/.claude-self-reflect (config
// file, import ledger, narrative batch scratch space), probes the
// Qdrant store for reachability, and builds the project inventory the
// CLI reports by joining store collections with the import ledger.
//
// # Workspace Layout
//
//	~/.claude-self-reflect/
//	    config/reflect.yaml          CLI configuration
//	    config/imported-files.json   import state ledger
//	    batch_files/                 narrative batch request files
//	    batch_state/                 narrative batch job state
//
// InitWorkspace is idempotent: running `reflect init` again on an
// existing workspace only fills in whatever is missing.
package bootstrap
