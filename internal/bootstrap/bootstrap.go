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

package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/Leeaandrob/claude-code-self-reflect/pkg/ingest"
	"github.com/Leeaandrob/claude-code-self-reflect/pkg/project"
	"github.com/Leeaandrob/claude-code-self-reflect/pkg/storage"
)

// WorkspaceConfig holds the paths InitWorkspace prepares. Empty fields
// pick the defaults under ~/.claude-self-reflect.
type WorkspaceConfig struct {
	// Root is the workspace directory.
	Root string

	// StateFile is the import ledger path. Defaults to
	// <Root>/config/imported-files.json.
	StateFile string
}

// WorkspaceInfo describes an initialized workspace.
type WorkspaceInfo struct {
	Root      string
	ConfigDir string
	StateFile string
}

// DefaultRoot returns the default workspace directory.
func DefaultRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".claude-self-reflect"), nil
}

// InitWorkspace creates the workspace directory layout. Idempotent:
// existing directories and files are left alone.
func InitWorkspace(cfg WorkspaceConfig, logger *slog.Logger) (*WorkspaceInfo, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Root == "" {
		root, err := DefaultRoot()
		if err != nil {
			return nil, err
		}
		cfg.Root = root
	}
	configDir := filepath.Join(cfg.Root, "config")
	if cfg.StateFile == "" {
		cfg.StateFile = filepath.Join(configDir, "imported-files.json")
	}

	for _, dir := range []string{
		configDir,
		filepath.Join(cfg.Root, "batch_files"),
		filepath.Join(cfg.Root, "batch_state"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	logger.Info("bootstrap.workspace.ready", "root", cfg.Root)
	return &WorkspaceInfo{
		Root:      cfg.Root,
		ConfigDir: configDir,
		StateFile: cfg.StateFile,
	}, nil
}

// StoreHealth is the result of a store reachability probe.
type StoreHealth struct {
	Collections  int
	Conversation int
	Narrative    int
	Points       uint64
}

// CheckStore verifies the Qdrant store is reachable and counts what it
// holds. Per-collection lookup failures are skipped; the listing itself
// failing is the error that matters.
func CheckStore(ctx context.Context, client *storage.Client, logger *slog.Logger) (*StoreHealth, error) {
	if logger == nil {
		logger = slog.Default()
	}

	names, err := client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("store unreachable: %w", err)
	}

	health := &StoreHealth{Collections: len(names)}
	for _, name := range names {
		switch {
		case project.IsConversationCollection(name):
			health.Conversation++
		case project.IsNarrativeCollection(name):
			health.Narrative++
		default:
			continue
		}
		info, err := client.GetCollection(ctx, name)
		if err != nil {
			logger.Debug("bootstrap.store.collection_skipped", "collection", name, "error", err)
			continue
		}
		health.Points += info.PointsCount
	}

	logger.Debug("bootstrap.store.healthy",
		"collections", health.Collections, "points", health.Points)
	return health, nil
}

// ProjectEntry is one known project: its name when the import ledger
// knows it, and the store collections holding its data.
type ProjectEntry struct {
	// Name is the normalized project name, or "" for collections whose
	// hash matches nothing in the ledger.
	Name string `json:"name,omitempty"`

	Collections []string `json:"collections"`
	Chunks      uint64   `json:"chunks"`
	Narratives  uint64   `json:"narratives"`
}

// ListProjects joins store collections with the import ledger. Ledger
// paths yield project names; each name is hashed and matched against
// collection names, so hashed collections come back labelled. Leftover
// collections (imported elsewhere, or legacy naming) appear unnamed.
func ListProjects(ctx context.Context, client *storage.Client, state *ingest.State) ([]ProjectEntry, error) {
	names, err := client.ListCollections(ctx)
	if err != nil {
		return nil, err
	}

	// Ledger-known project names, deduplicated.
	known := make(map[string]bool)
	for path := range state.Snapshot() {
		known[project.Normalize(filepath.Base(filepath.Dir(path)))] = true
	}

	byName := make(map[string]*ProjectEntry)
	claimed := make(map[string]bool)
	entry := func(name string) *ProjectEntry {
		e := byName[name]
		if e == nil {
			e = &ProjectEntry{Name: name}
			byName[name] = e
		}
		return e
	}

	for name := range known {
		convPrefix := "conv_" + project.HashName(name) + "_"
		narrative := project.NarrativeCollectionName(name)
		for _, col := range names {
			var e *ProjectEntry
			switch {
			case len(col) >= len(convPrefix) && col[:len(convPrefix)] == convPrefix:
				e = entry(name)
			case col == narrative:
				e = entry(name)
			default:
				continue
			}
			e.Collections = append(e.Collections, col)
			claimed[col] = true
		}
	}

	var out []ProjectEntry
	for _, e := range byName {
		sort.Strings(e.Collections)
		out = append(out, *e)
	}

	// Collections no ledger entry explains still get listed.
	for _, col := range names {
		if claimed[col] {
			continue
		}
		if !project.IsConversationCollection(col) && !project.IsNarrativeCollection(col) {
			continue
		}
		out = append(out, ProjectEntry{Collections: []string{col}})
	}

	for i := range out {
		for _, col := range out[i].Collections {
			info, err := client.GetCollection(ctx, col)
			if err != nil {
				continue
			}
			if project.IsNarrativeCollection(col) {
				out[i].Narratives += info.PointsCount
			} else {
				out[i].Chunks += info.PointsCount
			}
		}
	}

	sort.Slice(out, func(i, k int) bool {
		if (out[i].Name == "") != (out[k].Name == "") {
			return out[i].Name != ""
		}
		if out[i].Name != out[k].Name {
			return out[i].Name < out[k].Name
		}
		return len(out[i].Collections) > len(out[k].Collections)
	})
	return out, nil
}
