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

package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Leeaandrob/claude-code-self-reflect/internal/errors"
	"github.com/Leeaandrob/claude-code-self-reflect/pkg/embedding"
	"github.com/Leeaandrob/claude-code-self-reflect/pkg/ingest"
	"github.com/Leeaandrob/claude-code-self-reflect/pkg/llm"
	"github.com/Leeaandrob/claude-code-self-reflect/pkg/narrative"
	"github.com/Leeaandrob/claude-code-self-reflect/pkg/storage"
)

// runtime bundles the pieces most subcommands need. The embedding
// provider is built lazily: status-style commands work without API
// keys.
type runtime struct {
	cfg    *Config
	logger *slog.Logger
	store  *storage.Client
	state  *ingest.State

	provider embedding.Provider
}

// buildRuntime loads config, opens the store client, and loads the
// import ledger. Exits through FatalError on config problems.
func buildRuntime(configPath string, g *GlobalFlags) *runtime {
	logger := g.Logger()

	cfg, err := LoadConfig(configPath)
	if err != nil {
		errors.FatalError(errors.NewConfigError(
			"Cannot load configuration",
			err.Error(),
			"Check the config file syntax, or run 'reflect init' to recreate it",
			err,
		), g.JSON)
	}

	state, err := ingest.LoadState(cfg.StateFile)
	if err != nil {
		errors.FatalError(errors.NewConfigError(
			"Cannot load import state",
			err.Error(),
			"Inspect or remove "+cfg.StateFile,
			err,
		), g.JSON)
	}

	return &runtime{
		cfg:    cfg,
		logger: logger,
		store:  storage.NewClient(cfg.QdrantURL, logger),
		state:  state,
	}
}

// Provider builds (once) the embedding provider. Exits through
// FatalError when no provider can be configured.
func (rt *runtime) Provider(g *GlobalFlags) embedding.Provider {
	if rt.provider != nil {
		return rt.provider
	}

	// The factory reads EMBEDDING_PROVIDER; the config file acts as its
	// fallback default.
	if rt.cfg.Embedding.Provider != "" && os.Getenv("EMBEDDING_PROVIDER") == "" {
		_ = os.Setenv("EMBEDDING_PROVIDER", rt.cfg.Embedding.Provider)
	}

	provider, err := embedding.NewFromEnv(rt.logger)
	if err != nil {
		errors.FatalError(errors.NewConfigError(
			"No embedding provider configured",
			err.Error(),
			"Set DASHSCOPE_API_KEY (qwen) or VOYAGE_KEY (voyage), or run 'reflect init'",
			err,
		), g.JSON)
	}
	rt.provider = provider
	return provider
}

// workspaceRoot is where lock files and narrative batch scratch live.
func (rt *runtime) workspaceRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".claude-self-reflect"
	}
	return filepath.Join(home, ".claude-self-reflect")
}

// Narrative wires the batch service, narrative store, and orchestrator.
func (rt *runtime) Narrative(g *GlobalFlags) (*narrative.Service, *narrative.Store, *narrative.Orchestrator) {
	provider := rt.Provider(g)
	root := rt.workspaceRoot()

	svc := narrative.NewService(llm.DashScopeClientFromEnv(), rt.state, root, rt.cfg.Narrative.Model, rt.logger)
	store := narrative.NewStore(rt.store, provider, rt.logger)
	orch := narrative.NewOrchestrator(svc, store, filepath.Join(root, "backfill.lock"), rt.logger)
	return svc, store, orch
}
