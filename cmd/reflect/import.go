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
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Leeaandrob/claude-code-self-reflect/internal/output"
	"github.com/Leeaandrob/claude-code-self-reflect/internal/ui"
	"github.com/Leeaandrob/claude-code-self-reflect/pkg/ingest"
	"github.com/Leeaandrob/claude-code-self-reflect/pkg/project"
)

// ImportSummary is the JSON shape of one import run.
type ImportSummary struct {
	Candidates int `json:"candidates"`
	Imported   int `json:"imported"`
	Failed     int `json:"failed"`
	Chunks     int `json:"chunks"`
	Messages   int `json:"messages"`
}

// runImport does a one-shot import of every pending transcript.
func runImport(args []string, configPath string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	var (
		projectFilter = fs.String("project", "", "Only import this project's transcripts")
		all           = fs.Bool("all", false, "Re-import every transcript, ignoring the ledger")
		limit         = fs.Int("limit", 0, "Import at most N files (0 = no limit)")
		metricsAddr   = fs.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	)
	g := addGlobalFlags(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: reflect import [options]

Imports transcripts whose mtime changed since the last import. Orphaned
ledger entries (deleted transcripts) are cleaned up first.

Examples:
  reflect import
  reflect import --project my-app
  reflect import --all
  reflect import --limit 10 -v

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	g.finish()

	rt := buildRuntime(configPath, g)
	provider := rt.Provider(g)
	maybeServeMetrics(*metricsAddr, rt.logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	importer := ingest.NewImporter(rt.store, provider, rt.state, rt.logger)
	watcher := ingest.NewWatcher(rt.cfg.LogsDir, importer, rt.state, 0, rt.logger)

	checked, removed := rt.state.RemoveOrphans(func(p string) bool {
		_, err := os.Stat(p)
		return err == nil
	}, rt.logger)
	if removed > 0 {
		rt.logger.Info("import.orphans_removed", "checked", checked, "removed", removed)
	}

	var pending []string
	var err error
	if *all {
		pending, err = filepath.Glob(filepath.Join(rt.cfg.LogsDir, "*", "*.jsonl"))
	} else {
		pending, err = watcher.Pending()
	}
	if err != nil {
		ui.Errorf("Cannot scan %s: %v", rt.cfg.LogsDir, err)
		os.Exit(1)
	}

	if *projectFilter != "" {
		target := project.Normalize(*projectFilter)
		var filtered []string
		for _, p := range pending {
			if project.Normalize(filepath.Base(filepath.Dir(p))) == target {
				filtered = append(filtered, p)
			}
		}
		pending = filtered
	}
	if *limit > 0 && len(pending) > *limit {
		pending = pending[:*limit]
	}

	summary := ImportSummary{Candidates: len(pending)}
	if len(pending) == 0 {
		finishImport(g, summary)
		return
	}

	rt.logger.Info("import.starting", "candidates", len(pending))
	bar := NewProgressBar(NewProgressConfig(g), int64(len(pending)), "importing")

	for _, path := range pending {
		if ctx.Err() != nil {
			break
		}
		res, err := importer.ImportFile(ctx, path)
		if bar != nil {
			_ = bar.Add(1)
		}
		if err != nil {
			summary.Failed++
			continue
		}
		summary.Imported++
		summary.Chunks += res.Chunks
		summary.Messages += res.Messages
	}
	if bar != nil {
		_ = bar.Finish()
	}

	finishImport(g, summary)
	if summary.Failed > 0 {
		os.Exit(1)
	}
}

func finishImport(g *GlobalFlags, s ImportSummary) {
	if g.JSON {
		_ = output.JSON(s)
		return
	}
	if s.Candidates == 0 {
		ui.Info("Nothing to import.")
		return
	}
	ui.Successf("Imported %d/%d files (%d chunks, %d messages)",
		s.Imported, s.Candidates, s.Chunks, s.Messages)
	if s.Failed > 0 {
		ui.Warningf("%d files failed; re-run with -v for details", s.Failed)
	}
}
