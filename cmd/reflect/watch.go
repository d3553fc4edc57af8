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
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Leeaandrob/claude-code-self-reflect/internal/ui"
	"github.com/Leeaandrob/claude-code-self-reflect/pkg/ingest"
	"github.com/Leeaandrob/claude-code-self-reflect/pkg/narrative"
	"github.com/spf13/pflag"
)

// runWatch starts the sync daemon: periodic scans plus fsnotify
// wakeups, and optionally scheduled narrative backfill runs.
func runWatch(args []string, configPath string) {
	fs := pflag.NewFlagSet("watch", pflag.ExitOnError)
	var (
		interval    = fs.Duration("interval", 60*time.Second, "Scan interval")
		narratives  = fs.Bool("narratives", false, "Also generate narrative summaries on a schedule")
		metricsAddr = fs.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	)
	g := addGlobalPFlags(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: reflect watch [options]

Keeps the vector store in sync with the transcript directory. Only one
watch daemon runs at a time; SIGINT/SIGTERM stop it cleanly.

Examples:
  reflect watch
  reflect watch --interval 30s --narratives
  reflect watch --metrics-addr :9090

Options:
%s`, fs.FlagUsages())
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	g.finish()

	rt := buildRuntime(configPath, g)
	provider := rt.Provider(g)
	maybeServeMetrics(*metricsAddr, rt.logger)

	lock, err := acquireDaemonLock(filepath.Join(rt.workspaceRoot(), "watch.lock"))
	if err != nil {
		ui.Errorf("Cannot start: %v", err)
		os.Exit(1)
	}
	defer lock.release()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	importer := ingest.NewImporter(rt.store, provider, rt.state, rt.logger)
	watcher := ingest.NewWatcher(rt.cfg.LogsDir, importer, rt.state, *interval, rt.logger)

	var orch *narrative.Orchestrator
	if *narratives {
		_, _, orch = rt.Narrative(g)
		schedule := cron.New()
		_, err := schedule.AddFunc(fmt.Sprintf("@every %s", rt.cfg.CheckInterval()), func() {
			runScheduledBackfill(ctx, orch, rt)
		})
		if err != nil {
			ui.Errorf("Cannot schedule narrative runs: %v", err)
			os.Exit(1)
		}
		schedule.Start()
		defer schedule.Stop()
		rt.logger.Info("watch.narratives.scheduled", "interval", rt.cfg.CheckInterval())
	}

	err = watcher.Run(ctx)
	if orch != nil {
		orch.Stop()
		orch.Wait()
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		ui.Errorf("Watcher stopped: %v", err)
		os.Exit(1)
	}
}

// runScheduledBackfill kicks one bounded narrative run. A run already
// in flight is fine; anything else is logged and retried next tick.
func runScheduledBackfill(ctx context.Context, orch *narrative.Orchestrator, rt *runtime) {
	err := orch.Start(ctx, narrative.Config{
		BatchSize:           rt.cfg.Narrative.BatchSize,
		MaxBatches:          rt.cfg.Narrative.MaxBatches,
		DelayBetweenBatches: rt.cfg.Cooldown(),
		PollInterval:        rt.cfg.PollInterval(),
		MinBatch:            rt.cfg.Narrative.MinBatch,
		MaxConcurrent:       rt.cfg.Narrative.MaxConcurrent,
		OldestFirst:         rt.cfg.OldestFirst(),
	})
	switch {
	case err == nil:
		rt.logger.Info("watch.narratives.run_started")
	case errors.Is(err, narrative.ErrAlreadyRunning):
		rt.logger.Debug("watch.narratives.still_running")
	default:
		rt.logger.Warn("watch.narratives.start_failed", "error", err)
	}
}
