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

package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"github.com/Leeaandrob/claude-code-self-reflect/internal/contract"
)

// Event debounce window: one fsnotify burst (editors write transcripts
// line by line) collapses into a single early scan.
const watchDebounce = 500 * time.Millisecond

// Watcher keeps the vector store in sync with a transcript logs
// directory. A periodic scan is the source of truth; fsnotify events
// only pull the next scan forward. Imports run one at a time.
type Watcher struct {
	logsDir     string
	importer    *Importer
	state       *State
	logger      *slog.Logger
	interval    time.Duration
	maxPerCycle int
}

// ScanResult is the outcome of one scan cycle.
type ScanResult struct {
	Candidates int
	Imported   int
	Failed     int
}

// NewWatcher wires a watcher over the given logs directory
// (~/.claude/projects layout: one subdirectory per project, transcripts
// as *.jsonl).
func NewWatcher(logsDir string, importer *Importer, state *State, interval time.Duration, logger *slog.Logger) *Watcher {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		logsDir:     logsDir,
		importer:    importer,
		state:       state,
		logger:      logger,
		interval:    interval,
		maxPerCycle: contract.MaxFilesPerCycle(),
	}
}

// Pending globs the logs directory and returns the transcripts whose
// mtime differs from the state ledger, oldest first, capped at
// MAX_FILES_PER_CYCLE.
func (w *Watcher) Pending() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(w.logsDir, "*", "*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("glob transcripts: %w", err)
	}

	type candidate struct {
		path  string
		mtime time.Time
	}
	var pending []candidate
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		mtime := float64(info.ModTime().UnixNano()) / 1e9
		if w.state.ShouldImport(m, mtime) {
			pending = append(pending, candidate{path: m, mtime: info.ModTime()})
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].mtime.Before(pending[j].mtime) })

	if len(pending) > w.maxPerCycle {
		pending = pending[:w.maxPerCycle]
	}
	paths := make([]string, len(pending))
	for i, c := range pending {
		paths[i] = c.path
	}
	return paths, nil
}

// ScanOnce imports every pending transcript serially. Per-file failures
// are logged and counted, not fatal; context cancellation stops the
// cycle.
func (w *Watcher) ScanOnce(ctx context.Context) (*ScanResult, error) {
	paths, err := w.Pending()
	if err != nil {
		return nil, err
	}
	recordScanCycle(len(paths))

	res := &ScanResult{Candidates: len(paths)}
	for _, path := range paths {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if _, err := w.importer.ImportFile(ctx, path); err != nil {
			res.Failed++
			continue
		}
		res.Imported++
	}

	checked, removed := w.state.RemoveOrphans(func(p string) bool {
		_, err := os.Stat(p)
		return err == nil
	}, w.logger)
	if removed > 0 {
		w.logger.Info("ingest.watch.orphans_removed", "checked", checked, "removed", removed)
	}
	return res, nil
}

// Run blocks, scanning on the cron schedule and on debounced file
// events, until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	trigger := make(chan struct{}, 1)
	kick := func() {
		select {
		case trigger <- struct{}{}:
		default:
		}
	}

	schedule := cron.New()
	_, err := schedule.AddFunc(fmt.Sprintf("@every %s", w.interval), kick)
	if err != nil {
		return fmt.Errorf("schedule scan: %w", err)
	}
	schedule.Start()
	defer schedule.Stop()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Warn("ingest.watch.fsnotify_unavailable", "error", err)
		fsw = nil
	} else {
		defer func() { _ = fsw.Close() }()
		w.watchProjectDirs(fsw)
	}

	w.logger.Info("ingest.watch.started", "logs_dir", w.logsDir, "interval", w.interval)

	// Initial scan at startup picks up the backlog.
	kick()

	var debounce *time.Timer
	var debounceCh <-chan time.Time
	for {
		var events chan fsnotify.Event
		var watchErrs chan error
		if fsw != nil {
			events = fsw.Events
			watchErrs = fsw.Errors
		}

		select {
		case <-ctx.Done():
			w.logger.Info("ingest.watch.stopped")
			return ctx.Err()

		case <-trigger:
			res, err := w.ScanOnce(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				w.logger.Error("ingest.watch.scan_failed", "error", err)
				continue
			}
			if res.Candidates > 0 {
				w.logger.Info("ingest.watch.scan",
					"candidates", res.Candidates,
					"imported", res.Imported,
					"failed", res.Failed,
				)
			}
			// New project directories may have appeared.
			if fsw != nil {
				w.watchProjectDirs(fsw)
			}

		case ev := <-events:
			if !strings.HasSuffix(ev.Name, ".jsonl") {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(watchDebounce)
				debounceCh = debounce.C
			} else {
				debounce.Reset(watchDebounce)
			}

		case <-debounceCh:
			debounce = nil
			debounceCh = nil
			kick()

		case err := <-watchErrs:
			w.logger.Warn("ingest.watch.fsnotify_error", "error", err)
		}
	}
}

// watchProjectDirs registers the logs root and every project
// subdirectory. Already-watched paths are fine to re-add.
func (w *Watcher) watchProjectDirs(fsw *fsnotify.Watcher) {
	_ = fsw.Add(w.logsDir)
	entries, err := os.ReadDir(w.logsDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			_ = fsw.Add(filepath.Join(w.logsDir, e.Name()))
		}
	}
}
