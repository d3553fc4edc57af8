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
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/Leeaandrob/claude-code-self-reflect/internal/output"
	"github.com/Leeaandrob/claude-code-self-reflect/internal/ui"
	"github.com/Leeaandrob/claude-code-self-reflect/pkg/narrative"
)

// runBackfill drives the narrative backfill orchestrator: a bounded
// run by default, or inspection/control of a running one.
func runBackfill(args []string, configPath string) {
	fs := pflag.NewFlagSet("backfill", pflag.ExitOnError)
	var (
		projectFilter = fs.String("project", "", "Only this project's conversations")
		batchSize     = fs.Int("batch-size", 0, "Conversations per batch (5-100, default 50)")
		maxBatches    = fs.Int("max-batches", 0, "Batches per run (1-50, default 10)")
		delay         = fs.Duration("delay", 0, "Cooldown between batches (10s-600s, default 60s)")
		showStatus    = fs.Bool("status", false, "Show batch jobs and exit")
		stopRun       = fs.Bool("stop", false, "Stop a running backfill and exit")
		metricsAddr   = fs.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	)
	g := addGlobalPFlags(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: reflect backfill [options]

Generates narrative summaries for imported conversations through the
DashScope batch API. Runs are singletons: one at a time per machine.

Examples:
  reflect backfill
  reflect backfill --project my-app --batch-size 20 --max-batches 2
  reflect backfill --status
  reflect backfill --stop

Options:
%s`, fs.FlagUsages())
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	g.finish()

	rt := buildRuntime(configPath, g)
	lockPath := filepath.Join(rt.workspaceRoot(), "backfill.lock")

	if *showStatus {
		printBackfillStatus(rt, g, lockPath)
		return
	}
	if *stopRun {
		stopBackfill(g, lockPath)
		return
	}

	_, _, orch := rt.Narrative(g)
	maybeServeMetrics(*metricsAddr, rt.logger)

	if *batchSize == 0 {
		*batchSize = rt.cfg.Narrative.BatchSize
	}
	if *maxBatches == 0 {
		*maxBatches = rt.cfg.Narrative.MaxBatches
	}
	if *delay == 0 {
		*delay = rt.cfg.Cooldown()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := orch.Start(ctx, narrative.Config{
		Project:             *projectFilter,
		BatchSize:           *batchSize,
		MaxBatches:          *maxBatches,
		DelayBetweenBatches: *delay,
		PollInterval:        rt.cfg.PollInterval(),
		MinBatch:            rt.cfg.Narrative.MinBatch,
		MaxConcurrent:       rt.cfg.Narrative.MaxConcurrent,
		OldestFirst:         rt.cfg.OldestFirst(),
	})
	if err != nil {
		ui.Errorf("Cannot start backfill: %v", err)
		os.Exit(1)
	}

	// Signals turn into a cooperative stop; the run drains between
	// batches.
	go func() {
		<-ctx.Done()
		orch.Stop()
	}()

	if !g.Quiet {
		ui.Info("Backfill running; Ctrl-C stops it between batches.")
	}
	orch.Wait()

	st := orch.Status()
	if g.JSON {
		_ = output.JSON(st)
	} else {
		ui.Successf("Backfill finished: %d batches completed, %d failed, %d narratives stored",
			st.BatchesCompleted, st.BatchesFailed, st.NarrativesStored)
		if st.LastError != "" {
			ui.Warningf("Last error: %s", st.LastError)
		}
	}
	if st.BatchesFailed > 0 {
		os.Exit(1)
	}
}

// backfillStatus is the JSON shape of --status.
type backfillStatus struct {
	Running    bool             `json:"running"`
	HolderPID  int              `json:"holder_pid,omitempty"`
	Since      string           `json:"since,omitempty"`
	RecentJobs []*narrative.Job `json:"recent_jobs"`
}

func printBackfillStatus(rt *runtime, g *GlobalFlags, lockPath string) {
	jobs, err := narrative.NewJobStore(filepath.Join(rt.workspaceRoot(), "batch_state")).List(10)
	if err != nil {
		ui.Errorf("Cannot list batch jobs: %v", err)
		os.Exit(1)
	}

	st := backfillStatus{RecentJobs: jobs}
	if pid, started := lockFileHolder(lockPath); pidAlive(pid) {
		st.Running = true
		st.HolderPID = pid
		st.Since = started.UTC().Format(time.RFC3339)
	}

	if g.JSON {
		_ = output.JSON(st)
		return
	}

	ui.Header("Narrative Backfill")
	if st.Running {
		ui.Infof("Running (pid %d, since %s)", st.HolderPID, st.Since)
	} else {
		ui.Info("Not running")
	}
	fmt.Println()
	if len(jobs) == 0 {
		fmt.Println("No batch jobs yet.")
		return
	}
	fmt.Println("Recent batch jobs:")
	for _, j := range jobs {
		fmt.Printf("  %-28s %-12s %3d%%  %d conversations  %s\n",
			j.ID, j.Status, j.Progress, j.ConversationsCount, j.CreatedAt)
		if j.Error != "" {
			fmt.Printf("      error: %s\n", j.Error)
		}
	}
}

// stopBackfill signals the lock-holding process; its signal handler
// requests the cooperative stop.
func stopBackfill(g *GlobalFlags, lockPath string) {
	pid, _ := lockFileHolder(lockPath)
	if !pidAlive(pid) {
		if !g.JSON {
			ui.Info("No backfill running.")
		}
		return
	}
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		ui.Errorf("Cannot signal pid %d: %v", pid, err)
		os.Exit(1)
	}
	ui.Successf("Stop requested (pid %d); the run drains after the current batch.", pid)
}
