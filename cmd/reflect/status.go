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
	"path/filepath"
	"time"

	"github.com/Leeaandrob/claude-code-self-reflect/internal/bootstrap"
	"github.com/Leeaandrob/claude-code-self-reflect/internal/output"
	"github.com/Leeaandrob/claude-code-self-reflect/internal/ui"
	"github.com/Leeaandrob/claude-code-self-reflect/pkg/narrative"
)

// messagesPerChunk estimates message counts when only chunk totals are
// known.
const messagesPerChunk = 50

// StatusReport is the JSON shape of `reflect status`.
type StatusReport struct {
	Files struct {
		Total      int `json:"total"`
		Imported   int `json:"imported"`
		Failed     int `json:"failed"`
		Narratives int `json:"narratives"`
	} `json:"files"`
	Chunks            int                      `json:"chunks"`
	EstimatedMessages int                      `json:"estimated_messages"`
	Store             *StoreReport             `json:"store,omitempty"`
	StoreError        string                   `json:"store_error,omitempty"`
	Projects          []bootstrap.ProjectEntry `json:"projects,omitempty"`
	RecentJobs        []*narrative.Job         `json:"recent_jobs,omitempty"`
}

// StoreReport mirrors bootstrap.StoreHealth with JSON tags.
type StoreReport struct {
	Collections  int    `json:"collections"`
	Conversation int    `json:"conversation_collections"`
	Narrative    int    `json:"narrative_collections"`
	Points       uint64 `json:"points"`
}

// runStatus reports the import ledger, store health, and recent batch
// jobs.
func runStatus(args []string, configPath string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	g := addGlobalFlags(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: reflect status [options]

Shows what has been imported, whether the vector store is reachable,
and the latest narrative batch jobs.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	g.finish()

	rt := buildRuntime(configPath, g)

	var rep StatusReport
	stats := rt.state.Stats()
	rep.Files.Total = stats.Total
	rep.Files.Imported = stats.Completed
	rep.Files.Failed = stats.Failed
	rep.Files.Narratives = stats.Narratives
	rep.Chunks = stats.TotalChunks
	rep.EstimatedMessages = stats.TotalChunks * messagesPerChunk

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	health, err := bootstrap.CheckStore(ctx, rt.store, rt.logger)
	if err != nil {
		rep.StoreError = err.Error()
	} else {
		rep.Store = &StoreReport{
			Collections:  health.Collections,
			Conversation: health.Conversation,
			Narrative:    health.Narrative,
			Points:       health.Points,
		}
		if projects, perr := bootstrap.ListProjects(ctx, rt.store, rt.state); perr == nil {
			rep.Projects = projects
		}
	}

	if jobs, jerr := narrative.NewJobStore(filepath.Join(rt.workspaceRoot(), "batch_state")).List(5); jerr == nil {
		rep.RecentJobs = jobs
	}

	if g.JSON {
		_ = output.JSON(rep)
		return
	}
	printStatus(rt, rep)
}

func printStatus(rt *runtime, rep StatusReport) {
	ui.Header("Claude Self-Reflect")

	ui.SubHeader("Import ledger")
	fmt.Printf("  %s %s\n", ui.Label("files:"),
		fmt.Sprintf("%d imported, %d failed (%d total)",
			rep.Files.Imported, rep.Files.Failed, rep.Files.Total))
	fmt.Printf("  %s %d chunks (~%d messages)\n", ui.Label("chunks:"),
		rep.Chunks, rep.EstimatedMessages)
	fmt.Printf("  %s %d conversations summarized\n", ui.Label("narratives:"), rep.Files.Narratives)
	fmt.Println()

	ui.SubHeader("Vector store")
	if rep.StoreError != "" {
		ui.Errorf("  Unreachable at %s: %s", rt.cfg.QdrantURL, rep.StoreError)
	} else {
		ui.Successf("  Connected to %s", rt.cfg.QdrantURL)
		fmt.Printf("  %s %d (%d conversation, %d narrative), %d points\n",
			ui.Label("collections:"),
			rep.Store.Collections, rep.Store.Conversation, rep.Store.Narrative, rep.Store.Points)
	}
	fmt.Println()

	if len(rep.Projects) > 0 {
		ui.SubHeader("Projects")
		for _, p := range rep.Projects {
			name := p.Name
			if name == "" {
				name = "(unknown)"
			}
			fmt.Printf("  %-28s %6d chunks  %4d narratives\n", name, p.Chunks, p.Narratives)
		}
		fmt.Println()
	}

	if len(rep.RecentJobs) > 0 {
		ui.SubHeader("Recent batch jobs")
		for _, j := range rep.RecentJobs {
			fmt.Printf("  %-28s %-12s %3d%%  %s\n", j.ID, j.Status, j.Progress, j.CreatedAt)
		}
	}
}
