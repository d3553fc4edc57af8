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
	"time"

	"github.com/Leeaandrob/claude-code-self-reflect/internal/output"
	"github.com/Leeaandrob/claude-code-self-reflect/internal/ui"
	"github.com/Leeaandrob/claude-code-self-reflect/pkg/tools"
)

// runRecent shows the latest imported chunks, no query needed.
func runRecent(args []string, configPath string) {
	fs := flag.NewFlagSet("recent", flag.ExitOnError)
	var (
		projectFilter = fs.String("project", "all", "Project to show, or 'all'")
		limit         = fs.Int("limit", 10, "Maximum results")
	)
	g := addGlobalFlags(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: reflect recent [options]

Lists the most recent conversation activity, newest first.

Examples:
  reflect recent
  reflect recent --project my-app --limit 20
  reflect recent --json

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	g.finish()

	rt := buildRuntime(configPath, g)
	// Recent work scrolls by timestamp; no query embedding, so no
	// provider (and no API key) needed.
	engine := tools.NewEngine(rt.store, nil, nil, rt.logger)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	hits, err := engine.RecentWork(ctx, *projectFilter, *limit)
	if err != nil {
		ui.Errorf("Cannot list recent work: %v", err)
		os.Exit(1)
	}
	if g.JSON {
		_ = output.JSON(hits)
		return
	}
	if len(hits) == 0 {
		ui.Info("No imported conversations yet. Run 'reflect import' first.")
		return
	}
	ui.Header("Recent Work")
	for _, h := range hits {
		fmt.Printf("%s %s\n", ui.DimText(h.Timestamp.Local().Format("2006-01-02 15:04")), ui.Label(h.Project))
		fmt.Printf("  %s\n\n", h.Excerpt)
	}
}
