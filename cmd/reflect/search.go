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
	"strings"
	"time"

	"github.com/Leeaandrob/claude-code-self-reflect/internal/output"
	"github.com/Leeaandrob/claude-code-self-reflect/internal/ui"
	"github.com/Leeaandrob/claude-code-self-reflect/pkg/narrative"
	"github.com/Leeaandrob/claude-code-self-reflect/pkg/tools"
)

// runSearch answers "have we worked on this before?".
func runSearch(args []string, configPath string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	var (
		projectFilter = fs.String("project", "all", "Project to search, or 'all'")
		limit         = fs.Int("limit", 0, "Maximum results")
		minScore      = fs.Float64("min-score", 0, "Similarity cutoff (0-1)")
		noDecay       = fs.Bool("no-decay", false, "Disable time-decay re-scoring")
		since         = fs.String("since", "", `Temporal filter ("today", "past 7 days", "since monday")`)
		narrativesFl  = fs.Bool("narratives", false, "Search narrative summaries instead of chunks")
		hybrid        = fs.Bool("hybrid", false, "Search narratives and chunks together")
	)
	g := addGlobalFlags(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: reflect search <query> [options]

Semantic search over imported conversations. Recent work scores higher
unless --no-decay is given.

Examples:
  reflect search "docker compose networking fix"
  reflect search "auth refactor" --project my-app --since "past 7 days"
  reflect search "what did we decide about caching" --narratives
  reflect search "migration plan" --hybrid --json

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	g.finish()

	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		fs.Usage()
		os.Exit(1)
	}

	rt := buildRuntime(configPath, g)
	provider := rt.Provider(g)
	narrStore := narrative.NewStore(rt.store, provider, rt.logger)
	engine := tools.NewEngine(rt.store, provider, narrStore, rt.logger)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	switch {
	case *hybrid:
		res, err := engine.HybridSearch(ctx, query, *projectFilter, *limit, *minScore)
		if err != nil {
			ui.Errorf("Search failed: %v", err)
			os.Exit(1)
		}
		if g.JSON {
			_ = output.JSON(res)
			return
		}
		printNarrativeHits(res.Narratives)
		printChunkHits(res.Chunks)

	case *narrativesFl:
		hits, err := engine.SearchNarratives(ctx, query, *projectFilter, *limit, *minScore)
		if err != nil {
			ui.Errorf("Search failed: %v", err)
			os.Exit(1)
		}
		if g.JSON {
			_ = output.JSON(hits)
			return
		}
		printNarrativeHits(hits)

	default:
		hits, err := engine.Search(ctx, tools.SearchArgs{
			Query:    query,
			Project:  *projectFilter,
			Limit:    *limit,
			MinScore: *minScore,
			Since:    *since,
			NoDecay:  *noDecay,
		})
		if err != nil {
			ui.Errorf("Search failed: %v", err)
			os.Exit(1)
		}
		if g.JSON {
			_ = output.JSON(hits)
			return
		}
		printChunkHits(hits)
	}
}

func printChunkHits(hits []tools.Hit) {
	if len(hits) == 0 {
		ui.Info("No matching conversations.")
		return
	}
	ui.SubHeader(fmt.Sprintf("Conversation chunks (%d)", len(hits)))
	for _, h := range hits {
		fmt.Printf("%s %s %s\n",
			ui.CountText(int(h.Score*100)),
			ui.Label(h.Project),
			ui.DimText(h.Timestamp.Local().Format("2006-01-02 15:04")))
		fmt.Printf("  %s\n", h.Excerpt)
		if len(h.Files) > 0 {
			fmt.Printf("  %s %s\n", ui.Label("files:"), strings.Join(h.Files, ", "))
		}
		if len(h.Concepts) > 0 {
			fmt.Printf("  %s %s\n", ui.Label("concepts:"), strings.Join(h.Concepts, ", "))
		}
		fmt.Println()
	}
}

func printNarrativeHits(hits []narrative.Hit) {
	if len(hits) == 0 {
		ui.Info("No matching narratives.")
		return
	}
	ui.SubHeader(fmt.Sprintf("Narratives (%d)", len(hits)))
	for _, h := range hits {
		proj, _ := h.Payload["project"].(string)
		summary, _ := h.Payload["summary"].(string)
		outcome, _ := h.Payload["outcome"].(string)
		fmt.Printf("%s %s %s\n",
			ui.CountText(int(h.Score*100)), ui.Label(proj), ui.DimText(outcome))
		fmt.Printf("  %s\n", summary)
		if solution, ok := h.Payload["solution"].(string); ok && solution != "" {
			fmt.Printf("  %s %s\n", ui.Label("solution:"), solution)
		}
		fmt.Println()
	}
}
