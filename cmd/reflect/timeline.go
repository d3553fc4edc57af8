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
	"github.com/Leeaandrob/claude-code-self-reflect/pkg/tools"
)

// runTimeline renders bucketed activity, or work sessions with
// --sessions.
func runTimeline(args []string, configPath string) {
	fs := flag.NewFlagSet("timeline", flag.ExitOnError)
	var (
		projectFilter = fs.String("project", "all", "Project to show, or 'all'")
		granularity   = fs.String("granularity", "day", "Bucket size: hour, day, or week")
		since         = fs.String("since", "", `Temporal filter (default "last week")`)
		sessions      = fs.Bool("sessions", false, "Group activity into work sessions instead of buckets")
	)
	g := addGlobalFlags(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: reflect timeline [options]

Shows when work happened: chunk and message counts per interval, with
the most-touched files and topics. --sessions groups activity into
contiguous work sessions split at two-hour gaps.

Examples:
  reflect timeline
  reflect timeline --project my-app --granularity hour --since today
  reflect timeline --sessions --since "past 3 days"

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	g.finish()

	rt := buildRuntime(configPath, g)
	// Timeline scrolls by timestamp range; no query embedding.
	engine := tools.NewEngine(rt.store, nil, nil, rt.logger)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if *sessions {
		runSessions(ctx, engine, g, *projectFilter, *since)
		return
	}

	buckets, err := engine.Timeline(ctx, tools.TimelineArgs{
		Project:     *projectFilter,
		Granularity: *granularity,
		Since:       *since,
	})
	if err != nil {
		ui.Errorf("Cannot build timeline: %v", err)
		os.Exit(1)
	}
	if g.JSON {
		_ = output.JSON(buckets)
		return
	}
	if len(buckets) == 0 {
		ui.Info("No activity in that range.")
		return
	}
	ui.Header("Activity Timeline")
	for _, b := range buckets {
		fmt.Printf("%s  %s chunks, %s messages",
			ui.Label(bucketLabel(b.Start, *granularity)),
			ui.CountText(b.Chunks), ui.CountText(b.Messages))
		if len(b.Projects) > 1 {
			fmt.Printf("  (%s)", strings.Join(b.Projects, ", "))
		}
		fmt.Println()
		if len(b.TopTopics) > 0 {
			fmt.Printf("  %s %s\n", ui.Label("topics:"), strings.Join(b.TopTopics, ", "))
		}
		if len(b.TopFiles) > 0 {
			fmt.Printf("  %s %s\n", ui.Label("files:"), strings.Join(b.TopFiles, ", "))
		}
	}
}

func bucketLabel(start time.Time, granularity string) string {
	switch granularity {
	case "hour":
		return start.Local().Format("2006-01-02 15:00")
	case "week":
		return "week of " + start.Format("2006-01-02")
	default:
		return start.Format("2006-01-02")
	}
}

func runSessions(ctx context.Context, engine *tools.Engine, g *GlobalFlags, projectFilter, since string) {
	list, err := engine.Sessions(ctx, projectFilter, since)
	if err != nil {
		ui.Errorf("Cannot detect sessions: %v", err)
		os.Exit(1)
	}
	if g.JSON {
		_ = output.JSON(list)
		return
	}
	if len(list) == 0 {
		ui.Info("No sessions in that range.")
		return
	}
	ui.Header("Work Sessions")
	for _, s := range list {
		fmt.Printf("%s - %s  (%s min, %s messages)\n",
			ui.Label(s.Start.Local().Format("2006-01-02 15:04")),
			s.End.Local().Format("15:04"),
			ui.CountText(s.DurationMinutes), ui.CountText(s.MessageCount))
		if len(s.MainTopics) > 0 {
			fmt.Printf("  %s %s\n", ui.Label("topics:"), strings.Join(s.MainTopics, ", "))
		}
		fmt.Printf("  %s %s\n", ui.Label("conversations:"), strings.Join(s.Conversations, ", "))
	}
}
