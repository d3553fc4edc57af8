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

	"github.com/Leeaandrob/claude-code-self-reflect/internal/bootstrap"
	"github.com/Leeaandrob/claude-code-self-reflect/internal/output"
	"github.com/Leeaandrob/claude-code-self-reflect/internal/ui"
)

// runProjects lists every project the store and ledger know about.
func runProjects(args []string, configPath string) {
	fs := flag.NewFlagSet("projects", flag.ExitOnError)
	g := addGlobalFlags(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: reflect projects [options]

Lists known projects with their collections and point counts. Project
names come from the import ledger; collections whose hash matches no
ledger entry are listed unnamed.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	g.finish()

	rt := buildRuntime(configPath, g)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	entries, err := bootstrap.ListProjects(ctx, rt.store, rt.state)
	if err != nil {
		ui.Errorf("Cannot list projects: %v", err)
		os.Exit(1)
	}
	if g.JSON {
		_ = output.JSON(entries)
		return
	}
	if len(entries) == 0 {
		ui.Info("No projects yet. Run 'reflect import' first.")
		return
	}
	ui.Header("Projects")
	for _, e := range entries {
		name := e.Name
		if name == "" {
			name = "(unknown)"
		}
		fmt.Printf("%s  %s chunks, %s narratives\n",
			ui.Label(name), ui.CountText(int(e.Chunks)), ui.CountText(int(e.Narratives)))
		fmt.Printf("  %s\n", ui.DimText(strings.Join(e.Collections, ", ")))
	}
}
