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
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Leeaandrob/claude-code-self-reflect/internal/ui"
	"github.com/Leeaandrob/claude-code-self-reflect/pkg/project"
)

// runReset drops collections and their ledger entries. Destructive;
// asks first unless --yes.
func runReset(args []string, configPath string) {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	var (
		projectFilter = fs.String("project", "", "Only this project (default: everything)")
		yes           = fs.Bool("yes", false, "Skip the confirmation prompt")
	)
	g := addGlobalFlags(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: reflect reset [options]

Deletes conversation and narrative collections from the vector store
and forgets the matching import ledger entries, so the next import
re-processes the transcripts from scratch.

Examples:
  reflect reset --project my-app
  reflect reset --yes

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	g.finish()

	rt := buildRuntime(configPath, g)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	query := *projectFilter
	if query == "" {
		query = "all"
	}
	conv, err := project.ResolveCollections(ctx, rt.store, query)
	if err != nil {
		ui.Errorf("Cannot list collections: %v", err)
		os.Exit(1)
	}
	narr, err := project.ResolveNarrativeCollections(ctx, rt.store, query)
	if err != nil {
		ui.Errorf("Cannot list collections: %v", err)
		os.Exit(1)
	}
	targets := append(conv, narr...)

	if len(targets) == 0 {
		ui.Info("Nothing to reset.")
		return
	}

	if !*yes {
		ui.Warningf("About to delete %d collections:", len(targets))
		for _, name := range targets {
			fmt.Printf("  %s\n", name)
		}
		fmt.Print("Type 'yes' to continue: ")
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if strings.TrimSpace(line) != "yes" {
			ui.Info("Aborted.")
			return
		}
	}

	deleted := 0
	for _, name := range targets {
		if err := rt.store.DeleteCollection(ctx, name); err != nil {
			ui.Warningf("Cannot delete %s: %v", name, err)
			continue
		}
		rt.logger.Info("reset.collection_deleted", "collection", name)
		deleted++
	}

	// Forget the ledger entries so the transcripts re-import.
	target := project.Normalize(*projectFilter)
	checked, removed := rt.state.RemoveOrphans(func(path string) bool {
		if target == "" {
			return false
		}
		return project.Normalize(filepath.Base(filepath.Dir(path))) != target
	}, rt.logger)

	ui.Successf("Deleted %d collections, forgot %d of %d ledger entries", deleted, removed, checked)
}
