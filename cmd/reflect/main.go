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

// Package main implements the reflect CLI: conversation memory for
// Claude Code sessions.
//
// Usage:
//
//	reflect init                      Create the workspace and config
//	reflect import                    Import pending transcripts once
//	reflect watch                     Watch transcripts continuously
//	reflect backfill                  Generate narrative summaries
//	reflect search <query> [--json]   Semantic search over past work
//	reflect status [--json]           Show import and store status
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Version information (set via ldflags during build)
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	// A .env next to the process is a convenience, not a requirement.
	_ = godotenv.Load()

	var (
		showVersion = flag.Bool("version", false, "Show version and exit")
		configPath  = flag.String("config", "", "Path to reflect.yaml (default: ~/.claude-self-reflect/config/reflect.yaml)")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `reflect - conversation memory for Claude Code

reflect imports your Claude Code transcripts into a local Qdrant
vector store and lets you search everything you and Claude have
worked on: semantically, by file, by concept, or by time.

Usage:
  reflect <command> [options]

Commands:
  init        Create workspace and configuration
  import      One-shot import of pending transcripts
  watch       Daemon: keep the store in sync, optionally run narratives
  backfill    Generate narrative summaries for imported conversations
  search      Semantic search over past conversations
  recent      Most recent conversation activity
  timeline    Activity timeline (and work sessions)
  status      Import ledger, store health, narrative batch jobs
  projects    Known projects and their collections
  reset       Drop collections and ledger entries (destructive!)
  completion  Generate shell completion script (bash|zsh|fish)

Global Options:
  --config    Path to reflect.yaml
  --version   Show version and exit

Examples:
  reflect init                           Configure interactively
  reflect import --project my-app        Import one project's transcripts
  reflect watch --narratives             Daemon with narrative generation
  reflect search "docker compose fix"    Search everything
  reflect search "auth bug" --project my-app --since "past 7 days"
  reflect timeline --granularity day
  reflect status --json

Getting Started:
  1. Configure:           reflect init
  2. Import transcripts:  reflect import
  3. Search:              reflect search "what did we decide about X"

Data Storage:
  Vectors live in Qdrant (QDRANT_URL, default http://localhost:6333).
  Workspace state lives in ~/.claude-self-reflect/.

Environment Variables:
  QDRANT_URL           Qdrant base URL
  LOGS_DIR             Transcript root (default ~/.claude/projects)
  EMBEDDING_PROVIDER   qwen or voyage
  DASHSCOPE_API_KEY    Qwen embeddings + narrative batches
  VOYAGE_KEY           Voyage embeddings

For detailed command help: reflect <command> --help

`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("reflect version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "init":
		runInit(cmdArgs, *configPath)
	case "import":
		runImport(cmdArgs, *configPath)
	case "watch":
		runWatch(cmdArgs, *configPath)
	case "backfill":
		runBackfill(cmdArgs, *configPath)
	case "search":
		runSearch(cmdArgs, *configPath)
	case "recent":
		runRecent(cmdArgs, *configPath)
	case "timeline":
		runTimeline(cmdArgs, *configPath)
	case "status":
		runStatus(cmdArgs, *configPath)
	case "projects":
		runProjects(cmdArgs, *configPath)
	case "reset":
		runReset(cmdArgs, *configPath)
	case "completion":
		runCompletion(cmdArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}
