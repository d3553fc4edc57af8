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
	"strings"
	"time"

	"github.com/Leeaandrob/claude-code-self-reflect/internal/bootstrap"
	"github.com/Leeaandrob/claude-code-self-reflect/internal/ui"
	"github.com/Leeaandrob/claude-code-self-reflect/pkg/storage"
)

// runInit creates the workspace layout and the YAML config, prompting
// interactively unless -y is given.
func runInit(args []string, configPath string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	var (
		force          = fs.Bool("force", false, "Overwrite existing configuration")
		nonInteractive = fs.Bool("y", false, "Non-interactive mode (use defaults)")
		qdrantURL      = fs.String("qdrant-url", "", "Qdrant base URL")
		logsDir        = fs.String("logs-dir", "", "Transcript root directory")
		provider       = fs.String("provider", "", "Embedding provider (qwen, voyage)")
	)
	g := addGlobalFlags(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: reflect init [options]

Creates ~/.claude-self-reflect and writes reflect.yaml.

Examples:
  reflect init                          # Interactive setup
  reflect init -y                       # All defaults
  reflect init --provider voyage -y

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	g.finish()
	logger := g.Logger()

	if configPath == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			ui.Errorf("Cannot locate config path: %v", err)
			os.Exit(1)
		}
		configPath = p
	}

	if _, err := os.Stat(configPath); err == nil && !*force {
		ui.Errorf("%s already exists. Use --force to overwrite.", configPath)
		os.Exit(1)
	}

	cfg := DefaultConfig()
	if *qdrantURL != "" {
		cfg.QdrantURL = *qdrantURL
	}
	if *logsDir != "" {
		cfg.LogsDir = *logsDir
	}
	if *provider != "" {
		cfg.Embedding.Provider = *provider
	}

	if !*nonInteractive {
		runInteractiveConfig(cfg)
	}

	info, err := bootstrap.InitWorkspace(bootstrap.WorkspaceConfig{StateFile: cfg.StateFile}, logger)
	if err != nil {
		ui.Errorf("Cannot create workspace: %v", err)
		os.Exit(1)
	}
	if err := SaveConfig(cfg, configPath); err != nil {
		ui.Errorf("Cannot save configuration: %v", err)
		os.Exit(1)
	}
	ui.Successf("Created %s", configPath)

	// A reachability probe, not a hard requirement: the store may come
	// up later.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := bootstrap.CheckStore(ctx, storage.NewClient(cfg.QdrantURL, logger), logger)
	if err != nil {
		ui.Warningf("Qdrant not reachable at %s: %v", cfg.QdrantURL, err)
		ui.Info("Start Qdrant and re-run 'reflect status' to verify.")
	} else {
		ui.Successf("Qdrant reachable (%d collections, %d points)", health.Collections, health.Points)
	}

	printInitNextSteps(cfg, info)
}

func runInteractiveConfig(cfg *Config) {
	reader := bufio.NewReader(os.Stdin)

	ui.Header("Reflect Configuration")
	fmt.Println()

	cfg.QdrantURL = prompt(reader, "Qdrant URL", cfg.QdrantURL)
	cfg.LogsDir = prompt(reader, "Claude Code logs directory", cfg.LogsDir)

	fmt.Println()
	fmt.Println("Embedding providers: qwen (DashScope), voyage")
	cfg.Embedding.Provider = prompt(reader, "Embedding provider", cfg.Embedding.Provider)

	switch strings.ToLower(cfg.Embedding.Provider) {
	case "qwen":
		if os.Getenv("DASHSCOPE_API_KEY") == "" {
			ui.Warning("DASHSCOPE_API_KEY is not set; exports or a .env file are required before importing.")
		}
	case "voyage":
		if os.Getenv("VOYAGE_KEY") == "" {
			ui.Warning("VOYAGE_KEY is not set; exports or a .env file are required before importing.")
		}
	}
	fmt.Println()
}

func printInitNextSteps(cfg *Config, info *bootstrap.WorkspaceInfo) {
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Export your embedding API key (DASHSCOPE_API_KEY or VOYAGE_KEY)")
	fmt.Println("  2. Run 'reflect import' to import existing transcripts")
	fmt.Println("  3. Run 'reflect search \"something you worked on\"'")
	fmt.Println()
	fmt.Printf("Workspace: %s\n", info.Root)
	fmt.Printf("Transcripts: %s\n", cfg.LogsDir)
}

// prompt shows "label [default]: " and reads a line; empty input keeps
// the default.
func prompt(reader *bufio.Reader, label, defaultValue string) string {
	if defaultValue != "" {
		fmt.Printf("%s [%s]: ", label, defaultValue)
	} else {
		fmt.Printf("%s: ", label)
	}

	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultValue
	}
	return input
}
