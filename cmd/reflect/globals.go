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
	"flag"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/pflag"

	"github.com/Leeaandrob/claude-code-self-reflect/internal/ui"
)

// GlobalFlags are the output-shaping flags every subcommand accepts.
type GlobalFlags struct {
	// JSON switches output to machine-readable JSON (implies Quiet).
	JSON bool

	// Quiet suppresses progress bars and informational chatter.
	Quiet bool

	// NoColor disables ANSI colors.
	NoColor bool

	// Verbose counts -v occurrences; any repetition enables debug logs.
	Verbose int
}

// countFlag makes -v repeatable: each bare occurrence increments.
type countFlag int

func (c *countFlag) String() string { return strconv.Itoa(int(*c)) }

func (c *countFlag) Set(s string) error {
	if s == "true" || s == "" {
		*c++
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*c = countFlag(n)
	return nil
}

func (c *countFlag) IsBoolFlag() bool { return true }

// addGlobalFlags registers the shared flags on a subcommand flag set
// and returns the struct they fill after Parse.
func addGlobalFlags(fs *flag.FlagSet) *GlobalFlags {
	g := &GlobalFlags{}
	fs.BoolVar(&g.JSON, "json", false, "Output as JSON")
	fs.BoolVar(&g.Quiet, "q", false, "Suppress progress output")
	fs.BoolVar(&g.Quiet, "quiet", false, "Suppress progress output")
	fs.BoolVar(&g.NoColor, "no-color", false, "Disable colored output")
	fs.Var((*countFlag)(&g.Verbose), "v", "Verbose logging (repeatable)")
	return g
}

// addGlobalPFlags is the pflag twin of addGlobalFlags, for the
// daemon-style commands.
func addGlobalPFlags(fs *pflag.FlagSet) *GlobalFlags {
	g := &GlobalFlags{}
	fs.BoolVar(&g.JSON, "json", false, "Output as JSON")
	fs.BoolVarP(&g.Quiet, "quiet", "q", false, "Suppress progress output")
	fs.BoolVar(&g.NoColor, "no-color", false, "Disable colored output")
	fs.CountVarP(&g.Verbose, "verbose", "v", "Verbose logging (repeatable)")
	return g
}

// finish applies the flag interactions after parsing.
func (g *GlobalFlags) finish() {
	if g.JSON {
		g.Quiet = true
	}
	ui.InitColors(g.NoColor)
}

// Logger builds the command logger: text on stderr, debug level when
// any -v was given.
func (g *GlobalFlags) Logger() *slog.Logger {
	level := slog.LevelInfo
	if g.Verbose > 0 {
		level = slog.LevelDebug
	}
	if g.Quiet && g.Verbose == 0 {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
