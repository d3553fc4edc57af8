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
	"fmt"
	"os"

	"github.com/Leeaandrob/claude-code-self-reflect/internal/errors"
)

// bashCompletionTemplate provides command and flag completion for bash
// shells.
const bashCompletionTemplate = `#!/bin/bash

# Bash completion script for reflect
# Installation:
#   source <(reflect completion bash)
#   Or add to ~/.bashrc:
#   echo 'source <(reflect completion bash)' >> ~/.bashrc

_reflect_completion() {
    local cur prev commands
    commands="init import watch backfill search recent timeline status projects reset completion"

    cur="${COMP_WORDS[COMP_CWORD]}"
    prev="${COMP_WORDS[COMP_CWORD-1]}"

    # Global flags
    if [ $COMP_CWORD -eq 1 ] && [[ ${cur} == -* ]] ; then
        COMPREPLY=( $(compgen -W "--version --config" -- ${cur}) )
        return 0
    fi

    # First argument: complete commands
    if [ $COMP_CWORD -eq 1 ]; then
        COMPREPLY=( $(compgen -W "${commands}" -- ${cur}) )
        return 0
    fi

    # Command-specific flag completion
    local cmd="${COMP_WORDS[1]}"
    case "${cmd}" in
        init)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--force -y --qdrant-url --logs-dir --provider" -- ${cur}) )
            fi
            ;;
        import)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--project --all --limit --metrics-addr --json --quiet --no-color -v" -- ${cur}) )
            fi
            ;;
        watch)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--interval --narratives --metrics-addr --quiet --no-color -v" -- ${cur}) )
            fi
            ;;
        backfill)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--project --batch-size --max-batches --delay --status --stop --metrics-addr --json" -- ${cur}) )
            fi
            ;;
        search)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--project --limit --min-score --no-decay --since --narratives --hybrid --json" -- ${cur}) )
            fi
            ;;
        recent)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--project --limit --json" -- ${cur}) )
            fi
            ;;
        timeline)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--project --granularity --since --sessions --json" -- ${cur}) )
            fi
            ;;
        status|projects)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--json" -- ${cur}) )
            fi
            ;;
        reset)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--project --yes" -- ${cur}) )
            fi
            ;;
        completion)
            if [ $COMP_CWORD -eq 2 ]; then
                COMPREPLY=( $(compgen -W "bash zsh fish" -- ${cur}) )
            fi
            ;;
    esac
}

complete -F _reflect_completion reflect
`

// zshCompletionTemplate provides command and flag completion for zsh
// shells.
const zshCompletionTemplate = `#compdef reflect

# Zsh completion script for reflect
# Installation:
#   1. Ensure compinit is loaded (add to ~/.zshrc if not present):
#      autoload -U compinit; compinit
#   2. Save this script to a directory in your fpath:
#      reflect completion zsh > "${fpath[1]}/_reflect"
#   3. Reload completions:
#      rm -f ~/.zcompdump; compinit

_reflect() {
    local -a commands
    commands=(
        'init:Create the workspace and config file'
        'import:One-shot import of pending transcripts'
        'watch:Run the sync daemon'
        'backfill:Generate narrative summaries in batches'
        'search:Semantic search over conversations'
        'recent:Show the latest conversation activity'
        'timeline:Show bucketed activity or work sessions'
        'status:Show ledger, store health, and batch jobs'
        'projects:List known projects'
        'reset:Drop collections and ledger entries'
        'completion:Generate shell completion script'
    )

    _arguments -C \
        '(- *)--version[Show version and exit]' \
        '--config[Path to the config file]:config file:_files -g "*.yaml"' \
        '1: :->command' \
        '*:: :->args'

    case $state in
        command)
            _describe 'command' commands
            ;;
        args)
            case $words[1] in
                init)
                    _arguments \
                        '--force[Overwrite an existing config]' \
                        '-y[Accept all defaults without prompting]' \
                        '--qdrant-url[Qdrant base URL]:url:' \
                        '--logs-dir[Transcript directory]:directory:_files -/' \
                        '--provider[Embedding provider]:provider:(qwen voyage)'
                    ;;
                import)
                    _arguments \
                        '--project[Only this project]:project:' \
                        '--all[Re-import every transcript, ignoring the ledger]' \
                        '--limit[Import at most N files]:limit:' \
                        '--metrics-addr[Prometheus metrics address]:address:' \
                        '--json[Output as JSON]'
                    ;;
                watch)
                    _arguments \
                        '--interval[Scan interval]:interval:' \
                        '--narratives[Also generate narrative summaries]' \
                        '--metrics-addr[Prometheus metrics address]:address:'
                    ;;
                backfill)
                    _arguments \
                        '--project[Only this project]:project:' \
                        '--batch-size[Conversations per batch]:size:' \
                        '--max-batches[Batches per run]:count:' \
                        '--delay[Cooldown between batches]:duration:' \
                        '--status[Show batch jobs and exit]' \
                        '--stop[Stop a running backfill]' \
                        '--json[Output as JSON]'
                    ;;
                search)
                    _arguments \
                        '--project[Project to search]:project:' \
                        '--limit[Maximum results]:limit:' \
                        '--min-score[Similarity cutoff]:score:' \
                        '--no-decay[Disable time-decay re-scoring]' \
                        '--since[Temporal filter]:phrase:' \
                        '--narratives[Search narrative summaries]' \
                        '--hybrid[Search narratives and chunks together]' \
                        '--json[Output as JSON]' \
                        '1:query:'
                    ;;
                recent)
                    _arguments \
                        '--project[Project to show]:project:' \
                        '--limit[Maximum results]:limit:' \
                        '--json[Output as JSON]'
                    ;;
                timeline)
                    _arguments \
                        '--project[Project to show]:project:' \
                        '--granularity[Bucket size]:granularity:(hour day week)' \
                        '--since[Temporal filter]:phrase:' \
                        '--sessions[Group into work sessions]' \
                        '--json[Output as JSON]'
                    ;;
                status|projects)
                    _arguments \
                        '--json[Output as JSON]'
                    ;;
                reset)
                    _arguments \
                        '--project[Only this project]:project:' \
                        '--yes[Skip confirmation prompt]'
                    ;;
                completion)
                    _arguments \
                        '1:shell:(bash zsh fish)'
                    ;;
            esac
            ;;
    esac
}

_reflect
`

// fishCompletionTemplate provides command and flag completion for fish
// shells.
const fishCompletionTemplate = `# Fish completion script for reflect
# Installation:
#   1. Load completions for current session:
#      reflect completion fish | source
#   2. Install permanently:
#      reflect completion fish > ~/.config/fish/completions/reflect.fish

# Commands
complete -c reflect -f -n "__fish_use_subcommand" -a "init" -d "Create the workspace and config file"
complete -c reflect -f -n "__fish_use_subcommand" -a "import" -d "One-shot import of pending transcripts"
complete -c reflect -f -n "__fish_use_subcommand" -a "watch" -d "Run the sync daemon"
complete -c reflect -f -n "__fish_use_subcommand" -a "backfill" -d "Generate narrative summaries in batches"
complete -c reflect -f -n "__fish_use_subcommand" -a "search" -d "Semantic search over conversations"
complete -c reflect -f -n "__fish_use_subcommand" -a "recent" -d "Show the latest conversation activity"
complete -c reflect -f -n "__fish_use_subcommand" -a "timeline" -d "Show bucketed activity or work sessions"
complete -c reflect -f -n "__fish_use_subcommand" -a "status" -d "Show ledger, store health, and batch jobs"
complete -c reflect -f -n "__fish_use_subcommand" -a "projects" -d "List known projects"
complete -c reflect -f -n "__fish_use_subcommand" -a "reset" -d "Drop collections and ledger entries (destructive!)"
complete -c reflect -f -n "__fish_use_subcommand" -a "completion" -d "Generate shell completion script"

# Global flags
complete -c reflect -l version -d "Show version and exit"
complete -c reflect -l config -d "Path to the config file" -r

# init command flags
complete -c reflect -n "__fish_seen_subcommand_from init" -l force -d "Overwrite an existing config"
complete -c reflect -n "__fish_seen_subcommand_from init" -s y -d "Accept all defaults without prompting"
complete -c reflect -n "__fish_seen_subcommand_from init" -l qdrant-url -d "Qdrant base URL" -r
complete -c reflect -n "__fish_seen_subcommand_from init" -l logs-dir -d "Transcript directory" -r
complete -c reflect -n "__fish_seen_subcommand_from init" -l provider -d "Embedding provider" -r -f -a "qwen voyage"

# import command flags
complete -c reflect -n "__fish_seen_subcommand_from import" -l project -d "Only this project" -r
complete -c reflect -n "__fish_seen_subcommand_from import" -l all -d "Re-import every transcript, ignoring the ledger"
complete -c reflect -n "__fish_seen_subcommand_from import" -l limit -d "Import at most N files" -r
complete -c reflect -n "__fish_seen_subcommand_from import" -l metrics-addr -d "Prometheus metrics address" -r
complete -c reflect -n "__fish_seen_subcommand_from import" -l json -d "Output as JSON"

# watch command flags
complete -c reflect -n "__fish_seen_subcommand_from watch" -l interval -d "Scan interval" -r
complete -c reflect -n "__fish_seen_subcommand_from watch" -l narratives -d "Also generate narrative summaries"
complete -c reflect -n "__fish_seen_subcommand_from watch" -l metrics-addr -d "Prometheus metrics address" -r

# backfill command flags
complete -c reflect -n "__fish_seen_subcommand_from backfill" -l project -d "Only this project" -r
complete -c reflect -n "__fish_seen_subcommand_from backfill" -l batch-size -d "Conversations per batch" -r
complete -c reflect -n "__fish_seen_subcommand_from backfill" -l max-batches -d "Batches per run" -r
complete -c reflect -n "__fish_seen_subcommand_from backfill" -l delay -d "Cooldown between batches" -r
complete -c reflect -n "__fish_seen_subcommand_from backfill" -l status -d "Show batch jobs and exit"
complete -c reflect -n "__fish_seen_subcommand_from backfill" -l stop -d "Stop a running backfill"
complete -c reflect -n "__fish_seen_subcommand_from backfill" -l json -d "Output as JSON"

# search command flags
complete -c reflect -n "__fish_seen_subcommand_from search" -l project -d "Project to search" -r
complete -c reflect -n "__fish_seen_subcommand_from search" -l limit -d "Maximum results" -r
complete -c reflect -n "__fish_seen_subcommand_from search" -l min-score -d "Similarity cutoff" -r
complete -c reflect -n "__fish_seen_subcommand_from search" -l no-decay -d "Disable time-decay re-scoring"
complete -c reflect -n "__fish_seen_subcommand_from search" -l since -d "Temporal filter" -r
complete -c reflect -n "__fish_seen_subcommand_from search" -l narratives -d "Search narrative summaries"
complete -c reflect -n "__fish_seen_subcommand_from search" -l hybrid -d "Search narratives and chunks together"
complete -c reflect -n "__fish_seen_subcommand_from search" -l json -d "Output as JSON"

# recent command flags
complete -c reflect -n "__fish_seen_subcommand_from recent" -l project -d "Project to show" -r
complete -c reflect -n "__fish_seen_subcommand_from recent" -l limit -d "Maximum results" -r
complete -c reflect -n "__fish_seen_subcommand_from recent" -l json -d "Output as JSON"

# timeline command flags
complete -c reflect -n "__fish_seen_subcommand_from timeline" -l project -d "Project to show" -r
complete -c reflect -n "__fish_seen_subcommand_from timeline" -l granularity -d "Bucket size" -r -f -a "hour day week"
complete -c reflect -n "__fish_seen_subcommand_from timeline" -l since -d "Temporal filter" -r
complete -c reflect -n "__fish_seen_subcommand_from timeline" -l sessions -d "Group into work sessions"
complete -c reflect -n "__fish_seen_subcommand_from timeline" -l json -d "Output as JSON"

# status / projects command flags
complete -c reflect -n "__fish_seen_subcommand_from status" -l json -d "Output as JSON"
complete -c reflect -n "__fish_seen_subcommand_from projects" -l json -d "Output as JSON"

# reset command flags
complete -c reflect -n "__fish_seen_subcommand_from reset" -l project -d "Only this project" -r
complete -c reflect -n "__fish_seen_subcommand_from reset" -l yes -d "Skip confirmation prompt"

# completion command arguments
complete -c reflect -n "__fish_seen_subcommand_from completion" -f -a "bash" -d "Generate bash completion script"
complete -c reflect -n "__fish_seen_subcommand_from completion" -f -a "zsh" -d "Generate zsh completion script"
complete -c reflect -n "__fish_seen_subcommand_from completion" -f -a "fish" -d "Generate fish completion script"
`

// runCompletion prints the completion script for the requested shell.
//
// Usage:
//
//	reflect completion [bash|zsh|fish]
//
// Examples:
//
//	source <(reflect completion bash)
//	reflect completion zsh > "${fpath[1]}/_reflect"
//	reflect completion fish | source
func runCompletion(args []string) {
	fs := flag.NewFlagSet("completion", flag.ExitOnError)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: reflect completion <shell>

Generates a shell completion script for bash, zsh, or fish.

Examples:
  # Load bash completions in the current shell
  source <(reflect completion bash)

  # Install zsh completions permanently
  reflect completion zsh > "${fpath[1]}/_reflect"

  # Install fish completions permanently
  reflect completion fish > ~/.config/fish/completions/reflect.fish

After installing, restart your shell or source your rc file.
`)
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() != 1 {
		errors.FatalError(errors.NewInputError(
			"Invalid arguments",
			"The completion command requires exactly one argument: the shell name",
			"Run 'reflect completion bash', 'reflect completion zsh', or 'reflect completion fish'",
		), false)
	}

	switch shell := fs.Arg(0); shell {
	case "bash":
		fmt.Print(bashCompletionTemplate)
	case "zsh":
		fmt.Print(zshCompletionTemplate)
	case "fish":
		fmt.Print(fishCompletionTemplate)
	default:
		errors.FatalError(errors.NewInputError(
			"Unsupported shell",
			fmt.Sprintf("Shell '%s' is not supported. Valid options: bash, zsh, fish", shell),
			"Run 'reflect completion bash', 'reflect completion zsh', or 'reflect completion fish'",
		), false)
	}
}
