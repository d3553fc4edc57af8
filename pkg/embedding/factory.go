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

package embedding

import (
	"log/slog"
	"os"

	"github.com/Leeaandrob/claude-code-self-reflect/internal/errors"
	"github.com/Leeaandrob/claude-code-self-reflect/pkg/llm"
)

// Provider names accepted by EMBEDDING_PROVIDER.
const (
	ProviderQwen   = "qwen"
	ProviderVoyage = "voyage"
)

// NewFromEnv selects and builds an embedding provider from the
// environment.
//
// An explicit EMBEDDING_PROVIDER (qwen or voyage) wins; an unknown
// value is a config error even when keys for another provider are set.
// Without an explicit selection the first configured key decides, qwen
// (DASHSCOPE_API_KEY) before voyage (VOYAGE_KEY). No key at all is a
// config error: there is no local fallback.
func NewFromEnv(logger *slog.Logger) (Provider, error) {
	explicit := os.Getenv("EMBEDDING_PROVIDER")
	dashKey := os.Getenv("DASHSCOPE_API_KEY")
	voyageKey := os.Getenv("VOYAGE_KEY")

	switch explicit {
	case ProviderQwen:
		if dashKey == "" {
			return nil, errors.NewConfigError(
				"Qwen embedding provider selected but no API key is set",
				"EMBEDDING_PROVIDER=qwen requires DASHSCOPE_API_KEY",
				"Export DASHSCOPE_API_KEY or choose a different provider",
				nil,
			)
		}
		return NewQwen(llm.DashScopeClientFromEnv(), logger), nil

	case ProviderVoyage:
		if voyageKey == "" {
			return nil, errors.NewConfigError(
				"Voyage embedding provider selected but no API key is set",
				"EMBEDDING_PROVIDER=voyage requires VOYAGE_KEY",
				"Export VOYAGE_KEY or choose a different provider",
				nil,
			)
		}
		return NewVoyage(voyageKey, "", logger), nil

	case "":
		// Fall through to key-based selection.

	default:
		return nil, errors.NewConfigError(
			"Unknown embedding provider",
			"EMBEDDING_PROVIDER="+explicit+" is not supported",
			"Use EMBEDDING_PROVIDER=qwen or EMBEDDING_PROVIDER=voyage",
			nil,
		)
	}

	if dashKey != "" {
		return NewQwen(llm.DashScopeClientFromEnv(), logger), nil
	}
	if voyageKey != "" {
		return NewVoyage(voyageKey, "", logger), nil
	}
	return nil, errors.NewConfigError(
		"No embedding provider configured",
		"Neither DASHSCOPE_API_KEY nor VOYAGE_KEY is set",
		"Export one of the keys, or set EMBEDDING_PROVIDER explicitly",
		nil,
	)
}
