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
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the persisted CLI configuration. Environment variables win
// over file values on load.
type Config struct {
	// QdrantURL is the vector store base URL.
	QdrantURL string `yaml:"qdrant_url"`

	// LogsDir is the transcript root, one subdirectory per project.
	LogsDir string `yaml:"logs_dir"`

	// StateFile is the import ledger path.
	StateFile string `yaml:"state_file"`

	Embedding struct {
		// Provider selects the embedding backend: qwen or voyage.
		// Empty defers to key detection (EMBEDDING_PROVIDER et al).
		Provider string `yaml:"provider,omitempty"`
	} `yaml:"embedding"`

	Narrative struct {
		// Model is the chat model for narrative batches.
		Model string `yaml:"model,omitempty"`

		// BatchSize is conversations per batch.
		BatchSize int `yaml:"batch_size,omitempty"`

		// MaxBatches bounds one backfill run.
		MaxBatches int `yaml:"max_batches,omitempty"`

		// CooldownSeconds is the pause between batches.
		CooldownSeconds int `yaml:"cooldown_seconds,omitempty"`

		// CheckIntervalMinutes is how often the watch daemon looks for
		// narrative candidates.
		CheckIntervalMinutes int `yaml:"check_interval_minutes,omitempty"`

		// PollIntervalSeconds is how often a submitted batch is polled.
		PollIntervalSeconds int `yaml:"poll_interval_seconds,omitempty"`

		// MinBatch ends a run early when fewer candidates remain.
		MinBatch int `yaml:"min_batch,omitempty"`

		// MaxConcurrent is how many batches fly at once.
		MaxConcurrent int `yaml:"max_concurrent,omitempty"`

		// NewestFirst orders candidates by import recency. Unset means
		// newest first.
		NewestFirst *bool `yaml:"newest_first,omitempty"`
	} `yaml:"narrative"`
}

// DefaultConfigPath returns ~/.claude-self-reflect/config/reflect.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".claude-self-reflect", "config", "reflect.yaml"), nil
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	cfg := &Config{QdrantURL: "http://localhost:6333"}
	if home, err := os.UserHomeDir(); err == nil {
		cfg.LogsDir = filepath.Join(home, ".claude", "projects")
		cfg.StateFile = filepath.Join(home, ".claude-self-reflect", "config", "imported-files.json")
	}
	return cfg
}

// LoadConfig reads the YAML config and overlays the environment. A
// missing file yields the defaults; a malformed file is an error.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Fall through to the env overlay.
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overlays environment variables onto the config.
func (c *Config) applyEnv() {
	if v := os.Getenv("QDRANT_URL"); v != "" {
		c.QdrantURL = v
	}
	if v := os.Getenv("LOGS_DIR"); v != "" {
		c.LogsDir = v
	}
	if v := os.Getenv("STATE_FILE"); v != "" {
		c.StateFile = v
	}
	if v := os.Getenv("EMBEDDING_PROVIDER"); v != "" {
		c.Embedding.Provider = v
	}
	if v := os.Getenv("NARRATIVE_MODEL"); v != "" {
		c.Narrative.Model = v
	}
	if v := envSeconds("NARRATIVE_COOLDOWN"); v > 0 {
		c.Narrative.CooldownSeconds = v
	}
	if v := envPositiveInt("NARRATIVE_BATCH_SIZE"); v > 0 {
		c.Narrative.BatchSize = v
	}
	if v := envPositiveInt("NARRATIVE_CHECK_INTERVAL"); v > 0 {
		c.Narrative.CheckIntervalMinutes = v
	}
	if v := envSeconds("NARRATIVE_POLL_INTERVAL"); v > 0 {
		c.Narrative.PollIntervalSeconds = v
	}
	if v := envPositiveInt("NARRATIVE_MIN_BATCH"); v > 0 {
		c.Narrative.MinBatch = v
	}
	if v := envPositiveInt("NARRATIVE_MAX_CONCURRENT"); v > 0 {
		c.Narrative.MaxConcurrent = v
	}
	if v := os.Getenv("NARRATIVE_NEWEST_FIRST"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Narrative.NewestFirst = &b
		}
	}
}

// SaveConfig writes the config as YAML, creating the parent directory.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Cooldown returns the inter-batch delay as a duration.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Narrative.CooldownSeconds) * time.Second
}

// CheckInterval returns the narrative check period for the watch
// daemon. Zero picks the 60-minute default.
func (c *Config) CheckInterval() time.Duration {
	if c.Narrative.CheckIntervalMinutes <= 0 {
		return 60 * time.Minute
	}
	return time.Duration(c.Narrative.CheckIntervalMinutes) * time.Minute
}

// PollInterval returns the batch poll period. Zero when unset, so the
// orchestrator default applies.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Narrative.PollIntervalSeconds) * time.Second
}

// OldestFirst reports whether candidate order was flipped to oldest
// import first.
func (c *Config) OldestFirst() bool {
	return c.Narrative.NewestFirst != nil && !*c.Narrative.NewestFirst
}

func envPositiveInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

// envSeconds reads a duration env var given either as seconds ("90")
// or a Go duration ("90s", "2m").
func envSeconds(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return n
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return int(d / time.Second)
	}
	return 0
}
