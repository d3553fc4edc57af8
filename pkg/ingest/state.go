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

package ingest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Import statuses recorded per file.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// FileRecord is the import state of one transcript.
type FileRecord struct {
	// LastModified is the transcript mtime at import time, unix seconds
	// with fraction. A differing mtime triggers re-import.
	LastModified float64 `json:"last_modified"`

	// Chunks is how many chunks the import produced.
	Chunks int `json:"chunks"`

	// ImportedAt is RFC 3339.
	ImportedAt string `json:"imported_at"`

	// Status is completed or failed.
	Status string `json:"status"`

	// Suffix is the embedding provider tag the chunks were stored
	// under, e.g. "qwen_2048d".
	Suffix string `json:"suffix,omitempty"`

	// HasNarrative marks conversations that already have a generated
	// narrative; NarrativeAt records when.
	HasNarrative bool   `json:"has_narrative,omitempty"`
	NarrativeAt  string `json:"narrative_at,omitempty"`
}

// State is the on-disk import ledger, keyed by absolute transcript
// path. Safe for concurrent use.
type State struct {
	mu    sync.Mutex
	path  string
	files map[string]FileRecord
}

// stateFile is the serialized shape.
type stateFile struct {
	Files map[string]FileRecord `json:"files"`
}

// LoadState reads the state file. A missing file yields an empty
// state bound to the same path.
func LoadState(path string) (*State, error) {
	s := &State{path: path, files: make(map[string]FileRecord)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var sf stateFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse state file %s: %w", path, err)
	}
	if sf.Files != nil {
		s.files = sf.Files
	}
	return s, nil
}

// Save writes the state atomically (tmp + rename), creating the parent
// directory when needed.
func (s *State) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *State) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	data, err := json.MarshalIndent(stateFile{Files: s.files}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state temp: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}

// Get returns the record for a transcript path.
func (s *State) Get(path string) (FileRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.files[path]
	return rec, ok
}

// UpdateFile sets the record for a transcript path. The caller saves
// separately.
func (s *State) UpdateFile(path string, rec FileRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = rec
}

// ShouldImport reports whether a transcript needs importing: unknown
// path, a previous attempt that did not complete, or mtime differing
// from the recorded one. Failed files stay candidates until an import
// succeeds.
func (s *State) ShouldImport(path string, mtime float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.files[path]
	if !ok {
		return true
	}
	return rec.Status != StatusCompleted || rec.LastModified != mtime
}

// RemoveOrphans drops records whose transcript no longer exists and
// saves when anything changed. A save failure after cleanup is logged,
// not fatal: the orphans will simply be re-detected next run.
func (s *State) RemoveOrphans(exists func(string) bool, logger *slog.Logger) (checked, removed int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for path := range s.files {
		checked++
		if !exists(path) {
			delete(s.files, path)
			removed++
		}
	}
	if removed > 0 {
		if err := s.saveLocked(); err != nil {
			if logger == nil {
				logger = slog.Default()
			}
			logger.Warn("ingest.state.save_failed", "error", err, "removed", removed)
		}
	}
	return checked, removed
}

// Snapshot returns a copy of all records.
func (s *State) Snapshot() map[string]FileRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]FileRecord, len(s.files))
	for k, v := range s.files {
		out[k] = v
	}
	return out
}

// Stats summarizes the ledger.
type Stats struct {
	Total       int
	Completed   int
	Failed      int
	TotalChunks int
	Narratives  int
}

// Stats computes summary counts over all records.
func (s *State) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st Stats
	for _, rec := range s.files {
		st.Total++
		switch rec.Status {
		case StatusCompleted:
			st.Completed++
		case StatusFailed:
			st.Failed++
		}
		st.TotalChunks += rec.Chunks
		if rec.HasNarrative {
			st.Narratives++
		}
	}
	return st
}
