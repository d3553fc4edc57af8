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

package narrative

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Local batch job statuses, mapped from the remote batch lifecycle.
const (
	JobPending    = "pending"
	JobInProgress = "in_progress"
	JobCompleted  = "completed"
	JobFailed     = "failed"
)

// Job is the locally persisted state of one remote batch.
type Job struct {
	ID                 string   `json:"id"`
	Status             string   `json:"status"`
	Model              string   `json:"model"`
	Project            string   `json:"project,omitempty"`
	Conversations      []string `json:"conversations"`
	ConversationsCount int      `json:"conversations_count"`
	Progress           int      `json:"progress"`
	CompletedCount     int      `json:"completed_count"`
	FailedCount        int      `json:"failed_count"`
	InputFileID        string   `json:"input_file_id"`
	OutputFileID       string   `json:"output_file_id,omitempty"`
	ErrorFileID        string   `json:"error_file_id,omitempty"`
	LocalBatchFile     string   `json:"local_batch_file"`
	CreatedAt          string   `json:"created_at"`
	UpdatedAt          string   `json:"updated_at"`
	CompletedAt        string   `json:"completed_at,omitempty"`
	Error              string   `json:"error,omitempty"`
}

// Terminal reports whether the job reached a final status.
func (j *Job) Terminal() bool {
	return j.Status == JobCompleted || j.Status == JobFailed
}

// JobStore persists batch job state as one JSON file per job under a
// batch_state directory.
type JobStore struct {
	dir string
}

func NewJobStore(dir string) *JobStore {
	return &JobStore{dir: dir}
}

func (s *JobStore) path(batchID string) string {
	return filepath.Join(s.dir, batchID+".json")
}

// Save writes the job atomically: temp file in the same directory,
// then rename.
func (s *JobStore) Save(job *Job) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create batch state dir: %w", err)
	}
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.ID, err)
	}
	tmp := s.path(job.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write job state: %w", err)
	}
	if err := os.Rename(tmp, s.path(job.ID)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace job state: %w", err)
	}
	return nil
}

// Load reads one job by batch ID.
func (s *JobStore) Load(batchID string) (*Job, error) {
	data, err := os.ReadFile(s.path(batchID))
	if err != nil {
		return nil, fmt.Errorf("read job state %s: %w", batchID, err)
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode job state %s: %w", batchID, err)
	}
	return &job, nil
}

// List returns up to limit jobs, newest first. Unreadable files are
// skipped.
func (s *JobStore) List(limit int) ([]*Job, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read batch state dir: %w", err)
	}

	var jobs []*Job
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		job, err := s.Load(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			continue
		}
		jobs = append(jobs, job)
	}

	sort.Slice(jobs, func(i, k int) bool {
		return jobs[i].CreatedAt > jobs[k].CreatedAt
	})
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}
