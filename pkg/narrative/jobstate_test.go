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
	"os"
	"path/filepath"
	"testing"
)

func TestJobStoreRoundTrip(t *testing.T) {
	store := NewJobStore(filepath.Join(t.TempDir(), "batch_state"))

	job := &Job{
		ID:                 "batch-1",
		Status:             JobPending,
		Model:              "qwen-plus",
		Conversations:      []string{"c1", "c2"},
		ConversationsCount: 2,
		InputFileID:        "file-1",
		CreatedAt:          "2025-06-01T10:00:00Z",
		UpdatedAt:          "2025-06-01T10:00:00Z",
	}
	if err := store.Save(job); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.Load("batch-1")
	if err != nil {
		t.Fatal(err)
	}
	if loaded.ID != job.ID || loaded.Status != job.Status || loaded.ConversationsCount != 2 {
		t.Fatalf("loaded = %+v", loaded)
	}
}

func TestJobStoreListNewestFirst(t *testing.T) {
	store := NewJobStore(filepath.Join(t.TempDir(), "batch_state"))

	for _, j := range []*Job{
		{ID: "old", CreatedAt: "2025-06-01T10:00:00Z"},
		{ID: "new", CreatedAt: "2025-06-03T10:00:00Z"},
		{ID: "mid", CreatedAt: "2025-06-02T10:00:00Z"},
	} {
		if err := store.Save(j); err != nil {
			t.Fatal(err)
		}
	}

	jobs, err := store.List(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 3 {
		t.Fatalf("len = %d", len(jobs))
	}
	if jobs[0].ID != "new" || jobs[1].ID != "mid" || jobs[2].ID != "old" {
		t.Fatalf("order = %s, %s, %s", jobs[0].ID, jobs[1].ID, jobs[2].ID)
	}

	limited, err := store.List(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 || limited[0].ID != "new" {
		t.Fatalf("limited = %+v", limited)
	}
}

func TestJobStoreListMissingDir(t *testing.T) {
	store := NewJobStore(filepath.Join(t.TempDir(), "never-created"))
	jobs, err := store.List(10)
	if err != nil {
		t.Fatal(err)
	}
	if jobs != nil {
		t.Fatalf("jobs = %+v", jobs)
	}
}

func TestJobStoreSkipsCorruptFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "batch_state")
	store := NewJobStore(dir)
	if err := store.Save(&Job{ID: "good", CreatedAt: "2025-06-01T10:00:00Z"}); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	jobs, err := store.List(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 1 || jobs[0].ID != "good" {
		t.Fatalf("jobs = %+v", jobs)
	}
}
