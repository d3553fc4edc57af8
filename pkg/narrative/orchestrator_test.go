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
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Leeaandrob/claude-code-self-reflect/pkg/ingest"
	"github.com/Leeaandrob/claude-code-self-reflect/pkg/project"
)

func testConfig() Config {
	return Config{
		MaxBatches:   1,
		PollInterval: 2 * time.Millisecond,
		PollTimeout:  5 * time.Second,
	}
}

func (f *narrativeFixture) orchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	lock := filepath.Join(f.tmpRoot, "backfill.lock")
	return NewOrchestrator(f.svc, f.store, lock, nil)
}

func TestConfigClamps(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.BatchSize != 50 || cfg.MaxBatches != 10 {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.DelayBetweenBatches != 60*time.Second {
		t.Fatalf("delay default = %s", cfg.DelayBetweenBatches)
	}
	if cfg.PollInterval != 30*time.Second || cfg.PollTimeout != 24*time.Hour {
		t.Fatalf("poll defaults = %+v", cfg)
	}

	cfg = Config{
		BatchSize:           1000,
		MaxBatches:          200,
		DelayBetweenBatches: time.Second,
	}.withDefaults()
	if cfg.BatchSize != 100 || cfg.MaxBatches != 50 {
		t.Fatalf("clamped = %+v", cfg)
	}
	if cfg.DelayBetweenBatches != 10*time.Second {
		t.Fatalf("clamped delay = %s", cfg.DelayBetweenBatches)
	}

	cfg = Config{BatchSize: 1, MaxBatches: 0}.withDefaults()
	if cfg.BatchSize != 5 {
		t.Fatalf("batch size floor = %d", cfg.BatchSize)
	}

	// MinBatch caps at the batch size, MaxConcurrent at 10; both
	// default to 1.
	cfg = Config{}.withDefaults()
	if cfg.MinBatch != 1 || cfg.MaxConcurrent != 1 {
		t.Fatalf("concurrency defaults = %+v", cfg)
	}
	cfg = Config{BatchSize: 10, MinBatch: 50, MaxConcurrent: 99}.withDefaults()
	if cfg.MinBatch != 10 || cfg.MaxConcurrent != 10 {
		t.Fatalf("clamped = min_batch=%d max_concurrent=%d", cfg.MinBatch, cfg.MaxConcurrent)
	}
}

func TestOrchestratorRunsToCompletion(t *testing.T) {
	f := newNarrativeFixture(t)
	f.addConversation(t, "-Users-dev-projects-my-app", "c1", "2025-06-01T10:00:00Z", ingest.FileRecord{})
	f.addConversation(t, "-Users-dev-projects-my-app", "c2", "2025-06-02T10:00:00Z", ingest.FileRecord{})

	o := f.orchestrator(t)
	if err := o.Start(context.Background(), testConfig()); err != nil {
		t.Fatal(err)
	}
	o.Wait()

	st := o.Status()
	if st.State != StateIdle {
		t.Fatalf("state = %q", st.State)
	}
	if st.BatchesSubmitted != 1 || st.BatchesCompleted != 1 || st.BatchesFailed != 0 {
		t.Fatalf("status = %+v", st)
	}
	if st.NarrativesStored != 2 || st.ConversationsProcessed != 2 {
		t.Fatalf("status = %+v", st)
	}

	// Both narratives exist and nothing is left to backfill.
	collection := project.NarrativeCollectionName("my-app")
	for _, conv := range []string{"c1", "c2"} {
		if _, ok := f.qdrant.Payload(collection, ingest.NarrativePointID(conv)); !ok {
			t.Fatalf("narrative for %s missing", conv)
		}
	}
	if left := f.svc.SelectCandidates("", 0, false); len(left) != 0 {
		t.Fatalf("candidates left = %+v", left)
	}
}

func TestOrchestratorIdleWhenNothingToDo(t *testing.T) {
	f := newNarrativeFixture(t)

	o := f.orchestrator(t)
	if err := o.Start(context.Background(), testConfig()); err != nil {
		t.Fatal(err)
	}
	o.Wait()

	st := o.Status()
	if st.State != StateIdle || st.BatchesSubmitted != 0 {
		t.Fatalf("status = %+v", st)
	}
}

func TestOrchestratorStartConflict(t *testing.T) {
	f := newNarrativeFixture(t)
	f.addConversation(t, "-Users-dev-projects-my-app", "c1", "2025-06-01T10:00:00Z", ingest.FileRecord{})

	o := f.orchestrator(t)
	cfg := testConfig()
	cfg.PollTimeout = 30 * time.Second

	// Hold the batch in_progress forever.
	holdBatches(f.api)

	if err := o.Start(context.Background(), cfg); err != nil {
		t.Fatal(err)
	}
	defer o.Wait()
	defer o.Stop()

	waitForState(t, o, StateRunning)
	if err := o.Start(context.Background(), cfg); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second start = %v", err)
	}
}

func TestOrchestratorStopAbandonsBatch(t *testing.T) {
	f := newNarrativeFixture(t)
	f.addConversation(t, "-Users-dev-projects-my-app", "c1", "2025-06-01T10:00:00Z", ingest.FileRecord{})

	holdBatches(f.api)

	o := f.orchestrator(t)
	cfg := testConfig()
	cfg.PollTimeout = 30 * time.Second
	if err := o.Start(context.Background(), cfg); err != nil {
		t.Fatal(err)
	}
	waitForState(t, o, StateRunning)

	o.Stop()
	o.Wait()

	st := o.Status()
	if st.State != StateIdle {
		t.Fatalf("state = %q", st.State)
	}
	// No harvest happened, so the conversation is still a candidate.
	if st.NarrativesStored != 0 {
		t.Fatalf("status = %+v", st)
	}
	if left := f.svc.SelectCandidates("", 0, false); len(left) != 1 {
		t.Fatalf("candidates = %+v", left)
	}

	// Idle again: a new run can start.
	if err := o.Start(context.Background(), cfg); err != nil {
		t.Fatal(err)
	}
	o.Stop()
	o.Wait()
}

func TestOrchestratorBatchFailureContinues(t *testing.T) {
	f := newNarrativeFixture(t)
	f.addConversation(t, "-Users-dev-projects-my-app", "c1", "2025-06-01T10:00:00Z", ingest.FileRecord{})

	f.api.mu.Lock()
	f.api.submitErr = errors.New("quota exhausted")
	f.api.mu.Unlock()

	o := f.orchestrator(t)
	cfg := testConfig()
	if err := o.Start(context.Background(), cfg); err != nil {
		t.Fatal(err)
	}
	o.Wait()

	st := o.Status()
	if st.BatchesFailed != 1 || st.BatchesCompleted != 0 {
		t.Fatalf("status = %+v", st)
	}
	if st.LastError == "" {
		t.Fatal("last_error not recorded")
	}
}

// holdBatches makes every submitted batch report in_progress forever.
func holdBatches(api *fakeBatchAPI) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.holdAll = true
}

func waitForState(t *testing.T, o *Orchestrator, want RunState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if o.Status().State == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("state never reached %q (now %q)", want, o.Status().State)
}
