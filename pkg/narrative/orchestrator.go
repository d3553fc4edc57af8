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
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// ErrAlreadyRunning is returned by Start while a backfill run is in
// progress, in this process or another one holding the lock file.
var ErrAlreadyRunning = errors.New("narrative backfill already running")

// RunState is the orchestrator lifecycle.
type RunState string

const (
	StateIdle     RunState = "idle"
	StateRunning  RunState = "running"
	StateStopping RunState = "stopping"
)

// Config bounds one backfill run. Zero values select defaults;
// out-of-range values are clamped.
type Config struct {
	// Project restricts candidates to one project. Empty means all.
	Project string

	// BatchSize is conversations per remote batch, clamped to [5,100].
	BatchSize int

	// MaxBatches bounds the run, clamped to [1,50].
	MaxBatches int

	// DelayBetweenBatches is the cooldown after each non-final batch,
	// clamped to [10s,600s].
	DelayBetweenBatches time.Duration

	// PollInterval is how often a submitted batch is polled.
	PollInterval time.Duration

	// PollTimeout declares a batch failed locally when it never
	// reaches a terminal status.
	PollTimeout time.Duration

	// MinBatch ends the run when fewer candidates remain, clamped to
	// [1, BatchSize]. The default of 1 drains everything.
	MinBatch int

	// MaxConcurrent is how many batches fly at once, clamped to
	// [1,10]. The default of 1 keeps submissions serial.
	MaxConcurrent int

	// OldestFirst flips candidate order to oldest import first.
	// Default is newest first, so fresh conversations get their
	// narratives before the backlog.
	OldestFirst bool
}

func clampInt(v, lo, hi, def int) int {
	if v == 0 {
		v = def
	}
	return min(max(v, lo), hi)
}

func (c Config) withDefaults() Config {
	c.BatchSize = clampInt(c.BatchSize, 5, 100, 50)
	c.MaxBatches = clampInt(c.MaxBatches, 1, 50, 10)
	if c.DelayBetweenBatches == 0 {
		c.DelayBetweenBatches = 60 * time.Second
	}
	c.DelayBetweenBatches = min(max(c.DelayBetweenBatches, 10*time.Second), 600*time.Second)
	if c.PollInterval <= 0 {
		c.PollInterval = 30 * time.Second
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = 24 * time.Hour
	}
	c.MinBatch = clampInt(c.MinBatch, 1, c.BatchSize, 1)
	c.MaxConcurrent = clampInt(c.MaxConcurrent, 1, 10, 1)
	return c
}

// Status is a snapshot of the run counters.
type Status struct {
	State                  RunState `json:"state"`
	BatchesSubmitted       int      `json:"batches_submitted"`
	BatchesCompleted       int      `json:"batches_completed"`
	BatchesFailed          int      `json:"batches_failed"`
	ConversationsProcessed int      `json:"conversations_processed"`
	NarrativesStored       int      `json:"narratives_stored"`
	LastError              string   `json:"last_error,omitempty"`
	StartedAt              string   `json:"started_at,omitempty"`
	CurrentBatchID         string   `json:"current_batch_id,omitempty"`
}

// Orchestrator runs the narrative backfill as a singleton: batches go
// out in waves of at most MaxConcurrent, are polled to completion,
// harvested, and spaced by a cooldown.
type Orchestrator struct {
	svc      *Service
	store    *Store
	logger   *slog.Logger
	lockPath string

	mu     sync.Mutex
	state  RunState
	status Status
	stopCh chan struct{}
	doneCh chan struct{}
	lock   *runLock
}

// NewOrchestrator builds an idle orchestrator. lockPath is the
// singleton lock file, typically under the same root as the batch
// state.
func NewOrchestrator(svc *Service, store *Store, lockPath string, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Orchestrator{
		svc:      svc,
		store:    store,
		logger:   logger,
		lockPath: lockPath,
		state:    StateIdle,
	}
}

// Status returns the current run counters.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := o.status
	st.State = o.state
	return st
}

// Stop requests a cooperative stop. The current batch finishes its
// poll loop; no further batches are submitted.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateRunning {
		return
	}
	o.state = StateStopping
	close(o.stopCh)
	o.logger.Info("narrative.backfill.stop_requested")
}

// Wait blocks until the current run finishes. Returns immediately when
// idle.
func (o *Orchestrator) Wait() {
	o.mu.Lock()
	done := o.doneCh
	o.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Start launches a backfill run in the background. It fails with
// ErrAlreadyRunning when a run is active here or in another process.
func (o *Orchestrator) Start(ctx context.Context, cfg Config) error {
	cfg = cfg.withDefaults()

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateIdle {
		return ErrAlreadyRunning
	}

	lock, err := acquireRunLock(o.lockPath)
	if err != nil {
		return err
	}

	o.lock = lock
	o.state = StateRunning
	o.stopCh = make(chan struct{})
	o.doneCh = make(chan struct{})
	o.status = Status{StartedAt: time.Now().UTC().Format(time.RFC3339)}

	o.logger.Info("narrative.backfill.started",
		"batch_size", cfg.BatchSize, "max_batches", cfg.MaxBatches,
		"project", cfg.Project)

	go o.run(ctx, cfg)
	return nil
}

func (o *Orchestrator) stopping() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state == StateStopping
}

func (o *Orchestrator) run(ctx context.Context, cfg Config) {
	defer func() {
		o.mu.Lock()
		o.lock.release()
		o.lock = nil
		o.state = StateIdle
		o.status.CurrentBatchID = ""
		close(o.doneCh)
		o.mu.Unlock()
		o.logger.Info("narrative.backfill.finished")
	}()

	for submitted := 0; submitted < cfg.MaxBatches; {
		if o.stopping() || ctx.Err() != nil {
			return
		}

		width := min(cfg.MaxConcurrent, cfg.MaxBatches-submitted)
		candidates := o.svc.SelectCandidates(cfg.Project, cfg.BatchSize*width, cfg.OldestFirst)
		if len(candidates) < cfg.MinBatch {
			o.logger.Info("narrative.backfill.drained",
				"batches", submitted, "remaining", len(candidates))
			return
		}

		// One wave: batch-size slices of the candidates, in flight
		// together.
		var wg sync.WaitGroup
		for start := 0; start < len(candidates); start += cfg.BatchSize {
			end := min(start+cfg.BatchSize, len(candidates))
			batch := candidates[start:end]
			wg.Add(1)
			submitted++
			go func() {
				defer wg.Done()
				o.runBatch(ctx, cfg, batch)
			}()
		}
		wg.Wait()

		// Cooldown before the next wave, unless this was the last.
		if submitted < cfg.MaxBatches && !o.stopping() {
			select {
			case <-ctx.Done():
				return
			case <-o.stopCh:
				return
			case <-time.After(cfg.DelayBetweenBatches):
			}
		}
	}
}

// runBatch submits one batch and drives it to a terminal state. Errors
// mark the batch failed and are kept in last_error; the run continues.
func (o *Orchestrator) runBatch(ctx context.Context, cfg Config, candidates []Candidate) {
	start := time.Now()

	job, err := o.svc.SubmitBatch(ctx, candidates, cfg.Project)
	if err != nil {
		o.recordFailure(fmt.Errorf("submit: %w", err))
		recordBatchTerminal(true, time.Since(start).Seconds())
		return
	}

	o.mu.Lock()
	o.status.BatchesSubmitted++
	o.status.CurrentBatchID = job.ID
	o.mu.Unlock()
	recordBatchSubmitted()

	job, err = o.waitForBatch(ctx, job.ID, cfg)
	if err != nil {
		o.recordFailure(err)
		recordBatchTerminal(true, time.Since(start).Seconds())
		return
	}

	switch job.Status {
	case JobCompleted:
		stored, failed, err := o.svc.ProcessResults(ctx, job.ID, o.store)
		if err != nil {
			o.recordFailure(fmt.Errorf("process %s: %w", job.ID, err))
			recordBatchTerminal(true, time.Since(start).Seconds())
			return
		}
		o.mu.Lock()
		o.status.BatchesCompleted++
		o.status.ConversationsProcessed += stored + failed
		o.status.NarrativesStored += stored
		o.mu.Unlock()
		recordBatchTerminal(false, time.Since(start).Seconds())
	case JobFailed:
		o.recordFailure(fmt.Errorf("batch %s failed: %s", job.ID, job.Error))
		recordBatchTerminal(true, time.Since(start).Seconds())
	default:
		// Stop requested mid-poll; the job stays pending remotely and
		// can be harvested by a later run.
		o.logger.Info("narrative.backfill.batch_abandoned",
			"batch_id", job.ID, "status", job.Status)
	}
}

// waitForBatch polls until the job is terminal, the poll window
// closes, or a stop is requested.
func (o *Orchestrator) waitForBatch(ctx context.Context, batchID string, cfg Config) (*Job, error) {
	deadline := time.Now().Add(cfg.PollTimeout)
	for {
		job, err := o.svc.Poll(ctx, batchID)
		if err != nil {
			// Transient poll failures retry on the next tick.
			o.logger.Warn("narrative.backfill.poll_failed",
				"batch_id", batchID, "error", err)
		} else if job.Terminal() {
			return job, nil
		}

		if time.Now().After(deadline) {
			if job == nil {
				job = &Job{ID: batchID}
			}
			job.Status = JobFailed
			job.Error = "poll timeout"
			if saveErr := o.svc.Jobs().Save(job); saveErr != nil {
				o.logger.Warn("narrative.jobstate.save_failed",
					"batch_id", batchID, "error", saveErr)
			}
			return job, fmt.Errorf("batch %s timed out after %s", batchID, cfg.PollTimeout)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-o.stopCh:
			if job == nil {
				job = &Job{ID: batchID, Status: JobInProgress}
			}
			return job, nil
		case <-time.After(cfg.PollInterval):
		}
	}
}

func (o *Orchestrator) recordFailure(err error) {
	o.mu.Lock()
	o.status.BatchesFailed++
	o.status.LastError = err.Error()
	o.mu.Unlock()
	o.logger.Error("narrative.backfill.batch_failed", "error", err)
}
