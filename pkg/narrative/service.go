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
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/Leeaandrob/claude-code-self-reflect/internal/contract"
	"github.com/Leeaandrob/claude-code-self-reflect/pkg/ingest"
	"github.com/Leeaandrob/claude-code-self-reflect/pkg/llm"
	"github.com/Leeaandrob/claude-code-self-reflect/pkg/project"
)

const (
	// DefaultModel generates the narratives unless overridden.
	DefaultModel = "qwen-plus"

	completionWindow = "24h"
	truncationMarker = "\n\n[TRUNCATED]"
)

// Service assembles, submits, and harvests narrative batch jobs
// against the DashScope Batch API.
type Service struct {
	api    llm.BatchAPI
	state  *ingest.State
	jobs   *JobStore
	logger *slog.Logger

	// filesDir holds the JSONL request files uploaded per batch.
	filesDir string
	model    string
}

// NewService wires a batch service. tmpRoot is the working directory
// for batch artifacts; batch_files/ and batch_state/ are created under
// it. An empty model selects DefaultModel.
func NewService(api llm.BatchAPI, state *ingest.State, tmpRoot, model string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if model == "" {
		model = DefaultModel
	}
	return &Service{
		api:      api,
		state:    state,
		jobs:     NewJobStore(filepath.Join(tmpRoot, "batch_state")),
		logger:   logger,
		filesDir: filepath.Join(tmpRoot, "batch_files"),
		model:    model,
	}
}

// Jobs exposes the persisted job ledger.
func (s *Service) Jobs() *JobStore {
	return s.jobs
}

// Candidate is a conversation eligible for narrative generation.
type Candidate struct {
	ID         string
	Path       string
	Project    string
	Chunks     int
	ImportedAt string
}

// SelectCandidates returns conversations that completed import, still
// exist on disk, produced at least one chunk, and have no narrative
// yet. A non-empty projectFilter keeps only matching projects. Results
// are newest first by import time unless oldestFirst flips the order.
func (s *Service) SelectCandidates(projectFilter string, limit int, oldestFirst bool) []Candidate {
	var out []Candidate
	for path, rec := range s.state.Snapshot() {
		if rec.Status != ingest.StatusCompleted || rec.HasNarrative || rec.Chunks == 0 {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}
		proj := project.Normalize(filepath.Base(filepath.Dir(path)))
		if projectFilter != "" && !project.MatchesProject(proj, projectFilter) {
			continue
		}
		out = append(out, Candidate{
			ID:         ingest.ConversationID(path),
			Path:       path,
			Project:    proj,
			Chunks:     rec.Chunks,
			ImportedAt: rec.ImportedAt,
		})
	}

	sort.Slice(out, func(i, k int) bool {
		if oldestFirst {
			return out[i].ImportedAt < out[k].ImportedAt
		}
		return out[i].ImportedAt > out[k].ImportedAt
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Request line layout for the batch input file. Field order matters to
// the remote validator, so the structs mirror it exactly.
type batchRequest struct {
	CustomID string           `json:"custom_id"`
	Method   string           `json:"method"`
	URL      string           `json:"url"`
	Body     batchRequestBody `json:"body"`
}

type batchRequestBody struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// conversationText flattens a transcript into role-labelled turns,
// capped at the per-conversation char limit.
func conversationText(path string) (string, error) {
	var turns []string
	_, err := ingest.EachLine(path, func(line *ingest.Line) error {
		if !line.IsConversational() {
			return nil
		}
		text := line.Message.Content.PlainText()
		if text == "" {
			return nil
		}
		turns = append(turns, fmt.Sprintf("[%s]: %s", line.Message.Role, text))
		return nil
	})
	if err != nil {
		return "", err
	}

	content := strings.Join(turns, "\n\n")
	if len(content) > contract.MaxConversationChars {
		content = content[:contract.MaxConversationChars] + truncationMarker
	}
	return content, nil
}

// PrepareBatchFile writes the JSONL request file for a batch and
// returns its path plus the conversation IDs that made it in.
// Candidates whose transcripts are unreadable or empty are skipped.
func (s *Service) PrepareBatchFile(candidates []Candidate) (string, []string, error) {
	if err := os.MkdirAll(s.filesDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("create batch files dir: %w", err)
	}
	name := fmt.Sprintf("batch_%d_%s.jsonl", time.Now().Unix(), uuid.NewString()[:8])
	path := filepath.Join(s.filesDir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", nil, fmt.Errorf("create batch file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)

	var included []string
	for _, c := range candidates {
		content, err := conversationText(c.Path)
		if err != nil || content == "" {
			s.logger.Warn("narrative.candidate.skipped",
				"conversation", c.ID, "error", err)
			continue
		}
		req := batchRequest{
			CustomID: c.ID,
			Method:   "POST",
			URL:      "/v1/chat/completions",
			Body: batchRequestBody{
				Model: s.model,
				Messages: []chatMessage{
					{Role: "system", Content: systemPrompt},
					{Role: "user", Content: userPrompt(content)},
				},
				Temperature:    0.3,
				ResponseFormat: responseFormat{Type: "json_object"},
			},
		}
		if err := enc.Encode(&req); err != nil {
			return "", nil, fmt.Errorf("encode batch request: %w", err)
		}
		included = append(included, c.ID)
	}
	if err := w.Flush(); err != nil {
		return "", nil, fmt.Errorf("flush batch file: %w", err)
	}
	if len(included) == 0 {
		os.Remove(path)
		return "", nil, fmt.Errorf("no usable conversations among %d candidates", len(candidates))
	}

	s.logger.Info("narrative.batch.prepared",
		"file", path, "requests", len(included))
	return path, included, nil
}

// SubmitBatch uploads the request file and creates the remote batch,
// persisting the resulting job state.
func (s *Service) SubmitBatch(ctx context.Context, candidates []Candidate, projectFilter string) (*Job, error) {
	path, included, err := s.PrepareBatchFile(candidates)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch file: %w", err)
	}
	file, err := s.api.CreateFileBytes(ctx, openai.FileBytesRequest{
		Name:    filepath.Base(path),
		Bytes:   data,
		Purpose: openai.PurposeBatch,
	})
	if err != nil {
		return nil, fmt.Errorf("upload batch file: %w", err)
	}

	batch, err := s.api.CreateBatch(ctx, openai.CreateBatchRequest{
		InputFileID:      file.ID,
		Endpoint:         openai.BatchEndpointChatCompletions,
		CompletionWindow: completionWindow,
		Metadata: map[string]any{
			"model":      s.model,
			"created_by": "claude-self-reflect",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	job := &Job{
		ID:                 batch.ID,
		Status:             JobPending,
		Model:              s.model,
		Project:            projectFilter,
		Conversations:      included,
		ConversationsCount: len(included),
		InputFileID:        file.ID,
		LocalBatchFile:     path,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.jobs.Save(job); err != nil {
		return nil, err
	}

	s.logger.Info("narrative.batch.submitted",
		"batch_id", batch.ID, "conversations", len(included))
	return job, nil
}

// localStatus translates the remote batch lifecycle into the local
// job statuses.
func localStatus(remote string) string {
	switch remote {
	case "validating":
		return JobPending
	case "in_progress", "finalizing":
		return JobInProgress
	case "completed":
		return JobCompleted
	case "failed", "expired", "cancelled":
		return JobFailed
	default:
		return remote
	}
}

// Poll refreshes a job from the remote batch status and persists it.
func (s *Service) Poll(ctx context.Context, batchID string) (*Job, error) {
	job, err := s.jobs.Load(batchID)
	if err != nil {
		return nil, err
	}

	batch, err := s.api.RetrieveBatch(ctx, batchID)
	if err != nil {
		job.Error = err.Error()
		job.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
		if saveErr := s.jobs.Save(job); saveErr != nil {
			s.logger.Warn("narrative.jobstate.save_failed",
				"batch_id", batchID, "error", saveErr)
		}
		return job, fmt.Errorf("poll batch %s: %w", batchID, err)
	}

	job.Status = localStatus(batch.Status)
	job.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	if total := batch.RequestCounts.Total; total > 0 {
		job.Progress = batch.RequestCounts.Completed * 100 / total
		job.CompletedCount = batch.RequestCounts.Completed
		job.FailedCount = batch.RequestCounts.Failed
	}
	if job.Status == JobCompleted {
		job.CompletedAt = job.UpdatedAt
		if batch.OutputFileID != nil {
			job.OutputFileID = *batch.OutputFileID
		}
		if batch.ErrorFileID != nil {
			job.ErrorFileID = *batch.ErrorFileID
		}
	}

	if err := s.jobs.Save(job); err != nil {
		return nil, err
	}
	return job, nil
}

// Cancel aborts the remote batch and marks the local job failed.
func (s *Service) Cancel(ctx context.Context, batchID string) (*Job, error) {
	job, err := s.jobs.Load(batchID)
	if err != nil {
		return nil, err
	}
	if _, err := s.api.CancelBatch(ctx, batchID); err != nil {
		return nil, fmt.Errorf("cancel batch %s: %w", batchID, err)
	}
	job.Status = JobFailed
	job.Error = "cancelled"
	job.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	if err := s.jobs.Save(job); err != nil {
		return nil, err
	}
	s.logger.Info("narrative.batch.cancelled", "batch_id", batchID)
	return job, nil
}

// Result is the outcome for one conversation in a finished batch.
type Result struct {
	ConversationID string
	Narrative      *Narrative
	Err            string
}

type resultLine struct {
	CustomID string `json:"custom_id"`
	Response struct {
		StatusCode int `json:"status_code"`
		Body       struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		} `json:"body"`
	} `json:"response"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// FetchResults downloads and parses the output file of a completed
// batch. Lines that fail to parse become error results rather than
// aborting the whole harvest.
func (s *Service) FetchResults(ctx context.Context, batchID string) ([]Result, error) {
	job, err := s.jobs.Load(batchID)
	if err != nil {
		return nil, err
	}
	if job.Status != JobCompleted {
		return nil, fmt.Errorf("batch %s not completed: %s", batchID, job.Status)
	}
	if job.OutputFileID == "" {
		return nil, fmt.Errorf("batch %s has no output file", batchID)
	}

	raw, err := s.api.GetFileContent(ctx, job.OutputFileID)
	if err != nil {
		return nil, fmt.Errorf("download batch output: %w", err)
	}
	defer raw.Close()

	var results []Result
	sc := bufio.NewScanner(raw)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var rl resultLine
		if err := json.Unmarshal([]byte(line), &rl); err != nil {
			s.logger.Warn("narrative.result.unparseable", "error", err)
			continue
		}

		res := Result{ConversationID: rl.CustomID}
		switch {
		case rl.Error != nil:
			res.Err = rl.Error.Message
		case rl.Response.StatusCode != 200:
			res.Err = fmt.Sprintf("status %d", rl.Response.StatusCode)
		case len(rl.Response.Body.Choices) == 0:
			res.Err = "empty response"
		default:
			n, err := Parse(rl.Response.Body.Choices[0].Message.Content)
			if err != nil {
				res.Err = err.Error()
			} else {
				res.Narrative = n
			}
		}
		results = append(results, res)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan batch output: %w", err)
	}
	return results, nil
}

// ProcessResults harvests a completed batch: each parsed narrative is
// embedded and upserted through the store, and the source conversation
// is marked has_narrative in the import state. Per-conversation
// failures are logged and counted, not fatal.
func (s *Service) ProcessResults(ctx context.Context, batchID string, store *Store) (stored, failed int, err error) {
	results, err := s.FetchResults(ctx, batchID)
	if err != nil {
		return 0, 0, err
	}

	// Conversation ID back to path and project.
	byConv := make(map[string]Candidate)
	for path, rec := range s.state.Snapshot() {
		if rec.Status != ingest.StatusCompleted {
			continue
		}
		byConv[ingest.ConversationID(path)] = Candidate{
			ID:      ingest.ConversationID(path),
			Path:    path,
			Project: project.Normalize(filepath.Base(filepath.Dir(path))),
		}
	}

	for _, res := range results {
		if res.Narrative == nil {
			s.logger.Warn("narrative.result.failed",
				"conversation", res.ConversationID, "error", res.Err)
			failed++
			continue
		}
		cand, ok := byConv[res.ConversationID]
		if !ok {
			s.logger.Warn("narrative.result.orphaned",
				"conversation", res.ConversationID)
			failed++
			continue
		}

		if _, err := store.Upsert(ctx, res.ConversationID, cand.Project, res.Narrative, s.model); err != nil {
			s.logger.Error("narrative.store.failed",
				"conversation", res.ConversationID, "error", err)
			failed++
			continue
		}

		if rec, ok := s.state.Get(cand.Path); ok {
			rec.HasNarrative = true
			rec.NarrativeAt = time.Now().UTC().Format(time.RFC3339)
			s.state.UpdateFile(cand.Path, rec)
		}
		stored++
	}

	if err := s.state.Save(); err != nil {
		s.logger.Warn("narrative.state.save_failed", "error", err)
	}
	recordNarrativesStored(stored, failed)

	s.logger.Info("narrative.batch.processed",
		"batch_id", batchID, "stored", stored, "failed", failed)
	return stored, failed, nil
}
