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

package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	cstesting "github.com/Leeaandrob/claude-code-self-reflect/internal/testing"
	"github.com/Leeaandrob/claude-code-self-reflect/pkg/embedding"
	"github.com/Leeaandrob/claude-code-self-reflect/pkg/ingest"
	"github.com/Leeaandrob/claude-code-self-reflect/pkg/storage"
)

// importFixture is a logs dir with one project subdirectory holding one
// transcript, plus everything an importer needs around it.
type importFixture struct {
	store    *storage.Client
	fake     *cstesting.FakeQdrant
	state    *ingest.State
	importer *ingest.Importer
	logsDir  string
}

func newImportFixture(t *testing.T, provider embedding.Provider) *importFixture {
	t.Helper()
	store, fake := cstesting.SetupTestStore(t)

	dir := t.TempDir()
	state, err := ingest.LoadState(filepath.Join(dir, "imported-files.json"))
	if err != nil {
		t.Fatal(err)
	}

	return &importFixture{
		store:    store,
		fake:     fake,
		state:    state,
		importer: ingest.NewImporter(store, provider, state, nil),
		logsDir:  filepath.Join(dir, "logs"),
	}
}

func (f *importFixture) writeTranscript(t *testing.T, projectDir, name string, lines []string) string {
	t.Helper()
	return cstesting.WriteTranscript(t, filepath.Join(f.logsDir, projectDir), name, lines)
}

func TestImportFile(t *testing.T) {
	f := newImportFixture(t, &embedding.Mock{Dim: 8})
	ts := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	path := f.writeTranscript(t, "-Users-dev-projects-my-app", "conv-abc.jsonl", []string{
		cstesting.UserMessage("why is the docker build failing?", ts),
		cstesting.AssistantMessage("the base image tag moved", ts.Add(time.Minute)),
		cstesting.ToolUseMessage("Edit", map[string]any{"file_path": "Dockerfile"}, ts.Add(2*time.Minute)),
	})

	res, err := f.importer.ImportFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if res.Project != "my-app" {
		t.Fatalf("project = %q", res.Project)
	}
	if res.Collection != "conv_4dcb6b21_mock_8d" {
		t.Fatalf("collection = %q", res.Collection)
	}
	// The tool_use line carries no text, so two messages reach the chunk.
	if res.Chunks != 1 || res.Messages != 2 {
		t.Fatalf("result = %+v", res)
	}

	// The point sits under its deterministic ID with the full payload.
	id := ingest.ChunkPointID("conv-abc", 0)
	payload, ok := f.fake.Payload(res.Collection, id)
	if !ok {
		t.Fatalf("point %d missing", id)
	}
	if payload["conversation_id"] != "conv-abc" || payload["project"] != "my-app" {
		t.Fatalf("payload = %v", payload)
	}
	if payload["start_role"] != "user" {
		t.Fatalf("start_role = %v", payload["start_role"])
	}
	edited, _ := payload["files_edited"].([]any)
	if len(edited) != 1 || edited[0] != "Dockerfile" {
		t.Fatalf("files_edited = %v", payload["files_edited"])
	}

	// State records the completed import.
	rec, ok := f.state.Get(path)
	if !ok || rec.Status != ingest.StatusCompleted || rec.Chunks != 1 {
		t.Fatalf("state record = %+v", rec)
	}
	if rec.Suffix != "mock_8d" {
		t.Fatalf("suffix = %q", rec.Suffix)
	}
}

func TestImportFileMetadataKeysAtTopLevel(t *testing.T) {
	f := newImportFixture(t, &embedding.Mock{Dim: 8})
	ts := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	code := "```go\nfunc LoadSettings(path string) error {\n\treturn nil\n}\n```"
	path := f.writeTranscript(t, "-Users-dev-projects-my-app", "conv-meta.jsonl", []string{
		cstesting.UserMessage("add a settings loader for the api", ts),
		cstesting.AssistantMessage("here it is:\n"+code, ts.Add(time.Minute)),
		cstesting.ToolUseMessage("Write", map[string]any{"file_path": "settings.go"}, ts.Add(2*time.Minute)),
	})

	res, err := f.importer.ImportFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}

	payload, ok := f.fake.Payload(res.Collection, ingest.ChunkPointID("conv-meta", 0))
	if !ok {
		t.Fatal("chunk point missing")
	}

	// Extractor fields sit beside the chunk fields, not under a
	// metadata sub-object; stored filters and older collections read
	// them there.
	if _, nested := payload["metadata"]; nested {
		t.Fatal("metadata nested instead of merged into the payload")
	}
	for _, key := range []string{
		"files_analyzed", "files_edited", "tools_used",
		"concepts", "ast_elements", "has_code_blocks",
	} {
		if _, ok := payload[key]; !ok {
			t.Fatalf("payload missing %q: %v", key, payload)
		}
	}

	if hasCode, _ := payload["has_code_blocks"].(bool); !hasCode {
		t.Fatalf("has_code_blocks = %v", payload["has_code_blocks"])
	}
	symbols, _ := payload["ast_elements"].([]any)
	if len(symbols) == 0 || symbols[0] != "func:LoadSettings" {
		t.Fatalf("ast_elements = %v", payload["ast_elements"])
	}
	edited, _ := payload["files_edited"].([]any)
	if len(edited) != 1 || edited[0] != "settings.go" {
		t.Fatalf("files_edited = %v", payload["files_edited"])
	}
}

func TestImportFileIdempotent(t *testing.T) {
	f := newImportFixture(t, &embedding.Mock{Dim: 8})
	ts := time.Now()
	path := f.writeTranscript(t, "-Users-dev-projects-my-app", "c1.jsonl", []string{
		cstesting.UserMessage("question", ts),
		cstesting.AssistantMessage("answer", ts),
	})

	ctx := context.Background()
	res1, err := f.importer.ImportFile(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	res2, err := f.importer.ImportFile(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if res1.Chunks != res2.Chunks {
		t.Fatalf("chunk counts differ: %d vs %d", res1.Chunks, res2.Chunks)
	}
	if got := f.fake.PointCount(res1.Collection); got != res1.Chunks {
		t.Fatalf("re-import duplicated points: %d stored, %d expected", got, res1.Chunks)
	}
}

func TestImportFileEmptyTranscript(t *testing.T) {
	f := newImportFixture(t, &embedding.Mock{Dim: 8})
	path := f.writeTranscript(t, "-Users-dev-projects-my-app", "empty.jsonl", []string{
		cstesting.SummaryLine("nothing conversational here"),
	})

	res, err := f.importer.ImportFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if res.Chunks != 0 {
		t.Fatalf("chunks = %d", res.Chunks)
	}
	rec, ok := f.state.Get(path)
	if !ok || rec.Status != ingest.StatusCompleted {
		t.Fatalf("empty import should still complete, record = %+v", rec)
	}
}

func TestImportFileEmbedFailureRecordsFailed(t *testing.T) {
	f := newImportFixture(t, &embedding.Mock{
		Dim: 8,
		Err: fmt.Errorf("%w: key revoked", embedding.ErrFatal),
	})
	path := f.writeTranscript(t, "-Users-dev-projects-my-app", "bad.jsonl", []string{
		cstesting.UserMessage("hello", time.Now()),
	})

	_, err := f.importer.ImportFile(context.Background(), path)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, embedding.ErrFatal) {
		t.Fatalf("error = %v", err)
	}
	rec, ok := f.state.Get(path)
	if !ok || rec.Status != ingest.StatusFailed {
		t.Fatalf("state record = %+v", rec)
	}
}

func TestImportFailedFileRetriedOnNextScan(t *testing.T) {
	f := newImportFixture(t, &embedding.Mock{
		Dim: 8,
		Err: fmt.Errorf("%w: key revoked", embedding.ErrFatal),
	})
	path := f.writeTranscript(t, "-Users-dev-projects-my-app", "flaky.jsonl", []string{
		cstesting.UserMessage("hello", time.Now()),
	})

	if _, err := f.importer.ImportFile(context.Background(), path); err == nil {
		t.Fatal("expected error")
	}

	// The mtime has not changed, but the failure must not pin the file
	// out of future scans.
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	mtime := float64(info.ModTime().UnixNano()) / 1e9
	if !f.state.ShouldImport(path, mtime) {
		t.Fatal("failed file dropped from future imports")
	}

	w := ingest.NewWatcher(f.logsDir, f.importer, f.state, time.Minute, nil)
	pending, err := w.Pending()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0] != path {
		t.Fatalf("pending = %v, want the failed transcript", pending)
	}
}

func TestImportFileLongConversationChunks(t *testing.T) {
	f := newImportFixture(t, &embedding.Mock{Dim: 8})
	ts := time.Now()
	var lines []string
	for i := 0; i < 120; i++ {
		lines = append(lines, cstesting.UserMessage(fmt.Sprintf("message number %d", i), ts))
	}
	path := f.writeTranscript(t, "-Users-dev-projects-my-app", "long.jsonl", lines)

	res, err := f.importer.ImportFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	// 120 messages at the default chunk size of 50: chunks 0..2.
	if res.Chunks != 3 {
		t.Fatalf("chunks = %d, want 3", res.Chunks)
	}
	if got := f.fake.PointCount(res.Collection); got != 3 {
		t.Fatalf("stored points = %d", got)
	}
}

func TestWatcherScanOnce(t *testing.T) {
	f := newImportFixture(t, &embedding.Mock{Dim: 8})
	ts := time.Now()
	path := f.writeTranscript(t, "-Users-dev-projects-my-app", "w1.jsonl", []string{
		cstesting.UserMessage("first pass", ts),
	})
	f.writeTranscript(t, "-Users-dev-projects-other", "w2.jsonl", []string{
		cstesting.UserMessage("second project", ts),
	})

	w := ingest.NewWatcher(f.logsDir, f.importer, f.state, time.Minute, nil)
	ctx := context.Background()

	res, err := w.ScanOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Candidates != 2 || res.Imported != 2 || res.Failed != 0 {
		t.Fatalf("first scan = %+v", res)
	}

	// Nothing changed: second scan is a no-op.
	res, err = w.ScanOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Candidates != 0 {
		t.Fatalf("second scan = %+v", res)
	}

	// Touch one transcript; only it re-imports.
	newTime := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, newTime, newTime); err != nil {
		t.Fatal(err)
	}
	res, err = w.ScanOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Candidates != 1 || res.Imported != 1 {
		t.Fatalf("third scan = %+v", res)
	}
}

func TestWatcherScanRemovesOrphans(t *testing.T) {
	f := newImportFixture(t, &embedding.Mock{Dim: 8})
	path := f.writeTranscript(t, "-Users-dev-projects-my-app", "gone.jsonl", []string{
		cstesting.UserMessage("short lived", time.Now()),
	})

	w := ingest.NewWatcher(f.logsDir, f.importer, f.state, time.Minute, nil)
	ctx := context.Background()
	if _, err := w.ScanOnce(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok := f.state.Get(path); !ok {
		t.Fatal("record missing after import")
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if _, err := w.ScanOnce(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok := f.state.Get(path); ok {
		t.Fatal("orphan record survived the scan")
	}
}
