package search

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeSessionFile(t *testing.T, path string, lines ...string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRefreshIndexesNewSessionFile(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	root := t.TempDir()
	writeSessionFile(t, filepath.Join(root, "myproject", "session1.jsonl"),
		`{"type":"summary","summary":"fix auth bug"}`,
		`{"type":"system","subtype":"turn_duration","durationMs":1500}`,
		`{"type":"user","message":{"role":"user","content":"hi"}}`,
	)

	result, err := s.Refresh(ctx, RefreshOptions{Paths: []string{root}})
	if err != nil {
		t.Fatal(err)
	}
	if result.Updated != 1 {
		t.Fatalf("expected 1 updated session, got %+v", result)
	}

	rows, err := s.candidateRows(ctx, Query{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 indexed row, got %d", len(rows))
	}
	got := rows[0]
	if got.Summary != "fix auth bug" {
		t.Fatalf("unexpected summary: %q", got.Summary)
	}
	if got.DurationMs != 1500 {
		t.Fatalf("unexpected duration: %d", got.DurationMs)
	}
	if got.LineCount != 3 {
		t.Fatalf("unexpected line count: %d", got.LineCount)
	}
	if got.ProjectDisplayName != "myproject" {
		t.Fatalf("unexpected project display name: %q", got.ProjectDisplayName)
	}
}

func TestRefreshSkipsUnchangedFiles(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	root := t.TempDir()
	writeSessionFile(t, filepath.Join(root, "p", "session1.jsonl"), `{"type":"summary","summary":"a"}`)

	if _, err := s.Refresh(ctx, RefreshOptions{Paths: []string{root}}); err != nil {
		t.Fatal(err)
	}
	result, err := s.Refresh(ctx, RefreshOptions{Paths: []string{root}})
	if err != nil {
		t.Fatal(err)
	}
	if result.Skipped != 1 || result.Updated != 0 {
		t.Fatalf("expected second pass to skip unchanged file, got %+v", result)
	}
}

func TestRefreshExcludesSubagentsByDefault(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	root := t.TempDir()
	writeSessionFile(t, filepath.Join(root, "p", "session1.jsonl"), `{"type":"summary","summary":"main"}`)
	writeSessionFile(t, filepath.Join(root, "p", "subagents", "sub1.jsonl"), `{"type":"summary","summary":"sub"}`)

	result, err := s.Refresh(ctx, RefreshOptions{Paths: []string{root}, IncludeSubagents: false})
	if err != nil {
		t.Fatal(err)
	}
	if result.Updated != 1 {
		t.Fatalf("expected only the main session indexed, got %+v", result)
	}

	rows, err := s.candidateRows(ctx, Query{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || !rows[0].HasSubagents {
		t.Fatalf("expected main session to be flagged has_subagents, got %+v", rows)
	}
}

func TestRefreshIncludesSubagentsWhenConfigured(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	root := t.TempDir()
	writeSessionFile(t, filepath.Join(root, "p", "session1.jsonl"), `{"type":"summary","summary":"main"}`)
	writeSessionFile(t, filepath.Join(root, "p", "subagents", "sub1.jsonl"), `{"type":"summary","summary":"sub"}`)

	result, err := s.Refresh(ctx, RefreshOptions{Paths: []string{root}, IncludeSubagents: true})
	if err != nil {
		t.Fatal(err)
	}
	if result.Updated != 2 {
		t.Fatalf("expected both sessions indexed, got %+v", result)
	}
}

func TestProjectFromPathDerivesDisplayName(t *testing.T) {
	p := projectFromPath("/data/sessions/my-cool-app/session1.jsonl")
	if p.encoded != "my-cool-app" {
		t.Fatalf("unexpected encoded: %q", p.encoded)
	}
	if p.displayName == "" {
		t.Fatal("expected non-empty display name")
	}
}
