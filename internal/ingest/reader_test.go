package ingest

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestReadNewLinesSkipsPartialTrailingLine(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "a.jsonl", `{"a":1}`+"\n"+`{"b":2}`+"\n"+`{"partial"`)

	res, err := ReadNewLines(p, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Lines) != 2 {
		t.Fatalf("expected 2 complete lines, got %d", len(res.Lines))
	}
	if res.NewOffset >= int64(len(`{"a":1}`+"\n"+`{"b":2}`+"\n"+`{"partial"`)) {
		t.Fatalf("offset should not include the partial line")
	}
}

func TestReadNewLinesResumesFromOffset(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "a.jsonl", `{"a":1}`+"\n")

	first, err := ReadNewLines(p, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(first.Lines))
	}

	f, err := os.OpenFile(p, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(`{"b":2}` + "\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	second, err := ReadNewLines(p, first.NewOffset)
	if err != nil {
		t.Fatal(err)
	}
	if len(second.Lines) != 1 || string(second.Lines[0]) != `{"b":2}` {
		t.Fatalf("expected exactly the newly appended line, got %v", second.Lines)
	}
}

func TestReadNewLinesDetectsTruncation(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "a.jsonl", `{"a":1}`+"\n"+`{"b":2}`+"\n")

	res, err := ReadNewLines(p, 0)
	if err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(p, []byte(`{"c":3}`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	truncRes, err := ReadNewLines(p, res.NewOffset)
	if err != nil {
		t.Fatal(err)
	}
	if !truncRes.Truncated {
		t.Fatalf("expected truncation to be detected")
	}
	if len(truncRes.Lines) != 1 || string(truncRes.Lines[0]) != `{"c":3}` {
		t.Fatalf("expected to re-read from start after truncation, got %v", truncRes.Lines)
	}
}

func TestReadNewLinesSkipsBlankLines(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "a.jsonl", "\n"+`{"a":1}`+"\n\n")

	res, err := ReadNewLines(p, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Lines) != 1 {
		t.Fatalf("expected blank lines to be skipped, got %d lines", len(res.Lines))
	}
}

func TestSeekToLastNLines(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "a.jsonl", "l1\nl2\nl3\nl4\n")

	off, err := SeekToLastNLines(p, 2)
	if err != nil {
		t.Fatal(err)
	}
	res, err := ReadNewLines(p, off)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Lines) != 2 || string(res.Lines[0]) != "l3" || string(res.Lines[1]) != "l4" {
		t.Fatalf("expected last 2 lines, got %v", res.Lines)
	}
}
