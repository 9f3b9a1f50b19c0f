package search

import (
	"context"
	"testing"
	"time"
)

func TestQueryTermsDropsShortTerms(t *testing.T) {
	terms := queryTerms("a fix auth bug")
	want := []string{"fix", "auth", "bug"}
	if len(terms) != len(want) {
		t.Fatalf("got %v, want %v", terms, want)
	}
	for i := range want {
		if terms[i] != want[i] {
			t.Fatalf("got %v, want %v", terms, want)
		}
	}
}

func TestScoreMatchesRankingExample(t *testing.T) {
	now := time.Date(2026, 1, 30, 0, 0, 0, 0, time.UTC)
	terms := queryTerms("auth bug")
	phrase := "auth bug"

	s1 := IndexedSession{Summary: "auth bug", ProjectDisplayName: "alpha", FileModifiedAt: now}
	s2 := IndexedSession{Summary: "auth flow", ProjectDisplayName: "alpha", FileModifiedAt: now.AddDate(0, 0, -30)}
	s3 := IndexedSession{Summary: "other", ProjectDisplayName: "alpha", FileModifiedAt: now}

	sc1 := score(s1, terms, phrase, now)
	sc2 := score(s2, terms, phrase, now)
	sc3 := score(s3, terms, phrase, now)

	if !(sc1 > sc2 && sc2 > sc3) {
		t.Fatalf("expected sc1 > sc2 > sc3, got %v %v %v", sc1, sc2, sc3)
	}
	if sc1 < 5.9 || sc1 > 6.1 {
		t.Fatalf("expected ~6.0 for s1, got %v", sc1)
	}
}

func TestScoreMonotonicityOnTermMatches(t *testing.T) {
	now := time.Now().UTC()
	fewer := IndexedSession{Summary: "auth", FileModifiedAt: now}
	more := IndexedSession{Summary: "auth bug", FileModifiedAt: now}
	terms := queryTerms("auth bug")

	if score(more, terms, "auth bug", now) <= score(fewer, terms, "auth bug", now) {
		t.Fatal("expected more term matches to never decrease score")
	}
}

func TestScoreMonotonicityOnRecency(t *testing.T) {
	now := time.Now().UTC()
	recent := IndexedSession{Summary: "x", FileModifiedAt: now}
	old := IndexedSession{Summary: "x", FileModifiedAt: now.AddDate(0, 0, -10)}
	terms := queryTerms("x")

	if score(recent, terms, "x", now) < score(old, terms, "x", now) {
		t.Fatal("expected older sessions to never score higher on recency alone")
	}
}

func TestSearchFiltersByProjectAndRanksBySummary(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	root := t.TempDir()
	writeSessionFile(t, root+"/alpha/s1.jsonl", `{"type":"summary","summary":"auth bug"}`)
	writeSessionFile(t, root+"/alpha/s2.jsonl", `{"type":"summary","summary":"auth flow"}`)
	writeSessionFile(t, root+"/beta/s3.jsonl", `{"type":"summary","summary":"auth bug elsewhere"}`)

	if _, err := s.Refresh(ctx, RefreshOptions{Paths: []string{root}}); err != nil {
		t.Fatal(err)
	}

	results, err := s.Search(ctx, Query{Text: "auth bug", Project: "alpha"})
	if err != nil {
		t.Fatal(err)
	}
	if results.Total != 2 {
		t.Fatalf("expected 2 results scoped to project alpha, got %d", results.Total)
	}
	if results.Hits[0].Session.Summary != "auth bug" {
		t.Fatalf("expected exact match ranked first, got %q", results.Hits[0].Session.Summary)
	}
}

func TestSearchPaginatesWithLimitAndOffset(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	root := t.TempDir()
	for i := 0; i < 5; i++ {
		writeSessionFile(t, root+"/p/s"+string(rune('a'+i))+".jsonl", `{"type":"summary","summary":"common term"}`)
	}
	if _, err := s.Refresh(ctx, RefreshOptions{Paths: []string{root}}); err != nil {
		t.Fatal(err)
	}

	results, err := s.Search(ctx, Query{Text: "common", Limit: 2, Offset: 1})
	if err != nil {
		t.Fatal(err)
	}
	if results.Total != 5 {
		t.Fatalf("expected total 5, got %d", results.Total)
	}
	if len(results.Hits) != 2 {
		t.Fatalf("expected 2 hits for page, got %d", len(results.Hits))
	}
}
