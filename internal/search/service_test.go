package search

import (
	"context"
	"testing"
	"time"

	"stash/api/internal/store"
)

type fakeNoteLister struct {
	notes []store.Note
	err   error
	gotQ  string
	gotID string
}

func (f *fakeNoteLister) SearchNotes(_ context.Context, ownerID, query string) ([]store.Note, error) {
	f.gotID = ownerID
	f.gotQ = query
	return f.notes, f.err
}

func TestServiceFallsBackWithoutMeili(t *testing.T) {
	lister := &fakeNoteLister{notes: []store.Note{
		{ID: "note_1", OwnerID: "user_1", Title: "groceries", Content: "milk and eggs", CreatedAt: time.Now()},
	}}
	svc := NewService(nil, NewPgSearch(lister))

	resp := svc.Search(context.Background(), Query{OwnerID: "user_1", Text: "milk"})
	if len(resp.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(resp.Results))
	}
	if resp.Results[0].ID != "note_1" {
		t.Fatalf("unexpected result id %s", resp.Results[0].ID)
	}
	if lister.gotID != "user_1" || lister.gotQ != "milk" {
		t.Fatalf("fallback called with owner=%q query=%q", lister.gotID, lister.gotQ)
	}
}

func TestPgSearchAppliesLimit(t *testing.T) {
	lister := &fakeNoteLister{}
	for i := 0; i < 30; i++ {
		lister.notes = append(lister.notes, store.Note{ID: "n", Title: "t"})
	}
	results, total, err := NewPgSearch(lister).Search(context.Background(), Query{OwnerID: "u", Text: "t", Limit: 5})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	if total != 30 {
		t.Fatalf("expected total 30, got %d", total)
	}
}

func TestSnippetTruncates(t *testing.T) {
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'a'
	}
	got := snippet(string(long))
	if len(got) >= 500 {
		t.Fatalf("expected snippet to truncate, got %d bytes", len(got))
	}
	if snippet("short") != "short" {
		t.Fatal("short content should pass through unchanged")
	}
}
