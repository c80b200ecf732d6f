package search

import (
	"context"
	"fmt"

	"stash/api/internal/store"
)

// noteLister is the slice of the data store the fallback needs.
type noteLister interface {
	SearchNotes(ctx context.Context, ownerID, query string) ([]store.Note, error)
}

// PgSearch is the always-available fallback: an ILIKE scan over the owner's
// active notes. Good enough for one user's data; Meilisearch takes over when
// it is reachable.
type PgSearch struct {
	notes noteLister
}

func NewPgSearch(notes noteLister) *PgSearch {
	return &PgSearch{notes: notes}
}

func (p *PgSearch) Healthy() bool {
	return true
}

func (p *PgSearch) Search(ctx context.Context, q Query) ([]Result, int, error) {
	notes, err := p.notes.SearchNotes(ctx, q.OwnerID, q.Text)
	if err != nil {
		return nil, 0, fmt.Errorf("pg search: %w", err)
	}

	limit := q.Limit
	if limit == 0 {
		limit = 20
	}

	results := make([]Result, 0, len(notes))
	for _, n := range notes {
		if len(results) >= limit {
			break
		}
		results = append(results, Result{
			ID:       n.ID,
			Title:    n.Title,
			Snippet:  snippet(n.Content),
			Category: n.Category,
		})
	}
	return results, len(notes), nil
}
