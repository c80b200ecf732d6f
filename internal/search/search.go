package search

import "context"

// NoteRecord is the slice of a note we push into the search index.
type NoteRecord struct {
	ID       string `json:"id"`
	OwnerID  string `json:"ownerId"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category"`
}

// Result is a single search hit returned to the caller.
type Result struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Snippet  string `json:"snippet"`
	Category string `json:"category"`
}

// Query describes a note search, always scoped to one owner.
type Query struct {
	OwnerID string
	Text    string
	Limit   int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a scoped full-text search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}
