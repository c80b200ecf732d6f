package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const idxNotes = "stash_notes"

// Meili indexes notes in Meilisearch. A background loop tracks reachability
// so the facade can fall back to Postgres while the index is down.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{Uid: idxNotes, PrimaryKey: "id"}); err != nil {
		log.Printf("search: create index %s (may already exist): %v", idxNotes, err)
	}

	index := m.client.Index(idxNotes)
	filterable := []interface{}{"ownerId", "category"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		log.Printf("search: update filterable attrs: %v", err)
	}
	searchable := []string{"title", "content"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		log.Printf("search: update searchable attrs: %v", err)
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

func (m *Meili) Search(_ context.Context, q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}

	resp, err := m.client.Index(idxNotes).Search(q.Text, &meili.SearchRequest{
		Limit:  limit,
		Filter: fmt.Sprintf("ownerId = %q", q.OwnerID),
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch search: %w", err)
	}

	results := make([]Result, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		record, err := hitToRecord(hit)
		if err != nil {
			continue
		}
		results = append(results, Result{
			ID:       record.ID,
			Title:    record.Title,
			Snippet:  snippet(record.Content),
			Category: record.Category,
		})
	}
	return results, int(resp.EstimatedTotalHits), nil
}

// IndexNote upserts one note record.
func (m *Meili) IndexNote(record NoteRecord) error {
	if _, err := m.client.Index(idxNotes).AddDocuments([]NoteRecord{record}, nil); err != nil {
		return fmt.Errorf("index note %s: %w", record.ID, err)
	}
	return nil
}

// DeleteNote drops a note from the index; trashed and purged notes must not
// surface in search.
func (m *Meili) DeleteNote(id string) error {
	if _, err := m.client.Index(idxNotes).DeleteDocument(id, nil); err != nil {
		return fmt.Errorf("delete note %s from index: %w", id, err)
	}
	return nil
}

func hitToRecord(hit interface{}) (NoteRecord, error) {
	raw, err := json.Marshal(hit)
	if err != nil {
		return NoteRecord{}, err
	}
	var record NoteRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return NoteRecord{}, err
	}
	return record, nil
}

func snippet(content string) string {
	const max = 160
	if len(content) <= max {
		return content
	}
	return content[:max] + "…"
}
