// Package export renders notes to downloadable documents.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"stash/api/internal/store"
)

var ErrPDFDependencyMissing = errors.New("pdf export unavailable")

// Result is a generated document ready to stream to the client.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var noteTemplate = template.Must(template.New("note").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
body { font-family: Georgia, serif; margin: 2rem; color: #1a1a1a; }
h1 { font-size: 1.6rem; margin-bottom: 0.25rem; }
.meta { color: #666; font-size: 0.85rem; margin-bottom: 1.5rem; }
.content { white-space: pre-wrap; line-height: 1.55; }
.link { margin-top: 1.5rem; font-size: 0.85rem; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<div class="meta">{{if .Category}}{{.Category}} · {{end}}updated {{.UpdatedAt.Format "Jan 2, 2006"}}</div>
<div class="content">{{.Content}}</div>
{{if .Link}}<div class="link">{{.Link}}</div>{{end}}
</body>
</html>`))

type templateData struct {
	Title     string
	Category  string
	Content   string
	Link      string
	UpdatedAt time.Time
}

// Service renders notes to PDF through headless Chrome.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// NotePDF renders the note's HTML and prints it through Chrome.
func (s *Service) NotePDF(note store.Note) (*Result, error) {
	html, err := renderNoteHTML(note)
	if err != nil {
		return nil, err
	}
	return exportPDF(html, note.Title)
}

func renderNoteHTML(note store.Note) (string, error) {
	title := strings.TrimSpace(note.Title)
	if title == "" {
		title = "Untitled note"
	}
	var buf bytes.Buffer
	err := noteTemplate.Execute(&buf, templateData{
		Title:     title,
		Category:  note.Category,
		Content:   note.Content,
		Link:      note.Link,
		UpdatedAt: note.UpdatedAt,
	})
	if err != nil {
		return "", fmt.Errorf("render note html: %w", err)
	}
	return buf.String(), nil
}

// sanitizeFilename builds a safe download name from a note title.
func sanitizeFilename(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('-')
		case r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	result := b.String()
	if len(result) > 50 {
		result = result[:50]
	}
	if result == "" {
		result = "note"
	}
	return result
}
