package store

import (
	"context"
	"fmt"
)

const noteColumns = `id, owner_id, title, content, category, is_starred, is_pinned, link, image_url, deleted_at, created_at, updated_at`

func scanNote(row interface{ Scan(...any) error }) (Note, error) {
	var n Note
	err := row.Scan(&n.ID, &n.OwnerID, &n.Title, &n.Content, &n.Category, &n.IsStarred, &n.IsPinned,
		&n.Link, &n.ImageURL, &n.DeletedAt, &n.CreatedAt, &n.UpdatedAt)
	return n, err
}

func (s *PostgresStore) InsertNote(ctx context.Context, n Note) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notes (id, owner_id, title, content, category, is_starred, is_pinned, link, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, n.ID, n.OwnerID, n.Title, n.Content, n.Category, n.IsStarred, n.IsPinned, n.Link, n.ImageURL)
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetNote(ctx context.Context, ownerID, noteID string) (Note, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+noteColumns+` FROM notes WHERE id=$1 AND owner_id=$2
	`, noteID, ownerID)
	return scanNote(row)
}

// ListNotes returns active notes, pinned first, newest first within each
// group. The deleted_at filter is applied here so trashed notes never leak
// into paginated views.
func (s *PostgresStore) ListNotes(ctx context.Context, ownerID string) ([]Note, error) {
	return s.queryNotes(ctx, `
		SELECT `+noteColumns+` FROM notes
		WHERE owner_id=$1 AND deleted_at IS NULL
		ORDER BY is_pinned DESC, updated_at DESC
	`, ownerID)
}

func (s *PostgresStore) ListStarredNotes(ctx context.Context, ownerID string) ([]Note, error) {
	return s.queryNotes(ctx, `
		SELECT `+noteColumns+` FROM notes
		WHERE owner_id=$1 AND deleted_at IS NULL AND is_starred
		ORDER BY updated_at DESC
	`, ownerID)
}

func (s *PostgresStore) ListTrashedNotes(ctx context.Context, ownerID string) ([]Note, error) {
	return s.queryNotes(ctx, `
		SELECT `+noteColumns+` FROM notes
		WHERE owner_id=$1 AND deleted_at IS NOT NULL
		ORDER BY deleted_at DESC
	`, ownerID)
}

func (s *PostgresStore) SearchNotes(ctx context.Context, ownerID, query string) ([]Note, error) {
	pattern := "%" + query + "%"
	return s.queryNotes(ctx, `
		SELECT `+noteColumns+` FROM notes
		WHERE owner_id=$1 AND deleted_at IS NULL AND (title ILIKE $2 OR content ILIKE $2)
		ORDER BY updated_at DESC
	`, ownerID, pattern)
}

func (s *PostgresStore) queryNotes(ctx context.Context, query string, args ...any) ([]Note, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	items := make([]Note, 0)
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateNote(ctx context.Context, n Note) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notes
		SET title=$3, content=$4, category=$5, link=$6, image_url=$7, updated_at=NOW()
		WHERE id=$1 AND owner_id=$2 AND deleted_at IS NULL
	`, n.ID, n.OwnerID, n.Title, n.Content, n.Category, n.Link, n.ImageURL)
	if err != nil {
		return false, fmt.Errorf("update note: %w", err)
	}
	return oneRow(result)
}

func (s *PostgresStore) SetNoteStarred(ctx context.Context, ownerID, noteID string, starred bool) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notes SET is_starred=$3, updated_at=NOW()
		WHERE id=$1 AND owner_id=$2 AND deleted_at IS NULL
	`, noteID, ownerID, starred)
	if err != nil {
		return false, fmt.Errorf("star note: %w", err)
	}
	return oneRow(result)
}

func (s *PostgresStore) SetNotePinned(ctx context.Context, ownerID, noteID string, pinned bool) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notes SET is_pinned=$3, updated_at=NOW()
		WHERE id=$1 AND owner_id=$2 AND deleted_at IS NULL
	`, noteID, ownerID, pinned)
	if err != nil {
		return false, fmt.Errorf("pin note: %w", err)
	}
	return oneRow(result)
}

// SoftDeleteNote is conditioned on deleted_at IS NULL: a second call is a
// no-op and cannot reset the trash clock.
func (s *PostgresStore) SoftDeleteNote(ctx context.Context, ownerID, noteID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notes SET deleted_at=NOW(), updated_at=NOW()
		WHERE id=$1 AND owner_id=$2 AND deleted_at IS NULL
	`, noteID, ownerID)
	if err != nil {
		return false, fmt.Errorf("trash note: %w", err)
	}
	return oneRow(result)
}

func (s *PostgresStore) RestoreNote(ctx context.Context, ownerID, noteID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notes SET deleted_at=NULL, updated_at=NOW()
		WHERE id=$1 AND owner_id=$2 AND deleted_at IS NOT NULL
	`, noteID, ownerID)
	if err != nil {
		return false, fmt.Errorf("restore note: %w", err)
	}
	return oneRow(result)
}

func (s *PostgresStore) DeleteNote(ctx context.Context, ownerID, noteID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM notes WHERE id=$1 AND owner_id=$2
	`, noteID, ownerID)
	if err != nil {
		return false, fmt.Errorf("delete note: %w", err)
	}
	return oneRow(result)
}
