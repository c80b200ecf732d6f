package store

import (
	"context"
	"fmt"
)

const fileColumns = `id, owner_id, name, folder_id, storage_path, file_type, file_size, deleted_at, created_at, updated_at`

func scanFile(row interface{ Scan(...any) error }) (File, error) {
	var f File
	err := row.Scan(&f.ID, &f.OwnerID, &f.Name, &f.FolderID, &f.StoragePath, &f.FileType,
		&f.FileSize, &f.DeletedAt, &f.CreatedAt, &f.UpdatedAt)
	return f, err
}

func (s *PostgresStore) InsertFile(ctx context.Context, f File) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_files (id, owner_id, name, folder_id, storage_path, file_type, file_size)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, f.ID, f.OwnerID, f.Name, f.FolderID, f.StoragePath, f.FileType, f.FileSize)
	if err != nil {
		return fmt.Errorf("insert file: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetFile(ctx context.Context, ownerID, fileID string) (File, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+fileColumns+` FROM user_files WHERE id=$1 AND owner_id=$2
	`, fileID, ownerID)
	return scanFile(row)
}

// ListFiles returns the active files directly under folderID (nil = root),
// ordered like ListChildFolders. Trashed files are filtered here, server-side.
func (s *PostgresStore) ListFiles(ctx context.Context, ownerID string, folderID *string) ([]File, error) {
	var (
		query string
		args  []any
	)
	if folderID == nil {
		query = `SELECT ` + fileColumns + ` FROM user_files WHERE owner_id=$1 AND folder_id IS NULL AND deleted_at IS NULL ORDER BY name COLLATE "C"`
		args = []any{ownerID}
	} else {
		query = `SELECT ` + fileColumns + ` FROM user_files WHERE owner_id=$1 AND folder_id=$2 AND deleted_at IS NULL ORDER BY name COLLATE "C"`
		args = []any{ownerID, *folderID}
	}
	return s.queryFiles(ctx, query, args...)
}

// ListFilesInFolder returns every file row pointing at folderID regardless of
// trash state; the recursive folder delete uses it to enumerate cascade
// targets.
func (s *PostgresStore) ListFilesInFolder(ctx context.Context, ownerID, folderID string) ([]File, error) {
	return s.queryFiles(ctx, `
		SELECT `+fileColumns+` FROM user_files WHERE owner_id=$1 AND folder_id=$2
	`, ownerID, folderID)
}

func (s *PostgresStore) ListTrashedFiles(ctx context.Context, ownerID string) ([]File, error) {
	return s.queryFiles(ctx, `
		SELECT `+fileColumns+` FROM user_files
		WHERE owner_id=$1 AND deleted_at IS NOT NULL
		ORDER BY deleted_at DESC
	`, ownerID)
}

func (s *PostgresStore) queryFiles(ctx context.Context, query string, args ...any) ([]File, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	items := make([]File, 0)
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		items = append(items, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate files: %w", err)
	}
	return items, nil
}

// SoftDeleteFile is conditioned on deleted_at IS NULL so concurrent deletes
// cannot extend the trash expiry clock.
func (s *PostgresStore) SoftDeleteFile(ctx context.Context, ownerID, fileID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE user_files SET deleted_at=NOW(), updated_at=NOW()
		WHERE id=$1 AND owner_id=$2 AND deleted_at IS NULL
	`, fileID, ownerID)
	if err != nil {
		return false, fmt.Errorf("trash file: %w", err)
	}
	return oneRow(result)
}

// RestoreFile clears deleted_at and nothing else: a file whose folder_id
// points at a deleted folder stays dangling and surfaces at the root.
func (s *PostgresStore) RestoreFile(ctx context.Context, ownerID, fileID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE user_files SET deleted_at=NULL, updated_at=NOW()
		WHERE id=$1 AND owner_id=$2 AND deleted_at IS NOT NULL
	`, fileID, ownerID)
	if err != nil {
		return false, fmt.Errorf("restore file: %w", err)
	}
	return oneRow(result)
}

func (s *PostgresStore) SetFileFolder(ctx context.Context, ownerID, fileID string, folderID *string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE user_files SET folder_id=$3, updated_at=NOW()
		WHERE id=$1 AND owner_id=$2 AND deleted_at IS NULL
	`, fileID, ownerID, folderID)
	if err != nil {
		return false, fmt.Errorf("move file: %w", err)
	}
	return oneRow(result)
}

func (s *PostgresStore) DeleteFile(ctx context.Context, ownerID, fileID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM user_files WHERE id=$1 AND owner_id=$2
	`, fileID, ownerID)
	if err != nil {
		return false, fmt.Errorf("delete file: %w", err)
	}
	return oneRow(result)
}
