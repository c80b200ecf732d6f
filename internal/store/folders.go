package store

import (
	"context"
	"fmt"
)

const folderColumns = `id, owner_id, name, parent_id, created_at, updated_at`

func scanFolder(row interface{ Scan(...any) error }) (Folder, error) {
	var f Folder
	err := row.Scan(&f.ID, &f.OwnerID, &f.Name, &f.ParentID, &f.CreatedAt, &f.UpdatedAt)
	return f, err
}

func (s *PostgresStore) InsertFolder(ctx context.Context, f Folder) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_folders (id, owner_id, name, parent_id)
		VALUES ($1, $2, $3, $4)
	`, f.ID, f.OwnerID, f.Name, f.ParentID)
	if err != nil {
		return fmt.Errorf("insert folder: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetFolder(ctx context.Context, ownerID, folderID string) (Folder, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+folderColumns+` FROM user_folders WHERE id=$1 AND owner_id=$2
	`, folderID, ownerID)
	return scanFolder(row)
}

// ListChildFolders returns the direct children of parentID (empty = root),
// ordered by name with bytewise collation so the ordering is stable across
// environments.
func (s *PostgresStore) ListChildFolders(ctx context.Context, ownerID string, parentID *string) ([]Folder, error) {
	var (
		rowsQuery string
		args      []any
	)
	if parentID == nil {
		rowsQuery = `SELECT ` + folderColumns + ` FROM user_folders WHERE owner_id=$1 AND parent_id IS NULL ORDER BY name COLLATE "C"`
		args = []any{ownerID}
	} else {
		rowsQuery = `SELECT ` + folderColumns + ` FROM user_folders WHERE owner_id=$1 AND parent_id=$2 ORDER BY name COLLATE "C"`
		args = []any{ownerID, *parentID}
	}

	rows, err := s.db.QueryContext(ctx, rowsQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	defer rows.Close()

	items := make([]Folder, 0)
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		items = append(items, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate folders: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) RenameFolder(ctx context.Context, ownerID, folderID, name string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE user_folders SET name=$3, updated_at=NOW()
		WHERE id=$1 AND owner_id=$2
	`, folderID, ownerID, name)
	if err != nil {
		return false, fmt.Errorf("rename folder: %w", err)
	}
	return oneRow(result)
}

func (s *PostgresStore) SetFolderParent(ctx context.Context, ownerID, folderID string, parentID *string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE user_folders SET parent_id=$3, updated_at=NOW()
		WHERE id=$1 AND owner_id=$2
	`, folderID, ownerID, parentID)
	if err != nil {
		return false, fmt.Errorf("move folder: %w", err)
	}
	return oneRow(result)
}

func (s *PostgresStore) DeleteFolder(ctx context.Context, ownerID, folderID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM user_folders WHERE id=$1 AND owner_id=$2
	`, folderID, ownerID)
	if err != nil {
		return false, fmt.Errorf("delete folder: %w", err)
	}
	return oneRow(result)
}
