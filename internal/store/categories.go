package store

import (
	"context"
	"fmt"
)

func (s *PostgresStore) InsertCategory(ctx context.Context, c Category) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, owner_id, name, color)
		VALUES ($1, $2, $3, $4)
	`, c.ID, c.OwnerID, c.Name, c.Color)
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListCategories(ctx context.Context, ownerID string) ([]Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, name, color, created_at
		FROM categories
		WHERE owner_id=$1
		ORDER BY name
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	items := make([]Category, 0)
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Color, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateCategory(ctx context.Context, ownerID, categoryID, name, color string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE categories SET name=$3, color=$4
		WHERE id=$1 AND owner_id=$2
	`, categoryID, ownerID, name, color)
	if err != nil {
		return false, fmt.Errorf("update category: %w", err)
	}
	return oneRow(result)
}

// DeleteCategory removes only the category row. Notes referencing the name
// keep their category value and show up as uncategorized.
func (s *PostgresStore) DeleteCategory(ctx context.Context, ownerID, categoryID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM categories WHERE id=$1 AND owner_id=$2
	`, categoryID, ownerID)
	if err != nil {
		return false, fmt.Errorf("delete category: %w", err)
	}
	return oneRow(result)
}
