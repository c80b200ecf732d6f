package store

import "time"

type User struct {
	ID           string
	DisplayName  string
	Email        string
	PasswordHash string
	AvatarURL    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Category colors come from a fixed palette; notes reference a category by
// name only, so deleting a category leaves its notes uncategorized.
type Category struct {
	ID        string
	OwnerID   string
	Name      string
	Color     string
	CreatedAt time.Time
}

// Note is also the backing record for tasks; the kanban view groups notes by
// category. ImageURL holds a comma-joined list of attachment URLs (see
// blob.DecodeImageList).
type Note struct {
	ID        string
	OwnerID   string
	Title     string
	Content   string
	Category  string
	IsStarred bool
	IsPinned  bool
	Link      string
	ImageURL  string
	DeletedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Folder rows form a tree via ParentID (nil = root). There is no cycle
// constraint in the schema; the service enforces it on move.
type Folder struct {
	ID        string
	OwnerID   string
	Name      string
	ParentID  *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// File metadata. FolderID may point at a folder that no longer exists: a
// recursive folder delete keeps the reference so restore works without the
// folder.
type File struct {
	ID          string
	OwnerID     string
	Name        string
	FolderID    *string
	StoragePath string
	FileType    string
	FileSize    int64
	DeletedAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BreadcrumbEntry is one hop of the path from the root to a folder. The root
// entry has an empty ID.
type BreadcrumbEntry struct {
	ID   string
	Name string
}
