package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"stash/api/internal/blob"
	"stash/api/internal/store"
	"stash/api/internal/util"
)

// maxFolderDepth caps breadcrumb and ancestor walks. The tree has no schema
// cycle constraint, so walks must terminate even over corrupt data.
const maxFolderDepth = 100

const rootFolderName = "My Files"

// FolderContents is one folder's direct children: subfolders plus active
// files with download URLs resolved.
type FolderContents struct {
	Folders []store.Folder
	Files   []FileView
}

// FolderChildren lists the direct children of folderID (empty = root).
// Trashed files are filtered in the store, never here.
func (s *Service) FolderChildren(ctx context.Context, ownerID, folderID string) (FolderContents, error) {
	var parent *string
	if folderID != "" {
		if _, err := s.store.GetFolder(ctx, ownerID, folderID); err != nil {
			return FolderContents{}, mapNoRows(err, "folder not found")
		}
		parent = &folderID
	}

	folders, err := s.store.ListChildFolders(ctx, ownerID, parent)
	if err != nil {
		return FolderContents{}, err
	}
	files, err := s.store.ListFiles(ctx, ownerID, parent)
	if err != nil {
		return FolderContents{}, err
	}
	views := make([]FileView, 0, len(files))
	for _, f := range files {
		views = append(views, s.fileView(ctx, f))
	}
	return FolderContents{Folders: folders, Files: views}, nil
}

// FolderBreadcrumb returns the path from the root to folderID, root first.
// The root is synthetic: it has no row, so the first entry carries an empty
// ID. The walk keeps a visited set so a corrupt parent chain cannot loop.
func (s *Service) FolderBreadcrumb(ctx context.Context, ownerID, folderID string) ([]store.BreadcrumbEntry, error) {
	trail := []store.BreadcrumbEntry{}
	visited := map[string]struct{}{}

	current := folderID
	for depth := 0; current != ""; depth++ {
		if depth >= maxFolderDepth {
			return nil, fmt.Errorf("folder chain exceeds depth %d", maxFolderDepth)
		}
		if _, seen := visited[current]; seen {
			return nil, fmt.Errorf("folder parent chain contains a cycle at %s", current)
		}
		visited[current] = struct{}{}

		folder, err := s.store.GetFolder(ctx, ownerID, current)
		if err != nil {
			return nil, mapNoRows(err, "folder not found")
		}
		trail = append(trail, store.BreadcrumbEntry{ID: folder.ID, Name: folder.Name})
		if folder.ParentID == nil {
			break
		}
		current = *folder.ParentID
	}

	// Reverse into root-first order and prepend the synthetic root.
	path := make([]store.BreadcrumbEntry, 0, len(trail)+1)
	path = append(path, store.BreadcrumbEntry{Name: rootFolderName})
	for i := len(trail) - 1; i >= 0; i-- {
		path = append(path, trail[i])
	}
	return path, nil
}

func (s *Service) CreateFolder(ctx context.Context, ownerID, name, parentID string) (store.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Folder{}, validationError("folder name is required")
	}

	var parent *string
	if parentID != "" {
		if _, err := s.store.GetFolder(ctx, ownerID, parentID); err != nil {
			return store.Folder{}, mapNoRows(err, "parent folder not found")
		}
		parent = &parentID
	}

	folder := store.Folder{
		ID:       util.NewID("fold"),
		OwnerID:  ownerID,
		Name:     name,
		ParentID: parent,
	}
	if err := s.store.InsertFolder(ctx, folder); err != nil {
		return store.Folder{}, err
	}
	return folder, nil
}

func (s *Service) RenameFolder(ctx context.Context, ownerID, folderID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return validationError("folder name is required")
	}
	renamed, err := s.store.RenameFolder(ctx, ownerID, folderID, name)
	if err != nil {
		return err
	}
	if !renamed {
		return notFoundError("folder not found")
	}
	return nil
}

// MoveFolder re-parents folderID under targetID (empty = root). Moving a
// folder into itself or any of its descendants is rejected before any write.
func (s *Service) MoveFolder(ctx context.Context, ownerID, folderID, targetID string) error {
	if _, err := s.store.GetFolder(ctx, ownerID, folderID); err != nil {
		return mapNoRows(err, "folder not found")
	}

	var target *string
	if targetID != "" {
		if targetID == folderID {
			return cycleError("cannot move a folder into itself")
		}
		if _, err := s.store.GetFolder(ctx, ownerID, targetID); err != nil {
			return mapNoRows(err, "destination folder not found")
		}
		descendant, err := s.isDescendant(ctx, ownerID, targetID, folderID)
		if err != nil {
			return err
		}
		if descendant {
			return cycleError("cannot move a folder into its own descendant")
		}
		target = &targetID
	}

	moved, err := s.store.SetFolderParent(ctx, ownerID, folderID, target)
	if err != nil {
		return err
	}
	if !moved {
		return notFoundError("folder not found")
	}
	return nil
}

// isDescendant reports whether nodeID sits somewhere under ancestorID, by
// walking up from nodeID.
func (s *Service) isDescendant(ctx context.Context, ownerID, nodeID, ancestorID string) (bool, error) {
	visited := map[string]struct{}{}
	current := nodeID
	for depth := 0; ; depth++ {
		if depth >= maxFolderDepth {
			return false, fmt.Errorf("folder chain exceeds depth %d", maxFolderDepth)
		}
		if _, seen := visited[current]; seen {
			return false, fmt.Errorf("folder parent chain contains a cycle at %s", current)
		}
		visited[current] = struct{}{}

		folder, err := s.store.GetFolder(ctx, ownerID, current)
		if err != nil {
			return false, mapNoRows(err, "folder not found")
		}
		if folder.ParentID == nil {
			return false, nil
		}
		if *folder.ParentID == ancestorID {
			return true, nil
		}
		current = *folder.ParentID
	}
}

func (s *Service) MoveFile(ctx context.Context, ownerID, fileID, targetID string) error {
	var target *string
	if targetID != "" {
		if _, err := s.store.GetFolder(ctx, ownerID, targetID); err != nil {
			return mapNoRows(err, "destination folder not found")
		}
		target = &targetID
	}
	moved, err := s.store.SetFileFolder(ctx, ownerID, fileID, target)
	if err != nil {
		return err
	}
	if !moved {
		return notFoundError("file not found")
	}
	return nil
}

// DeleteFolderRecursive trashes every file in the subtree and removes every
// folder row, children before parents. Failures are collected per item; the
// cascade never stops at the first error, so one stuck file cannot shield its
// siblings from deletion.
func (s *Service) DeleteFolderRecursive(ctx context.Context, ownerID, folderID string) (BatchResult, error) {
	if _, err := s.store.GetFolder(ctx, ownerID, folderID); err != nil {
		return BatchResult{}, mapNoRows(err, "folder not found")
	}

	// Phase one: enumerate the subtree breadth-first. The visited set guards
	// the worklist against a corrupt parent chain.
	ordered := []string{}
	visited := map[string]struct{}{}
	queue := []string{folderID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if _, seen := visited[current]; seen {
			continue
		}
		visited[current] = struct{}{}
		ordered = append(ordered, current)

		children, err := s.store.ListChildFolders(ctx, ownerID, &current)
		if err != nil {
			return BatchResult{}, err
		}
		for _, child := range children {
			queue = append(queue, child.ID)
		}
	}

	result := newBatchResult()

	// Phase two: trash the files of every enumerated folder. Rows already in
	// the trash are left alone so their expiry clocks keep running.
	for _, id := range ordered {
		files, err := s.store.ListFilesInFolder(ctx, ownerID, id)
		if err != nil {
			result.fail(id, err)
			continue
		}
		for _, f := range files {
			if f.DeletedAt != nil {
				continue
			}
			if _, err := s.store.SoftDeleteFile(ctx, ownerID, f.ID); err != nil {
				result.fail(f.ID, err)
				continue
			}
			result.ok(f.ID)
		}
	}

	// Phase three: remove folder rows deepest-first.
	for i := len(ordered) - 1; i >= 0; i-- {
		id := ordered[i]
		deleted, err := s.store.DeleteFolder(ctx, ownerID, id)
		if err != nil {
			result.fail(id, err)
			continue
		}
		if !deleted {
			result.fail(id, errors.New("folder already removed"))
			continue
		}
		result.ok(id)
	}

	return result, result.Err()
}

// fileView resolves a short-lived download URL for a file row. URL resolution
// is best-effort; listing must not fail because the object store is down.
func (s *Service) fileView(ctx context.Context, f store.File) FileView {
	view := FileView{File: f}
	url, err := s.blob.SignedURL(ctx, blob.BucketUserFiles, f.StoragePath, time.Hour)
	if err == nil {
		view.URL = url
	}
	return view
}

// mapNoRows converts a sql.ErrNoRows into a 404 domain error, leaving other
// errors untouched.
func mapNoRows(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFoundError(message)
	}
	return err
}
