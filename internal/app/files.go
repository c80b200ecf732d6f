package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"stash/api/internal/blob"
	"stash/api/internal/selection"
	"stash/api/internal/store"
	"stash/api/internal/trash"
	"stash/api/internal/util"
)

// FileView is a file row with a resolved short-lived download URL. URL may be
// empty when the object store is unreachable.
type FileView struct {
	store.File
	URL string
}

// TrashedFile carries the retention countdown for the trash view.
type TrashedFile struct {
	store.File
	DaysRemaining int
	Urgent        bool
}

type UploadInput struct {
	Name        string
	FolderID    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// ListFiles returns the active files directly under folderID (empty = root)
// with signed download URLs.
func (s *Service) ListFiles(ctx context.Context, ownerID, folderID string) ([]FileView, error) {
	var folder *string
	if folderID != "" {
		if _, err := s.store.GetFolder(ctx, ownerID, folderID); err != nil {
			return nil, mapNoRows(err, "folder not found")
		}
		folder = &folderID
	}
	files, err := s.store.ListFiles(ctx, ownerID, folder)
	if err != nil {
		return nil, err
	}
	views := make([]FileView, 0, len(files))
	for _, f := range files {
		views = append(views, s.fileView(ctx, f))
	}
	return views, nil
}

func (s *Service) ListTrashedFiles(ctx context.Context, ownerID string) ([]TrashedFile, error) {
	files, err := s.store.ListTrashedFiles(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	annotated := make([]TrashedFile, 0, len(files))
	for _, f := range files {
		annotated = append(annotated, TrashedFile{
			File:          f,
			DaysRemaining: trash.DaysRemaining(now, f.DeletedAt),
			Urgent:        trash.Urgent(now, f.DeletedAt),
		})
	}
	return annotated, nil
}

// UploadFile streams the payload to the object store and records the metadata
// row. If the row insert fails the object is removed again so no orphan blob
// is left behind.
func (s *Service) UploadFile(ctx context.Context, ownerID string, in UploadInput) (FileView, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return FileView{}, validationError("file name is required")
	}
	if in.Size <= 0 {
		return FileView{}, validationError("file is empty")
	}

	var folder *string
	if in.FolderID != "" {
		if _, err := s.store.GetFolder(ctx, ownerID, in.FolderID); err != nil {
			return FileView{}, mapNoRows(err, "folder not found")
		}
		folderID := in.FolderID
		folder = &folderID
	}

	key := fmt.Sprintf("%s/%d_%s", ownerID, s.now().UnixNano(), objectSafeName(name))
	if err := s.blob.Put(ctx, blob.BucketUserFiles, key, in.Reader, in.Size, in.ContentType); err != nil {
		return FileView{}, remoteError(err)
	}

	file := store.File{
		ID:          util.NewID("file"),
		OwnerID:     ownerID,
		Name:        name,
		FolderID:    folder,
		StoragePath: key,
		FileType:    in.ContentType,
		FileSize:    in.Size,
	}
	if err := s.store.InsertFile(ctx, file); err != nil {
		if removeErr := s.blob.Remove(ctx, blob.BucketUserFiles, key); removeErr != nil {
			log.Printf("upload rollback: remove %s: %v", key, removeErr)
		}
		return FileView{}, err
	}
	return s.fileView(ctx, file), nil
}

// FileDownloadURL signs a one-hour GET URL for the stored object.
func (s *Service) FileDownloadURL(ctx context.Context, ownerID, fileID string) (string, error) {
	file, err := s.store.GetFile(ctx, ownerID, fileID)
	if err != nil {
		return "", mapNoRows(err, "file not found")
	}
	url, err := s.blob.SignedURL(ctx, blob.BucketUserFiles, file.StoragePath, time.Hour)
	if err != nil {
		return "", remoteError(err)
	}
	return url, nil
}

// TrashFile soft-deletes; re-trashing is a silent no-op so the expiry clock
// never restarts.
func (s *Service) TrashFile(ctx context.Context, ownerID, fileID string) error {
	if _, err := s.store.GetFile(ctx, ownerID, fileID); err != nil {
		return mapNoRows(err, "file not found")
	}
	_, err := s.store.SoftDeleteFile(ctx, ownerID, fileID)
	return err
}

// RestoreFile is a silent no-op when the file is already active. folder_id is
// left as-is even when the folder no longer exists.
func (s *Service) RestoreFile(ctx context.Context, ownerID, fileID string) error {
	if _, err := s.store.GetFile(ctx, ownerID, fileID); err != nil {
		return mapNoRows(err, "file not found")
	}
	_, err := s.store.RestoreFile(ctx, ownerID, fileID)
	return err
}

// PurgeFile permanently removes a file: the stored object first, then the
// metadata row. If the object delete fails the row stays so the purge can be
// retried; a metadata row without a blob would be unrecoverable, the reverse
// is just a retry.
func (s *Service) PurgeFile(ctx context.Context, ownerID, fileID string) error {
	file, err := s.store.GetFile(ctx, ownerID, fileID)
	if err != nil {
		return mapNoRows(err, "file not found")
	}
	if err := s.blob.Remove(ctx, blob.BucketUserFiles, file.StoragePath); err != nil {
		return remoteError(err)
	}
	deleted, err := s.store.DeleteFile(ctx, ownerID, fileID)
	if err != nil {
		return err
	}
	if !deleted {
		return notFoundError("file not found")
	}
	return nil
}

func (s *Service) EmptyFileTrash(ctx context.Context, ownerID string) (BatchResult, error) {
	files, err := s.store.ListTrashedFiles(ctx, ownerID)
	if err != nil {
		return BatchResult{}, err
	}
	result := newBatchResult()
	for _, f := range files {
		if err := s.PurgeFile(ctx, ownerID, f.ID); err != nil {
			result.fail(f.ID, err)
			continue
		}
		result.ok(f.ID)
	}
	return result, result.Err()
}

func (s *Service) BulkTrashFiles(ctx context.Context, ownerID string, ids []string) (BatchResult, error) {
	return s.fanOut(selection.KindFile, ids, func(id string) error {
		return s.TrashFile(ctx, ownerID, id)
	})
}

func (s *Service) BulkRestoreFiles(ctx context.Context, ownerID string, ids []string) (BatchResult, error) {
	return s.fanOut(selection.KindFile, ids, func(id string) error {
		return s.RestoreFile(ctx, ownerID, id)
	})
}

func (s *Service) BulkPurgeFiles(ctx context.Context, ownerID string, ids []string) (BatchResult, error) {
	return s.fanOut(selection.KindFile, ids, func(id string) error {
		return s.PurgeFile(ctx, ownerID, id)
	})
}

// UploadAvatar stores the image in the public avatars bucket and records the
// resulting URL on the user row.
func (s *Service) UploadAvatar(ctx context.Context, userID string, contentType string, size int64, reader io.Reader) (string, error) {
	if size <= 0 {
		return "", validationError("avatar is empty")
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", validationError("avatar must be an image")
	}
	key := fmt.Sprintf("%s/%d", userID, s.now().UnixNano())
	if err := s.blob.Put(ctx, blob.BucketAvatars, key, reader, size, contentType); err != nil {
		return "", remoteError(err)
	}
	url := s.blob.PublicURL(blob.BucketAvatars, key)
	if err := s.store.UpdateUserAvatar(ctx, userID, url); err != nil {
		return "", err
	}
	return url, nil
}

// objectSafeName strips characters that complicate object keys.
func objectSafeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "file"
	}
	return b.String()
}
