package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"stash/api/internal/store"
)

func TestPurgeFileRemovesBlobBeforeRow(t *testing.T) {
	var order []string
	fs := &fakeStore{
		getFileFn: func(_ context.Context, ownerID, fileID string) (store.File, error) {
			return store.File{ID: fileID, OwnerID: ownerID, StoragePath: "user-1/123_report.pdf"}, nil
		},
		deleteFileFn: func(_ context.Context, ownerID, fileID string) (bool, error) {
			order = append(order, "row")
			return true, nil
		},
	}
	svc := newTestService(fs)
	blobFake := svc.blob.(*fakeBlob)

	if err := svc.PurgeFile(context.Background(), "user-1", "file-1"); err != nil {
		t.Fatalf("PurgeFile() error = %v", err)
	}
	if len(blobFake.calls) != 1 || blobFake.calls[0].op != "remove" {
		t.Fatalf("expected one blob removal, got %v", blobFake.calls)
	}
	if blobFake.calls[0].key != "user-1/123_report.pdf" || blobFake.calls[0].bucket != "user-files" {
		t.Fatalf("unexpected blob target %+v", blobFake.calls[0])
	}
	if len(order) != 1 {
		t.Fatalf("expected the metadata row deleted, got %v", order)
	}
}

func TestPurgeFileKeepsRowWhenBlobDeleteFails(t *testing.T) {
	rowDeleted := false
	fs := &fakeStore{
		deleteFileFn: func(_ context.Context, ownerID, fileID string) (bool, error) {
			rowDeleted = true
			return true, nil
		},
	}
	svc := newTestService(fs)
	svc.blob.(*fakeBlob).removeErr = errors.New("bucket offline")

	err := svc.PurgeFile(context.Background(), "user-1", "file-1")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "REMOTE_ERROR" {
		t.Fatalf("expected REMOTE_ERROR, got %v", err)
	}
	if rowDeleted {
		t.Fatal("metadata row must survive a failed blob delete so the purge can be retried")
	}
}

func TestUploadFileRollsBackBlobOnInsertFailure(t *testing.T) {
	fs := &fakeStore{
		insertFileFn: func(_ context.Context, f store.File) error {
			return errors.New("insert file: unique violation")
		},
	}
	svc := newTestService(fs)
	blobFake := svc.blob.(*fakeBlob)

	_, err := svc.UploadFile(context.Background(), "user-1", UploadInput{
		Name:        "report.pdf",
		ContentType: "application/pdf",
		Size:        4,
		Reader:      strings.NewReader("data"),
	})
	if err == nil {
		t.Fatal("expected upload failure")
	}
	if len(blobFake.calls) != 2 || blobFake.calls[0].op != "put" || blobFake.calls[1].op != "remove" {
		t.Fatalf("expected put then rollback remove, got %v", blobFake.calls)
	}
	if blobFake.calls[0].key != blobFake.calls[1].key {
		t.Fatal("rollback must target the uploaded key")
	}
}

func TestUploadFileSanitizesObjectKey(t *testing.T) {
	var inserted store.File
	fs := &fakeStore{
		insertFileFn: func(_ context.Context, f store.File) error {
			inserted = f
			return nil
		},
	}
	svc := newTestService(fs)
	svc.now = func() time.Time { return time.Unix(0, 42) }

	view, err := svc.UploadFile(context.Background(), "user-1", UploadInput{
		Name:        "q3 report (final).pdf",
		ContentType: "application/pdf",
		Size:        4,
		Reader:      strings.NewReader("data"),
	})
	if err != nil {
		t.Fatalf("UploadFile() error = %v", err)
	}
	if inserted.StoragePath != "user-1/42_q3_report_final.pdf" {
		t.Fatalf("unexpected storage path %q", inserted.StoragePath)
	}
	if inserted.Name != "q3 report (final).pdf" {
		t.Fatalf("display name must keep its original form, got %q", inserted.Name)
	}
	if view.URL == "" {
		t.Fatal("expected a signed download url on the returned view")
	}
}

func TestBulkTrashFilesDeduplicatesSelection(t *testing.T) {
	var calls []string
	fs := &fakeStore{
		softDeleteFileFn: func(_ context.Context, ownerID, fileID string) (bool, error) {
			calls = append(calls, fileID)
			return true, nil
		},
	}
	svc := newTestService(fs)

	result, err := svc.BulkTrashFiles(context.Background(), "user-1", []string{"b", "a", "b", "a"})
	if err != nil {
		t.Fatalf("BulkTrashFiles() error = %v", err)
	}
	if len(calls) != 2 || calls[0] != "a" || calls[1] != "b" {
		t.Fatalf("expected deduplicated sorted fan-out, got %v", calls)
	}
	if len(result.Succeeded) != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestEmptyFileTrashPurgesEverything(t *testing.T) {
	purged := []string{}
	fs := &fakeStore{
		listTrashedFilesFn: func(_ context.Context, ownerID string) ([]store.File, error) {
			return []store.File{
				{ID: "file-1", StoragePath: "user-1/1_a"},
				{ID: "file-2", StoragePath: "user-1/2_b"},
			}, nil
		},
		deleteFileFn: func(_ context.Context, ownerID, fileID string) (bool, error) {
			purged = append(purged, fileID)
			return true, nil
		},
	}
	svc := newTestService(fs)

	result, err := svc.EmptyFileTrash(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("EmptyFileTrash() error = %v", err)
	}
	if len(purged) != 2 || len(result.Succeeded) != 2 {
		t.Fatalf("expected both files purged, got purged=%v result=%+v", purged, result)
	}
}

func TestUploadAvatarRequiresImage(t *testing.T) {
	svc := newTestService(&fakeStore{})
	if _, err := svc.UploadAvatar(context.Background(), "user-1", "application/zip", 10, strings.NewReader("xx")); err == nil {
		t.Fatal("expected non-image rejection")
	}

	url, err := svc.UploadAvatar(context.Background(), "user-1", "image/png", 10, strings.NewReader("xx"))
	if err != nil {
		t.Fatalf("UploadAvatar() error = %v", err)
	}
	if !strings.Contains(url, "avatars") {
		t.Fatalf("expected public avatars url, got %q", url)
	}
}
