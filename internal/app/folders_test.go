package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"stash/api/internal/store"
)

// treeStore backs folder tests with an in-memory tree instead of per-method
// function fields; cascade tests need consistent reads across many calls.
type treeStore struct {
	fakeStore
	folders map[string]store.Folder
	files   map[string]store.File

	softDeleteErr map[string]error
	deleted       []string
}

func newTreeStore() *treeStore {
	ts := &treeStore{
		folders:       map[string]store.Folder{},
		files:         map[string]store.File{},
		softDeleteErr: map[string]error{},
	}
	ts.getFolderFn = func(_ context.Context, ownerID, folderID string) (store.Folder, error) {
		f, ok := ts.folders[folderID]
		if !ok {
			return store.Folder{}, errors.New("folder not found")
		}
		return f, nil
	}
	ts.listChildFoldersFn = func(_ context.Context, ownerID string, parentID *string) ([]store.Folder, error) {
		children := []store.Folder{}
		for _, f := range ts.folders {
			if parentID == nil && f.ParentID == nil {
				children = append(children, f)
			}
			if parentID != nil && f.ParentID != nil && *f.ParentID == *parentID {
				children = append(children, f)
			}
		}
		return children, nil
	}
	ts.listFilesInFolderFn = func(_ context.Context, ownerID, folderID string) ([]store.File, error) {
		files := []store.File{}
		for _, f := range ts.files {
			if f.FolderID != nil && *f.FolderID == folderID {
				files = append(files, f)
			}
		}
		return files, nil
	}
	ts.softDeleteFileFn = func(_ context.Context, ownerID, fileID string) (bool, error) {
		if err := ts.softDeleteErr[fileID]; err != nil {
			return false, err
		}
		f := ts.files[fileID]
		now := time.Now()
		f.DeletedAt = &now
		ts.files[fileID] = f
		return true, nil
	}
	ts.deleteFolderFn = func(_ context.Context, ownerID, folderID string) (bool, error) {
		if _, ok := ts.folders[folderID]; !ok {
			return false, nil
		}
		delete(ts.folders, folderID)
		ts.deleted = append(ts.deleted, folderID)
		return true, nil
	}
	ts.setFolderParentFn = func(_ context.Context, ownerID, folderID string, parentID *string) (bool, error) {
		f, ok := ts.folders[folderID]
		if !ok {
			return false, nil
		}
		f.ParentID = parentID
		ts.folders[folderID] = f
		return true, nil
	}
	return ts
}

func (ts *treeStore) addFolder(id, parentID string) {
	f := store.Folder{ID: id, OwnerID: "user-1", Name: id}
	if parentID != "" {
		p := parentID
		f.ParentID = &p
	}
	ts.folders[id] = f
}

func (ts *treeStore) addFile(id, folderID string) {
	f := store.File{ID: id, OwnerID: "user-1", Name: id}
	if folderID != "" {
		p := folderID
		f.FolderID = &p
	}
	ts.files[id] = f
}

func TestDeleteFolderRecursiveTrashesFilesAndRemovesFolders(t *testing.T) {
	ts := newTreeStore()
	ts.addFolder("root", "")
	ts.addFolder("child", "root")
	ts.addFolder("grandchild", "child")
	ts.addFile("f1", "root")
	ts.addFile("f2", "grandchild")

	svc := newTestService(&ts.fakeStore)

	result, err := svc.DeleteFolderRecursive(context.Background(), "user-1", "root")
	if err != nil {
		t.Fatalf("DeleteFolderRecursive() error = %v", err)
	}
	if len(result.Failed) != 0 {
		t.Fatalf("expected clean cascade, failed=%v", result.Failed)
	}
	for _, id := range []string{"f1", "f2"} {
		if ts.files[id].DeletedAt == nil {
			t.Fatalf("expected file %s trashed", id)
		}
	}
	if len(ts.folders) != 0 {
		t.Fatalf("expected all folders removed, still have %v", ts.folders)
	}
	// Children must fall before their parents.
	pos := map[string]int{}
	for i, id := range ts.deleted {
		pos[id] = i
	}
	if !(pos["grandchild"] < pos["child"] && pos["child"] < pos["root"]) {
		t.Fatalf("expected deepest-first folder removal, got %v", ts.deleted)
	}
}

func TestDeleteFolderRecursiveCollectsPerItemFailures(t *testing.T) {
	ts := newTreeStore()
	ts.addFolder("root", "")
	ts.addFile("good-1", "root")
	ts.addFile("stuck", "root")
	ts.addFile("good-2", "root")
	ts.softDeleteErr["stuck"] = fmt.Errorf("trash file: connection reset")

	svc := newTestService(&ts.fakeStore)

	result, err := svc.DeleteFolderRecursive(context.Background(), "user-1", "root")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "PARTIAL_FAILURE" {
		t.Fatalf("expected PARTIAL_FAILURE, got %v", err)
	}
	if len(result.Failed) != 1 || result.Failed[0].ID != "stuck" {
		t.Fatalf("expected only stuck to fail, got %v", result.Failed)
	}
	// The stuck file must not shield its siblings or the folder itself.
	if ts.files["good-1"].DeletedAt == nil || ts.files["good-2"].DeletedAt == nil {
		t.Fatal("expected sibling files trashed despite the failure")
	}
	if _, ok := ts.folders["root"]; ok {
		t.Fatal("expected folder row removed despite the failure")
	}
}

func TestDeleteFolderRecursiveSkipsAlreadyTrashedFiles(t *testing.T) {
	ts := newTreeStore()
	ts.addFolder("root", "")
	ts.addFile("old", "root")
	past := time.Now().Add(-72 * time.Hour)
	f := ts.files["old"]
	f.DeletedAt = &past
	ts.files["old"] = f

	svc := newTestService(&ts.fakeStore)

	if _, err := svc.DeleteFolderRecursive(context.Background(), "user-1", "root"); err != nil {
		t.Fatalf("DeleteFolderRecursive() error = %v", err)
	}
	if !ts.files["old"].DeletedAt.Equal(past) {
		t.Fatal("expected the existing trash timestamp to be preserved")
	}
}

func TestFolderBreadcrumbStartsAtSyntheticRoot(t *testing.T) {
	ts := newTreeStore()
	ts.addFolder("a", "")
	ts.addFolder("b", "a")
	ts.addFolder("c", "b")

	svc := newTestService(&ts.fakeStore)

	path, err := svc.FolderBreadcrumb(context.Background(), "user-1", "c")
	if err != nil {
		t.Fatalf("FolderBreadcrumb() error = %v", err)
	}
	want := []store.BreadcrumbEntry{
		{ID: "", Name: "My Files"},
		{ID: "a", Name: "a"},
		{ID: "b", Name: "b"},
		{ID: "c", Name: "c"},
	}
	if len(path) != len(want) {
		t.Fatalf("expected %d entries, got %v", len(want), path)
	}
	for i := range want {
		if path[i] != want[i] {
			t.Fatalf("entry %d = %+v, expected %+v", i, path[i], want[i])
		}
	}
}

func TestFolderBreadcrumbDetectsCorruptCycle(t *testing.T) {
	ts := newTreeStore()
	ts.addFolder("a", "b")
	ts.addFolder("b", "a")

	svc := newTestService(&ts.fakeStore)

	if _, err := svc.FolderBreadcrumb(context.Background(), "user-1", "a"); err == nil {
		t.Fatal("expected cycle detection to fail the walk")
	}
}

func TestMoveFolderIntoOwnDescendantRejected(t *testing.T) {
	ts := newTreeStore()
	ts.addFolder("parent", "")
	ts.addFolder("child", "parent")
	ts.addFolder("grandchild", "child")

	svc := newTestService(&ts.fakeStore)

	err := svc.MoveFolder(context.Background(), "user-1", "parent", "grandchild")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "CYCLE_ERROR" {
		t.Fatalf("expected CYCLE_ERROR, got %v", err)
	}

	if err := svc.MoveFolder(context.Background(), "user-1", "parent", "parent"); err == nil {
		t.Fatal("expected self-move rejection")
	}

	// A sibling move is legal.
	ts.addFolder("other", "")
	if err := svc.MoveFolder(context.Background(), "user-1", "child", "other"); err != nil {
		t.Fatalf("expected legal move, got %v", err)
	}
	if *ts.folders["child"].ParentID != "other" {
		t.Fatalf("expected child re-parented to other, got %v", ts.folders["child"].ParentID)
	}
}

func TestCreateFolderValidatesNameAndParent(t *testing.T) {
	ts := newTreeStore()
	svc := newTestService(&ts.fakeStore)

	if _, err := svc.CreateFolder(context.Background(), "user-1", "  ", ""); err == nil {
		t.Fatal("expected empty name rejection")
	}
	if _, err := svc.CreateFolder(context.Background(), "user-1", "docs", "missing"); err == nil {
		t.Fatal("expected missing parent rejection")
	}

	ts.addFolder("existing", "")
	folder, err := svc.CreateFolder(context.Background(), "user-1", "  docs  ", "existing")
	if err != nil {
		t.Fatalf("CreateFolder() error = %v", err)
	}
	if folder.Name != "docs" || folder.ParentID == nil || *folder.ParentID != "existing" {
		t.Fatalf("unexpected folder %+v", folder)
	}
}
