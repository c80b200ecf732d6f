package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"stash/api/internal/auth"
	"stash/api/internal/authpw"
	"stash/api/internal/blob"
	"stash/api/internal/config"
	"stash/api/internal/export"
	"stash/api/internal/search"
	"stash/api/internal/selection"
	"stash/api/internal/store"
	"stash/api/internal/trash"
	"stash/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	JTI          string
	ExpiresAt    time.Time
}

// categoryColors is the fixed palette; category colors are stored as the
// styling token the client renders with.
var categoryColors = map[string]struct{}{
	"bg-red-500":    {},
	"bg-blue-500":   {},
	"bg-green-500":  {},
	"bg-yellow-500": {},
	"bg-purple-500": {},
	"bg-pink-500":   {},
	"bg-orange-500": {},
	"bg-teal-500":   {},
}

type dataStore interface {
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, user store.User) error
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByID(ctx context.Context, userID string) (store.User, error)
	UpdateUserAvatar(ctx context.Context, userID, avatarURL string) error

	InsertNote(ctx context.Context, n store.Note) error
	GetNote(ctx context.Context, ownerID, noteID string) (store.Note, error)
	ListNotes(ctx context.Context, ownerID string) ([]store.Note, error)
	ListStarredNotes(ctx context.Context, ownerID string) ([]store.Note, error)
	ListTrashedNotes(ctx context.Context, ownerID string) ([]store.Note, error)
	UpdateNote(ctx context.Context, n store.Note) (bool, error)
	SetNoteStarred(ctx context.Context, ownerID, noteID string, starred bool) (bool, error)
	SetNotePinned(ctx context.Context, ownerID, noteID string, pinned bool) (bool, error)
	SoftDeleteNote(ctx context.Context, ownerID, noteID string) (bool, error)
	RestoreNote(ctx context.Context, ownerID, noteID string) (bool, error)
	DeleteNote(ctx context.Context, ownerID, noteID string) (bool, error)

	InsertCategory(ctx context.Context, c store.Category) error
	ListCategories(ctx context.Context, ownerID string) ([]store.Category, error)
	UpdateCategory(ctx context.Context, ownerID, categoryID, name, color string) (bool, error)
	DeleteCategory(ctx context.Context, ownerID, categoryID string) (bool, error)

	InsertFolder(ctx context.Context, f store.Folder) error
	GetFolder(ctx context.Context, ownerID, folderID string) (store.Folder, error)
	ListChildFolders(ctx context.Context, ownerID string, parentID *string) ([]store.Folder, error)
	RenameFolder(ctx context.Context, ownerID, folderID, name string) (bool, error)
	SetFolderParent(ctx context.Context, ownerID, folderID string, parentID *string) (bool, error)
	DeleteFolder(ctx context.Context, ownerID, folderID string) (bool, error)

	InsertFile(ctx context.Context, f store.File) error
	GetFile(ctx context.Context, ownerID, fileID string) (store.File, error)
	ListFiles(ctx context.Context, ownerID string, folderID *string) ([]store.File, error)
	ListFilesInFolder(ctx context.Context, ownerID, folderID string) ([]store.File, error)
	ListTrashedFiles(ctx context.Context, ownerID string) ([]store.File, error)
	SoftDeleteFile(ctx context.Context, ownerID, fileID string) (bool, error)
	RestoreFile(ctx context.Context, ownerID, fileID string) (bool, error)
	SetFileFolder(ctx context.Context, ownerID, fileID string, folderID *string) (bool, error)
	DeleteFile(ctx context.Context, ownerID, fileID string) (bool, error)
}

type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type blobStore interface {
	Put(ctx context.Context, bucket, key string, reader io.Reader, size int64, contentType string) error
	Remove(ctx context.Context, bucket, key string) error
	SignedURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
	PublicURL(bucket, key string) string
}

type noteIndex interface {
	Search(ctx context.Context, q search.Query) search.Response
	IndexNote(record search.NoteRecord)
	DeleteNote(id string)
}

type noteExporter interface {
	NotePDF(note store.Note) (*export.Result, error)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	blob     blobStore
	search   noteIndex
	export   noteExporter
	passwords *authpw.Service
	now      func() time.Time
}

func New(cfg config.Config, dataStore *store.PostgresStore, blobClient *blob.Client, searchService *search.Service, exportService *export.Service) *Service {
	return &Service{
		cfg:       cfg,
		store:     dataStore,
		sessions:  dataStore,
		blob:      blobClient,
		search:    searchService,
		export:    exportService,
		passwords: authpw.NewService(dataStore),
		now:       time.Now,
	}
}

// NewWithSessionStore uses a dedicated refresh-token backend (Redis) instead
// of the Postgres fallback.
func NewWithSessionStore(cfg config.Config, dataStore *store.PostgresStore, sessions sessionStore, blobClient *blob.Client, searchService *search.Service, exportService *export.Service) *Service {
	service := New(cfg, dataStore, blobClient, searchService, exportService)
	service.sessions = sessions
	return service
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ---- sessions ----

func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (Session, error) {
	user, err := s.passwords.SignUp(ctx, authpw.SignUpRequest{
		Email:       email,
		Password:    password,
		DisplayName: displayName,
	})
	if err != nil {
		return Session{}, err
	}
	return s.CreateSession(ctx, user)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	user, err := s.passwords.SignIn(ctx, email, password)
	if err != nil {
		return Session{}, err
	}
	return s.CreateSession(ctx, user)
}

func (s *Service) CreateSession(ctx context.Context, user store.User) (Session, error) {
	jti := util.NewID("jti")
	expiresAt := s.now().Add(s.cfg.AccessTTL)
	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}

	refreshToken, err := randomToken()
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refreshToken), user.ID, s.now().Add(s.cfg.RefreshTTL)); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refreshToken,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	found, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, found.ID)
	if err != nil {
		return Session{}, err
	}
	// Rotate: the presented token is single-use.
	_ = s.sessions.RevokeRefreshSession(ctx, tokenHash)
	return s.CreateSession(ctx, user)
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	return Session{
		UserID:    claims.Sub,
		UserName:  claims.Name,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func randomToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// ---- notes ----

type NoteInput struct {
	Title    string
	Content  string
	Category string
	Link     string
	Images   []string
}

// TrashedNote is a note annotated with its retention countdown for the trash
// view.
type TrashedNote struct {
	store.Note
	DaysRemaining int
	Urgent        bool
}

func (s *Service) GetNote(ctx context.Context, ownerID, noteID string) (store.Note, error) {
	return s.store.GetNote(ctx, ownerID, noteID)
}

func (s *Service) ListNotes(ctx context.Context, ownerID string) ([]store.Note, error) {
	return s.store.ListNotes(ctx, ownerID)
}

func (s *Service) ListStarredNotes(ctx context.Context, ownerID string) ([]store.Note, error) {
	return s.store.ListStarredNotes(ctx, ownerID)
}

func (s *Service) ListTrashedNotes(ctx context.Context, ownerID string) ([]TrashedNote, error) {
	notes, err := s.store.ListTrashedNotes(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	annotated := make([]TrashedNote, 0, len(notes))
	for _, n := range notes {
		annotated = append(annotated, TrashedNote{
			Note:          n,
			DaysRemaining: trash.DaysRemaining(now, n.DeletedAt),
			Urgent:        trash.Urgent(now, n.DeletedAt),
		})
	}
	return annotated, nil
}

func (s *Service) CreateNote(ctx context.Context, ownerID string, in NoteInput) (store.Note, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return store.Note{}, validationError("title is required")
	}
	imageField, err := blob.EncodeImageList(in.Images)
	if err != nil {
		return store.Note{}, validationError(err.Error())
	}

	note := store.Note{
		ID:       util.NewID("note"),
		OwnerID:  ownerID,
		Title:    title,
		Content:  in.Content,
		Category: strings.TrimSpace(in.Category),
		Link:     strings.TrimSpace(in.Link),
		ImageURL: imageField,
	}
	if err := s.store.InsertNote(ctx, note); err != nil {
		return store.Note{}, err
	}
	s.indexNote(note)
	return s.store.GetNote(ctx, ownerID, note.ID)
}

func (s *Service) UpdateNote(ctx context.Context, ownerID, noteID string, in NoteInput) (store.Note, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return store.Note{}, validationError("title is required")
	}
	imageField, err := blob.EncodeImageList(in.Images)
	if err != nil {
		return store.Note{}, validationError(err.Error())
	}

	updated, err := s.store.UpdateNote(ctx, store.Note{
		ID:       noteID,
		OwnerID:  ownerID,
		Title:    title,
		Content:  in.Content,
		Category: strings.TrimSpace(in.Category),
		Link:     strings.TrimSpace(in.Link),
		ImageURL: imageField,
	})
	if err != nil {
		return store.Note{}, err
	}
	if !updated {
		return store.Note{}, notFoundError("note not found")
	}
	note, err := s.store.GetNote(ctx, ownerID, noteID)
	if err != nil {
		return store.Note{}, err
	}
	s.indexNote(note)
	return note, nil
}

func (s *Service) SetNoteStarred(ctx context.Context, ownerID, noteID string, starred bool) error {
	updated, err := s.store.SetNoteStarred(ctx, ownerID, noteID, starred)
	if err != nil {
		return err
	}
	if !updated {
		return notFoundError("note not found")
	}
	return nil
}

func (s *Service) SetNotePinned(ctx context.Context, ownerID, noteID string, pinned bool) error {
	updated, err := s.store.SetNotePinned(ctx, ownerID, noteID, pinned)
	if err != nil {
		return err
	}
	if !updated {
		return notFoundError("note not found")
	}
	return nil
}

// TrashNote soft-deletes. Already-trashed notes are a silent no-op so the
// trash clock never restarts.
func (s *Service) TrashNote(ctx context.Context, ownerID, noteID string) error {
	if _, err := s.store.GetNote(ctx, ownerID, noteID); err != nil {
		return err
	}
	if _, err := s.store.SoftDeleteNote(ctx, ownerID, noteID); err != nil {
		return err
	}
	s.search.DeleteNote(noteID)
	return nil
}

// RestoreNote is a silent no-op when the note is already active.
func (s *Service) RestoreNote(ctx context.Context, ownerID, noteID string) error {
	note, err := s.store.GetNote(ctx, ownerID, noteID)
	if err != nil {
		return err
	}
	if _, err := s.store.RestoreNote(ctx, ownerID, noteID); err != nil {
		return err
	}
	s.indexNote(note)
	return nil
}

// PurgeNote permanently removes the note row, then its image attachments.
// Attachment deletes are independent: one failure does not block the others,
// and the row is already gone either way.
func (s *Service) PurgeNote(ctx context.Context, ownerID, noteID string) error {
	note, err := s.store.GetNote(ctx, ownerID, noteID)
	if err != nil {
		return err
	}
	deleted, err := s.store.DeleteNote(ctx, ownerID, noteID)
	if err != nil {
		return err
	}
	if !deleted {
		return notFoundError("note not found")
	}
	s.search.DeleteNote(noteID)
	s.purgeImageList(ctx, note.ImageURL)
	return nil
}

// purgeImageList deletes every attachment in a comma-joined URL field,
// resolving each URL to its bucket and key. Fire-and-continue.
func (s *Service) purgeImageList(ctx context.Context, imageField string) {
	for _, rawURL := range blob.DecodeImageList(imageField) {
		key := blob.ObjectKeyFromURL(rawURL)
		if key == "" {
			log.Printf("purge: cannot derive object key from %q", rawURL)
			continue
		}
		bucket := blob.BucketForURL(rawURL)
		if err := s.blob.Remove(ctx, bucket, key); err != nil {
			log.Printf("purge: remove %s/%s: %v", bucket, key, err)
		}
	}
}

func (s *Service) EmptyNoteTrash(ctx context.Context, ownerID string) (BatchResult, error) {
	notes, err := s.store.ListTrashedNotes(ctx, ownerID)
	if err != nil {
		return BatchResult{}, err
	}
	result := newBatchResult()
	for _, n := range notes {
		if err := s.PurgeNote(ctx, ownerID, n.ID); err != nil {
			result.fail(n.ID, err)
			continue
		}
		result.ok(n.ID)
	}
	return result, result.Err()
}

func (s *Service) BulkRestoreNotes(ctx context.Context, ownerID string, ids []string) (BatchResult, error) {
	return s.fanOut(selection.KindNote, ids, func(id string) error {
		return s.RestoreNote(ctx, ownerID, id)
	})
}

func (s *Service) BulkPurgeNotes(ctx context.Context, ownerID string, ids []string) (BatchResult, error) {
	return s.fanOut(selection.KindNote, ids, func(id string) error {
		return s.PurgeNote(ctx, ownerID, id)
	})
}

// fanOut applies op to every selected id, fire-and-continue. The ids travel
// through a selection.Set so duplicates collapse and ordering is
// deterministic.
func (s *Service) fanOut(kind selection.Kind, ids []string, op func(id string) error) (BatchResult, error) {
	selected := selection.NewSet()
	for _, id := range ids {
		if !selected.Contains(kind, id) {
			selected.Toggle(kind, id)
		}
	}
	result := newBatchResult()
	for _, id := range selected.IDs(kind) {
		if err := op(id); err != nil {
			result.fail(id, err)
			continue
		}
		result.ok(id)
	}
	return result, result.Err()
}

func (s *Service) SearchNotes(ctx context.Context, ownerID, text string) search.Response {
	return s.search.Search(ctx, search.Query{OwnerID: ownerID, Text: text})
}

func (s *Service) ExportNotePDF(ctx context.Context, ownerID, noteID string) (*export.Result, error) {
	note, err := s.store.GetNote(ctx, ownerID, noteID)
	if err != nil {
		return nil, err
	}
	return s.export.NotePDF(note)
}

func (s *Service) indexNote(note store.Note) {
	s.search.IndexNote(search.NoteRecord{
		ID:       note.ID,
		OwnerID:  note.OwnerID,
		Title:    note.Title,
		Content:  note.Content,
		Category: note.Category,
	})
}

// ---- categories ----

func (s *Service) ListCategories(ctx context.Context, ownerID string) ([]store.Category, error) {
	return s.store.ListCategories(ctx, ownerID)
}

func (s *Service) CreateCategory(ctx context.Context, ownerID, name, color string) (store.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Category{}, validationError("category name is required")
	}
	if _, ok := categoryColors[color]; !ok {
		return store.Category{}, validationError("unknown category color")
	}
	category := store.Category{
		ID:      util.NewID("cat"),
		OwnerID: ownerID,
		Name:    name,
		Color:   color,
	}
	if err := s.store.InsertCategory(ctx, category); err != nil {
		return store.Category{}, err
	}
	return category, nil
}

func (s *Service) UpdateCategory(ctx context.Context, ownerID, categoryID, name, color string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return validationError("category name is required")
	}
	if _, ok := categoryColors[color]; !ok {
		return validationError("unknown category color")
	}
	updated, err := s.store.UpdateCategory(ctx, ownerID, categoryID, name, color)
	if err != nil {
		return err
	}
	if !updated {
		return notFoundError("category not found")
	}
	return nil
}

// DeleteCategory removes the category only. Notes referencing its name keep
// the reference; the category relation is by name and the referent is allowed
// to be missing.
func (s *Service) DeleteCategory(ctx context.Context, ownerID, categoryID string) error {
	deleted, err := s.store.DeleteCategory(ctx, ownerID, categoryID)
	if err != nil {
		return err
	}
	if !deleted {
		return notFoundError("category not found")
	}
	return nil
}
