package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"stash/api/internal/auth"
	"stash/api/internal/authpw"
	"stash/api/internal/blob"
	"stash/api/internal/export"
	"stash/api/internal/store"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}
		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{"status": "error", "error": err.Error()}
		}
		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	// Auth routes, no session required.
	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signup" {
		s.handleSignUp(w, r)
		return
	}
	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signin" {
		s.handleSignIn(w, r)
		return
	}
	if r.Method == http.MethodPost && r.URL.Path == "/api/session/refresh" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		session, err := s.service.Refresh(r.Context(), body.RefreshToken)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
			return
		}
		writeJSON(w, http.StatusOK, sessionJSON(session))
		return
	}
	if r.Method == http.MethodPost && r.URL.Path == "/api/session/logout" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = decodeBody(r, &body)
		_ = s.service.Logout(r.Context(), body.RefreshToken)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		token := bearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
			return
		}
		session, err := s.service.SessionFromToken(r.Context(), token)
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"authenticated": true,
			"userName":      session.UserName,
			"userId":        session.UserID,
		})
		return
	}

	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch parts[1] {
	case "notes":
		s.handleNotes(w, r, session, parts)
	case "categories":
		s.handleCategories(w, r, session, parts)
	case "folders":
		s.handleFolders(w, r, session, parts)
	case "files":
		s.handleFiles(w, r, session, parts)
	case "profile":
		s.handleProfile(w, r, session, parts)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

// ---- notes ----

func (s *HTTPServer) handleNotes(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	// /api/notes
	if len(parts) == 2 {
		if r.Method == http.MethodGet {
			notes, err := s.service.ListNotes(r.Context(), session.UserID)
			if err != nil {
				writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"notes": notesJSON(notes)})
			return
		}
		if r.Method == http.MethodPost {
			input, ok := decodeNoteInput(w, r)
			if !ok {
				return
			}
			note, err := s.service.CreateNote(r.Context(), session.UserID, input)
			if err != nil {
				writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{"note": noteJSON(note)})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	// /api/notes/starred | trash | search
	if len(parts) == 3 && r.Method == http.MethodGet {
		switch parts[2] {
		case "starred":
			notes, err := s.service.ListStarredNotes(r.Context(), session.UserID)
			if err != nil {
				writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"notes": notesJSON(notes)})
			return
		case "trash":
			notes, err := s.service.ListTrashedNotes(r.Context(), session.UserID)
			if err != nil {
				writeMapped(w, err)
				return
			}
			items := make([]map[string]any, 0, len(notes))
			for _, n := range notes {
				item := noteJSON(n.Note)
				item["daysRemaining"] = n.DaysRemaining
				item["urgent"] = n.Urgent
				items = append(items, item)
			}
			writeJSON(w, http.StatusOK, map[string]any{"notes": items})
			return
		case "search":
			q := strings.TrimSpace(r.URL.Query().Get("q"))
			response := s.service.SearchNotes(r.Context(), session.UserID, q)
			writeJSON(w, http.StatusOK, response)
			return
		}
	}

	// /api/notes/trash/empty
	if len(parts) == 4 && parts[2] == "trash" && parts[3] == "empty" && r.Method == http.MethodPost {
		result, err := s.service.EmptyNoteTrash(r.Context(), session.UserID)
		writeBatch(w, result, err)
		return
	}

	// /api/notes/bulk/{restore,purge}
	if len(parts) == 4 && parts[2] == "bulk" && r.Method == http.MethodPost {
		ids, ok := decodeIDList(w, r)
		if !ok {
			return
		}
		switch parts[3] {
		case "restore":
			result, err := s.service.BulkRestoreNotes(r.Context(), session.UserID, ids)
			writeBatch(w, result, err)
			return
		case "purge":
			result, err := s.service.BulkPurgeNotes(r.Context(), session.UserID, ids)
			writeBatch(w, result, err)
			return
		}
	}

	// /api/notes/{id}[...]
	if len(parts) >= 3 {
		noteID := parts[2]

		if len(parts) == 3 {
			switch r.Method {
			case http.MethodGet:
				note, err := s.service.GetNote(r.Context(), session.UserID, noteID)
				if err != nil {
					writeMapped(w, err)
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{"note": noteJSON(note)})
				return
			case http.MethodPut, http.MethodPatch:
				input, ok := decodeNoteInput(w, r)
				if !ok {
					return
				}
				note, err := s.service.UpdateNote(r.Context(), session.UserID, noteID, input)
				if err != nil {
					writeMapped(w, err)
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{"note": noteJSON(note)})
				return
			case http.MethodDelete:
				if err := s.service.TrashNote(r.Context(), session.UserID, noteID); err != nil {
					writeMapped(w, err)
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{"ok": true})
				return
			}
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}

		if len(parts) == 4 {
			switch {
			case parts[3] == "restore" && r.Method == http.MethodPost:
				if err := s.service.RestoreNote(r.Context(), session.UserID, noteID); err != nil {
					writeMapped(w, err)
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{"ok": true})
				return
			case parts[3] == "purge" && r.Method == http.MethodPost:
				if err := s.service.PurgeNote(r.Context(), session.UserID, noteID); err != nil {
					writeMapped(w, err)
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{"ok": true})
				return
			case parts[3] == "star" && r.Method == http.MethodPost:
				s.handleNoteFlag(w, r, session, noteID, s.service.SetNoteStarred)
				return
			case parts[3] == "pin" && r.Method == http.MethodPost:
				s.handleNoteFlag(w, r, session, noteID, s.service.SetNotePinned)
				return
			case parts[3] == "export.pdf" && r.Method == http.MethodGet:
				result, err := s.service.ExportNotePDF(r.Context(), session.UserID, noteID)
				if err != nil {
					if errors.Is(err, export.ErrPDFDependencyMissing) {
						writeError(w, http.StatusNotImplemented, "EXPORT_UNAVAILABLE", "PDF export is not available on this server", nil)
						return
					}
					writeMapped(w, err)
					return
				}
				w.Header().Set("Content-Disposition", "attachment; filename=\""+result.Filename+"\"")
				w.Header().Set("Content-Type", result.MimeType)
				_, _ = w.Write(result.Data)
				return
			}
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleNoteFlag(w http.ResponseWriter, r *http.Request, session Session, noteID string, set func(ctx context.Context, ownerID, noteID string, value bool) error) {
	var body struct {
		Value bool `json:"value"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if err := set(r.Context(), session.UserID, noteID, body.Value); err != nil {
		writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// ---- categories ----

func (s *HTTPServer) handleCategories(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 2 {
		if r.Method == http.MethodGet {
			categories, err := s.service.ListCategories(r.Context(), session.UserID)
			if err != nil {
				writeMapped(w, err)
				return
			}
			items := make([]map[string]any, 0, len(categories))
			for _, c := range categories {
				items = append(items, categoryJSON(c))
			}
			writeJSON(w, http.StatusOK, map[string]any{"categories": items})
			return
		}
		if r.Method == http.MethodPost {
			var body struct {
				Name  string `json:"name"`
				Color string `json:"color"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			category, err := s.service.CreateCategory(r.Context(), session.UserID, body.Name, body.Color)
			if err != nil {
				writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{"category": categoryJSON(category)})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	if len(parts) == 3 {
		categoryID := parts[2]
		if r.Method == http.MethodPut || r.Method == http.MethodPatch {
			var body struct {
				Name  string `json:"name"`
				Color string `json:"color"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if err := s.service.UpdateCategory(r.Context(), session.UserID, categoryID, body.Name, body.Color); err != nil {
				writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
		if r.Method == http.MethodDelete {
			if err := s.service.DeleteCategory(r.Context(), session.UserID, categoryID); err != nil {
				writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// ---- folders ----

func (s *HTTPServer) handleFolders(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	// /api/folders/children?parent= — direct children of a folder (empty =
	// root). /api/folders/breadcrumb?folder= — path from the root.
	if len(parts) == 3 && parts[2] == "children" && r.Method == http.MethodGet {
		s.writeFolderContents(w, r, session, strings.TrimSpace(r.URL.Query().Get("parent")))
		return
	}
	if len(parts) == 3 && parts[2] == "breadcrumb" && r.Method == http.MethodGet {
		path, err := s.service.FolderBreadcrumb(r.Context(), session.UserID, strings.TrimSpace(r.URL.Query().Get("folder")))
		if err != nil {
			writeMapped(w, err)
			return
		}
		items := make([]map[string]any, 0, len(path))
		for _, entry := range path {
			item := map[string]any{"name": entry.Name}
			if entry.ID == "" {
				item["id"] = nil
			} else {
				item["id"] = entry.ID
			}
			items = append(items, item)
		}
		writeJSON(w, http.StatusOK, map[string]any{"breadcrumb": items})
		return
	}

	// /api/folders — root contents or create
	if len(parts) == 2 {
		if r.Method == http.MethodGet {
			s.writeFolderContents(w, r, session, "")
			return
		}
		if r.Method == http.MethodPost {
			var body struct {
				Name     string `json:"name"`
				ParentID string `json:"parentId"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			folder, err := s.service.CreateFolder(r.Context(), session.UserID, body.Name, body.ParentID)
			if err != nil {
				writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{"folder": folderJSON(folder)})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	folderID := parts[2]

	if len(parts) == 3 {
		if r.Method == http.MethodPut || r.Method == http.MethodPatch {
			var body struct {
				Name string `json:"name"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if err := s.service.RenameFolder(r.Context(), session.UserID, folderID, body.Name); err != nil {
				writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
		if r.Method == http.MethodDelete {
			result, err := s.service.DeleteFolderRecursive(r.Context(), session.UserID, folderID)
			writeBatch(w, result, err)
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	if len(parts) == 4 {
		switch {
		case parts[3] == "move" && r.Method == http.MethodPost:
			var body struct {
				TargetID string `json:"targetId"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if err := s.service.MoveFolder(r.Context(), session.UserID, folderID, body.TargetID); err != nil {
				writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) writeFolderContents(w http.ResponseWriter, r *http.Request, session Session, folderID string) {
	contents, err := s.service.FolderChildren(r.Context(), session.UserID, folderID)
	if err != nil {
		writeMapped(w, err)
		return
	}
	folders := make([]map[string]any, 0, len(contents.Folders))
	for _, f := range contents.Folders {
		folders = append(folders, folderJSON(f))
	}
	files := make([]map[string]any, 0, len(contents.Files))
	for _, f := range contents.Files {
		files = append(files, fileJSON(f))
	}
	writeJSON(w, http.StatusOK, map[string]any{"folders": folders, "files": files})
}

// ---- files ----

func (s *HTTPServer) handleFiles(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	// /api/files — list (?folder= scopes to one folder, empty = root) or upload
	if len(parts) == 2 {
		if r.Method == http.MethodGet {
			files, err := s.service.ListFiles(r.Context(), session.UserID, strings.TrimSpace(r.URL.Query().Get("folder")))
			if err != nil {
				writeMapped(w, err)
				return
			}
			items := make([]map[string]any, 0, len(files))
			for _, f := range files {
				items = append(items, fileJSON(f))
			}
			writeJSON(w, http.StatusOK, map[string]any{"files": items})
			return
		}
		if r.Method == http.MethodPost {
			s.handleFileUpload(w, r, session)
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	if len(parts) == 3 && parts[2] == "trash" && r.Method == http.MethodGet {
		files, err := s.service.ListTrashedFiles(r.Context(), session.UserID)
		if err != nil {
			writeMapped(w, err)
			return
		}
		items := make([]map[string]any, 0, len(files))
		for _, f := range files {
			item := fileJSON(FileView{File: f.File})
			item["daysRemaining"] = f.DaysRemaining
			item["urgent"] = f.Urgent
			items = append(items, item)
		}
		writeJSON(w, http.StatusOK, map[string]any{"files": items})
		return
	}

	if len(parts) == 4 && parts[2] == "trash" && parts[3] == "empty" && r.Method == http.MethodPost {
		result, err := s.service.EmptyFileTrash(r.Context(), session.UserID)
		writeBatch(w, result, err)
		return
	}

	if len(parts) == 4 && parts[2] == "bulk" && r.Method == http.MethodPost {
		ids, ok := decodeIDList(w, r)
		if !ok {
			return
		}
		var (
			result BatchResult
			err    error
		)
		switch parts[3] {
		case "delete":
			result, err = s.service.BulkTrashFiles(r.Context(), session.UserID, ids)
		case "restore":
			result, err = s.service.BulkRestoreFiles(r.Context(), session.UserID, ids)
		case "purge":
			result, err = s.service.BulkPurgeFiles(r.Context(), session.UserID, ids)
		default:
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		writeBatch(w, result, err)
		return
	}

	if len(parts) >= 3 {
		fileID := parts[2]

		if len(parts) == 3 && r.Method == http.MethodDelete {
			if err := s.service.TrashFile(r.Context(), session.UserID, fileID); err != nil {
				writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}

		if len(parts) == 4 {
			switch {
			case parts[3] == "url" && r.Method == http.MethodGet:
				url, err := s.service.FileDownloadURL(r.Context(), session.UserID, fileID)
				if err != nil {
					writeMapped(w, err)
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{"url": url})
				return
			case parts[3] == "move" && r.Method == http.MethodPost:
				var body struct {
					TargetID string `json:"targetId"`
				}
				if err := decodeBody(r, &body); err != nil {
					writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
					return
				}
				if err := s.service.MoveFile(r.Context(), session.UserID, fileID, body.TargetID); err != nil {
					writeMapped(w, err)
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{"ok": true})
				return
			case parts[3] == "restore" && r.Method == http.MethodPost:
				if err := s.service.RestoreFile(r.Context(), session.UserID, fileID); err != nil {
					writeMapped(w, err)
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{"ok": true})
				return
			case parts[3] == "purge" && r.Method == http.MethodPost:
				if err := s.service.PurgeFile(r.Context(), session.UserID, fileID); err != nil {
					writeMapped(w, err)
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{"ok": true})
				return
			}
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

const maxUploadBytes = 100 << 20

func (s *HTTPServer) handleFileUpload(w http.ResponseWriter, r *http.Request, session Session) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "expected multipart form with a file field", nil)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "file field is required", nil)
		return
	}
	defer file.Close()

	view, err := s.service.UploadFile(r.Context(), session.UserID, UploadInput{
		Name:        header.Filename,
		FolderID:    strings.TrimSpace(r.FormValue("folderId")),
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Reader:      file,
	})
	if err != nil {
		writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"file": fileJSON(view)})
}

// ---- profile ----

func (s *HTTPServer) handleProfile(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 3 && parts[2] == "avatar" && r.Method == http.MethodPost {
		r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "expected multipart form with an avatar field", nil)
			return
		}
		file, header, err := r.FormFile("avatar")
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "avatar field is required", nil)
			return
		}
		defer file.Close()

		url, err := s.service.UploadAvatar(r.Context(), session.UserID, header.Header.Get("Content-Type"), header.Size, file)
		if err != nil {
			writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"avatarUrl": url})
		return
	}
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// ---- auth handlers ----

func (s *HTTPServer) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"displayName"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	session, err := s.service.SignUp(r.Context(), body.Email, body.Password, body.DisplayName)
	if err != nil {
		if errors.Is(err, authpw.ErrEmailTaken) {
			writeError(w, http.StatusConflict, "EMAIL_EXISTS", "Email already registered", nil)
			return
		}
		writeError(w, http.StatusBadRequest, "SIGNUP_FAILED", err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusCreated, sessionJSON(session))
}

func (s *HTTPServer) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	session, err := s.service.SignIn(r.Context(), body.Email, body.Password)
	if err != nil {
		if errors.Is(err, authpw.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Sign in failed", nil)
		return
	}
	writeJSON(w, http.StatusOK, sessionJSON(session))
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return Session{}, false
		}
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Session lookup failed", nil)
		return Session{}, false
	}
	return session, true
}

// ---- payload builders ----

func sessionJSON(session Session) map[string]any {
	return map[string]any{
		"accessToken":  session.Token,
		"refreshToken": session.RefreshToken,
		"userId":       session.UserID,
		"userName":     session.UserName,
		"expiresAt":    session.ExpiresAt.Unix(),
	}
}

func noteJSON(n store.Note) map[string]any {
	return map[string]any{
		"id":        n.ID,
		"title":     n.Title,
		"content":   n.Content,
		"category":  n.Category,
		"isStarred": n.IsStarred,
		"isPinned":  n.IsPinned,
		"link":      n.Link,
		"images":    imageListJSON(n.ImageURL),
		"createdAt": n.CreatedAt,
		"updatedAt": n.UpdatedAt,
	}
}

func imageListJSON(imageField string) []string {
	images := blob.DecodeImageList(imageField)
	if images == nil {
		return []string{}
	}
	return images
}

func notesJSON(notes []store.Note) []map[string]any {
	items := make([]map[string]any, 0, len(notes))
	for _, n := range notes {
		items = append(items, noteJSON(n))
	}
	return items
}

func categoryJSON(c store.Category) map[string]any {
	return map[string]any{
		"id":    c.ID,
		"name":  c.Name,
		"color": c.Color,
	}
}

func folderJSON(f store.Folder) map[string]any {
	item := map[string]any{
		"id":        f.ID,
		"name":      f.Name,
		"createdAt": f.CreatedAt,
		"updatedAt": f.UpdatedAt,
	}
	if f.ParentID != nil {
		item["parentId"] = *f.ParentID
	} else {
		item["parentId"] = nil
	}
	return item
}

func fileJSON(f FileView) map[string]any {
	item := map[string]any{
		"id":        f.ID,
		"name":      f.Name,
		"fileType":  f.FileType,
		"fileSize":  f.FileSize,
		"url":       f.URL,
		"createdAt": f.CreatedAt,
		"updatedAt": f.UpdatedAt,
	}
	if f.FolderID != nil {
		item["folderId"] = *f.FolderID
	} else {
		item["folderId"] = nil
	}
	return item
}

// ---- request decoding ----

func decodeNoteInput(w http.ResponseWriter, r *http.Request) (NoteInput, bool) {
	var body struct {
		Title    string   `json:"title"`
		Content  string   `json:"content"`
		Category string   `json:"category"`
		Link     string   `json:"link"`
		Images   []string `json:"images"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return NoteInput{}, false
	}
	return NoteInput{
		Title:    body.Title,
		Content:  body.Content,
		Category: body.Category,
		Link:     body.Link,
		Images:   body.Images,
	}, true
}

func decodeIDList(w http.ResponseWriter, r *http.Request) ([]string, bool) {
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return nil, false
	}
	if len(body.IDs) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "ids is required", nil)
		return nil, false
	}
	return body.IDs, true
}

// writeBatch reports a fan-out outcome. Partial failures keep status 200 with
// both lists populated so the client can retry just the failed ids.
func writeBatch(w http.ResponseWriter, result BatchResult, err error) {
	if err != nil {
		var domainErr *DomainError
		if errors.As(err, &domainErr) && domainErr.Code == "PARTIAL_FAILURE" {
			writeJSON(w, http.StatusOK, map[string]any{
				"succeeded": result.Succeeded,
				"failed":    result.Failed,
				"partial":   true,
			})
			return
		}
		writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
		"partial":   false,
	})
}

func writeMapped(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

// ---- middleware and plumbing ----

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
