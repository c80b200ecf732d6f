package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stash/api/internal/auth"
	"stash/api/internal/store"

	"golang.org/x/crypto/bcrypt"
)

func issueTestToken(t *testing.T, svc *Service, userID string) string {
	t.Helper()
	token, err := auth.IssueToken([]byte(svc.cfg.JWTSecret), auth.Claims{
		Sub:  userID,
		Name: "Avery",
		JTI:  "jti-test",
		Exp:  time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func doRequest(t *testing.T, server *HTTPServer, method, path, token string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

func TestProtectedRouteWithoutBearerReturnsUnauthorized(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}), "*")
	rr := doRequest(t, server, http.MethodGet, "/api/notes", "", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestSignInReturnsSessionContract(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("hunter2hunter2"), bcrypt.DefaultCost)
	fs := &fakeStore{
		getUserByEmailFn: func(_ context.Context, email string) (store.User, error) {
			return store.User{ID: "user-1", DisplayName: "Avery", Email: email, PasswordHash: string(hash)}, nil
		},
	}
	server := NewHTTPServer(newTestService(fs), "*")

	rr := doRequest(t, server, http.MethodPost, "/api/auth/signin", "",
		`{"email":"avery@example.com","password":"hunter2hunter2"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if payload["accessToken"] == "" || payload["refreshToken"] == "" {
		t.Fatalf("expected token pair, got %v", payload)
	}
	if payload["userName"] != "Avery" {
		t.Fatalf("expected userName Avery, got %v", payload["userName"])
	}
}

func TestSignInRejectsBadPassword(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-horse-battery"), bcrypt.DefaultCost)
	fs := &fakeStore{
		getUserByEmailFn: func(_ context.Context, email string) (store.User, error) {
			return store.User{ID: "user-1", Email: email, PasswordHash: string(hash)}, nil
		},
	}
	server := NewHTTPServer(newTestService(fs), "*")

	rr := doRequest(t, server, http.MethodPost, "/api/auth/signin", "",
		`{"email":"avery@example.com","password":"wrong"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &payload)
	if payload["code"] != "INVALID_CREDENTIALS" {
		t.Fatalf("expected INVALID_CREDENTIALS, got %v", payload["code"])
	}
}

func TestTrashedNotesEndpointCarriesCountdown(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fs := &fakeStore{
		listTrashedFn: func(_ context.Context, ownerID string) ([]store.Note, error) {
			return []store.Note{{ID: "note-1", Title: "old", DeletedAt: daysAgo(now, 28)}}, nil
		},
	}
	svc := newTestService(fs)
	svc.now = func() time.Time { return now }
	server := NewHTTPServer(svc, "*")
	token := issueTestToken(t, svc, "user-1")

	rr := doRequest(t, server, http.MethodGet, "/api/notes/trash", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload struct {
		Notes []map[string]any `json:"notes"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if len(payload.Notes) != 1 {
		t.Fatalf("expected 1 note, got %v", payload.Notes)
	}
	if payload.Notes[0]["daysRemaining"].(float64) != 2 {
		t.Fatalf("expected 2 days remaining, got %v", payload.Notes[0]["daysRemaining"])
	}
	if payload.Notes[0]["urgent"] != true {
		t.Fatalf("expected urgent flag, got %v", payload.Notes[0]["urgent"])
	}
}

func TestBreadcrumbEndpointUsesNullRootID(t *testing.T) {
	ts := newTreeStore()
	ts.addFolder("docs", "")
	svc := newTestService(&ts.fakeStore)
	server := NewHTTPServer(svc, "*")
	token := issueTestToken(t, svc, "user-1")

	rr := doRequest(t, server, http.MethodGet, "/api/folders/breadcrumb?folder=docs", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload struct {
		Breadcrumb []map[string]any `json:"breadcrumb"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if len(payload.Breadcrumb) != 2 {
		t.Fatalf("expected root + folder, got %v", payload.Breadcrumb)
	}
	if payload.Breadcrumb[0]["id"] != nil || payload.Breadcrumb[0]["name"] != "My Files" {
		t.Fatalf("expected synthetic root first, got %v", payload.Breadcrumb[0])
	}
	if payload.Breadcrumb[1]["id"] != "docs" {
		t.Fatalf("expected folder entry, got %v", payload.Breadcrumb[1])
	}
}

func TestMoveFolderCycleReturnsConflict(t *testing.T) {
	ts := newTreeStore()
	ts.addFolder("parent", "")
	ts.addFolder("child", "parent")
	svc := newTestService(&ts.fakeStore)
	server := NewHTTPServer(svc, "*")
	token := issueTestToken(t, svc, "user-1")

	rr := doRequest(t, server, http.MethodPost, "/api/folders/parent/move", token, `{"targetId":"child"}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &payload)
	if payload["code"] != "CYCLE_ERROR" {
		t.Fatalf("expected CYCLE_ERROR, got %v", payload["code"])
	}
}

func TestBulkPurgeEndpointReportsPartialFailure(t *testing.T) {
	fs := &fakeStore{
		deleteNoteFn: func(_ context.Context, ownerID, noteID string) (bool, error) {
			if noteID == "bad" {
				return false, context.DeadlineExceeded
			}
			return true, nil
		},
	}
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")
	token := issueTestToken(t, svc, "user-1")

	rr := doRequest(t, server, http.MethodPost, "/api/notes/bulk/purge", token, `{"ids":["bad","good"]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("partial failure keeps 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload struct {
		Succeeded []string `json:"succeeded"`
		Failed    []map[string]any `json:"failed"`
		Partial   bool `json:"partial"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if !payload.Partial || len(payload.Succeeded) != 1 || len(payload.Failed) != 1 {
		t.Fatalf("unexpected batch payload %+v", payload)
	}
}

func TestEmptyBulkRequestRejected(t *testing.T) {
	svc := newTestService(&fakeStore{})
	server := NewHTTPServer(svc, "*")
	token := issueTestToken(t, svc, "user-1")

	rr := doRequest(t, server, http.MethodPost, "/api/notes/bulk/purge", token, `{"ids":[]}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d body=%s", rr.Code, rr.Body.String())
	}
}
