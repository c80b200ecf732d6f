package authpw

import (
	"context"
	"database/sql"
	"testing"

	"stash/api/internal/store"
)

type fakeUserStore struct {
	users map[string]store.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]store.User)}
}

func (f *fakeUserStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	user, ok := f.users[email]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeUserStore) CreateUser(_ context.Context, user store.User) error {
	f.users[user.Email] = user
	return nil
}

func TestSignUpAndSignIn(t *testing.T) {
	svc := NewService(newFakeUserStore())
	ctx := context.Background()

	user, err := svc.SignUp(ctx, SignUpRequest{
		Email:       "Robin@Example.com",
		Password:    "correct-horse",
		DisplayName: "Robin",
	})
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if user.Email != "robin@example.com" {
		t.Fatalf("expected lowercased email, got %q", user.Email)
	}
	if user.PasswordHash == "correct-horse" || user.PasswordHash == "" {
		t.Fatal("expected password to be hashed")
	}

	signedIn, err := svc.SignIn(ctx, "robin@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if signedIn.ID != user.ID {
		t.Fatalf("expected user %s, got %s", user.ID, signedIn.ID)
	}
}

func TestSignInRejectsWrongPassword(t *testing.T) {
	svc := NewService(newFakeUserStore())
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, SignUpRequest{Email: "a@b.co", Password: "password123", DisplayName: "A"}); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if _, err := svc.SignIn(ctx, "a@b.co", "password124"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.SignIn(ctx, "missing@b.co", "password123"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestSignUpValidation(t *testing.T) {
	svc := NewService(newFakeUserStore())
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, SignUpRequest{Email: "a@b.co", Password: "short", DisplayName: "A"}); err == nil {
		t.Fatal("expected error for short password")
	}
	if _, err := svc.SignUp(ctx, SignUpRequest{Email: "", Password: "password123", DisplayName: "A"}); err == nil {
		t.Fatal("expected error for missing email")
	}
}

func TestSignUpRejectsDuplicateEmail(t *testing.T) {
	svc := NewService(newFakeUserStore())
	ctx := context.Background()

	req := SignUpRequest{Email: "a@b.co", Password: "password123", DisplayName: "A"}
	if _, err := svc.SignUp(ctx, req); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if _, err := svc.SignUp(ctx, req); err != ErrEmailTaken {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}
