package auth_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/TsveMotion/statsmaths/internal/repo/postgres"
	redrepo "github.com/TsveMotion/statsmaths/internal/repo/redis"
	authsvc "github.com/TsveMotion/statsmaths/internal/services/auth"
)

type stubUserStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[string]postgres.UserRecord
}

func newStubUserStore() *stubUserStore {
	return &stubUserStore{users: make(map[string]postgres.UserRecord)}
}

func (s *stubUserStore) Create(_ context.Context, email, name, passwordHash, role string) (postgres.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[email]; ok {
		return postgres.UserRecord{}, postgres.ErrEmailTaken
	}

	s.nextID++
	user := postgres.UserRecord{
		ID:           s.nextID,
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	s.users[email] = user
	return user, nil
}

func (s *stubUserStore) FindByEmail(_ context.Context, email string) (postgres.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[email]
	if !ok {
		return postgres.UserRecord{}, postgres.ErrUserNotFound
	}
	return user, nil
}

func (s *stubUserStore) FindByID(_ context.Context, userID int64) (postgres.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if user.ID == userID {
			return user, nil
		}
	}
	return postgres.UserRecord{}, postgres.ErrUserNotFound
}

func TestRegisterThenLogin(t *testing.T) {
	svc, cleanup := newAuthServiceForTest(t)
	defer cleanup()

	ctx := context.Background()
	regRes, err := svc.Register(ctx, "Alex@Example.com", "Alex", "correct-horse")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if regRes.Me.Email != "alex@example.com" {
		t.Fatalf("expected lowercased email, got %q", regRes.Me.Email)
	}
	if regRes.AccessToken == "" || regRes.RefreshToken == "" {
		t.Fatalf("expected tokens to be issued")
	}

	loginRes, err := svc.Login(ctx, "alex@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if loginRes.Me.ID != regRes.Me.ID {
		t.Fatalf("login resolved a different user: %d vs %d", loginRes.Me.ID, regRes.Me.ID)
	}

	if _, err := svc.Login(ctx, "alex@example.com", "wrong-password"); !errors.Is(err, authsvc.ErrInvalidCredentials) {
		t.Fatalf("wrong password should fail with ErrInvalidCredentials, got %v", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, cleanup := newAuthServiceForTest(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := svc.Register(ctx, "dup@example.com", "First", "password-one"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, "dup@example.com", "Second", "password-two"); !errors.Is(err, authsvc.ErrEmailTaken) {
		t.Fatalf("duplicate email should fail with ErrEmailTaken, got %v", err)
	}
}

func TestRegisterRejectsWeakInput(t *testing.T) {
	svc, cleanup := newAuthServiceForTest(t)
	defer cleanup()

	ctx := context.Background()
	cases := []struct {
		name     string
		email    string
		fullName string
		password string
	}{
		{"bad email", "not-an-email", "Alex", "long-enough-pass"},
		{"empty name", "a@example.com", "  ", "long-enough-pass"},
		{"short password", "a@example.com", "Alex", "short"},
	}
	for _, tc := range cases {
		if _, err := svc.Register(ctx, tc.email, tc.fullName, tc.password); !errors.Is(err, authsvc.ErrInvalidInput) {
			t.Fatalf("%s: expected ErrInvalidInput, got %v", tc.name, err)
		}
	}
}

func TestRefreshRotation(t *testing.T) {
	svc, cleanup := newAuthServiceForTest(t)
	defer cleanup()

	ctx := context.Background()
	regRes, err := svc.Register(ctx, "rotate@example.com", "Rotate", "password-one")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	refreshRes, err := svc.Refresh(ctx, regRes.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if refreshRes.RefreshToken == regRes.RefreshToken {
		t.Fatalf("refresh token was not rotated")
	}

	if _, err := svc.Refresh(ctx, regRes.RefreshToken); !errors.Is(err, authsvc.ErrUnauthorized) {
		t.Fatalf("old refresh token should be unauthorized, got err=%v", err)
	}

	if _, err := svc.ValidateAccessToken(ctx, refreshRes.AccessToken); err != nil {
		t.Fatalf("new access token validation failed: %v", err)
	}
}

func TestLogoutInvalidatesSession(t *testing.T) {
	svc, cleanup := newAuthServiceForTest(t)
	defer cleanup()

	ctx := context.Background()
	regRes, err := svc.Register(ctx, "logout@example.com", "Logout", "password-one")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	claims, err := svc.ValidateAccessToken(ctx, regRes.AccessToken)
	if err != nil {
		t.Fatalf("validate access token before logout: %v", err)
	}

	if err := svc.Logout(ctx, claims.SID); err != nil {
		t.Fatalf("logout: %v", err)
	}

	if _, err := svc.ValidateAccessToken(ctx, regRes.AccessToken); !errors.Is(err, authsvc.ErrUnauthorized) {
		t.Fatalf("access token should be unauthorized after logout, got err=%v", err)
	}
}

func TestPasswordHashIsNotPlaintext(t *testing.T) {
	svc, store, cleanup := newAuthServiceWithStore(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := svc.Register(ctx, "hash@example.com", "Hash", "plaintext-password"); err != nil {
		t.Fatalf("register: %v", err)
	}

	user, err := store.FindByEmail(ctx, "hash@example.com")
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if strings.Contains(user.PasswordHash, "plaintext-password") {
		t.Fatalf("password stored in plaintext")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("plaintext-password")) != nil {
		t.Fatalf("stored hash does not verify against the original password")
	}
}

func newAuthServiceForTest(t *testing.T) (*authsvc.Service, func()) {
	t.Helper()
	svc, _, cleanup := newAuthServiceWithStore(t)
	return svc, cleanup
}

func newAuthServiceWithStore(t *testing.T) (*authsvc.Service, *stubUserStore, func()) {
	t.Helper()

	mini, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}

	client := goredis.NewClient(&goredis.Options{Addr: mini.Addr()})
	sessions := redrepo.NewSessionRepo(client)
	users := newStubUserStore()
	jwtManager := authsvc.NewJWTManager("test-secret", 15*time.Minute)
	svc := authsvc.NewService(jwtManager, sessions, users, 45*24*time.Hour)

	cleanup := func() {
		_ = client.Close()
		mini.Close()
	}
	return svc, users, cleanup
}
