package service

import (
	"context"
	"testing"
	"time"

	"mailpilot_backend/internal/auth/repository"
	"mailpilot_backend/platform/apperr"
	"mailpilot_backend/platform/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type storedToken struct {
	userID    uuid.UUID
	expiresAt time.Time
}

type fakeStore struct {
	users  map[string]repository.User
	tokens map[string]storedToken
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:  make(map[string]repository.User),
		tokens: make(map[string]storedToken),
	}
}

func (f *fakeStore) CreateUser(_ context.Context, email, displayName, passwordHash string) (repository.User, error) {
	if _, ok := f.users[email]; ok {
		return repository.User{}, apperr.Conflict("email already registered")
	}
	user := repository.User{
		ID:           uuid.New(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		IsActive:     true,
		CreatedAt:    testNow,
	}
	f.users[email] = user
	return user, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (repository.User, error) {
	user, ok := f.users[email]
	if !ok {
		return repository.User{}, apperr.NotFound("user not found")
	}
	return user, nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id uuid.UUID) (repository.User, error) {
	for _, user := range f.users {
		if user.ID == id {
			return user, nil
		}
	}
	return repository.User{}, apperr.NotFound("user not found")
}

func (f *fakeStore) CreateRefreshToken(_ context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	f.tokens[tokenHash] = storedToken{userID: userID, expiresAt: expiresAt}
	return nil
}

func (f *fakeStore) GetRefreshToken(_ context.Context, tokenHash string) (uuid.UUID, time.Time, error) {
	tok, ok := f.tokens[tokenHash]
	if !ok {
		return uuid.Nil, time.Time{}, apperr.NotFound("refresh token not found")
	}
	return tok.userID, tok.expiresAt, nil
}

func (f *fakeStore) RevokeRefreshToken(_ context.Context, tokenHash string) error {
	delete(f.tokens, tokenHash)
	return nil
}

func (f *fakeStore) DeleteExpiredRefreshTokens(_ context.Context, now time.Time) (int64, error) {
	var deleted int64
	for hash, tok := range f.tokens {
		if tok.expiresAt.Before(now) {
			delete(f.tokens, hash)
			deleted++
		}
	}
	return deleted, nil
}

type testConfig struct{}

func (testConfig) GetJWTAccessSecret() string        { return "test-secret" }
func (testConfig) GetAccessTokenTTL() time.Duration  { return 15 * time.Minute }
func (testConfig) GetRefreshTokenTTL() time.Duration { return 720 * time.Hour }

var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func newTestService(store *fakeStore) *Service {
	svc := New(store, testConfig{}, logger.New("test"))
	svc.SetClock(func() time.Time { return testNow })
	return svc
}

func TestSignUpAndSignIn(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	pair, err := svc.SignUp(context.Background(), "anna@firma.dk", "Anna", "hemmeligt-kodeord")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("SignUp() must issue both tokens")
	}
	// The raw refresh token must never be stored.
	if _, ok := store.tokens[pair.RefreshToken]; ok {
		t.Error("raw refresh token found in store, expected only the hash")
	}
	if len(store.tokens) != 1 {
		t.Fatalf("stored tokens = %d, want 1", len(store.tokens))
	}

	if _, err := svc.SignUp(context.Background(), "anna@firma.dk", "Anna", "hemmeligt-kodeord"); !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("duplicate SignUp() error = %v, want conflict", err)
	}

	if _, err := svc.SignIn(context.Background(), "anna@firma.dk", "forkert"); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Errorf("SignIn() with wrong password error = %v, want unauthorized", err)
	}
	if _, err := svc.SignIn(context.Background(), "ukendt@firma.dk", "hemmeligt-kodeord"); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Errorf("SignIn() with unknown email error = %v, want unauthorized", err)
	}

	pair, err = svc.SignIn(context.Background(), "anna@firma.dk", "hemmeligt-kodeord")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}

	claims := parseClaims(t, pair.AccessToken)
	if claims["type"] != "access" {
		t.Errorf("token type = %v, want access", claims["type"])
	}
	if claims["sub"] != store.users["anna@firma.dk"].ID.String() {
		t.Errorf("token sub = %v, want the user id", claims["sub"])
	}
}

func TestSignInDisabledAccount(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	if _, err := svc.SignUp(context.Background(), "bo@firma.dk", "Bo", "hemmeligt-kodeord"); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	user := store.users["bo@firma.dk"]
	user.IsActive = false
	store.users["bo@firma.dk"] = user

	if _, err := svc.SignIn(context.Background(), "bo@firma.dk", "hemmeligt-kodeord"); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Errorf("SignIn() on disabled account error = %v, want unauthorized", err)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	pair, err := svc.SignUp(context.Background(), "anna@firma.dk", "Anna", "hemmeligt-kodeord")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	rotated, err := svc.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if rotated.RefreshToken == pair.RefreshToken {
		t.Error("Refresh() must issue a new refresh token")
	}

	// The old token is single-use.
	if _, err := svc.Refresh(context.Background(), pair.RefreshToken); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Errorf("reused Refresh() error = %v, want unauthorized", err)
	}
}

func TestRefreshExpiredTokenIsRevoked(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	pair, err := svc.SignUp(context.Background(), "anna@firma.dk", "Anna", "hemmeligt-kodeord")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	svc.SetClock(func() time.Time { return testNow.Add(1000 * time.Hour) })

	if _, err := svc.Refresh(context.Background(), pair.RefreshToken); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Errorf("expired Refresh() error = %v, want unauthorized", err)
	}
	if len(store.tokens) != 0 {
		t.Errorf("stored tokens = %d, want 0 after expired refresh", len(store.tokens))
	}
}

func TestSignOut(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	pair, err := svc.SignUp(context.Background(), "anna@firma.dk", "Anna", "hemmeligt-kodeord")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	if err := svc.SignOut(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	if _, err := svc.Refresh(context.Background(), pair.RefreshToken); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Errorf("Refresh() after SignOut() error = %v, want unauthorized", err)
	}
}

func TestCleanupPurgesExpiredTokens(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	if _, err := svc.SignUp(context.Background(), "anna@firma.dk", "Anna", "hemmeligt-kodeord"); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	pair, err := svc.SignIn(context.Background(), "anna@firma.dk", "hemmeligt-kodeord")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}

	// Past the 720h refresh TTL: both stored tokens are stale.
	svc.SetClock(func() time.Time { return testNow.Add(1000 * time.Hour) })

	deleted, err := svc.Cleanup(context.Background())
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if deleted != 2 {
		t.Errorf("Cleanup() deleted = %d, want 2", deleted)
	}
	if len(store.tokens) != 0 {
		t.Errorf("stored tokens = %d, want 0 after cleanup", len(store.tokens))
	}
	if _, err := svc.Refresh(context.Background(), pair.RefreshToken); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Errorf("Refresh() after cleanup error = %v, want unauthorized", err)
	}
}

func parseClaims(t *testing.T, rawToken string) jwt.MapClaims {
	t.Helper()

	parsed, err := jwt.Parse(rawToken, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	}, jwt.WithTimeFunc(func() time.Time { return testNow }))
	if err != nil || !parsed.Valid {
		t.Fatalf("access token failed to parse: %v", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		t.Fatal("access token claims have unexpected type")
	}
	return claims
}
