// Package service implements sign-up, sign-in and refresh token rotation.
package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"

	"mailpilot_backend/internal/auth/password"
	"mailpilot_backend/internal/auth/repository"
	"mailpilot_backend/platform/apperr"
	"mailpilot_backend/platform/config"
	"mailpilot_backend/platform/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const accessTokenType = "access"

// Store is the persistence surface the service needs.
type Store interface {
	CreateUser(ctx context.Context, email, displayName, passwordHash string) (repository.User, error)
	GetUserByEmail(ctx context.Context, email string) (repository.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (repository.User, error)
	CreateRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error
	GetRefreshToken(ctx context.Context, tokenHash string) (uuid.UUID, time.Time, error)
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

// TokenPair is one issued access/refresh token set.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Service issues and rotates tokens against the user store.
type Service struct {
	repo Store
	cfg  config.AuthConfig
	log  *logger.Logger

	now func() time.Time
}

// New creates the auth service.
func New(repo Store, cfg config.AuthConfig, log *logger.Logger) *Service {
	return &Service{
		repo: repo,
		cfg:  cfg,
		log:  log,
		now:  time.Now,
	}
}

// SetClock overrides the time source. Intended for tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// SignUp registers a new user and signs them in.
func (s *Service) SignUp(ctx context.Context, email, displayName, plainPassword string) (TokenPair, error) {
	hash, err := password.Hash(plainPassword)
	if err != nil {
		return TokenPair{}, apperr.Wrap(apperr.KindInternal, "hash password", err)
	}

	user, err := s.repo.CreateUser(ctx, email, displayName, hash)
	if err != nil {
		return TokenPair{}, err
	}

	s.log.Info("user registered", "userId", user.ID, "email", user.Email)
	return s.issueTokens(ctx, user.ID)
}

// SignIn verifies credentials and issues a token pair. Unknown address and
// wrong password are indistinguishable to the caller.
func (s *Service) SignIn(ctx context.Context, email, plainPassword string) (TokenPair, error) {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return TokenPair{}, apperr.Unauthorized("invalid credentials")
	}
	if err := password.Compare(user.PasswordHash, plainPassword); err != nil {
		return TokenPair{}, apperr.Unauthorized("invalid credentials")
	}
	if !user.IsActive {
		return TokenPair{}, apperr.Unauthorized("account disabled")
	}

	return s.issueTokens(ctx, user.ID)
}

// Refresh rotates a refresh token: the presented token is revoked whether or
// not a new pair is issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	hash := hashToken(refreshToken)
	userID, expiresAt, err := s.repo.GetRefreshToken(ctx, hash)
	if err != nil {
		return TokenPair{}, apperr.Unauthorized("invalid refresh token")
	}

	if err := s.repo.RevokeRefreshToken(ctx, hash); err != nil {
		return TokenPair{}, err
	}
	if s.now().After(expiresAt) {
		return TokenPair{}, apperr.Unauthorized("refresh token expired")
	}

	return s.issueTokens(ctx, userID)
}

// SignOut revokes the presented refresh token.
func (s *Service) SignOut(ctx context.Context, refreshToken string) error {
	return s.repo.RevokeRefreshToken(ctx, hashToken(refreshToken))
}

// Me returns the authenticated user's profile.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (repository.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

// Cleanup purges refresh tokens past their expiry and returns how many were
// removed. Run periodically from the scheduler.
func (s *Service) Cleanup(ctx context.Context) (int64, error) {
	deleted, err := s.repo.DeleteExpiredRefreshTokens(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.log.Info("purged expired refresh tokens", "deleted", deleted)
	}
	return deleted, nil
}

func (s *Service) issueTokens(ctx context.Context, userID uuid.UUID) (TokenPair, error) {
	accessToken, err := s.signJWT(userID)
	if err != nil {
		return TokenPair{}, apperr.Wrap(apperr.KindInternal, "sign access token", err)
	}

	refreshToken, err := randomToken(48)
	if err != nil {
		return TokenPair{}, apperr.Wrap(apperr.KindInternal, "generate refresh token", err)
	}

	expiresAt := s.now().Add(s.cfg.GetRefreshTokenTTL())
	if err := s.repo.CreateRefreshToken(ctx, userID, hashToken(refreshToken), expiresAt); err != nil {
		return TokenPair{}, err
	}

	return TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (s *Service) signJWT(userID uuid.UUID) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":  userID.String(),
		"type": accessTokenType,
		"exp":  now.Add(s.cfg.GetAccessTokenTTL()).Unix(),
		"iat":  now.Unix(),
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.GetJWTAccessSecret()))
}

func randomToken(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Only token hashes reach the database.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
