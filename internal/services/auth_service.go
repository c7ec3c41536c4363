// Package services orchestrates storage and auth primitives under the
// identity established by the HTTP layer's guard.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"kharcha/internal/auth"
	"kharcha/internal/core"
	applog "kharcha/internal/log"
	"kharcha/internal/storage"
)

// AuthService handles registration and login.
type AuthService struct {
	repo   *storage.SQLiteRepository
	hasher *auth.Hasher
	tokens *auth.TokenManager
	logger *applog.Logger
}

func NewAuthService(repo *storage.SQLiteRepository, hasher *auth.Hasher, tokens *auth.TokenManager) *AuthService {
	return &AuthService{
		repo:   repo,
		hasher: hasher,
		tokens: tokens,
		logger: applog.Component(applog.ComponentAuth),
	}
}

// Signup validates the registration input, checks both identifiers for
// collisions and creates the identity. The check here is only an
// optimization; under a registration race the unique indexes are what
// actually reject the loser.
func (s *AuthService) Signup(ctx context.Context, name, email, mobile, password string) (core.User, error) {
	if err := core.ValidateRegistration(name, email, mobile, password); err != nil {
		return core.User{}, err
	}

	name = strings.TrimSpace(name)
	email = core.NormalizeEmail(email)
	mobile = strings.TrimSpace(mobile)

	for _, identifier := range []string{email, mobile} {
		_, err := s.repo.GetUserByIdentifier(ctx, identifier)
		switch {
		case err == nil:
			return core.User{}, core.ErrDuplicateIdentifier
		case errors.Is(err, core.ErrNotFound):
			// free to use
		default:
			return core.User{}, fmt.Errorf("check identifier: %w", err)
		}
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return core.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.CreateUser(ctx, name, email, mobile, hash)
	if err != nil {
		return core.User{}, err
	}

	s.logger.InfoContext(ctx, "Signup completed",
		applog.FieldOperation, applog.OpSignup,
		applog.FieldUserID, user.ID)
	return user, nil
}

// Login verifies the credentials and issues a session token. An unknown
// identifier and a wrong password produce the same error; the caller never
// learns which part failed.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (string, core.User, error) {
	user, err := s.repo.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			s.logger.DebugContext(ctx, "Login with unknown identifier",
				applog.FieldIdentifier, identifier)
			return "", core.User{}, core.ErrInvalidCredentials
		}
		return "", core.User{}, fmt.Errorf("resolve identifier: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.logger.DebugContext(ctx, "Login with wrong password", applog.FieldUserID, user.ID)
		return "", core.User{}, core.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return "", core.User{}, fmt.Errorf("issue token: %w", err)
	}

	s.logger.InfoContext(ctx, "Login succeeded",
		applog.FieldOperation, applog.OpLogin,
		applog.FieldUserID, user.ID)
	return token, user, nil
}
