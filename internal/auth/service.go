package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	dErrors "veryphy/pkg/domain-errors"
	"veryphy/pkg/platform/sentinel"
)

const accessTokenTTL = time.Hour

// Service authenticates users and issues access tokens.
type Service struct {
	users  UserStore
	tokens *JWTService
	logger *slog.Logger
}

func NewService(users UserStore, tokens *JWTService, logger *slog.Logger) *Service {
	return &Service{users: users, tokens: tokens, logger: logger}
}

// Login verifies credentials and returns a signed access token.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			// Same answer as a wrong password; existence of usernames is
			// not disclosed.
			return "", dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		}
		return "", dErrors.Wrap(dErrors.CodeInternal, "user lookup failed", err)
	}
	if !CheckPassword(user.PasswordHash, password) {
		s.logger.WarnContext(ctx, "login rejected", "username", username)
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}

	token, err := s.tokens.GenerateAccessToken(user, accessTokenTTL)
	if err != nil {
		return "", dErrors.Wrap(dErrors.CodeInternal, "token signing failed", err)
	}
	s.logger.InfoContext(ctx, "login succeeded", "username", username, "role", user.Role)
	return token, nil
}

// Provision creates a user with a freshly hashed password.
func (s *Service) Provision(ctx context.Context, username, password, role, entityID string) (User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return User{}, dErrors.Wrap(dErrors.CodeInternal, "password hashing failed", err)
	}
	user := User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		EntityID:     entityID,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return User{}, dErrors.New(dErrors.CodeDuplicateID, "username already taken")
		}
		return User{}, dErrors.Wrap(dErrors.CodeInternal, "user creation failed", err)
	}
	return user, nil
}
