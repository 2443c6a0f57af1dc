package auth

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"veryphy/pkg/platform/sentinel"
)

// User is a provisioned API caller. EntityID names the institution or
// employer the user acts for; empty for admins.
type User struct {
	ID           string
	Username     string
	PasswordHash []byte
	Role         string
	EntityID     string
}

// UserStore resolves usernames to provisioned users.
type UserStore interface {
	FindByUsername(ctx context.Context, username string) (User, error)
	Create(ctx context.Context, user User) error
}

// InMemoryUserStore keeps users in process memory. Suitable for development
// and tests; production deployments provision users out of band.
type InMemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]User
}

func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{users: make(map[string]User)}
}

func (s *InMemoryUserStore) FindByUsername(_ context.Context, username string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[strings.ToLower(username)]
	if !ok {
		return User{}, sentinel.ErrNotFound
	}
	return user, nil
}

func (s *InMemoryUserStore) Create(_ context.Context, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(user.Username)
	if _, ok := s.users[key]; ok {
		return sentinel.ErrConflict
	}
	s.users[key] = user
	return nil
}

// HashPassword derives the stored credential for a new user.
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

// CheckPassword reports whether password matches the stored hash.
func CheckPassword(hash []byte, password string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}
