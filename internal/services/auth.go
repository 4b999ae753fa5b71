package services

import (
	"context"
	"errors"

	"github.com/skilltracker/apiserver/internal/identity"
	"github.com/skilltracker/apiserver/internal/store"
	"github.com/skilltracker/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher is the one-way hashing capability used for credential
// storage and verification. Injected at construction so no package-level
// hasher state exists.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// BcryptHasher implements PasswordHasher with bcrypt.
type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (h BcryptHasher) Compare(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// AuthService resolves credentials to a caller identity and enforces the
// single authorization rule: a caller may only touch their own subtree.
type AuthService struct {
	users  UserRepository
	hasher PasswordHasher
}

func NewAuthService(users UserRepository, hasher PasswordHasher) *AuthService {
	return &AuthService{users: users, hasher: hasher}
}

// Authenticate verifies the credentials and returns the matching user.
// Every failure mode maps to ErrInvalidCredentials except infrastructure
// errors, which surface unchanged.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (types.User, error) {
	if username == "" || password == "" {
		return types.User{}, ErrInvalidCredentials
	}
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, err
	}
	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return types.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// Authorize rejects access unless the caller is the target user.
func (s *AuthService) Authorize(callerID, targetID identity.ID) error {
	if callerID != targetID {
		return ErrForbidden
	}
	return nil
}
