package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/skilltracker/apiserver/internal/identity"
	"github.com/skilltracker/apiserver/internal/store"
	"github.com/skilltracker/apiserver/types"
)

const defaultUserRole = "user"

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id identity.ID) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id identity.ID) error
}

// UserService encapsulates account use-cases. Account deletion is a
// coordinated operation: the embedded skill cache names the skill records
// to cascade-delete from the authoritative store.
type UserService struct {
	users  UserRepository
	skills SkillRepository
	hasher PasswordHasher
}

func NewUserService(users UserRepository, skills SkillRepository, hasher PasswordHasher) *UserService {
	return &UserService{users: users, skills: skills, hasher: hasher}
}

// Register creates an account with the standard role and a hashed
// password. The plaintext never reaches a repository.
func (s *UserService) Register(ctx context.Context, username, password string) (types.User, error) {
	if username == "" || password == "" {
		return types.User{}, ErrEmptyCredentials
	}
	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return types.User{}, err
	}
	return s.users.Create(ctx, types.User{
		Username:     username,
		PasswordHash: hashed,
		Roles:        []string{defaultUserRole},
		Skills:       []types.Skill{},
	})
}

func (s *UserService) Get(ctx context.Context, id identity.ID) (types.User, error) {
	return s.users.GetByID(ctx, id)
}

// UpdateProfile applies a partial profile update: an empty username or
// password means "no change". A non-empty password is re-hashed.
func (s *UserService) UpdateProfile(ctx context.Context, id identity.ID, username, password string) (types.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return types.User{}, err
	}
	if username != "" {
		user.Username = username
	}
	if password != "" {
		hashed, err := s.hasher.Hash(password)
		if err != nil {
			return types.User{}, err
		}
		user.PasswordHash = hashed
	}
	return s.users.Update(ctx, user)
}

// Delete removes the account and cascade-deletes every skill named by the
// embedded cache from the authoritative store. Cascade failures are
// collected and returned as warnings; the account deletion itself still
// proceeds and succeeds.
func (s *UserService) Delete(ctx context.Context, id identity.ID) ([]identity.ID, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var failed []identity.ID
	for _, skill := range user.Skills {
		if err := s.skills.Delete(ctx, skill.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			slog.ErrorContext(ctx, "cascade delete failed",
				"user_id", user.ID, "skill_id", skill.ID, "error", err)
			failed = append(failed, skill.ID)
		}
	}

	if err := s.users.Delete(ctx, id); err != nil {
		return failed, err
	}
	return failed, nil
}
