package handlers

import (
	"context"
	"errors"
	"sync"

	"github.com/skilltracker/apiserver/internal/identity"
	"github.com/skilltracker/apiserver/internal/store"
	"github.com/skilltracker/apiserver/types"
)

// memUserRepo backs handler tests with the same version-check semantics
// as the Postgres repository.
type memUserRepo struct {
	mu    sync.Mutex
	users map[identity.ID]types.User

	updateErr func(user types.User) error
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[identity.ID]types.User{}}
}

func (r *memUserRepo) GetByID(ctx context.Context, id identity.ID) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	user.Skills = append([]types.Skill(nil), user.Skills...)
	return user, nil
}

func (r *memUserRepo) GetByUsername(ctx context.Context, username string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Username == username {
			user.Skills = append([]types.Skill(nil), user.Skills...)
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *memUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == user.Username {
			return types.User{}, store.ErrDuplicateUsername
		}
	}
	user.ID = identity.New()
	user.Version = 1
	r.users[user.ID] = user
	return user, nil
}

func (r *memUserRepo) Update(ctx context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		if err := r.updateErr(user); err != nil {
			return types.User{}, err
		}
	}
	current, ok := r.users[user.ID]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	if current.Version != user.Version {
		return types.User{}, store.ErrStaleWrite
	}
	user.Version++
	r.users[user.ID] = user
	return user, nil
}

func (r *memUserRepo) Delete(ctx context.Context, id identity.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

type memSkillRepo struct {
	mu     sync.Mutex
	skills map[identity.ID]types.Skill
}

func newMemSkillRepo() *memSkillRepo {
	return &memSkillRepo{skills: map[identity.ID]types.Skill{}}
}

func (r *memSkillRepo) GetByID(ctx context.Context, id identity.ID) (types.Skill, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	skill, ok := r.skills[id]
	if !ok {
		return types.Skill{}, store.ErrNotFound
	}
	return skill, nil
}

func (r *memSkillRepo) GetByName(ctx context.Context, name string) (types.Skill, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, skill := range r.skills {
		if skill.Name == name {
			return skill, nil
		}
	}
	return types.Skill{}, store.ErrNotFound
}

func (r *memSkillRepo) ListByOwner(ctx context.Context, ownerID identity.ID) ([]types.Skill, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.Skill
	for _, skill := range r.skills {
		if skill.OwnerID == ownerID {
			out = append(out, skill)
		}
	}
	return out, nil
}

func (r *memSkillRepo) Create(ctx context.Context, skill types.Skill) (types.Skill, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.skills {
		if existing.Name == skill.Name {
			return types.Skill{}, store.ErrDuplicateName
		}
	}
	skill.ID = identity.New()
	r.skills[skill.ID] = skill
	return skill, nil
}

func (r *memSkillRepo) Update(ctx context.Context, skill types.Skill) (types.Skill, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.skills[skill.ID]; !ok {
		return types.Skill{}, store.ErrNotFound
	}
	for id, existing := range r.skills {
		if id != skill.ID && existing.Name == skill.Name {
			return types.Skill{}, store.ErrDuplicateName
		}
	}
	r.skills[skill.ID] = skill
	return skill, nil
}

func (r *memSkillRepo) Delete(ctx context.Context, id identity.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.skills[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.skills, id)
	return nil
}

// plainHasher keeps login round-trips cheap.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }

func (plainHasher) Compare(hash, password string) error {
	if hash != "hashed:"+password {
		return errors.New("hash mismatch")
	}
	return nil
}
