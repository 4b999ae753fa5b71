package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/skilltracker/apiserver/internal/identity"
	"github.com/skilltracker/apiserver/types"
)

// UserRepository handles persistence for users.
//
// The skills column holds the embedded snapshot sequence as JSON; the
// repository persists it verbatim and performs no cross-entity logic.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, username, password_hash, roles, skills, version, created_at, updated_at`

func (r *UserRepository) GetByID(ctx context.Context, id identity.ID) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE username = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, username))
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.ID = identity.New()
	user.Version = 1
	user.CreatedAt = now
	user.UpdatedAt = now

	skills, err := marshalSkills(user.Skills)
	if err != nil {
		return types.User{}, err
	}

	const query = `
		INSERT INTO users (id, username, password_hash, roles, skills, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.Username,
		user.PasswordHash,
		pq.Array(user.Roles),
		skills,
		user.Version,
		user.CreatedAt,
		user.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return types.User{}, ErrDuplicateUsername
		}
		return types.User{}, err
	}
	return user, nil
}

// Update persists the user row, enforcing the optimistic version check.
// It returns ErrStaleWrite when the row exists but the presented version
// is no longer current, and ErrNotFound when the row is absent.
func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	user.UpdatedAt = time.Now()

	skills, err := marshalSkills(user.Skills)
	if err != nil {
		return types.User{}, err
	}

	const query = `
		UPDATE users
		SET username = $1,
			password_hash = $2,
			roles = $3,
			skills = $4,
			version = version + 1,
			updated_at = $5
		WHERE id = $6 AND version = $7`
	result, err := r.db.ExecContext(
		ctx,
		query,
		user.Username,
		user.PasswordHash,
		pq.Array(user.Roles),
		skills,
		user.UpdatedAt,
		user.ID,
		user.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.User{}, ErrDuplicateUsername
		}
		return types.User{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.User{}, err
	}
	if affected == 0 {
		if _, getErr := r.GetByID(ctx, user.ID); getErr != nil {
			return types.User{}, getErr
		}
		return types.User{}, ErrStaleWrite
	}
	user.Version++
	return user, nil
}

func (r *UserRepository) Delete(ctx context.Context, id identity.ID) error {
	const query = `DELETE FROM users WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) scanUser(row *sql.Row) (types.User, error) {
	var user types.User
	var skills []byte
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		pq.Array(&user.Roles),
		&skills,
		&user.Version,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	if err := json.Unmarshal(skills, &user.Skills); err != nil {
		return types.User{}, fmt.Errorf("decode embedded skills for user %s: %w", user.ID, err)
	}
	// The embedded form omits the owner; it is implied by the containing row.
	for i := range user.Skills {
		user.Skills[i].OwnerID = user.ID
	}
	return user, nil
}

func marshalSkills(skills []types.Skill) ([]byte, error) {
	if skills == nil {
		skills = []types.Skill{}
	}
	data, err := json.Marshal(skills)
	if err != nil {
		return nil, fmt.Errorf("encode embedded skills: %w", err)
	}
	return data, nil
}
