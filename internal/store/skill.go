package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/skilltracker/apiserver/internal/identity"
	"github.com/skilltracker/apiserver/types"
)

// SkillRepository handles persistence for the authoritative skill records.
type SkillRepository struct {
	db *sql.DB
}

func NewSkillRepository(db *sql.DB) *SkillRepository {
	return &SkillRepository{db: db}
}

const skillColumns = `id, name, proficiency, owner_id, created_at, updated_at`

func (r *SkillRepository) GetByID(ctx context.Context, id identity.ID) (types.Skill, error) {
	const query = `
		SELECT ` + skillColumns + `
		FROM skills
		WHERE id = $1`
	return r.scanSkill(r.db.QueryRowContext(ctx, query, id))
}

func (r *SkillRepository) GetByName(ctx context.Context, name string) (types.Skill, error) {
	const query = `
		SELECT ` + skillColumns + `
		FROM skills
		WHERE name = $1`
	return r.scanSkill(r.db.QueryRowContext(ctx, query, name))
}

// ListByOwner returns every authoritative skill record owned by the given
// user, in creation order. Used by the reconciler and convergence audits,
// not by the read path; list-all reads go through the embedded cache.
func (r *SkillRepository) ListByOwner(ctx context.Context, ownerID identity.ID) ([]types.Skill, error) {
	const query = `
		SELECT ` + skillColumns + `
		FROM skills
		WHERE owner_id = $1
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var skills []types.Skill
	for rows.Next() {
		var skill types.Skill
		if err := rows.Scan(
			&skill.ID,
			&skill.Name,
			&skill.Proficiency,
			&skill.OwnerID,
			&skill.CreatedAt,
			&skill.UpdatedAt,
		); err != nil {
			return nil, err
		}
		skills = append(skills, skill)
	}
	return skills, rows.Err()
}

func (r *SkillRepository) Create(ctx context.Context, skill types.Skill) (types.Skill, error) {
	now := time.Now()
	skill.ID = identity.New()
	skill.CreatedAt = now
	skill.UpdatedAt = now

	const query = `
		INSERT INTO skills (id, name, proficiency, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		skill.ID,
		skill.Name,
		skill.Proficiency,
		skill.OwnerID,
		skill.CreatedAt,
		skill.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return types.Skill{}, ErrDuplicateName
		}
		return types.Skill{}, err
	}
	return skill, nil
}

func (r *SkillRepository) Update(ctx context.Context, skill types.Skill) (types.Skill, error) {
	skill.UpdatedAt = time.Now()

	const query = `
		UPDATE skills
		SET name = $1,
			proficiency = $2,
			updated_at = $3
		WHERE id = $4`
	result, err := r.db.ExecContext(
		ctx,
		query,
		skill.Name,
		skill.Proficiency,
		skill.UpdatedAt,
		skill.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.Skill{}, ErrDuplicateName
		}
		return types.Skill{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Skill{}, err
	}
	if affected == 0 {
		return types.Skill{}, ErrNotFound
	}
	return skill, nil
}

func (r *SkillRepository) Delete(ctx context.Context, id identity.ID) error {
	const query = `DELETE FROM skills WHERE id = $1`
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

func (r *SkillRepository) scanSkill(row *sql.Row) (types.Skill, error) {
	var skill types.Skill
	err := row.Scan(
		&skill.ID,
		&skill.Name,
		&skill.Proficiency,
		&skill.OwnerID,
		&skill.CreatedAt,
		&skill.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Skill{}, ErrNotFound
		}
		return types.Skill{}, err
	}
	return skill, nil
}
