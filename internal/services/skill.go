package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/skilltracker/apiserver/internal/identity"
	"github.com/skilltracker/apiserver/internal/metrics"
	"github.com/skilltracker/apiserver/internal/store"
	"github.com/skilltracker/apiserver/types"
)

// staleRetryLimit bounds how often the parent-cache phase is re-driven
// after losing the read-modify-write race on the user row.
const staleRetryLimit = 3

// SkillRepository defines persistence operations for the authoritative
// skill records.
type SkillRepository interface {
	GetByID(ctx context.Context, id identity.ID) (types.Skill, error)
	GetByName(ctx context.Context, name string) (types.Skill, error)
	ListByOwner(ctx context.Context, ownerID identity.ID) ([]types.Skill, error)
	Create(ctx context.Context, skill types.Skill) (types.Skill, error)
	Update(ctx context.Context, skill types.Skill) (types.Skill, error)
	Delete(ctx context.Context, id identity.ID) error
}

// ReconcileNotifier receives the events emitted for partial writes.
// Notification is best-effort; delivery failure must not fail the request
// beyond the partial-write error already being returned.
type ReconcileNotifier interface {
	NotifyPartialWrite(ctx context.Context, event types.ReconcileEvent)
}

// SkillService coordinates every skill mutation across the two
// representations of a skill: the authoritative record in the skill store
// and the snapshot embedded in the owning user row.
//
// Each mutation runs in two phases, authoritative store first, parent
// cache second, without a cross-record transaction. When the second phase
// fails the operation reports a PartialWriteError naming what diverged,
// logs it as a priority event, and hands it to the reconcile notifier.
// The two phases always write the same record value, so the
// representations converge as soon as both writes land.
type SkillService struct {
	users    UserRepository
	skills   SkillRepository
	notifier ReconcileNotifier
	metrics  metrics.Recorder
}

// NewSkillService constructs the coordinator. notifier may be nil when no
// reconcile channel is configured.
func NewSkillService(users UserRepository, skills SkillRepository, notifier ReconcileNotifier, rec metrics.Recorder) *SkillService {
	return &SkillService{users: users, skills: skills, notifier: notifier, metrics: rec}
}

// AddSkill creates the skill in the authoritative store owned by userID,
// then appends the created record to the user's embedded sequence.
//
// Failure modes: store.ErrNotFound (no such user, nothing written),
// ErrEmptySkillName and store.ErrDuplicateName (aborted before the first
// phase completes), and *PartialWriteError carrying the created skill id
// when the append cannot be persisted.
func (s *SkillService) AddSkill(ctx context.Context, userID identity.ID, draft types.Skill) (types.Skill, error) {
	if draft.Name == "" {
		return types.Skill{}, ErrEmptySkillName
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return types.Skill{}, err
	}

	draft.OwnerID = userID
	created, err := s.skills.Create(ctx, draft)
	if err != nil {
		s.record("add", "error")
		return types.Skill{}, err
	}

	err = s.persistEmbed(ctx, user, func(u *types.User) error {
		u.Skills = append(u.Skills, created)
		return nil
	})
	if err != nil {
		return created, s.partialWrite(ctx, "add_skill", types.ReconcileOrphanSkill, userID, created.ID, err)
	}
	s.record("add", "ok")
	return created, nil
}

// UpdateSkill applies a partial patch to a skill owned by userID. Empty
// patch fields mean "no change". The merged record is written to the
// skill store first and then copied over the embedded entry, preserving
// its position.
func (s *SkillService) UpdateSkill(ctx context.Context, userID, skillID identity.ID, patch types.Skill) (types.Skill, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return types.Skill{}, err
	}
	idx := user.SkillIndex(skillID)
	if idx < 0 {
		return types.Skill{}, ErrSkillNotFound
	}

	merged := user.Skills[idx]
	if patch.Name != "" {
		merged.Name = patch.Name
	}
	if patch.Proficiency != "" {
		merged.Proficiency = patch.Proficiency
	}
	if merged.Equal(user.Skills[idx]) {
		// Nothing to change; both representations already agree.
		return user.Skills[idx], nil
	}

	stored, err := s.skills.Update(ctx, merged)
	if err != nil {
		s.record("update", "error")
		return types.Skill{}, err
	}

	err = s.persistEmbed(ctx, user, func(u *types.User) error {
		i := u.SkillIndex(skillID)
		if i < 0 {
			return ErrSkillNotFound
		}
		u.Skills[i] = stored
		return nil
	})
	if err != nil {
		return stored, s.partialWrite(ctx, "update_skill", types.ReconcileStaleEmbed, userID, skillID, err)
	}
	s.record("update", "ok")
	return stored, nil
}

// RemoveSkill deletes a skill owned by userID from the authoritative
// store, then removes the embedded entry. The order of the remaining
// entries is preserved.
func (s *SkillService) RemoveSkill(ctx context.Context, userID, skillID identity.ID) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.SkillIndex(skillID) < 0 {
		return ErrSkillNotFound
	}

	if err := s.skills.Delete(ctx, skillID); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.record("remove", "error")
		return err
	}

	err = s.persistEmbed(ctx, user, func(u *types.User) error {
		i := u.SkillIndex(skillID)
		if i < 0 {
			return nil
		}
		u.Skills = append(u.Skills[:i], u.Skills[i+1:]...)
		return nil
	})
	if err != nil {
		return s.partialWrite(ctx, "remove_skill", types.ReconcileDanglingRef, userID, skillID, err)
	}
	s.record("remove", "ok")
	return nil
}

// GetAll returns the user's embedded skill sequence in insertion order.
// This is a pure read of the parent cache; the skill store is not
// consulted.
func (s *SkillService) GetAll(ctx context.Context, userID identity.ID) ([]types.Skill, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.Skills, nil
}

// persistEmbed drives the parent-cache phase: apply mutate to the user
// and persist, re-reading and re-applying when a concurrent writer bumped
// the version first.
func (s *SkillService) persistEmbed(ctx context.Context, user types.User, mutate func(*types.User) error) error {
	for attempt := 0; ; attempt++ {
		if err := mutate(&user); err != nil {
			return err
		}
		_, err := s.users.Update(ctx, user)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrStaleWrite) || attempt+1 >= staleRetryLimit {
			return err
		}
		user, err = s.users.GetByID(ctx, user.ID)
		if err != nil {
			return err
		}
	}
}

func (s *SkillService) partialWrite(ctx context.Context, op string, kind types.ReconcileKind, userID, skillID identity.ID, cause error) error {
	perr := &PartialWriteError{Op: op, UserID: userID, SkillID: skillID, Err: cause}
	slog.ErrorContext(ctx, "partial write",
		"op", op, "kind", string(kind), "user_id", userID, "skill_id", skillID, "error", cause)
	s.record(opLabel(op), "partial")
	if s.metrics != nil {
		s.metrics.RecordPartialWrite(opLabel(op))
	}
	if s.notifier != nil {
		s.notifier.NotifyPartialWrite(ctx, types.ReconcileEvent{
			Kind:       kind,
			UserID:     userID,
			SkillID:    skillID,
			Op:         op,
			OccurredAt: time.Now(),
		})
	}
	return perr
}

func (s *SkillService) record(op, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordSkillMutation(op, outcome)
	}
}

func opLabel(op string) string {
	switch op {
	case "add_skill":
		return "add"
	case "update_skill":
		return "update"
	case "remove_skill":
		return "remove"
	}
	return op
}
