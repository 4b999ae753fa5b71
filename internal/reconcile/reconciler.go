package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/skilltracker/apiserver/internal/metrics"
	"github.com/skilltracker/apiserver/internal/mq"
	"github.com/skilltracker/apiserver/internal/services"
	"github.com/skilltracker/apiserver/internal/storage"
	"github.com/skilltracker/apiserver/internal/store"
	"github.com/skilltracker/apiserver/types"
)

const repairRetryLimit = 3

// Reconciler consumes reconcile events and re-establishes the invariant
// between the authoritative skill store and the embedded caches. Every
// attempt produces a report; when an archive is configured the report is
// uploaded for operational review.
type Reconciler struct {
	users   services.UserRepository
	skills  services.SkillRepository
	archive *storage.Storage
	metrics metrics.Recorder
}

// NewReconciler constructs a Reconciler. archive and rec may be nil.
func NewReconciler(users services.UserRepository, skills services.SkillRepository, archive *storage.Storage, rec metrics.Recorder) *Reconciler {
	return &Reconciler{users: users, skills: skills, archive: archive, metrics: rec}
}

// Run subscribes to the reconcile channel and processes events until the
// context is cancelled.
func (r *Reconciler) Run(ctx context.Context, m *mq.MQ, channel string) error {
	return m.Subscribe(ctx, channel, r.handle)
}

func (r *Reconciler) handle(ctx context.Context, msg mq.Message) error {
	var event types.ReconcileEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		// Undecodable events can never be repaired; ack them away.
		slog.ErrorContext(ctx, "discarding malformed reconcile event", "message_id", msg.ID, "error", err)
		return nil
	}

	report := r.Repair(ctx, event)
	r.archiveReport(ctx, report)

	if !report.Repaired {
		return fmt.Errorf("repair %s for skill %s failed: %s", event.Kind, event.SkillID, report.Detail)
	}
	return nil
}

// Repair resolves a single divergence and reports what was done.
func (r *Reconciler) Repair(ctx context.Context, event types.ReconcileEvent) types.ReconcileReport {
	report := types.ReconcileReport{Event: event, RepairedAt: time.Now()}

	var err error
	switch event.Kind {
	case types.ReconcileOrphanSkill:
		report.Action, err = r.repairOrphan(ctx, event)
	case types.ReconcileStaleEmbed:
		report.Action, err = r.repairStaleEmbed(ctx, event)
	case types.ReconcileDanglingRef:
		report.Action, err = r.repairDanglingRef(ctx, event)
	default:
		err = fmt.Errorf("unknown reconcile kind %q", event.Kind)
	}

	report.Repaired = err == nil
	if err != nil {
		report.Detail = err.Error()
		slog.ErrorContext(ctx, "reconcile repair failed",
			"kind", string(event.Kind), "user_id", event.UserID, "skill_id", event.SkillID, "error", err)
	} else {
		slog.InfoContext(ctx, "reconcile repair done",
			"kind", string(event.Kind), "action", report.Action, "user_id", event.UserID, "skill_id", event.SkillID)
	}
	if r.metrics != nil {
		r.metrics.RecordRepair(string(event.Kind), report.Repaired)
	}
	return report
}

// repairOrphan finishes an interrupted AddSkill: embed the created record
// under its owner, or delete it when the owner is gone.
func (r *Reconciler) repairOrphan(ctx context.Context, event types.ReconcileEvent) (string, error) {
	skill, err := r.skills.GetByID(ctx, event.SkillID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "noop: skill record already absent", nil
		}
		return "", err
	}

	user, err := r.users.GetByID(ctx, event.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			if err := r.skills.Delete(ctx, skill.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
				return "", err
			}
			return "deleted orphan: owner absent", nil
		}
		return "", err
	}

	if user.SkillIndex(skill.ID) >= 0 {
		return "noop: already embedded", nil
	}
	err = r.persist(ctx, user, func(u *types.User) {
		if u.SkillIndex(skill.ID) < 0 {
			u.Skills = append(u.Skills, skill)
		}
	})
	if err != nil {
		return "", err
	}
	return "embedded orphan under owner", nil
}

// repairStaleEmbed overwrites the embedded entry with the authoritative
// record after an interrupted UpdateSkill.
func (r *Reconciler) repairStaleEmbed(ctx context.Context, event types.ReconcileEvent) (string, error) {
	skill, err := r.skills.GetByID(ctx, event.SkillID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// The record is gone; fall back to dropping the reference.
			return r.repairDanglingRef(ctx, event)
		}
		return "", err
	}

	user, err := r.users.GetByID(ctx, event.UserID)
	if err != nil {
		return "", err
	}
	idx := user.SkillIndex(event.SkillID)
	if idx >= 0 && user.Skills[idx].Equal(skill) {
		return "noop: embed already current", nil
	}
	err = r.persist(ctx, user, func(u *types.User) {
		if i := u.SkillIndex(event.SkillID); i >= 0 {
			u.Skills[i] = skill
		} else {
			u.Skills = append(u.Skills, skill)
		}
	})
	if err != nil {
		return "", err
	}
	return "refreshed embed from authoritative record", nil
}

// repairDanglingRef drops an embedded entry whose authoritative record
// was deleted by an interrupted RemoveSkill.
func (r *Reconciler) repairDanglingRef(ctx context.Context, event types.ReconcileEvent) (string, error) {
	user, err := r.users.GetByID(ctx, event.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "noop: owner already absent", nil
		}
		return "", err
	}
	if user.SkillIndex(event.SkillID) < 0 {
		return "noop: reference already removed", nil
	}
	err = r.persist(ctx, user, func(u *types.User) {
		if i := u.SkillIndex(event.SkillID); i >= 0 {
			u.Skills = append(u.Skills[:i], u.Skills[i+1:]...)
		}
	})
	if err != nil {
		return "", err
	}
	return "removed dangling reference", nil
}

func (r *Reconciler) persist(ctx context.Context, user types.User, mutate func(*types.User)) error {
	for attempt := 0; ; attempt++ {
		mutate(&user)
		_, err := r.users.Update(ctx, user)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrStaleWrite) || attempt+1 >= repairRetryLimit {
			return err
		}
		user, err = r.users.GetByID(ctx, user.ID)
		if err != nil {
			return err
		}
	}
}

func (r *Reconciler) archiveReport(ctx context.Context, report types.ReconcileReport) {
	if r.archive == nil {
		return
	}
	key := fmt.Sprintf("reports/%s/%s-%d.json",
		report.Event.Kind, report.Event.SkillID, report.RepairedAt.UnixNano())
	if err := r.archive.PutJSON(ctx, key, report); err != nil {
		slog.ErrorContext(ctx, "archive reconcile report failed", "key", key, "error", err)
	}
}
