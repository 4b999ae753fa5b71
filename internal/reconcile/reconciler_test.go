package reconcile

import (
	"context"
	"sync"
	"testing"

	"github.com/skilltracker/apiserver/internal/identity"
	"github.com/skilltracker/apiserver/internal/store"
	"github.com/skilltracker/apiserver/types"
)

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
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *memUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
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

func seedUser(t *testing.T, users *memUserRepo, username string, skills ...types.Skill) types.User {
	t.Helper()
	user, err := users.Create(context.Background(), types.User{
		Username: username,
		Skills:   skills,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func seedSkill(t *testing.T, skills *memSkillRepo, ownerID identity.ID, name, proficiency string) types.Skill {
	t.Helper()
	skill, err := skills.Create(context.Background(), types.Skill{
		Name:        name,
		Proficiency: proficiency,
		OwnerID:     ownerID,
	})
	if err != nil {
		t.Fatalf("seed skill: %v", err)
	}
	return skill
}

func TestRepairOrphanEmbedsUnderOwner(t *testing.T) {
	users := newMemUserRepo()
	skills := newMemSkillRepo()
	rec := NewReconciler(users, skills, nil, nil)
	ctx := context.Background()

	alice := seedUser(t, users, "alice")
	orphan := seedSkill(t, skills, alice.ID, "Go", "expert")

	report := rec.Repair(ctx, types.ReconcileEvent{
		Kind:    types.ReconcileOrphanSkill,
		UserID:  alice.ID,
		SkillID: orphan.ID,
	})
	if !report.Repaired {
		t.Fatalf("report = %+v", report)
	}

	user, err := users.GetByID(ctx, alice.ID)
	if err != nil {
		t.Fatalf("load user: %v", err)
	}
	idx := user.SkillIndex(orphan.ID)
	if idx < 0 {
		t.Fatal("orphan not embedded")
	}
	if !user.Skills[idx].Equal(orphan) {
		t.Fatalf("embedded = %+v, want %+v", user.Skills[idx], orphan)
	}
}

func TestRepairOrphanDeletesWhenOwnerGone(t *testing.T) {
	users := newMemUserRepo()
	skills := newMemSkillRepo()
	rec := NewReconciler(users, skills, nil, nil)
	ctx := context.Background()

	ownerID := identity.New()
	orphan := seedSkill(t, skills, ownerID, "Go", "expert")

	report := rec.Repair(ctx, types.ReconcileEvent{
		Kind:    types.ReconcileOrphanSkill,
		UserID:  ownerID,
		SkillID: orphan.ID,
	})
	if !report.Repaired {
		t.Fatalf("report = %+v", report)
	}
	if _, err := skills.GetByID(ctx, orphan.ID); err == nil {
		t.Fatal("orphan record should be deleted")
	}
}

func TestRepairOrphanNoopWhenAlreadyEmbedded(t *testing.T) {
	users := newMemUserRepo()
	skills := newMemSkillRepo()
	rec := NewReconciler(users, skills, nil, nil)
	ctx := context.Background()

	ownerID := identity.New()
	skill := seedSkill(t, skills, ownerID, "Go", "expert")
	alice := seedUser(t, users, "alice", skill)

	before, _ := users.GetByID(ctx, alice.ID)
	report := rec.Repair(ctx, types.ReconcileEvent{
		Kind:    types.ReconcileOrphanSkill,
		UserID:  alice.ID,
		SkillID: skill.ID,
	})
	if !report.Repaired {
		t.Fatalf("report = %+v", report)
	}
	after, _ := users.GetByID(ctx, alice.ID)
	if after.Version != before.Version {
		t.Fatal("noop repair must not write the user row")
	}
}

func TestRepairStaleEmbedRefreshes(t *testing.T) {
	users := newMemUserRepo()
	skills := newMemSkillRepo()
	rec := NewReconciler(users, skills, nil, nil)
	ctx := context.Background()

	ownerID := identity.New()
	authoritative := seedSkill(t, skills, ownerID, "Go", "expert")
	stale := authoritative
	stale.Proficiency = "novice"
	alice := seedUser(t, users, "alice", stale)

	report := rec.Repair(ctx, types.ReconcileEvent{
		Kind:    types.ReconcileStaleEmbed,
		UserID:  alice.ID,
		SkillID: authoritative.ID,
	})
	if !report.Repaired {
		t.Fatalf("report = %+v", report)
	}

	user, _ := users.GetByID(ctx, alice.ID)
	idx := user.SkillIndex(authoritative.ID)
	if idx < 0 || user.Skills[idx].Proficiency != "expert" {
		t.Fatalf("skills = %+v", user.Skills)
	}
}

func TestRepairStaleEmbedFallsBackWhenRecordGone(t *testing.T) {
	users := newMemUserRepo()
	skills := newMemSkillRepo()
	rec := NewReconciler(users, skills, nil, nil)
	ctx := context.Background()

	ghost := types.Skill{ID: identity.New(), Name: "Go"}
	alice := seedUser(t, users, "alice", ghost)

	report := rec.Repair(ctx, types.ReconcileEvent{
		Kind:    types.ReconcileStaleEmbed,
		UserID:  alice.ID,
		SkillID: ghost.ID,
	})
	if !report.Repaired {
		t.Fatalf("report = %+v", report)
	}

	user, _ := users.GetByID(ctx, alice.ID)
	if user.SkillIndex(ghost.ID) >= 0 {
		t.Fatal("ghost reference should have been dropped")
	}
}

func TestRepairDanglingRefDropsEntry(t *testing.T) {
	users := newMemUserRepo()
	skills := newMemSkillRepo()
	rec := NewReconciler(users, skills, nil, nil)
	ctx := context.Background()

	ownerID := identity.New()
	keep := seedSkill(t, skills, ownerID, "SQL", "expert")
	dangling := types.Skill{ID: identity.New(), Name: "Go"}
	alice := seedUser(t, users, "alice", dangling, keep)

	report := rec.Repair(ctx, types.ReconcileEvent{
		Kind:    types.ReconcileDanglingRef,
		UserID:  alice.ID,
		SkillID: dangling.ID,
	})
	if !report.Repaired {
		t.Fatalf("report = %+v", report)
	}

	user, _ := users.GetByID(ctx, alice.ID)
	if user.SkillIndex(dangling.ID) >= 0 {
		t.Fatal("dangling reference still embedded")
	}
	if user.SkillIndex(keep.ID) < 0 {
		t.Fatal("unrelated entry removed")
	}
}

func TestRepairDanglingRefNoops(t *testing.T) {
	users := newMemUserRepo()
	skills := newMemSkillRepo()
	rec := NewReconciler(users, skills, nil, nil)
	ctx := context.Background()

	alice := seedUser(t, users, "alice")

	report := rec.Repair(ctx, types.ReconcileEvent{
		Kind:    types.ReconcileDanglingRef,
		UserID:  alice.ID,
		SkillID: identity.New(),
	})
	if !report.Repaired {
		t.Fatalf("report = %+v", report)
	}

	report = rec.Repair(ctx, types.ReconcileEvent{
		Kind:    types.ReconcileDanglingRef,
		UserID:  identity.New(),
		SkillID: identity.New(),
	})
	if !report.Repaired {
		t.Fatalf("absent owner report = %+v", report)
	}
}

func TestRepairRetriesStaleWrite(t *testing.T) {
	users := newMemUserRepo()
	skills := newMemSkillRepo()
	rec := NewReconciler(users, skills, nil, nil)
	ctx := context.Background()

	alice := seedUser(t, users, "alice")
	orphan := seedSkill(t, skills, alice.ID, "Go", "expert")

	calls := 0
	users.updateErr = func(types.User) error {
		calls++
		if calls == 1 {
			return store.ErrStaleWrite
		}
		return nil
	}

	report := rec.Repair(ctx, types.ReconcileEvent{
		Kind:    types.ReconcileOrphanSkill,
		UserID:  alice.ID,
		SkillID: orphan.ID,
	})
	if !report.Repaired {
		t.Fatalf("report = %+v", report)
	}
	if calls != 2 {
		t.Fatalf("update called %d times, want 2", calls)
	}
}

func TestRepairUnknownKind(t *testing.T) {
	rec := NewReconciler(newMemUserRepo(), newMemSkillRepo(), nil, nil)

	report := rec.Repair(context.Background(), types.ReconcileEvent{Kind: "bogus"})
	if report.Repaired {
		t.Fatal("unknown kind must not report success")
	}
	if report.Detail == "" {
		t.Fatal("expected failure detail")
	}
}
