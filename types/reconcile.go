package types

import (
	"time"

	"github.com/skilltracker/apiserver/internal/identity"
)

// ReconcileKind classifies the divergence left behind by a partial write.
type ReconcileKind string

const (
	// ReconcileOrphanSkill marks a skill inserted into the skill store
	// whose append to the owner's embedded cache did not complete.
	ReconcileOrphanSkill ReconcileKind = "orphan_skill"

	// ReconcileStaleEmbed marks an embedded entry left behind on an older
	// field state after the authoritative record was updated.
	ReconcileStaleEmbed ReconcileKind = "stale_embed"

	// ReconcileDanglingRef marks an embedded entry still referencing a
	// skill already deleted from the skill store.
	ReconcileDanglingRef ReconcileKind = "dangling_ref"
)

// ReconcileEvent is the message published for every partial write so the
// reconciler can finish the interrupted operation.
type ReconcileEvent struct {
	// Kind identifies the divergence to repair.
	Kind ReconcileKind `json:"kind"`

	// UserID is the owning user whose embedded cache diverged.
	UserID identity.ID `json:"user_id"`

	// SkillID is the skill whose two representations diverged.
	SkillID identity.ID `json:"skill_id"`

	// Op names the coordinated operation that was interrupted.
	Op string `json:"op"`

	// OccurredAt is the time the partial write was detected.
	OccurredAt time.Time `json:"occurred_at"`
}

// ReconcileReport records the outcome of one repair attempt. Reports are
// archived to object storage for operational review.
type ReconcileReport struct {
	Event      ReconcileEvent `json:"event"`
	Action     string         `json:"action"`
	Repaired   bool           `json:"repaired"`
	Detail     string         `json:"detail,omitempty"`
	RepairedAt time.Time      `json:"repaired_at"`
}
