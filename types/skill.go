package types

import (
	"time"

	"github.com/skilltracker/apiserver/internal/identity"
)

// Skill represents a skill claimed by a user.
//
// The row in the skill store is the authoritative record for the skill's
// field values; the copy embedded in the owning user's Skills sequence is
// a cache of it. The two are kept in sync by the coordinated skill
// operations in the services package.
type Skill struct {
	// ID is the unique identifier of the skill. Immutable after creation.
	ID identity.ID `json:"id" db:"id"`

	// Name is the skill name. Non-empty and unique across all skills,
	// case-sensitive.
	Name string `json:"name" db:"name"`

	// Proficiency is the user's self-assessed level for the skill
	// (e.g., "beginner", "intermediate", "expert").
	Proficiency string `json:"proficiency" db:"proficiency"`

	// OwnerID is the id of the owning user. Stored on the authoritative
	// row for cascade deletion and reconciliation; not part of the API
	// surface.
	OwnerID identity.ID `json:"-" db:"owner_id"`

	// CreatedAt is the timestamp when the skill was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the skill.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Equal reports whether two skills carry the same identity and field
// values. Timestamps are ignored; they are audit metadata, not part of
// the cached representation.
func (s Skill) Equal(other Skill) bool {
	return s.ID == other.ID &&
		s.Name == other.Name &&
		s.Proficiency == other.Proficiency &&
		s.OwnerID == other.OwnerID
}
