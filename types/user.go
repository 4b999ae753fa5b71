package types

import (
	"time"

	"github.com/skilltracker/apiserver/internal/identity"
)

// User represents an account in the system.
// It carries identity, credentials, roles, and the embedded skill cache.
type User struct {
	// ID is the unique identifier of the user.
	ID identity.ID `json:"id" db:"id"`

	// Username is the unique login name chosen by the user.
	Username string `json:"username" db:"username"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// Roles lists the user's authorization roles in assignment order.
	// Registration assigns the single role "user".
	Roles []string `json:"roles" db:"roles"`

	// Skills is the embedded, insertion-ordered cache of the user's
	// skills. Each entry is a denormalized snapshot of the authoritative
	// skill record; it is written only through the coordinated skill
	// operations, never independently.
	Skills []Skill `json:"skills" db:"skills"`

	// Version is the optimistic-concurrency counter for the user row.
	// Updates must present the version they read; a mismatch means a
	// concurrent writer got there first.
	Version int64 `json:"version" db:"version"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SkillIndex returns the position of the embedded skill with the given id,
// or -1 when the user does not own it.
func (u *User) SkillIndex(id identity.ID) int {
	for i := range u.Skills {
		if u.Skills[i].ID == id {
			return i
		}
	}
	return -1
}
