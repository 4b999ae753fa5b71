package services

import (
	"errors"
	"fmt"

	"github.com/skilltracker/apiserver/internal/identity"
)

// ErrSkillNotFound is returned when a skill id is not embedded under the
// requesting user. A skill that exists in the store but belongs to another
// user is indistinguishable from an absent one.
var ErrSkillNotFound = errors.New("skill not found")

// ErrForbidden is returned when a caller addresses another user's subtree.
var ErrForbidden = errors.New("forbidden")

// ErrInvalidCredentials is returned when authentication fails. Unknown
// username and wrong password are deliberately indistinguishable.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrEmptyCredentials is returned when registration or a profile update
// presents an empty username or password where one is required.
var ErrEmptyCredentials = errors.New("username and password must not be empty")

// ErrEmptySkillName is returned when a skill is created without a name.
var ErrEmptySkillName = errors.New("skill name must not be empty")

// PartialWriteError reports a coordinated two-phase operation that
// completed its authoritative-store phase but could not complete the
// parent-cache phase. It carries enough identity information for the
// reconciler (or a manual retry) to finish the job. The coordinator never
// swallows this condition.
type PartialWriteError struct {
	// Op is the coordinated operation that was interrupted.
	Op string

	// UserID is the owner whose embedded cache is now diverged.
	UserID identity.ID

	// SkillID is the skill whose representations diverged. For AddSkill
	// this is the newly created, now-orphaned record.
	SkillID identity.ID

	// Err is the failure from the parent-cache phase.
	Err error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("partial write in %s: skill %s diverged from user %s: %v",
		e.Op, e.SkillID, e.UserID, e.Err)
}

func (e *PartialWriteError) Unwrap() error {
	return e.Err
}
