// Package verification implements the member verification lifecycle:
// classifying the roster by elapsed time, executing warning/removal batches
// with a confirmation guard, and the periodic schedulers driving both.
package verification

import (
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/gatewarden/gatewarden/internal/platform"
)

// State describes where a member sits in the verification lifecycle.
// It is derived from the member snapshot and never persisted.
type State int

const (
	// StateVerified means the member holds at least one role other than the
	// unverified marker role.
	StateVerified State = iota
	// StateAwaitingGrace means the member is unverified but still within the
	// warning grace period.
	StateAwaitingGrace
	// StatePendingWarning means the member should receive the marker role.
	StatePendingWarning
	// StatePendingRemoval means the member should be kicked.
	StatePendingRemoval
)

// String returns the lifecycle state name.
func (s State) String() string {
	switch s {
	case StateVerified:
		return "verified"
	case StateAwaitingGrace:
		return "awaiting_grace"
	case StatePendingWarning:
		return "pending_warning"
	case StatePendingRemoval:
		return "pending_removal"
	default:
		return "unknown"
	}
}

// Thresholds holds the grace periods of the verification lifecycle.
type Thresholds struct {
	// WarnAfter is how long after joining an unverified member is given the
	// marker role.
	WarnAfter time.Duration
	// KickAfter is how long after joining an unverified member is removed.
	KickAfter time.Duration
}

// IsVerified reports whether the member is considered verified.
//
// Members are considered verified if they hold at least one role other than
// the default role and the unverified marker role. The default role is
// implicit and never appears in the snapshot's role list.
func IsVerified(m platform.Member, unverifiedRoleID snowflake.ID) bool {
	for _, id := range m.RoleIDs {
		if id != unverifiedRoleID {
			return true
		}
	}

	return false
}

// StateOf derives the lifecycle state of a member at the given instant.
// Members with an unknown join time stay in the grace period until the
// platform reports one.
func StateOf(m platform.Member, unverifiedRoleID snowflake.ID, now time.Time, t Thresholds) State {
	if IsVerified(m, unverifiedRoleID) {
		return StateVerified
	}

	if m.JoinedAt == nil {
		return StateAwaitingGrace
	}

	elapsed := now.Sub(*m.JoinedAt)

	switch {
	case elapsed > t.KickAfter:
		return StatePendingRemoval
	case elapsed > t.WarnAfter:
		return StatePendingWarning
	default:
		return StateAwaitingGrace
	}
}
