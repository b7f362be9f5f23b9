package types

import (
	"time"
)

// WarningLifetime is how long a warning counts against a user before it
// expires. Bans never expire on their own; they are lifted through amnesty.
const WarningLifetime = 120 * 24 * time.Hour

// ViolationType distinguishes warnings from bans.
type ViolationType int

const (
	ViolationWarned ViolationType = iota
	ViolationBanned
)

// String returns the lowercase name of the violation type.
func (t ViolationType) String() string {
	switch t {
	case ViolationWarned:
		return "warned"
	case ViolationBanned:
		return "banned"
	default:
		return "unknown"
	}
}

// Priority is the severity tier of a violation, ordered from least to most
// severe.
type Priority int

const (
	PriorityGreen Priority = iota
	PriorityTeal
	PriorityOrange
	PriorityRed
)

// String returns the lowercase name of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityGreen:
		return "green"
	case PriorityTeal:
		return "teal"
	case PriorityOrange:
		return "orange"
	case PriorityRed:
		return "red"
	default:
		return "unknown"
	}
}

// Violation is a recorded warning or ban tied to a user, group, date, and
// severity. Violations are appended by the escalator and deactivated by
// amnesty; they are never deleted here.
type Violation struct {
	ID       int64         `bun:",pk,autoincrement"      json:"id"`
	UserID   uint64        `bun:",notnull"               json:"userId"`
	Type     ViolationType `bun:",notnull"               json:"type"`
	GroupID  uint64        `bun:",nullzero"              json:"groupId,omitempty"`
	Priority Priority      `bun:",notnull"               json:"priority"`
	Date     time.Time     `bun:",notnull"               json:"date"`
	Active   bool          `bun:",notnull,default:false" json:"active"`

	WatchdogRef int64 `bun:",nullzero" json:"watchdogRef,omitempty"`
	RequestRef  int64 `bun:",nullzero" json:"requestRef,omitempty"`
	Complaint   int64 `bun:",nullzero" json:"complaint,omitempty"`
}

// IsExpired reports whether the violation no longer counts against the user.
// Expiry applies to warnings only; it is computed from the violation date
// rather than stored.
func (v *Violation) IsExpired() bool {
	if v.Type != ViolationWarned {
		return false
	}

	return time.Since(v.Date) > WarningLifetime
}
