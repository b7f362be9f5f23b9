package types

import (
	"errors"
	"time"
)

// ErrWatchdogNotFound is returned when a watchdog log does not exist.
var ErrWatchdogNotFound = errors.New("watchdog log not found")

// WatchdogLog is a reported moderation incident awaiting attribution to an
// offending user. Intruder is set at most once; that transition is the edge
// that triggers violation escalation.
type WatchdogLog struct {
	WatchdogID int64     `bun:",pk,autoincrement"      json:"watchdogId"`
	Intruder   uint64    `bun:",nullzero"              json:"intruder,omitempty"`
	Victim     uint64    `bun:",nullzero"              json:"victim,omitempty"`
	GroupID    uint64    `bun:",notnull"               json:"groupId"`
	Priority   Priority  `bun:",notnull"               json:"priority"`
	Date       time.Time `bun:",notnull"               json:"date"`
	Reviewed   bool      `bun:",notnull,default:false" json:"reviewed"`
}
