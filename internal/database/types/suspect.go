package types

import "time"

// SuspectUser marks an account flagged by the odd-groups heuristic. Presence
// of a row is the signal; the trust engine only checks existence.
type SuspectUser struct {
	UserID    uint64    `bun:",pk"      json:"userId"`
	Reason    string    `bun:",notnull" json:"reason"`
	FlaggedAt time.Time `bun:",notnull" json:"flaggedAt"`
}
