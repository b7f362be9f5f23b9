package types

import (
	"errors"
	"time"
)

var ErrGroupNotFound = errors.New("group not found")

// Group is a community on the external platform administered by this system.
type Group struct {
	GroupID uint64    `bun:",pk"      json:"groupId"`
	Name    string    `bun:",notnull" json:"name"`
	AddedAt time.Time `bun:",notnull" json:"addedAt"`
}

// GroupSnapshot is the cached view of a managed group's membership state,
// refreshed from the platform API. Read-only to the core services.
type GroupSnapshot struct {
	GroupID       uint64    `json:"groupId"`
	Name          string    `json:"name"`
	ManagersCount int       `json:"managersCount"`
	MembersCount  int       `json:"membersCount"`
	Managers      []uint64  `json:"managers"`
	FetchedAt     time.Time `json:"fetchedAt"`
}
