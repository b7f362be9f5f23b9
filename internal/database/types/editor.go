package types

import (
	"errors"
	"time"
)

// ErrWipHeld is returned when a grant attempt is already in flight for a user.
var ErrWipHeld = errors.New("grant attempt already in progress")

// EditorHistoryItem records one editor-grant attempt for a user. The Wip flag
// is the durable per-user concurrency lock: for a given user at most one item
// may have Wip set, enforced by a conditional insert in the model layer.
type EditorHistoryItem struct {
	ID      int64     `bun:",pk,autoincrement"      json:"id"`
	UserID  uint64    `bun:",notnull"               json:"userId"`
	GroupID uint64    `bun:",notnull"               json:"groupId"`
	Date    time.Time `bun:",notnull"               json:"date"`
	Granted bool      `bun:",notnull,default:false" json:"granted"`
	Wip     bool      `bun:",notnull,default:false" json:"wip"`
}
