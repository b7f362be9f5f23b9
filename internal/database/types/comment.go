package types

import "time"

// Comment is a user-authored comment stored by the content pipeline. Toxicity
// is the precomputed moderation score in [0,1]; the trust engine averages it
// across the user's comments.
type Comment struct {
	ID       int64     `bun:",pk,autoincrement"  json:"id"`
	AuthorID uint64    `bun:",notnull"           json:"authorId"`
	GroupID  uint64    `bun:",nullzero"          json:"groupId,omitempty"`
	Text     string    `bun:",notnull"           json:"text"`
	Toxicity float64   `bun:",notnull,default:0" json:"toxicity"`
	PostedOn time.Time `bun:",notnull"           json:"postedOn"`
}
