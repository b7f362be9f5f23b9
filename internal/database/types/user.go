package types

import (
	"errors"
	"time"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrInvalidUserID = errors.New("invalid user ID")
)

// User represents a platform user managed by the moderation system.
type User struct {
	UserID    uint64    `bun:",pk"                    json:"userId"`
	Name      string    `bun:",notnull"               json:"name"`
	Admin     bool      `bun:",notnull,default:false" json:"admin"`
	InvitedBy uint64    `bun:",nullzero"              json:"invitedBy,omitempty"`
	JoinDate  time.Time `bun:",notnull"               json:"joinDate"`
	TrustInfo TrustInfo `bun:"embed:trust_"           json:"trustInfo"`
	Groups    []uint64  `bun:",array"                 json:"groups"`

	Violations []*Violation `bun:"rel:has-many,join:user_id=user_id" json:"violations"`
}

// HasActiveViolation reports whether the user currently carries an active ban.
func (u *User) HasActiveViolation() bool {
	for _, v := range u.Violations {
		if v.Type == ViolationBanned && v.Active {
			return true
		}
	}

	return false
}

// HasWarning reports whether the user currently carries an unexpired warning.
func (u *User) HasWarning() bool {
	for _, v := range u.Violations {
		if v.Type == ViolationWarned && !v.IsExpired() {
			return true
		}
	}

	return false
}

// EverBanned reports whether the user has ever received a ban violation,
// active or not.
func (u *User) EverBanned() bool {
	for _, v := range u.Violations {
		if v.Type == ViolationBanned {
			return true
		}
	}

	return false
}

// EverWarned reports whether the user has ever received a warning violation.
func (u *User) EverWarned() bool {
	for _, v := range u.Violations {
		if v.Type == ViolationWarned {
			return true
		}
	}

	return false
}

// TrustInfo holds the scored signals backing a user's trust value.
// Trust is always the clamped output of the trust engine; it is never edited
// by hand outside of it.
type TrustInfo struct {
	Trust    int     `bun:",notnull,default:0" json:"trust"`
	Toxicity float64 `bun:",notnull,default:0" json:"toxicity"`

	ClosedProfile   bool `bun:",notnull,default:true"  json:"closedProfile"`
	HasPhoto        bool `bun:",notnull,default:false" json:"hasPhoto"`
	HasWallPosts    bool `bun:",notnull,default:false" json:"hasWallPosts"`
	HasFriends      bool `bun:",notnull,default:false" json:"hasFriends"`
	Verified        bool `bun:",notnull,default:false" json:"verified"`
	JoinedMainGroup bool `bun:",notnull,default:false" json:"joinedMainGroup"`
	JoinedTestGroup bool `bun:",notnull,default:false" json:"joinedTestGroup"`
	Activism        bool `bun:",notnull,default:false" json:"activism"`
	Donate          bool `bun:",notnull,default:false" json:"donate"`
	OddGroups       bool `bun:",notnull,default:false" json:"oddGroups"`
	HasViolation    bool `bun:",notnull,default:false" json:"hasViolation"`
	HadViolation    bool `bun:",notnull,default:false" json:"hadViolation"`
	HasWarning      bool `bun:",notnull,default:false" json:"hasWarning"`
	HadWarning      bool `bun:",notnull,default:false" json:"hadWarning"`
	UsedPlatform    bool `bun:",notnull,default:false" json:"usedPlatform"`

	RegistrationDate  time.Time `bun:",nullzero" json:"registrationDate,omitempty"`
	CommunityJoinDate time.Time `bun:",nullzero" json:"communityJoinDate,omitempty"`
	LastUpdated       time.Time `bun:",nullzero" json:"lastUpdated,omitempty"`
}

// DefaultTrustInfo returns the trust info assigned to freshly created users.
// The trust seed is provisional and gets replaced on the first recomputation.
func DefaultTrustInfo(now time.Time) TrustInfo {
	return TrustInfo{
		Trust:             40,
		ClosedProfile:     true,
		CommunityJoinDate: now,
	}
}
