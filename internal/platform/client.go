// Package platform wraps the external social platform's HTTP API. The rest of
// the system talks to the Client interface; failures surface as wrapped
// errors and retry policy lives inside the implementation.
package platform

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrRequestFailed wraps non-2xx responses from the platform API.
	ErrRequestFailed = errors.New("platform request failed")
	// ErrNoRegistrationDate is returned when the platform has no registration
	// date on record for a user.
	ErrNoRegistrationDate = errors.New("user has no registration date")
)

// ManagerRole values accepted by SetManagerRole. The empty role removes the
// user's manager position.
const (
	RoleEditor = "editor"
	RoleNone   = ""
)

// Profile is the subset of a user's public profile the trust engine scores.
type Profile struct {
	ClosedProfile bool `json:"closed"`
	HasPhoto      bool `json:"hasPhoto"`
	FriendsCount  int  `json:"friendsCount"`
	Verified      bool `json:"verified"`
	Deactivated   bool `json:"deactivated"`
}

// GroupData is the platform's view of a managed group.
type GroupData struct {
	GroupID      uint64   `json:"groupId"`
	Name         string   `json:"name"`
	MembersCount int      `json:"membersCount"`
	Managers     []uint64 `json:"managers"`
}

// Client is the surface of the platform API this system consumes.
type Client interface {
	// IsMember reports whether the user currently belongs to the group.
	IsMember(ctx context.Context, userID, groupID uint64) (bool, error)
	// SetManagerRole sets or removes (role RoleNone) the user's manager role.
	SetManagerRole(ctx context.Context, groupID, userID uint64, role string) error
	// BanInGroup bans the user from the group.
	BanInGroup(ctx context.Context, userID, groupID uint64) error
	// UnbanInGroup lifts the user's ban in the group.
	UnbanInGroup(ctx context.Context, userID, groupID uint64) error
	// GetProfile fetches the user's public profile.
	GetProfile(ctx context.Context, userID uint64) (*Profile, error)
	// GetWallPostCount returns the number of posts on the user's wall.
	GetWallPostCount(ctx context.Context, userID uint64) (int, error)
	// GetRegistrationDate returns when the account was registered, or
	// ErrNoRegistrationDate if the platform doesn't know.
	GetRegistrationDate(ctx context.Context, userID uint64) (time.Time, error)
	// GetGroupData fetches membership data for the given groups.
	GetGroupData(ctx context.Context, groupIDs []uint64) (map[uint64]*GroupData, error)
}
