package trust_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wardenhq/warden/internal/database/types"
	"github.com/wardenhq/warden/internal/platform"
	"github.com/wardenhq/warden/internal/trust"
	"go.uber.org/zap"
)

const (
	mainGroupID = uint64(100)
	testGroupID = uint64(101)
)

type fakeUserStore struct {
	users   map[uint64]*types.User
	suspect map[uint64]bool
	saved   map[uint64]*types.TrustInfo
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		users:   make(map[uint64]*types.User),
		suspect: make(map[uint64]bool),
		saved:   make(map[uint64]*types.TrustInfo),
	}
}

func (s *fakeUserStore) Get(_ context.Context, userID uint64) (*types.User, error) {
	user, ok := s.users[userID]
	if !ok {
		return nil, types.ErrUserNotFound
	}

	return user, nil
}

func (s *fakeUserStore) UpdateTrustInfo(_ context.Context, userID uint64, info *types.TrustInfo) error {
	s.saved[userID] = info
	return nil
}

func (s *fakeUserStore) IsSuspect(_ context.Context, userID uint64) (bool, error) {
	return s.suspect[userID], nil
}

type fakeCommentStore struct {
	comments []*types.Comment
	recent   bool
}

func (s *fakeCommentStore) GetUserComments(_ context.Context, _ uint64) ([]*types.Comment, error) {
	return s.comments, nil
}

func (s *fakeCommentStore) HasRecentComments(_ context.Context, _ uint64, _ time.Time) (bool, error) {
	return s.recent, nil
}

type fakePlatform struct {
	profile    *platform.Profile
	profileErr error
	wallPosts  int
	members    map[uint64]bool
	regDate    time.Time
	regDateErr error
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		profile:    &platform.Profile{ClosedProfile: true},
		members:    make(map[uint64]bool),
		regDateErr: platform.ErrNoRegistrationDate,
	}
}

func (p *fakePlatform) IsMember(_ context.Context, _ uint64, groupID uint64) (bool, error) {
	return p.members[groupID], nil
}

func (p *fakePlatform) SetManagerRole(_ context.Context, _, _ uint64, _ string) error {
	return nil
}

func (p *fakePlatform) BanInGroup(_ context.Context, _, _ uint64) error   { return nil }
func (p *fakePlatform) UnbanInGroup(_ context.Context, _, _ uint64) error { return nil }

func (p *fakePlatform) GetProfile(_ context.Context, _ uint64) (*platform.Profile, error) {
	return p.profile, p.profileErr
}

func (p *fakePlatform) GetWallPostCount(_ context.Context, _ uint64) (int, error) {
	return p.wallPosts, nil
}

func (p *fakePlatform) GetRegistrationDate(_ context.Context, _ uint64) (time.Time, error) {
	return p.regDate, p.regDateErr
}

func (p *fakePlatform) GetGroupData(_ context.Context, _ []uint64) (map[uint64]*platform.GroupData, error) {
	return nil, nil
}

func setupEngine(t *testing.T) (*trust.Engine, *fakeUserStore, *fakeCommentStore, *fakePlatform) {
	t.Helper()

	users := newFakeUserStore()
	comments := &fakeCommentStore{}
	api := newFakePlatform()
	engine := trust.NewEngine(users, comments, api, mainGroupID, testGroupID, zap.NewNop())

	return engine, users, comments, api
}

func TestCalculateFreshClosedAccount(t *testing.T) {
	t.Parallel()

	engine, users, _, api := setupEngine(t)

	// Registered yesterday with a closed profile and nothing else.
	api.regDate = time.Now().Add(-24 * time.Hour)
	api.regDateErr = nil
	users.users[1] = &types.User{UserID: 1, JoinDate: time.Now()}

	info, err := engine.Calculate(t.Context(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, info.Trust)
	assert.True(t, info.ClosedProfile)
}

func TestCalculateClampsToZero(t *testing.T) {
	t.Parallel()

	engine, users, _, api := setupEngine(t)

	api.regDate = time.Now().Add(-24 * time.Hour)
	api.regDateErr = nil
	users.users[1] = &types.User{
		UserID: 1,
		Violations: []*types.Violation{
			{Type: types.ViolationBanned, Active: true, Date: time.Now()},
		},
	}

	info, err := engine.Calculate(t.Context(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, info.Trust)
	assert.True(t, info.HasViolation)
}

func TestCalculateAdminSaturates(t *testing.T) {
	t.Parallel()

	engine, users, _, _ := setupEngine(t)

	users.users[1] = &types.User{UserID: 1, Admin: true}

	info, err := engine.Calculate(t.Context(), 1)
	require.NoError(t, err)
	assert.Equal(t, 100, info.Trust)
}

func TestCalculateOperatorFlagsSurvive(t *testing.T) {
	t.Parallel()

	engine, users, _, api := setupEngine(t)

	// The platform does not report the user as verified, but an operator
	// marked them so by hand.
	api.profile = &platform.Profile{ClosedProfile: false, HasPhoto: true}
	users.users[1] = &types.User{
		UserID:    1,
		TrustInfo: types.TrustInfo{Verified: true, Donate: true},
	}

	info, err := engine.Calculate(t.Context(), 1)
	require.NoError(t, err)
	assert.True(t, info.Verified)
	assert.True(t, info.Donate)
}

func TestCalculateInviteBonus(t *testing.T) {
	t.Parallel()

	engine, users, _, _ := setupEngine(t)

	users.users[2] = &types.User{UserID: 2, TrustInfo: types.TrustInfo{Trust: 60}}
	users.users[1] = &types.User{UserID: 1, InvitedBy: 2}

	withReferrer, err := engine.Calculate(t.Context(), 1)
	require.NoError(t, err)

	users.users[3] = &types.User{UserID: 3}

	without, err := engine.Calculate(t.Context(), 3)
	require.NoError(t, err)

	assert.Equal(t, 3, withReferrer.Trust-without.Trust)
}

func TestCalculateMissingReferrerIgnored(t *testing.T) {
	t.Parallel()

	engine, users, _, _ := setupEngine(t)

	users.users[1] = &types.User{UserID: 1, InvitedBy: 999}
	users.users[2] = &types.User{UserID: 2}

	invited, err := engine.Calculate(t.Context(), 1)
	require.NoError(t, err)

	plain, err := engine.Calculate(t.Context(), 2)
	require.NoError(t, err)

	assert.Equal(t, plain.Trust, invited.Trust)
}

func TestCalculateDeterministic(t *testing.T) {
	t.Parallel()

	engine, users, comments, api := setupEngine(t)

	api.profile = &platform.Profile{HasPhoto: true, FriendsCount: 20}
	api.wallPosts = 10
	api.members[mainGroupID] = true
	comments.recent = true
	users.users[1] = &types.User{UserID: 1, JoinDate: time.Now().AddDate(-2, 0, 0)}

	first, err := engine.Calculate(t.Context(), 1)
	require.NoError(t, err)

	second, err := engine.Calculate(t.Context(), 1)
	require.NoError(t, err)

	assert.Equal(t, first.Trust, second.Trust)
}

func TestCalculateCollectionFailureAborts(t *testing.T) {
	t.Parallel()

	engine, users, _, api := setupEngine(t)

	api.profileErr = errors.New("upstream down")
	users.users[1] = &types.User{UserID: 1}

	_, err := engine.Calculate(t.Context(), 1)
	require.Error(t, err)
}

func TestCalculateDeactivatedProfile(t *testing.T) {
	t.Parallel()

	engine, users, _, api := setupEngine(t)

	api.profile = &platform.Profile{
		Deactivated:   true,
		ClosedProfile: false,
		HasPhoto:      true,
		FriendsCount:  50,
		Verified:      true,
	}
	users.users[1] = &types.User{UserID: 1}

	info, err := engine.Calculate(t.Context(), 1)
	require.NoError(t, err)

	// Deactivated accounts keep pessimistic defaults except verification.
	assert.True(t, info.ClosedProfile)
	assert.False(t, info.HasPhoto)
	assert.False(t, info.HasFriends)
	assert.True(t, info.Verified)
}

func TestCalculateToxicityAverage(t *testing.T) {
	t.Parallel()

	engine, users, comments, _ := setupEngine(t)

	comments.comments = []*types.Comment{
		{Toxicity: 0.2},
		{Toxicity: 0.8},
	}
	users.users[1] = &types.User{UserID: 1}

	info, err := engine.Calculate(t.Context(), 1)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, info.Toxicity, 0.0001)
}

func TestRefreshPersists(t *testing.T) {
	t.Parallel()

	engine, users, _, _ := setupEngine(t)

	users.users[1] = &types.User{UserID: 1}

	require.NoError(t, engine.Refresh(t.Context(), 1))

	saved, ok := users.saved[1]
	require.True(t, ok)
	assert.False(t, saved.LastUpdated.IsZero())
}
