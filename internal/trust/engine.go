// Package trust computes the per-user trust score gating editor eligibility.
// Scoring is deterministic for a fixed signal set; collecting the signals is
// the only part that touches the outside world, and any collection failure
// aborts the recomputation so a half-collected signal set never lands.
package trust

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wardenhq/warden/internal/database/types"
	"github.com/wardenhq/warden/internal/platform"
	"go.uber.org/zap"
)

// minFriendsForSignal is how many friends a profile needs before the
// has-friends signal counts.
const minFriendsForSignal = 15

// minWallPostsForSignal is how many wall posts a profile needs before the
// has-wall-posts signal counts.
const minWallPostsForSignal = 5

// recentActivityWindow is how far back the used-platform signal looks.
const recentActivityWindow = 30 * day

// UserStore is the slice of user persistence the engine needs.
type UserStore interface {
	Get(ctx context.Context, userID uint64) (*types.User, error)
	UpdateTrustInfo(ctx context.Context, userID uint64, info *types.TrustInfo) error
	IsSuspect(ctx context.Context, userID uint64) (bool, error)
}

// CommentStore provides the content signals backing toxicity and recency.
type CommentStore interface {
	GetUserComments(ctx context.Context, authorID uint64) ([]*types.Comment, error)
	HasRecentComments(ctx context.Context, authorID uint64, since time.Time) (bool, error)
}

// Engine calculates trust scores.
type Engine struct {
	users       UserStore
	comments    CommentStore
	platform    platform.Client
	mainGroupID uint64
	testGroupID uint64
	logger      *zap.Logger
}

// NewEngine creates a trust engine.
func NewEngine(
	users UserStore, comments CommentStore, platformClient platform.Client,
	mainGroupID, testGroupID uint64, logger *zap.Logger,
) *Engine {
	return &Engine{
		users:       users,
		comments:    comments,
		platform:    platformClient,
		mainGroupID: mainGroupID,
		testGroupID: testGroupID,
		logger:      logger.Named("trust"),
	}
}

// Calculate collects the user's current signals and scores them. The user
// record is not mutated; the caller persists the returned info.
func (e *Engine) Calculate(ctx context.Context, userID uint64) (*types.TrustInfo, error) {
	user, err := e.users.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	info, err := e.collect(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to collect trust signals: %w", err)
	}

	// Operator-set flags survive recomputation.
	if user.TrustInfo.Verified {
		info.Verified = true
	}

	if user.TrustInfo.Donate {
		info.Donate = true
	}

	now := time.Now()
	total := BaseTrust

	if user.InvitedBy != 0 {
		total += e.invitePoints(ctx, user.InvitedBy)
	}

	regDate := info.RegistrationDate
	if regDate.IsZero() {
		regDate = now
	}

	joinDate := info.CommunityJoinDate
	if joinDate.IsZero() {
		joinDate = now
	}

	total += pointsForRegistration(regDate, now)
	total += pointsForTenure(joinDate, now)
	total += pointsForProfile(info)
	total += pointsForBehavior(info)
	total += pointsForViolations(info)

	if user.Admin {
		total += 100
	}

	if info.UsedPlatform {
		total += 3
	}

	info.Trust = clampTrust(total)

	return info, nil
}

// Refresh recomputes and persists the user's trust info.
func (e *Engine) Refresh(ctx context.Context, userID uint64) error {
	info, err := e.Calculate(ctx, userID)
	if err != nil {
		return err
	}

	info.LastUpdated = time.Now()

	if err := e.users.UpdateTrustInfo(ctx, userID, info); err != nil {
		return fmt.Errorf("failed to persist trust info: %w", err)
	}

	e.logger.Debug("Refreshed trust", zap.Uint64("userID", userID), zap.Int("trust", info.Trust))

	return nil
}

// invitePoints awards a share of the referrer's trust. A missing referrer
// contributes nothing.
func (e *Engine) invitePoints(ctx context.Context, referrerID uint64) int {
	referrer, err := e.users.Get(ctx, referrerID)
	if err != nil {
		return 0
	}

	return referrer.TrustInfo.Trust * 5 / 100
}

// collect gathers every externally-observed signal. Any failure aborts the
// collection; partial signal sets must not be scored.
func (e *Engine) collect(ctx context.Context, user *types.User) (*types.TrustInfo, error) {
	profile, err := e.platform.GetProfile(ctx, user.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	wallCount, err := e.platform.GetWallPostCount(ctx, user.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get wall posts: %w", err)
	}

	joinedMain, err := e.platform.IsMember(ctx, user.UserID, e.mainGroupID)
	if err != nil {
		return nil, fmt.Errorf("failed to check main group membership: %w", err)
	}

	joinedTest, err := e.platform.IsMember(ctx, user.UserID, e.testGroupID)
	if err != nil {
		return nil, fmt.Errorf("failed to check test group membership: %w", err)
	}

	usedPlatform, err := e.comments.HasRecentComments(ctx, user.UserID, time.Now().Add(-recentActivityWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to check recent activity: %w", err)
	}

	comments, err := e.comments.GetUserComments(ctx, user.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get comments: %w", err)
	}

	oddGroups, err := e.users.IsSuspect(ctx, user.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to check suspect status: %w", err)
	}

	regDate, err := e.platform.GetRegistrationDate(ctx, user.UserID)
	if err != nil && !errors.Is(err, platform.ErrNoRegistrationDate) {
		return nil, fmt.Errorf("failed to get registration date: %w", err)
	}

	hasActive := user.HasActiveViolation()

	info := &types.TrustInfo{
		Toxicity:          averageToxicity(comments),
		JoinedMainGroup:   joinedMain,
		JoinedTestGroup:   joinedTest,
		HasWallPosts:      wallCount > minWallPostsForSignal,
		OddGroups:         oddGroups,
		UsedPlatform:      usedPlatform,
		Activism:          user.TrustInfo.Activism,
		HasViolation:      hasActive,
		HadViolation:      user.EverBanned(),
		HasWarning:        user.HasWarning(),
		HadWarning:        user.EverWarned(),
		RegistrationDate:  regDate,
		CommunityJoinDate: user.TrustInfo.CommunityJoinDate,
	}

	applyProfile(info, profile)

	return info, nil
}

// applyProfile maps the platform profile onto the signal set. Deactivated
// accounts keep the pessimistic defaults except for verification.
func applyProfile(info *types.TrustInfo, profile *platform.Profile) {
	info.ClosedProfile = true
	info.Verified = profile.Verified

	if profile.Deactivated {
		return
	}

	info.ClosedProfile = profile.ClosedProfile
	info.HasPhoto = profile.HasPhoto
	info.HasFriends = profile.FriendsCount >= minFriendsForSignal
}

// averageToxicity averages the precomputed per-comment toxicity scores.
func averageToxicity(comments []*types.Comment) float64 {
	if len(comments) == 0 {
		return 0
	}

	var sum float64
	for _, comment := range comments {
		sum += comment.Toxicity
	}

	return sum / float64(len(comments))
}
