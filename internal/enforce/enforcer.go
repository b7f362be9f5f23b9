// Package enforce carries bans and amnesties out across every managed group.
// Sweeps are best effort: one group failing must never stop the rest, so
// per-group errors are reported and skipped rather than returned.
package enforce

import (
	"context"
	"fmt"

	"github.com/wardenhq/warden/internal/database/types"
	"github.com/wardenhq/warden/internal/platform"
	"github.com/wardenhq/warden/internal/report"
	"go.uber.org/zap"
)

// UserStore is the slice of user persistence the enforcer needs.
type UserStore interface {
	Get(ctx context.Context, userID uint64) (*types.User, error)
	Update(ctx context.Context, user *types.User) error
	DeactivateBans(ctx context.Context, userID uint64) (int, error)
}

// GroupLister returns every group under management.
type GroupLister interface {
	GetAll(ctx context.Context) ([]*types.Group, error)
}

// TrustRefresher recomputes and persists a user's trust score.
type TrustRefresher interface {
	Refresh(ctx context.Context, userID uint64) error
}

// Enforcer applies bans and amnesties platform-wide.
type Enforcer struct {
	users    UserStore
	groups   GroupLister
	trust    TrustRefresher
	platform platform.Client
	reporter report.Reporter
	logger   *zap.Logger
}

// NewEnforcer creates a ban enforcer.
func NewEnforcer(
	users UserStore, groups GroupLister, trust TrustRefresher,
	platformClient platform.Client, reporter report.Reporter, logger *zap.Logger,
) *Enforcer {
	return &Enforcer{
		users:    users,
		groups:   groups,
		trust:    trust,
		platform: platformClient,
		reporter: reporter,
		logger:   logger.Named("enforce"),
	}
}

// Ban sweeps the user out of every managed group. The trust recomputation
// runs first so the stored score reflects the active violation, but a failed
// recomputation does not block the sweep.
func (e *Enforcer) Ban(ctx context.Context, userID uint64) error {
	if err := e.trust.Refresh(ctx, userID); err != nil {
		e.reporter.Report("enforce_trust_refresh", err)
	}

	user, err := e.users.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}

	user.Groups = nil
	if err := e.users.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to clear user groups: %w", err)
	}

	groups, err := e.groups.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list groups: %w", err)
	}

	for _, group := range groups {
		if err := e.banInGroup(ctx, userID, group.GroupID); err != nil {
			e.reporter.Report("enforce_ban_group", err)
			e.logger.Warn("Failed to ban in group",
				zap.Uint64("userID", userID),
				zap.Uint64("groupID", group.GroupID),
				zap.Error(err))
		}
	}

	e.logger.Info("Ban sweep finished", zap.Uint64("userID", userID), zap.Int("groups", len(groups)))

	return nil
}

// banInGroup removes manager rights first where the user holds them, then
// bans. A user still holding a role cannot be banned, and if the role cannot
// be revoked the group is abandoned for this sweep.
func (e *Enforcer) banInGroup(ctx context.Context, userID, groupID uint64) error {
	data, err := e.platform.GetGroupData(ctx, []uint64{groupID})
	if err != nil {
		return fmt.Errorf("failed to get group data: %w", err)
	}

	if group, ok := data[groupID]; ok && containsManager(group.Managers, userID) {
		if err := e.platform.SetManagerRole(ctx, groupID, userID, platform.RoleNone); err != nil {
			return fmt.Errorf("failed to revoke manager role: %w", err)
		}
	}

	if err := e.platform.BanInGroup(ctx, userID, groupID); err != nil {
		return fmt.Errorf("failed to ban: %w", err)
	}

	return nil
}

// Amnesty lifts all of the user's active bans and unbans them everywhere.
func (e *Enforcer) Amnesty(ctx context.Context, userID uint64) error {
	deactivated, err := e.users.DeactivateBans(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to deactivate bans: %w", err)
	}

	if err := e.trust.Refresh(ctx, userID); err != nil {
		e.reporter.Report("enforce_trust_refresh", err)
	}

	groups, err := e.groups.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list groups: %w", err)
	}

	for _, group := range groups {
		if err := e.platform.UnbanInGroup(ctx, userID, group.GroupID); err != nil {
			e.reporter.Report("enforce_unban_group", err)
			e.logger.Warn("Failed to unban in group",
				zap.Uint64("userID", userID),
				zap.Uint64("groupID", group.GroupID),
				zap.Error(err))
		}
	}

	// The score rarely changes between the two recomputations, but the
	// second one keeps the stored value current after the sweep.
	if err := e.trust.Refresh(ctx, userID); err != nil {
		e.reporter.Report("enforce_trust_refresh", err)
	}

	e.logger.Info("Amnesty finished",
		zap.Uint64("userID", userID),
		zap.Int("deactivated", deactivated),
		zap.Int("groups", len(groups)))

	return nil
}

func containsManager(managers []uint64, userID uint64) bool {
	for _, id := range managers {
		if id == userID {
			return true
		}
	}

	return false
}
