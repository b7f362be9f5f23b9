package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/wardenhq/warden/internal/database/dbretry"
	"github.com/wardenhq/warden/internal/database/types"
	"go.uber.org/zap"
)

// UserModel handles database operations for users and their violations.
type UserModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewUser creates a new UserModel instance.
func NewUser(db *bun.DB, logger *zap.Logger) *UserModel {
	return &UserModel{
		db:     db,
		logger: logger.Named("db_user"),
	}
}

// Get retrieves a user with their violations loaded.
func (m *UserModel) Get(ctx context.Context, userID uint64) (*types.User, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.User, error) {
		var user types.User

		err := m.db.NewSelect().
			Model(&user).
			Relation("Violations").
			Where("user_id = ?", userID).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, types.ErrUserNotFound
			}

			return nil, fmt.Errorf("failed to get user: %w", err)
		}

		return &user, nil
	})
}

// Create inserts a new user record.
func (m *UserModel) Create(ctx context.Context, user *types.User) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().
			Model(user).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		return nil
	})
}

// Update persists the user's mutable fields (name, admin, groups, trust info).
// Violations are managed through AddViolation and DeactivateBans.
func (m *UserModel) Update(ctx context.Context, user *types.User) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewUpdate().
			Model(user).
			WherePK().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}

		return nil
	})
}

// UpdateTrustInfo persists a recomputed trust info for a user.
func (m *UserModel) UpdateTrustInfo(ctx context.Context, userID uint64, info *types.TrustInfo) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		user := &types.User{UserID: userID, TrustInfo: *info}

		_, err := m.db.NewUpdate().
			Model(user).
			Column(
				"trust_trust", "trust_toxicity", "trust_closed_profile",
				"trust_has_photo", "trust_has_wall_posts", "trust_has_friends",
				"trust_verified", "trust_joined_main_group", "trust_joined_test_group",
				"trust_activism", "trust_donate", "trust_odd_groups",
				"trust_has_violation", "trust_had_violation", "trust_has_warning",
				"trust_had_warning", "trust_used_platform",
				"trust_registration_date", "trust_community_join_date", "trust_last_updated",
			).
			WherePK().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to update trust info: %w", err)
		}

		return nil
	})
}

// AddViolation appends a violation to the user's record.
func (m *UserModel) AddViolation(ctx context.Context, userID uint64, violation *types.Violation) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		violation.UserID = userID

		_, err := m.db.NewInsert().
			Model(violation).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to add violation: %w", err)
		}

		return nil
	})
}

// DeactivateBans marks all of the user's active ban violations inactive.
// Returns the number of violations lifted.
func (m *UserModel) DeactivateBans(ctx context.Context, userID uint64) (int, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (int, error) {
		result, err := m.db.NewUpdate().
			Model((*types.Violation)(nil)).
			Set("active = FALSE").
			Where("user_id = ?", userID).
			Where("type = ?", types.ViolationBanned).
			Where("active = TRUE").
			Exec(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to deactivate bans: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to get affected rows: %w", err)
		}

		return int(affected), nil
	})
}

// GetOutdatedTrustUsers returns IDs of users whose trust info was last
// updated on or before the cutoff.
func (m *UserModel) GetOutdatedTrustUsers(ctx context.Context, cutoff time.Time) ([]uint64, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]uint64, error) {
		var userIDs []uint64

		err := m.db.NewSelect().
			Model((*types.User)(nil)).
			Column("user_id").
			Where("trust_last_updated IS NULL OR trust_last_updated <= ?", cutoff).
			Scan(ctx, &userIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to get outdated trust users: %w", err)
		}

		return userIDs, nil
	})
}

// IsSuspect checks whether the user was flagged by the odd-groups heuristic.
func (m *UserModel) IsSuspect(ctx context.Context, userID uint64) (bool, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (bool, error) {
		exists, err := m.db.NewSelect().
			Model((*types.SuspectUser)(nil)).
			Where("user_id = ?", userID).
			Exists(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to check suspect status: %w", err)
		}

		return exists, nil
	})
}
