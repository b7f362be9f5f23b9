package models

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/wardenhq/warden/internal/database/dbretry"
	"github.com/wardenhq/warden/internal/database/types"
	"go.uber.org/zap"
)

// EditorHistoryModel handles database operations for editor grant attempts,
// including the durable WIP flag that serializes grants per user.
type EditorHistoryModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewEditorHistory creates a new EditorHistoryModel instance.
func NewEditorHistory(db *bun.DB, logger *zap.Logger) *EditorHistoryModel {
	return &EditorHistoryModel{
		db:     db,
		logger: logger.Named("db_editor_history"),
	}
}

// Get retrieves the full grant history for a user, newest first.
func (m *EditorHistoryModel) Get(ctx context.Context, userID uint64) ([]*types.EditorHistoryItem, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.EditorHistoryItem, error) {
		var items []*types.EditorHistoryItem

		err := m.db.NewSelect().
			Model(&items).
			Where("user_id = ?", userID).
			Order("date DESC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get editor history: %w", err)
		}

		return items, nil
	})
}

// SetWip attempts to acquire the per-user WIP flag by inserting a marker item.
// The insert is conditional on no other WIP item existing for the user, so
// concurrent workers race on the database rather than on process memory.
// Returns true if the flag was acquired.
func (m *EditorHistoryModel) SetWip(ctx context.Context, userID, groupID uint64) (bool, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (bool, error) {
		result, err := m.db.NewRaw(`
			INSERT INTO editor_history_items (user_id, group_id, date, granted, wip)
			SELECT ?, ?, ?, FALSE, TRUE
			WHERE NOT EXISTS (
				SELECT 1 FROM editor_history_items WHERE user_id = ? AND wip
			)`,
			userID, groupID, time.Now(), userID,
		).Exec(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to set wip: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return false, fmt.Errorf("failed to get affected rows: %w", err)
		}

		return affected > 0, nil
	})
}

// ClearWip releases the user's WIP flag by deleting the marker item.
func (m *EditorHistoryModel) ClearWip(ctx context.Context, userID uint64) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewDelete().
			Model((*types.EditorHistoryItem)(nil)).
			Where("user_id = ?", userID).
			Where("wip = TRUE").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to clear wip: %w", err)
		}

		return nil
	})
}

// IsWip checks whether a grant attempt is currently in flight for the user.
func (m *EditorHistoryModel) IsWip(ctx context.Context, userID uint64) (bool, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (bool, error) {
		exists, err := m.db.NewSelect().
			Model((*types.EditorHistoryItem)(nil)).
			Where("user_id = ?", userID).
			Where("wip = TRUE").
			Exists(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to check wip: %w", err)
		}

		return exists, nil
	})
}

// AddGranted records a successful grant and releases the WIP flag in one
// transaction.
func (m *EditorHistoryModel) AddGranted(ctx context.Context, userID, groupID uint64) error {
	return dbretry.Transaction(ctx, m.db, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewDelete().
			Model((*types.EditorHistoryItem)(nil)).
			Where("user_id = ?", userID).
			Where("wip = TRUE").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to clear wip: %w", err)
		}

		item := &types.EditorHistoryItem{
			UserID:  userID,
			GroupID: groupID,
			Date:    time.Now(),
			Granted: true,
		}

		if _, err := tx.NewInsert().Model(item).Exec(ctx); err != nil {
			return fmt.Errorf("failed to add granted item: %w", err)
		}

		return nil
	})
}

// AddNonGranted records a grant attempt that did not complete, keeping it
// eligible for the 24h resume window. Releases the WIP flag.
func (m *EditorHistoryModel) AddNonGranted(ctx context.Context, userID, groupID uint64) error {
	return dbretry.Transaction(ctx, m.db, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewDelete().
			Model((*types.EditorHistoryItem)(nil)).
			Where("user_id = ?", userID).
			Where("wip = TRUE").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to clear wip: %w", err)
		}

		item := &types.EditorHistoryItem{
			UserID:  userID,
			GroupID: groupID,
			Date:    time.Now(),
		}

		if _, err := tx.NewInsert().Model(item).Exec(ctx); err != nil {
			return fmt.Errorf("failed to add non-granted item: %w", err)
		}

		return nil
	})
}

// ItemsFromLastDay returns grant attempts recorded within the last 24 hours.
func (m *EditorHistoryModel) ItemsFromLastDay(ctx context.Context, userID uint64) ([]*types.EditorHistoryItem, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.EditorHistoryItem, error) {
		var items []*types.EditorHistoryItem

		err := m.db.NewSelect().
			Model(&items).
			Where("user_id = ?", userID).
			Where("wip = FALSE").
			Where("date > ?", time.Now().Add(-24*time.Hour)).
			Order("date DESC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get items from last day: %w", err)
		}

		return items, nil
	})
}

// ClearNonGranted removes all pending non-granted attempts for a user.
// Used to abandon stale attempts once a user becomes ineligible.
func (m *EditorHistoryModel) ClearNonGranted(ctx context.Context, userID uint64) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewDelete().
			Model((*types.EditorHistoryItem)(nil)).
			Where("user_id = ?", userID).
			Where("granted = FALSE").
			Where("wip = FALSE").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to clear non-granted items: %w", err)
		}

		return nil
	})
}
