package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/wardenhq/warden/internal/database/dbretry"
	"github.com/wardenhq/warden/internal/database/types"
	"go.uber.org/zap"
)

// WatchdogModel handles database operations for watchdog logs.
type WatchdogModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewWatchdog creates a new WatchdogModel instance.
func NewWatchdog(db *bun.DB, logger *zap.Logger) *WatchdogModel {
	return &WatchdogModel{
		db:     db,
		logger: logger.Named("db_watchdog"),
	}
}

// Get retrieves a watchdog log by ID.
func (m *WatchdogModel) Get(ctx context.Context, watchdogID int64) (*types.WatchdogLog, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.WatchdogLog, error) {
		var log types.WatchdogLog

		err := m.db.NewSelect().
			Model(&log).
			Where("watchdog_id = ?", watchdogID).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, types.ErrWatchdogNotFound
			}

			return nil, fmt.Errorf("failed to get watchdog log: %w", err)
		}

		return &log, nil
	})
}

// GetUnreviewed returns all watchdog logs not yet reviewed.
func (m *WatchdogModel) GetUnreviewed(ctx context.Context) ([]*types.WatchdogLog, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.WatchdogLog, error) {
		var logs []*types.WatchdogLog

		err := m.db.NewSelect().
			Model(&logs).
			Where("reviewed = FALSE").
			Order("date DESC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get unreviewed logs: %w", err)
		}

		return logs, nil
	})
}

// Upsert inserts a new watchdog log or updates an existing one.
func (m *WatchdogModel) Upsert(ctx context.Context, log *types.WatchdogLog) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		if log.WatchdogID == 0 {
			if _, err := m.db.NewInsert().Model(log).Exec(ctx); err != nil {
				return fmt.Errorf("failed to insert watchdog log: %w", err)
			}

			return nil
		}

		_, err := m.db.NewUpdate().
			Model(log).
			WherePK().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to update watchdog log: %w", err)
		}

		return nil
	})
}
