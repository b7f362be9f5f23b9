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

// GroupModel handles database operations for managed groups.
type GroupModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewGroup creates a new GroupModel instance.
func NewGroup(db *bun.DB, logger *zap.Logger) *GroupModel {
	return &GroupModel{
		db:     db,
		logger: logger.Named("db_group"),
	}
}

// Get retrieves a managed group by ID.
func (m *GroupModel) Get(ctx context.Context, groupID uint64) (*types.Group, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.Group, error) {
		var group types.Group

		err := m.db.NewSelect().
			Model(&group).
			Where("group_id = ?", groupID).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, types.ErrGroupNotFound
			}

			return nil, fmt.Errorf("failed to get group: %w", err)
		}

		return &group, nil
	})
}

// GetAll returns every managed group.
func (m *GroupModel) GetAll(ctx context.Context) ([]*types.Group, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.Group, error) {
		var groups []*types.Group

		err := m.db.NewSelect().
			Model(&groups).
			Order("group_id ASC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get groups: %w", err)
		}

		return groups, nil
	})
}
