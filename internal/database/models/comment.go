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

// CommentModel handles database operations for user comments.
type CommentModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewComment creates a new CommentModel instance.
func NewComment(db *bun.DB, logger *zap.Logger) *CommentModel {
	return &CommentModel{
		db:     db,
		logger: logger.Named("db_comment"),
	}
}

// GetUserComments retrieves all comments authored by a user.
func (m *CommentModel) GetUserComments(ctx context.Context, authorID uint64) ([]*types.Comment, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.Comment, error) {
		var comments []*types.Comment

		err := m.db.NewSelect().
			Model(&comments).
			Where("author_id = ?", authorID).
			Order("posted_on DESC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get user comments: %w", err)
		}

		return comments, nil
	})
}

// HasRecentComments checks whether the user posted any comment after the
// given cutoff.
func (m *CommentModel) HasRecentComments(ctx context.Context, authorID uint64, since time.Time) (bool, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (bool, error) {
		exists, err := m.db.NewSelect().
			Model((*types.Comment)(nil)).
			Where("author_id = ?", authorID).
			Where("posted_on > ?", since).
			Exists(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to check recent comments: %w", err)
		}

		return exists, nil
	})
}
