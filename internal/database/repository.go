package database

import (
	"github.com/uptrace/bun"
	"github.com/wardenhq/warden/internal/database/models"
	"go.uber.org/zap"
)

// Repository provides access to all model operations.
type Repository struct {
	users         *models.UserModel
	editorHistory *models.EditorHistoryModel
	watchdog      *models.WatchdogModel
	groups        *models.GroupModel
	comments      *models.CommentModel
}

// NewRepository creates a new repository with all models.
func NewRepository(db *bun.DB, logger *zap.Logger) *Repository {
	return &Repository{
		users:         models.NewUser(db, logger),
		editorHistory: models.NewEditorHistory(db, logger),
		watchdog:      models.NewWatchdog(db, logger),
		groups:        models.NewGroup(db, logger),
		comments:      models.NewComment(db, logger),
	}
}

// Users returns the user model.
func (r *Repository) Users() *models.UserModel {
	return r.users
}

// EditorHistory returns the editor history model.
func (r *Repository) EditorHistory() *models.EditorHistoryModel {
	return r.editorHistory
}

// Watchdog returns the watchdog model.
func (r *Repository) Watchdog() *models.WatchdogModel {
	return r.watchdog
}

// Groups returns the group model.
func (r *Repository) Groups() *models.GroupModel {
	return r.groups
}

// Comments returns the comment model.
func (r *Repository) Comments() *models.CommentModel {
	return r.comments
}
