// Package watchdog turns reported moderation incidents into violations.
// Attribution of an intruder is the trigger edge: the first time a log's
// intruder field is set, the escalator applies the priority-specific rules
// and, when a violation becomes an active ban, hands the user to the ban
// enforcer in the background.
package watchdog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wardenhq/warden/internal/database/types"
	"github.com/wardenhq/warden/internal/notify"
	"github.com/wardenhq/warden/internal/report"
	"github.com/wardenhq/warden/internal/tasks"
	"go.uber.org/zap"
)

// maxGreenWarnings is how many unexpired green warnings a user may hold
// before the next green report escalates to a ban.
const maxGreenWarnings = 2

// UserStore is the slice of user persistence the escalator needs.
type UserStore interface {
	Get(ctx context.Context, userID uint64) (*types.User, error)
	AddViolation(ctx context.Context, userID uint64, violation *types.Violation) error
}

// LogStore is the watchdog log persistence.
type LogStore interface {
	Get(ctx context.Context, watchdogID int64) (*types.WatchdogLog, error)
	GetUnreviewed(ctx context.Context) ([]*types.WatchdogLog, error)
	Upsert(ctx context.Context, log *types.WatchdogLog) error
}

// Banner applies a ban across all managed groups.
type Banner interface {
	Ban(ctx context.Context, userID uint64) error
}

// LogUpdate carries the mutable fields of a watchdog log. Nil fields are
// left untouched.
type LogUpdate struct {
	Intruder *uint64
	Victim   *uint64
	GroupID  *uint64
	Date     *time.Time
	Reviewed *bool
}

// Escalator applies violation escalation rules.
type Escalator struct {
	users    UserStore
	logs     LogStore
	banner   Banner
	notifier notify.Sink
	reporter report.Reporter
	runner   *tasks.Runner
	logger   *zap.Logger
}

// NewEscalator creates a violation escalator.
func NewEscalator(
	users UserStore, logs LogStore, banner Banner, notifier notify.Sink,
	reporter report.Reporter, runner *tasks.Runner, logger *zap.Logger,
) *Escalator {
	return &Escalator{
		users:    users,
		logs:     logs,
		banner:   banner,
		notifier: notifier,
		reporter: reporter,
		runner:   runner,
		logger:   logger.Named("watchdog"),
	}
}

// GetLog retrieves a watchdog log.
func (e *Escalator) GetLog(ctx context.Context, watchdogID int64) (*types.WatchdogLog, error) {
	return e.logs.Get(ctx, watchdogID)
}

// GetUnreviewedLogs returns all logs awaiting review.
func (e *Escalator) GetUnreviewedLogs(ctx context.Context) ([]*types.WatchdogLog, error) {
	return e.logs.GetUnreviewed(ctx)
}

// AddLog records a new incident from the detection source.
func (e *Escalator) AddLog(ctx context.Context, log *types.WatchdogLog) error {
	if err := e.logs.Upsert(ctx, log); err != nil {
		return fmt.Errorf("failed to add watchdog log: %w", err)
	}

	return nil
}

// AttributeIntruder assigns the offending user to an incident log.
func (e *Escalator) AttributeIntruder(ctx context.Context, watchdogID int64, intruderID uint64) (*types.WatchdogLog, error) {
	return e.UpdateLog(ctx, watchdogID, LogUpdate{Intruder: &intruderID})
}

// UpdateLog applies a partial update to a watchdog log. Setting the intruder
// on a log that has none fires escalation exactly once; repeating the update
// is a no-op for escalation purposes.
func (e *Escalator) UpdateLog(ctx context.Context, watchdogID int64, update LogUpdate) (*types.WatchdogLog, error) {
	log, err := e.logs.Get(ctx, watchdogID)
	if err != nil {
		return nil, err
	}

	escalate := false

	if update.GroupID != nil {
		log.GroupID = *update.GroupID
	}

	if update.Intruder != nil && log.Intruder == 0 {
		if _, err := e.users.Get(ctx, *update.Intruder); err != nil {
			return nil, fmt.Errorf("failed to verify intruder: %w", err)
		}

		log.Intruder = *update.Intruder
		escalate = true
	}

	if update.Victim != nil {
		if _, err := e.users.Get(ctx, *update.Victim); err != nil {
			return nil, fmt.Errorf("failed to verify victim: %w", err)
		}

		log.Victim = *update.Victim
	}

	if update.Date != nil {
		log.Date = *update.Date
	}

	if update.Reviewed != nil {
		log.Reviewed = *update.Reviewed
	}

	if err := e.logs.Upsert(ctx, log); err != nil {
		return nil, fmt.Errorf("failed to update watchdog log: %w", err)
	}

	if escalate {
		intruder := log.Intruder
		watchdogRef := log.WatchdogID
		groupID := log.GroupID
		priority := log.Priority

		e.runner.Go("watchdog_escalate", func(ctx context.Context) error {
			return e.Escalate(ctx, intruder, watchdogRef, groupID, priority)
		})
	}

	return log, nil
}

// Escalate applies the escalation rules for an attributed incident.
func (e *Escalator) Escalate(
	ctx context.Context, userID uint64, watchdogRef int64, groupID uint64, priority types.Priority,
) error {
	user, err := e.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, types.ErrUserNotFound) {
			e.reporter.Report("watchdog_escalate", err)
			return nil
		}

		return fmt.Errorf("failed to get user: %w", err)
	}

	if priority == types.PriorityGreen {
		return e.escalateGreen(ctx, user, watchdogRef, groupID)
	}

	if e.violationExists(user, groupID, time.Now()) {
		// Same incident already penalized today; never double-count.
		return nil
	}

	violation := &types.Violation{
		Type:        types.ViolationBanned,
		GroupID:     groupID,
		Priority:    priority,
		WatchdogRef: watchdogRef,
		Active:      true,
		Date:        time.Now(),
	}

	return e.recordAndNotify(ctx, user, violation)
}

// escalateGreen handles the lowest severity tier: two warnings, then a ban.
func (e *Escalator) escalateGreen(
	ctx context.Context, user *types.User, watchdogRef int64, groupID uint64,
) error {
	violation := &types.Violation{
		Type:        types.ViolationWarned,
		GroupID:     groupID,
		Priority:    types.PriorityGreen,
		WatchdogRef: watchdogRef,
		Date:        time.Now(),
	}

	if e.validGreenWarnings(user) >= maxGreenWarnings {
		violation.Type = types.ViolationBanned
		violation.Active = true
	}

	return e.recordAndNotify(ctx, user, violation)
}

// recordAndNotify persists a violation and broadcasts the outcome. A failed
// write suppresses the notification, and an active ban schedules the
// enforcement sweep.
func (e *Escalator) recordAndNotify(ctx context.Context, user *types.User, violation *types.Violation) error {
	if err := e.users.AddViolation(ctx, user.UserID, violation); err != nil {
		e.reporter.Report("watchdog_record", err)
		return fmt.Errorf("failed to add violation: %w", err)
	}

	eventType := notify.EventNewWarning
	if violation.Type == types.ViolationBanned {
		eventType = notify.EventNewBan
	}

	e.logger.Info("Recorded violation",
		zap.Uint64("userID", user.UserID),
		zap.String("type", violation.Type.String()),
		zap.String("priority", violation.Priority.String()))

	if err := e.notifier.Publish(ctx, &notify.Event{
		Type:     eventType,
		UserID:   user.UserID,
		GroupID:  violation.GroupID,
		Priority: violation.Priority,
	}); err != nil {
		e.reporter.Report("watchdog_notify", err)
	}

	if violation.Type == types.ViolationBanned && violation.Active {
		userID := user.UserID

		e.runner.Go("enforce_ban", func(ctx context.Context) error {
			return e.banner.Ban(ctx, userID)
		})
	}

	return nil
}

// validGreenWarnings counts the user's unexpired green warnings.
func (e *Escalator) validGreenWarnings(user *types.User) int {
	count := 0

	for _, v := range user.Violations {
		if v.Type == types.ViolationWarned && v.Priority == types.PriorityGreen && !v.IsExpired() {
			count++
		}
	}

	return count
}

// violationExists checks for an active violation for the same group on the
// same calendar day.
func (e *Escalator) violationExists(user *types.User, groupID uint64, date time.Time) bool {
	year, month, day := date.Date()

	for _, v := range user.Violations {
		vYear, vMonth, vDay := v.Date.Date()
		if v.GroupID == groupID && v.Active && vYear == year && vMonth == month && vDay == day {
			return true
		}
	}

	return false
}
