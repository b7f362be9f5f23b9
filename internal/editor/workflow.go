// Package editor implements the editor-grant workflow: synchronous on-demand
// grants and asynchronous fulfillment when a user joins their assigned group.
// Both paths share one guard chain, and the durable WIP flag in the history
// store guarantees at most one in-flight attempt per user across workers.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/wardenhq/warden/internal/database/types"
	"github.com/wardenhq/warden/internal/notify"
	"github.com/wardenhq/warden/internal/platform"
	"github.com/wardenhq/warden/internal/report"
	"go.uber.org/zap"
)

const (
	// GrantCooldown is the minimum gap between two successful grants.
	GrantCooldown = 4 * time.Hour
	// defaultGraceInterval lets upstream membership state settle before the
	// async path re-verifies it.
	defaultGraceInterval = 2 * time.Second
)

// Status is the outcome class of a grant request.
type Status int

const (
	// StatusJoinGroup asks the user to join the target group first.
	StatusJoinGroup Status = iota
	// StatusSuccess means editor rights were granted.
	StatusSuccess
	// StatusFail carries a specific failure reason.
	StatusFail
	// StatusCooldown means the user must wait before the next grant.
	StatusCooldown
)

// FailReason narrows a StatusFail outcome.
type FailReason int

const (
	ReasonNone FailReason = iota
	ReasonNotFound
	ReasonBanned
	ReasonLowTrust
	ReasonLimitReached
	ReasonInProgress
	ReasonNoGroupAvailable
)

// String returns a short name for the failure reason.
func (r FailReason) String() string {
	switch r {
	case ReasonNotFound:
		return "not-found"
	case ReasonBanned:
		return "banned"
	case ReasonLowTrust:
		return "low-trust"
	case ReasonLimitReached:
		return "limit-reached"
	case ReasonInProgress:
		return "in-progress"
	case ReasonNoGroupAvailable:
		return "no-group-available"
	default:
		return "none"
	}
}

// Result is the typed outcome of a synchronous grant request.
type Result struct {
	Status  Status
	GroupID uint64
	Reason  FailReason
}

func fail(reason FailReason) Result {
	return Result{Status: StatusFail, Reason: reason}
}

// UserStore is the slice of user persistence the workflow needs.
type UserStore interface {
	Get(ctx context.Context, userID uint64) (*types.User, error)
	Update(ctx context.Context, user *types.User) error
}

// HistoryStore is the durable grant-attempt log, including the WIP flag.
type HistoryStore interface {
	Get(ctx context.Context, userID uint64) ([]*types.EditorHistoryItem, error)
	SetWip(ctx context.Context, userID, groupID uint64) (bool, error)
	ClearWip(ctx context.Context, userID uint64) error
	IsWip(ctx context.Context, userID uint64) (bool, error)
	AddGranted(ctx context.Context, userID, groupID uint64) error
	AddNonGranted(ctx context.Context, userID, groupID uint64) error
	ItemsFromLastDay(ctx context.Context, userID uint64) ([]*types.EditorHistoryItem, error)
	ClearNonGranted(ctx context.Context, userID uint64) error
}

// GroupCache provides group snapshots for target selection.
type GroupCache interface {
	All() map[uint64]*types.GroupSnapshot
	Refresh(ctx context.Context, groupID uint64) (*types.GroupSnapshot, error)
}

// Workflow orchestrates editor grants.
type Workflow struct {
	users    UserStore
	history  HistoryStore
	groups   GroupCache
	platform platform.Client
	notifier notify.Sink
	reporter report.Reporter
	logger   *zap.Logger
	grace    time.Duration
}

// NewWorkflow creates an editor grant workflow.
func NewWorkflow(
	users UserStore, history HistoryStore, groups GroupCache,
	platformClient platform.Client, notifier notify.Sink,
	reporter report.Reporter, logger *zap.Logger,
) *Workflow {
	return &Workflow{
		users:    users,
		history:  history,
		groups:   groups,
		platform: platformClient,
		notifier: notifier,
		reporter: reporter,
		logger:   logger.Named("editor"),
		grace:    defaultGraceInterval,
	}
}

// RequestGrant runs the synchronous guard chain and either grants editor
// rights, assigns a group for the user to join, or returns a typed refusal.
// Storage failures are returned as errors; policy refusals are Results.
func (w *Workflow) RequestGrant(ctx context.Context, userID uint64) (Result, error) {
	user, err := w.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, types.ErrUserNotFound) {
			return fail(ReasonNotFound), nil
		}

		return Result{}, fmt.Errorf("failed to get user: %w", err)
	}

	if user.HasActiveViolation() {
		return fail(ReasonBanned), nil
	}

	if !AllowedToReceiveEditor(user.TrustInfo.Trust) {
		return fail(ReasonLowTrust), nil
	}

	if len(user.Groups) >= GroupLimit(user.TrustInfo.Trust) {
		return fail(ReasonLimitReached), nil
	}

	onCooldown, err := w.onCooldown(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	if onCooldown {
		return Result{Status: StatusCooldown}, nil
	}

	wip, err := w.history.IsWip(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to check wip: %w", err)
	}

	if wip {
		return fail(ReasonInProgress), nil
	}

	targetGroup, err := w.selectTarget(ctx, user)
	if err != nil {
		return Result{}, err
	}

	if targetGroup == 0 {
		return fail(ReasonNoGroupAvailable), nil
	}

	// The WIP write must land before any externally-visible membership
	// check; the conditional insert is what serializes concurrent requests.
	acquired, err := w.history.SetWip(ctx, userID, targetGroup)
	if err != nil {
		return Result{}, fmt.Errorf("failed to set wip: %w", err)
	}

	if !acquired {
		return fail(ReasonInProgress), nil
	}

	snapshot, err := w.groups.Refresh(ctx, targetGroup)
	if err != nil {
		w.releaseWip(ctx, userID)
		return Result{}, fmt.Errorf("failed to refresh group snapshot: %w", err)
	}

	member, err := w.platform.IsMember(ctx, userID, snapshot.GroupID)
	if err != nil {
		w.releaseWip(ctx, userID)
		return Result{}, fmt.Errorf("failed to check membership: %w", err)
	}

	if !member {
		if err := w.history.AddNonGranted(ctx, userID, targetGroup); err != nil {
			return Result{}, fmt.Errorf("failed to record attempt: %w", err)
		}

		return Result{Status: StatusJoinGroup, GroupID: targetGroup}, nil
	}

	if err := w.platform.SetManagerRole(ctx, targetGroup, userID, platform.RoleEditor); err != nil {
		w.releaseWip(ctx, userID)
		return Result{}, fmt.Errorf("failed to set editor role: %w", err)
	}

	if err := w.history.AddGranted(ctx, userID, targetGroup); err != nil {
		return Result{}, fmt.Errorf("failed to record grant: %w", err)
	}

	user.Groups = append(user.Groups, targetGroup)
	if err := w.users.Update(ctx, user); err != nil {
		return Result{}, fmt.Errorf("failed to update user groups: %w", err)
	}

	w.logger.Info("Granted editor",
		zap.Uint64("userID", userID),
		zap.Uint64("groupID", targetGroup))

	return Result{Status: StatusSuccess, GroupID: targetGroup}, nil
}

// FulfillJoin is the asynchronous entry point invoked when the platform
// reports that a user joined a group. All failures are captured and reported;
// nothing propagates to the caller.
func (w *Workflow) FulfillJoin(ctx context.Context, userID, groupID uint64) {
	user, err := w.users.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, types.ErrUserNotFound) {
			w.reporter.Report("editor_fulfill", err)
		}

		return
	}

	if user.HasActiveViolation() || !AllowedToReceiveEditor(user.TrustInfo.Trust) {
		// The user became ineligible since the attempt was recorded;
		// abandon anything still pending.
		if err := w.history.ClearNonGranted(ctx, userID); err != nil {
			w.reporter.Report("editor_fulfill", err)
		}

		return
	}

	pending, err := w.pendingAttempt(ctx, userID)
	if err != nil {
		w.reporter.Report("editor_fulfill", err)
		return
	}

	if !pending {
		return
	}

	wip, err := w.history.IsWip(ctx, userID)
	if err != nil {
		w.reporter.Report("editor_fulfill", err)
		return
	}

	if wip {
		return
	}

	acquired, err := w.history.SetWip(ctx, userID, groupID)
	if err != nil {
		w.reporter.Report("editor_fulfill", err)
		return
	}

	if !acquired {
		return
	}

	// Give the platform a moment to settle membership state before
	// re-verifying it.
	select {
	case <-time.After(w.grace):
	case <-ctx.Done():
		w.releaseWip(ctx, userID)
		return
	}

	member, err := w.platform.IsMember(ctx, userID, groupID)
	if err != nil {
		w.reporter.Report("editor_fulfill", err)
		w.releaseWip(ctx, userID)

		return
	}

	if !member {
		w.releaseWip(ctx, userID)
		w.publish(ctx, &notify.Event{
			Type:    notify.EventEditorFailLeftGroup,
			UserID:  userID,
			GroupID: groupID,
		})

		return
	}

	if err := w.platform.SetManagerRole(ctx, groupID, userID, platform.RoleEditor); err != nil {
		w.reporter.Report("editor_fulfill", err)

		if err := w.history.AddNonGranted(ctx, userID, groupID); err != nil {
			w.reporter.Report("editor_fulfill", err)
		}

		w.publish(ctx, &notify.Event{
			Type:   notify.EventEditorFail,
			UserID: userID,
		})

		return
	}

	if err := w.history.AddGranted(ctx, userID, groupID); err != nil {
		w.reporter.Report("editor_fulfill", err)
	}

	w.publish(ctx, &notify.Event{
		Type:    notify.EventEditorSuccess,
		UserID:  userID,
		GroupID: groupID,
	})

	w.logger.Info("Fulfilled editor grant",
		zap.Uint64("userID", userID),
		zap.Uint64("groupID", groupID))
}

// onCooldown reports whether any successful grant happened within the
// cooldown window.
func (w *Workflow) onCooldown(ctx context.Context, userID uint64) (bool, error) {
	items, err := w.history.Get(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to get history: %w", err)
	}

	now := time.Now()
	for _, item := range items {
		if !item.Granted {
			continue
		}

		if now.Sub(item.Date) < GrantCooldown {
			return true, nil
		}
	}

	return false, nil
}

// selectTarget picks the group for the next grant attempt: a non-granted
// attempt from the last day is resumed, otherwise the candidate group with
// the fewest managers wins (ties broken by ascending group ID). Returns 0
// when no candidate exists.
func (w *Workflow) selectTarget(ctx context.Context, user *types.User) (uint64, error) {
	recent, err := w.history.ItemsFromLastDay(ctx, user.UserID)
	if err != nil {
		return 0, fmt.Errorf("failed to get recent attempts: %w", err)
	}

	for _, item := range recent {
		if !item.Granted {
			return item.GroupID, nil
		}
	}

	return w.chooseGroup(user), nil
}

// chooseGroup scans the snapshot cache for the least-staffed group the user
// is not already editor of.
func (w *Workflow) chooseGroup(user *types.User) uint64 {
	held := make(map[uint64]struct{}, len(user.Groups))
	for _, groupID := range user.Groups {
		held[groupID] = struct{}{}
	}

	var candidates []*types.GroupSnapshot

	for groupID, snapshot := range w.groups.All() {
		if _, ok := held[groupID]; ok {
			continue
		}

		candidates = append(candidates, snapshot)
	}

	if len(candidates) == 0 {
		return 0
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].ManagersCount != candidates[j].ManagersCount {
			return candidates[i].ManagersCount < candidates[j].ManagersCount
		}

		return candidates[i].GroupID < candidates[j].GroupID
	})

	return candidates[0].GroupID
}

// pendingAttempt reports whether a non-granted attempt from the last day
// exists.
func (w *Workflow) pendingAttempt(ctx context.Context, userID uint64) (bool, error) {
	recent, err := w.history.ItemsFromLastDay(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to get recent attempts: %w", err)
	}

	for _, item := range recent {
		if !item.Granted {
			return true, nil
		}
	}

	return false, nil
}

func (w *Workflow) releaseWip(ctx context.Context, userID uint64) {
	if err := w.history.ClearWip(ctx, userID); err != nil {
		w.reporter.Report("editor_clear_wip", err)
	}
}

func (w *Workflow) publish(ctx context.Context, event *notify.Event) {
	if err := w.notifier.Publish(ctx, event); err != nil {
		w.reporter.Report("editor_notify", err)
	}
}
