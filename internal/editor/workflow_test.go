package editor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wardenhq/warden/internal/database/types"
	"github.com/wardenhq/warden/internal/notify"
	"github.com/wardenhq/warden/internal/platform"
	"go.uber.org/zap"
)

type fakeUserStore struct {
	mu    sync.Mutex
	users map[uint64]*types.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[uint64]*types.User)}
}

func (s *fakeUserStore) Get(_ context.Context, userID uint64) (*types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return nil, types.ErrUserNotFound
	}

	copied := *user

	return &copied, nil
}

func (s *fakeUserStore) Update(_ context.Context, user *types.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[user.UserID] = user

	return nil
}

// fakeHistoryStore mirrors the conditional-insert lock semantics of the real
// model: SetWip succeeds only while no other item holds the flag.
type fakeHistoryStore struct {
	mu    sync.Mutex
	items []*types.EditorHistoryItem
}

func (s *fakeHistoryStore) Get(_ context.Context, userID uint64) ([]*types.EditorHistoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*types.EditorHistoryItem

	for _, item := range s.items {
		if item.UserID == userID {
			out = append(out, item)
		}
	}

	return out, nil
}

func (s *fakeHistoryStore) SetWip(_ context.Context, userID, groupID uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range s.items {
		if item.UserID == userID && item.Wip {
			return false, nil
		}
	}

	s.items = append(s.items, &types.EditorHistoryItem{
		UserID:  userID,
		GroupID: groupID,
		Date:    time.Now(),
		Wip:     true,
	})

	return true, nil
}

func (s *fakeHistoryStore) ClearWip(_ context.Context, userID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	filtered := s.items[:0]

	for _, item := range s.items {
		if !(item.UserID == userID && item.Wip) {
			filtered = append(filtered, item)
		}
	}

	s.items = filtered

	return nil
}

func (s *fakeHistoryStore) IsWip(_ context.Context, userID uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range s.items {
		if item.UserID == userID && item.Wip {
			return true, nil
		}
	}

	return false, nil
}

func (s *fakeHistoryStore) add(userID, groupID uint64, granted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	filtered := s.items[:0]

	for _, item := range s.items {
		if !(item.UserID == userID && item.Wip) {
			filtered = append(filtered, item)
		}
	}

	s.items = append(filtered, &types.EditorHistoryItem{
		UserID:  userID,
		GroupID: groupID,
		Date:    time.Now(),
		Granted: granted,
	})
}

func (s *fakeHistoryStore) AddGranted(_ context.Context, userID, groupID uint64) error {
	s.add(userID, groupID, true)
	return nil
}

func (s *fakeHistoryStore) AddNonGranted(_ context.Context, userID, groupID uint64) error {
	s.add(userID, groupID, false)
	return nil
}

func (s *fakeHistoryStore) ItemsFromLastDay(_ context.Context, userID uint64) ([]*types.EditorHistoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-24 * time.Hour)

	var out []*types.EditorHistoryItem

	for _, item := range s.items {
		if item.UserID == userID && !item.Wip && item.Date.After(cutoff) {
			out = append(out, item)
		}
	}

	return out, nil
}

func (s *fakeHistoryStore) ClearNonGranted(_ context.Context, userID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	filtered := s.items[:0]

	for _, item := range s.items {
		if !(item.UserID == userID && !item.Granted && !item.Wip) {
			filtered = append(filtered, item)
		}
	}

	s.items = filtered

	return nil
}

type fakeGroupCache struct {
	snapshots map[uint64]*types.GroupSnapshot
}

func (c *fakeGroupCache) All() map[uint64]*types.GroupSnapshot {
	out := make(map[uint64]*types.GroupSnapshot, len(c.snapshots))
	for id, snapshot := range c.snapshots {
		out[id] = snapshot
	}

	return out
}

func (c *fakeGroupCache) Refresh(_ context.Context, groupID uint64) (*types.GroupSnapshot, error) {
	snapshot, ok := c.snapshots[groupID]
	if !ok {
		return nil, types.ErrGroupNotFound
	}

	return snapshot, nil
}

type fakePlatform struct {
	mu         sync.Mutex
	members    map[uint64]map[uint64]bool
	roleErr    error
	roleCalls  int
	lastRole   string
	lastTarget uint64
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{members: make(map[uint64]map[uint64]bool)}
}

func (p *fakePlatform) setMember(userID, groupID uint64) {
	if p.members[userID] == nil {
		p.members[userID] = make(map[uint64]bool)
	}

	p.members[userID][groupID] = true
}

func (p *fakePlatform) IsMember(_ context.Context, userID, groupID uint64) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.members[userID][groupID], nil
}

func (p *fakePlatform) SetManagerRole(_ context.Context, groupID, _ uint64, role string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.roleErr != nil {
		return p.roleErr
	}

	p.roleCalls++
	p.lastRole = role
	p.lastTarget = groupID

	return nil
}

func (p *fakePlatform) BanInGroup(_ context.Context, _, _ uint64) error   { return nil }
func (p *fakePlatform) UnbanInGroup(_ context.Context, _, _ uint64) error { return nil }

func (p *fakePlatform) GetProfile(_ context.Context, _ uint64) (*platform.Profile, error) {
	return &platform.Profile{}, nil
}

func (p *fakePlatform) GetWallPostCount(_ context.Context, _ uint64) (int, error) { return 0, nil }

func (p *fakePlatform) GetRegistrationDate(_ context.Context, _ uint64) (time.Time, error) {
	return time.Time{}, platform.ErrNoRegistrationDate
}

func (p *fakePlatform) GetGroupData(_ context.Context, _ []uint64) (map[uint64]*platform.GroupData, error) {
	return nil, nil
}

type fakeSink struct {
	mu     sync.Mutex
	events []*notify.Event
}

func (s *fakeSink) Publish(_ context.Context, event *notify.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)

	return nil
}

func (s *fakeSink) byType(eventType notify.EventType) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0

	for _, event := range s.events {
		if event.Type == eventType {
			count++
		}
	}

	return count
}

type fakeReporter struct {
	mu   sync.Mutex
	errs []error
}

func (r *fakeReporter) Report(_ string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errs = append(r.errs, err)
}

type workflowFixture struct {
	workflow *Workflow
	users    *fakeUserStore
	history  *fakeHistoryStore
	groups   *fakeGroupCache
	platform *fakePlatform
	sink     *fakeSink
	reporter *fakeReporter
}

func setupWorkflow(t *testing.T) *workflowFixture {
	t.Helper()

	users := newFakeUserStore()
	history := &fakeHistoryStore{}
	groups := &fakeGroupCache{snapshots: map[uint64]*types.GroupSnapshot{
		10: {GroupID: 10, ManagersCount: 2},
		11: {GroupID: 11, ManagersCount: 1},
		12: {GroupID: 12, ManagersCount: 1},
	}}
	api := newFakePlatform()
	sink := &fakeSink{}
	reporter := &fakeReporter{}

	workflow := NewWorkflow(users, history, groups, api, sink, reporter, zap.NewNop())
	workflow.grace = 0

	return &workflowFixture{
		workflow: workflow,
		users:    users,
		history:  history,
		groups:   groups,
		platform: api,
		sink:     sink,
		reporter: reporter,
	}
}

func trustedUser(userID uint64, trust int) *types.User {
	return &types.User{
		UserID:    userID,
		Name:      "tester",
		TrustInfo: types.TrustInfo{Trust: trust},
	}
}

func TestRequestGrantUnknownUser(t *testing.T) {
	t.Parallel()

	f := setupWorkflow(t)

	result, err := f.workflow.RequestGrant(t.Context(), 404)
	require.NoError(t, err)
	assert.Equal(t, StatusFail, result.Status)
	assert.Equal(t, ReasonNotFound, result.Reason)
}

func TestRequestGrantBannedUser(t *testing.T) {
	t.Parallel()

	f := setupWorkflow(t)

	user := trustedUser(1, 50)
	user.Violations = []*types.Violation{
		{Type: types.ViolationBanned, Active: true, Date: time.Now()},
	}
	f.users.users[1] = user

	result, err := f.workflow.RequestGrant(t.Context(), 1)
	require.NoError(t, err)
	assert.Equal(t, ReasonBanned, result.Reason)
}

func TestRequestGrantLowTrust(t *testing.T) {
	t.Parallel()

	f := setupWorkflow(t)
	f.users.users[1] = trustedUser(1, 10)

	result, err := f.workflow.RequestGrant(t.Context(), 1)
	require.NoError(t, err)
	assert.Equal(t, ReasonLowTrust, result.Reason)
}

func TestRequestGrantLimitReached(t *testing.T) {
	t.Parallel()

	f := setupWorkflow(t)

	// Trust 15 allows exactly one group.
	user := trustedUser(1, 15)
	user.Groups = []uint64{10}
	f.users.users[1] = user

	result, err := f.workflow.RequestGrant(t.Context(), 1)
	require.NoError(t, err)
	assert.Equal(t, ReasonLimitReached, result.Reason)
}

func TestRequestGrantCooldown(t *testing.T) {
	t.Parallel()

	f := setupWorkflow(t)
	f.users.users[1] = trustedUser(1, 50)
	f.history.items = append(f.history.items, &types.EditorHistoryItem{
		UserID:  1,
		GroupID: 10,
		Date:    time.Now().Add(-time.Hour),
		Granted: true,
	})

	result, err := f.workflow.RequestGrant(t.Context(), 1)
	require.NoError(t, err)
	assert.Equal(t, StatusCooldown, result.Status)
}

func TestRequestGrantCooldownExpired(t *testing.T) {
	t.Parallel()

	f := setupWorkflow(t)
	f.users.users[1] = trustedUser(1, 50)
	f.history.items = append(f.history.items, &types.EditorHistoryItem{
		UserID:  1,
		GroupID: 10,
		Date:    time.Now().Add(-GrantCooldown - time.Minute),
		Granted: true,
	})

	result, err := f.workflow.RequestGrant(t.Context(), 1)
	require.NoError(t, err)
	assert.NotEqual(t, StatusCooldown, result.Status)
}

func TestRequestGrantNotMemberAssignsGroup(t *testing.T) {
	t.Parallel()

	f := setupWorkflow(t)
	f.users.users[1] = trustedUser(1, 50)

	result, err := f.workflow.RequestGrant(t.Context(), 1)
	require.NoError(t, err)
	assert.Equal(t, StatusJoinGroup, result.Status)

	// Fewest managers wins, ties broken by ascending group ID.
	assert.Equal(t, uint64(11), result.GroupID)

	// The attempt is recorded and the lock released.
	wip, err := f.history.IsWip(t.Context(), 1)
	require.NoError(t, err)
	assert.False(t, wip)
}

func TestRequestGrantMemberSucceeds(t *testing.T) {
	t.Parallel()

	f := setupWorkflow(t)
	f.users.users[1] = trustedUser(1, 50)
	f.platform.setMember(1, 11)

	result, err := f.workflow.RequestGrant(t.Context(), 1)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, uint64(11), result.GroupID)
	assert.Equal(t, RoleEditor, f.platform.lastRole)
	assert.Contains(t, f.users.users[1].Groups, uint64(11))
}

func TestRequestGrantResumesRecentAttempt(t *testing.T) {
	t.Parallel()

	f := setupWorkflow(t)
	f.users.users[1] = trustedUser(1, 50)

	// A failed attempt at group 12 from an hour ago takes precedence over
	// the otherwise better-ranked group 11.
	f.history.items = append(f.history.items, &types.EditorHistoryItem{
		UserID:  1,
		GroupID: 12,
		Date:    time.Now().Add(-time.Hour),
	})

	result, err := f.workflow.RequestGrant(t.Context(), 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), result.GroupID)
}

func TestRequestGrantNoGroupAvailable(t *testing.T) {
	t.Parallel()

	f := setupWorkflow(t)

	user := trustedUser(1, 100)
	user.Groups = []uint64{10, 11, 12}
	f.users.users[1] = user

	result, err := f.workflow.RequestGrant(t.Context(), 1)
	require.NoError(t, err)
	assert.Equal(t, ReasonNoGroupAvailable, result.Reason)
}

func TestRequestGrantConcurrentRequests(t *testing.T) {
	t.Parallel()

	f := setupWorkflow(t)
	f.users.users[1] = trustedUser(1, 50)
	f.platform.setMember(1, 11)

	results := make([]Result, 2)
	errs := make([]error, 2)

	var wg sync.WaitGroup

	for i := range 2 {
		wg.Add(1)

		go func() {
			defer wg.Done()
			results[i], errs[i] = f.workflow.RequestGrant(context.Background(), 1)
		}()
	}

	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	// At most one request may reach the platform; the loser sees either the
	// in-progress refusal or the cooldown from the winner's grant.
	assert.LessOrEqual(t, f.platform.roleCalls, 1)
}

func TestFulfillJoinGrantsAndNotifies(t *testing.T) {
	t.Parallel()

	f := setupWorkflow(t)
	f.users.users[1] = trustedUser(1, 50)
	f.platform.setMember(1, 11)
	f.history.items = append(f.history.items, &types.EditorHistoryItem{
		UserID:  1,
		GroupID: 11,
		Date:    time.Now().Add(-time.Hour),
	})

	f.workflow.FulfillJoin(t.Context(), 1, 11)

	assert.Equal(t, 1, f.sink.byType(notify.EventEditorSuccess))
	assert.Equal(t, 1, f.platform.roleCalls)
}

func TestFulfillJoinWithoutPendingAttempt(t *testing.T) {
	t.Parallel()

	f := setupWorkflow(t)
	f.users.users[1] = trustedUser(1, 50)
	f.platform.setMember(1, 11)

	f.workflow.FulfillJoin(t.Context(), 1, 11)

	assert.Empty(t, f.sink.events)
	assert.Zero(t, f.platform.roleCalls)
}

func TestFulfillJoinUserLeftGroup(t *testing.T) {
	t.Parallel()

	f := setupWorkflow(t)
	f.users.users[1] = trustedUser(1, 50)
	f.history.items = append(f.history.items, &types.EditorHistoryItem{
		UserID:  1,
		GroupID: 11,
		Date:    time.Now().Add(-time.Hour),
	})

	f.workflow.FulfillJoin(t.Context(), 1, 11)

	assert.Equal(t, 1, f.sink.byType(notify.EventEditorFailLeftGroup))
	assert.Zero(t, f.platform.roleCalls)

	wip, err := f.history.IsWip(t.Context(), 1)
	require.NoError(t, err)
	assert.False(t, wip)
}

func TestFulfillJoinRoleFailure(t *testing.T) {
	t.Parallel()

	f := setupWorkflow(t)
	f.users.users[1] = trustedUser(1, 50)
	f.platform.setMember(1, 11)
	f.platform.roleErr = assert.AnError
	f.history.items = append(f.history.items, &types.EditorHistoryItem{
		UserID:  1,
		GroupID: 11,
		Date:    time.Now().Add(-time.Hour),
	})

	f.workflow.FulfillJoin(t.Context(), 1, 11)

	assert.Equal(t, 1, f.sink.byType(notify.EventEditorFail))
	assert.NotEmpty(t, f.reporter.errs)
}

func TestFulfillJoinIneligibleClearsAttempts(t *testing.T) {
	t.Parallel()

	f := setupWorkflow(t)

	user := trustedUser(1, 5)
	f.users.users[1] = user
	f.history.items = append(f.history.items, &types.EditorHistoryItem{
		UserID:  1,
		GroupID: 11,
		Date:    time.Now().Add(-time.Hour),
	})

	f.workflow.FulfillJoin(t.Context(), 1, 11)

	recent, err := f.history.ItemsFromLastDay(t.Context(), 1)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestFulfillJoinWipHeld(t *testing.T) {
	t.Parallel()

	f := setupWorkflow(t)
	f.users.users[1] = trustedUser(1, 50)
	f.platform.setMember(1, 11)
	f.history.items = append(f.history.items,
		&types.EditorHistoryItem{
			UserID:  1,
			GroupID: 11,
			Date:    time.Now().Add(-time.Hour),
		},
		&types.EditorHistoryItem{
			UserID:  1,
			GroupID: 11,
			Date:    time.Now(),
			Wip:     true,
		},
	)

	f.workflow.FulfillJoin(t.Context(), 1, 11)

	assert.Zero(t, f.platform.roleCalls)
	assert.Empty(t, f.sink.events)
}
