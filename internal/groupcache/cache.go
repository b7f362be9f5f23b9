// Package groupcache keeps an in-memory snapshot of every managed group's
// membership state. The cache is injected into the components that read it
// and refreshed by a background worker; callers never mutate snapshots.
package groupcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wardenhq/warden/internal/database/types"
	"github.com/wardenhq/warden/internal/platform"
	"go.uber.org/zap"
)

// GroupLister lists the managed groups from the system of record.
type GroupLister interface {
	GetAll(ctx context.Context) ([]*types.Group, error)
}

// Cache holds group snapshots guarded by a read-write lock.
type Cache struct {
	mu        sync.RWMutex
	snapshots map[uint64]*types.GroupSnapshot
	platform  platform.Client
	groups    GroupLister
	logger    *zap.Logger
}

// New creates an empty cache. Call RefreshAll to populate it.
func New(platformClient platform.Client, groups GroupLister, logger *zap.Logger) *Cache {
	return &Cache{
		snapshots: make(map[uint64]*types.GroupSnapshot),
		platform:  platformClient,
		groups:    groups,
		logger:    logger.Named("groupcache"),
	}
}

// All returns a copy of the current snapshot map.
func (c *Cache) All() map[uint64]*types.GroupSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[uint64]*types.GroupSnapshot, len(c.snapshots))
	for id, snapshot := range c.snapshots {
		out[id] = snapshot
	}

	return out
}

// Get returns the snapshot for a single group.
func (c *Cache) Get(groupID uint64) (*types.GroupSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot, ok := c.snapshots[groupID]

	return snapshot, ok
}

// Refresh re-fetches a single group's snapshot from the platform.
func (c *Cache) Refresh(ctx context.Context, groupID uint64) (*types.GroupSnapshot, error) {
	data, err := c.platform.GetGroupData(ctx, []uint64{groupID})
	if err != nil {
		return nil, fmt.Errorf("failed to refresh group %d: %w", groupID, err)
	}

	group, ok := data[groupID]
	if !ok {
		return nil, types.ErrGroupNotFound
	}

	snapshot := toSnapshot(group)

	c.mu.Lock()
	c.snapshots[groupID] = snapshot
	c.mu.Unlock()

	return snapshot, nil
}

// RefreshAll re-fetches snapshots for every managed group and swaps the map
// in one step.
func (c *Cache) RefreshAll(ctx context.Context) error {
	groups, err := c.groups.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list managed groups: %w", err)
	}

	groupIDs := make([]uint64, 0, len(groups))
	for _, group := range groups {
		groupIDs = append(groupIDs, group.GroupID)
	}

	data, err := c.platform.GetGroupData(ctx, groupIDs)
	if err != nil {
		return fmt.Errorf("failed to fetch group data: %w", err)
	}

	snapshots := make(map[uint64]*types.GroupSnapshot, len(data))
	for id, group := range data {
		snapshots[id] = toSnapshot(group)
	}

	c.mu.Lock()
	c.snapshots = snapshots
	c.mu.Unlock()

	c.logger.Info("Refreshed group snapshots", zap.Int("count", len(snapshots)))

	return nil
}

func toSnapshot(data *platform.GroupData) *types.GroupSnapshot {
	return &types.GroupSnapshot{
		GroupID:       data.GroupID,
		Name:          data.Name,
		ManagersCount: len(data.Managers),
		MembersCount:  data.MembersCount,
		Managers:      data.Managers,
		FetchedAt:     time.Now(),
	}
}
