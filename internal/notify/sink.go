// Package notify broadcasts moderation events to live observers over Redis
// pub/sub. The transport layer bridges the channel to its own observers;
// this core only publishes. Publish failures never reach business callers.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/rueidis"
	"github.com/wardenhq/warden/internal/database/types"
	"go.uber.org/zap"
)

// Channel is the Redis pub/sub channel events are published to.
const Channel = "warden:events"

// EventType identifies the kind of moderation event.
type EventType string

const (
	EventEditorSuccess       EventType = "editor_success"
	EventEditorFailLeftGroup EventType = "editor_fail_left_group"
	EventEditorFail          EventType = "editor_fail"
	EventNewWarning          EventType = "new_warning"
	EventNewBan              EventType = "new_ban"
)

// Event is a single moderation event pushed to observers.
type Event struct {
	ID       string         `json:"id"`
	Type     EventType      `json:"type"`
	UserID   uint64         `json:"userId"`
	GroupID  uint64         `json:"groupId,omitempty"`
	Priority types.Priority `json:"priority,omitempty"`
	SentAt   time.Time      `json:"sentAt"`
}

// Sink publishes events for live observers.
type Sink interface {
	// Publish broadcasts an event. Errors are returned so the caller can
	// report them, but callers must not propagate them further.
	Publish(ctx context.Context, event *Event) error
}

// RedisSink implements Sink over Redis pub/sub.
type RedisSink struct {
	client rueidis.Client
	logger *zap.Logger
}

// NewRedisSink creates a sink publishing to the given Redis client.
func NewRedisSink(client rueidis.Client, logger *zap.Logger) *RedisSink {
	return &RedisSink{
		client: client,
		logger: logger.Named("notify"),
	}
}

// Publish broadcasts an event on the events channel.
func (s *RedisSink) Publish(ctx context.Context, event *Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	if event.SentAt.IsZero() {
		event.SentAt = time.Now()
	}

	payload, err := sonic.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	cmd := s.client.B().Publish().Channel(Channel).Message(string(payload)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	s.logger.Debug("Published event",
		zap.String("type", string(event.Type)),
		zap.Uint64("userID", event.UserID))

	return nil
}
