// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultQueueName is the Redis list the historian service consumes.
const DefaultQueueName = "unoserve_actions"

// GameActionRecord is one game action as pushed onto the historian queue.
type GameActionRecord struct {
	RoomID        int64                  `json:"room_id"`
	ActorUsername string                 `json:"actor_username,omitempty"`
	ActionType    string                 `json:"action_type"`
	ActionPayload map[string]interface{} `json:"action_payload,omitempty"`
	Timestamp     int64                  `json:"timestamp"`
}

// Historian queues game-action records onto a Redis list, best effort.
// A nil *Historian is valid and drops everything.
type Historian struct {
	rdb    *redis.Client
	queue  string
	logger *logrus.Logger
}

// Connect dials Redis and verifies it with a ping. queue falls back to
// DefaultQueueName when empty.
func Connect(addr string, db int, queue string, logger *logrus.Logger) (*Historian, error) {
	if queue == "" {
		queue = DefaultQueueName
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: db})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return &Historian{rdb: rdb, queue: queue, logger: logger}, nil
}

// LogAction pushes a record asynchronously. Failures are logged, never
// surfaced: the historian must not affect game traffic.
func (h *Historian) LogAction(roomID int64, username, action string, payload map[string]interface{}) {
	if h == nil {
		return
	}
	rec := GameActionRecord{
		RoomID:        roomID,
		ActorUsername: username,
		ActionType:    action,
		ActionPayload: payload,
		Timestamp:     time.Now().Unix(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		data, err := json.Marshal(rec)
		if err != nil {
			h.logger.WithError(err).Warn("failed to marshal game action record")
			return
		}
		if err := h.rdb.RPush(ctx, h.queue, data).Err(); err != nil {
			h.logger.WithError(err).Warn("failed to enqueue game action record")
		}
	}()
}

// Close releases the Redis client.
func (h *Historian) Close() error {
	if h == nil {
		return nil
	}
	return h.rdb.Close()
}
