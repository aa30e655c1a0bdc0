// Package slotcache keeps the consultant availability shown to a
// conversation so the calendar is not queried on every turn.
package slotcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/consultdesk/bookingagent/internal/database"
	"github.com/consultdesk/bookingagent/internal/gcal"
)

// TTL is how long cached slots stay valid for a conversation.
const TTL = 48 * time.Hour

// Cache stores available slots per conversation. Get reports false when
// nothing valid is cached.
type Cache interface {
	Get(ctx context.Context, conversationID string) ([]gcal.Slot, bool, error)
	Set(ctx context.Context, conversationID string, slots []gcal.Slot) error
	Invalidate(ctx context.Context, conversationID string) error
}

func encode(slots []gcal.Slot) (string, error) {
	if slots == nil {
		slots = []gcal.Slot{}
	}
	data, err := json.Marshal(slots)
	if err != nil {
		return "", fmt.Errorf("failed to encode slots: %w", err)
	}
	return string(data), nil
}

func decode(payload string) ([]gcal.Slot, error) {
	var slots []gcal.Slot
	if err := json.Unmarshal([]byte(payload), &slots); err != nil {
		return nil, fmt.Errorf("failed to decode slots: %w", err)
	}
	return slots, nil
}

// RedisCache stores slots under an expiring key.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache creates a Redis-backed cache.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, prefix: "booking:slots:"}
}

func (c *RedisCache) key(conversationID string) string {
	return c.prefix + conversationID
}

func (c *RedisCache) Get(ctx context.Context, conversationID string) ([]gcal.Slot, bool, error) {
	payload, err := c.client.Get(ctx, c.key(conversationID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached slots: %w", err)
	}
	slots, err := decode(payload)
	if err != nil {
		return nil, false, err
	}
	return slots, true, nil
}

func (c *RedisCache) Set(ctx context.Context, conversationID string, slots []gcal.Slot) error {
	payload, err := encode(slots)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.key(conversationID), payload, TTL).Err(); err != nil {
		return fmt.Errorf("failed to cache slots: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, conversationID string) error {
	if err := c.client.Del(ctx, c.key(conversationID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached slots: %w", err)
	}
	return nil
}

// DBCache stores slots on the conversation row.
type DBCache struct {
	db  *database.DB
	now func() time.Time
}

// NewDBCache creates a cache on the conversations table.
func NewDBCache(db *database.DB) *DBCache {
	return &DBCache{db: db, now: time.Now}
}

func (c *DBCache) Get(_ context.Context, conversationID string) ([]gcal.Slot, bool, error) {
	payload, fetchedAt, err := c.db.GetCachedSlots(conversationID)
	if err != nil {
		return nil, false, err
	}
	if fetchedAt == nil || payload == "" || c.now().Sub(*fetchedAt) >= TTL {
		return nil, false, nil
	}
	slots, err := decode(payload)
	if err != nil {
		return nil, false, err
	}
	return slots, true, nil
}

func (c *DBCache) Set(_ context.Context, conversationID string, slots []gcal.Slot) error {
	payload, err := encode(slots)
	if err != nil {
		return err
	}
	return c.db.SaveCachedSlots(conversationID, payload, c.now().UTC())
}

func (c *DBCache) Invalidate(_ context.Context, conversationID string) error {
	return c.db.ClearCachedSlots(conversationID)
}
