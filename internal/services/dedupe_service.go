package services

import (
	"context"
	"fmt"
	"log"
	"time"

	cache "github.com/patrickmn/go-cache"
)

// DedupeWindow is how long a seen update id is remembered
const DedupeWindow = 10 * time.Minute

// UpdateDeduplicator drops Telegram redeliveries of the same update_id.
// Redis makes it shared across replicas; without it each process remembers
// its own ids. Best effort, not exactly-once.
type UpdateDeduplicator struct {
	redis *RedisService
	local *cache.Cache
}

// NewUpdateDeduplicator creates a deduplicator; redis may be nil
func NewUpdateDeduplicator(redis *RedisService) *UpdateDeduplicator {
	return &UpdateDeduplicator{
		redis: redis,
		local: cache.New(DedupeWindow, 2*DedupeWindow),
	}
}

// FirstSeen records updateID and reports whether this is its first delivery
func (d *UpdateDeduplicator) FirstSeen(ctx context.Context, updateID int64) bool {
	key := fmt.Sprintf("knowledgebot:update:%d", updateID)

	if d.redis != nil {
		ok, err := d.redis.SetNX(ctx, key, 1, DedupeWindow)
		if err == nil {
			return ok
		}
		log.Printf("⚠️  [DEDUPE] Redis unavailable, using local memory: %v", err)
	}

	// Add fails when the key is already present
	return d.local.Add(key, struct{}{}, cache.DefaultExpiration) == nil
}
