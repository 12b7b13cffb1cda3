package knowledge

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"knowledgebot/internal/cache"
	"knowledgebot/internal/models"
)

// DefaultTTL bounds the worst-case staleness of the cached snapshot
const DefaultTTL = time.Hour

// Loader is what the cache needs from a fetcher
type Loader interface {
	FetchAll(ctx context.Context) *models.KnowledgeSnapshot
	LatestRemoteModifiedAt(ctx context.Context) (string, bool)
}

type cachedSnapshot struct {
	snapshot             *models.KnowledgeSnapshot
	lastRemoteModifiedAt string
}

// Cache holds one knowledge snapshot.
//
// Empty: Get fetches everything and fills the slot for TTL.
// Filled within TTL: Get runs the cheap metadata check and refetches only
// when the remote stamp is newer than the stored one. A failed check keeps
// the cached snapshot.
// Filled past TTL: treated as Empty.
type Cache struct {
	loader Loader
	slot   *cache.Slot[cachedSnapshot]
	ttl    time.Duration
	group  singleflight.Group
}

// CacheState describes the slot for health and admin output
type CacheState struct {
	Filled               bool      `json:"filled"`
	Stale                bool      `json:"stale"`
	DocumentCount        int       `json:"documentCount"`
	FetchedAt            time.Time `json:"fetchedAt,omitempty"`
	ExpiresAt            time.Time `json:"expiresAt,omitempty"`
	LastRemoteModifiedAt string    `json:"lastRemoteModifiedAt,omitempty"`
}

// NewCache creates an empty cache. ttl <= 0 means DefaultTTL; nil clock means real time.
func NewCache(loader Loader, ttl time.Duration, clock clockwork.Clock) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		loader: loader,
		slot:   cache.NewSlot[cachedSnapshot](clock),
		ttl:    ttl,
	}
}

// Get returns the current snapshot and whether it was served from cache
func (c *Cache) Get(ctx context.Context) (*models.KnowledgeSnapshot, bool) {
	entry, ok := c.slot.Get()
	if !ok {
		return c.fill(ctx), false
	}

	latest, ok := c.checkRemote(ctx)
	if ok && CompareModified(latest, entry.lastRemoteModifiedAt) > 0 {
		c.slot.Invalidate()
		return c.fill(ctx), false
	}

	return entry.snapshot, true
}

// Invalidate forces the next Get to refetch regardless of TTL
func (c *Cache) Invalidate() {
	c.slot.Invalidate()
}

// Refresh invalidates and synchronously repopulates the cache
func (c *Cache) Refresh(ctx context.Context) *models.KnowledgeSnapshot {
	c.Invalidate()
	return c.fill(ctx)
}

// State reports the slot contents without touching remote services. An
// expired snapshot is still described, with Stale set and Filled false.
func (c *Cache) State() CacheState {
	entry, ok := c.slot.Peek()
	if !ok {
		return CacheState{}
	}
	_, live := c.slot.Get()
	return CacheState{
		Filled:               live,
		Stale:                !live,
		DocumentCount:        len(entry.snapshot.Documents),
		FetchedAt:            entry.snapshot.FetchedAt,
		ExpiresAt:            c.slot.ExpiresAt(),
		LastRemoteModifiedAt: entry.lastRemoteModifiedAt,
	}
}

// fill coalesces concurrent refetches into one underlying FetchAll
func (c *Cache) fill(ctx context.Context) *models.KnowledgeSnapshot {
	v, _, _ := c.group.Do("fill", func() (interface{}, error) {
		snapshot := c.loader.FetchAll(ctx)
		c.slot.Set(cachedSnapshot{
			snapshot:             snapshot,
			lastRemoteModifiedAt: latestDocumentModified(snapshot),
		}, c.ttl)
		return snapshot, nil
	})
	return v.(*models.KnowledgeSnapshot)
}

type remoteCheck struct {
	latest string
	ok     bool
}

func (c *Cache) checkRemote(ctx context.Context) (string, bool) {
	v, _, _ := c.group.Do("check", func() (interface{}, error) {
		latest, ok := c.loader.LatestRemoteModifiedAt(ctx)
		return remoteCheck{latest: latest, ok: ok}, nil
	})
	rc := v.(remoteCheck)
	return rc.latest, rc.ok
}
