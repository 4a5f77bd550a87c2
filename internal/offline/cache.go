package offline

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"libreserve/realtime-core/internal/localstore"
	"libreserve/realtime-core/internal/models"
)

const (
	CacheBook         = "book"
	CacheReservation  = "reservation"
	CacheNotification = "notification"
)

type Cache struct {
	local localstore.Store
	now   func() time.Time
}

func NewCache(local localstore.Store, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{local: local, now: now}
}

func (c *Cache) Put(ctx context.Context, entryType, id string, data any, ttl time.Duration) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	cachedAt := c.now().UTC()
	return c.local.PutCacheEntry(ctx, models.CacheEntry{
		Type:      entryType,
		ID:        id,
		Data:      raw,
		CachedAt:  cachedAt,
		ExpiresAt: cachedAt.Add(ttl),
	})
}

func (c *Cache) Entries(ctx context.Context, entryType string) ([]models.CacheEntry, error) {
	return c.local.ListCacheEntries(ctx, entryType)
}

// Sweep removes entries whose expiry has passed and returns how many went.
func (c *Cache) Sweep(ctx context.Context) (int, error) {
	return c.local.DeleteExpiredEntries(ctx, c.now().UTC())
}

// RunSweeper sweeps on the given interval until the context is cancelled.
func (c *Cache) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := c.Sweep(ctx)
			if err != nil {
				log.Printf("cache sweep error: %v", err)
				continue
			}
			if removed > 0 {
				log.Printf("cache sweep removed=%d", removed)
			}
		}
	}
}
