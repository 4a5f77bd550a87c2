package localstore

import (
	"context"
	"time"

	"libreserve/realtime-core/internal/models"
)

// Store is the durable local substrate the client side persists into: one
// notification log per user, one pending-action queue, and a cache table
// keyed by (type, id) with an expiry timestamp.
type Store interface {
	LoadNotifications(ctx context.Context, userID string) ([]models.Notification, error)
	SaveNotifications(ctx context.Context, userID string, log []models.Notification) error

	InsertAction(ctx context.Context, action models.PendingAction) error
	ListActions(ctx context.Context, status string) ([]models.PendingAction, error)
	CountActions(ctx context.Context, status string) (int, error)
	UpdateAction(ctx context.Context, id string, attempts int, status string) error
	DeleteAction(ctx context.Context, id string) error

	PutCacheEntry(ctx context.Context, entry models.CacheEntry) error
	ListCacheEntries(ctx context.Context, entryType string) ([]models.CacheEntry, error)
	DeleteExpiredEntries(ctx context.Context, now time.Time) (int, error)

	Close() error
}
