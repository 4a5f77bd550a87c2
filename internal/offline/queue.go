package offline

import (
	"context"
	"fmt"
	"time"

	"libreserve/realtime-core/internal/localstore"
	"libreserve/realtime-core/internal/models"

	"github.com/google/uuid"
)

type Config struct {
	MaxAttempts int
	Now         func() time.Time
}

// Queue is the durable log of user actions taken while disconnected. Every
// enqueue is persisted before it returns; an action leaves the queue only by
// being applied, dead-lettered past the attempt cap, or discarded by the user.
type Queue struct {
	local       localstore.Store
	maxAttempts int
	now         func() time.Time
}

func NewQueue(local localstore.Store, cfg Config) *Queue {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Queue{local: local, maxAttempts: maxAttempts, now: now}
}

func (q *Queue) Enqueue(ctx context.Context, actionType, action string, data map[string]any) (models.PendingAction, error) {
	pending := models.PendingAction{
		ID:        uuid.NewString(),
		Type:      actionType,
		Action:    action,
		Data:      data,
		CreatedAt: q.now().UTC(),
		Status:    models.ActionStatusPending,
	}
	if err := q.local.InsertAction(ctx, pending); err != nil {
		return models.PendingAction{}, fmt.Errorf("enqueue action: %w", err)
	}
	return pending, nil
}

// Pending returns queued actions in creation order.
func (q *Queue) Pending(ctx context.Context) ([]models.PendingAction, error) {
	return q.local.ListActions(ctx, models.ActionStatusPending)
}

func (q *Queue) PendingCount(ctx context.Context) (int, error) {
	return q.local.CountActions(ctx, models.ActionStatusPending)
}

func (q *Queue) Remove(ctx context.Context, id string) error {
	return q.local.DeleteAction(ctx, id)
}

// RecordFailure increments the action's attempt counter and dead-letters it
// once the cap is reached. It reports whether the action went dead.
func (q *Queue) RecordFailure(ctx context.Context, action models.PendingAction) (bool, error) {
	attempts := action.Attempts + 1
	if attempts >= q.maxAttempts {
		if err := q.local.UpdateAction(ctx, action.ID, attempts, models.ActionStatusDead); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, q.local.UpdateAction(ctx, action.ID, attempts, models.ActionStatusPending)
}

func (q *Queue) DeadLettered(ctx context.Context) ([]models.PendingAction, error) {
	return q.local.ListActions(ctx, models.ActionStatusDead)
}

// Resubmit returns a dead-lettered action to the queue with its attempts
// reset.
func (q *Queue) Resubmit(ctx context.Context, id string) error {
	return q.local.UpdateAction(ctx, id, 0, models.ActionStatusPending)
}

func (q *Queue) Discard(ctx context.Context, id string) error {
	return q.local.DeleteAction(ctx, id)
}
