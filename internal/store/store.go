package store

import (
	"context"

	"libreserve/realtime-core/internal/models"
)

type ApplyResult struct {
	Duplicate   bool
	Reservation models.Reservation
}

type Store interface {
	// ApplyAction applies a replayed client action exactly once: a second
	// submission of the same action id reports Duplicate without reapplying.
	ApplyAction(ctx context.Context, action models.PendingAction) (ApplyResult, error)
	ListReservations(ctx context.Context, userID string) ([]models.Reservation, error)
}
