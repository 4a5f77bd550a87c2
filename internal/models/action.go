package models

import "time"

const (
	ActionStatusPending = "pending"
	ActionStatusDead    = "dead"
)

const (
	ActionTypeReservation = "reservation"
	ActionTypeReturn      = "return"
)

const (
	ActionReserve = "reserve"
	ActionCancel  = "cancel"
	ActionReturn  = "return"
)

type PendingAction struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Action    string         `json:"action"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
	Attempts  int            `json:"attempts"`
	Status    string         `json:"status"`
}

type CacheEntry struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	Data      []byte    `json:"data"`
	CachedAt  time.Time `json:"cached_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
