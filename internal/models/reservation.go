package models

import "time"

const (
	ReservationActive    = "active"
	ReservationCancelled = "cancelled"
	ReservationReturned  = "returned"
)

type Reservation struct {
	ID        string    `json:"id"`
	BookID    string    `json:"book_id"`
	UserID    string    `json:"user_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
