package store

import "errors"

var (
	ErrBookUnavailable     = errors.New("book unavailable")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrUnknownAction       = errors.New("unknown action")
	ErrMissingField        = errors.New("missing action field")
)
