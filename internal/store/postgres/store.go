package postgres

import (
	"context"
	"errors"
	"fmt"

	"libreserve/realtime-core/internal/models"
	"libreserve/realtime-core/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) ApplyAction(ctx context.Context, action models.PendingAction) (store.ApplyResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return store.ApplyResult{}, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO applied_actions (action_id, applied_at)
		VALUES ($1, now())
		ON CONFLICT (action_id) DO NOTHING
	`, action.ID)
	if err != nil {
		return store.ApplyResult{}, err
	}
	if tag.RowsAffected() == 0 {
		return store.ApplyResult{Duplicate: true}, nil
	}

	userID := dataString(action.Data, "user_id")
	if userID == "" {
		return store.ApplyResult{}, fmt.Errorf("%w: user_id", store.ErrMissingField)
	}

	var reservation models.Reservation
	switch action.Action {
	case models.ActionReserve:
		bookID := dataString(action.Data, "book_id")
		if bookID == "" {
			return store.ApplyResult{}, fmt.Errorf("%w: book_id", store.ErrMissingField)
		}
		reservation, err = s.createReservation(ctx, tx, bookID, userID)
	case models.ActionCancel:
		reservation, err = s.closeReservation(ctx, tx, action.Data, userID, models.ReservationCancelled)
	case models.ActionReturn:
		reservation, err = s.closeReservation(ctx, tx, action.Data, userID, models.ReservationReturned)
	default:
		err = fmt.Errorf("%w: %s", store.ErrUnknownAction, action.Action)
	}
	if err != nil {
		return store.ApplyResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return store.ApplyResult{}, err
	}
	return store.ApplyResult{Reservation: reservation}, nil
}

func (s *Store) createReservation(ctx context.Context, tx pgx.Tx, bookID, userID string) (models.Reservation, error) {
	var taken bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM reservations WHERE book_id = $1 AND status = 'active'
		)
	`, bookID).Scan(&taken)
	if err != nil {
		return models.Reservation{}, err
	}
	if taken {
		return models.Reservation{}, store.ErrBookUnavailable
	}

	reservation := models.Reservation{
		ID:     uuid.NewString(),
		BookID: bookID,
		UserID: userID,
		Status: models.ReservationActive,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO reservations (reservation_id, book_id, user_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		RETURNING created_at, updated_at
	`, reservation.ID, bookID, userID, reservation.Status).Scan(&reservation.CreatedAt, &reservation.UpdatedAt)
	if err != nil {
		return models.Reservation{}, err
	}
	return reservation, nil
}

func (s *Store) closeReservation(ctx context.Context, tx pgx.Tx, data map[string]any, userID, status string) (models.Reservation, error) {
	reservationID := dataString(data, "reservation_id")
	if reservationID == "" {
		return models.Reservation{}, fmt.Errorf("%w: reservation_id", store.ErrMissingField)
	}

	reservation := models.Reservation{
		ID:     reservationID,
		UserID: userID,
		Status: status,
	}
	err := tx.QueryRow(ctx, `
		UPDATE reservations
		SET status = $1, updated_at = now()
		WHERE reservation_id = $2 AND user_id = $3 AND status = 'active'
		RETURNING book_id, created_at, updated_at
	`, status, reservationID, userID).Scan(&reservation.BookID, &reservation.CreatedAt, &reservation.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Reservation{}, store.ErrReservationNotFound
	}
	if err != nil {
		return models.Reservation{}, err
	}
	return reservation, nil
}

func (s *Store) ListReservations(ctx context.Context, userID string) ([]models.Reservation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT reservation_id, book_id, user_id, status, created_at, updated_at
		FROM reservations
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reservations []models.Reservation
	for rows.Next() {
		var r models.Reservation
		if err := rows.Scan(&r.ID, &r.BookID, &r.UserID, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		reservations = append(reservations, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reservations, nil
}

func dataString(data map[string]any, key string) string {
	if data == nil {
		return ""
	}
	if value, ok := data[key].(string); ok {
		return value
	}
	return ""
}
