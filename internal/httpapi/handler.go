package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"libreserve/realtime-core/internal/models"
	"libreserve/realtime-core/internal/store"

	"github.com/google/uuid"
)

type Pusher interface {
	SendNotificationToUser(userID string, n models.Notification) bool
	BroadcastNotification(n models.Notification)
}

type Handler struct {
	store  store.Store
	pusher Pusher
	stream http.HandlerFunc
}

type actionRequest struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Action    string         `json:"action"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
	Attempts  int            `json:"attempts"`
	Status    string         `json:"status"`
}

type actionResponse struct {
	ID          string              `json:"id"`
	Applied     bool                `json:"applied"`
	Duplicate   bool                `json:"duplicate,omitempty"`
	Reservation *models.Reservation `json:"reservation,omitempty"`
}

type errorResponse struct {
	Error responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewHandler(store store.Store, pusher Pusher, stream http.HandlerFunc) *Handler {
	return &Handler{store: store, pusher: pusher, stream: stream}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	if h.stream != nil {
		mux.HandleFunc("/api/stream", h.stream)
	}
	mux.HandleFunc("/api/actions", h.handleActions)
	mux.HandleFunc("/api/reservations", h.handleReservations)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req actionRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.ID = strings.TrimSpace(req.ID)
	req.Action = strings.TrimSpace(req.Action)
	if req.ID == "" || req.Action == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "id and action are required")
		return
	}
	if !isValidUUID(req.ID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "id must be a UUID")
		return
	}

	action := models.PendingAction{
		ID:        req.ID,
		Type:      req.Type,
		Action:    req.Action,
		Data:      req.Data,
		CreatedAt: req.CreatedAt,
	}
	result, err := h.store.ApplyAction(r.Context(), action)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrMissingField), errors.Is(err, store.ErrUnknownAction):
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		case errors.Is(err, store.ErrBookUnavailable):
			writeError(w, http.StatusConflict, "book_unavailable", "book is already reserved")
		case errors.Is(err, store.ErrReservationNotFound):
			writeError(w, http.StatusNotFound, "reservation_not_found", "no active reservation")
		default:
			log.Printf("apply action error action=%s err=%v", req.ID, err)
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected error")
		}
		return
	}

	response := actionResponse{ID: req.ID, Applied: true, Duplicate: result.Duplicate}
	if !result.Duplicate {
		response.Reservation = &result.Reservation
		h.notifyActionApplied(action, result.Reservation)
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *Handler) handleReservations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "user_id is required")
		return
	}
	reservations, err := h.store.ListReservations(r.Context(), userID)
	if err != nil {
		log.Printf("list reservations error user=%s err=%v", userID, err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": reservations})
}

func (h *Handler) notifyActionApplied(action models.PendingAction, reservation models.Reservation) {
	if h.pusher == nil {
		return
	}
	title, message := "Action applied", "Your queued action was applied."
	switch action.Action {
	case models.ActionReserve:
		title, message = "Reservation confirmed", "Your book reservation has been confirmed."
	case models.ActionCancel:
		title, message = "Reservation cancelled", "Your book reservation has been cancelled."
	case models.ActionReturn:
		title, message = "Return recorded", "Your book return has been recorded."
	}
	h.pusher.SendNotificationToUser(reservation.UserID, models.Notification{
		ID:          uuid.NewString(),
		Type:        models.NotifySuccess,
		Title:       title,
		Message:     message,
		Timestamp:   time.Now().UTC(),
		RelatedKind: "reservation",
		RelatedID:   reservation.ID,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: responseError{Code: code, Message: message}})
}

func isValidUUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}
