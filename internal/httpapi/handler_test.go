package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"libreserve/realtime-core/internal/models"
	"libreserve/realtime-core/internal/store"
)

type fakeStore struct {
	applyFn func(ctx context.Context, action models.PendingAction) (store.ApplyResult, error)
	listFn  func(ctx context.Context, userID string) ([]models.Reservation, error)
}

func (f fakeStore) ApplyAction(ctx context.Context, action models.PendingAction) (store.ApplyResult, error) {
	if f.applyFn == nil {
		return store.ApplyResult{}, nil
	}
	return f.applyFn(ctx, action)
}

func (f fakeStore) ListReservations(ctx context.Context, userID string) ([]models.Reservation, error) {
	if f.listFn == nil {
		return nil, nil
	}
	return f.listFn(ctx, userID)
}

type fakePusher struct {
	sent      []models.Notification
	sentTo    []string
	broadcast []models.Notification
}

func (f *fakePusher) SendNotificationToUser(userID string, n models.Notification) bool {
	f.sentTo = append(f.sentTo, userID)
	f.sent = append(f.sent, n)
	return true
}

func (f *fakePusher) BroadcastNotification(n models.Notification) {
	f.broadcast = append(f.broadcast, n)
}

func postAction(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/api/actions", bytes.NewBufferString(body))
	handler.ServeHTTP(recorder, request)
	return recorder
}

const validActionID = "7d8f0b3a-40a4-4f6e-9c1c-2b9f6a1f0c11"

func TestApplyActionSuccess(t *testing.T) {
	var applied models.PendingAction
	pusher := &fakePusher{}
	handler := NewHandler(fakeStore{
		applyFn: func(ctx context.Context, action models.PendingAction) (store.ApplyResult, error) {
			applied = action
			return store.ApplyResult{Reservation: models.Reservation{
				ID:     "r1",
				BookID: "book-1",
				UserID: "user-9",
				Status: models.ReservationActive,
			}}, nil
		},
	}, pusher, nil).Routes()

	recorder := postAction(t, handler, `{"id":"`+validActionID+`","type":"reservation","action":"reserve","data":{"book_id":"book-1","user_id":"user-9"}}`)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", recorder.Code, recorder.Body.String())
	}
	if applied.ID != validActionID || applied.Action != models.ActionReserve {
		t.Fatalf("store received wrong action: %+v", applied)
	}

	var response actionResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if !response.Applied || response.Duplicate {
		t.Fatalf("unexpected response: %+v", response)
	}
	if response.Reservation == nil || response.Reservation.ID != "r1" {
		t.Fatalf("reservation missing from response: %+v", response)
	}

	if len(pusher.sentTo) != 1 || pusher.sentTo[0] != "user-9" {
		t.Fatalf("notification not pushed to acting user: %v", pusher.sentTo)
	}
	if pusher.sent[0].Type != models.NotifySuccess || pusher.sent[0].RelatedID != "r1" {
		t.Fatalf("unexpected notification: %+v", pusher.sent[0])
	}
}

func TestApplyActionDuplicateSkipsPush(t *testing.T) {
	pusher := &fakePusher{}
	handler := NewHandler(fakeStore{
		applyFn: func(ctx context.Context, action models.PendingAction) (store.ApplyResult, error) {
			return store.ApplyResult{Duplicate: true}, nil
		},
	}, pusher, nil).Routes()

	recorder := postAction(t, handler, `{"id":"`+validActionID+`","action":"reserve","data":{}}`)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var response actionResponse
	json.Unmarshal(recorder.Body.Bytes(), &response)
	if !response.Applied || !response.Duplicate {
		t.Fatalf("unexpected response: %+v", response)
	}
	if len(pusher.sent) != 0 {
		t.Fatal("duplicate replay must not push a second notification")
	}
}

func TestApplyActionValidation(t *testing.T) {
	handler := NewHandler(fakeStore{}, &fakePusher{}, nil).Routes()

	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", `{`, http.StatusBadRequest},
		{"missing id", `{"action":"reserve"}`, http.StatusBadRequest},
		{"missing action", `{"id":"` + validActionID + `"}`, http.StatusBadRequest},
		{"non-uuid id", `{"id":"abc","action":"reserve"}`, http.StatusBadRequest},
		{"unknown field", `{"id":"` + validActionID + `","action":"reserve","bogus":1}`, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if recorder := postAction(t, handler, tc.body); recorder.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, recorder.Code)
			}
		})
	}
}

func TestApplyActionErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"book unavailable", store.ErrBookUnavailable, http.StatusConflict},
		{"reservation not found", store.ErrReservationNotFound, http.StatusNotFound},
		{"unknown action", store.ErrUnknownAction, http.StatusBadRequest},
		{"missing field", store.ErrMissingField, http.StatusBadRequest},
		{"internal", context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewHandler(fakeStore{
				applyFn: func(ctx context.Context, action models.PendingAction) (store.ApplyResult, error) {
					return store.ApplyResult{}, tc.err
				},
			}, &fakePusher{}, nil).Routes()

			recorder := postAction(t, handler, `{"id":"`+validActionID+`","action":"reserve","data":{}}`)
			if recorder.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, recorder.Code)
			}
		})
	}
}

func TestActionsMethodNotAllowed(t *testing.T) {
	handler := NewHandler(fakeStore{}, &fakePusher{}, nil).Routes()
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/actions", nil))
	if recorder.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", recorder.Code)
	}
}

func TestListReservations(t *testing.T) {
	handler := NewHandler(fakeStore{
		listFn: func(ctx context.Context, userID string) ([]models.Reservation, error) {
			if userID != "user-9" {
				t.Fatalf("unexpected user: %s", userID)
			}
			return []models.Reservation{{ID: "r1", UserID: userID}}, nil
		},
	}, &fakePusher{}, nil).Routes()

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/reservations?user_id=user-9", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}

	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/reservations", nil))
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without user_id, got %d", recorder.Code)
	}
}
