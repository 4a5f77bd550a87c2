package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"libreserve/realtime-core/internal/localstore"
	"libreserve/realtime-core/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "agent.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNotificationsRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	timestamp := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	log := []models.Notification{
		{ID: "n2", Type: models.NotifySuccess, Title: "second", Message: "m2", Timestamp: timestamp, Read: false, ActionURL: "/reservations/r1", ActionText: "View", RelatedKind: "reservation", RelatedID: "r1"},
		{ID: "n1", Type: models.NotifyInfo, Title: "first", Message: "m1", Timestamp: timestamp.Add(-time.Hour), Read: true},
	}
	if err := store.SaveNotifications(ctx, "u1", log); err != nil {
		t.Fatalf("save error: %v", err)
	}

	loaded, err := store.LoadNotifications(ctx, "u1")
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("loaded %d records", len(loaded))
	}
	if loaded[0].ID != "n2" || loaded[1].ID != "n1" {
		t.Fatalf("order not preserved: %v", loaded)
	}
	if !loaded[0].Timestamp.Equal(timestamp) {
		t.Fatalf("timestamp mangled: %v", loaded[0].Timestamp)
	}
	if loaded[0].Read || !loaded[1].Read {
		t.Fatal("read flags not preserved")
	}
	if loaded[0].ActionURL != "/reservations/r1" || loaded[0].RelatedID != "r1" {
		t.Fatalf("optional fields lost: %+v", loaded[0])
	}
}

func TestSaveNotificationsReplacesLog(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	store.SaveNotifications(ctx, "u1", []models.Notification{{ID: "n1", Type: "info"}})
	store.SaveNotifications(ctx, "u1", []models.Notification{{ID: "n2", Type: "info"}})

	loaded, _ := store.LoadNotifications(ctx, "u1")
	if len(loaded) != 1 || loaded[0].ID != "n2" {
		t.Fatalf("save did not replace log: %v", loaded)
	}
}

func TestNotificationLogsArePerUser(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	store.SaveNotifications(ctx, "u1", []models.Notification{{ID: "n1", Type: "info"}})
	store.SaveNotifications(ctx, "u2", []models.Notification{{ID: "n2", Type: "info"}})

	loaded, _ := store.LoadNotifications(ctx, "u1")
	if len(loaded) != 1 || loaded[0].ID != "n1" {
		t.Fatalf("user scoping broken: %v", loaded)
	}
}

func TestUpdateActionNotFound(t *testing.T) {
	store := openTestStore(t)
	err := store.UpdateAction(context.Background(), "missing", 1, models.ActionStatusPending)
	if !errors.Is(err, localstore.ErrActionNotFound) {
		t.Fatalf("expected ErrActionNotFound, got %v", err)
	}
}

func TestActionDataRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	action := models.PendingAction{
		ID:        "a1",
		Type:      models.ActionTypeReservation,
		Action:    models.ActionReserve,
		Data:      map[string]any{"book_id": "book-1", "user_id": "u1"},
		CreatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := store.InsertAction(ctx, action); err != nil {
		t.Fatalf("insert error: %v", err)
	}

	actions, err := store.ListActions(ctx, models.ActionStatusPending)
	if err != nil || len(actions) != 1 {
		t.Fatalf("list actions: %v err=%v", actions, err)
	}
	got := actions[0]
	if got.Data["book_id"] != "book-1" || got.Data["user_id"] != "u1" {
		t.Fatalf("data mangled: %v", got.Data)
	}
	if !got.CreatedAt.Equal(action.CreatedAt) {
		t.Fatalf("created_at mangled: %v", got.CreatedAt)
	}
	if got.Status != models.ActionStatusPending {
		t.Fatalf("default status not applied: %q", got.Status)
	}
}
