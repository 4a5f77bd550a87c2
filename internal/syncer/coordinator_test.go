package syncer

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"libreserve/realtime-core/internal/localstore/sqlite"
	"libreserve/realtime-core/internal/models"
	"libreserve/realtime-core/internal/offline"
)

type fakeSender struct {
	mu      sync.Mutex
	applied []string
	failIDs map[string]bool
	failAll bool
	started chan struct{}
	release chan struct{}
}

func (s *fakeSender) Apply(ctx context.Context, action models.PendingAction) error {
	if s.started != nil {
		s.started <- struct{}{}
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll || s.failIDs[action.ID] {
		return errors.New("server rejected action")
	}
	s.applied = append(s.applied, action.ID)
	return nil
}

func (s *fakeSender) appliedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.applied))
	copy(out, s.applied)
	return out
}

func newTestQueue(t *testing.T, maxAttempts int) *offline.Queue {
	t.Helper()
	local, err := sqlite.Open(filepath.Join(t.TempDir(), "agent.db"))
	if err != nil {
		t.Fatalf("open local store: %v", err)
	}
	t.Cleanup(func() { local.Close() })
	return offline.NewQueue(local, offline.Config{MaxAttempts: maxAttempts})
}

func onlineCoordinator(t *testing.T, queue *offline.Queue, sender Sender) (*Coordinator, chan Result) {
	t.Helper()
	results := make(chan Result, 8)
	c := New(queue, sender, Config{OnResult: func(r Result) { results <- r }})
	c.SetOnline(true)
	select {
	case <-results:
	case <-time.After(2 * time.Second):
		t.Fatal("initial sync pass never finished")
	}
	return c, results
}

func TestSyncAppliesInCreationOrder(t *testing.T) {
	queue := newTestQueue(t, 0)
	sender := &fakeSender{}
	c, _ := onlineCoordinator(t, queue, sender)
	ctx := context.Background()

	a, _ := queue.Enqueue(ctx, models.ActionTypeReservation, models.ActionReserve, nil)
	b, _ := queue.Enqueue(ctx, models.ActionTypeReservation, models.ActionCancel, nil)
	d, _ := queue.Enqueue(ctx, models.ActionTypeReturn, models.ActionReturn, nil)

	result, err := c.SyncNow(ctx)
	if err != nil {
		t.Fatalf("sync error: %v", err)
	}
	if result.Applied != 3 || result.Failed != 0 || result.Remaining != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}

	want := []string{a.ID, b.ID, d.ID}
	got := sender.appliedIDs()
	if len(got) != 3 {
		t.Fatalf("applied %d actions", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("replay order broken at %d: got %s want %s", i, got[i], want[i])
		}
	}
}

func TestPartialFailureContinuesThroughQueue(t *testing.T) {
	queue := newTestQueue(t, 0)
	ctx := context.Background()

	a, _ := queue.Enqueue(ctx, models.ActionTypeReservation, models.ActionReserve, nil)
	b, _ := queue.Enqueue(ctx, models.ActionTypeReservation, models.ActionCancel, nil)
	d, _ := queue.Enqueue(ctx, models.ActionTypeReturn, models.ActionReturn, nil)

	sender := &fakeSender{failIDs: map[string]bool{b.ID: true}}
	c, _ := onlineCoordinator(t, queue, sender)

	result, err := c.SyncNow(ctx)
	if err != nil {
		t.Fatalf("sync error: %v", err)
	}
	if result.Applied != 2 || result.Failed != 1 || result.Remaining != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}

	pending, _ := queue.Pending(ctx)
	if len(pending) != 1 || pending[0].ID != b.ID {
		t.Fatalf("queue should contain exactly the rejected action: %v", pending)
	}
	got := sender.appliedIDs()
	if len(got) != 2 || got[0] != a.ID || got[1] != d.ID {
		t.Fatalf("unexpected applied set: %v", got)
	}
}

func TestSyncNowOfflineIsNoOp(t *testing.T) {
	queue := newTestQueue(t, 0)
	sender := &fakeSender{}
	c := New(queue, sender, Config{})

	queue.Enqueue(context.Background(), models.ActionTypeReservation, models.ActionReserve, nil)

	if _, err := c.SyncNow(context.Background()); !errors.Is(err, ErrOffline) {
		t.Fatalf("expected ErrOffline, got %v", err)
	}
	if len(sender.appliedIDs()) != 0 {
		t.Fatal("offline sync touched the server")
	}
}

func TestSyncNowSingleFlight(t *testing.T) {
	queue := newTestQueue(t, 0)
	sender := &fakeSender{started: make(chan struct{}, 1), release: make(chan struct{})}
	c, _ := onlineCoordinator(t, queue, sender)
	ctx := context.Background()

	queue.Enqueue(ctx, models.ActionTypeReservation, models.ActionReserve, nil)

	done := make(chan struct{})
	go func() {
		c.SyncNow(ctx)
		close(done)
	}()

	select {
	case <-sender.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first pass never reached the sender")
	}

	if _, err := c.SyncNow(ctx); !errors.Is(err, ErrSyncInProgress) {
		t.Fatalf("expected ErrSyncInProgress, got %v", err)
	}

	close(sender.release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("first pass never finished")
	}
}

func TestDeadLetterAfterAttemptCap(t *testing.T) {
	queue := newTestQueue(t, 2)
	sender := &fakeSender{failAll: true}
	c, _ := onlineCoordinator(t, queue, sender)
	ctx := context.Background()

	action, _ := queue.Enqueue(ctx, models.ActionTypeReservation, models.ActionReserve, nil)

	first, _ := c.SyncNow(ctx)
	if first.DeadLettered != 0 || first.Remaining != 1 {
		t.Fatalf("unexpected first result: %+v", first)
	}
	second, _ := c.SyncNow(ctx)
	if second.DeadLettered != 1 || second.Remaining != 0 {
		t.Fatalf("unexpected second result: %+v", second)
	}

	letters, _ := queue.DeadLettered(ctx)
	if len(letters) != 1 || letters[0].ID != action.ID {
		t.Fatalf("dead letter not observable: %v", letters)
	}
}

func TestOnlineTransitionDrainsQueue(t *testing.T) {
	queue := newTestQueue(t, 0)
	sender := &fakeSender{}
	results := make(chan Result, 8)
	c := New(queue, sender, Config{OnResult: func(r Result) { results <- r }})
	ctx := context.Background()

	queue.Enqueue(ctx, models.ActionTypeReservation, models.ActionReserve, map[string]any{
		"book_id": "book-1",
		"user_id": "user-9",
	})
	if count, _ := queue.PendingCount(ctx); count != 1 {
		t.Fatalf("pending count = %d before reconnect", count)
	}

	c.SetOnline(true)

	select {
	case result := <-results:
		if result.Applied != 1 || result.Remaining != 0 {
			t.Fatalf("unexpected result: %+v", result)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reconnect did not trigger a sync pass")
	}
	if count, _ := queue.PendingCount(ctx); count != 0 {
		t.Fatalf("pending count = %d after sync", count)
	}

	// Going offline and online again replays nothing new.
	c.SetOnline(false)
	c.SetOnline(true)
	select {
	case result := <-results:
		if result.Applied != 0 {
			t.Fatalf("unexpected replay: %+v", result)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second transition did not run a pass")
	}
}
