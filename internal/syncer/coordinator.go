package syncer

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"libreserve/realtime-core/internal/models"
)

var (
	ErrOffline        = errors.New("offline")
	ErrSyncInProgress = errors.New("sync already in progress")
)

type Sender interface {
	Apply(ctx context.Context, action models.PendingAction) error
}

type ActionQueue interface {
	Pending(ctx context.Context) ([]models.PendingAction, error)
	PendingCount(ctx context.Context) (int, error)
	Remove(ctx context.Context, id string) error
	RecordFailure(ctx context.Context, action models.PendingAction) (bool, error)
}

type Result struct {
	Applied      int
	Failed       int
	DeadLettered int
	Remaining    int
}

type Config struct {
	Interval time.Duration
	OnResult func(Result)
}

// Coordinator replays the offline action queue against the server: strictly
// in creation order, one pass at a time, continuing past individual failures.
type Coordinator struct {
	queue    ActionQueue
	sender   Sender
	interval time.Duration
	onResult func(Result)
	online   int32
	syncing  int32
}

func New(queue ActionQueue, sender Sender, cfg Config) *Coordinator {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Coordinator{
		queue:    queue,
		sender:   sender,
		interval: interval,
		onResult: cfg.OnResult,
	}
}

// SetOnline records connectivity; a transition to online triggers a sync pass.
func (c *Coordinator) SetOnline(online bool) {
	var value int32
	if online {
		value = 1
	}
	was := atomic.SwapInt32(&c.online, value)
	if online && was == 0 {
		go func() {
			if _, err := c.SyncNow(context.Background()); err != nil && !errors.Is(err, ErrSyncInProgress) {
				log.Printf("sync on reconnect error: %v", err)
			}
		}()
	}
}

func (c *Coordinator) Online() bool {
	return atomic.LoadInt32(&c.online) == 1
}

// SyncNow runs one sync pass over the current queue snapshot. It is a no-op
// while offline or while another pass is in flight.
func (c *Coordinator) SyncNow(ctx context.Context) (Result, error) {
	if !c.Online() {
		return Result{}, ErrOffline
	}
	if !atomic.CompareAndSwapInt32(&c.syncing, 0, 1) {
		return Result{}, ErrSyncInProgress
	}
	defer atomic.StoreInt32(&c.syncing, 0)

	actions, err := c.queue.Pending(ctx)
	if err != nil {
		return Result{}, err
	}

	var result Result
	for _, action := range actions {
		if err := c.sender.Apply(ctx, action); err != nil {
			log.Printf("sync apply failed action=%s attempts=%d err=%v", action.ID, action.Attempts+1, err)
			result.Failed++
			dead, recordErr := c.queue.RecordFailure(ctx, action)
			if recordErr != nil {
				log.Printf("sync record failure error action=%s err=%v", action.ID, recordErr)
				continue
			}
			if dead {
				log.Printf("sync dead-lettered action=%s", action.ID)
				result.DeadLettered++
			}
			continue
		}
		if err := c.queue.Remove(ctx, action.ID); err != nil {
			log.Printf("sync remove error action=%s err=%v", action.ID, err)
		}
		result.Applied++
	}

	remaining, err := c.queue.PendingCount(ctx)
	if err != nil {
		log.Printf("sync pending count error: %v", err)
	}
	result.Remaining = remaining

	if c.onResult != nil {
		c.onResult(result)
	}
	return result, nil
}

// Run triggers periodic passes while online and the queue is non-empty, until
// the context is cancelled. A pass already underway is left to finish.
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !c.Online() {
				continue
			}
			count, err := c.queue.PendingCount(ctx)
			if err != nil || count == 0 {
				continue
			}
			if _, err := c.SyncNow(ctx); err != nil && !errors.Is(err, ErrSyncInProgress) {
				log.Printf("periodic sync error: %v", err)
			}
		}
	}
}
