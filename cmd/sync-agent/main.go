package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"libreserve/realtime-core/internal/client"
	"libreserve/realtime-core/internal/config"
	"libreserve/realtime-core/internal/event"
	"libreserve/realtime-core/internal/localstore/sqlite"
	"libreserve/realtime-core/internal/models"
	"libreserve/realtime-core/internal/notify"
	"libreserve/realtime-core/internal/offline"
	"libreserve/realtime-core/internal/syncer"
)

func main() {
	cfg := config.LoadAgent()
	if cfg.UserID == "" {
		log.Fatal("AGENT_USER_ID is required")
	}

	local, err := sqlite.Open(cfg.DataPath)
	if err != nil {
		log.Fatalf("open local store: %v", err)
	}
	defer local.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifications, err := notify.Open(ctx, cfg.UserID, local, notify.Options{
		Alert: func(n models.Notification) {
			log.Printf("notification type=%s title=%q", n.Type, n.Title)
		},
	})
	if err != nil {
		log.Fatalf("open notification store: %v", err)
	}

	queue := offline.NewQueue(local, offline.Config{MaxAttempts: cfg.MaxSyncAttempts})
	cache := offline.NewCache(local, nil)
	sender := syncer.NewHTTPSender(cfg.ServerURL, nil)
	coordinator := syncer.New(queue, sender, syncer.Config{
		Interval: cfg.SyncInterval,
		OnResult: func(result syncer.Result) {
			log.Printf("sync complete applied=%d failed=%d dead=%d remaining=%d",
				result.Applied, result.Failed, result.DeadLettered, result.Remaining)
		},
	})

	consumer := client.New(client.Config{
		BaseURL:        cfg.ServerURL,
		UserID:         cfg.UserID,
		ReconnectDelay: cfg.ReconnectDelay,
		OnStatus: func(status string) {
			log.Printf("stream status=%s", status)
			coordinator.SetOnline(status == client.StatusConnected)
		},
	})

	ingest := func(e event.Event) {
		n, ok := notificationFromPayload(e.Payload)
		if !ok {
			log.Printf("event without notification payload type=%s", e.Type)
			return
		}
		fresh, err := notifications.Ingest(ctx, n)
		if err != nil {
			log.Printf("store notification error id=%s err=%v", n.ID, err)
		}
		if fresh {
			log.Printf("notification stored id=%s unread=%d", n.ID, notifications.UnreadCount())
		}
	}
	consumer.Subscribe(event.TypeNotification, ingest)
	consumer.Subscribe(event.TypeBroadcast, ingest)
	consumer.Subscribe(client.EventAll, func(e event.Event) {
		if e.Type == event.TypeHeartbeat {
			return
		}
		log.Printf("event received type=%s", e.Type)
	})

	consumer.Connect()
	go coordinator.Run(ctx)
	go cache.RunSweeper(ctx, cfg.SweepInterval)
	go runPruner(ctx, notifications, cfg.PruneInterval, cfg.NotificationTTL)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	consumer.Disconnect()
	cancel()
}

func runPruner(ctx context.Context, notifications *notify.Store, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := notifications.PruneOlderThan(ctx, ttl)
			if err != nil {
				log.Printf("prune error: %v", err)
				continue
			}
			if removed > 0 {
				log.Printf("pruned notifications removed=%d", removed)
			}
		}
	}
}

func notificationFromPayload(payload map[string]any) (models.Notification, bool) {
	raw, ok := payload["notification"]
	if !ok {
		return models.Notification{}, false
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return models.Notification{}, false
	}
	var n models.Notification
	if err := json.Unmarshal(encoded, &n); err != nil || n.ID == "" {
		return models.Notification{}, false
	}
	return n, true
}
