package stream

import (
	"expvar"
	"log"
	"net/http"
	"strings"
	"time"

	"libreserve/realtime-core/internal/event"
	"libreserve/realtime-core/internal/models"
	"libreserve/realtime-core/internal/registry"
)

var (
	streamsOpened   = expvar.NewInt("streams_opened_total")
	streamsClosed   = expvar.NewInt("streams_closed_total")
	eventsDelivered = expvar.NewInt("stream_events_delivered_total")
)

type Server struct {
	registry  *registry.Registry
	heartbeat time.Duration
}

func NewServer(reg *registry.Registry, heartbeat time.Duration) *Server {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &Server{registry: reg, heartbeat: heartbeat}
}

func (s *Server) HandleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	handle := newStreamHandle(w, flusher)
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	conn := s.registry.Register(userID, handle, ticker.Stop)
	streamsOpened.Add(1)
	defer streamsClosed.Add(1)
	log.Printf("stream open user=%s", userID)

	s.registry.Send(userID, event.New(event.TypeConnected, map[string]any{
		"user_id": userID,
		"message": "stream established",
	}))

	for {
		select {
		case <-r.Context().Done():
			s.registry.Drop(conn)
			log.Printf("stream closed by client user=%s", userID)
			return
		case <-conn.Done():
			log.Printf("stream released user=%s", userID)
			return
		case <-ticker.C:
			if !s.registry.Send(userID, event.New(event.TypeHeartbeat, nil)) {
				return
			}
		}
	}
}

// SendNotificationToUser pushes a notification event to the user's stream.
// It reports whether the user had a live connection and the write succeeded;
// there is no retry here, the client's local store is the durable record.
func (s *Server) SendNotificationToUser(userID string, n models.Notification) bool {
	ok := s.registry.Send(userID, event.New(event.TypeNotification, map[string]any{
		"notification": n,
	}))
	if ok {
		eventsDelivered.Add(1)
	}
	return ok
}

func (s *Server) BroadcastNotification(n models.Notification) {
	s.registry.Broadcast(event.New(event.TypeBroadcast, map[string]any{
		"notification": n,
	}))
	eventsDelivered.Add(1)
}
