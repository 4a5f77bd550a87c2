package stream

import (
	"errors"
	"net/http"
	"sync"

	"libreserve/realtime-core/internal/event"
)

var errHandleClosed = errors.New("stream handle closed")

// streamHandle serializes frame writes to one client response. Close only
// marks the handle dead; the HTTP handler goroutine owns the response and
// finishes it when the registry releases the connection.
type streamHandle struct {
	mu      sync.Mutex
	writer  http.ResponseWriter
	flusher http.Flusher
	closed  bool
}

func newStreamHandle(w http.ResponseWriter, flusher http.Flusher) *streamHandle {
	return &streamHandle{writer: w, flusher: flusher}
}

func (h *streamHandle) WriteEvent(e event.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errHandleClosed
	}
	if err := event.WriteFrame(h.writer, e); err != nil {
		return err
	}
	h.flusher.Flush()
	return nil
}

func (h *streamHandle) Close() error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	return nil
}
