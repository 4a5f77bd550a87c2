package registry

import (
	"log"
	"sync"

	"libreserve/realtime-core/internal/event"
)

type Handle interface {
	WriteEvent(e event.Event) error
	Close() error
}

type Conn struct {
	userID        string
	handle        Handle
	stopHeartbeat func()
	done          chan struct{}
	releaseOnce   sync.Once
}

func (c *Conn) UserID() string {
	return c.userID
}

// Done is closed once the connection has been removed from the registry,
// whether by replacement, send failure, or explicit removal.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) release() {
	c.releaseOnce.Do(func() {
		if c.stopHeartbeat != nil {
			c.stopHeartbeat()
		}
		_ = c.handle.Close()
		close(c.done)
	})
}

type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Conn
}

func New() *Registry {
	return &Registry{conns: make(map[string]*Conn)}
}

// Register records the connection for the user, replacing and closing any
// prior connection held under the same user identifier.
func (r *Registry) Register(userID string, handle Handle, stopHeartbeat func()) *Conn {
	conn := &Conn{
		userID:        userID,
		handle:        handle,
		stopHeartbeat: stopHeartbeat,
		done:          make(chan struct{}),
	}
	r.mu.Lock()
	prior := r.conns[userID]
	r.conns[userID] = conn
	r.mu.Unlock()
	if prior != nil {
		prior.release()
	}
	return conn
}

func (r *Registry) Unregister(userID string) {
	r.mu.Lock()
	conn := r.conns[userID]
	delete(r.conns, userID)
	r.mu.Unlock()
	if conn != nil {
		conn.release()
	}
}

// Drop removes the connection only if it is still the current one for its
// user, so a handler cleaning up after replacement cannot evict its successor.
func (r *Registry) Drop(conn *Conn) {
	r.mu.Lock()
	if r.conns[conn.userID] == conn {
		delete(r.conns, conn.userID)
	}
	r.mu.Unlock()
	conn.release()
}

func (r *Registry) Send(userID string, e event.Event) bool {
	r.mu.RLock()
	conn := r.conns[userID]
	r.mu.RUnlock()
	if conn == nil {
		return false
	}
	if err := conn.handle.WriteEvent(e); err != nil {
		log.Printf("registry send failed user=%s type=%s err=%v", userID, e.Type, err)
		r.Drop(conn)
		return false
	}
	return true
}

func (r *Registry) Broadcast(e event.Event) {
	r.mu.RLock()
	conns := make([]*Conn, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	r.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.handle.WriteEvent(e); err != nil {
			log.Printf("registry broadcast drop user=%s err=%v", conn.userID, err)
			r.Drop(conn)
		}
	}
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (r *Registry) CloseAll() {
	r.mu.Lock()
	conns := make([]*Conn, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	r.conns = make(map[string]*Conn)
	r.mu.Unlock()
	for _, conn := range conns {
		conn.release()
	}
}
