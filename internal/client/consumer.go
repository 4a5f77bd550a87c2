package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"libreserve/realtime-core/internal/event"
)

// EventAll subscribers receive every event regardless of type.
const EventAll = "all"

const (
	StatusDisconnected = "disconnected"
	StatusConnected    = "connected"
	StatusReconnecting = "reconnecting"
)

type Handler func(event.Event)

type Config struct {
	BaseURL        string
	UserID         string
	ReconnectDelay time.Duration
	HTTPClient     *http.Client
	OnStatus       func(status string)
}

type subscription struct {
	id      int
	handler Handler
}

// Consumer keeps a best-effort stream connection open for one user and fans
// incoming events out to local subscribers. Transport errors trigger a flat
// fixed-delay reconnect until Disconnect is called.
type Consumer struct {
	baseURL        string
	userID         string
	reconnectDelay time.Duration
	httpClient     *http.Client
	onStatus       func(string)

	mu       sync.Mutex
	handlers map[string][]subscription
	nextID   int
	cancel   context.CancelFunc
	status   string
}

func New(cfg Config) *Consumer {
	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = 5 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Consumer{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		userID:         cfg.UserID,
		reconnectDelay: delay,
		httpClient:     httpClient,
		onStatus:       cfg.OnStatus,
		handlers:       make(map[string][]subscription),
		status:         StatusDisconnected,
	}
}

func (c *Consumer) Connect() {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.mu.Unlock()
	go c.run(ctx)
}

// Disconnect cancels the active transport and any pending reconnect. It is
// safe to call more than once.
func (c *Consumer) Disconnect() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	c.setStatus(StatusDisconnected)
}

// Subscribe registers a handler for the given event type and returns a
// function that removes exactly that handler.
func (c *Consumer) Subscribe(eventType string, handler Handler) func() {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.handlers[eventType] = append(c.handlers[eventType], subscription{id: id, handler: handler})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		subs := c.handlers[eventType]
		for i := range subs {
			if subs[i].id == id {
				subs = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		if len(subs) == 0 {
			delete(c.handlers, eventType)
			return
		}
		c.handlers[eventType] = subs
	}
}

// Notify dispatches a locally constructed event to subscribers, bypassing the
// transport.
func (c *Consumer) Notify(eventType string, payload map[string]any) {
	c.dispatch(event.New(eventType, payload))
}

func (c *Consumer) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Consumer) run(ctx context.Context) {
	for {
		err := c.stream(ctx)
		if ctx.Err() != nil {
			return
		}
		log.Printf("stream consumer error user=%s err=%v", c.userID, err)
		c.setStatus(StatusReconnecting)
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.reconnectDelay):
		}
	}
}

func (c *Consumer) stream(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/api/stream?user_id=%s", c.baseURL, url.QueryEscape(c.userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream status %d", resp.StatusCode)
	}

	c.setStatus(StatusConnected)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var data []byte
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if len(data) > 0 {
				c.dispatchRaw(data)
				data = nil
			}
			continue
		}
		if value, ok := strings.CutPrefix(line, "data:"); ok {
			data = append(data, strings.TrimPrefix(value, " ")...)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return errors.New("stream ended")
}

func (c *Consumer) dispatchRaw(data []byte) {
	var e event.Event
	if err := json.Unmarshal(data, &e); err != nil {
		log.Printf("stream consumer bad frame user=%s err=%v", c.userID, err)
		return
	}
	c.dispatch(e)
}

// dispatch invokes handlers synchronously; each handler is isolated so one
// failing cannot block the rest of the same pass.
func (c *Consumer) dispatch(e event.Event) {
	c.mu.Lock()
	subs := make([]subscription, 0, len(c.handlers[e.Type])+len(c.handlers[EventAll]))
	subs = append(subs, c.handlers[e.Type]...)
	if e.Type != EventAll {
		subs = append(subs, c.handlers[EventAll]...)
	}
	c.mu.Unlock()

	for _, sub := range subs {
		invoke(sub.handler, e)
	}
}

func invoke(handler Handler, e event.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("event handler panic type=%s err=%v", e.Type, r)
		}
	}()
	handler(e)
}

func (c *Consumer) setStatus(status string) {
	c.mu.Lock()
	changed := c.status != status
	c.status = status
	hook := c.onStatus
	c.mu.Unlock()
	if changed && hook != nil {
		hook(status)
	}
}
