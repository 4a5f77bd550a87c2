package event

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

const (
	TypeConnected    = "connected"
	TypeHeartbeat    = "heartbeat"
	TypeNotification = "notification"
	TypeBroadcast    = "broadcast"
)

type Event struct {
	Type      string
	Payload   map[string]any
	Timestamp time.Time
}

func New(eventType string, payload map[string]any) Event {
	return Event{Type: eventType, Payload: payload, Timestamp: time.Now().UTC()}
}

func (e Event) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Payload)+2)
	for key, value := range e.Payload {
		out[key] = value
	}
	out["type"] = e.Type
	out["timestamp"] = e.Timestamp.UTC().Format(time.RFC3339)
	return json.Marshal(out)
}

func (e *Event) UnmarshalJSON(data []byte) error {
	fields := map[string]any{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	eventType, _ := fields["type"].(string)
	if eventType == "" {
		return fmt.Errorf("event missing type")
	}
	delete(fields, "type")

	var timestamp time.Time
	if raw, ok := fields["timestamp"].(string); ok {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err == nil {
			timestamp = parsed
		}
		delete(fields, "timestamp")
	}

	e.Type = eventType
	e.Payload = fields
	e.Timestamp = timestamp
	return nil
}

// WriteFrame writes the event as a single server-sent-events frame:
// a "data:" line holding the JSON body, terminated by a blank line.
func WriteFrame(w io.Writer, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", body)
	return err
}
