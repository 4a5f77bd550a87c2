package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"libreserve/realtime-core/internal/models"
)

// HTTPSender replays actions against the server's action endpoint. The server
// dedups by action id, so a retried action that already applied is
// acknowledged rather than reapplied.
type HTTPSender struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSender(baseURL string, client *http.Client) *HTTPSender {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPSender{baseURL: baseURL, client: client}
}

func (s *HTTPSender) Apply(ctx context.Context, action models.PendingAction) error {
	body, err := json.Marshal(action)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/actions", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("apply action %s: status %d", action.ID, resp.StatusCode)
	}
	return nil
}
