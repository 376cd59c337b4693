// README: Outbound webhook client for mirroring dispatch events to automation.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookClient posts dispatch events to an external automation endpoint.
// A nil client (no URL configured) disables delivery.
type WebhookClient struct {
	url    string
	client *http.Client
}

func NewWebhookClient(url string, timeoutSeconds int) *WebhookClient {
	if url == "" {
		return nil
	}
	timeout := time.Duration(timeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookClient{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (w *WebhookClient) Send(ctx context.Context, payload DecisionRequest) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
