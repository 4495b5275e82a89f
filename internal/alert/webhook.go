package alert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"netshield-detector/internal/aggregator"

	"github.com/sirupsen/logrus"
)

// WebhookNotifier POSTs notifications as JSON to a configured URL. It backs
// the dashboard's generic webhook channel.
type WebhookNotifier struct {
	url     string
	enabled bool
	client  *http.Client
	logger  *logrus.Logger
}

func NewWebhookNotifier(url string, enabled bool, logger *logrus.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:     url,
		enabled: enabled && url != "",
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger,
	}
}

func (wn *WebhookNotifier) IsEnabled() bool {
	return wn.enabled
}

func (wn *WebhookNotifier) Send(notification aggregator.Notification) error {
	if !wn.enabled {
		return nil
	}

	body, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %v", err)
	}

	resp, err := wn.client.Post(wn.url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to post webhook: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
