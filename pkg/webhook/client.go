// Package webhook delivers session events to HTTP consumers. Each
// delivery is a signed JSON POST; the signature lets consumers verify the
// payload came from this process.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"

	"github.com/harun/wabridge/internal/metrics"
	"github.com/harun/wabridge/pkg/waclient"
)

const (
	headerSignature  = "X-Hub-Signature-256"
	headerDeliveryID = "X-Delivery-Id"
	headerSessionID  = "X-Session-Id"
)

// payload is the delivery body.
type payload struct {
	DataType  string `json:"dataType"`
	SessionID string `json:"sessionId"`
	Data      any    `json:"data"`
}

// Client posts session events to webhook targets.
type Client struct {
	httpClient *http.Client
	secret     string
	metrics    *metrics.Metrics
}

// NewClient creates a webhook client. secret may be empty; deliveries are
// then unsigned. A zero timeout falls back to ten seconds.
func NewClient(secret string, timeout time.Duration, mx *metrics.Metrics) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		secret:     secret,
		metrics:    mx,
	}
}

// Deliver posts one event to url. Non-2xx responses are errors.
func (c *Client) Deliver(ctx context.Context, url, sessionID string, kind waclient.EventKind, data any) error {
	body, err := json.Marshal(payload{
		DataType:  string(kind),
		SessionID: sessionID,
		Data:      data,
	})
	if err != nil {
		c.count("error")
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		c.count("error")
		return fmt.Errorf("failed to build webhook request: %w", err)
	}

	deliveryID, err := gonanoid.New()
	if err != nil {
		return fmt.Errorf("failed to generate delivery id: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerDeliveryID, deliveryID)
	req.Header.Set(headerSessionID, sessionID)
	if c.secret != "" {
		req.Header.Set(headerSignature, computeHMACSHA256(body, c.secret))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.count("error")
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.count("error")
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	c.count("ok")
	log.Debug().
		Str("sessionId", sessionID).
		Str("event", string(kind)).
		Str("deliveryId", deliveryID).
		Msg("Webhook delivered")
	return nil
}

func (c *Client) count(status string) {
	if c.metrics != nil {
		c.metrics.WebhookDeliveriesTotal.WithLabelValues(status).Inc()
	}
}
