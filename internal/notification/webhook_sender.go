package notification

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/foliowatch/foliowatch-go/internal/conf"
	"github.com/foliowatch/foliowatch-go/internal/datastore/entities"
	"github.com/foliowatch/foliowatch-go/internal/webhook"
)

// webhookCallAttempts caps in-call attempts for one Send: the initial
// POST plus up to three retries, separate from the notification's own
// retry budget.
const webhookCallAttempts = 4

// webhookCallBackoff is the base in-call retry delay; retry n waits
// webhookCallBackoff * 2^(n-1), so 1s, 2s, 4s. This policy is
// deliberately independent of the notification retry backoff, which
// works in minutes.
const webhookCallBackoff = 1000 * time.Millisecond

// defaultWebhookTimeout applies when configuration carries none.
const defaultWebhookTimeout = 30 * time.Second

// WebhookSender delivers signed JSON payloads to owner-configured
// endpoints. 4xx responses are client errors and terminal; 5xx and
// network failures are retried inside the call with exponential backoff.
type WebhookSender struct {
	secret string
	client *http.Client
	sleep  func(time.Duration)
}

// NewWebhookSender creates the webhook channel sender.
func NewWebhookSender(settings *conf.WebhookSettings) *WebhookSender {
	timeout := settings.Timeout.Std()
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &WebhookSender{
		secret: settings.Secret,
		client: &http.Client{Timeout: timeout},
		sleep:  time.Sleep,
	}
}

// Channel implements Sender.
func (s *WebhookSender) Channel() string { return entities.ChannelWebhook }

// Send implements Sender.
func (s *WebhookSender) Send(ctx context.Context, n *entities.Notification) SendResult {
	if n.Recipient == "" {
		return SendResult{Err: fmt.Errorf("missing webhook url"), Permanent: true}
	}

	data := map[string]any{
		"notification_id": n.ID,
		"subject":         n.Subject,
		"message":         n.Message,
		"priority":        n.Priority,
	}
	if n.AlertID != nil {
		data["alert_id"] = *n.AlertID
	}
	for k, v := range n.TemplateData {
		data[k] = v
	}

	payload := webhook.BuildPayload("alert.notification", n.ID, data, time.Now())
	body, err := payload.Marshal()
	if err != nil {
		return SendResult{Err: err, Permanent: true}
	}
	signature := webhook.Sign(body, s.secret)

	var lastErr error
	for attempt := 0; attempt < webhookCallAttempts; attempt++ {
		if attempt > 0 {
			delay := webhookCallBackoff * (1 << (attempt - 1))
			select {
			case <-ctx.Done():
				return SendResult{Err: ctx.Err()}
			default:
			}
			s.sleep(delay)
		}

		result, retryable := s.post(ctx, n.Recipient, body, signature, payload)
		if result.Success || !retryable {
			return result
		}
		lastErr = result.Err
	}
	return SendResult{Err: fmt.Errorf("webhook delivery failed after %d attempts: %w", webhookCallAttempts, lastErr)}
}

// post performs a single signed POST. The second return value reports
// whether the failure is worth another in-call attempt.
func (s *WebhookSender) post(ctx context.Context, url string, body []byte, signature string, payload *webhook.Payload) (SendResult, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return SendResult{Err: fmt.Errorf("failed to build webhook request: %w", err), Permanent: true}, false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(webhook.HeaderEvent, payload.Event)
	req.Header.Set(webhook.HeaderID, payload.ID)
	req.Header.Set(webhook.HeaderSignature, signature)
	req.Header.Set(webhook.HeaderTimestamp, payload.Timestamp)

	resp, err := s.client.Do(req)
	if err != nil {
		return SendResult{Err: fmt.Errorf("webhook request failed: %w", err)}, true
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return SendResult{Success: true, Response: fmt.Sprintf("status %d", resp.StatusCode)}, false
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// Client error: retrying the same payload cannot help.
		return SendResult{
			Err:       fmt.Errorf("webhook endpoint rejected payload: status %d", resp.StatusCode),
			Response:  string(respBody),
			Permanent: true,
		}, false
	default:
		return SendResult{
			Err:      fmt.Errorf("webhook endpoint error: status %d", resp.StatusCode),
			Response: string(respBody),
		}, true
	}
}
