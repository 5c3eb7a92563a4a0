package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/foliowatch/foliowatch-go/internal/conf"
	"github.com/foliowatch/foliowatch-go/internal/datastore/entities"
)

// smsTimeout bounds one provider API call.
const smsTimeout = 15 * time.Second

// smsMaxLength truncates messages to one concatenated-SMS budget.
const smsMaxLength = 320

// SMSSender delivers notifications through an SMS provider's HTTP API.
type SMSSender struct {
	settings *conf.SMSSettings
	client   *http.Client
}

// NewSMSSender creates the SMS channel sender.
func NewSMSSender(settings *conf.SMSSettings) *SMSSender {
	return &SMSSender{
		settings: settings,
		client:   &http.Client{Timeout: smsTimeout},
	}
}

// Channel implements Sender.
func (s *SMSSender) Channel() string { return entities.ChannelSMS }

// Send implements Sender.
func (s *SMSSender) Send(ctx context.Context, n *entities.Notification) SendResult {
	if n.Recipient == "" {
		return SendResult{Err: fmt.Errorf("missing sms recipient"), Permanent: true}
	}

	text := n.Message
	if len(text) > smsMaxLength {
		text = text[:smsMaxLength]
	}
	body, err := json.Marshal(map[string]string{
		"to":   n.Recipient,
		"from": s.settings.FromNumber,
		"text": text,
	})
	if err != nil {
		return SendResult{Err: fmt.Errorf("failed to marshal sms request: %w", err), Permanent: true}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.settings.APIURL, bytes.NewReader(body))
	if err != nil {
		return SendResult{Err: fmt.Errorf("failed to build sms request: %w", err), Permanent: true}
	}
	req.Header.Set("Content-Type", "application/json")
	if s.settings.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.settings.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return SendResult{Err: fmt.Errorf("sms provider request failed: %w", err)}
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return SendResult{Success: true, Response: string(respBody)}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return SendResult{
			Err:       fmt.Errorf("sms provider rejected request: status %d", resp.StatusCode),
			Response:  string(respBody),
			Permanent: true,
		}
	default:
		return SendResult{
			Err:      fmt.Errorf("sms provider error: status %d", resp.StatusCode),
			Response: string(respBody),
		}
	}
}
