package notification

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foliowatch/foliowatch-go/internal/conf"
	"github.com/foliowatch/foliowatch-go/internal/datastore/entities"
	"github.com/foliowatch/foliowatch-go/internal/webhook"
)

const testWebhookURL = "https://hooks.example.com/alerts"

func newTestWebhookSender(t *testing.T) *WebhookSender {
	t.Helper()
	s := NewWebhookSender(&conf.WebhookSettings{Secret: "test-secret"})
	s.sleep = func(time.Duration) {}
	httpmock.ActivateNonDefault(s.client)
	t.Cleanup(httpmock.DeactivateAndReset)
	return s
}

func webhookNotification() *entities.Notification {
	alertID := "alert-1"
	return &entities.Notification{
		ID:        "n-1",
		OwnerID:   "owner-1",
		AlertID:   &alertID,
		Channel:   entities.ChannelWebhook,
		Subject:   "Alert: AAPL",
		Message:   "AAPL rose above 150.00",
		Recipient: testWebhookURL,
		Priority:  entities.PriorityMedium,
	}
}

func TestWebhookSender_SignedDelivery(t *testing.T) {
	s := newTestWebhookSender(t)

	var gotBody []byte
	var gotSignature, gotEvent, gotID string
	httpmock.RegisterResponder(http.MethodPost, testWebhookURL,
		func(req *http.Request) (*http.Response, error) {
			var err error
			gotBody, err = io.ReadAll(req.Body)
			if err != nil {
				return nil, err
			}
			gotSignature = req.Header.Get(webhook.HeaderSignature)
			gotEvent = req.Header.Get(webhook.HeaderEvent)
			gotID = req.Header.Get(webhook.HeaderID)
			return httpmock.NewStringResponse(http.StatusOK, `{"ok":true}`), nil
		})

	result := s.Send(t.Context(), webhookNotification())
	require.True(t, result.Success, "send failed: %v", result.Err)
	assert.Equal(t, "status 200", result.Response)

	assert.Equal(t, "alert.notification", gotEvent)
	assert.NotEmpty(t, gotID)
	assert.True(t, webhook.Verify(gotBody, gotSignature, "test-secret"),
		"delivered body must verify against its signature header")

	var payload webhook.Payload
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, webhook.PayloadVersion, payload.Version)
	assert.Equal(t, "n-1", payload.Data["notification_id"])
	assert.Equal(t, "alert-1", payload.Data["alert_id"])
}

func TestWebhookSender_ClientErrorIsPermanent(t *testing.T) {
	s := newTestWebhookSender(t)

	httpmock.RegisterResponder(http.MethodPost, testWebhookURL,
		httpmock.NewStringResponder(http.StatusGone, "endpoint removed"))

	result := s.Send(t.Context(), webhookNotification())
	assert.False(t, result.Success)
	assert.True(t, result.Permanent, "4xx must not be retried")
	assert.Equal(t, 1, httpmock.GetTotalCallCount(), "no in-call retries on 4xx")
}

func TestWebhookSender_ServerErrorRetriesInCall(t *testing.T) {
	s := newTestWebhookSender(t)

	calls := 0
	httpmock.RegisterResponder(http.MethodPost, testWebhookURL,
		func(*http.Request) (*http.Response, error) {
			calls++
			if calls < 3 {
				return httpmock.NewStringResponse(http.StatusBadGateway, "upstream down"), nil
			}
			return httpmock.NewStringResponse(http.StatusOK, "ok"), nil
		})

	result := s.Send(t.Context(), webhookNotification())
	assert.True(t, result.Success, "send failed: %v", result.Err)
	assert.Equal(t, 3, calls)
}

func TestWebhookSender_ExhaustsInCallAttempts(t *testing.T) {
	s := newTestWebhookSender(t)

	httpmock.RegisterResponder(http.MethodPost, testWebhookURL,
		httpmock.NewStringResponder(http.StatusServiceUnavailable, "down"))

	result := s.Send(t.Context(), webhookNotification())
	assert.False(t, result.Success)
	assert.False(t, result.Permanent, "5xx exhaustion stays retryable for the outer engine")
	assert.Equal(t, webhookCallAttempts, httpmock.GetTotalCallCount())
}

func TestWebhookSender_RetryBackoffSchedule(t *testing.T) {
	s := newTestWebhookSender(t)

	var delays []time.Duration
	s.sleep = func(d time.Duration) { delays = append(delays, d) }

	httpmock.RegisterResponder(http.MethodPost, testWebhookURL,
		httpmock.NewStringResponder(http.StatusServiceUnavailable, "down"))

	s.Send(t.Context(), webhookNotification())
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}, delays)
}

func TestWebhookSender_MissingURLIsPermanent(t *testing.T) {
	s := newTestWebhookSender(t)

	n := webhookNotification()
	n.Recipient = ""
	result := s.Send(t.Context(), n)
	assert.False(t, result.Success)
	assert.True(t, result.Permanent)
}
