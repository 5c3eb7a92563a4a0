package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/foliowatch/foliowatch-go/internal/datastore/entities"
	"github.com/foliowatch/foliowatch-go/internal/datastore/repository"
	"github.com/foliowatch/foliowatch-go/internal/errors"
	"github.com/foliowatch/foliowatch-go/internal/logger"
)

// Signature headers on inbound callbacks, mirroring outbound delivery.
const (
	HeaderEvent     = "X-Webhook-Event"
	HeaderID        = "X-Webhook-Id"
	HeaderSignature = "X-Webhook-Signature"
	HeaderTimestamp = "X-Webhook-Timestamp"
)

// maxCallbackBody caps the accepted callback payload size.
const maxCallbackBody = 1 << 20

// callbackBody is the delivery-status callback shape providers POST back.
type callbackBody struct {
	NotificationID string `json:"notification_id"`
	Status         string `json:"status"` // "delivered" or "bounced"
	Reason         string `json:"reason"`
}

// CallbackServer exposes the signed webhook callback endpoint and the
// Prometheus metrics endpoint.
type CallbackServer struct {
	echo          *echo.Echo
	notifications repository.NotificationRepository
	secret        string
	log           logger.Logger
}

// NewCallbackServer builds the callback HTTP server.
func NewCallbackServer(
	notifications repository.NotificationRepository,
	secret string,
	registry *prometheus.Registry,
	log logger.Logger,
) *CallbackServer {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &CallbackServer{
		echo:          e,
		notifications: notifications,
		secret:        secret,
		log:           log,
	}

	e.POST("/webhooks/callback", s.handleCallback)
	if registry != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}
	return s
}

// Start begins serving on addr. Blocks until the server stops.
func (s *CallbackServer) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown stops the server gracefully.
func (s *CallbackServer) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the underlying handler for tests.
func (s *CallbackServer) Handler() http.Handler {
	return s.echo
}

// handleCallback verifies the callback signature and records the delivery
// outcome on the referenced notification. Signature failures are rejected
// with 401 and never retried.
func (s *CallbackServer) handleCallback(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxCallbackBody))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unreadable body"})
	}

	signature := c.Request().Header.Get(HeaderSignature)
	if !Verify(body, signature, s.secret) {
		s.log.Warn("webhook callback rejected: invalid signature",
			logger.String("webhook_id", c.Request().Header.Get(HeaderID)),
			logger.String("event", c.Request().Header.Get(HeaderEvent)))
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "signature verification failed"})
	}

	var cb callbackBody
	if err := json.Unmarshal(body, &cb); err != nil || cb.NotificationID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid callback body"})
	}

	ctx := c.Request().Context()
	now := time.Now()
	switch cb.Status {
	case entities.NotificationStatusDelivered:
		err = s.notifications.MarkDelivered(ctx, cb.NotificationID, now)
	case entities.NotificationStatusBounced:
		err = s.notifications.MarkBounced(ctx, cb.NotificationID, cb.Reason)
	default:
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown callback status"})
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "unknown notification"})
		}
		s.log.Error("failed to record webhook callback",
			logger.String("notification_id", cb.NotificationID),
			logger.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to record callback"})
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
