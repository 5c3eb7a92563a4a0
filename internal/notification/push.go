package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/foliowatch/foliowatch-go/internal/conf"
	"github.com/foliowatch/foliowatch-go/internal/datastore/entities"
)

// PushSender delivers notifications through a shoutrrr push provider
// (ntfy, gotify, pushover and similar, one URL scheme per provider).
type PushSender struct {
	settings *conf.PushSettings
}

// NewPushSender creates the push channel sender.
func NewPushSender(settings *conf.PushSettings) *PushSender {
	return &PushSender{settings: settings}
}

// Channel implements Sender.
func (s *PushSender) Channel() string { return entities.ChannelPush }

// serviceURL resolves the shoutrrr URL for a notification. A recipient
// that is itself a service URL wins; otherwise the recipient token is
// substituted into the configured template.
func (s *PushSender) serviceURL(n *entities.Notification) (string, error) {
	if strings.Contains(n.Recipient, "://") {
		return n.Recipient, nil
	}
	if s.settings.ServiceURL == "" {
		return "", fmt.Errorf("push service URL not configured")
	}
	if strings.Contains(s.settings.ServiceURL, "{token}") {
		return strings.ReplaceAll(s.settings.ServiceURL, "{token}", n.Recipient), nil
	}
	return s.settings.ServiceURL, nil
}

// Send implements Sender.
func (s *PushSender) Send(_ context.Context, n *entities.Notification) SendResult {
	url, err := s.serviceURL(n)
	if err != nil {
		return SendResult{Err: err, Permanent: true}
	}

	sender, err := shoutrrr.CreateSender(url)
	if err != nil {
		return SendResult{Err: fmt.Errorf("invalid push service URL: %w", err), Permanent: true}
	}

	params := &types.Params{"title": n.Subject}
	errs := sender.Send(n.Message, params)
	for _, sendErr := range errs {
		if sendErr != nil {
			return SendResult{Err: fmt.Errorf("push send failed: %w", sendErr)}
		}
	}
	return SendResult{Success: true, Response: "push accepted"}
}
