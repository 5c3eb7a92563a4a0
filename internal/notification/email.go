package notification

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/foliowatch/foliowatch-go/internal/conf"
	"github.com/foliowatch/foliowatch-go/internal/datastore/entities"
)

// smtpSendFunc matches smtp.SendMail, injectable for tests.
type smtpSendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailSender delivers notifications over SMTP.
type EmailSender struct {
	settings *conf.EmailSettings
	send     smtpSendFunc
}

// NewEmailSender creates the SMTP channel sender.
func NewEmailSender(settings *conf.EmailSettings) *EmailSender {
	return &EmailSender{settings: settings, send: smtp.SendMail}
}

// Channel implements Sender.
func (s *EmailSender) Channel() string { return entities.ChannelEmail }

// Send implements Sender.
func (s *EmailSender) Send(_ context.Context, n *entities.Notification) SendResult {
	if n.Recipient == "" || !strings.Contains(n.Recipient, "@") {
		return SendResult{Err: fmt.Errorf("invalid email recipient %q", n.Recipient), Permanent: true}
	}

	from := s.settings.FromAddress
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s <%s>\r\n", s.settings.FromName, from)
	fmt.Fprintf(&msg, "To: %s\r\n", n.Recipient)
	fmt.Fprintf(&msg, "Subject: %s\r\n", n.Subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(n.Message)
	msg.WriteString("\r\n")

	addr := fmt.Sprintf("%s:%d", s.settings.SMTPHost, s.settings.SMTPPort)
	var auth smtp.Auth
	if s.settings.Username != "" {
		auth = smtp.PlainAuth("", s.settings.Username, s.settings.Password, s.settings.SMTPHost)
	}

	if err := s.send(addr, auth, from, []string{n.Recipient}, []byte(msg.String())); err != nil {
		return SendResult{Err: fmt.Errorf("smtp send failed: %w", err)}
	}
	return SendResult{Success: true, Response: fmt.Sprintf("accepted by %s", addr)}
}
