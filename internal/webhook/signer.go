// Package webhook builds and verifies signed webhook payloads.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PayloadVersion is the wire version stamped on every outbound payload.
const PayloadVersion = "1"

// signaturePrefix precedes the hex HMAC in the signature header.
const signaturePrefix = "sha256="

// sensitiveKeys are stripped recursively from payload data before signing
// and transmission.
var sensitiveKeys = map[string]struct{}{
	"password": {},
	"token":    {},
	"secret":   {},
	"apikey":   {},
}

// Payload is the signed body POSTed to webhook endpoints.
type Payload struct {
	ID        string         `json:"id"`
	Event     string         `json:"event"`
	Timestamp string         `json:"timestamp"`
	WebhookID string         `json:"webhook_id"`
	Version   string         `json:"version"`
	Data      map[string]any `json:"data"`
}

// BuildPayload assembles a payload with a fresh id, an ISO-8601 timestamp,
// and sanitized data.
func BuildPayload(event, webhookID string, data map[string]any, now time.Time) *Payload {
	return &Payload{
		ID:        uuid.NewString(),
		Event:     event,
		Timestamp: now.UTC().Format(time.RFC3339),
		WebhookID: webhookID,
		Version:   PayloadVersion,
		Data:      Sanitize(data),
	}
}

// Marshal renders the payload to its canonical JSON wire form.
func (p *Payload) Marshal() ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal webhook payload: %w", err)
	}
	return b, nil
}

// Sanitize returns a copy of data with credential-bearing fields
// (password, token, secret, apiKey) removed recursively. The input map is
// never mutated.
func Sanitize(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	clean := make(map[string]any, len(data))
	for k, v := range data {
		if _, sensitive := sensitiveKeys[strings.ToLower(k)]; sensitive {
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			clean[k] = Sanitize(nested)
			continue
		}
		clean[k] = v
	}
	return clean
}

// Sign computes the signature header value for a payload body:
// "sha256=" followed by the hex HMAC-SHA256 of the body under secret.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature header value against a payload body using a
// constant-time comparison. Accepts the signature with or without the
// "sha256=" prefix.
func Verify(payload []byte, signature, secret string) bool {
	if signature == "" {
		return false
	}
	expected := Sign(payload, secret)
	got := signature
	if !strings.HasPrefix(got, signaturePrefix) {
		got = signaturePrefix + got
	}
	return hmac.Equal([]byte(expected), []byte(got))
}
