// Package notification owns delivery: per-channel senders, the preference
// gate, alert fan-out, and the retry engine.
package notification

import (
	"context"
	"sync"

	"github.com/foliowatch/foliowatch-go/internal/datastore/entities"
)

// SendResult reports one delivery attempt. Ordinary delivery failures sit
// in Err with Success false; senders never panic or surface transport
// failures as anything else, so the retry engine can make uniform
// decisions.
type SendResult struct {
	Success bool
	// Response holds provider metadata (message id, status line).
	Response string
	// Err describes the failure when Success is false.
	Err error
	// Permanent marks a failure retrying cannot fix (4xx, bad address).
	Permanent bool
}

// Sender delivers one notification over one channel.
type Sender interface {
	// Channel returns the channel tag this sender serves.
	Channel() string
	Send(ctx context.Context, n *entities.Notification) SendResult
}

// Registry maps channel tags to senders. Adding a channel means
// registering one implementation, not editing a switch.
type Registry struct {
	mu      sync.RWMutex
	senders map[string]Sender
}

// NewRegistry creates an empty sender registry.
func NewRegistry() *Registry {
	return &Registry{senders: make(map[string]Sender)}
}

// Register adds a sender under its channel tag, replacing any previous
// registration.
func (r *Registry) Register(s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[s.Channel()] = s
}

// Lookup returns the sender for a channel tag.
func (r *Registry) Lookup(channel string) (Sender, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.senders[channel]
	return s, ok
}

// Channels returns the registered channel tags.
func (r *Registry) Channels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	channels := make([]string, 0, len(r.senders))
	for c := range r.senders {
		channels = append(channels, c)
	}
	return channels
}
