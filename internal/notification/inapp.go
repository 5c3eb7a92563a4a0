package notification

import (
	"context"
	"sync"

	"github.com/foliowatch/foliowatch-go/internal/datastore/entities"
)

// subscriberBuffer is the per-subscriber channel capacity. Slow consumers
// skip broadcasts rather than blocking delivery.
const subscriberBuffer = 16

// InAppSender delivers notifications to the in-app bell: the row is
// already persisted by the dispatcher, so sending means broadcasting to
// any live dashboard subscribers.
type InAppSender struct {
	mu          sync.RWMutex
	subscribers map[string][]chan *entities.Notification
}

// NewInAppSender creates the in-app channel sender.
func NewInAppSender() *InAppSender {
	return &InAppSender{
		subscribers: make(map[string][]chan *entities.Notification),
	}
}

// Channel implements Sender.
func (s *InAppSender) Channel() string { return entities.ChannelInApp }

// Subscribe returns a channel receiving the owner's in-app notifications
// and a cancel function that must be called when the consumer goes away.
func (s *InAppSender) Subscribe(ownerID string) (<-chan *entities.Notification, func()) {
	ch := make(chan *entities.Notification, subscriberBuffer)
	s.mu.Lock()
	s.subscribers[ownerID] = append(s.subscribers[ownerID], ch)
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		subs := s.subscribers[ownerID]
		for i, sub := range subs {
			if sub == ch {
				s.subscribers[ownerID] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
	return ch, cancel
}

// Send implements Sender. Always succeeds: the notification row is the
// durable delivery, the broadcast is best-effort.
func (s *InAppSender) Send(_ context.Context, n *entities.Notification) SendResult {
	s.mu.RLock()
	subs := s.subscribers[n.OwnerID]
	s.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- n:
		default:
			// Subscriber buffer full; drop rather than block delivery.
		}
	}
	return SendResult{Success: true, Response: "stored"}
}
