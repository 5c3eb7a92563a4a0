package repository

import (
	"context"
	"time"

	"github.com/foliowatch/foliowatch-go/internal/datastore/entities"
)

// NotificationRepository handles notification persistence, the sending
// claim, and retry bookkeeping.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *entities.Notification) error
	GetNotification(ctx context.Context, id string) (*entities.Notification, error)
	ListNotifications(ctx context.Context, filter NotificationFilter) ([]entities.Notification, error)
	DeleteNotification(ctx context.Context, id string) error

	// ClaimForSending transitions pending/queued → sending. Returns false
	// if another worker holds the claim or the notification left the
	// sendable states, so no two workers ever process the same
	// notification concurrently.
	ClaimForSending(ctx context.Context, id string) (bool, error)

	// MarkSent records a successful send.
	MarkSent(ctx context.Context, id, providerResponse string, at time.Time) error

	// MarkFailed records a failed attempt, incrementing retry_count.
	MarkFailed(ctx context.Context, id, reason string) error

	// MarkFailedTerminal records a failure no retry can fix (permanent
	// provider rejection, no registered sender). The retry budget is
	// exhausted in the same write so the record reads as terminal and
	// retention cleanup can prune it.
	MarkFailedTerminal(ctx context.Context, id, reason string) error

	// MarkDelivered and MarkBounced record provider callbacks.
	MarkDelivered(ctx context.Context, id string, at time.Time) error
	MarkBounced(ctx context.Context, id, reason string) error

	// RequeueForRetry re-arms a failed notification that still has retry
	// budget: failed → pending with the given next attempt time. Returns
	// false if the notification is terminal or no longer failed.
	RequeueForRetry(ctx context.Context, id string, nextRetryAt time.Time) (bool, error)

	// DuePending returns pending and queued notifications whose
	// next_retry_at has elapsed or is unset, ordered by priority desc
	// then created_at asc.
	// The ordering keeps old low-priority items from starving while
	// letting fresh high-priority items jump ahead.
	DuePending(ctx context.Context, now time.Time, limit int) ([]entities.Notification, error)

	// MarkRead and MarkDismissed track in-app read state.
	MarkRead(ctx context.Context, id string, at time.Time) error
	MarkDismissed(ctx context.Context, id string, at time.Time) error

	// CountForOwnerSince counts notifications created for an owner since
	// the given time. Used by preference rate limiting.
	CountForOwnerSince(ctx context.Context, ownerID string, since time.Time) (int64, error)

	// DeleteTerminalBefore prunes terminal, read-or-dismissed
	// notifications created before the cutoff.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NotificationFilter controls notification listing queries.
type NotificationFilter struct {
	OwnerID string
	AlertID string
	Channel string
	Status  string
	From    time.Time
	To      time.Time
	Limit   int
	Offset  int
}
