// ABOUTME: In-memory fan-out broadcaster for authentication state changes
// ABOUTME: UI layers subscribe for login/logout/expiry events without polling

package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/loreworks/lore-console/internal/storage"
)

const (
	// subscriberBufferSize is the channel buffer for each subscriber.
	subscriberBufferSize = 16
)

// EventType classifies an authentication state change.
type EventType string

const (
	EventLoggedIn  EventType = "logged_in"
	EventLoggedOut EventType = "logged_out"
	EventExpired   EventType = "expired"
	EventRefreshed EventType = "refreshed"
)

// Event is a published authentication state change. User is nil for
// logged_out and expired events.
type Event struct {
	Type   EventType
	Method storage.Method
	User   *UserProfile
}

// Broadcaster provides in-memory pub/sub for session events. Any UI layer
// subscribes; the session core itself stays testable without one attached.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event
	logger      *slog.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[string]chan Event),
		logger:      logger.With("component", "session-events"),
	}
}

// Subscribe registers a subscriber for session events. Returns a channel
// that receives events and a subscription ID for later unsubscription.
// The subscription is automatically cleaned up when ctx is cancelled.
func (b *Broadcaster) Subscribe(ctx context.Context) (<-chan Event, string) {
	subID := uuid.New().String()
	ch := make(chan Event, subscriberBufferSize)

	b.mu.Lock()
	b.subscribers[subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "sub_id", subID)

	// Auto-cleanup on context cancellation
	go func() {
		<-ctx.Done()
		b.Unsubscribe(subID)
	}()

	return ch, subID
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.subscribers[subID]
	if !ok {
		return
	}
	delete(b.subscribers, subID)
	close(ch)

	b.logger.Debug("subscriber removed", "sub_id", subID)
}

// Publish sends an event to all subscribers. Non-blocking: events are
// dropped for subscribers whose channels are full.
func (b *Broadcaster) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for subID, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			b.logger.Warn("dropping event for slow subscriber",
				"sub_id", subID,
				"event_type", string(event.Type))
		}
	}
}
