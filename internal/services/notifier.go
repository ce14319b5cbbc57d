package services

import (
	"sync"

	"github.com/cultivatehq/backend/pkg/logger"
	"github.com/google/uuid"
)

// Resource names used in change-notification events.
const (
	ResourceOnboarding   = "onboarding_state"
	ResourceSubscription = "subscription"
	ResourceProfile      = "user"
	ResourceIntegration  = "user_integration"
)

// Event tells a subscribed client that one of its rows changed and its cache
// should be refetched. It carries no payload: the server stays authoritative
// and the client re-reads through the normal API.
type Event struct {
	Resource string `json:"resource"`
}

// Notifier is an in-process observer hub keyed by user id. Delivery is
// best-effort: channels are bounded and events for a slow subscriber are
// dropped, never queued unboundedly. It is a cache hint, not a correctness
// mechanism.
type Notifier struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]map[int]chan Event
	next int
}

func NewNotifier() *Notifier {
	return &Notifier{subs: map[uuid.UUID]map[int]chan Event{}}
}

// Subscribe registers an observer for one user's rows. The returned cancel
// function must be called on request teardown.
func (n *Notifier) Subscribe(userID uuid.UUID) (<-chan Event, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	ch := make(chan Event, 16)
	if n.subs[userID] == nil {
		n.subs[userID] = map[int]chan Event{}
	}
	id := n.next
	n.next++
	n.subs[userID][id] = ch

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if chans, ok := n.subs[userID]; ok {
			if c, ok := chans[id]; ok {
				delete(chans, id)
				close(c)
			}
			if len(chans) == 0 {
				delete(n.subs, userID)
			}
		}
	}
	return ch, cancel
}

// Publish notifies every subscriber of userID that resource changed.
func (n *Notifier) Publish(userID uuid.UUID, resource string) {
	if n == nil {
		return
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	for _, ch := range n.subs[userID] {
		select {
		case ch <- Event{Resource: resource}:
		default:
			logger.Warn("notifier_event_dropped", map[string]interface{}{
				"user_id":  userID.String(),
				"resource": resource,
			})
		}
	}
}
