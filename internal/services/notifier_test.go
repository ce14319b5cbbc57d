package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNotifierDeliversToSubscriber(t *testing.T) {
	n := NewNotifier()
	userID := uuid.New()

	events, cancel := n.Subscribe(userID)
	defer cancel()

	n.Publish(userID, ResourceSubscription)

	select {
	case ev := <-events:
		require.Equal(t, ResourceSubscription, ev.Resource)
	default:
		t.Fatal("expected a published event")
	}
}

func TestNotifierScopesByUser(t *testing.T) {
	n := NewNotifier()
	alice := uuid.New()
	bob := uuid.New()

	aliceEvents, cancelAlice := n.Subscribe(alice)
	defer cancelAlice()
	bobEvents, cancelBob := n.Subscribe(bob)
	defer cancelBob()

	n.Publish(alice, ResourceProfile)

	select {
	case <-bobEvents:
		t.Fatal("event leaked to another user's subscriber")
	default:
	}
	select {
	case <-aliceEvents:
	default:
		t.Fatal("subscriber for the published user got nothing")
	}
}

func TestNotifierCancelClosesChannel(t *testing.T) {
	n := NewNotifier()
	userID := uuid.New()

	events, cancel := n.Subscribe(userID)
	cancel()

	_, open := <-events
	require.False(t, open)

	// Publishing after cancel must not panic or block.
	n.Publish(userID, ResourceOnboarding)
}

func TestNotifierDropsWhenSubscriberIsFull(t *testing.T) {
	n := NewNotifier()
	userID := uuid.New()

	events, cancel := n.Subscribe(userID)
	defer cancel()

	// Overfill the bounded channel; the extra publishes are dropped.
	for i := 0; i < 64; i++ {
		n.Publish(userID, ResourceIntegration)
	}

	received := 0
	for {
		select {
		case <-events:
			received++
			continue
		default:
		}
		break
	}
	require.Greater(t, received, 0)
	require.Less(t, received, 64)
}

func TestNotifierNilReceiverIsNoop(t *testing.T) {
	var n *Notifier
	n.Publish(uuid.New(), ResourceOnboarding)
}
