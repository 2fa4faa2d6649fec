package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHub_DeliversToConnectedClient(t *testing.T) {
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := NewClient(hub, nil, "user-1", zap.NewNop())
	hub.register <- client

	hub.BroadcastSubscriptionUpdated("user-1", map[string]interface{}{"gateway": "free"})

	require.Eventually(t, func() bool {
		// slot 0 is the connected event sent on registration
		return len(client.send) == 2
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, hub.ConnectedClients("user-1"))
}

func TestHub_SlowClientDroppedWithoutStallingHub(t *testing.T) {
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	slow := NewClient(hub, nil, "user-1", zap.NewNop())
	hub.register <- slow

	// Fill the buffer with nothing draining it.
	for i := 0; i < cap(slow.send); i++ {
		slow.Send(NewEvent(EventSubscriptionUpdated, nil))
	}
	hub.BroadcastSubscriptionUpdated("user-1", map[string]interface{}{"gateway": "free"})

	// The hub must keep accepting registrations afterwards.
	next := NewClient(hub, nil, "user-2", zap.NewNop())
	registered := make(chan struct{})
	go func() {
		hub.register <- next
		close(registered)
	}()
	select {
	case <-registered:
	case <-time.After(2 * time.Second):
		t.Fatal("hub stopped accepting registrations after a slow client")
	}

	require.Eventually(t, func() bool {
		return hub.ConnectedClients("user-1") == 0
	}, time.Second, 10*time.Millisecond, "slow client should be dropped")
	assert.Equal(t, 1, hub.ConnectedClients("user-2"))
}

func TestClient_SendAfterCloseDoesNotPanic(t *testing.T) {
	hub := NewHub(zap.NewNop())
	client := NewClient(hub, nil, "user-1", zap.NewNop())

	client.Close()
	assert.NotPanics(t, func() {
		client.Send(NewEvent(EventPong, nil))
	})
}

func TestClient_ConcurrentSendDuringClose(t *testing.T) {
	hub := NewHub(zap.NewNop())
	client := NewClient(hub, nil, "user-1", zap.NewNop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			client.Send(NewEvent(EventPong, nil))
			// keep the buffer from staying full so sends exercise
			// both select arms
			select {
			case <-client.send:
			default:
			}
		}
	}()
	client.Close()
	<-done
}
