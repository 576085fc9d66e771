// File: internal/push/hub_test.go
package push

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHub(buffer int) *Hub {
	return NewHub(buffer, zap.NewNop())
}

func TestHub_EmitToUser(t *testing.T) {
	hub := newTestHub(4)
	defer hub.Close()

	userID := uuid.New()
	otherID := uuid.New()

	sub := hub.Subscribe(userID)
	defer sub.Close()
	other := hub.Subscribe(otherID)
	defer other.Close()

	hub.EmitToUser(userID, EventNewNotification, map[string]interface{}{"unreadCount": 1})

	ev := <-sub.C
	assert.Equal(t, EventNewNotification, ev.Name)

	select {
	case ev := <-other.C:
		t.Fatalf("unexpected event for other user: %v", ev)
	default:
	}
}

func TestHub_MultipleSubscriptionsPerUser(t *testing.T) {
	hub := newTestHub(4)
	defer hub.Close()

	userID := uuid.New()
	tab1 := hub.Subscribe(userID)
	defer tab1.Close()
	tab2 := hub.Subscribe(userID)
	defer tab2.Close()

	hub.EmitToUser(userID, EventAllNotificationsRead, nil)

	ev1 := <-tab1.C
	ev2 := <-tab2.C
	assert.Equal(t, EventAllNotificationsRead, ev1.Name)
	assert.Equal(t, EventAllNotificationsRead, ev2.Name)
}

func TestHub_EmitToRoom(t *testing.T) {
	hub := newTestHub(4)
	defer hub.Close()

	sub := hub.SubscribeRoom(AdminRoom)
	defer sub.Close()

	hub.EmitToRoom(AdminRoom, EventNewNotification, "payload")

	ev := <-sub.C
	assert.Equal(t, EventNewNotification, ev.Name)
	assert.Equal(t, "payload", ev.Payload)
}

func TestHub_DropsWhenBufferFull(t *testing.T) {
	hub := newTestHub(1)
	defer hub.Close()

	userID := uuid.New()
	sub := hub.Subscribe(userID)
	defer sub.Close()

	// The first emit fills the buffer; the second must be dropped rather
	// than block this goroutine.
	hub.EmitToUser(userID, EventNewNotification, 1)
	hub.EmitToUser(userID, EventNewNotification, 2)

	ev := <-sub.C
	assert.Equal(t, 1, ev.Payload)
	select {
	case ev := <-sub.C:
		t.Fatalf("expected second event to be dropped, got %v", ev)
	default:
	}
}

func TestHub_SubscriptionClose(t *testing.T) {
	hub := newTestHub(4)
	defer hub.Close()

	userID := uuid.New()
	sub := hub.Subscribe(userID)
	sub.Close()

	_, ok := <-sub.C
	require.False(t, ok, "channel should be closed after unsubscribe")

	// Emitting after unsubscribe must not panic.
	hub.EmitToUser(userID, EventNewNotification, nil)
}

func TestHub_CloseIsIdempotent(t *testing.T) {
	hub := newTestHub(4)

	sub := hub.Subscribe(uuid.New())
	hub.Close()
	hub.Close()

	_, ok := <-sub.C
	assert.False(t, ok)

	// Subscriptions taken after close come back already closed.
	late := hub.Subscribe(uuid.New())
	_, ok = <-late.C
	assert.False(t, ok)
}
