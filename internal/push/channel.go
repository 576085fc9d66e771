// File: internal/push/channel.go
package push

import "github.com/google/uuid"

// Event names delivered over the push stream. Clients key their UI updates
// off these names, so they are part of the public contract.
const (
	EventNewNotification      = "new-notification"
	EventNotificationRead     = "notification-read"
	EventAllNotificationsRead = "all-notifications-read"
	EventNotificationDeleted  = "notification-deleted"
)

// AdminRoom is the shared room that mirrors every notification delivered
// to an administrator, so admin dashboards can observe them in one place.
const AdminRoom = "admin-notifications"

// Event is a single push message with its payload.
type Event struct {
	Name    string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// Channel delivers real-time events to connected users. Delivery is best
// effort: events to users without an open connection are dropped silently,
// and persistence is never affected by delivery failures.
type Channel interface {
	EmitToUser(userID uuid.UUID, event string, payload interface{})
	EmitToRoom(room string, event string, payload interface{})
}
