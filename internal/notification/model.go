// File: internal/notification/model.go
package notification

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"vamarket_backend/internal/common"
)

// Type defines the kind of event a notification describes.
type Type string

const (
	TypeNewMessage         Type = "new_message"
	TypeNewConversation    Type = "new_conversation"
	TypeProfileView        Type = "profile_view"
	TypeProfileReminder    Type = "profile_reminder"
	TypeVAAdded            Type = "va_added"
	TypeBusinessAdded      Type = "business_added"
	TypeAdminNotification  Type = "admin_notification"
	TypeSystemAnnouncement Type = "system_announcement"
	TypeReferralJoined     Type = "referral_joined"
	TypeCelebrationPackage Type = "celebration_package"
	TypeHiringInvoice      Type = "hiring_invoice"
)

// Valid reports whether t is a known notification type.
func (t Type) Valid() bool {
	switch t {
	case TypeNewMessage, TypeNewConversation, TypeProfileView, TypeProfileReminder,
		TypeVAAdded, TypeBusinessAdded, TypeAdminNotification, TypeSystemAnnouncement,
		TypeReferralJoined, TypeCelebrationPackage, TypeHiringInvoice:
		return true
	}
	return false
}

// Title returns the display title for a notification type.
func (t Type) Title() string {
	switch t {
	case TypeNewMessage:
		return "New Message"
	case TypeNewConversation:
		return "New Conversation Started"
	case TypeProfileView:
		return "Someone Viewed Your Profile"
	case TypeProfileReminder:
		return "Complete Your Profile"
	case TypeVAAdded:
		return "New VA Joined"
	case TypeBusinessAdded:
		return "New Business Joined"
	case TypeAdminNotification:
		return "Admin Notification"
	case TypeSystemAnnouncement:
		return "System Announcement"
	case TypeReferralJoined:
		return "Your Referral Joined"
	case TypeCelebrationPackage:
		return "Celebration Package Request"
	case TypeHiringInvoice:
		return "Hiring Invoice Request"
	default:
		return "Notification"
	}
}

// Priority ranks how urgently a notification should surface.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// MessageParams is the payload for new_message and new_conversation.
type MessageParams struct {
	SenderID       uuid.UUID  `json:"sender_id"`
	SenderName     string     `json:"sender_name"`
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
	MessageID      *uuid.UUID `json:"message_id,omitempty"`
	Preview        string     `json:"preview,omitempty"`
}

// ProfileViewParams is the payload for profile_view.
type ProfileViewParams struct {
	ViewerID   uuid.UUID `json:"viewer_id"`
	ViewerName string    `json:"viewer_name"`
	ViewerRole string    `json:"viewer_role"` // "va" or "business"
}

// ReminderParams is the payload for profile_reminder.
type ReminderParams struct {
	CompletionPercent int `json:"completion_percent"`
}

// MemberParams is the payload for va_added, business_added and
// referral_joined.
type MemberParams struct {
	MemberID   uuid.UUID `json:"member_id"`
	MemberName string    `json:"member_name"`
	MemberRole string    `json:"member_role,omitempty"`
}

// AdminParams is the payload for admin_notification and
// system_announcement.
type AdminParams struct {
	Title     string `json:"title"`
	Message   string `json:"message"`
	ActionURL string `json:"action_url,omitempty"`
}

// CelebrationParams is the payload for celebration_package.
type CelebrationParams struct {
	RequesterID uuid.UUID `json:"requester_id"`
	PackageName string    `json:"package_name"`
}

// InvoiceParams is the payload for hiring_invoice.
type InvoiceParams struct {
	RequesterID uuid.UUID `json:"requester_id"`
	InvoiceRef  string    `json:"invoice_ref"`
	AmountCents int64     `json:"amount_cents,omitempty"`
}

// Params is the typed payload of a notification. Exactly one variant may be
// set, and it must match the notification type. An empty Params is valid
// for every type.
type Params struct {
	Message     *MessageParams     `json:"message,omitempty"`
	ProfileView *ProfileViewParams `json:"profile_view,omitempty"`
	Reminder    *ReminderParams    `json:"reminder,omitempty"`
	Member      *MemberParams      `json:"member,omitempty"`
	Admin       *AdminParams       `json:"admin,omitempty"`
	Celebration *CelebrationParams `json:"celebration,omitempty"`
	Invoice     *InvoiceParams     `json:"invoice,omitempty"`
}

func (p Params) variants() []string {
	var set []string
	if p.Message != nil {
		set = append(set, "message")
	}
	if p.ProfileView != nil {
		set = append(set, "profile_view")
	}
	if p.Reminder != nil {
		set = append(set, "reminder")
	}
	if p.Member != nil {
		set = append(set, "member")
	}
	if p.Admin != nil {
		set = append(set, "admin")
	}
	if p.Celebration != nil {
		set = append(set, "celebration")
	}
	if p.Invoice != nil {
		set = append(set, "invoice")
	}
	return set
}

// variantFor maps a notification type to the params variant it accepts.
func variantFor(t Type) string {
	switch t {
	case TypeNewMessage, TypeNewConversation:
		return "message"
	case TypeProfileView:
		return "profile_view"
	case TypeProfileReminder:
		return "reminder"
	case TypeVAAdded, TypeBusinessAdded, TypeReferralJoined:
		return "member"
	case TypeAdminNotification, TypeSystemAnnouncement:
		return "admin"
	case TypeCelebrationPackage:
		return "celebration"
	case TypeHiringInvoice:
		return "invoice"
	default:
		return ""
	}
}

// Validate checks that the payload variant matches the notification type.
func (p Params) Validate(t Type) error {
	set := p.variants()
	if len(set) == 0 {
		return nil
	}
	if len(set) > 1 {
		return common.ErrBadRequest.WithDetails("Notification params may carry only one payload variant.")
	}
	if expected := variantFor(t); set[0] != expected {
		return common.ErrBadRequest.WithDetails(
			fmt.Sprintf("Params variant %q does not match notification type %q.", set[0], t))
	}
	return nil
}

// Value serializes the params to JSONB.
func (p Params) Value() (driver.Value, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notification params: %w", err)
	}
	return string(b), nil
}

// Scan deserializes the params from JSONB.
func (p *Params) Scan(value interface{}) error {
	if value == nil {
		*p = Params{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("unsupported type for notification params")
	}
	if len(data) == 0 {
		*p = Params{}
		return nil
	}
	return json.Unmarshal(data, p)
}

// Notification represents a single per-user, per-event record with read and
// archive state. Rows are immutable after creation except for the read and
// archive fields.
type Notification struct {
	ID          uuid.UUID  `gorm:"type:uuid;primary_key;default:uuid_generate_v4()" json:"id"`
	RecipientID uuid.UUID  `gorm:"type:uuid;not null;index:idx_notifications_recipient_read;index:idx_notifications_recipient_created" json:"recipient_id"`
	Type        Type       `gorm:"type:varchar(50);not null;index" json:"type"`
	Priority    Priority   `gorm:"type:varchar(20);not null;default:'normal'" json:"priority"`
	Params      Params     `gorm:"type:jsonb" json:"params"`
	ReadAt      *time.Time `gorm:"index:idx_notifications_recipient_read" json:"read_at,omitempty"`
	Archived    bool       `gorm:"not null;default:false;index" json:"archived"`
	ArchivedAt  *time.Time `json:"archived_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP;index:idx_notifications_recipient_created" json:"created_at"`
}

// TableName specifies the table name for GORM.
func (Notification) TableName() string {
	return "notifications"
}

// BeforeCreate assigns an id so inserts work on databases without the
// uuid_generate_v4 function, sqlite included.
func (n *Notification) BeforeCreate(_ *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

// IsRead reports whether the notification has been read.
func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}

// Title returns the display title derived from the notification type.
func (n *Notification) Title() string {
	return n.Type.Title()
}
