// File: internal/announcement/model.go
package announcement

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"vamarket_backend/internal/common"
	"vamarket_backend/internal/shared"
)

// TargetAudience scopes who may see an announcement.
type TargetAudience string

const (
	AudienceVA       TargetAudience = "va"
	AudienceBusiness TargetAudience = "business"
	AudienceAll      TargetAudience = "all"
)

// Valid reports whether a is a known audience.
func (a TargetAudience) Valid() bool {
	switch a {
	case AudienceVA, AudienceBusiness, AudienceAll:
		return true
	}
	return false
}

// Priority ranks announcement urgency. Listings sort by priority first,
// then recency, so urgent items float to the top regardless of age.
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

// priorityRankSQL orders rows urgent > high > normal > low in SQL, since
// the lexical order of the enum values is meaningless.
const priorityRankSQL = "CASE priority WHEN 'urgent' THEN 4 WHEN 'high' THEN 3 WHEN 'normal' THEN 2 ELSE 1 END"

// Category groups announcements for filtering.
type Category string

const (
	CategoryGeneral     Category = "general"
	CategoryUpdate      Category = "update"
	CategoryMaintenance Category = "maintenance"
	CategoryFeature     Category = "feature"
	CategoryPolicy      Category = "policy"
	CategoryEvent       Category = "event"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryGeneral, CategoryUpdate, CategoryMaintenance, CategoryFeature, CategoryPolicy, CategoryEvent:
		return true
	}
	return false
}

// Interaction records how a user engaged with an announcement.
type Interaction string

const (
	InteractionViewed    Interaction = "viewed"
	InteractionClicked   Interaction = "clicked"
	InteractionDismissed Interaction = "dismissed"
)

// Valid reports whether i is a known interaction.
func (i Interaction) Valid() bool {
	switch i {
	case InteractionViewed, InteractionClicked, InteractionDismissed:
		return true
	}
	return false
}

// Tags is a JSONB-backed string slice.
type Tags []string

func (t Tags) Value() (driver.Value, error) {
	if t == nil {
		t = Tags{}
	}
	b, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tags: %w", err)
	}
	return string(b), nil
}

func (t *Tags) Scan(value interface{}) error {
	return scanJSON(value, t)
}

// Attachment describes one file attached to an announcement.
type Attachment struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// Attachments is a JSONB-backed attachment list.
type Attachments []Attachment

func (a Attachments) Value() (driver.Value, error) {
	if a == nil {
		a = Attachments{}
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal attachments: %w", err)
	}
	return string(b), nil
}

func (a *Attachments) Scan(value interface{}) error {
	return scanJSON(value, a)
}

// DeviceInfo captures the client context of a read receipt for analytics.
type DeviceInfo struct {
	UserAgent string `json:"user_agent,omitempty"`
	Platform  string `json:"platform,omitempty"`
	IP        string `json:"ip,omitempty"`
}

func (d DeviceInfo) Value() (driver.Value, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal device info: %w", err)
	}
	return string(b), nil
}

func (d *DeviceInfo) Scan(value interface{}) error {
	return scanJSON(value, d)
}

func scanJSON(value interface{}, dest interface{}) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("unsupported type for JSONB column")
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dest)
}

// Announcement is a shared, audience-targeted broadcast message.
// TotalReads is a denormalized counter maintained by the read ledger;
// statistics always recompute reader counts from the ledger itself.
type Announcement struct {
	common.BaseModel
	Title           string         `gorm:"type:varchar(200);not null" json:"title"`
	Slug            string         `gorm:"type:varchar(220);not null;uniqueIndex" json:"slug"`
	Content         string         `gorm:"type:text;not null" json:"content"`
	ContentRichText *string        `gorm:"type:text" json:"content_rich_text,omitempty"`
	TargetAudience  TargetAudience `gorm:"type:varchar(20);not null;default:'all';index:idx_announcements_visibility" json:"target_audience"`
	Priority        Priority       `gorm:"type:varchar(20);not null;default:'normal'" json:"priority"`
	Category        Category       `gorm:"type:varchar(30);not null;default:'general';index" json:"category"`
	Tags            Tags           `gorm:"type:jsonb" json:"tags"`
	Attachments     Attachments    `gorm:"type:jsonb" json:"attachments"`
	IsActive        bool           `gorm:"not null;default:true;index:idx_announcements_visibility" json:"is_active"`
	CreatedByID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"created_by_id"`
	PublishAt       time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"publish_at"`
	ExpiresAt       *time.Time     `gorm:"index:idx_announcements_visibility" json:"expires_at,omitempty"`
	TotalReads      int64          `gorm:"not null;default:0" json:"total_reads"`
}

// TableName specifies the table name for GORM.
func (Announcement) TableName() string {
	return "announcements"
}

// BeforeSave deactivates an announcement whose expiry has already passed,
// so a stale record can never be written back as live.
func (a *Announcement) BeforeSave(*gorm.DB) error {
	if a.IsExpired() {
		a.IsActive = false
	}
	return nil
}

// IsExpired reports whether the announcement's expiry has passed.
func (a *Announcement) IsExpired() bool {
	return a.ExpiresAt != nil && time.Now().After(*a.ExpiresAt)
}

// IsPublished reports whether the publish time has been reached.
func (a *Announcement) IsPublished() bool {
	return !time.Now().Before(a.PublishAt)
}

// IsViewable reports whether the announcement is live for its audience.
func (a *Announcement) IsViewable() bool {
	return a.IsActive && !a.IsExpired() && a.IsPublished()
}

// CanBeViewedBy applies the full visibility rule for one user. Admins see
// every announcement for management purposes.
func (a *Announcement) CanBeViewedBy(user *shared.User) bool {
	if user.IsAdmin {
		return true
	}
	if !a.IsViewable() {
		return false
	}
	switch a.TargetAudience {
	case AudienceAll:
		return true
	case AudienceVA:
		return user.Role == common.RoleVA
	case AudienceBusiness:
		return user.Role == common.RoleBusiness
	}
	return false
}

// AnnouncementRead is one row of the read ledger. The unique index on
// (announcement_id, user_id) is the arbiter for concurrent first reads;
// markAsRead correctness depends on it existing in the schema.
type AnnouncementRead struct {
	common.BaseModel
	AnnouncementID uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex:idx_announcement_reads_pair;index" json:"announcement_id"`
	UserID         uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex:idx_announcement_reads_pair;index" json:"user_id"`
	ReadAt         time.Time   `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"read_at"`
	Interaction    Interaction `gorm:"type:varchar(20);not null;default:'viewed'" json:"interaction"`
	TimeSpent      int64       `gorm:"not null;default:0" json:"time_spent"` // accumulated seconds
	DeviceInfo     DeviceInfo  `gorm:"type:jsonb" json:"device_info"`
}

// TableName specifies the table name for GORM.
func (AnnouncementRead) TableName() string {
	return "announcement_reads"
}
