// File: internal/dispatch/model.go
package dispatch

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"vamarket_backend/internal/common"
	"vamarket_backend/internal/notification"
	"vamarket_backend/internal/shared"
)

// StatusScheduled is the only state this engine writes. Dispatch at the
// scheduled time belongs to an external scheduler that reads these records
// and calls SendTargeted/SendBroadcast.
const StatusScheduled = "scheduled"

// UUIDList is a JSONB-backed uuid slice.
type UUIDList []uuid.UUID

func (l UUIDList) Value() (driver.Value, error) {
	if l == nil {
		l = UUIDList{}
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal uuid list: %w", err)
	}
	return string(b), nil
}

func (l *UUIDList) Scan(value interface{}) error {
	if value == nil {
		*l = UUIDList{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("unsupported type for uuid list")
	}
	if len(data) == 0 {
		*l = UUIDList{}
		return nil
	}
	return json.Unmarshal(data, l)
}

// ScheduledNotification is a persisted intent to send at a future time.
type ScheduledNotification struct {
	common.BaseModel
	ScheduledFor time.Time             `gorm:"not null;index" json:"scheduled_for"`
	TargetUsers  UUIDList              `gorm:"type:jsonb" json:"target_users"`
	TargetGroup  shared.TargetGroup    `gorm:"type:varchar(20)" json:"target_group,omitempty"`
	Title        string                `gorm:"type:varchar(200);not null" json:"title"`
	Message      string                `gorm:"type:text;not null" json:"message"`
	Type         notification.Type     `gorm:"type:varchar(50);not null" json:"type"`
	Priority     notification.Priority `gorm:"type:varchar(20);not null;default:'normal'" json:"priority"`
	ActionURL    string                `gorm:"type:varchar(500)" json:"action_url,omitempty"`
	SendEmail    bool                  `gorm:"not null;default:false" json:"send_email"`
	CreatedByID  uuid.UUID             `gorm:"type:uuid;not null;index" json:"created_by_id"`
	Status       string                `gorm:"type:varchar(20);not null;default:'scheduled';index" json:"status"`
}

// TableName specifies the table name for GORM.
func (ScheduledNotification) TableName() string {
	return "scheduled_notifications"
}
