package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// User is the cross-feature view of a marketplace member. It is what the
// auth middleware places in the request context and what the fan-out engine
// resolves audiences into.
type User struct {
	ID          uuid.UUID
	Email       *string
	FirstName   *string
	LastName    *string
	Role        string // "va" or "business"
	IsAdmin     bool
	IsSuspended bool
	// Per-user opt-out for broadcast announcement emails
	// (preferences.notifications.email.systemAnnouncements).
	EmailOnAnnouncements bool
	FirebaseUID          *string
	CreatedAt            time.Time
}

// CanReceiveAnnouncementEmail reports whether a broadcast email may be sent
// to this user.
func (u *User) CanReceiveAnnouncementEmail() bool {
	return u.Email != nil && *u.Email != "" && u.EmailOnAnnouncements
}

// TargetGroup names a broadcast audience.
type TargetGroup string

const (
	TargetGroupAll        TargetGroup = "all"
	TargetGroupVAs        TargetGroup = "vas"
	TargetGroupBusinesses TargetGroup = "businesses"
	TargetGroupAdmins     TargetGroup = "admins"
)

// Valid reports whether the group is one of the known audiences.
func (g TargetGroup) Valid() bool {
	switch g {
	case TargetGroupAll, TargetGroupVAs, TargetGroupBusinesses, TargetGroupAdmins:
		return true
	}
	return false
}

// AudienceFilters narrows a broadcast audience. Which fields apply depends
// on the target group: search status and profile status for VAs, industry
// and company size for businesses.
type AudienceFilters struct {
	SearchStatus string
	Status       string
	Industry     string
	CompanySize  string
}

// UserProvider exposes user lookups needed outside the user package.
type UserProvider interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByFirebaseUID(ctx context.Context, firebaseUID string) (*User, error)
}

// Directory resolves role-based audiences for broadcast fan-out and reach
// statistics. ResolveAudience returns only non-suspended users.
type Directory interface {
	ResolveAudience(ctx context.Context, group TargetGroup, filters AudienceFilters) ([]User, error)
	// CountAudience sizes the audience of an announcement target
	// ("va", "business" or "all") over non-suspended users.
	CountAudience(ctx context.Context, targetAudience string) (int64, error)
}
