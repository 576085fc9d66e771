// File: internal/common/context_keys.go
package common

const (
	// AuthorizationHeader is the header name for authorization token
	AuthorizationHeader = "Authorization"
	// AuthorizationTypeBearer is the prefix for Bearer tokens
	AuthorizationTypeBearer = "Bearer"
	// UserIDKey is the context key for storing the authenticated user's ID
	UserIDKey = "userID"
	// UserEmailKey is the context key for storing the authenticated user's email
	UserEmailKey = "userEmail"
	// UserRoleKey is the context key for storing the authenticated user's role
	UserRoleKey = "userRole"
	// UserIsAdminKey is the context key for the authenticated user's admin flag
	UserIsAdminKey = "userIsAdmin"
	// CurrentUserKey is the context key for the full shared.User view
	CurrentUserKey = "currentUser"
	// FirebaseUIDKey is the context key for storing the Firebase UID
	FirebaseUIDKey = "firebaseUID"
)

// Role values carried by the user directory. Administrators additionally
// carry an admin flag on top of their role.
const (
	RoleVA       = "va"
	RoleBusiness = "business"
)
