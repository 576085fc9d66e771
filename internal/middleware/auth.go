// File: internal/middleware/auth.go
package middleware

import (
	"vamarket_backend/internal/common"
	"vamarket_backend/internal/firebase"
	"vamarket_backend/internal/shared"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthMiddleware creates a Gin middleware that verifies the Firebase bearer
// token and loads the matching user into the request context. Suspended
// users are rejected.
func AuthMiddleware(firebaseService *firebase.FirebaseService, users shared.UserProvider, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := common.GetTokenFromContext(c)
		if tokenString == "" {
			logger.Debug("Authorization header missing or malformed")
			common.RespondWithError(c, common.ErrUnauthorized.WithDetails("Authorization header format must be 'Bearer <token>'."))
			return
		}

		token, err := firebaseService.VerifyIDToken(c.Request.Context(), tokenString)
		if err != nil {
			logger.Warn("Token verification failed", zap.Error(err))
			common.RespondWithError(c, common.ErrUnauthorized.WithDetails("Invalid or expired token."))
			return
		}

		usr, err := users.GetUserByFirebaseUID(c.Request.Context(), token.UID)
		if err != nil {
			logger.Warn("Authenticated token has no matching user", zap.String("firebaseUID", token.UID), zap.Error(err))
			common.RespondWithError(c, common.ErrUnauthorized.WithDetails("No account found for this token."))
			return
		}
		if usr.IsSuspended {
			common.RespondWithError(c, common.ErrForbidden.WithDetails("This account is suspended."))
			return
		}

		c.Set(common.UserIDKey, usr.ID)
		if usr.Email != nil {
			c.Set(common.UserEmailKey, *usr.Email)
		}
		c.Set(common.UserRoleKey, usr.Role)
		c.Set(common.UserIsAdminKey, usr.IsAdmin)
		c.Set(common.CurrentUserKey, usr)
		c.Set(common.FirebaseUIDKey, token.UID)

		c.Next()
	}
}

// AdminOnlyMiddleware rejects callers whose directory record is not flagged
// admin. Must run after AuthMiddleware.
func AdminOnlyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !common.IsAdminFromContext(c) {
			common.RespondWithError(c, common.ErrForbidden.WithDetails("Administrator access required."))
			return
		}
		c.Next()
	}
}

// CurrentUser retrieves the authenticated shared.User from the Gin context.
func CurrentUser(c *gin.Context) *shared.User {
	val, exists := c.Get(common.CurrentUserKey)
	if !exists {
		return nil
	}
	usr, ok := val.(*shared.User)
	if !ok {
		return nil
	}
	return usr
}
