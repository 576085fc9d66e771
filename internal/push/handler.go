// File: internal/push/handler.go
package push

import (
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"vamarket_backend/internal/common"
)

// Handler exposes the push stream over Server-Sent Events.
type Handler struct {
	hub    *Hub
	logger *zap.Logger
}

func NewHandler(hub *Hub, logger *zap.Logger) *Handler {
	return &Handler{hub: hub, logger: logger}
}

// RegisterRoutes sets up the push routes. All routes in this group should
// be authenticated.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/stream", h.stream)
}

// stream opens a long-lived SSE connection. By default the caller receives
// their personal event stream; administrators may instead pass
// ?room=admin-notifications to observe the shared admin room.
func (h *Handler) stream(c *gin.Context) {
	userID := common.GetUserIDFromContext(c)
	if userID == uuid.Nil {
		common.RespondWithError(c, common.ErrUnauthorized.WithDetails("User ID not found in token."))
		return
	}

	var sub *Subscription
	if room := c.Query("room"); room != "" {
		if room != AdminRoom {
			common.RespondWithError(c, common.ErrBadRequest.WithDetails("Unknown room: "+room))
			return
		}
		if !common.IsAdminFromContext(c) {
			common.RespondWithError(c, common.ErrForbidden.WithDetails("Admin access required for this room."))
			return
		}
		sub = h.hub.SubscribeRoom(room)
	} else {
		sub = h.hub.Subscribe(userID)
	}
	defer sub.Close()

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-clientGone:
			return false
		case ev, ok := <-sub.C:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, ev.Payload)
			return true
		}
	})
}
