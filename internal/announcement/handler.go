// File: internal/announcement/handler.go
package announcement

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"vamarket_backend/internal/common"
	"vamarket_backend/internal/middleware"
)

type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes sets up announcement routes. The group is authenticated;
// management routes additionally pass the admin-only middleware.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, adminOnly gin.HandlerFunc) {
	router.GET("", h.listAnnouncements)
	router.GET("/unread-count", h.unreadCount)
	router.POST("/:announcement_id/read", h.markAsRead)

	admin := router.Group("", adminOnly)
	admin.POST("", h.createAnnouncement)
	admin.GET("/admin", h.listAllAnnouncements)
	admin.PUT("/:announcement_id", h.updateAnnouncement)
	admin.DELETE("/:announcement_id", h.deleteAnnouncement)
	admin.POST("/archive-expired", h.archiveExpired)
	admin.GET("/:announcement_id/stats", h.announcementStats)
}

func (h *Handler) listAnnouncements(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		common.RespondWithError(c, common.ErrUnauthorized.WithDetails("User not found in context."))
		return
	}

	page, pageSize := common.GetPaginationParams(c)
	filters := ListFilters{
		Priority:   Priority(c.Query("priority")),
		Category:   Category(c.Query("category")),
		OnlyUnread: c.Query("only_unread") == "true",
	}

	views, pagination, err := h.service.ListForUser(c.Request.Context(), user, filters, page, pageSize)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondPaginated(c, "Announcements retrieved successfully.", views, pagination)
}

func (h *Handler) unreadCount(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		common.RespondWithError(c, common.ErrUnauthorized.WithDetails("User not found in context."))
		return
	}

	summary, err := h.service.UnreadCount(c.Request.Context(), user)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Unread announcement count retrieved successfully.", summary)
}

type markReadRequest struct {
	Interaction Interaction `json:"interaction" binding:"omitempty,oneof=viewed clicked dismissed"`
	TimeSpent   int64       `json:"time_spent" binding:"omitempty,min=0"`
}

func (h *Handler) markAsRead(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		common.RespondWithError(c, common.ErrUnauthorized.WithDetails("User not found in context."))
		return
	}

	announcementID, err := uuid.Parse(c.Param("announcement_id"))
	if err != nil {
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Invalid announcement ID format."))
		return
	}

	var req markReadRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			common.RespondWithError(c, common.APIErrorFromBinding(err))
			return
		}
	}

	device := DeviceInfo{
		UserAgent: c.GetHeader("User-Agent"),
		Platform:  c.GetHeader("Sec-CH-UA-Platform"),
		IP:        c.ClientIP(),
	}

	record, err := h.service.MarkAsRead(c.Request.Context(), user, announcementID, req.Interaction, req.TimeSpent, device)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Announcement marked as read.", record)
}

func (h *Handler) createAnnouncement(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.APIErrorFromBinding(err))
		return
	}

	created, err := h.service.Create(c.Request.Context(), user, req)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondCreated(c, "Announcement created successfully.", created)
}

func (h *Handler) listAllAnnouncements(c *gin.Context) {
	user := middleware.CurrentUser(c)

	page, pageSize := common.GetPaginationParams(c)
	filters := AdminFilters{
		Status:         AdminStatusFilter(c.DefaultQuery("filter", string(AdminFilterAll))),
		TargetAudience: TargetAudience(c.Query("target_audience")),
		Priority:       Priority(c.Query("priority")),
		Category:       Category(c.Query("category")),
	}

	views, pagination, err := h.service.ListForAdmin(c.Request.Context(), user, filters, c.Query("q"), page, pageSize)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondPaginated(c, "Announcements retrieved successfully.", views, pagination)
}

func (h *Handler) updateAnnouncement(c *gin.Context) {
	user := middleware.CurrentUser(c)

	announcementID, err := uuid.Parse(c.Param("announcement_id"))
	if err != nil {
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Invalid announcement ID format."))
		return
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.APIErrorFromBinding(err))
		return
	}

	updated, err := h.service.Update(c.Request.Context(), user, announcementID, req)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Announcement updated successfully.", updated)
}

func (h *Handler) deleteAnnouncement(c *gin.Context) {
	user := middleware.CurrentUser(c)

	announcementID, err := uuid.Parse(c.Param("announcement_id"))
	if err != nil {
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Invalid announcement ID format."))
		return
	}

	if err := h.service.Delete(c.Request.Context(), user, announcementID); err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Announcement deleted successfully.", nil)
}

func (h *Handler) archiveExpired(c *gin.Context) {
	user := middleware.CurrentUser(c)

	count, err := h.service.ArchiveExpired(c.Request.Context(), user)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Expired announcements archived.", gin.H{"archived": count})
}

func (h *Handler) announcementStats(c *gin.Context) {
	user := middleware.CurrentUser(c)

	announcementID, err := uuid.Parse(c.Param("announcement_id"))
	if err != nil {
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Invalid announcement ID format."))
		return
	}

	stats, err := h.service.StatsFor(c.Request.Context(), user, announcementID)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Announcement statistics retrieved successfully.", stats)
}
