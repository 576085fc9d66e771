// File: internal/dispatch/handler.go
package dispatch

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"vamarket_backend/internal/common"
	"vamarket_backend/internal/middleware"
	"vamarket_backend/internal/notification"
)

// Handler exposes the admin fan-out and statistics endpoints. Every route
// here sits behind the admin-only middleware.
type Handler struct {
	dispatcher Dispatcher
	stats      StatsService
	logger     *zap.Logger
}

// NewHandler creates the admin notification handler.
func NewHandler(dispatcher Dispatcher, stats StatsService, logger *zap.Logger) *Handler {
	return &Handler{
		dispatcher: dispatcher,
		stats:      stats,
		logger:     logger.Named("AdminNotificationHandler"),
	}
}

// RegisterRoutes mounts the admin notification routes on the given group.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/send", h.sendTargeted)
	router.POST("/broadcast", h.sendBroadcast)
	router.POST("/schedule", h.schedule)
	router.GET("/scheduled", h.listScheduled)
	router.GET("/stats", h.notificationStats)
	router.GET("/archived-stats", h.archivedStats)
	router.POST("/delete", h.deleteNotifications)
	router.POST("/bulk-archive", h.bulkArchive)
	router.POST("/restore", h.restoreArchived)
}

func (h *Handler) sendTargeted(c *gin.Context) {
	sender := middleware.CurrentUser(c)
	if sender == nil {
		common.RespondWithError(c, common.ErrUnauthorized)
		return
	}

	var req SendTargetedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.APIErrorFromBinding(err))
		return
	}

	summary, result, err := h.dispatcher.SendTargeted(c.Request.Context(), sender, req)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	message := fmt.Sprintf("Notifications sent to %d users.", summary.NotificationCount)
	common.RespondBulk(c, message, summary, result)
}

func (h *Handler) sendBroadcast(c *gin.Context) {
	sender := middleware.CurrentUser(c)
	if sender == nil {
		common.RespondWithError(c, common.ErrUnauthorized)
		return
	}

	var req BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.APIErrorFromBinding(err))
		return
	}

	summary, result, err := h.dispatcher.SendBroadcast(c.Request.Context(), sender, req)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	message := fmt.Sprintf("Broadcast sent to %d users.", summary.TotalRecipients)
	common.RespondBulk(c, message, summary, result)
}

func (h *Handler) schedule(c *gin.Context) {
	sender := middleware.CurrentUser(c)
	if sender == nil {
		common.RespondWithError(c, common.ErrUnauthorized)
		return
	}

	var req ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.APIErrorFromBinding(err))
		return
	}

	scheduled, err := h.dispatcher.Schedule(c.Request.Context(), sender, req)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondCreated(c, "Notification scheduled successfully.", scheduled)
}

func (h *Handler) listScheduled(c *gin.Context) {
	page, pageSize := common.GetPaginationParams(c)

	scheduled, pagination, err := h.dispatcher.ListScheduled(c.Request.Context(), page, pageSize)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondPaginated(c, "Scheduled notifications retrieved successfully.", scheduled, pagination)
}

// parseDateQuery accepts RFC 3339 timestamps or bare dates.
func parseDateQuery(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, common.ErrBadRequest.WithDetails(fmt.Sprintf("Invalid %s: %s", name, raw))
	}
	return &t, nil
}

func (h *Handler) notificationStats(c *gin.Context) {
	start, err := parseDateQuery(c, "start_date")
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	end, err := parseDateQuery(c, "end_date")
	if err != nil {
		common.RespondWithError(c, err)
		return
	}

	stats, err := h.stats.NotificationStats(c.Request.Context(), start, end)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Notification statistics retrieved successfully.", stats)
}

func (h *Handler) archivedStats(c *gin.Context) {
	start, err := parseDateQuery(c, "start_date")
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	end, err := parseDateQuery(c, "end_date")
	if err != nil {
		common.RespondWithError(c, err)
		return
	}

	var userID *uuid.UUID
	if raw := c.Query("user_id"); raw != "" {
		id, parseErr := uuid.Parse(raw)
		if parseErr != nil {
			common.RespondWithError(c, common.ErrBadRequest.WithDetails("Invalid user_id."))
			return
		}
		userID = &id
	}

	stats, err := h.stats.ArchivedStats(c.Request.Context(), start, end, userID)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Archived notification statistics retrieved successfully.", stats)
}

type deleteRequest struct {
	NotificationIDs []uuid.UUID `json:"notification_ids"`
	DeleteAll       bool        `json:"delete_all"`
	OlderThanDays   *int        `json:"older_than_days"`
}

func (h *Handler) deleteNotifications(c *gin.Context) {
	var req deleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.APIErrorFromBinding(err))
		return
	}

	criteria := notification.DeleteCriteria{
		IDs:       req.NotificationIDs,
		DeleteAll: req.DeleteAll,
	}
	if req.OlderThanDays != nil {
		cutoff := time.Now().AddDate(0, 0, -*req.OlderThanDays)
		criteria.OlderThan = &cutoff
	}

	deleted, err := h.dispatcher.DeleteNotifications(c.Request.Context(), criteria)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, fmt.Sprintf("%d notifications deleted.", deleted), gin.H{"deleted_count": deleted})
}

type bulkArchiveRequest struct {
	OlderThanDays *int              `json:"older_than_days"`
	Type          notification.Type `json:"type"`
	Read          *bool             `json:"read"`
	UserID        *uuid.UUID        `json:"user_id"`
}

func (h *Handler) bulkArchive(c *gin.Context) {
	var req bulkArchiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.APIErrorFromBinding(err))
		return
	}

	criteria := notification.ArchiveCriteria{
		Type:   req.Type,
		Read:   req.Read,
		UserID: req.UserID,
	}
	if req.OlderThanDays != nil {
		cutoff := time.Now().AddDate(0, 0, -*req.OlderThanDays)
		criteria.OlderThan = &cutoff
	}

	archived, err := h.dispatcher.BulkArchive(c.Request.Context(), criteria)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, fmt.Sprintf("%d notifications archived.", archived), gin.H{"archived_count": archived})
}

type restoreRequest struct {
	NotificationIDs   []uuid.UUID       `json:"notification_ids"`
	ArchivedAfterDays *int              `json:"archived_after_days"`
	Type              notification.Type `json:"type"`
	UserID            *uuid.UUID        `json:"user_id"`
}

func (h *Handler) restoreArchived(c *gin.Context) {
	var req restoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.APIErrorFromBinding(err))
		return
	}

	// Build criteria only when a criteria field was actually supplied. An
	// empty body must not turn into an unfiltered platform-wide restore.
	var criteria *notification.RestoreCriteria
	hasCriteria := req.ArchivedAfterDays != nil || req.Type != "" || req.UserID != nil
	if len(req.NotificationIDs) == 0 && hasCriteria {
		criteria = &notification.RestoreCriteria{
			Type:   req.Type,
			UserID: req.UserID,
		}
		if req.ArchivedAfterDays != nil {
			cutoff := time.Now().AddDate(0, 0, -*req.ArchivedAfterDays)
			criteria.ArchivedAfter = &cutoff
		}
	}

	restored, err := h.dispatcher.RestoreArchived(c.Request.Context(), req.NotificationIDs, criteria)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, fmt.Sprintf("%d notifications restored.", restored), gin.H{"restored_count": restored})
}
