// File: internal/notification/service.go
package notification

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vamarket_backend/internal/common"
	"vamarket_backend/internal/push"
	"vamarket_backend/internal/shared"
)

// Response is the API and push-event view of a notification. It carries
// the display title derived from the type.
type Response struct {
	ID          uuid.UUID `json:"id"`
	RecipientID uuid.UUID `json:"recipientId"`
	Type        Type      `json:"type"`
	Title       string    `json:"title"`
	Priority    Priority  `json:"priority"`
	Params      Params    `json:"params"`
	ReadAt      *string   `json:"readAt,omitempty"`
	Archived    bool      `json:"archived"`
	CreatedAt   string    `json:"createdAt"`
}

// ToResponse converts a notification model to its API view.
func ToResponse(n *Notification) Response {
	resp := Response{
		ID:          n.ID,
		RecipientID: n.RecipientID,
		Type:        n.Type,
		Title:       n.Title(),
		Priority:    n.Priority,
		Params:      n.Params,
		Archived:    n.Archived,
		CreatedAt:   n.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
	}
	if n.ReadAt != nil {
		s := n.ReadAt.UTC().Format("2006-01-02T15:04:05.000Z")
		resp.ReadAt = &s
	}
	return resp
}

// Push event payloads. Clients rely on these exact key names.
type newNotificationPayload struct {
	Notification Response `json:"notification"`
	UnreadCount  int64    `json:"unreadCount"`
}

type notificationsReadPayload struct {
	NotificationIDs []uuid.UUID `json:"notificationIds"`
	UnreadCount     int64       `json:"unreadCount"`
}

type notificationDeletedPayload struct {
	NotificationID uuid.UUID `json:"notificationId"`
	UnreadCount    int64     `json:"unreadCount"`
}

// Service covers the per-user notification surface: creation (used by the
// fan-out dispatcher), listing, read state and the archive lifecycle. Every
// mutation of read or delete state pushes a real-time event carrying the
// caller's fresh unread count.
type Service interface {
	Create(ctx context.Context, recipientID uuid.UUID, t Type, priority Priority, params Params) (*Notification, error)
	List(ctx context.Context, recipientID uuid.UUID, filters ListFilters, page, pageSize int) ([]Response, *common.Pagination, error)
	MarkRead(ctx context.Context, ids []uuid.UUID, recipientID uuid.UUID) (int64, error)
	MarkAllRead(ctx context.Context, recipientID uuid.UUID) ([]uuid.UUID, error)
	Delete(ctx context.Context, id, recipientID uuid.UUID) error
	UnreadCount(ctx context.Context, recipientID uuid.UUID) (int64, error)
	ArchivedCount(ctx context.Context, recipientID uuid.UUID) (int64, error)
	Archive(ctx context.Context, ids []uuid.UUID, recipientID uuid.UUID) (int64, error)
	Unarchive(ctx context.Context, ids []uuid.UUID, recipientID uuid.UUID) (int64, error)
	ClearArchived(ctx context.Context, recipientID uuid.UUID) (int64, error)
}

type serviceImpl struct {
	repo   Repository
	users  shared.UserProvider
	pusher push.Channel
	logger *zap.Logger
}

// NewService creates a new notification service.
func NewService(repo Repository, users shared.UserProvider, pusher push.Channel, logger *zap.Logger) Service {
	return &serviceImpl{
		repo:   repo,
		users:  users,
		pusher: pusher,
		logger: logger.Named("NotificationService"),
	}
}

// Create persists a notification and pushes a new-notification event to the
// recipient. Notifications for administrators are mirrored to the shared
// admin room so dashboards observe them in one stream.
func (s *serviceImpl) Create(ctx context.Context, recipientID uuid.UUID, t Type, priority Priority, params Params) (*Notification, error) {
	if !t.Valid() {
		return nil, common.ErrBadRequest.WithDetails(fmt.Sprintf("Unknown notification type: %s", t))
	}
	if priority == "" {
		priority = PriorityNormal
	}
	if !priority.Valid() {
		return nil, common.ErrBadRequest.WithDetails(fmt.Sprintf("Unknown notification priority: %s", priority))
	}
	if err := params.Validate(t); err != nil {
		return nil, err
	}

	n := &Notification{
		RecipientID: recipientID,
		Type:        t,
		Priority:    priority,
		Params:      params,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		s.logger.Error("Failed to create notification",
			zap.String("recipient_id", recipientID.String()),
			zap.String("type", string(t)),
			zap.Error(err))
		return nil, err
	}

	unread, err := s.repo.UnreadCount(ctx, recipientID)
	if err != nil {
		// The record exists; a failed count only degrades the push payload.
		s.logger.Warn("Failed to compute unread count after create",
			zap.String("recipient_id", recipientID.String()), zap.Error(err))
	}
	payload := newNotificationPayload{Notification: ToResponse(n), UnreadCount: unread}
	s.pusher.EmitToUser(recipientID, push.EventNewNotification, payload)
	s.mirrorToAdminRoom(ctx, recipientID, push.EventNewNotification, payload)

	return n, nil
}

// mirrorToAdminRoom forwards an event to the shared admin room when the
// affected user is an administrator, so dashboards track admin inbox state
// in one stream.
func (s *serviceImpl) mirrorToAdminRoom(ctx context.Context, recipientID uuid.UUID, event string, payload interface{}) {
	if recipient, err := s.users.GetUserByID(ctx, recipientID); err == nil && recipient.IsAdmin {
		s.pusher.EmitToRoom(push.AdminRoom, event, payload)
	}
}

// List retrieves a paginated, filtered notification feed for one user.
func (s *serviceImpl) List(ctx context.Context, recipientID uuid.UUID, filters ListFilters, page, pageSize int) ([]Response, *common.Pagination, error) {
	if filters.Type != "" && !filters.Type.Valid() {
		return nil, nil, common.ErrBadRequest.WithDetails(fmt.Sprintf("Unknown notification type: %s", filters.Type))
	}
	if filters.Priority != "" && !filters.Priority.Valid() {
		return nil, nil, common.ErrBadRequest.WithDetails(fmt.Sprintf("Unknown notification priority: %s", filters.Priority))
	}
	notifications, pagination, err := s.repo.FindByRecipient(ctx, recipientID, filters, page, pageSize)
	if err != nil {
		return nil, nil, err
	}
	responses := make([]Response, 0, len(notifications))
	for i := range notifications {
		responses = append(responses, ToResponse(&notifications[i]))
	}
	return responses, pagination, nil
}

// MarkRead marks the given notifications read. Redundant calls are no-ops.
func (s *serviceImpl) MarkRead(ctx context.Context, ids []uuid.UUID, recipientID uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, common.ErrBadRequest.WithDetails("No notification ids provided.")
	}
	count, err := s.repo.MarkRead(ctx, ids, recipientID)
	if err != nil {
		return 0, err
	}
	unread, cerr := s.repo.UnreadCount(ctx, recipientID)
	if cerr != nil {
		s.logger.Warn("Failed to compute unread count after mark read",
			zap.String("recipient_id", recipientID.String()), zap.Error(cerr))
	}
	payload := notificationsReadPayload{
		NotificationIDs: ids,
		UnreadCount:     unread,
	}
	s.pusher.EmitToUser(recipientID, push.EventNotificationRead, payload)
	s.mirrorToAdminRoom(ctx, recipientID, push.EventNotificationRead, payload)
	return count, nil
}

// MarkAllRead marks every unread notification of the caller read and
// returns the affected ids.
func (s *serviceImpl) MarkAllRead(ctx context.Context, recipientID uuid.UUID) ([]uuid.UUID, error) {
	ids, err := s.repo.MarkAllRead(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	payload := notificationsReadPayload{
		NotificationIDs: ids,
		UnreadCount:     0,
	}
	s.pusher.EmitToUser(recipientID, push.EventAllNotificationsRead, payload)
	s.mirrorToAdminRoom(ctx, recipientID, push.EventAllNotificationsRead, payload)
	return ids, nil
}

// Delete hard-deletes one notification owned by the caller. Terminal.
func (s *serviceImpl) Delete(ctx context.Context, id, recipientID uuid.UUID) error {
	if _, err := s.repo.Delete(ctx, id, recipientID); err != nil {
		return err
	}
	unread, cerr := s.repo.UnreadCount(ctx, recipientID)
	if cerr != nil {
		s.logger.Warn("Failed to compute unread count after delete",
			zap.String("recipient_id", recipientID.String()), zap.Error(cerr))
	}
	s.pusher.EmitToUser(recipientID, push.EventNotificationDeleted, notificationDeletedPayload{
		NotificationID: id,
		UnreadCount:    unread,
	})
	return nil
}

// UnreadCount counts unread, unarchived notifications for the caller.
func (s *serviceImpl) UnreadCount(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	return s.repo.UnreadCount(ctx, recipientID)
}

// ArchivedCount counts archived notifications for the caller.
func (s *serviceImpl) ArchivedCount(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	return s.repo.ArchivedCount(ctx, recipientID)
}

// Archive flags the given notifications archived for the caller.
func (s *serviceImpl) Archive(ctx context.Context, ids []uuid.UUID, recipientID uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, common.ErrBadRequest.WithDetails("No notification ids provided.")
	}
	return s.repo.Archive(ctx, ids, recipientID)
}

// Unarchive restores archived notifications, preserving their read state.
func (s *serviceImpl) Unarchive(ctx context.Context, ids []uuid.UUID, recipientID uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, common.ErrBadRequest.WithDetails("No notification ids provided.")
	}
	return s.repo.Unarchive(ctx, ids, recipientID)
}

// ClearArchived hard-deletes the caller's archived notifications.
func (s *serviceImpl) ClearArchived(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	return s.repo.ClearArchived(ctx, recipientID)
}
