// File: internal/dispatch/service.go
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vamarket_backend/internal/common"
	"vamarket_backend/internal/config"
	"vamarket_backend/internal/mailer"
	"vamarket_backend/internal/notification"
	"vamarket_backend/internal/shared"
)

// SendTargetedRequest is an admin request to notify specific users.
// Duplicate ids yield duplicate notifications; the list is used as given.
type SendTargetedRequest struct {
	UserIDs   []uuid.UUID           `json:"user_ids" binding:"required,min=1"`
	Title     string                `json:"title" binding:"required,max=200"`
	Message   string                `json:"message" binding:"required,max=5000"`
	Type      notification.Type     `json:"type"`
	Priority  notification.Priority `json:"priority"`
	ActionURL string                `json:"action_url"`
	SendEmail bool                  `json:"send_email_notification"`
}

// TargetedSummary reports the outcome of a targeted send.
type TargetedSummary struct {
	NotificationCount int         `json:"notification_count"`
	Recipients        []uuid.UUID `json:"recipients"`
	EmailsSent        int         `json:"emails_sent"`
}

// BroadcastRequest is an admin request to notify a role-based audience.
type BroadcastRequest struct {
	TargetGroup shared.TargetGroup    `json:"target_group" binding:"required"`
	Filters     AudienceFilters       `json:"filters"`
	Title       string                `json:"title" binding:"required,max=200"`
	Message     string                `json:"message" binding:"required,max=5000"`
	Type        notification.Type     `json:"type"`
	Priority    notification.Priority `json:"priority"`
	ActionURL   string                `json:"action_url"`
	SendEmail   bool                  `json:"send_email_notification"`
}

// AudienceFilters is the wire form of audience narrowing.
type AudienceFilters struct {
	SearchStatus string `json:"search_status"`
	Status       string `json:"status"`
	Industry     string `json:"industry"`
	CompanySize  string `json:"company_size"`
}

func (f AudienceFilters) toShared() shared.AudienceFilters {
	return shared.AudienceFilters{
		SearchStatus: f.SearchStatus,
		Status:       f.Status,
		Industry:     f.Industry,
		CompanySize:  f.CompanySize,
	}
}

// BroadcastSummary reports the outcome of a broadcast send.
type BroadcastSummary struct {
	TotalRecipients int                   `json:"total_recipients"`
	EmailsSent      int                   `json:"emails_sent"`
	TargetGroup     shared.TargetGroup    `json:"target_group"`
	Priority        notification.Priority `json:"priority"`
	Type            notification.Type     `json:"type"`
}

// ScheduleRequest is an admin request to record a future send.
type ScheduleRequest struct {
	ScheduledFor time.Time             `json:"scheduled_for" binding:"required"`
	TargetUsers  []uuid.UUID           `json:"target_users"`
	TargetGroup  shared.TargetGroup    `json:"target_group"`
	Title        string                `json:"title" binding:"required,max=200"`
	Message      string                `json:"message" binding:"required,max=5000"`
	Type         notification.Type     `json:"type"`
	Priority     notification.Priority `json:"priority"`
	ActionURL    string                `json:"action_url"`
	SendEmail    bool                  `json:"send_email_notification"`
}

// Dispatcher expands one administrative action into per-recipient
// notification rows plus push and email side effects. Push and email are
// best effort; only the notification write can fail a recipient, and one
// recipient's failure never aborts the batch.
type Dispatcher interface {
	SendTargeted(ctx context.Context, sender *shared.User, req SendTargetedRequest) (*TargetedSummary, *common.BulkResult, error)
	SendBroadcast(ctx context.Context, sender *shared.User, req BroadcastRequest) (*BroadcastSummary, *common.BulkResult, error)
	Schedule(ctx context.Context, sender *shared.User, req ScheduleRequest) (*ScheduledNotification, error)
	ListScheduled(ctx context.Context, page, pageSize int) ([]ScheduledNotification, *common.Pagination, error)
	DeleteNotifications(ctx context.Context, criteria notification.DeleteCriteria) (int64, error)
	BulkArchive(ctx context.Context, criteria notification.ArchiveCriteria) (int64, error)
	RestoreArchived(ctx context.Context, ids []uuid.UUID, criteria *notification.RestoreCriteria) (int64, error)
}

type dispatcherImpl struct {
	notifications notification.Service
	notifRepo     notification.Repository
	scheduled     Repository
	directory     shared.Directory
	users         shared.UserProvider
	mail          mailer.Mailer
	batchSize     int
	logger        *zap.Logger
}

// NewDispatcher creates the fan-out dispatcher.
func NewDispatcher(
	notifications notification.Service,
	notifRepo notification.Repository,
	scheduled Repository,
	directory shared.Directory,
	users shared.UserProvider,
	mail mailer.Mailer,
	cfg *config.Config,
	logger *zap.Logger,
) Dispatcher {
	return &dispatcherImpl{
		notifications: notifications,
		notifRepo:     notifRepo,
		scheduled:     scheduled,
		directory:     directory,
		users:         users,
		mail:          mail,
		batchSize:     cfg.EmailBatchSize,
		logger:        logger.Named("FanoutDispatcher"),
	}
}

func defaultTypeAndPriority(t notification.Type, p notification.Priority) (notification.Type, notification.Priority, error) {
	if t == "" {
		t = notification.TypeSystemAnnouncement
	}
	if p == "" {
		p = notification.PriorityNormal
	}
	if !t.Valid() {
		return "", "", common.ErrBadRequest.WithDetails(fmt.Sprintf("Unknown notification type: %s", t))
	}
	if !p.Valid() {
		return "", "", common.ErrBadRequest.WithDetails(fmt.Sprintf("Unknown notification priority: %s", p))
	}
	return t, p, nil
}

func adminParams(title, message, actionURL string) notification.Params {
	return notification.Params{
		Admin: &notification.AdminParams{
			Title:     title,
			Message:   message,
			ActionURL: actionURL,
		},
	}
}

// SendTargeted fans a notification out to an explicit recipient list. Push
// events fire per recipient as part of notification creation. Emails, when
// requested, are queued per recipient and delivered in batches afterwards.
func (d *dispatcherImpl) SendTargeted(ctx context.Context, sender *shared.User, req SendTargetedRequest) (*TargetedSummary, *common.BulkResult, error) {
	if len(req.UserIDs) == 0 {
		return nil, nil, common.ErrBadRequest.WithDetails("No users specified.")
	}
	notifType, priority, err := defaultTypeAndPriority(req.Type, req.Priority)
	if err != nil {
		return nil, nil, err
	}

	result := &common.BulkResult{}
	recipients := make([]uuid.UUID, 0, len(req.UserIDs))
	var emails []mailer.Email

	for _, userID := range req.UserIDs {
		_, err := d.notifications.Create(ctx, userID, notifType, priority, adminParams(req.Title, req.Message, req.ActionURL))
		if err != nil {
			d.logger.Warn("Skipping recipient after notification failure",
				zap.String("recipient_id", userID.String()), zap.Error(err))
			result.AddFailure(userID.String(), err.Error())
			continue
		}
		result.Succeeded++
		recipients = append(recipients, userID)

		if req.SendEmail {
			recipient, err := d.users.GetUserByID(ctx, userID)
			if err != nil || recipient.Email == nil || *recipient.Email == "" {
				continue
			}
			emails = append(emails, mailer.Email{
				To:      *recipient.Email,
				Subject: req.Title,
				HTML:    targetedEmailHTML(req.Title, req.Message, priority),
				Tag:     "targeted-notification",
			})
		}
	}

	d.sendEmailBatches(ctx, emails)

	summary := &TargetedSummary{
		NotificationCount: result.Succeeded,
		Recipients:        recipients,
		EmailsSent:        len(emails),
	}
	d.logger.Info("Targeted notification dispatched",
		zap.String("sender_id", sender.ID.String()),
		zap.Int("recipients", result.Succeeded),
		zap.Int("failures", len(result.Failures)),
		zap.Int("emails", len(emails)))
	return summary, result, nil
}

// SendBroadcast resolves a role-based audience and fans out to it. The
// per-user announcement email preference gates email delivery; push and
// notification creation ignore it.
func (d *dispatcherImpl) SendBroadcast(ctx context.Context, sender *shared.User, req BroadcastRequest) (*BroadcastSummary, *common.BulkResult, error) {
	notifType, priority, err := defaultTypeAndPriority(req.Type, req.Priority)
	if err != nil {
		return nil, nil, err
	}
	audience, err := d.directory.ResolveAudience(ctx, req.TargetGroup, req.Filters.toShared())
	if err != nil {
		return nil, nil, err
	}

	result := &common.BulkResult{}
	var emails []mailer.Email

	for i := range audience {
		recipient := &audience[i]
		_, err := d.notifications.Create(ctx, recipient.ID, notifType, priority, adminParams(req.Title, req.Message, req.ActionURL))
		if err != nil {
			d.logger.Warn("Skipping broadcast recipient after notification failure",
				zap.String("recipient_id", recipient.ID.String()), zap.Error(err))
			result.AddFailure(recipient.ID.String(), err.Error())
			continue
		}
		result.Succeeded++

		if req.SendEmail && recipient.CanReceiveAnnouncementEmail() {
			emails = append(emails, mailer.Email{
				To:      *recipient.Email,
				Subject: req.Title,
				HTML:    broadcastEmailHTML(req.Title, req.Message, priority, req.TargetGroup),
				Tag:     "broadcast-notification",
			})
		}
	}

	d.sendEmailBatches(ctx, emails)

	summary := &BroadcastSummary{
		TotalRecipients: result.Succeeded,
		EmailsSent:      len(emails),
		TargetGroup:     req.TargetGroup,
		Priority:        priority,
		Type:            notifType,
	}
	d.logger.Info("Broadcast dispatched",
		zap.String("sender_id", sender.ID.String()),
		zap.String("target_group", string(req.TargetGroup)),
		zap.Int("recipients", result.Succeeded),
		zap.Int("failures", len(result.Failures)),
		zap.Int("emails", len(emails)))
	return summary, result, nil
}

// sendEmailBatches delivers queued emails in fixed-size batches. Each batch
// fires all sends concurrently and waits for every outcome before starting
// the next, so a slow provider cannot stall more than one batch. Failures
// are logged per recipient and swallowed.
func (d *dispatcherImpl) sendEmailBatches(ctx context.Context, emails []mailer.Email) {
	for start := 0; start < len(emails); start += d.batchSize {
		end := start + d.batchSize
		if end > len(emails) {
			end = len(emails)
		}
		batch := emails[start:end]

		var wg sync.WaitGroup
		for _, email := range batch {
			wg.Add(1)
			go func(email mailer.Email) {
				defer wg.Done()
				if err := d.mail.Send(ctx, email); err != nil {
					d.logger.Warn("Best-effort email delivery failed",
						zap.String("to", email.To), zap.Error(err))
				}
			}(email)
		}
		wg.Wait()
	}
}

// Schedule persists a future send intent. Nothing fires here: an external
// scheduler reads the record and performs the dispatch.
func (d *dispatcherImpl) Schedule(ctx context.Context, sender *shared.User, req ScheduleRequest) (*ScheduledNotification, error) {
	if !req.ScheduledFor.After(time.Now()) {
		return nil, common.ErrBadRequest.WithDetails("Scheduled date must be in the future.")
	}
	if len(req.TargetUsers) == 0 && req.TargetGroup == "" {
		return nil, common.ErrBadRequest.WithDetails("Provide target users or a target group.")
	}
	if req.TargetGroup != "" && !req.TargetGroup.Valid() {
		return nil, common.ErrBadRequest.WithDetails(fmt.Sprintf("Unknown target group: %s", req.TargetGroup))
	}
	notifType, priority, err := defaultTypeAndPriority(req.Type, req.Priority)
	if err != nil {
		return nil, err
	}

	sn := &ScheduledNotification{
		ScheduledFor: req.ScheduledFor,
		TargetUsers:  req.TargetUsers,
		TargetGroup:  req.TargetGroup,
		Title:        req.Title,
		Message:      req.Message,
		Type:         notifType,
		Priority:     priority,
		ActionURL:    req.ActionURL,
		SendEmail:    req.SendEmail,
		CreatedByID:  sender.ID,
		Status:       StatusScheduled,
	}
	if err := d.scheduled.Create(ctx, sn); err != nil {
		return nil, err
	}
	d.logger.Info("Notification scheduled",
		zap.String("scheduled_id", sn.ID.String()),
		zap.Time("scheduled_for", sn.ScheduledFor))
	return sn, nil
}

// ListScheduled lists pending scheduled intents.
func (d *dispatcherImpl) ListScheduled(ctx context.Context, page, pageSize int) ([]ScheduledNotification, *common.Pagination, error) {
	return d.scheduled.ListUpcoming(ctx, page, pageSize)
}

// DeleteNotifications hard-deletes notifications by ids, wholesale or age.
func (d *dispatcherImpl) DeleteNotifications(ctx context.Context, criteria notification.DeleteCriteria) (int64, error) {
	count, err := d.notifRepo.DeleteMany(ctx, criteria)
	if err != nil {
		return 0, err
	}
	d.logger.Info("Notifications deleted by admin", zap.Int64("count", count))
	return count, nil
}

// BulkArchive archives notifications matching admin criteria.
func (d *dispatcherImpl) BulkArchive(ctx context.Context, criteria notification.ArchiveCriteria) (int64, error) {
	count, err := d.notifRepo.BulkArchive(ctx, criteria)
	if err != nil {
		return 0, err
	}
	d.logger.Info("Notifications bulk archived", zap.Int64("count", count))
	return count, nil
}

// RestoreArchived unarchives notifications by ids or criteria.
func (d *dispatcherImpl) RestoreArchived(ctx context.Context, ids []uuid.UUID, criteria *notification.RestoreCriteria) (int64, error) {
	count, err := d.notifRepo.Restore(ctx, ids, criteria)
	if err != nil {
		return 0, err
	}
	d.logger.Info("Archived notifications restored", zap.Int64("count", count))
	return count, nil
}

func targetedEmailHTML(title, message string, priority notification.Priority) string {
	return fmt.Sprintf(`<h2>%s</h2>
<p>%s</p>
<p>Priority: %s</p>
<p>Login to your account to view more details.</p>`, title, message, priority)
}

func broadcastEmailHTML(title, message string, priority notification.Priority, group shared.TargetGroup) string {
	scope := string(group)
	if group == shared.TargetGroupAll {
		scope = "system-wide"
	}
	return fmt.Sprintf(`<h2>%s</h2>
<p>%s</p>
<p>Priority: %s</p>
<hr>
<p>This is a %s notification.</p>
<p>Login to your account to manage your notification preferences.</p>`, title, message, priority, scope)
}
