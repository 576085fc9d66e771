// File: internal/notification/repository.go
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"vamarket_backend/internal/common"
)

// ListFilters narrows a per-user notification listing. The listing always
// excludes archived records; archived ones are reached through the archive
// operations instead.
type ListFilters struct {
	UnreadOnly bool
	Type       Type
	Priority   Priority
}

// ArchiveCriteria selects notifications for a bulk archive. At least one
// criterion must be set so an empty request cannot archive everything.
type ArchiveCriteria struct {
	OlderThan *time.Time
	Type      Type
	Read      *bool
	UserID    *uuid.UUID
}

// Validate rejects an empty criteria set.
func (c ArchiveCriteria) Validate() error {
	if c.OlderThan == nil && c.Type == "" && c.Read == nil && c.UserID == nil {
		return common.ErrBadRequest.WithDetails("Bulk archive requires at least one criterion.")
	}
	if c.Type != "" && !c.Type.Valid() {
		return common.ErrBadRequest.WithDetails(fmt.Sprintf("Unknown notification type: %s", c.Type))
	}
	return nil
}

// RestoreCriteria selects archived notifications to restore when no
// explicit id list is given.
type RestoreCriteria struct {
	ArchivedAfter *time.Time
	Type          Type
	UserID        *uuid.UUID
}

// DeleteCriteria selects notifications for an administrative hard delete.
// Exactly one of IDs, DeleteAll or OlderThan must be provided.
type DeleteCriteria struct {
	IDs       []uuid.UUID
	DeleteAll bool
	OlderThan *time.Time
}

// Validate enforces that exactly one selector is present.
func (c DeleteCriteria) Validate() error {
	selectors := 0
	if len(c.IDs) > 0 {
		selectors++
	}
	if c.DeleteAll {
		selectors++
	}
	if c.OlderThan != nil {
		selectors++
	}
	if selectors != 1 {
		return common.ErrBadRequest.WithDetails("Provide exactly one of: notification ids, delete all, or an age cutoff.")
	}
	return nil
}

// StatsRow is one bucket of a grouped count.
type StatsRow struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// UserCount is one user's bucket in a per-user grouped count.
type UserCount struct {
	UserID uuid.UUID `json:"user_id"`
	Count  int64     `json:"count"`
}

// Repository defines persistence for notifications, their archive
// lifecycle and the grouped counts behind admin statistics.
type Repository interface {
	Create(ctx context.Context, notification *Notification) error
	FindByID(ctx context.Context, id, recipientID uuid.UUID) (*Notification, error)
	FindByRecipient(ctx context.Context, recipientID uuid.UUID, filters ListFilters, page, pageSize int) ([]Notification, *common.Pagination, error)
	MarkRead(ctx context.Context, ids []uuid.UUID, recipientID uuid.UUID) (int64, error)
	MarkAllRead(ctx context.Context, recipientID uuid.UUID) ([]uuid.UUID, error)
	UnreadCount(ctx context.Context, recipientID uuid.UUID) (int64, error)
	ArchivedCount(ctx context.Context, recipientID uuid.UUID) (int64, error)
	Delete(ctx context.Context, id, recipientID uuid.UUID) (*Notification, error)
	DeleteMany(ctx context.Context, criteria DeleteCriteria) (int64, error)

	Archive(ctx context.Context, ids []uuid.UUID, recipientID uuid.UUID) (int64, error)
	Unarchive(ctx context.Context, ids []uuid.UUID, recipientID uuid.UUID) (int64, error)
	BulkArchive(ctx context.Context, criteria ArchiveCriteria) (int64, error)
	Restore(ctx context.Context, ids []uuid.UUID, criteria *RestoreCriteria) (int64, error)
	AutoArchiveOld(ctx context.Context, cutoff time.Time) (int64, error)
	ClearArchived(ctx context.Context, recipientID uuid.UUID) (int64, error)

	CountInRange(ctx context.Context, start, end *time.Time) (total int64, read int64, err error)
	CountByType(ctx context.Context, start, end *time.Time) ([]StatsRow, error)
	CountByPriority(ctx context.Context, start, end *time.Time) ([]StatsRow, error)
	Recent(ctx context.Context, limit int) ([]Notification, error)
	ArchivedCountInRange(ctx context.Context, start, end *time.Time, userID *uuid.UUID) (int64, error)
	ArchivedByType(ctx context.Context, start, end *time.Time, userID *uuid.UUID) ([]StatsRow, error)
	TopArchivedUsers(ctx context.Context, limit int) ([]UserCount, error)
	RecentlyArchived(ctx context.Context, limit int) ([]Notification, error)
}

// GORMRepository implements the Repository interface using GORM.
type GORMRepository struct {
	db *gorm.DB
}

// NewGORMRepository creates a new GORM notification repository.
func NewGORMRepository(db *gorm.DB) Repository {
	return &GORMRepository{db: db}
}

// Create inserts a new notification.
func (r *GORMRepository) Create(ctx context.Context, notification *Notification) error {
	if err := r.db.WithContext(ctx).Create(notification).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// FindByID retrieves a notification by id, enforcing ownership.
func (r *GORMRepository) FindByID(ctx context.Context, id, recipientID uuid.UUID) (*Notification, error) {
	var n Notification
	err := r.db.WithContext(ctx).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		First(&n).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("Notification not found or not owned by user.")
		}
		return nil, fmt.Errorf("failed to find notification %s: %w", id, err)
	}
	return &n, nil
}

// FindByRecipient retrieves a paginated, filtered listing for one user,
// newest first. Archived records are excluded.
func (r *GORMRepository) FindByRecipient(ctx context.Context, recipientID uuid.UUID, filters ListFilters, page, pageSize int) ([]Notification, *common.Pagination, error) {
	query := r.db.WithContext(ctx).Model(&Notification{}).
		Where("recipient_id = ? AND archived = ?", recipientID, false)
	if filters.UnreadOnly {
		query = query.Where("read_at IS NULL")
	}
	if filters.Type != "" {
		query = query.Where("type = ?", filters.Type)
	}
	if filters.Priority != "" {
		query = query.Where("priority = ?", filters.Priority)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, nil, fmt.Errorf("counting notifications for user %s failed: %w", recipientID, err)
	}
	pagination := common.NewPagination(total, page, pageSize)

	offset := (page - 1) * pageSize
	if page <= 0 {
		offset = 0
	}

	var notifications []Notification
	err := query.Order("created_at DESC").
		Limit(pageSize).
		Offset(offset).
		Find(&notifications).Error
	if err != nil {
		return nil, nil, fmt.Errorf("fetching notifications for user %s failed: %w", recipientID, err)
	}
	return notifications, pagination, nil
}

// MarkRead marks the given notifications as read for their owner. Records
// already read, archived, or owned by someone else are untouched, so the
// call is idempotent. Returns how many rows changed.
func (r *GORMRepository) MarkRead(ctx context.Context, ids []uuid.UUID, recipientID uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Model(&Notification{}).
		Where("id IN ? AND recipient_id = ? AND read_at IS NULL AND archived = ?", ids, recipientID, false).
		Update("read_at", time.Now().UTC())
	if result.Error != nil {
		return 0, fmt.Errorf("failed to mark notifications read for user %s: %w", recipientID, result.Error)
	}
	return result.RowsAffected, nil
}

// MarkAllRead marks every unread notification of one user as read and
// returns the affected ids.
func (r *GORMRepository) MarkAllRead(ctx context.Context, recipientID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&Notification{}).
		Where("recipient_id = ? AND read_at IS NULL AND archived = ?", recipientID, false).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list unread notifications for user %s: %w", recipientID, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	// Update by the same predicate, not the plucked ids, so rows created
	// between the two statements are not silently marked.
	result := r.db.WithContext(ctx).Model(&Notification{}).
		Where("id IN ? AND recipient_id = ? AND read_at IS NULL", ids, recipientID).
		Update("read_at", time.Now().UTC())
	if result.Error != nil {
		return nil, fmt.Errorf("failed to mark all notifications read for user %s: %w", recipientID, result.Error)
	}
	return ids, nil
}

// UnreadCount counts unread, unarchived notifications for one user.
func (r *GORMRepository) UnreadCount(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Notification{}).
		Where("recipient_id = ? AND read_at IS NULL AND archived = ?", recipientID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications for user %s: %w", recipientID, err)
	}
	return count, nil
}

// ArchivedCount counts archived notifications for one user.
func (r *GORMRepository) ArchivedCount(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Notification{}).
		Where("recipient_id = ? AND archived = ?", recipientID, true).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count archived notifications for user %s: %w", recipientID, err)
	}
	return count, nil
}

// Delete hard-deletes one notification owned by the caller and returns the
// deleted record.
func (r *GORMRepository) Delete(ctx context.Context, id, recipientID uuid.UUID) (*Notification, error) {
	n, err := r.FindByID(ctx, id, recipientID)
	if err != nil {
		return nil, err
	}
	result := r.db.WithContext(ctx).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Delete(&Notification{})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to delete notification %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, common.ErrNotFound.WithDetails("Notification not found or not owned by user.")
	}
	return n, nil
}

// DeleteMany hard-deletes notifications by id list, wholesale, or by age.
func (r *GORMRepository) DeleteMany(ctx context.Context, criteria DeleteCriteria) (int64, error) {
	if err := criteria.Validate(); err != nil {
		return 0, err
	}
	query := r.db.WithContext(ctx)
	switch {
	case len(criteria.IDs) > 0:
		query = query.Where("id IN ?", criteria.IDs)
	case criteria.OlderThan != nil:
		query = query.Where("created_at < ?", *criteria.OlderThan)
	case criteria.DeleteAll:
		query = query.Where("1 = 1")
	}
	result := query.Delete(&Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete notifications: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Archive flags the given notifications archived for their owner. Read
// state is left untouched.
func (r *GORMRepository) Archive(ctx context.Context, ids []uuid.UUID, recipientID uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Model(&Notification{}).
		Where("id IN ? AND recipient_id = ? AND archived = ?", ids, recipientID, false).
		Updates(map[string]interface{}{
			"archived":    true,
			"archived_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to archive notifications for user %s: %w", recipientID, result.Error)
	}
	return result.RowsAffected, nil
}

// Unarchive restores the given archived notifications for their owner.
// read_at is never modified, so prior read state survives the round trip.
func (r *GORMRepository) Unarchive(ctx context.Context, ids []uuid.UUID, recipientID uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Model(&Notification{}).
		Where("id IN ? AND recipient_id = ? AND archived = ?", ids, recipientID, true).
		Updates(map[string]interface{}{
			"archived":    false,
			"archived_at": nil,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to unarchive notifications for user %s: %w", recipientID, result.Error)
	}
	return result.RowsAffected, nil
}

// BulkArchive archives every unarchived notification matching the criteria.
func (r *GORMRepository) BulkArchive(ctx context.Context, criteria ArchiveCriteria) (int64, error) {
	if err := criteria.Validate(); err != nil {
		return 0, err
	}
	query := r.db.WithContext(ctx).Model(&Notification{}).Where("archived = ?", false)
	if criteria.OlderThan != nil {
		query = query.Where("created_at < ?", *criteria.OlderThan)
	}
	if criteria.Type != "" {
		query = query.Where("type = ?", criteria.Type)
	}
	if criteria.Read != nil {
		if *criteria.Read {
			query = query.Where("read_at IS NOT NULL")
		} else {
			query = query.Where("read_at IS NULL")
		}
	}
	if criteria.UserID != nil {
		query = query.Where("recipient_id = ?", *criteria.UserID)
	}
	result := query.Updates(map[string]interface{}{
		"archived":    true,
		"archived_at": time.Now().UTC(),
	})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to bulk archive notifications: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Restore unarchives notifications selected by id list or by criteria.
func (r *GORMRepository) Restore(ctx context.Context, ids []uuid.UUID, criteria *RestoreCriteria) (int64, error) {
	query := r.db.WithContext(ctx).Model(&Notification{}).Where("archived = ?", true)
	switch {
	case len(ids) > 0:
		query = query.Where("id IN ?", ids)
	case criteria != nil:
		if criteria.ArchivedAfter != nil {
			query = query.Where("archived_at > ?", *criteria.ArchivedAfter)
		}
		if criteria.Type != "" {
			query = query.Where("type = ?", criteria.Type)
		}
		if criteria.UserID != nil {
			query = query.Where("recipient_id = ?", *criteria.UserID)
		}
	default:
		return 0, common.ErrBadRequest.WithDetails("Restore requires notification ids or criteria.")
	}
	result := query.Updates(map[string]interface{}{
		"archived":    false,
		"archived_at": nil,
	})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to restore archived notifications: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// AutoArchiveOld archives every notification read before the cutoff.
// Unread notifications are never swept, no matter their age.
func (r *GORMRepository) AutoArchiveOld(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&Notification{}).
		Where("read_at IS NOT NULL AND read_at < ? AND archived = ?", cutoff, false).
		Updates(map[string]interface{}{
			"archived":    true,
			"archived_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to auto-archive old notifications: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// ClearArchived hard-deletes every archived notification of one user.
func (r *GORMRepository) ClearArchived(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("recipient_id = ? AND archived = ?", recipientID, true).
		Delete(&Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to clear archived notifications for user %s: %w", recipientID, result.Error)
	}
	return result.RowsAffected, nil
}

func rangeScope(query *gorm.DB, column string, start, end *time.Time) *gorm.DB {
	if start != nil {
		query = query.Where(column+" >= ?", *start)
	}
	if end != nil {
		query = query.Where(column+" <= ?", *end)
	}
	return query
}

// CountInRange returns total and read counts over a creation date range.
func (r *GORMRepository) CountInRange(ctx context.Context, start, end *time.Time) (int64, int64, error) {
	var total, read int64
	query := rangeScope(r.db.WithContext(ctx).Model(&Notification{}), "created_at", start, end)
	if err := query.Count(&total).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	readQuery := rangeScope(r.db.WithContext(ctx).Model(&Notification{}), "created_at", start, end).
		Where("read_at IS NOT NULL")
	if err := readQuery.Count(&read).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to count read notifications: %w", err)
	}
	return total, read, nil
}

// CountByType groups notification counts by type over a date range.
func (r *GORMRepository) CountByType(ctx context.Context, start, end *time.Time) ([]StatsRow, error) {
	var rows []StatsRow
	err := rangeScope(r.db.WithContext(ctx).Model(&Notification{}), "created_at", start, end).
		Select("type AS key, COUNT(*) AS count").
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to group notifications by type: %w", err)
	}
	return rows, nil
}

// CountByPriority groups notification counts by priority over a date range.
func (r *GORMRepository) CountByPriority(ctx context.Context, start, end *time.Time) ([]StatsRow, error) {
	var rows []StatsRow
	err := rangeScope(r.db.WithContext(ctx).Model(&Notification{}), "created_at", start, end).
		Select("priority AS key, COUNT(*) AS count").
		Group("priority").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to group notifications by priority: %w", err)
	}
	return rows, nil
}

// Recent returns the newest notifications across all users.
func (r *GORMRepository) Recent(ctx context.Context, limit int) ([]Notification, error) {
	var notifications []Notification
	err := r.db.WithContext(ctx).Model(&Notification{}).
		Order("created_at DESC").
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent notifications: %w", err)
	}
	return notifications, nil
}

// ArchivedCountInRange counts archived notifications, optionally scoped to
// one user and an archive date range.
func (r *GORMRepository) ArchivedCountInRange(ctx context.Context, start, end *time.Time, userID *uuid.UUID) (int64, error) {
	query := rangeScope(r.db.WithContext(ctx).Model(&Notification{}).Where("archived = ?", true),
		"archived_at", start, end)
	if userID != nil {
		query = query.Where("recipient_id = ?", *userID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count archived notifications: %w", err)
	}
	return count, nil
}

// ArchivedByType groups archived notification counts by type.
func (r *GORMRepository) ArchivedByType(ctx context.Context, start, end *time.Time, userID *uuid.UUID) ([]StatsRow, error) {
	query := rangeScope(r.db.WithContext(ctx).Model(&Notification{}).Where("archived = ?", true),
		"archived_at", start, end)
	if userID != nil {
		query = query.Where("recipient_id = ?", *userID)
	}
	var rows []StatsRow
	err := query.Select("type AS key, COUNT(*) AS count").
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to group archived notifications by type: %w", err)
	}
	return rows, nil
}

// TopArchivedUsers returns the users with the most archived notifications.
func (r *GORMRepository) TopArchivedUsers(ctx context.Context, limit int) ([]UserCount, error) {
	var rows []UserCount
	err := r.db.WithContext(ctx).Model(&Notification{}).
		Where("archived = ?", true).
		Select("recipient_id AS user_id, COUNT(*) AS count").
		Group("recipient_id").
		Order("count DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to rank archived notification users: %w", err)
	}
	return rows, nil
}

// RecentlyArchived returns the most recently archived notifications.
func (r *GORMRepository) RecentlyArchived(ctx context.Context, limit int) ([]Notification, error) {
	var notifications []Notification
	err := r.db.WithContext(ctx).Model(&Notification{}).
		Where("archived = ?", true).
		Order("archived_at DESC").
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recently archived notifications: %w", err)
	}
	return notifications, nil
}
