// File: internal/announcement/repository.go
package announcement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"vamarket_backend/internal/common"
	"vamarket_backend/internal/shared"
)

// ListFilters narrows the end-user announcement listing.
type ListFilters struct {
	Priority   Priority
	Category   Category
	OnlyUnread bool
}

// AdminStatusFilter selects which lifecycle states an admin listing shows.
type AdminStatusFilter string

const (
	AdminFilterAll      AdminStatusFilter = "all"
	AdminFilterActive   AdminStatusFilter = "active"
	AdminFilterInactive AdminStatusFilter = "inactive"
	AdminFilterExpired  AdminStatusFilter = "expired"
)

// AdminFilters narrows the admin management listing.
type AdminFilters struct {
	Status         AdminStatusFilter
	TargetAudience TargetAudience
	Priority       Priority
	Category       Category
}

// IDPriority is a projection of an announcement for unread summaries.
type IDPriority struct {
	ID       uuid.UUID
	Priority Priority
}

// Repository defines persistence for announcements and their visibility
// rules. Read-ledger persistence lives in the Ledger.
type Repository interface {
	Create(ctx context.Context, a *Announcement) error
	FindByID(ctx context.Context, id uuid.UUID) (*Announcement, error)
	FindBySlug(ctx context.Context, slug string) (*Announcement, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Announcement, error)
	FindVisibleFor(ctx context.Context, user *shared.User, filters ListFilters, page, pageSize int) ([]Announcement, *common.Pagination, error)
	FindAllForAdmin(ctx context.Context, filters AdminFilters, page, pageSize int) ([]Announcement, *common.Pagination, error)
	VisibleSummaries(ctx context.Context, user *shared.User) ([]IDPriority, error)
	Update(ctx context.Context, a *Announcement) error
	Delete(ctx context.Context, id uuid.UUID) error
	ArchiveExpired(ctx context.Context) (int64, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
}

// GORMRepository implements the Repository interface using GORM.
type GORMRepository struct {
	db *gorm.DB
}

// NewGORMRepository creates a new GORM announcement repository.
func NewGORMRepository(db *gorm.DB) Repository {
	return &GORMRepository{db: db}
}

// Create inserts a new announcement.
func (r *GORMRepository) Create(ctx context.Context, a *Announcement) error {
	err := r.db.WithContext(ctx).Create(a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "unique constraint") {
			return common.ErrConflict.WithDetails("An announcement with this slug already exists.")
		}
		return fmt.Errorf("failed to create announcement: %w", err)
	}
	return nil
}

// FindByID retrieves an announcement by id.
func (r *GORMRepository) FindByID(ctx context.Context, id uuid.UUID) (*Announcement, error) {
	var a Announcement
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("Announcement not found.")
		}
		return nil, fmt.Errorf("failed to find announcement %s: %w", id, err)
	}
	return &a, nil
}

// FindBySlug retrieves an announcement by its slug.
func (r *GORMRepository) FindBySlug(ctx context.Context, slugValue string) (*Announcement, error) {
	var a Announcement
	err := r.db.WithContext(ctx).Where("slug = ?", slugValue).First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("Announcement not found.")
		}
		return nil, fmt.Errorf("failed to find announcement by slug %s: %w", slugValue, err)
	}
	return &a, nil
}

// FindByIDs retrieves announcements by id, in no particular order.
func (r *GORMRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Announcement, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var announcements []Announcement
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&announcements).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch announcements by ids: %w", err)
	}
	return announcements, nil
}

// SlugExists reports whether a slug is already taken.
func (r *GORMRepository) SlugExists(ctx context.Context, slugValue string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Announcement{}).
		Where("slug = ?", slugValue).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check slug %s: %w", slugValue, err)
	}
	return count > 0, nil
}

// visibleScope applies the full visibility rule: active, published, not
// expired, and audience matching the caller's role. Admins bypass the rule.
func (r *GORMRepository) visibleScope(ctx context.Context, user *shared.User) *gorm.DB {
	now := time.Now().UTC()
	query := r.db.WithContext(ctx).Model(&Announcement{})
	if user.IsAdmin {
		return query
	}
	query = query.
		Where("is_active = ?", true).
		Where("publish_at <= ?", now).
		Where("expires_at IS NULL OR expires_at > ?", now)
	switch user.Role {
	case common.RoleVA:
		query = query.Where("target_audience IN ?", []TargetAudience{AudienceVA, AudienceAll})
	case common.RoleBusiness:
		query = query.Where("target_audience IN ?", []TargetAudience{AudienceBusiness, AudienceAll})
	default:
		query = query.Where("target_audience = ?", AudienceAll)
	}
	return query
}

// FindVisibleFor lists the announcements one user may see, urgent first,
// newest first within a priority.
func (r *GORMRepository) FindVisibleFor(ctx context.Context, user *shared.User, filters ListFilters, page, pageSize int) ([]Announcement, *common.Pagination, error) {
	query := r.visibleScope(ctx, user)
	if filters.Priority != "" {
		query = query.Where("priority = ?", filters.Priority)
	}
	if filters.Category != "" {
		query = query.Where("category = ?", filters.Category)
	}
	if filters.OnlyUnread {
		query = query.Where(
			"NOT EXISTS (SELECT 1 FROM announcement_reads ar WHERE ar.announcement_id = announcements.id AND ar.user_id = ?)",
			user.ID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, nil, fmt.Errorf("counting announcements for user %s failed: %w", user.ID, err)
	}
	pagination := common.NewPagination(total, page, pageSize)

	offset := (page - 1) * pageSize
	if page <= 0 {
		offset = 0
	}

	var announcements []Announcement
	err := query.Order(priorityRankSQL + " DESC").
		Order("created_at DESC").
		Limit(pageSize).
		Offset(offset).
		Find(&announcements).Error
	if err != nil {
		return nil, nil, fmt.Errorf("fetching announcements for user %s failed: %w", user.ID, err)
	}
	return announcements, pagination, nil
}

// FindAllForAdmin lists announcements for management, newest first.
func (r *GORMRepository) FindAllForAdmin(ctx context.Context, filters AdminFilters, page, pageSize int) ([]Announcement, *common.Pagination, error) {
	now := time.Now().UTC()
	query := r.db.WithContext(ctx).Model(&Announcement{})

	switch filters.Status {
	case AdminFilterActive:
		query = query.Where("is_active = ?", true).
			Where("expires_at IS NULL OR expires_at > ?", now)
	case AdminFilterInactive:
		query = query.Where("is_active = ?", false)
	case AdminFilterExpired:
		// Expired while still flagged active: not yet swept.
		query = query.Where("is_active = ? AND expires_at IS NOT NULL AND expires_at <= ?", true, now)
	case AdminFilterAll, "":
		// no status restriction
	default:
		return nil, nil, common.ErrBadRequest.WithDetails(fmt.Sprintf("Unknown status filter: %s", filters.Status))
	}
	if filters.TargetAudience != "" {
		query = query.Where("target_audience = ?", filters.TargetAudience)
	}
	if filters.Priority != "" {
		query = query.Where("priority = ?", filters.Priority)
	}
	if filters.Category != "" {
		query = query.Where("category = ?", filters.Category)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, nil, fmt.Errorf("counting announcements for admin failed: %w", err)
	}
	pagination := common.NewPagination(total, page, pageSize)

	offset := (page - 1) * pageSize
	if page <= 0 {
		offset = 0
	}

	var announcements []Announcement
	err := query.Order("created_at DESC").
		Limit(pageSize).
		Offset(offset).
		Find(&announcements).Error
	if err != nil {
		return nil, nil, fmt.Errorf("fetching announcements for admin failed: %w", err)
	}
	return announcements, pagination, nil
}

// VisibleSummaries projects id and priority of every announcement visible
// to one user, for unread-count summaries.
func (r *GORMRepository) VisibleSummaries(ctx context.Context, user *shared.User) ([]IDPriority, error) {
	var rows []IDPriority
	err := r.visibleScope(ctx, user).
		Select("id, priority").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("fetching visible announcement summaries for user %s failed: %w", user.ID, err)
	}
	return rows, nil
}

// Update saves changes to an announcement.
func (r *GORMRepository) Update(ctx context.Context, a *Announcement) error {
	if err := r.db.WithContext(ctx).Save(a).Error; err != nil {
		return fmt.Errorf("failed to update announcement %s: %w", a.ID, err)
	}
	return nil
}

// Delete removes an announcement and cascades its read-ledger rows in one
// transaction.
func (r *GORMRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ?", id).Delete(&Announcement{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete announcement %s: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return common.ErrNotFound.WithDetails("Announcement not found.")
		}
		if err := tx.Where("announcement_id = ?", id).Delete(&AnnouncementRead{}).Error; err != nil {
			return fmt.Errorf("failed to delete read records for announcement %s: %w", id, err)
		}
		return nil
	})
}

// ArchiveExpired flips is_active off for every announcement whose expiry
// has passed. Returns how many were deactivated.
func (r *GORMRepository) ArchiveExpired(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Model(&Announcement{}).
		Where("is_active = ? AND expires_at IS NOT NULL AND expires_at <= ?", true, time.Now().UTC()).
		Update("is_active", false)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to archive expired announcements: %w", result.Error)
	}
	return result.RowsAffected, nil
}
