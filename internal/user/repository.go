// File: internal/user/repository.go
package user

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"vamarket_backend/internal/common"
	"vamarket_backend/internal/shared"
)

// Repository defines the interface for user data operations.
type Repository interface {
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByFirebaseUID(ctx context.Context, firebaseUID string) (*User, error)
	Update(ctx context.Context, user *User) error

	// Audience queries. All of them return only non-suspended users.
	FindAll(ctx context.Context) ([]User, error)
	FindAdmins(ctx context.Context) ([]User, error)
	FindVAs(ctx context.Context, filters shared.AudienceFilters) ([]User, error)
	FindBusinesses(ctx context.Context, filters shared.AudienceFilters) ([]User, error)
	CountByAudience(ctx context.Context, targetAudience string) (int64, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewGORMRepository creates a new GORM user repository.
func NewGORMRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// Create inserts a new user record into the database.
func (r *gormRepository) Create(ctx context.Context, user *User) error {
	if user.Email != nil {
		*user.Email = strings.ToLower(strings.TrimSpace(*user.Email))
	}
	err := r.db.WithContext(ctx).Create(user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(err.Error(), "unique constraint") ||
			strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
			return common.ErrConflict.WithDetails("User with this email or Firebase UID already exists.")
		}
		return err
	}
	return nil
}

// FindByID retrieves a user by their ID.
func (r *gormRepository) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	var userModel User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&userModel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("User not found.")
		}
		return nil, err
	}
	return &userModel, nil
}

// FindByEmail retrieves a user by their email address.
func (r *gormRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var userModel User
	normalizedEmail := strings.ToLower(strings.TrimSpace(email))
	err := r.db.WithContext(ctx).Where("email = ?", normalizedEmail).First(&userModel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("User not found with this email.")
		}
		return nil, err
	}
	return &userModel, nil
}

// FindByFirebaseUID retrieves a user by their Firebase UID.
func (r *gormRepository) FindByFirebaseUID(ctx context.Context, firebaseUID string) (*User, error) {
	var userModel User
	err := r.db.WithContext(ctx).Where("firebase_uid = ?", firebaseUID).First(&userModel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("User not found with this Firebase UID.")
		}
		return nil, err
	}
	return &userModel, nil
}

// Update saves changes to an existing user record.
func (r *gormRepository) Update(ctx context.Context, user *User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

func (r *gormRepository) activeUsers(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&User{}).Where("is_suspended = ?", false)
}

// FindAll returns every non-suspended user.
func (r *gormRepository) FindAll(ctx context.Context) ([]User, error) {
	var users []User
	if err := r.activeUsers(ctx).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// FindAdmins returns every non-suspended administrator.
func (r *gormRepository) FindAdmins(ctx context.Context) ([]User, error) {
	var users []User
	if err := r.activeUsers(ctx).Where("is_admin = ?", true).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// FindVAs returns non-suspended VA users, optionally narrowed by the
// search status and profile status of their VA profile.
func (r *gormRepository) FindVAs(ctx context.Context, filters shared.AudienceFilters) ([]User, error) {
	query := r.activeUsers(ctx).Where("users.role = ?", common.RoleVA)
	if filters.SearchStatus != "" || filters.Status != "" {
		query = query.Joins("JOIN va_profiles ON va_profiles.user_id = users.id")
		if filters.SearchStatus != "" {
			query = query.Where("va_profiles.search_status = ?", filters.SearchStatus)
		}
		if filters.Status != "" {
			query = query.Where("va_profiles.status = ?", filters.Status)
		}
	}
	var users []User
	if err := query.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// FindBusinesses returns non-suspended business users, optionally narrowed
// by industry and company size of their business profile.
func (r *gormRepository) FindBusinesses(ctx context.Context, filters shared.AudienceFilters) ([]User, error) {
	query := r.activeUsers(ctx).Where("users.role = ?", common.RoleBusiness)
	if filters.Industry != "" || filters.CompanySize != "" {
		query = query.Joins("JOIN business_profiles ON business_profiles.user_id = users.id")
		if filters.Industry != "" {
			query = query.Where("business_profiles.industry = ?", filters.Industry)
		}
		if filters.CompanySize != "" {
			query = query.Where("business_profiles.company_size = ?", filters.CompanySize)
		}
	}
	var users []User
	if err := query.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// CountByAudience sizes an announcement audience ("va", "business" or
// "all") over non-suspended users.
func (r *gormRepository) CountByAudience(ctx context.Context, targetAudience string) (int64, error) {
	query := r.activeUsers(ctx)
	switch targetAudience {
	case common.RoleVA, common.RoleBusiness:
		query = query.Where("role = ?", targetAudience)
	case "all", "":
		// no role restriction
	default:
		return 0, common.ErrBadRequest.WithDetails("Unknown target audience: " + targetAudience)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
