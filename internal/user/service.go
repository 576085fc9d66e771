// File: internal/user/service.go
package user

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vamarket_backend/internal/common"
	"vamarket_backend/internal/shared"
)

// ServiceImplementation implements shared.UserProvider and shared.Directory.
type ServiceImplementation struct {
	repo   Repository
	logger *zap.Logger
}

var _ shared.UserProvider = (*ServiceImplementation)(nil)
var _ shared.Directory = (*ServiceImplementation)(nil)

// NewService creates a new user service.
func NewService(repo Repository, logger *zap.Logger) *ServiceImplementation {
	return &ServiceImplementation{
		repo:   repo,
		logger: logger,
	}
}

// GetUserByID retrieves a user by ID.
func (s *ServiceImplementation) GetUserByID(ctx context.Context, id uuid.UUID) (*shared.User, error) {
	dbUser, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return ToSharedUser(dbUser), nil
}

// GetUserByFirebaseUID retrieves a user by their Firebase UID.
func (s *ServiceImplementation) GetUserByFirebaseUID(ctx context.Context, firebaseUID string) (*shared.User, error) {
	dbUser, err := s.repo.FindByFirebaseUID(ctx, firebaseUID)
	if err != nil {
		return nil, err
	}
	return ToSharedUser(dbUser), nil
}

// ResolveAudience expands a target group (plus optional filters) into the
// concrete list of recipients. Suspended users are never included.
func (s *ServiceImplementation) ResolveAudience(ctx context.Context, group shared.TargetGroup, filters shared.AudienceFilters) ([]shared.User, error) {
	if !group.Valid() {
		return nil, common.ErrBadRequest.WithDetails(fmt.Sprintf("Unknown target group: %s", group))
	}

	var (
		dbUsers []User
		err     error
	)
	switch group {
	case shared.TargetGroupAll:
		dbUsers, err = s.repo.FindAll(ctx)
	case shared.TargetGroupAdmins:
		dbUsers, err = s.repo.FindAdmins(ctx)
	case shared.TargetGroupVAs:
		dbUsers, err = s.repo.FindVAs(ctx, filters)
	case shared.TargetGroupBusinesses:
		dbUsers, err = s.repo.FindBusinesses(ctx, filters)
	}
	if err != nil {
		s.logger.Error("Failed to resolve broadcast audience",
			zap.String("group", string(group)), zap.Error(err))
		return nil, err
	}

	resolved := make([]shared.User, 0, len(dbUsers))
	for i := range dbUsers {
		resolved = append(resolved, *ToSharedUser(&dbUsers[i]))
	}
	return resolved, nil
}

// CountAudience sizes an announcement audience for reach statistics.
func (s *ServiceImplementation) CountAudience(ctx context.Context, targetAudience string) (int64, error) {
	return s.repo.CountByAudience(ctx, targetAudience)
}
