// File: internal/dispatch/stats.go
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vamarket_backend/internal/notification"
)

// NotificationStats is the admin overview of notification activity over a
// date range.
type NotificationStats struct {
	Total      int64                   `json:"total"`
	Read       int64                   `json:"read"`
	Unread     int64                   `json:"unread"`
	ReadRate   string                  `json:"read_rate"`
	ByType     map[string]int64        `json:"by_type"`
	ByPriority map[string]int64        `json:"by_priority"`
	Recent     []notification.Response `json:"recent_notifications"`
}

// ArchivedStats is the admin overview of archived notifications.
type ArchivedStats struct {
	TotalArchived    int64                    `json:"total_archived"`
	ByType           map[string]int64         `json:"by_type"`
	TopUsers         []notification.UserCount `json:"top_users_by_archived"`
	RecentlyArchived []notification.Response  `json:"recently_archived"`
}

// StatsService aggregates counts over the notification store. Everything is
// recomputed from rows; no counters are trusted.
type StatsService interface {
	NotificationStats(ctx context.Context, start, end *time.Time) (*NotificationStats, error)
	ArchivedStats(ctx context.Context, start, end *time.Time, userID *uuid.UUID) (*ArchivedStats, error)
}

type statsServiceImpl struct {
	repo   notification.Repository
	logger *zap.Logger
}

// NewStatsService creates the stats aggregator.
func NewStatsService(repo notification.Repository, logger *zap.Logger) StatsService {
	return &statsServiceImpl{
		repo:   repo,
		logger: logger.Named("StatsAggregator"),
	}
}

const recentLimit = 10

func rowsToMap(rows []notification.StatsRow) map[string]int64 {
	m := make(map[string]int64, len(rows))
	for _, row := range rows {
		m[row.Key] = row.Count
	}
	return m
}

func toResponses(notifications []notification.Notification) []notification.Response {
	responses := make([]notification.Response, 0, len(notifications))
	for i := range notifications {
		responses = append(responses, notification.ToResponse(&notifications[i]))
	}
	return responses
}

// NotificationStats computes totals, read rate and grouped counts over a
// creation date range.
func (s *statsServiceImpl) NotificationStats(ctx context.Context, start, end *time.Time) (*NotificationStats, error) {
	total, read, err := s.repo.CountInRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	byType, err := s.repo.CountByType(ctx, start, end)
	if err != nil {
		return nil, err
	}
	byPriority, err := s.repo.CountByPriority(ctx, start, end)
	if err != nil {
		return nil, err
	}
	recent, err := s.repo.Recent(ctx, recentLimit)
	if err != nil {
		return nil, err
	}

	readRate := "0%"
	if total > 0 {
		readRate = fmt.Sprintf("%.2f%%", float64(read)/float64(total)*100)
	}
	return &NotificationStats{
		Total:      total,
		Read:       read,
		Unread:     total - read,
		ReadRate:   readRate,
		ByType:     rowsToMap(byType),
		ByPriority: rowsToMap(byPriority),
		Recent:     toResponses(recent),
	}, nil
}

// ArchivedStats computes archive counts over an archive date range,
// optionally scoped to one user.
func (s *statsServiceImpl) ArchivedStats(ctx context.Context, start, end *time.Time, userID *uuid.UUID) (*ArchivedStats, error) {
	total, err := s.repo.ArchivedCountInRange(ctx, start, end, userID)
	if err != nil {
		return nil, err
	}
	byType, err := s.repo.ArchivedByType(ctx, start, end, userID)
	if err != nil {
		return nil, err
	}
	topUsers, err := s.repo.TopArchivedUsers(ctx, recentLimit)
	if err != nil {
		return nil, err
	}
	recent, err := s.repo.RecentlyArchived(ctx, recentLimit)
	if err != nil {
		return nil, err
	}

	return &ArchivedStats{
		TotalArchived:    total,
		ByType:           rowsToMap(byType),
		TopUsers:         topUsers,
		RecentlyArchived: toResponses(recent),
	}, nil
}
