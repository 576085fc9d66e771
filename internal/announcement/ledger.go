// File: internal/announcement/ledger.go
package announcement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReadStats summarizes the ledger rows of one announcement.
type ReadStats struct {
	TotalReads   int64   `json:"total_reads"`
	AvgTimeSpent float64 `json:"avg_time_spent"`
	Viewed       int64   `json:"viewed"`
	Clicked      int64   `json:"clicked"`
	Dismissed    int64   `json:"dismissed"`
}

// Ledger is the per-user read receipt store for announcements. Its upsert
// is idempotent under concurrent invocation: the unique index on
// (announcement_id, user_id) arbitrates races, not application locking.
type Ledger interface {
	UpsertRead(ctx context.Context, announcementID, userID uuid.UUID, interaction Interaction, timeSpent int64, device DeviceInfo) (*AnnouncementRead, error)
	HasRead(ctx context.Context, announcementID, userID uuid.UUID) (bool, error)
	ReadTimesFor(ctx context.Context, userID uuid.UUID, announcementIDs []uuid.UUID) (map[uuid.UUID]time.Time, error)
	StatsFor(ctx context.Context, announcementID uuid.UUID) (*ReadStats, error)
	CountReaders(ctx context.Context, announcementID uuid.UUID) (int64, error)
}

// GORMLedger implements the Ledger using GORM.
type GORMLedger struct {
	db *gorm.DB
}

// NewGORMLedger creates a new GORM read ledger.
func NewGORMLedger(db *gorm.DB) Ledger {
	return &GORMLedger{db: db}
}

func isDuplicateKeyErr(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value violates unique constraint") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

// UpsertRead records that a user has read an announcement.
//
// A revisit updates the existing row: read_at moves to now, the interaction
// is overwritten when provided, and time spent accumulates. The counter is
// not touched on a revisit.
//
// A first read inserts the row and bumps the announcement's total_reads by
// one with a single SQL increment. When a concurrent first read wins the
// insert race, the unique index rejects ours; that is the expected outcome,
// not an error, and the now-existing row is fetched and returned.
func (l *GORMLedger) UpsertRead(ctx context.Context, announcementID, userID uuid.UUID, interaction Interaction, timeSpent int64, device DeviceInfo) (*AnnouncementRead, error) {
	existing, err := l.find(ctx, announcementID, userID)
	if err == nil {
		existing.ReadAt = time.Now().UTC()
		if interaction != "" {
			existing.Interaction = interaction
		}
		existing.TimeSpent += timeSpent
		if err := l.db.WithContext(ctx).Save(existing).Error; err != nil {
			return nil, fmt.Errorf("failed to update read record: %w", err)
		}
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up read record: %w", err)
	}

	if interaction == "" {
		interaction = InteractionViewed
	}
	record := &AnnouncementRead{
		AnnouncementID: announcementID,
		UserID:         userID,
		ReadAt:         time.Now().UTC(),
		Interaction:    interaction,
		TimeSpent:      timeSpent,
		DeviceInfo:     device,
	}
	err = l.db.WithContext(ctx).Create(record).Error
	if err != nil {
		if isDuplicateKeyErr(err) {
			// Lost the race to a concurrent first read. The row exists now;
			// return it without incrementing the counter again.
			winner, ferr := l.find(ctx, announcementID, userID)
			if ferr != nil {
				return nil, fmt.Errorf("failed to fetch read record after conflict: %w", ferr)
			}
			return winner, nil
		}
		return nil, fmt.Errorf("failed to create read record: %w", err)
	}

	// The insert won, so this user is a new unique reader. The counter is
	// advisory; statistics recompute reader counts from the ledger.
	incErr := l.db.WithContext(ctx).Model(&Announcement{}).
		Where("id = ?", announcementID).
		UpdateColumn("total_reads", gorm.Expr("total_reads + 1")).Error
	if incErr != nil {
		return nil, fmt.Errorf("failed to increment total reads for announcement %s: %w", announcementID, incErr)
	}
	return record, nil
}

func (l *GORMLedger) find(ctx context.Context, announcementID, userID uuid.UUID) (*AnnouncementRead, error) {
	var record AnnouncementRead
	err := l.db.WithContext(ctx).
		Where("announcement_id = ? AND user_id = ?", announcementID, userID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// HasRead reports whether a user has a ledger row for an announcement.
func (l *GORMLedger) HasRead(ctx context.Context, announcementID, userID uuid.UUID) (bool, error) {
	var count int64
	err := l.db.WithContext(ctx).Model(&AnnouncementRead{}).
		Where("announcement_id = ? AND user_id = ?", announcementID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check read record: %w", err)
	}
	return count > 0, nil
}

// ReadTimesFor returns, for one user, the read timestamps of the given
// announcements. Announcements without a ledger row are absent.
func (l *GORMLedger) ReadTimesFor(ctx context.Context, userID uuid.UUID, announcementIDs []uuid.UUID) (map[uuid.UUID]time.Time, error) {
	result := make(map[uuid.UUID]time.Time, len(announcementIDs))
	if len(announcementIDs) == 0 {
		return result, nil
	}
	var records []AnnouncementRead
	err := l.db.WithContext(ctx).
		Where("user_id = ? AND announcement_id IN ?", userID, announcementIDs).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch read records for user %s: %w", userID, err)
	}
	for i := range records {
		result[records[i].AnnouncementID] = records[i].ReadAt
	}
	return result, nil
}

// StatsFor aggregates the ledger rows of one announcement.
func (l *GORMLedger) StatsFor(ctx context.Context, announcementID uuid.UUID) (*ReadStats, error) {
	var stats ReadStats
	err := l.db.WithContext(ctx).Model(&AnnouncementRead{}).
		Where("announcement_id = ?", announcementID).
		Select(
			"COUNT(*) AS total_reads, " +
				"COALESCE(AVG(time_spent), 0) AS avg_time_spent, " +
				"COALESCE(SUM(CASE WHEN interaction = 'viewed' THEN 1 ELSE 0 END), 0) AS viewed, " +
				"COALESCE(SUM(CASE WHEN interaction = 'clicked' THEN 1 ELSE 0 END), 0) AS clicked, " +
				"COALESCE(SUM(CASE WHEN interaction = 'dismissed' THEN 1 ELSE 0 END), 0) AS dismissed").
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate read stats for announcement %s: %w", announcementID, err)
	}
	return &stats, nil
}

// CountReaders counts the unique readers of one announcement. This is the
// authoritative figure; Announcement.TotalReads is advisory.
func (l *GORMLedger) CountReaders(ctx context.Context, announcementID uuid.UUID) (int64, error) {
	var count int64
	err := l.db.WithContext(ctx).Model(&AnnouncementRead{}).
		Where("announcement_id = ?", announcementID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count readers for announcement %s: %w", announcementID, err)
	}
	return count, nil
}
