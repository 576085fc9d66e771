package announcement

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupLedgerTest(t *testing.T) (*gorm.DB, Ledger, Repository) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err, "Failed to open in-memory database")

	// Serialize access so concurrent upserts queue on one connection and
	// the race resolves through the unique index, not driver lock errors.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&Announcement{}, &AnnouncementRead{}))
	return db, NewGORMLedger(db), NewGORMRepository(db)
}

func seedAnnouncement(t *testing.T, repo Repository, mutate func(*Announcement)) *Announcement {
	t.Helper()
	a := &Announcement{
		Title:          "Platform maintenance",
		Slug:           "platform-maintenance-" + uuid.NewString()[:8],
		Content:        "We will be down briefly.",
		TargetAudience: AudienceAll,
		Priority:       PriorityNormal,
		Category:       CategoryMaintenance,
		IsActive:       true,
		CreatedByID:    uuid.New(),
		PublishAt:      time.Now().Add(-time.Hour),
	}
	if mutate != nil {
		mutate(a)
	}
	require.NoError(t, repo.Create(context.Background(), a))
	return a
}

func TestLedger_FirstReadIncrementsTotalReads(t *testing.T) {
	db, ledger, repo := setupLedgerTest(t)
	ctx := context.Background()
	a := seedAnnouncement(t, repo, nil)
	userID := uuid.New()

	record, err := ledger.UpsertRead(ctx, a.ID, userID, "", 10, DeviceInfo{Platform: "web"})
	require.NoError(t, err)
	assert.Equal(t, InteractionViewed, record.Interaction, "interaction defaults to viewed")
	assert.Equal(t, int64(10), record.TimeSpent)

	var fresh Announcement
	require.NoError(t, db.First(&fresh, "id = ?", a.ID).Error)
	assert.Equal(t, int64(1), fresh.TotalReads)

	readers, err := ledger.CountReaders(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), readers)
}

func TestLedger_RevisitAccumulatesWithoutDoubleCount(t *testing.T) {
	db, ledger, repo := setupLedgerTest(t)
	ctx := context.Background()
	a := seedAnnouncement(t, repo, nil)
	userID := uuid.New()

	first, err := ledger.UpsertRead(ctx, a.ID, userID, InteractionViewed, 30, DeviceInfo{})
	require.NoError(t, err)

	second, err := ledger.UpsertRead(ctx, a.ID, userID, InteractionClicked, 20, DeviceInfo{})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "revisit must reuse the row")
	assert.Equal(t, InteractionClicked, second.Interaction, "latest interaction wins")
	assert.Equal(t, int64(50), second.TimeSpent, "time spent accumulates")

	var fresh Announcement
	require.NoError(t, db.First(&fresh, "id = ?", a.ID).Error)
	assert.Equal(t, int64(1), fresh.TotalReads, "revisits never touch the counter")

	var rows int64
	require.NoError(t, db.Model(&AnnouncementRead{}).Where("announcement_id = ?", a.ID).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}

func TestLedger_RevisitWithoutInteractionKeepsPrevious(t *testing.T) {
	_, ledger, repo := setupLedgerTest(t)
	ctx := context.Background()
	a := seedAnnouncement(t, repo, nil)
	userID := uuid.New()

	_, err := ledger.UpsertRead(ctx, a.ID, userID, InteractionDismissed, 0, DeviceInfo{})
	require.NoError(t, err)

	record, err := ledger.UpsertRead(ctx, a.ID, userID, "", 5, DeviceInfo{})
	require.NoError(t, err)
	assert.Equal(t, InteractionDismissed, record.Interaction)
}

func TestLedger_ConcurrentFirstReadsYieldOneRow(t *testing.T) {
	db, ledger, repo := setupLedgerTest(t)
	ctx := context.Background()
	a := seedAnnouncement(t, repo, nil)
	userID := uuid.New()

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = ledger.UpsertRead(ctx, a.ID, userID, InteractionViewed, 1, DeviceInfo{})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "attempt %d", i)
	}

	var rows int64
	require.NoError(t, db.Model(&AnnouncementRead{}).
		Where("announcement_id = ? AND user_id = ?", a.ID, userID).Count(&rows).Error)
	assert.Equal(t, int64(1), rows, "unique index must collapse the race to one row")

	var fresh Announcement
	require.NoError(t, db.First(&fresh, "id = ?", a.ID).Error)
	assert.Equal(t, int64(1), fresh.TotalReads, "only the winning insert increments the counter")
}

func TestLedger_StatsFor(t *testing.T) {
	_, ledger, repo := setupLedgerTest(t)
	ctx := context.Background()
	a := seedAnnouncement(t, repo, nil)

	_, err := ledger.UpsertRead(ctx, a.ID, uuid.New(), InteractionViewed, 10, DeviceInfo{})
	require.NoError(t, err)
	_, err = ledger.UpsertRead(ctx, a.ID, uuid.New(), InteractionClicked, 30, DeviceInfo{})
	require.NoError(t, err)
	_, err = ledger.UpsertRead(ctx, a.ID, uuid.New(), InteractionDismissed, 20, DeviceInfo{})
	require.NoError(t, err)

	stats, err := ledger.StatsFor(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalReads)
	assert.InDelta(t, 20.0, stats.AvgTimeSpent, 0.01)
	assert.Equal(t, int64(1), stats.Viewed)
	assert.Equal(t, int64(1), stats.Clicked)
	assert.Equal(t, int64(1), stats.Dismissed)
}

func TestLedger_ReadTimesFor(t *testing.T) {
	_, ledger, repo := setupLedgerTest(t)
	ctx := context.Background()
	read := seedAnnouncement(t, repo, nil)
	unread := seedAnnouncement(t, repo, nil)
	userID := uuid.New()

	_, err := ledger.UpsertRead(ctx, read.ID, userID, InteractionViewed, 0, DeviceInfo{})
	require.NoError(t, err)

	times, err := ledger.ReadTimesFor(ctx, userID, []uuid.UUID{read.ID, unread.ID})
	require.NoError(t, err)
	assert.Contains(t, times, read.ID)
	assert.NotContains(t, times, unread.ID)
}

func TestRepository_DeleteCascadesLedgerRows(t *testing.T) {
	db, ledger, repo := setupLedgerTest(t)
	ctx := context.Background()
	a := seedAnnouncement(t, repo, nil)

	for i := 0; i < 3; i++ {
		_, err := ledger.UpsertRead(ctx, a.ID, uuid.New(), InteractionViewed, 0, DeviceInfo{})
		require.NoError(t, err)
	}

	require.NoError(t, repo.Delete(ctx, a.ID))

	var rows int64
	require.NoError(t, db.Model(&AnnouncementRead{}).Where("announcement_id = ?", a.ID).Count(&rows).Error)
	assert.Equal(t, int64(0), rows, "deleting an announcement removes its ledger rows")
}

func TestAnnouncement_BeforeSaveDeactivatesExpired(t *testing.T) {
	_, _, repo := setupLedgerTest(t)
	past := time.Now().Add(-time.Minute)

	a := seedAnnouncement(t, repo, func(a *Announcement) {
		a.ExpiresAt = &past
	})
	assert.False(t, a.IsActive, "an expired announcement can never be written back as live")
}
