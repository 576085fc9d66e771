package notification

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"vamarket_backend/internal/common"
)

func setupRepositoryTest(t *testing.T) Repository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err, "Failed to open in-memory database")
	require.NoError(t, db.AutoMigrate(&Notification{}), "Failed to migrate notifications table")
	return NewGORMRepository(db)
}

func seedNotification(t *testing.T, repo Repository, recipientID uuid.UUID, typ Type) *Notification {
	t.Helper()
	n := &Notification{RecipientID: recipientID, Type: typ, Priority: PriorityNormal}
	require.NoError(t, repo.Create(context.Background(), n))
	require.NotEqual(t, uuid.Nil, n.ID)
	return n
}

func TestRepository_UnreadCountExcludesReadAndArchived(t *testing.T) {
	repo := setupRepositoryTest(t)
	ctx := context.Background()
	recipientID := uuid.New()

	a := seedNotification(t, repo, recipientID, TypeNewMessage)
	b := seedNotification(t, repo, recipientID, TypeProfileView)
	c := seedNotification(t, repo, recipientID, TypeSystemAnnouncement)
	seedNotification(t, repo, uuid.New(), TypeNewMessage) // another user's row

	count, err := repo.UnreadCount(ctx, recipientID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	_, err = repo.MarkRead(ctx, []uuid.UUID{a.ID}, recipientID)
	require.NoError(t, err)

	_, err = repo.Archive(ctx, []uuid.UUID{b.ID}, recipientID)
	require.NoError(t, err)

	count, err = repo.UnreadCount(ctx, recipientID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "only the untouched row should count")
	_ = c
}

func TestRepository_MarkReadIsIdempotent(t *testing.T) {
	repo := setupRepositoryTest(t)
	ctx := context.Background()
	recipientID := uuid.New()
	n := seedNotification(t, repo, recipientID, TypeNewMessage)

	affected, err := repo.MarkRead(ctx, []uuid.UUID{n.ID}, recipientID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	first, err := repo.FindByID(ctx, n.ID, recipientID)
	require.NoError(t, err)
	require.NotNil(t, first.ReadAt)

	// A second call must not touch the row or rewrite the timestamp.
	affected, err = repo.MarkRead(ctx, []uuid.UUID{n.ID}, recipientID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)

	second, err := repo.FindByID(ctx, n.ID, recipientID)
	require.NoError(t, err)
	assert.Equal(t, first.ReadAt.Unix(), second.ReadAt.Unix())
}

func TestRepository_MarkReadIgnoresOtherUsersRows(t *testing.T) {
	repo := setupRepositoryTest(t)
	ctx := context.Background()
	owner := uuid.New()
	n := seedNotification(t, repo, owner, TypeNewMessage)

	affected, err := repo.MarkRead(ctx, []uuid.UUID{n.ID}, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)

	fresh, err := repo.FindByID(ctx, n.ID, owner)
	require.NoError(t, err)
	assert.Nil(t, fresh.ReadAt)
}

func TestRepository_MarkAllReadReturnsAffectedIDs(t *testing.T) {
	repo := setupRepositoryTest(t)
	ctx := context.Background()
	recipientID := uuid.New()

	a := seedNotification(t, repo, recipientID, TypeNewMessage)
	b := seedNotification(t, repo, recipientID, TypeProfileView)
	read := seedNotification(t, repo, recipientID, TypeSystemAnnouncement)
	_, err := repo.MarkRead(ctx, []uuid.UUID{read.ID}, recipientID)
	require.NoError(t, err)

	ids, err := repo.MarkAllRead(ctx, recipientID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{a.ID, b.ID}, ids)

	count, err := repo.UnreadCount(ctx, recipientID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestRepository_ArchivePreservesReadState(t *testing.T) {
	repo := setupRepositoryTest(t)
	ctx := context.Background()
	recipientID := uuid.New()
	n := seedNotification(t, repo, recipientID, TypeNewMessage)

	_, err := repo.MarkRead(ctx, []uuid.UUID{n.ID}, recipientID)
	require.NoError(t, err)
	readRow, err := repo.FindByID(ctx, n.ID, recipientID)
	require.NoError(t, err)
	require.NotNil(t, readRow.ReadAt)

	affected, err := repo.Archive(ctx, []uuid.UUID{n.ID}, recipientID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	archived, err := repo.FindByID(ctx, n.ID, recipientID)
	require.NoError(t, err)
	assert.True(t, archived.Archived)
	require.NotNil(t, archived.ReadAt, "archiving must not clear read state")
	assert.Equal(t, readRow.ReadAt.Unix(), archived.ReadAt.Unix())

	affected, err = repo.Unarchive(ctx, []uuid.UUID{n.ID}, recipientID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	restored, err := repo.FindByID(ctx, n.ID, recipientID)
	require.NoError(t, err)
	assert.False(t, restored.Archived)
	require.NotNil(t, restored.ReadAt, "unarchiving must not clear read state")
	assert.Equal(t, readRow.ReadAt.Unix(), restored.ReadAt.Unix())
}

func TestRepository_FindByRecipientExcludesArchived(t *testing.T) {
	repo := setupRepositoryTest(t)
	ctx := context.Background()
	recipientID := uuid.New()

	visible := seedNotification(t, repo, recipientID, TypeNewMessage)
	hidden := seedNotification(t, repo, recipientID, TypeProfileView)
	_, err := repo.Archive(ctx, []uuid.UUID{hidden.ID}, recipientID)
	require.NoError(t, err)

	rows, pagination, err := repo.FindByRecipient(ctx, recipientID, ListFilters{}, 1, 20)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, visible.ID, rows[0].ID)
	assert.Equal(t, int64(1), pagination.TotalItems)
}

func TestRepository_FindByRecipientUnreadOnlyFilter(t *testing.T) {
	repo := setupRepositoryTest(t)
	ctx := context.Background()
	recipientID := uuid.New()

	unread := seedNotification(t, repo, recipientID, TypeNewMessage)
	read := seedNotification(t, repo, recipientID, TypeNewMessage)
	_, err := repo.MarkRead(ctx, []uuid.UUID{read.ID}, recipientID)
	require.NoError(t, err)

	rows, _, err := repo.FindByRecipient(ctx, recipientID, ListFilters{UnreadOnly: true}, 1, 20)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, unread.ID, rows[0].ID)
}

func TestRepository_AutoArchiveOldOnlyTouchesReadRows(t *testing.T) {
	repo := setupRepositoryTest(t)
	ctx := context.Background()
	recipientID := uuid.New()

	oldRead := seedNotification(t, repo, recipientID, TypeNewMessage)
	oldUnread := seedNotification(t, repo, recipientID, TypeProfileView)
	recentRead := seedNotification(t, repo, recipientID, TypeSystemAnnouncement)

	_, err := repo.MarkRead(ctx, []uuid.UUID{oldRead.ID, recentRead.ID}, recipientID)
	require.NoError(t, err)

	// Cutoff in the future relative to the read timestamps: only read rows
	// are eligible, so the unread one must survive no matter how old it is.
	cutoff := time.Now().Add(time.Hour)
	archived, err := repo.AutoArchiveOld(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), archived)

	fresh, err := repo.FindByID(ctx, oldUnread.ID, recipientID)
	require.NoError(t, err)
	assert.False(t, fresh.Archived, "unread rows are never auto-archived")

	count, err := repo.ArchivedCount(ctx, recipientID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestRepository_DeleteReturnsRecordAndRemovesRow(t *testing.T) {
	repo := setupRepositoryTest(t)
	ctx := context.Background()
	recipientID := uuid.New()
	n := seedNotification(t, repo, recipientID, TypeNewMessage)

	deleted, err := repo.Delete(ctx, n.ID, recipientID)
	require.NoError(t, err)
	assert.Equal(t, n.ID, deleted.ID)

	_, err = repo.FindByID(ctx, n.ID, recipientID)
	assert.Error(t, err)
}

func TestRepository_ClearArchivedLeavesInbox(t *testing.T) {
	repo := setupRepositoryTest(t)
	ctx := context.Background()
	recipientID := uuid.New()

	keep := seedNotification(t, repo, recipientID, TypeNewMessage)
	gone := seedNotification(t, repo, recipientID, TypeProfileView)
	_, err := repo.Archive(ctx, []uuid.UUID{gone.ID}, recipientID)
	require.NoError(t, err)

	removed, err := repo.ClearArchived(ctx, recipientID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = repo.FindByID(ctx, keep.ID, recipientID)
	assert.NoError(t, err)
	_, err = repo.FindByID(ctx, gone.ID, recipientID)
	assert.Error(t, err)
}

func TestDeleteCriteriaValidate(t *testing.T) {
	assert.Error(t, DeleteCriteria{}.Validate(), "empty criteria must be rejected")

	cutoff := time.Now()
	assert.Error(t, DeleteCriteria{DeleteAll: true, OlderThan: &cutoff}.Validate(), "multiple selectors must be rejected")

	assert.NoError(t, DeleteCriteria{IDs: []uuid.UUID{uuid.New()}}.Validate())
	assert.NoError(t, DeleteCriteria{DeleteAll: true}.Validate())
	assert.NoError(t, DeleteCriteria{OlderThan: &cutoff}.Validate())
}

func TestArchiveCriteriaValidate(t *testing.T) {
	assert.Error(t, ArchiveCriteria{}.Validate(), "empty criteria must be rejected")
	assert.Error(t, ArchiveCriteria{Type: "bogus"}.Validate())
	assert.NoError(t, ArchiveCriteria{Type: TypeNewMessage}.Validate())
}

func TestRepository_RestoreByIDs(t *testing.T) {
	repo := setupRepositoryTest(t)
	ctx := context.Background()
	recipientID := uuid.New()

	a := seedNotification(t, repo, recipientID, TypeNewMessage)
	b := seedNotification(t, repo, recipientID, TypeProfileView)
	_, err := repo.Archive(ctx, []uuid.UUID{a.ID, b.ID}, recipientID)
	require.NoError(t, err)

	restored, err := repo.Restore(ctx, []uuid.UUID{a.ID}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), restored)

	count, err := repo.ArchivedCount(ctx, recipientID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRepository_MarkReadSkipsArchived(t *testing.T) {
	repo := setupRepositoryTest(t)
	ctx := context.Background()
	recipientID := uuid.New()

	n := seedNotification(t, repo, recipientID, TypeNewMessage)
	_, err := repo.Archive(ctx, []uuid.UUID{n.ID}, recipientID)
	require.NoError(t, err)

	count, err := repo.MarkRead(ctx, []uuid.UUID{n.ID}, recipientID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count, "archived rows must not be marked read")

	found, err := repo.FindByID(ctx, n.ID, recipientID)
	require.NoError(t, err)
	assert.Nil(t, found.ReadAt)
}

func TestRepository_RestoreRequiresSelector(t *testing.T) {
	repo := setupRepositoryTest(t)
	ctx := context.Background()
	recipientID := uuid.New()

	n := seedNotification(t, repo, recipientID, TypeNewMessage)
	_, err := repo.Archive(ctx, []uuid.UUID{n.ID}, recipientID)
	require.NoError(t, err)

	_, err = repo.Restore(ctx, nil, nil)
	var apiErr *common.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, common.ErrBadRequest.Code, apiErr.Code)

	count, err := repo.ArchivedCount(ctx, recipientID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "nothing may be restored without a selector")
}

func TestRepository_CountInRange(t *testing.T) {
	repo := setupRepositoryTest(t)
	ctx := context.Background()
	recipientID := uuid.New()

	read := seedNotification(t, repo, recipientID, TypeNewMessage)
	seedNotification(t, repo, recipientID, TypeProfileView)
	_, err := repo.MarkRead(ctx, []uuid.UUID{read.ID}, recipientID)
	require.NoError(t, err)

	total, readCount, err := repo.CountInRange(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, int64(1), readCount)

	past := time.Now().Add(-time.Hour)
	alsoTotal, _, err := repo.CountInRange(ctx, &past, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), alsoTotal)

	future := time.Now().Add(time.Hour)
	none, _, err := repo.CountInRange(ctx, &future, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), none)
}

func TestRepository_CountByType(t *testing.T) {
	repo := setupRepositoryTest(t)
	ctx := context.Background()
	recipientID := uuid.New()

	seedNotification(t, repo, recipientID, TypeNewMessage)
	seedNotification(t, repo, recipientID, TypeNewMessage)
	seedNotification(t, repo, recipientID, TypeProfileView)

	rows, err := repo.CountByType(ctx, nil, nil)
	require.NoError(t, err)

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Key] = row.Count
	}
	assert.Equal(t, int64(2), counts[string(TypeNewMessage)])
	assert.Equal(t, int64(1), counts[string(TypeProfileView)])
}
