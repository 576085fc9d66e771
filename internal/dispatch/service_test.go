package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"vamarket_backend/internal/common"
	"vamarket_backend/internal/config"
	"vamarket_backend/internal/mailer"
	"vamarket_backend/internal/notification"
	"vamarket_backend/internal/shared"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// MockNotificationService is a mock type for notification.Service
type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) Create(ctx context.Context, recipientID uuid.UUID, t notification.Type, priority notification.Priority, params notification.Params) (*notification.Notification, error) {
	args := m.Called(ctx, recipientID, t, priority, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notification.Notification), args.Error(1)
}

func (m *MockNotificationService) List(ctx context.Context, recipientID uuid.UUID, filters notification.ListFilters, page, pageSize int) ([]notification.Response, *common.Pagination, error) {
	args := m.Called(ctx, recipientID, filters, page, pageSize)
	return nil, nil, args.Error(2)
}

func (m *MockNotificationService) MarkRead(ctx context.Context, ids []uuid.UUID, recipientID uuid.UUID) (int64, error) {
	args := m.Called(ctx, ids, recipientID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNotificationService) MarkAllRead(ctx context.Context, recipientID uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, recipientID)
	return nil, args.Error(1)
}

func (m *MockNotificationService) Delete(ctx context.Context, id, recipientID uuid.UUID) error {
	args := m.Called(ctx, id, recipientID)
	return args.Error(0)
}

func (m *MockNotificationService) UnreadCount(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	args := m.Called(ctx, recipientID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNotificationService) ArchivedCount(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	args := m.Called(ctx, recipientID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNotificationService) Archive(ctx context.Context, ids []uuid.UUID, recipientID uuid.UUID) (int64, error) {
	args := m.Called(ctx, ids, recipientID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNotificationService) Unarchive(ctx context.Context, ids []uuid.UUID, recipientID uuid.UUID) (int64, error) {
	args := m.Called(ctx, ids, recipientID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNotificationService) ClearArchived(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	args := m.Called(ctx, recipientID)
	return args.Get(0).(int64), args.Error(1)
}

// fakeDirectory returns a canned audience per target group.
type fakeDirectory struct {
	audiences map[shared.TargetGroup][]shared.User
}

func (f *fakeDirectory) ResolveAudience(_ context.Context, group shared.TargetGroup, _ shared.AudienceFilters) ([]shared.User, error) {
	if !group.Valid() {
		return nil, common.ErrBadRequest.WithDetails("Unknown target group.")
	}
	return f.audiences[group], nil
}

func (f *fakeDirectory) CountAudience(_ context.Context, _ string) (int64, error) {
	return 0, nil
}

// fakeUserProvider serves users from a map.
type fakeUserProvider struct {
	users map[uuid.UUID]*shared.User
}

func (f *fakeUserProvider) GetUserByID(_ context.Context, id uuid.UUID) (*shared.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, common.ErrNotFound
}

func (f *fakeUserProvider) GetUserByFirebaseUID(_ context.Context, _ string) (*shared.User, error) {
	return nil, common.ErrNotFound
}

// recordingMailer captures sent emails and can fail specific recipients.
type recordingMailer struct {
	mu     sync.Mutex
	sent   []mailer.Email
	failTo map[string]bool
}

func (m *recordingMailer) Send(_ context.Context, email mailer.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTo[email.To] {
		return errors.New("smtp rejected")
	}
	m.sent = append(m.sent, email)
	return nil
}

type dispatcherTestSuite struct {
	dispatcher Dispatcher
	notifs     *MockNotificationService
	directory  *fakeDirectory
	users      *fakeUserProvider
	mail       *recordingMailer
	scheduled  Repository
	notifRepo  notification.Repository
}

func setupDispatcherTest(t *testing.T) *dispatcherTestSuite {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&ScheduledNotification{}, &notification.Notification{}))

	ts := &dispatcherTestSuite{
		notifs:    new(MockNotificationService),
		directory: &fakeDirectory{audiences: map[shared.TargetGroup][]shared.User{}},
		users:     &fakeUserProvider{users: map[uuid.UUID]*shared.User{}},
		mail:      &recordingMailer{failTo: map[string]bool{}},
		scheduled: NewGORMRepository(db),
		notifRepo: notification.NewGORMRepository(db),
	}
	cfg := &config.Config{EmailBatchSize: 2}
	ts.dispatcher = NewDispatcher(
		ts.notifs,
		ts.notifRepo,
		ts.scheduled,
		ts.directory,
		ts.users,
		ts.mail,
		cfg,
		zap.NewNop(),
	)
	return ts
}

func sender() *shared.User {
	return &shared.User{ID: uuid.New(), IsAdmin: true}
}

func addUser(ts *dispatcherTestSuite, email string, optIn bool) shared.User {
	u := shared.User{ID: uuid.New(), EmailOnAnnouncements: optIn}
	if email != "" {
		u.Email = &email
	}
	ts.users.users[u.ID] = &u
	return u
}

func anyCreate(m *MockNotificationService) *mock.Call {
	return m.On("Create",
		mock.Anything,
		mock.AnythingOfType("uuid.UUID"),
		mock.AnythingOfType("notification.Type"),
		mock.AnythingOfType("notification.Priority"),
		mock.AnythingOfType("notification.Params"))
}

func TestDispatcher_SendTargetedCreatesPerRecipient(t *testing.T) {
	ts := setupDispatcherTest(t)
	ctx := context.Background()
	a := addUser(ts, "a@example.com", true)
	b := addUser(ts, "b@example.com", true)

	anyCreate(ts.notifs).Return(&notification.Notification{ID: uuid.New()}, nil)

	summary, result, err := ts.dispatcher.SendTargeted(ctx, sender(), SendTargetedRequest{
		UserIDs: []uuid.UUID{a.ID, b.ID},
		Title:   "Maintenance tonight",
		Message: "Expect downtime.",
	})

	require.NoError(t, err)
	assert.Equal(t, 2, summary.NotificationCount)
	assert.ElementsMatch(t, []uuid.UUID{a.ID, b.ID}, summary.Recipients)
	assert.Equal(t, 0, summary.EmailsSent, "no emails unless requested")
	assert.False(t, result.HasFailures())
	ts.notifs.AssertNumberOfCalls(t, "Create", 2)
}

func TestDispatcher_SendTargetedDuplicatesYieldDuplicates(t *testing.T) {
	ts := setupDispatcherTest(t)
	a := addUser(ts, "", true)

	anyCreate(ts.notifs).Return(&notification.Notification{ID: uuid.New()}, nil)

	summary, _, err := ts.dispatcher.SendTargeted(context.Background(), sender(), SendTargetedRequest{
		UserIDs: []uuid.UUID{a.ID, a.ID},
		Title:   "Twice",
		Message: "On purpose.",
	})

	require.NoError(t, err)
	assert.Equal(t, 2, summary.NotificationCount, "the id list is used as given")
	ts.notifs.AssertNumberOfCalls(t, "Create", 2)
}

func TestDispatcher_SendTargetedIsolatesFailures(t *testing.T) {
	ts := setupDispatcherTest(t)
	ctx := context.Background()
	good := addUser(ts, "good@example.com", true)
	bad := addUser(ts, "bad@example.com", true)

	ts.notifs.On("Create", mock.Anything, bad.ID, mock.AnythingOfType("notification.Type"),
		mock.AnythingOfType("notification.Priority"), mock.AnythingOfType("notification.Params")).
		Return(nil, errors.New("insert failed"))
	ts.notifs.On("Create", mock.Anything, good.ID, mock.AnythingOfType("notification.Type"),
		mock.AnythingOfType("notification.Priority"), mock.AnythingOfType("notification.Params")).
		Return(&notification.Notification{ID: uuid.New()}, nil)

	summary, result, err := ts.dispatcher.SendTargeted(ctx, sender(), SendTargetedRequest{
		UserIDs: []uuid.UUID{bad.ID, good.ID},
		Title:   "Partial",
		Message: "One fails.",
	})

	require.NoError(t, err, "one recipient's failure never aborts the batch")
	assert.Equal(t, 1, summary.NotificationCount)
	require.True(t, result.HasFailures())
	require.Len(t, result.Failures, 1)
	assert.Equal(t, bad.ID.String(), result.Failures[0].Key)
}

func TestDispatcher_SendTargetedEmptyList(t *testing.T) {
	ts := setupDispatcherTest(t)

	_, _, err := ts.dispatcher.SendTargeted(context.Background(), sender(), SendTargetedRequest{
		Title:   "Nobody",
		Message: "home",
	})

	require.Error(t, err)
	apiErr, ok := err.(*common.APIError)
	require.True(t, ok)
	assert.Equal(t, common.ErrBadRequest.Code, apiErr.Code)
}

func TestDispatcher_SendTargetedEmails(t *testing.T) {
	ts := setupDispatcherTest(t)
	ctx := context.Background()
	withEmail := addUser(ts, "has@example.com", true)
	noEmail := addUser(ts, "", true)

	anyCreate(ts.notifs).Return(&notification.Notification{ID: uuid.New()}, nil)

	summary, _, err := ts.dispatcher.SendTargeted(ctx, sender(), SendTargetedRequest{
		UserIDs:   []uuid.UUID{withEmail.ID, noEmail.ID},
		Title:     "Email test",
		Message:   "body",
		SendEmail: true,
	})

	require.NoError(t, err)
	assert.Equal(t, 2, summary.NotificationCount)
	assert.Equal(t, 1, summary.EmailsSent, "recipients without an address are skipped silently")
	require.Len(t, ts.mail.sent, 1)
	assert.Equal(t, "has@example.com", ts.mail.sent[0].To)
	assert.Equal(t, "Email test", ts.mail.sent[0].Subject)
}

func TestDispatcher_SendTargetedEmailFailureIsSwallowed(t *testing.T) {
	ts := setupDispatcherTest(t)
	ctx := context.Background()
	ok := addUser(ts, "ok@example.com", true)
	broken := addUser(ts, "broken@example.com", true)
	ts.mail.failTo["broken@example.com"] = true

	anyCreate(ts.notifs).Return(&notification.Notification{ID: uuid.New()}, nil)

	summary, result, err := ts.dispatcher.SendTargeted(ctx, sender(), SendTargetedRequest{
		UserIDs:   []uuid.UUID{ok.ID, broken.ID},
		Title:     "Flaky mail",
		Message:   "body",
		SendEmail: true,
	})

	require.NoError(t, err)
	assert.Equal(t, 2, summary.NotificationCount)
	assert.False(t, result.HasFailures(), "email failures never count against recipients")
	require.Len(t, ts.mail.sent, 1)
	assert.Equal(t, "ok@example.com", ts.mail.sent[0].To)
}

func TestDispatcher_BroadcastRespectsEmailPreference(t *testing.T) {
	ts := setupDispatcherTest(t)
	ctx := context.Background()

	optedIn := shared.User{ID: uuid.New(), EmailOnAnnouncements: true}
	in := "in@example.com"
	optedIn.Email = &in
	optedOut := shared.User{ID: uuid.New(), EmailOnAnnouncements: false}
	out := "out@example.com"
	optedOut.Email = &out
	ts.directory.audiences[shared.TargetGroupVAs] = []shared.User{optedIn, optedOut}

	anyCreate(ts.notifs).Return(&notification.Notification{ID: uuid.New()}, nil)

	summary, _, err := ts.dispatcher.SendBroadcast(ctx, sender(), BroadcastRequest{
		TargetGroup: shared.TargetGroupVAs,
		Title:       "VA update",
		Message:     "body",
		SendEmail:   true,
	})

	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalRecipients, "the opt-out only gates email, not the notification")
	assert.Equal(t, 1, summary.EmailsSent)
	require.Len(t, ts.mail.sent, 1)
	assert.Equal(t, "in@example.com", ts.mail.sent[0].To)
}

func TestDispatcher_BroadcastUnknownGroup(t *testing.T) {
	ts := setupDispatcherTest(t)

	_, _, err := ts.dispatcher.SendBroadcast(context.Background(), sender(), BroadcastRequest{
		TargetGroup: "everyone",
		Title:       "Bad group",
		Message:     "body",
	})

	require.Error(t, err)
	ts.notifs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatcher_BroadcastDefaultsTypeAndPriority(t *testing.T) {
	ts := setupDispatcherTest(t)
	ctx := context.Background()
	ts.directory.audiences[shared.TargetGroupAdmins] = []shared.User{{ID: uuid.New()}}

	ts.notifs.On("Create", mock.Anything, mock.AnythingOfType("uuid.UUID"),
		notification.TypeSystemAnnouncement, notification.PriorityNormal,
		mock.AnythingOfType("notification.Params")).
		Return(&notification.Notification{ID: uuid.New()}, nil)

	summary, _, err := ts.dispatcher.SendBroadcast(ctx, sender(), BroadcastRequest{
		TargetGroup: shared.TargetGroupAdmins,
		Title:       "Defaults",
		Message:     "body",
	})

	require.NoError(t, err)
	assert.Equal(t, notification.TypeSystemAnnouncement, summary.Type)
	assert.Equal(t, notification.PriorityNormal, summary.Priority)
	ts.notifs.AssertExpectations(t)
}

func TestDispatcher_ScheduleRejectsPastDate(t *testing.T) {
	ts := setupDispatcherTest(t)

	_, err := ts.dispatcher.Schedule(context.Background(), sender(), ScheduleRequest{
		ScheduledFor: time.Now().Add(-time.Minute),
		TargetGroup:  shared.TargetGroupAll,
		Title:        "Too late",
		Message:      "body",
	})

	require.Error(t, err)
	apiErr, ok := err.(*common.APIError)
	require.True(t, ok)
	assert.Equal(t, common.ErrBadRequest.Code, apiErr.Code)
}

func TestDispatcher_ScheduleRequiresATarget(t *testing.T) {
	ts := setupDispatcherTest(t)

	_, err := ts.dispatcher.Schedule(context.Background(), sender(), ScheduleRequest{
		ScheduledFor: time.Now().Add(time.Hour),
		Title:        "No target",
		Message:      "body",
	})

	require.Error(t, err)
}

func TestDispatcher_SchedulePersistsWithoutDispatching(t *testing.T) {
	ts := setupDispatcherTest(t)
	ctx := context.Background()
	admin := sender()
	when := time.Now().Add(2 * time.Hour)

	sn, err := ts.dispatcher.Schedule(ctx, admin, ScheduleRequest{
		ScheduledFor: when,
		TargetGroup:  shared.TargetGroupBusinesses,
		Title:        "Later",
		Message:      "body",
	})

	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, sn.Status)
	assert.Equal(t, admin.ID, sn.CreatedByID)
	ts.notifs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	listed, pagination, err := ts.dispatcher.ListScheduled(ctx, 1, 20)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, sn.ID, listed[0].ID)
	assert.Equal(t, int64(1), pagination.TotalItems)
}
