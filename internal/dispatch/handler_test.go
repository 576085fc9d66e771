package dispatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vamarket_backend/internal/notification"
)

func setupRestoreHandlerTest(t *testing.T) (*gin.Engine, *dispatcherTestSuite) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ts := setupDispatcherTest(t)
	handler := NewHandler(ts.dispatcher, nil, zap.NewNop())

	router := gin.New()
	handler.RegisterRoutes(router.Group("/admin/notifications"))
	return router, ts
}

func seedArchived(t *testing.T, ts *dispatcherTestSuite, recipientID uuid.UUID) *notification.Notification {
	t.Helper()
	ctx := context.Background()
	n := &notification.Notification{RecipientID: recipientID, Type: notification.TypeNewMessage, Priority: notification.PriorityNormal}
	require.NoError(t, ts.notifRepo.Create(ctx, n))
	_, err := ts.notifRepo.Archive(ctx, []uuid.UUID{n.ID}, recipientID)
	require.NoError(t, err)
	return n
}

func postJSON(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandler_RestoreRejectsEmptyBody(t *testing.T) {
	router, ts := setupRestoreHandlerTest(t)
	recipientID := uuid.New()
	seedArchived(t, ts, recipientID)

	w := postJSON(router, "/admin/notifications/restore", `{}`)

	assert.Equal(t, http.StatusBadRequest, w.Code, "an empty body must never restore anything")

	count, err := ts.notifRepo.ArchivedCount(context.Background(), recipientID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "the archived row must be untouched")
}

func TestHandler_RestoreByIDs(t *testing.T) {
	router, ts := setupRestoreHandlerTest(t)
	recipientID := uuid.New()
	n := seedArchived(t, ts, recipientID)

	w := postJSON(router, "/admin/notifications/restore", `{"notification_ids":["`+n.ID.String()+`"]}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"restored_count":1`)

	count, err := ts.notifRepo.ArchivedCount(context.Background(), recipientID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestHandler_RestoreByCriteria(t *testing.T) {
	router, ts := setupRestoreHandlerTest(t)
	recipientID := uuid.New()
	seedArchived(t, ts, recipientID)
	seedArchived(t, ts, uuid.New())

	w := postJSON(router, "/admin/notifications/restore", `{"user_id":"`+recipientID.String()+`"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"restored_count":1`)

	count, err := ts.notifRepo.ArchivedCount(context.Background(), recipientID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}
