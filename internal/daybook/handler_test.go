package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"dumpzone/internal/datekey"
	"dumpzone/internal/daybook/model"
	"dumpzone/internal/daybook/repository"
	"dumpzone/internal/daybook/service"
	"dumpzone/middleware"
	"dumpzone/pkg/logger"
	"dumpzone/socket"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

func newTestHandler(t *testing.T) (*DaybookHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := repository.NewDaybookRepository(db)
	hub := socket.NewHub(repo, datekey.Today)
	go hub.Run()

	return NewDaybookHandler(service.NewDaybookService(repo, hub)), mock
}

// asUser injects the authenticated identity the way the auth middleware does.
func asUser(r *http.Request, userID string) *http.Request {
	ctx := context.WithValue(r.Context(), middleware.UserIDKey, userID)
	return r.WithContext(ctx)
}

func TestGetDay(t *testing.T) {
	h, mock := newTestHandler(t)
	savedAt := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT content, updated_at, client_id, mutation_id FROM current_day").
		WithArgs("user1", "2026-09-01").
		WillReturnRows(sqlmock.NewRows([]string{"content", "updated_at", "client_id", "mutation_id"}).
			AddRow("the day so far", savedAt, "device-a", "mut-1"))

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/day?date=2026-09-01", nil), "user1")
	rec := httptest.NewRecorder()
	h.Day(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var doc model.DayDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "the day so far", doc.Content)
}

func TestGetDayMissingReturns404(t *testing.T) {
	h, mock := newTestHandler(t)

	mock.ExpectQuery("SELECT content, updated_at, client_id, mutation_id FROM current_day").
		WithArgs("user1", "2026-09-01").
		WillReturnRows(sqlmock.NewRows([]string{"content", "updated_at", "client_id", "mutation_id"}))

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/day?date=2026-09-01", nil), "user1")
	rec := httptest.NewRecorder()
	h.Day(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetDayRequiresDate(t *testing.T) {
	h, _ := newTestHandler(t)

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/day", nil), "user1")
	rec := httptest.NewRecorder()
	h.Day(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSaveDay(t *testing.T) {
	h, mock := newTestHandler(t)

	mock.ExpectExec("INSERT INTO current_day").
		WithArgs("user1", "2026-09-01", "saved over rest", sqlmock.AnyArg(), "device-a", "mut-2").
		WillReturnResult(sqlmock.NewResult(0, 1))

	body, _ := json.Marshal(model.SaveDayRequest{
		Date: "2026-09-01", Content: "saved over rest",
		UpdatedAt: time.Now().UTC(), ClientID: "device-a", MutationID: "mut-2",
	})
	req := asUser(httptest.NewRequest(http.MethodPut, "/api/day", bytes.NewReader(body)), "user1")
	rec := httptest.NewRecorder()
	h.Day(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp model.SaveDayResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Applied)
}

func TestSaveDayStaleWrite(t *testing.T) {
	h, mock := newTestHandler(t)

	mock.ExpectExec("INSERT INTO current_day").
		WillReturnResult(sqlmock.NewResult(0, 0))

	body, _ := json.Marshal(model.SaveDayRequest{
		Date: "2026-09-01", Content: "older than stored",
		UpdatedAt: time.Now().UTC().Add(-time.Hour),
	})
	req := asUser(httptest.NewRequest(http.MethodPut, "/api/day", bytes.NewReader(body)), "user1")
	rec := httptest.NewRecorder()
	h.Day(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp model.SaveDayResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Applied, "The losing write reports applied=false")
}

func TestMethodNotAllowed(t *testing.T) {
	h, _ := newTestHandler(t)

	req := asUser(httptest.NewRequest(http.MethodPost, "/api/day", nil), "user1")
	rec := httptest.NewRecorder()
	h.Day(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAddEntryDefaultsIDAndTimestamp(t *testing.T) {
	h, mock := newTestHandler(t)

	mock.ExpectExec("INSERT INTO dump_entries").
		WillReturnResult(sqlmock.NewResult(0, 1))

	body, _ := json.Marshal(model.Entry{Date: "2026-08-31", Content: "archived day"})
	req := asUser(httptest.NewRequest(http.MethodPost, "/api/entries", bytes.NewReader(body)), "user1")
	rec := httptest.NewRecorder()
	h.Entries(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var entry model.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	assert.Contains(t, entry.ID, "2026-08-31-", "Server mints date-millis ids when absent")
	assert.NotZero(t, entry.Timestamp)
	assert.Equal(t, []string{}, entry.Tags)
}

func TestUpdateEntryNotFound(t *testing.T) {
	h, mock := newTestHandler(t)

	mock.ExpectExec("UPDATE dump_entries").
		WillReturnResult(sqlmock.NewResult(0, 0))

	pinned := true
	body, _ := json.Marshal(model.EntryUpdate{Pinned: &pinned})
	req := asUser(httptest.NewRequest(http.MethodPatch, "/api/entries/update?id=missing", bytes.NewReader(body)), "user1")
	rec := httptest.NewRecorder()
	h.UpdateEntry(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteEntry(t *testing.T) {
	h, mock := newTestHandler(t)

	mock.ExpectExec("DELETE FROM dump_entries").
		WithArgs("user1", "e1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	req := asUser(httptest.NewRequest(http.MethodDelete, "/api/entries/delete?id=e1", nil), "user1")
	rec := httptest.NewRecorder()
	h.DeleteEntry(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
