package socket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"dumpzone/internal/daybook/model"
	"dumpzone/internal/daybook/repository"
	"dumpzone/pkg/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

// Helper function to read messages from a WebSocket connection with a timeout.
func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	var msg WSMessage
	// Set a deadline to avoid tests hanging forever.
	conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	_, p, err := conn.ReadMessage()
	require.NoError(t, err, "Failed to read message from WebSocket")
	err = json.Unmarshal(p, &msg)
	require.NoError(t, err, "Failed to unmarshal WSMessage JSON")
	return msg
}

func expectNoMessage(t *testing.T, conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	_, _, err := conn.ReadMessage()
	require.Error(t, err, "Expected no message, but one arrived")
}

func TestHubIntegration(t *testing.T) {
	// 1. Setup Mock DB and Hub
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.MatchExpectationsInOrder(false)

	repo := repository.NewDaybookRepository(db)
	today := "2026-09-01"
	hub := NewHub(repo, func() string { return today })
	go hub.Run()

	// 2. Setup Test HTTP Server
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The auth middleware is bypassed; tests pass the user id directly.
		userID := r.URL.Query().Get("user_id")
		ServeWs(hub, w, r, userID)
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	// 3. Device A joins: the first device online pulls today's document from
	// the store and receives it as an immediate snapshot.
	savedAt := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT content, updated_at, client_id, mutation_id FROM current_day").
		WithArgs("user1", today).
		WillReturnRows(sqlmock.NewRows([]string{"content", "updated_at", "client_id", "mutation_id"}).
			AddRow("morning thoughts", savedAt, "device-z", "mut-0"))

	connA, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws?user_id=user1&clientId=device-a", nil)
	require.NoError(t, err, "Device A failed to connect")
	defer connA.Close()

	initialMsg := readMessage(t, connA)
	assert.Equal(t, DayUpdateType, initialMsg.Type)
	assert.Equal(t, "user1", initialMsg.UserID)

	var snapshot model.DayDocument
	require.NoError(t, json.Unmarshal(initialMsg.Payload, &snapshot))
	assert.Equal(t, "morning thoughts", snapshot.Content)
	assert.Equal(t, today, snapshot.Date)

	// 4. Device B joins the same account: served from the cache, no second
	// store read.
	connB, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws?user_id=user1&clientId=device-b", nil)
	require.NoError(t, err, "Device B failed to connect")
	defer connB.Close()
	_ = readMessage(t, connB)

	// 5. Device A saves. Device B receives the update; Device A, as the
	// originating device, does not get its own echo.
	updated := model.DayDocument{
		Date:       today,
		Content:    "morning thoughts and more",
		UpdatedAt:  savedAt.Add(time.Minute),
		ClientID:   "device-a",
		MutationID: "mut-1",
	}
	payload, err := json.Marshal(updated)
	require.NoError(t, err)
	err = connA.WriteJSON(WSMessage{Type: DayUpdateType, Payload: payload})
	require.NoError(t, err)

	received := readMessage(t, connB)
	assert.Equal(t, DayUpdateType, received.Type)
	assert.Equal(t, "device-a", received.ClientID)
	assert.Equal(t, "mut-1", received.MutationID)

	var receivedDoc model.DayDocument
	require.NoError(t, json.Unmarshal(received.Payload, &receivedDoc))
	assert.Equal(t, "morning thoughts and more", receivedDoc.Content)

	expectNoMessage(t, connA)

	// 6. Both devices leave. The room empties and the dirty cached document
	// is flushed to the store.
	mock.ExpectExec("INSERT INTO current_day").
		WithArgs("user1", today, "morning thoughts and more", sqlmock.AnyArg(), "device-a", "mut-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	connA.Close()
	connB.Close()

	require.Eventually(t, func() bool {
		return mock.ExpectationsWereMet() == nil
	}, 2*time.Second, 50*time.Millisecond, "Dirty day was not flushed on room close")
}

func TestHubDayClearDropsCache(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := repository.NewDaybookRepository(db)
	today := "2026-09-01"
	hub := NewHub(repo, func() string { return today })
	go hub.Run()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r, r.URL.Query().Get("user_id"))
	}))
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	mock.ExpectQuery("SELECT content, updated_at, client_id, mutation_id FROM current_day").
		WithArgs("user1", today).
		WillReturnRows(sqlmock.NewRows([]string{"content", "updated_at", "client_id", "mutation_id"}))

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws?user_id=user1&clientId=device-a", nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = readMessage(t, conn) // initial empty snapshot

	// A server-originated clear reaches connected devices and evicts the
	// cached day.
	hub.Broadcast <- WSMessage{Type: DayClearType, UserID: "user1"}

	msg := readMessage(t, conn)
	assert.Equal(t, DayClearType, msg.Type)

	require.Eventually(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		_, ok := hub.DayCache["user1"]
		return !ok
	}, time.Second, 20*time.Millisecond)
}
