package socket

import (
	"encoding/json"
	"net/http"
	"time"

	"dumpzone/pkg/logger"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CheckOrigin allows connections from the web frontend's dev server.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Client struct {
	Hub      *Hub
	Conn     *websocket.Conn
	UserID   string
	ClientID string // stable per-device identifier
	Send     chan []byte
}

func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Sugar.Error(err)
		return
	}

	// The device identifier travels in the query string, like the token.
	clientID := r.URL.Query().Get("clientId")

	client := &Client{
		Hub:      hub,
		Conn:     conn,
		UserID:   userID,
		ClientID: clientID,
		Send:     make(chan []byte, 256),
	}

	client.Hub.Register <- client

	// One goroutine per direction is the standard websocket pattern.
	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	for {
		_, rawMessage, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Sugar.Errorf("error: %v", err)
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(rawMessage, &msg); err != nil {
			logger.Sugar.Errorf("Error unmarshalling message: %v", err)
			continue
		}

		// Overwrite identity fields with server-authoritative values so a
		// device cannot publish into another account's room.
		msg.UserID = c.UserID
		msg.ClientID = c.ClientID

		// Devices may push day updates over the socket; everything else is
		// server-originated and dropped if a client tries to send it.
		if msg.Type != DayUpdateType {
			logger.Sugar.Warnf("Dropping unexpected %s message from client %s", msg.Type, c.ClientID)
			continue
		}

		c.Hub.Broadcast <- msg
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second) // Keep-alive ping
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.Send:
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.Conn.WriteMessage(websocket.TextMessage, message)
		case <-ticker.C:
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return // Connection is dead
			}
		}
	}
}
