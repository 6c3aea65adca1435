// Package remote adapts the dumpzone server's REST + WebSocket API to the
// RemoteStore contract used by the sync coordinator.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	stdsync "sync"
	"time"

	"dumpzone/internal/daybook/model"
	syncpkg "dumpzone/internal/sync"
	"dumpzone/pkg/logger"
	"dumpzone/socket"

	"github.com/gorilla/websocket"
)

// Client talks to one dumpzone server on behalf of one signed-in user.
// All failures come back as errors; nothing here panics past the sync
// coordinator boundary.
type Client struct {
	BaseURL  string
	Token    string
	ClientID string
	HTTP     *http.Client
}

func NewClient(baseURL, token, clientID string) *Client {
	return &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Token:    token,
		ClientID: clientID,
		HTTP:     &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) (int, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("remote: encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return 0, fmt.Errorf("remote: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, fmt.Errorf("remote: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return resp.StatusCode, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, fmt.Errorf("remote: %s %s: status %d: %s",
			method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("remote: decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func (c *Client) GetCurrentDay(ctx context.Context, userID, dateKey string) (*model.DayDocument, error) {
	if userID == "" {
		return nil, syncpkg.ErrNotAuthenticated
	}
	var doc model.DayDocument
	status, err := c.do(ctx, http.MethodGet, "/api/day", url.Values{"date": {dateKey}}, nil, &doc)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	return &doc, nil
}

func (c *Client) SetCurrentDay(ctx context.Context, userID string, doc model.DayDocument) (time.Time, error) {
	if userID == "" {
		return time.Time{}, syncpkg.ErrNotAuthenticated
	}
	req := model.SaveDayRequest{
		Date:       doc.Date,
		Content:    doc.Content,
		UpdatedAt:  doc.UpdatedAt,
		ClientID:   doc.ClientID,
		MutationID: doc.MutationID,
	}
	var resp model.SaveDayResponse
	if _, err := c.do(ctx, http.MethodPut, "/api/day", nil, req, &resp); err != nil {
		return time.Time{}, err
	}
	return resp.UpdatedAt, nil
}

func (c *Client) ClearCurrentDay(ctx context.Context, userID, dateKey string) error {
	if userID == "" {
		return syncpkg.ErrNotAuthenticated
	}
	_, err := c.do(ctx, http.MethodDelete, "/api/day", url.Values{"date": {dateKey}}, nil, nil)
	return err
}

func (c *Client) AppendHistory(ctx context.Context, userID string, entry model.Entry) error {
	if userID == "" {
		return syncpkg.ErrNotAuthenticated
	}
	_, err := c.do(ctx, http.MethodPost, "/api/entries", nil, entry, nil)
	return err
}

func (c *Client) ListHistory(ctx context.Context, userID string) ([]model.Entry, error) {
	if userID == "" {
		return nil, syncpkg.ErrNotAuthenticated
	}
	entries := []model.Entry{}
	if _, err := c.do(ctx, http.MethodGet, "/api/entries", nil, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *Client) UpdateHistoryEntry(ctx context.Context, userID, id string, update model.EntryUpdate) (bool, error) {
	if userID == "" {
		return false, syncpkg.ErrNotAuthenticated
	}
	status, err := c.do(ctx, http.MethodPatch, "/api/entries/update", url.Values{"id": {id}}, update, nil)
	if err != nil {
		return false, err
	}
	return status != http.StatusNotFound, nil
}

func (c *Client) DeleteHistoryEntry(ctx context.Context, userID, id string) (bool, error) {
	if userID == "" {
		return false, syncpkg.ErrNotAuthenticated
	}
	status, err := c.do(ctx, http.MethodDelete, "/api/entries/delete", url.Values{"id": {id}}, nil, nil)
	if err != nil {
		return false, err
	}
	return status != http.StatusNotFound, nil
}

// Subscribe opens the live change feed for one user. Events are delivered on
// a background goroutine until Unsubscribe is called, the context is
// cancelled, or the connection drops.
func (c *Client) Subscribe(ctx context.Context, userID string, onChange func(syncpkg.Event)) (syncpkg.Subscription, error) {
	if userID == "" {
		return nil, syncpkg.ErrNotAuthenticated
	}

	wsURL := "ws" + strings.TrimPrefix(c.BaseURL, "http") + "/ws?" + url.Values{
		"token":    {c.Token},
		"clientId": {c.ClientID},
	}.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("remote: subscribe: %w", err)
	}

	sub := &wsSubscription{conn: conn, done: make(chan struct{})}

	go func() {
		select {
		case <-ctx.Done():
			sub.Unsubscribe()
		case <-sub.done:
		}
	}()

	go sub.readLoop(userID, onChange)

	return sub, nil
}

type wsSubscription struct {
	conn *websocket.Conn
	done chan struct{}
	once stdsync.Once
}

func (s *wsSubscription) Unsubscribe() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

func (s *wsSubscription) readLoop(userID string, onChange func(syncpkg.Event)) {
	defer s.Unsubscribe()

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done: // deliberate teardown, not an error
			default:
				logger.Sugar.Warnf("Realtime feed closed: %v", err)
			}
			return
		}

		var msg socket.WSMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			logger.Sugar.Errorf("Error unmarshalling realtime message: %v", err)
			continue
		}
		// The server scopes the feed to the token's user already; anything
		// else must not reach the caller.
		if msg.UserID != "" && msg.UserID != userID {
			continue
		}

		ev := syncpkg.Event{Type: msg.Type, ClientID: msg.ClientID, MutationID: msg.MutationID}
		switch msg.Type {
		case socket.DayUpdateType:
			var doc model.DayDocument
			if err := json.Unmarshal(msg.Payload, &doc); err != nil {
				logger.Sugar.Errorf("Error unmarshalling day update: %v", err)
				continue
			}
			ev.Day = &doc
		case socket.DayClearType:
			// no payload needed beyond the type
		case socket.EntryAddedType, socket.EntryUpdatedType:
			var entry model.Entry
			if err := json.Unmarshal(msg.Payload, &entry); err != nil {
				logger.Sugar.Errorf("Error unmarshalling entry event: %v", err)
				continue
			}
			ev.Entry = &entry
		case socket.EntryDeletedType:
			var ref struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(msg.Payload, &ref); err != nil {
				continue
			}
			ev.EntryID = ref.ID
		default:
			continue
		}

		onChange(ev)
	}
}
