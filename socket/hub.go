package socket

import (
	"encoding/json"
	"sync"
	"time"

	"dumpzone/internal/daybook/model"
	"dumpzone/internal/daybook/repository"
	"dumpzone/pkg/logger"
)

const (
	DayUpdateType    = "DAY_UPDATE"    // Current-day content changed
	DayClearType     = "DAY_CLEAR"     // Current-day slot cleared (rollover)
	EntryAddedType   = "ENTRY_ADDED"   // New history entry archived
	EntryUpdatedType = "ENTRY_UPDATED" // Tags/pin/content changed on an entry
	EntryDeletedType = "ENTRY_DELETED" // Entry removed
)

// WSMessage is the realtime envelope fanned out to a user's devices.
// ClientID and MutationID identify the originating device and write so a
// receiver can recognize and drop the echo of its own save.
type WSMessage struct {
	Type       string          `json:"type"`
	UserID     string          `json:"user_id"`
	ClientID   string          `json:"client_id,omitempty"`
	MutationID string          `json:"mutation_id,omitempty"`
	Payload    json.RawMessage `json:"payload"`
}

// cachedDay is the in-memory copy of one user's current-day document.
type cachedDay struct {
	Doc   model.DayDocument
	Dirty bool
}

type Hub struct {
	Rooms      map[string]map[*Client]bool // userID -> connected devices
	Broadcast  chan WSMessage
	Register   chan *Client
	Unregister chan *Client
	repo       *repository.DaybookRepository
	// Current-day state held in memory between periodic flushes.
	DayCache map[string]*cachedDay // userID -> today's document
	mu       sync.Mutex
	today    func() string
}

func NewHub(repo *repository.DaybookRepository, today func() string) *Hub {
	return &Hub{
		Rooms:      make(map[string]map[*Client]bool),
		Broadcast:  make(chan WSMessage),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		repo:       repo,
		DayCache:   make(map[string]*cachedDay),
		today:      today,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if h.Rooms[client.UserID] == nil {
				h.Rooms[client.UserID] = make(map[*Client]bool)
			}
			h.Rooms[client.UserID][client] = true

			// First device online for this user: pull today's document into
			// the cache so the snapshot below reflects the durable store.
			date := h.today()
			cached, ok := h.DayCache[client.UserID]
			if !ok || cached.Doc.Date != date {
				doc, err := h.repo.GetDay(client.UserID, date)
				if err != nil {
					logger.Sugar.Errorf("Failed to load day for user %s: %v", client.UserID, err)
				}
				if doc == nil {
					doc = &model.DayDocument{UserID: client.UserID, Date: date}
				}
				cached = &cachedDay{Doc: *doc}
				h.DayCache[client.UserID] = cached
			}
			snapshot := cached.Doc
			h.mu.Unlock()

			// A late subscriber must not be stuck on stale state: deliver the
			// current snapshot immediately on join.
			payload, _ := json.Marshal(snapshot)
			initialMsg, _ := json.Marshal(WSMessage{
				Type:       DayUpdateType,
				UserID:     client.UserID,
				ClientID:   snapshot.ClientID,
				MutationID: snapshot.MutationID,
				Payload:    payload,
			})
			client.Send <- initialMsg

		case client := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.Rooms[client.UserID][client]; ok {
				delete(h.Rooms[client.UserID], client)
				close(client.Send)

				if len(h.Rooms[client.UserID]) == 0 {
					if cached := h.DayCache[client.UserID]; cached != nil && cached.Dirty {
						if _, err := h.repo.UpsertDay(&cached.Doc); err != nil {
							logger.Sugar.Errorf("Failed to save day for %s on close: %v", client.UserID, err)
						}
					}
					delete(h.Rooms, client.UserID)
					delete(h.DayCache, client.UserID)
					logger.Sugar.Infof("Closed and cleaned up empty room: %s", client.UserID)
				}
			}
			h.mu.Unlock()

		case msg := <-h.Broadcast:
			h.mu.Lock()
			switch msg.Type {
			case DayUpdateType:
				// Keep the cached copy current so joins and the flush worker
				// see the latest write. Never regress a newer cached copy.
				var doc model.DayDocument
				if err := json.Unmarshal(msg.Payload, &doc); err == nil {
					doc.UserID = msg.UserID
					cached := h.DayCache[msg.UserID]
					if cached == nil || cached.Doc.Date != doc.Date || !cached.Doc.UpdatedAt.After(doc.UpdatedAt) {
						h.DayCache[msg.UserID] = &cachedDay{Doc: doc, Dirty: true}
					}
				}
			case DayClearType:
				delete(h.DayCache, msg.UserID)
			}

			payload, err := json.Marshal(msg)
			if err != nil {
				logger.Sugar.Errorf("Error marshalling broadcast message: %v", err)
				h.mu.Unlock()
				continue
			}

			// Collect recipients under the lock, send outside of it. The
			// originating device is skipped; its other echo protection is the
			// mutation id carried in the envelope.
			clientsToSend := make([]*Client, 0, len(h.Rooms[msg.UserID]))
			for client := range h.Rooms[msg.UserID] {
				if msg.ClientID != "" && client.ClientID == msg.ClientID {
					continue
				}
				clientsToSend = append(clientsToSend, client)
			}
			h.mu.Unlock()

			for _, client := range clientsToSend {
				select {
				case client.Send <- payload:
				default:
					// Send buffer full: the client is lagging. Close the
					// connection; its readPump will unregister it safely.
					logger.Sugar.Warnf("Client %s's send buffer is full. Disconnecting.", client.ClientID)
					client.Conn.Close()
				}
			}
		}
	}
}

// SaveWorker periodically flushes dirty current-day documents to the store.
// Writes that came in over the socket are durable at the latest one tick later.
func (h *Hub) SaveWorker() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		docsToSave := make(map[string]model.DayDocument)

		h.mu.Lock()
		for userID, cached := range h.DayCache {
			if cached.Dirty {
				docsToSave[userID] = cached.Doc
			}
		}
		h.mu.Unlock()

		// Database I/O happens without holding the hub's lock.
		for userID, doc := range docsToSave {
			if _, err := h.repo.UpsertDay(&doc); err != nil {
				logger.Sugar.Errorf("Failed to save day for %s: %v", userID, err)
				continue // Leave the dirty flag set, retried on the next tick.
			}

			h.mu.Lock()
			// Only mark clean if no newer write landed while we were saving.
			if cached := h.DayCache[userID]; cached != nil && !cached.Doc.UpdatedAt.After(doc.UpdatedAt) {
				cached.Dirty = false
			}
			h.mu.Unlock()

			logger.Sugar.Infof("Auto-saved day %s for user: %s", doc.Date, userID)
		}
	}
}

// DropUser removes a user's cached state and disconnects all of their
// devices. Called when the account's data space is cleared via the API.
func (h *Hub) DropUser(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.DayCache, userID)

	if clients, ok := h.Rooms[userID]; ok {
		for client := range clients {
			client.Conn.Close() // readPump exits and unregisters safely
		}
		delete(h.Rooms, userID)
	}
}
