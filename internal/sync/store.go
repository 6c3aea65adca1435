package sync

import (
	"context"
	"errors"
	"time"

	"dumpzone/internal/daybook/model"
)

// ErrNotAuthenticated is returned by remote operations invoked without a
// resolved user identity.
var ErrNotAuthenticated = errors.New("sync: not authenticated")

// LocalStore is durable on-device persistence. Calls never suspend; a failure
// here is a real error because local is the durability backstop.
type LocalStore interface {
	GetCurrentDay(dateKey string) (string, error)
	SetCurrentDay(dateKey, content string) error
	ClearCurrentDay(dateKey string) error
	AppendHistory(entry model.Entry) error
	ListHistory() ([]model.Entry, error)
	UpdateHistoryEntry(id string, update model.EntryUpdate) (bool, error)
	DeleteHistoryEntry(id string) (bool, error)
}

// RemoteStore is the durable multi-device store. Every operation requires a
// resolved user identity and fails softly: network and auth problems come
// back as errors, never as panics.
type RemoteStore interface {
	GetCurrentDay(ctx context.Context, userID, dateKey string) (*model.DayDocument, error)
	SetCurrentDay(ctx context.Context, userID string, doc model.DayDocument) (time.Time, error)
	ClearCurrentDay(ctx context.Context, userID, dateKey string) error
	AppendHistory(ctx context.Context, userID string, entry model.Entry) error
	ListHistory(ctx context.Context, userID string) ([]model.Entry, error)
	UpdateHistoryEntry(ctx context.Context, userID, id string, update model.EntryUpdate) (bool, error)
	DeleteHistoryEntry(ctx context.Context, userID, id string) (bool, error)
	Subscribe(ctx context.Context, userID string, onChange func(Event)) (Subscription, error)
}

// Event is one remote change delivered over the live feed.
type Event struct {
	Type       string // socket.DayUpdateType, socket.DayClearType, ...
	ClientID   string
	MutationID string
	Day        *model.DayDocument // set for day updates
	Entry      *model.Entry       // set for entry events
	EntryID    string             // set for entry deletions
}

// Subscription is a live remote feed handle. Unsubscribe must be called on
// sign-out and on teardown; a leaked subscription risks delivering another
// user's changes into a dead session.
type Subscription interface {
	Unsubscribe()
}
