// Package sync presents one logical current-day document and history list
// backed by two physical stores: the on-device store is always written, the
// remote store is used when a user is signed in.
package sync

import (
	"context"
	"sort"
	"strconv"
	"strings"
	stdsync "sync"
	"time"

	"dumpzone/internal/datekey"
	"dumpzone/internal/daybook/model"
	"dumpzone/pkg/logger"
	"dumpzone/socket"

	"github.com/google/uuid"
)

const (
	defaultPollInterval = 5 * time.Second
	// How long a mutation id is remembered for echo suppression. Older
	// echoes are already rejected by the updatedAt comparison.
	mutationMemory = 5 * time.Minute
)

// SaveReceipt reports how far a save travelled. A save that reached the
// local store but not the remote one is still a success; callers can show a
// partial-sync notice off the two flags.
type SaveReceipt struct {
	UpdatedAt         time.Time
	MutationID        string
	PersistedLocally  bool
	PersistedRemotely bool
}

type Coordinator struct {
	local    LocalStore
	remote   RemoteStore
	state    *State
	clientID string

	pollInterval time.Duration
	now          func() time.Time

	mu              stdsync.Mutex
	recentMutations map[string]time.Time
	sub             Subscription
	histSub         Subscription
	pollStop        chan struct{}
}

func NewCoordinator(local LocalStore, remote RemoteStore, clientID string) *Coordinator {
	return &Coordinator{
		local:           local,
		remote:          remote,
		state:           NewState(),
		clientID:        clientID,
		pollInterval:    defaultPollInterval,
		now:             time.Now,
		recentMutations: make(map[string]time.Time),
	}
}

// SetUserID installs the authenticated identity. Called by the auth
// lifecycle on sign-in and on every session change.
func (c *Coordinator) SetUserID(id string) {
	c.state.SetUserID(id)
}

// Authenticated reports whether a user identity is installed.
func (c *Coordinator) Authenticated() bool {
	return c.state.UserID() != ""
}

// ClearCache drops the cached identity and tears down the live feed. Any
// call after this behaves as signed-out until a new identity is installed.
func (c *Coordinator) ClearCache() {
	c.teardown()
	c.state.Clear()
}

// Close tears down the subscription and the reconciliation poll. The cached
// identity survives; this is editor teardown, not sign-out.
func (c *Coordinator) Close() {
	c.teardown()
}

func (c *Coordinator) teardown() {
	c.teardownDay()
	c.teardownHistory()
}

func (c *Coordinator) teardownDay() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sub != nil {
		c.sub.Unsubscribe()
		c.sub = nil
	}
	if c.pollStop != nil {
		close(c.pollStop)
		c.pollStop = nil
	}
}

func (c *Coordinator) teardownHistory() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.histSub != nil {
		c.histSub.Unsubscribe()
		c.histSub = nil
	}
}

// LoadCurrentDay resolves today's content across both stores. Remote wins
// when both have a record; a local-only draft (written offline, signed in
// later) seeds the remote store instead of being discarded.
func (c *Coordinator) LoadCurrentDay(ctx context.Context) (string, error) {
	dateKey := datekey.Format(c.now())
	userID := c.state.UserID()

	if userID == "" {
		content, err := c.local.GetCurrentDay(dateKey)
		if err != nil {
			return "", err
		}
		c.state.SetDisplayed(content, time.Time{})
		return content, nil
	}

	doc, err := c.remote.GetCurrentDay(ctx, userID, dateKey)
	if err != nil {
		logger.Sugar.Warnf("Remote read failed, serving local copy: %v", err)
		content, lerr := c.local.GetCurrentDay(dateKey)
		if lerr != nil {
			return "", lerr
		}
		return content, nil
	}

	localContent, lerr := c.local.GetCurrentDay(dateKey)

	if doc == nil {
		if lerr != nil {
			return "", lerr
		}
		if strings.TrimSpace(localContent) != "" {
			if _, _, err := c.pushRemote(ctx, userID, dateKey, localContent); err != nil {
				logger.Sugar.Warnf("Failed to seed remote with offline draft: %v", err)
			}
		}
		c.state.SetDisplayed(localContent, c.now().UTC())
		return localContent, nil
	}

	// Remote has a record: it wins. Mirror it locally so the device keeps
	// working if the network goes away right after.
	if lerr == nil && localContent != doc.Content {
		if err := c.local.SetCurrentDay(dateKey, doc.Content); err != nil {
			logger.Sugar.Errorf("Failed to mirror remote content locally: %v", err)
		}
	}
	c.state.SetDisplayed(doc.Content, doc.UpdatedAt)
	return doc.Content, nil
}

// LoadDay resolves the stored content for one specific dateKey, local copy
// first. Rollover uses it to read the outgoing day after the calendar has
// already moved on; that read must work offline.
func (c *Coordinator) LoadDay(ctx context.Context, dateKey string) (string, error) {
	content, err := c.local.GetCurrentDay(dateKey)
	if err != nil {
		return "", err
	}
	if content != "" {
		return content, nil
	}
	if userID := c.state.UserID(); userID != "" {
		doc, err := c.remote.GetCurrentDay(ctx, userID, dateKey)
		if err != nil {
			logger.Sugar.Warnf("Remote read of %s failed: %v", dateKey, err)
			return "", nil
		}
		if doc != nil {
			return doc.Content, nil
		}
	}
	return "", nil
}

// SaveCurrentDay writes content to the local store synchronously, then
// best-effort to the remote store. A remote failure is swallowed: the local
// copy is the durability guarantee and the receipt records the partial sync.
func (c *Coordinator) SaveCurrentDay(ctx context.Context, content string) (*SaveReceipt, error) {
	dateKey := datekey.Format(c.now())

	if err := c.local.SetCurrentDay(dateKey, content); err != nil {
		return nil, err
	}

	now := c.now().UTC()
	c.state.SetDisplayed(content, now)
	receipt := &SaveReceipt{UpdatedAt: now, PersistedLocally: true}

	userID := c.state.UserID()
	if userID == "" {
		return receipt, nil
	}

	updatedAt, mutationID, err := c.pushRemote(ctx, userID, dateKey, content)
	receipt.MutationID = mutationID
	if err != nil {
		logger.Sugar.Warnf("Remote save failed, local copy kept: %v", err)
		return receipt, nil
	}
	receipt.UpdatedAt = updatedAt
	receipt.PersistedRemotely = true
	return receipt, nil
}

// pushRemote upserts the day document remotely, tagged with this device's
// client id and a fresh mutation id so the realtime echo of this same write
// can be recognized and ignored.
func (c *Coordinator) pushRemote(ctx context.Context, userID, dateKey, content string) (time.Time, string, error) {
	mutationID := uuid.NewString()
	c.rememberMutation(mutationID)

	doc := model.DayDocument{
		Date:       dateKey,
		Content:    content,
		UpdatedAt:  c.now().UTC(),
		ClientID:   c.clientID,
		MutationID: mutationID,
	}
	updatedAt, err := c.remote.SetCurrentDay(ctx, userID, doc)
	if err != nil {
		return time.Time{}, mutationID, err
	}
	return updatedAt, mutationID, nil
}

func (c *Coordinator) rememberMutation(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for old, seen := range c.recentMutations {
		if now.Sub(seen) > mutationMemory {
			delete(c.recentMutations, old)
		}
	}
	c.recentMutations[id] = now
}

func (c *Coordinator) isOwnMutation(id string) bool {
	if id == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.recentMutations[id]
	return ok
}

// SubscribeToCurrentDay establishes the live remote feed plus a periodic
// reconciliation poll, both feeding the same apply rule. The current
// snapshot is delivered immediately so a late subscriber is not stuck on
// stale state.
func (c *Coordinator) SubscribeToCurrentDay(ctx context.Context, onUpdate func(content string)) error {
	userID := c.state.UserID()
	if userID == "" {
		return ErrNotAuthenticated
	}

	// Replace any previous day feed before opening a new one.
	c.teardownDay()

	// Only inserts and updates are applied from the feed. Clears are
	// device-local: every device performs its own rollover, and a clear
	// echoed back carries no ordering information to guard against content
	// written after it.
	sub, err := c.remote.Subscribe(ctx, userID, func(ev Event) {
		if ev.Type == socket.DayUpdateType {
			c.applyRemoteDay(ev.Day, onUpdate)
		}
	})
	if err != nil {
		return err
	}

	stop := make(chan struct{})
	c.mu.Lock()
	c.sub = sub
	c.pollStop = stop
	c.mu.Unlock()

	if content, err := c.LoadCurrentDay(ctx); err == nil {
		onUpdate(content)
	} else {
		logger.Sugar.Warnf("Initial snapshot load failed: %v", err)
	}

	go c.pollLoop(ctx, userID, stop, onUpdate)
	return nil
}

// pollLoop re-fetches the latest remote snapshot at a fixed interval. It is
// the safety net for missed push events; delivery on the socket does not
// have to be perfectly reliable.
func (c *Coordinator) pollLoop(ctx context.Context, userID string, stop chan struct{}, onUpdate func(string)) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			doc, err := c.remote.GetCurrentDay(ctx, userID, datekey.Format(c.now()))
			if err != nil {
				logger.Sugar.Debugf("Reconciliation poll failed: %v", err)
				continue
			}
			c.applyRemoteDay(doc, onUpdate)
		}
	}
}

// applyRemoteDay is the single reconciliation rule both event sources feed:
// overwrite the displayed content only when the incoming snapshot is not
// older than it and is not an echo of this device's own write.
func (c *Coordinator) applyRemoteDay(doc *model.DayDocument, onUpdate func(string)) {
	if doc == nil {
		return
	}
	if c.isOwnMutation(doc.MutationID) {
		return
	}

	displayedContent, displayedAt := c.state.Displayed()
	if doc.UpdatedAt.Before(displayedAt) {
		return // never regress to an older snapshot
	}
	if doc.Content == displayedContent {
		return
	}

	c.state.SetDisplayed(doc.Content, doc.UpdatedAt)
	if err := c.local.SetCurrentDay(doc.Date, doc.Content); err != nil {
		logger.Sugar.Errorf("Failed to mirror remote update locally: %v", err)
	}
	onUpdate(doc.Content)
}

// ClearCurrentDay clears the local slot first, then the remote one. A remote
// outage never blocks the local clear.
func (c *Coordinator) ClearCurrentDay(ctx context.Context) error {
	dateKey := datekey.Format(c.now())

	if err := c.local.ClearCurrentDay(dateKey); err != nil {
		return err
	}
	c.state.SetDisplayed("", c.now().UTC())

	if userID := c.state.UserID(); userID != "" {
		if err := c.remote.ClearCurrentDay(ctx, userID, dateKey); err != nil {
			logger.Sugar.Warnf("Remote clear failed: %v", err)
		}
	}
	return nil
}

// ClearDay resets the local slot for the current day and deletes the remote
// record stored under dateKey. Rollover calls it with the outgoing day so
// the archived content is removed from the remote store; a device rolling
// over later then finds nothing left to archive a second time.
func (c *Coordinator) ClearDay(ctx context.Context, dateKey string) error {
	if err := c.local.ClearCurrentDay(datekey.Format(c.now())); err != nil {
		return err
	}
	c.state.SetDisplayed("", c.now().UTC())

	if userID := c.state.UserID(); userID != "" {
		if err := c.remote.ClearCurrentDay(ctx, userID, dateKey); err != nil {
			logger.Sugar.Warnf("Remote clear of %s failed: %v", dateKey, err)
		}
	}
	return nil
}

// LoadHistory lists archived entries, newest first.
func (c *Coordinator) LoadHistory(ctx context.Context) ([]model.Entry, error) {
	if userID := c.state.UserID(); userID != "" {
		entries, err := c.remote.ListHistory(ctx, userID)
		if err == nil {
			return entries, nil
		}
		logger.Sugar.Warnf("Remote history read failed, serving local list: %v", err)
	}
	return c.local.ListHistory()
}

// SubscribeToHistory establishes a live feed of history changes. Entry
// events carry only one entry (or just an id), so the full list is re-read
// on each change and delivered whole; the current list is also delivered
// immediately on subscribe.
func (c *Coordinator) SubscribeToHistory(ctx context.Context, onUpdate func(entries []model.Entry)) error {
	userID := c.state.UserID()
	if userID == "" {
		return ErrNotAuthenticated
	}

	c.teardownHistory()

	sub, err := c.remote.Subscribe(ctx, userID, func(ev Event) {
		switch ev.Type {
		case socket.EntryAddedType, socket.EntryUpdatedType, socket.EntryDeletedType:
			entries, err := c.remote.ListHistory(ctx, userID)
			if err != nil {
				logger.Sugar.Warnf("History re-read after change failed: %v", err)
				return
			}
			onUpdate(entries)
		}
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.histSub = sub
	c.mu.Unlock()

	if entries, err := c.LoadHistory(ctx); err == nil {
		onUpdate(entries)
	} else {
		logger.Sugar.Warnf("Initial history load failed: %v", err)
	}
	return nil
}

// SaveToHistory archives one day's content as a new history entry.
func (c *Coordinator) SaveToHistory(ctx context.Context, content, date string, tags []string, pinned bool) (model.Entry, error) {
	if tags == nil {
		tags = []string{}
	}
	entry := model.Entry{
		ID:        date + "-" + strconv.FormatInt(c.now().UnixMilli(), 10),
		Date:      date,
		Content:   content,
		Timestamp: c.now().UnixMilli(),
		Tags:      tags,
		Pinned:    pinned,
	}

	if userID := c.state.UserID(); userID != "" {
		if err := c.remote.AppendHistory(ctx, userID, entry); err == nil {
			return entry, nil
		} else {
			// Archival must survive a rollover that happens offline; fall
			// back to the local list rather than drop the day.
			logger.Sugar.Warnf("Remote archive failed, keeping entry locally: %v", err)
		}
	}
	if err := c.local.AppendHistory(entry); err != nil {
		return model.Entry{}, err
	}
	return entry, nil
}

// UpdateEntry applies a partial update to one archived entry.
func (c *Coordinator) UpdateEntry(ctx context.Context, id string, update model.EntryUpdate) (bool, error) {
	if userID := c.state.UserID(); userID != "" {
		return c.remote.UpdateHistoryEntry(ctx, userID, id, update)
	}
	return c.local.UpdateHistoryEntry(id, update)
}

// DeleteEntry removes one archived entry. Deletion is always user-initiated;
// the core never deletes history on its own.
func (c *Coordinator) DeleteEntry(ctx context.Context, id string) (bool, error) {
	if userID := c.state.UserID(); userID != "" {
		return c.remote.DeleteHistoryEntry(ctx, userID, id)
	}
	return c.local.DeleteHistoryEntry(id)
}

// TogglePin flips the pinned flag on one entry.
func (c *Coordinator) TogglePin(ctx context.Context, id string) (bool, error) {
	entry, err := c.findEntry(ctx, id)
	if err != nil || entry == nil {
		return false, err
	}
	pinned := !entry.Pinned
	return c.UpdateEntry(ctx, id, model.EntryUpdate{Pinned: &pinned})
}

// AddTags adds tags to an entry with set semantics: a tag already present is
// not duplicated, and existing insertion order is preserved for display.
func (c *Coordinator) AddTags(ctx context.Context, id string, tags []string) (bool, error) {
	entry, err := c.findEntry(ctx, id)
	if err != nil || entry == nil {
		return false, err
	}

	merged := append([]string{}, entry.Tags...)
	seen := make(map[string]bool, len(merged))
	for _, t := range merged {
		seen[t] = true
	}
	for _, t := range tags {
		if !seen[t] {
			merged = append(merged, t)
			seen[t] = true
		}
	}
	return c.UpdateEntry(ctx, id, model.EntryUpdate{Tags: &merged})
}

// RemoveTag removes one tag from an entry.
func (c *Coordinator) RemoveTag(ctx context.Context, id, tag string) (bool, error) {
	entry, err := c.findEntry(ctx, id)
	if err != nil || entry == nil {
		return false, err
	}

	filtered := []string{}
	for _, t := range entry.Tags {
		if t != tag {
			filtered = append(filtered, t)
		}
	}
	return c.UpdateEntry(ctx, id, model.EntryUpdate{Tags: &filtered})
}

// AllTags returns every tag in use across history, sorted.
func (c *Coordinator) AllTags(ctx context.Context) ([]string, error) {
	entries, err := c.LoadHistory(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	tags := []string{}
	for _, e := range entries {
		for _, t := range e.Tags {
			if !seen[t] {
				seen[t] = true
				tags = append(tags, t)
			}
		}
	}
	sort.Strings(tags)
	return tags, nil
}

// PinnedEntries returns the pinned subset of history.
func (c *Coordinator) PinnedEntries(ctx context.Context) ([]model.Entry, error) {
	entries, err := c.LoadHistory(ctx)
	if err != nil {
		return nil, err
	}
	pinned := []model.Entry{}
	for _, e := range entries {
		if e.Pinned {
			pinned = append(pinned, e)
		}
	}
	return pinned, nil
}

func (c *Coordinator) findEntry(ctx context.Context, id string) (*model.Entry, error) {
	entries, err := c.LoadHistory(ctx)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].ID == id {
			return &entries[i], nil
		}
	}
	return nil, nil
}
