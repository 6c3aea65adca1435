package localstore

import (
	"path/filepath"
	"testing"

	"dumpzone/internal/daybook/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCurrentDayRoundTrip(t *testing.T) {
	store := openTestStore(t)

	content, err := store.GetCurrentDay("2026-09-01")
	require.NoError(t, err)
	assert.Empty(t, content, "A fresh store has no content")

	require.NoError(t, store.SetCurrentDay("2026-09-01", "today's dump"))

	content, err = store.GetCurrentDay("2026-09-01")
	require.NoError(t, err)
	assert.Equal(t, "today's dump", content)
}

func TestGetCurrentDayIsKeyedAndNonDestructive(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.SetCurrentDay("2026-08-31", "yesterday's text"))

	// Asking for a different day returns nothing...
	content, err := store.GetCurrentDay("2026-09-01")
	require.NoError(t, err)
	assert.Empty(t, content)

	// ...but the stored day is still fully readable. Rollover depends on
	// reading the outgoing day after the date has changed.
	content, err = store.GetCurrentDay("2026-08-31")
	require.NoError(t, err)
	assert.Equal(t, "yesterday's text", content)
}

func TestClearCurrentDay(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.SetCurrentDay("2026-08-31", "old"))
	require.NoError(t, store.ClearCurrentDay("2026-09-01"))

	day, content, err := store.CurrentDaySnapshot()
	require.NoError(t, err)
	assert.Equal(t, "2026-09-01", day)
	assert.Empty(t, content)
}

func TestHistoryRoundTrip(t *testing.T) {
	store := openTestStore(t)

	e1 := model.Entry{ID: "2026-08-30-100", Date: "2026-08-30", Content: "first", Timestamp: 100, Tags: []string{"work"}}
	e2 := model.Entry{ID: "2026-08-31-200", Date: "2026-08-31", Content: "second", Timestamp: 200, Pinned: true}
	require.NoError(t, store.AppendHistory(e1))
	require.NoError(t, store.AppendHistory(e2))

	entries, err := store.ListHistory()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first.
	assert.Equal(t, "2026-08-31-200", entries[0].ID)
	assert.True(t, entries[0].Pinned)
	assert.Equal(t, []string{}, entries[0].Tags)
	assert.Equal(t, []string{"work"}, entries[1].Tags)
}

func TestUpdateHistoryEntryPartialFields(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.AppendHistory(model.Entry{
		ID: "e1", Date: "2026-08-30", Content: "original", Timestamp: 1, Tags: []string{"a"},
	}))

	pinned := true
	ok, err := store.UpdateHistoryEntry("e1", model.EntryUpdate{Pinned: &pinned})
	require.NoError(t, err)
	require.True(t, ok)

	entries, err := store.ListHistory()
	require.NoError(t, err)
	assert.True(t, entries[0].Pinned)
	assert.Equal(t, "original", entries[0].Content, "Fields absent from the update stay untouched")
	assert.Equal(t, []string{"a"}, entries[0].Tags)

	ok, err = store.UpdateHistoryEntry("missing", model.EntryUpdate{Pinned: &pinned})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteHistoryEntry(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.AppendHistory(model.Entry{ID: "e1", Date: "2026-08-30", Content: "x", Timestamp: 1}))

	ok, err := store.DeleteHistoryEntry("e1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.DeleteHistoryEntry("e1")
	require.NoError(t, err)
	assert.False(t, ok)

	entries, err := store.ListHistory()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReplaceHistory(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.AppendHistory(model.Entry{ID: "old", Date: "2026-08-01", Content: "x", Timestamp: 1}))

	err := store.ReplaceHistory([]model.Entry{
		{ID: "new1", Date: "2026-08-30", Content: "a", Timestamp: 10},
		{ID: "new2", Date: "2026-08-31", Content: "b", Timestamp: 20},
	})
	require.NoError(t, err)

	entries, err := store.ListHistory()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "new2", entries[0].ID)
	assert.Equal(t, "new1", entries[1].ID)
}
