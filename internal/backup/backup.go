// Package backup exports and imports the device's full state as a single
// versioned JSON document.
package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"dumpzone/internal/datekey"
	"dumpzone/internal/daybook/model"
)

const Version = 1

// Store is the slice of the local store backup works against.
type Store interface {
	CurrentDaySnapshot() (dateKey, content string, err error)
	SetCurrentDay(dateKey, content string) error
	ListHistory() ([]model.Entry, error)
	ReplaceHistory(entries []model.Entry) error
}

type CurrentDay struct {
	Date    string `json:"date"`
	Content string `json:"content"`
}

type Backup struct {
	Version    int           `json:"version"`
	ExportedAt time.Time     `json:"exportedAt"`
	CurrentDay CurrentDay    `json:"currentDay"`
	Entries    []model.Entry `json:"entries"`
}

// Create captures the store's full state.
func Create(store Store) (*Backup, error) {
	day, content, err := store.CurrentDaySnapshot()
	if err != nil {
		return nil, err
	}
	entries, err := store.ListHistory()
	if err != nil {
		return nil, err
	}
	return &Backup{
		Version:    Version,
		ExportedAt: time.Now().UTC(),
		CurrentDay: CurrentDay{Date: day, Content: content},
		Entries:    entries,
	}, nil
}

// WriteFile writes the backup as indented JSON.
func WriteFile(store Store, path string) error {
	b, err := Create(store)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("backup: encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("backup: write %s: %w", path, err)
	}
	return nil
}

// Parse decodes and fully validates a backup document. Nothing is written
// anywhere until validation passes; a half-valid file must not be able to
// partially clobber the store.
func Parse(data []byte) (*Backup, error) {
	var b Backup
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("backup: decode: %w", err)
	}
	if b.Version != Version {
		return nil, fmt.Errorf("backup: unsupported version %d", b.Version)
	}
	if b.CurrentDay.Date != "" && !datekey.Valid(b.CurrentDay.Date) {
		return nil, fmt.Errorf("backup: invalid current day date %q", b.CurrentDay.Date)
	}
	seen := make(map[string]bool, len(b.Entries))
	for i, e := range b.Entries {
		if e.ID == "" {
			return nil, fmt.Errorf("backup: entry %d has no id", i)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("backup: duplicate entry id %s", e.ID)
		}
		seen[e.ID] = true
		if !datekey.Valid(e.Date) {
			return nil, fmt.Errorf("backup: entry %s has invalid date %q", e.ID, e.Date)
		}
		if e.Timestamp <= 0 {
			return nil, fmt.Errorf("backup: entry %s has invalid timestamp", e.ID)
		}
	}
	return &b, nil
}

// Restore replaces the history list with the backup's and, only when the
// backup's current day is still today, restores the day slot too. A stale
// current day from an old backup never overwrites what the user wrote today.
func Restore(store Store, b *Backup, now time.Time) error {
	if err := store.ReplaceHistory(b.Entries); err != nil {
		return err
	}
	if b.CurrentDay.Date == datekey.Format(now) {
		if err := store.SetCurrentDay(b.CurrentDay.Date, b.CurrentDay.Content); err != nil {
			return err
		}
	}
	return nil
}

// RestoreFile reads, validates and restores a backup from disk.
func RestoreFile(store Store, path string, now time.Time) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("backup: read %s: %w", path, err)
	}
	b, err := Parse(data)
	if err != nil {
		return err
	}
	return Restore(store, b, now)
}
