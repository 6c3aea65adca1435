// Package localstore is the on-device durable store: the current day's date
// marker and content, plus the archived history list. It works with no
// network access at all.
package localstore

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"dumpzone/internal/daybook/model"

	_ "modernc.org/sqlite"
)

const (
	currentDayKey     = "dump-zone-current-day"
	currentContentKey = "dump-zone-current-content"
)

type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the store at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("localstore: open %s: %w", path, err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS slots (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS entries (
			id        TEXT PRIMARY KEY,
			date      TEXT NOT NULL,
			content   TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			tags      TEXT NOT NULL DEFAULT '[]',
			pinned    INTEGER NOT NULL DEFAULT 0
		);`)
	if err != nil {
		return fmt.Errorf("localstore: migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) getSlot(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM slots WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (s *Store) setSlot(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO slots (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// GetCurrentDay returns the stored content for dateKey, or "" when the
// stored day marker belongs to a different day. It never mutates the slot;
// rollover reads the outgoing day's content through this path and must not
// lose it.
func (s *Store) GetCurrentDay(dateKey string) (string, error) {
	storedDay, err := s.getSlot(currentDayKey)
	if err != nil {
		return "", fmt.Errorf("localstore: read day marker: %w", err)
	}
	if storedDay != dateKey {
		return "", nil
	}
	content, err := s.getSlot(currentContentKey)
	if err != nil {
		return "", fmt.Errorf("localstore: read content: %w", err)
	}
	return content, nil
}

// CurrentDaySnapshot returns the stored day marker and content as-is,
// whatever day they belong to. Backup uses it to capture the slot verbatim.
func (s *Store) CurrentDaySnapshot() (string, string, error) {
	day, err := s.getSlot(currentDayKey)
	if err != nil {
		return "", "", fmt.Errorf("localstore: read day marker: %w", err)
	}
	content, err := s.getSlot(currentContentKey)
	if err != nil {
		return "", "", fmt.Errorf("localstore: read content: %w", err)
	}
	return day, content, nil
}

func (s *Store) SetCurrentDay(dateKey, content string) error {
	if err := s.setSlot(currentDayKey, dateKey); err != nil {
		return fmt.Errorf("localstore: write day marker: %w", err)
	}
	if err := s.setSlot(currentContentKey, content); err != nil {
		return fmt.Errorf("localstore: write content: %w", err)
	}
	return nil
}

// ClearCurrentDay empties the content slot and moves the day marker to
// dateKey.
func (s *Store) ClearCurrentDay(dateKey string) error {
	return s.SetCurrentDay(dateKey, "")
}

func (s *Store) AppendHistory(entry model.Entry) error {
	tags := entry.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("localstore: encode tags: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO entries (id, date, content, timestamp, tags, pinned)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Date, entry.Content, entry.Timestamp, string(tagsJSON), entry.Pinned)
	if err != nil {
		return fmt.Errorf("localstore: append entry %s: %w", entry.ID, err)
	}
	return nil
}

func (s *Store) ListHistory() ([]model.Entry, error) {
	rows, err := s.db.Query(`
		SELECT id, date, content, timestamp, tags, pinned
		FROM entries ORDER BY timestamp DESC`)
	if err != nil {
		return nil, fmt.Errorf("localstore: list entries: %w", err)
	}
	defer rows.Close()

	entries := []model.Entry{}
	for rows.Next() {
		var e model.Entry
		var tagsJSON string
		if err := rows.Scan(&e.ID, &e.Date, &e.Content, &e.Timestamp, &tagsJSON, &e.Pinned); err != nil {
			return nil, fmt.Errorf("localstore: scan entry: %w", err)
		}
		if err := json.Unmarshal([]byte(tagsJSON), &e.Tags); err != nil {
			e.Tags = []string{}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) UpdateHistoryEntry(id string, update model.EntryUpdate) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("localstore: begin update: %w", err)
	}
	defer tx.Rollback()

	var content, tagsJSON string
	var pinned bool
	err = tx.QueryRow(`SELECT content, tags, pinned FROM entries WHERE id = ?`, id).
		Scan(&content, &tagsJSON, &pinned)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("localstore: read entry %s: %w", id, err)
	}

	if update.Content != nil {
		content = *update.Content
	}
	if update.Pinned != nil {
		pinned = *update.Pinned
	}
	if update.Tags != nil {
		encoded, err := json.Marshal(*update.Tags)
		if err != nil {
			return false, fmt.Errorf("localstore: encode tags: %w", err)
		}
		tagsJSON = string(encoded)
	}

	if _, err := tx.Exec(`UPDATE entries SET content = ?, tags = ?, pinned = ? WHERE id = ?`,
		content, tagsJSON, pinned, id); err != nil {
		return false, fmt.Errorf("localstore: update entry %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("localstore: commit update: %w", err)
	}
	return true, nil
}

func (s *Store) DeleteHistoryEntry(id string) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("localstore: delete entry %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ReplaceHistory atomically swaps the whole history list. Used by backup
// restore; either every entry lands or none do.
func (s *Store) ReplaceHistory(entries []model.Entry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("localstore: begin replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM entries`); err != nil {
		return fmt.Errorf("localstore: clear entries: %w", err)
	}
	for _, e := range entries {
		tags := e.Tags
		if tags == nil {
			tags = []string{}
		}
		tagsJSON, err := json.Marshal(tags)
		if err != nil {
			return fmt.Errorf("localstore: encode tags: %w", err)
		}
		if _, err := tx.Exec(`
			INSERT INTO entries (id, date, content, timestamp, tags, pinned)
			VALUES (?, ?, ?, ?, ?, ?)`,
			e.ID, e.Date, e.Content, e.Timestamp, string(tagsJSON), e.Pinned); err != nil {
			return fmt.Errorf("localstore: restore entry %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}
