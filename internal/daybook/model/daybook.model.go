package model

import "time"

// DayDocument is the single editable document for one calendar day.
// At most one row exists per (user, date).
type DayDocument struct {
	UserID     string    `json:"user_id,omitempty"`
	Date       string    `json:"date"` // YYYY-MM-DD, sortable lexically
	Content    string    `json:"content"`
	UpdatedAt  time.Time `json:"updated_at"`
	ClientID   string    `json:"client_id,omitempty"`
	MutationID string    `json:"mutation_id,omitempty"`
}

// Entry is an archived day in the history list.
type Entry struct {
	ID        string   `json:"id"`
	Date      string   `json:"date"`
	Content   string   `json:"content"`
	Timestamp int64    `json:"timestamp"` // unix millis at archival time
	Tags      []string `json:"tags"`
	Pinned    bool     `json:"pinned"`
}

// EntryUpdate carries a partial update; nil fields are left untouched.
type EntryUpdate struct {
	Content *string   `json:"content,omitempty"`
	Tags    *[]string `json:"tags,omitempty"`
	Pinned  *bool     `json:"pinned,omitempty"`
}

type SaveDayRequest struct {
	Date       string    `json:"date"`
	Content    string    `json:"content"`
	UpdatedAt  time.Time `json:"updated_at"`
	ClientID   string    `json:"client_id"`
	MutationID string    `json:"mutation_id"`
}

type SaveDayResponse struct {
	UpdatedAt time.Time `json:"updated_at"`
	// Applied is false when the stored document was newer and the write
	// was dropped by the last-write-wins guard.
	Applied bool `json:"applied"`
}
