package repository

import (
	"database/sql"
	"strconv"
	"strings"

	"dumpzone/internal/daybook/model"
	"dumpzone/pkg/logger"

	"github.com/lib/pq"
)

type DaybookRepository struct {
	DB *sql.DB
}

func NewDaybookRepository(db *sql.DB) *DaybookRepository {
	return &DaybookRepository{DB: db}
}

// GetDay returns the day document for (user, date), or nil when absent.
func (r *DaybookRepository) GetDay(userID, date string) (*model.DayDocument, error) {
	doc := &model.DayDocument{UserID: userID, Date: date}
	err := r.DB.QueryRow(
		`SELECT content, updated_at, client_id, mutation_id FROM current_day WHERE user_id = $1 AND date = $2`,
		userID, date,
	).Scan(&doc.Content, &doc.UpdatedAt, &doc.ClientID, &doc.MutationID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to get day %s for user %s: %v", date, userID, err)
		return nil, err
	}
	return doc, nil
}

// UpsertDay writes the day document, but never regresses a newer one: the
// update only applies when the stored updated_at is not ahead of the incoming
// one. Returns whether the write was applied.
func (r *DaybookRepository) UpsertDay(doc *model.DayDocument) (bool, error) {
	result, err := r.DB.Exec(`
		INSERT INTO current_day (user_id, date, content, updated_at, client_id, mutation_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, date) DO UPDATE
		SET content = EXCLUDED.content, updated_at = EXCLUDED.updated_at,
		    client_id = EXCLUDED.client_id, mutation_id = EXCLUDED.mutation_id
		WHERE current_day.updated_at <= EXCLUDED.updated_at`,
		doc.UserID, doc.Date, doc.Content, doc.UpdatedAt, doc.ClientID, doc.MutationID)
	if err != nil {
		logger.Sugar.Errorf("Failed to upsert day %s for user %s: %v", doc.Date, doc.UserID, err)
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *DaybookRepository) DeleteDay(userID, date string) error {
	_, err := r.DB.Exec(`DELETE FROM current_day WHERE user_id = $1 AND date = $2`, userID, date)
	if err != nil {
		logger.Sugar.Errorf("Failed to delete day %s for user %s: %v", date, userID, err)
	}
	return err
}

func (r *DaybookRepository) InsertEntry(userID string, e *model.Entry) error {
	_, err := r.DB.Exec(`
		INSERT INTO dump_entries (id, user_id, date, content, timestamp, tags, pinned)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, userID, e.Date, e.Content, e.Timestamp, pq.Array(e.Tags), e.Pinned)
	if err != nil {
		logger.Sugar.Errorf("Failed to insert entry %s for user %s: %v", e.ID, userID, err)
	}
	return err
}

func (r *DaybookRepository) ListEntries(userID string) ([]model.Entry, error) {
	rows, err := r.DB.Query(`
		SELECT id, date, content, timestamp, tags, pinned
		FROM dump_entries WHERE user_id = $1 ORDER BY timestamp DESC`, userID)
	if err != nil {
		logger.Sugar.Errorf("Failed to list entries for user %s: %v", userID, err)
		return nil, err
	}
	defer rows.Close()

	entries := []model.Entry{}
	for rows.Next() {
		var e model.Entry
		if err := rows.Scan(&e.ID, &e.Date, &e.Content, &e.Timestamp, pq.Array(&e.Tags), &e.Pinned); err != nil {
			logger.Sugar.Errorf("Failed to scan entry row: %v", err)
			continue
		}
		if e.Tags == nil {
			e.Tags = []string{}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *DaybookRepository) GetEntry(userID, entryID string) (*model.Entry, error) {
	e := &model.Entry{}
	err := r.DB.QueryRow(`
		SELECT id, date, content, timestamp, tags, pinned
		FROM dump_entries WHERE user_id = $1 AND id = $2`, userID, entryID).
		Scan(&e.ID, &e.Date, &e.Content, &e.Timestamp, pq.Array(&e.Tags), &e.Pinned)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to get entry %s for user %s: %v", entryID, userID, err)
		return nil, err
	}
	if e.Tags == nil {
		e.Tags = []string{}
	}
	return e, nil
}

// UpdateEntry applies the non-nil fields of the update to one entry.
// The entry id itself is immutable.
func (r *DaybookRepository) UpdateEntry(userID, entryID string, update model.EntryUpdate) (bool, error) {
	sets := []string{}
	args := []interface{}{}
	idx := 1

	if update.Content != nil {
		sets = append(sets, "content = $"+strconv.Itoa(idx))
		args = append(args, *update.Content)
		idx++
	}
	if update.Tags != nil {
		sets = append(sets, "tags = $"+strconv.Itoa(idx))
		args = append(args, pq.Array(*update.Tags))
		idx++
	}
	if update.Pinned != nil {
		sets = append(sets, "pinned = $"+strconv.Itoa(idx))
		args = append(args, *update.Pinned)
		idx++
	}
	if len(sets) == 0 {
		return false, nil
	}

	query := "UPDATE dump_entries SET " + strings.Join(sets, ", ") +
		" WHERE user_id = $" + strconv.Itoa(idx) + " AND id = $" + strconv.Itoa(idx+1)
	args = append(args, userID, entryID)

	result, err := r.DB.Exec(query, args...)
	if err != nil {
		logger.Sugar.Errorf("Failed to update entry %s for user %s: %v", entryID, userID, err)
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *DaybookRepository) DeleteEntry(userID, entryID string) (bool, error) {
	result, err := r.DB.Exec(`DELETE FROM dump_entries WHERE user_id = $1 AND id = $2`, userID, entryID)
	if err != nil {
		logger.Sugar.Errorf("Failed to delete entry %s for user %s: %v", entryID, userID, err)
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
