package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Idea types.
const (
	TypeText  = "text"
	TypeVoice = "voice"
	TypePhoto = "photo"
)

// Idea is a single captured note. The day-of-week, time-of-day, and weather
// fields are snapshotted at creation and never recomputed.
type Idea struct {
	ID          int64
	UserID      int64
	Content     string
	IdeaType    string
	FileID      string
	FilePath    string
	Source      string
	FrozenUntil int64
	CreatedAt   int64
	OpenedCount int
	IsValuable  bool
	DayOfWeek   string
	TimeOfDay   string
	Weather     string
}

const ideaColumns = `id, user_id, content, idea_type, file_id, file_path, source,
	frozen_until, created_at, opened_count, is_valuable, day_of_week, time_of_day, weather`

// CreateIdea inserts an idea and increments the owner's lifetime idea counter
// in a single transaction. FrozenUntil must already be computed; CreatedAt and
// the context snapshot are stamped here.
func (db *DB) CreateIdea(idea *Idea) error {
	now := time.Now()
	nowMs := now.UnixMilli()
	if idea.Source == "" {
		idea.Source = "direct"
	}
	if idea.DayOfWeek == "" {
		idea.DayOfWeek = now.Weekday().String()
	}
	if idea.TimeOfDay == "" {
		idea.TimeOfDay = now.Format("15:04")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin create idea: %w", err)
	}

	result, err := tx.Exec(`
		INSERT INTO ideas (user_id, content, idea_type, file_id, file_path, source,
			frozen_until, created_at, day_of_week, time_of_day, weather)
		VALUES (?, NULLIF(?, ''), ?, NULLIF(?, ''), NULLIF(?, ''), ?, ?, ?, ?, ?, NULLIF(?, ''))
	`, idea.UserID, idea.Content, idea.IdeaType, idea.FileID, idea.FilePath, idea.Source,
		idea.FrozenUntil, nowMs, idea.DayOfWeek, idea.TimeOfDay, idea.Weather)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("insert idea: %w", err)
	}

	if _, err := tx.Exec(
		"UPDATE users SET ideas_count = ideas_count + 1 WHERE user_id = ?", idea.UserID,
	); err != nil {
		tx.Rollback()
		return fmt.Errorf("increment ideas_count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create idea: %w", err)
	}

	id, _ := result.LastInsertId()
	idea.ID = id
	idea.CreatedAt = nowMs
	return nil
}

// GetIdea returns an idea by id, or nil if not found.
func (db *DB) GetIdea(id int64) (*Idea, error) {
	row := db.QueryRow("SELECT "+ideaColumns+" FROM ideas WHERE id = ?", id)
	idea, err := scanIdea(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get idea %d: %w", id, err)
	}
	return idea, nil
}

// OpenIdea returns the full idea and increments its open counter. Returns
// nil for a deleted or unknown id, or one belonging to another user.
func (db *DB) OpenIdea(id, userID int64) (*Idea, error) {
	idea, err := db.GetIdea(id)
	if err != nil || idea == nil {
		return idea, err
	}
	if idea.UserID != userID {
		return nil, nil
	}
	if _, err := db.Exec(
		"UPDATE ideas SET opened_count = opened_count + 1 WHERE id = ? AND user_id = ?", id, userID,
	); err != nil {
		return nil, fmt.Errorf("increment opened_count for %d: %w", id, err)
	}
	idea.OpenedCount++
	return idea, nil
}

// DeleteIdea removes an idea and appends one row to the deletion audit in a
// single transaction. Returns false if the idea did not exist (benign).
func (db *DB) DeleteIdea(id, userID int64) (bool, error) {
	tx, err := db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin delete idea: %w", err)
	}

	result, err := tx.Exec("DELETE FROM ideas WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		tx.Rollback()
		return false, fmt.Errorf("delete idea %d: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		tx.Rollback()
		return false, nil
	}

	if _, err := tx.Exec(
		"INSERT INTO deleted_ideas (user_id, deleted_at) VALUES (?, ?)",
		userID, time.Now().UnixMilli(),
	); err != nil {
		tx.Rollback()
		return false, fmt.Errorf("record deletion for %d: %w", userID, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete idea: %w", err)
	}
	return true, nil
}

// Refreeze pushes the idea's unlock instant to the given time. Scoped to the
// owner; a foreign id is a benign no-op.
func (db *DB) Refreeze(id, userID int64, until int64) error {
	_, err := db.Exec("UPDATE ideas SET frozen_until = ? WHERE id = ? AND user_id = ?", until, id, userID)
	if err != nil {
		return fmt.Errorf("refreeze idea %d: %w", id, err)
	}
	return nil
}

// MarkValuable flags an idea as valuable. Scoped to the owner.
func (db *DB) MarkValuable(id, userID int64) error {
	_, err := db.Exec("UPDATE ideas SET is_valuable = 1 WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("mark valuable %d: %w", id, err)
	}
	return nil
}

// Thawed returns the user's ideas whose freeze window has elapsed,
// newest-created first.
func (db *DB) Thawed(userID int64) ([]Idea, error) {
	rows, err := db.Query(`
		SELECT `+ideaColumns+` FROM ideas
		WHERE user_id = ? AND frozen_until <= ?
		ORDER BY created_at DESC
	`, userID, time.Now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("thawed ideas: %w", err)
	}
	defer rows.Close()
	return scanIdeas(rows)
}

// Old returns ideas created at or before the cutoff, oldest first, capped
// at limit. Used by the bulk-cleanup view.
func (db *DB) Old(userID int64, cutoff int64, limit int) ([]Idea, error) {
	rows, err := db.Query(`
		SELECT `+ideaColumns+` FROM ideas
		WHERE user_id = ? AND created_at <= ?
		ORDER BY created_at ASC
		LIMIT ?
	`, userID, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("old ideas: %w", err)
	}
	defer rows.Close()
	return scanIdeas(rows)
}

// Recent returns up to limit of the user's most recently created ideas,
// newest first. Feeds the similarity gate.
func (db *DB) Recent(userID int64, limit int) ([]Idea, error) {
	rows, err := db.Query(`
		SELECT `+ideaColumns+` FROM ideas
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent ideas: %w", err)
	}
	defer rows.Close()
	return scanIdeas(rows)
}

// SearchIdeas returns up to limit ideas whose content contains the query
// substring, newest first.
func (db *DB) SearchIdeas(userID int64, query string, limit int) ([]Idea, error) {
	rows, err := db.Query(`
		SELECT `+ideaColumns+` FROM ideas
		WHERE user_id = ? AND content LIKE ?
		ORDER BY created_at DESC
		LIMIT ?
	`, userID, "%"+query+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("search ideas: %w", err)
	}
	defer rows.Close()
	return scanIdeas(rows)
}

// ForExport returns the user's ideas for document rendering, newest first.
func (db *DB) ForExport(userID int64, valuableOnly bool) ([]Idea, error) {
	q := "SELECT " + ideaColumns + " FROM ideas WHERE user_id = ?"
	if valuableOnly {
		q += " AND is_valuable = 1"
	}
	q += " ORDER BY created_at DESC"

	rows, err := db.Query(q, userID)
	if err != nil {
		return nil, fmt.Errorf("ideas for export: %w", err)
	}
	defer rows.Close()
	return scanIdeas(rows)
}

// RandomOld returns one random idea created at or before the cutoff,
// or nil when the user has none that old.
func (db *DB) RandomOld(userID int64, cutoff int64) (*Idea, error) {
	row := db.QueryRow(`
		SELECT `+ideaColumns+` FROM ideas
		WHERE user_id = ? AND created_at <= ?
		ORDER BY RANDOM() LIMIT 1
	`, userID, cutoff)
	idea, err := scanIdea(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("random old idea: %w", err)
	}
	return idea, nil
}

// Stats aggregates a user's capture history. Total is the lifetime counter,
// alive counts surviving rows, deleted counts audit entries.
type Stats struct {
	Total    int
	Alive    int
	Deleted  int
	Valuable int
}

// UserStats computes the stats block for a user.
func (db *DB) UserStats(userID int64) (Stats, error) {
	var s Stats
	err := db.QueryRow(
		"SELECT COALESCE(ideas_count, 0) FROM users WHERE user_id = ?", userID,
	).Scan(&s.Total)
	if err != nil && err != sql.ErrNoRows {
		return s, fmt.Errorf("stats total: %w", err)
	}
	if err := db.QueryRow(
		"SELECT COUNT(*) FROM ideas WHERE user_id = ?", userID,
	).Scan(&s.Alive); err != nil {
		return s, fmt.Errorf("stats alive: %w", err)
	}
	if err := db.QueryRow(
		"SELECT COUNT(*) FROM deleted_ideas WHERE user_id = ?", userID,
	).Scan(&s.Deleted); err != nil {
		return s, fmt.Errorf("stats deleted: %w", err)
	}
	if err := db.QueryRow(
		"SELECT COUNT(*) FROM ideas WHERE user_id = ? AND is_valuable = 1", userID,
	).Scan(&s.Valuable); err != nil {
		return s, fmt.Errorf("stats valuable: %w", err)
	}
	return s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdea(row rowScanner) (*Idea, error) {
	var i Idea
	var isValuable int
	var content, fileID, filePath, dow, tod, weather sql.NullString
	err := row.Scan(&i.ID, &i.UserID, &content, &i.IdeaType, &fileID, &filePath, &i.Source,
		&i.FrozenUntil, &i.CreatedAt, &i.OpenedCount, &isValuable, &dow, &tod, &weather)
	if err != nil {
		return nil, err
	}
	i.Content = content.String
	i.FileID = fileID.String
	i.FilePath = filePath.String
	i.DayOfWeek = dow.String
	i.TimeOfDay = tod.String
	i.Weather = weather.String
	i.IsValuable = isValuable != 0
	return &i, nil
}

func scanIdeas(rows *sql.Rows) ([]Idea, error) {
	var ideas []Idea
	for rows.Next() {
		idea, err := scanIdea(rows)
		if err != nil {
			return nil, fmt.Errorf("scan idea: %w", err)
		}
		ideas = append(ideas, *idea)
	}
	return ideas, rows.Err()
}
