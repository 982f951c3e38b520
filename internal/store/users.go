package store

import (
	"database/sql"
	"fmt"
	"time"
)

// DefaultFreezeDays is the freeze preference assigned to new users.
const DefaultFreezeDays = 7

// User is a registered icebox account, created lazily on first contact.
type User struct {
	UserID       int64
	FreezeDays   int
	IsPremium    bool
	PremiumUntil *int64
	IdeasCount   int
	City         string
	CreatedAt    int64
}

// GetOrCreateUser returns the user row for id, inserting it with defaults if
// missing. Expired premium is normalized before the row is returned: any read
// that observes premium_until in the past clears the flag and persists that.
func (db *DB) GetOrCreateUser(userID int64) (*User, error) {
	u, err := db.getUser(userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		now := time.Now().UnixMilli()
		_, err := db.Exec(`
			INSERT INTO users (user_id, freeze_days, created_at) VALUES (?, ?, ?)
		`, userID, DefaultFreezeDays, now)
		if err != nil {
			return nil, fmt.Errorf("insert user %d: %w", userID, err)
		}
		u, err = db.getUser(userID)
		if err != nil {
			return nil, err
		}
	}

	if u.IsPremium && u.PremiumUntil != nil && *u.PremiumUntil < time.Now().UnixMilli() {
		if _, err := db.Exec("UPDATE users SET is_premium = 0 WHERE user_id = ?", userID); err != nil {
			return nil, fmt.Errorf("clear expired premium for %d: %w", userID, err)
		}
		u.IsPremium = false
	}

	return u, nil
}

func (db *DB) getUser(userID int64) (*User, error) {
	var u User
	var premiumUntil sql.NullInt64
	var isPremium int
	var city sql.NullString
	err := db.QueryRow(`
		SELECT user_id, freeze_days, is_premium, premium_until, ideas_count, city, created_at
		FROM users WHERE user_id = ?
	`, userID).Scan(&u.UserID, &u.FreezeDays, &isPremium, &premiumUntil, &u.IdeasCount, &city, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", userID, err)
	}
	u.IsPremium = isPremium != 0
	u.City = city.String
	if premiumUntil.Valid {
		u.PremiumUntil = &premiumUntil.Int64
	}
	return &u, nil
}

// SetFreezeDays updates the user's freeze-duration preference for new ideas.
// Entitlement checks happen above the store.
func (db *DB) SetFreezeDays(userID int64, days int) error {
	_, err := db.Exec("UPDATE users SET freeze_days = ? WHERE user_id = ?", days, userID)
	if err != nil {
		return fmt.Errorf("set freeze days for %d: %w", userID, err)
	}
	return nil
}

// SetCity updates the user's city, used for the weather context snapshot.
func (db *DB) SetCity(userID int64, city string) error {
	_, err := db.Exec("UPDATE users SET city = ? WHERE user_id = ?", city, userID)
	if err != nil {
		return fmt.Errorf("set city for %d: %w", userID, err)
	}
	return nil
}

// ActivatePremium sets premium until the given instant. Repeated calls
// reset the window fully: last writer wins, no extension of an existing one.
// Creates the user row if it doesn't exist yet.
func (db *DB) ActivatePremium(userID int64, until int64) error {
	result, err := db.Exec(`
		UPDATE users SET is_premium = 1, premium_until = ? WHERE user_id = ?
	`, until, userID)
	if err != nil {
		return fmt.Errorf("activate premium for %d: %w", userID, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		now := time.Now().UnixMilli()
		_, err := db.Exec(`
			INSERT INTO users (user_id, freeze_days, is_premium, premium_until, created_at)
			VALUES (?, ?, 1, ?, ?)
		`, userID, DefaultFreezeDays, until, now)
		if err != nil {
			return fmt.Errorf("insert premium user %d: %w", userID, err)
		}
	}
	return nil
}
