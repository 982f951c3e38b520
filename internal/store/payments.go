package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Payment statuses persisted locally. Statuses reported by the gateway that
// are neither paid nor canceled leave the row pending and re-checkable.
const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentCanceled = "canceled"
)

// Payment is a checkout record against the external gateway. Rows are never
// deleted; status moves pending → paid exactly once, or pending → canceled.
type Payment struct {
	ID              int64
	UserID          int64
	PaymentID       string
	ConfirmationURL string
	Amount          float64
	Plan            string
	Status          string
	CreatedAt       int64
	PaidAt          *int64
}

// CreatePayment records a freshly initiated checkout as pending. The
// confirmation URL is kept so the checkout link can be re-served (QR) while
// the payment is open.
func (db *DB) CreatePayment(userID int64, paymentID, confirmationURL string, amount float64, plan string) (*Payment, error) {
	now := time.Now().UnixMilli()
	result, err := db.Exec(`
		INSERT INTO payments (user_id, payment_id, confirmation_url, amount, plan, status, created_at)
		VALUES (?, ?, ?, ?, ?, 'pending', ?)
	`, userID, paymentID, confirmationURL, amount, plan, now)
	if err != nil {
		return nil, fmt.Errorf("insert payment %s: %w", paymentID, err)
	}
	id, _ := result.LastInsertId()
	return &Payment{
		ID:              id,
		UserID:          userID,
		PaymentID:       paymentID,
		ConfirmationURL: confirmationURL,
		Amount:          amount,
		Plan:            plan,
		Status:          PaymentPending,
		CreatedAt:       now,
	}, nil
}

// GetPayment returns a payment by its external id, or nil if unknown.
func (db *DB) GetPayment(paymentID string) (*Payment, error) {
	var p Payment
	var paidAt sql.NullInt64
	err := db.QueryRow(`
		SELECT id, user_id, payment_id, confirmation_url, amount, plan, status, created_at, paid_at
		FROM payments WHERE payment_id = ?
	`, paymentID).Scan(&p.ID, &p.UserID, &p.PaymentID, &p.ConfirmationURL, &p.Amount, &p.Plan, &p.Status, &p.CreatedAt, &paidAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get payment %s: %w", paymentID, err)
	}
	if paidAt.Valid {
		p.PaidAt = &paidAt.Int64
	}
	return &p, nil
}

// MarkPaid transitions a pending payment to paid and activates the owner's
// premium until the given instant, in one transaction. The transition happens
// exactly once: a payment already paid or canceled is left untouched and
// false is returned.
func (db *DB) MarkPaid(paymentID string, premiumUntil int64) (bool, error) {
	tx, err := db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin mark paid: %w", err)
	}

	now := time.Now().UnixMilli()
	result, err := tx.Exec(`
		UPDATE payments SET status = 'paid', paid_at = ?
		WHERE payment_id = ? AND status = 'pending'
	`, now, paymentID)
	if err != nil {
		tx.Rollback()
		return false, fmt.Errorf("mark paid %s: %w", paymentID, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		tx.Rollback()
		return false, nil
	}

	var userID int64
	if err := tx.QueryRow(
		"SELECT user_id FROM payments WHERE payment_id = ?", paymentID,
	).Scan(&userID); err != nil {
		tx.Rollback()
		return false, fmt.Errorf("lookup payment owner %s: %w", paymentID, err)
	}

	activated, err := tx.Exec(`
		UPDATE users SET is_premium = 1, premium_until = ? WHERE user_id = ?
	`, premiumUntil, userID)
	if err != nil {
		tx.Rollback()
		return false, fmt.Errorf("activate premium for %d: %w", userID, err)
	}
	if n, _ := activated.RowsAffected(); n == 0 {
		// Same insert fallback as ActivatePremium: a paid payment must
		// activate premium even when the user row is missing.
		if _, err := tx.Exec(`
			INSERT INTO users (user_id, freeze_days, is_premium, premium_until, created_at)
			VALUES (?, ?, 1, ?, ?)
		`, userID, DefaultFreezeDays, premiumUntil, now); err != nil {
			tx.Rollback()
			return false, fmt.Errorf("insert premium user %d: %w", userID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit mark paid: %w", err)
	}
	return true, nil
}

// MarkCanceled transitions a pending payment to canceled. Terminal states
// are left untouched.
func (db *DB) MarkCanceled(paymentID string) error {
	_, err := db.Exec(`
		UPDATE payments SET status = 'canceled'
		WHERE payment_id = ? AND status = 'pending'
	`, paymentID)
	if err != nil {
		return fmt.Errorf("mark canceled %s: %w", paymentID, err)
	}
	return nil
}
