package premium

import (
	"context"
	"fmt"
	"time"

	"github.com/icebox-app/icebox/internal/payment"
	"github.com/icebox-app/icebox/internal/store"
)

// Gateway is the slice of the payment client the manager needs.
type Gateway interface {
	CreateCheckout(ctx context.Context, userID int64, amount float64, plan, description string) (*payment.Checkout, error)
	GetStatus(ctx context.Context, paymentID string) (payment.Status, error)
}

// Manager orchestrates the purchase flow: checkout creation, user-triggered
// status checks, and premium activation.
type Manager struct {
	DB      *store.DB
	Gateway Gateway
}

// NewManager wires a manager over the store and a gateway client.
func NewManager(db *store.DB, gw Gateway) *Manager {
	return &Manager{DB: db, Gateway: gw}
}

// Checkout is what the caller needs to complete a purchase: where to send
// the user and which id to poll afterwards.
type Checkout struct {
	PaymentID       string
	ConfirmationURL string
	Plan            Plan
}

// StartCheckout creates a payment at the gateway for the given plan and
// records it locally as pending. The gateway call happens first; a checkout
// that fails remotely leaves no local row behind.
func (m *Manager) StartCheckout(ctx context.Context, userID int64, planTag string) (*Checkout, error) {
	plan, ok := PlanByTag(planTag)
	if !ok {
		return nil, fmt.Errorf("unknown plan %q", planTag)
	}

	// The user row must exist before the gateway call: a checkout created
	// remotely and then rejected by the local payments insert would be
	// orphaned at the gateway.
	if _, err := m.DB.GetOrCreateUser(userID); err != nil {
		return nil, err
	}

	desc := fmt.Sprintf("IceBox premium, %s", plan.Label)
	co, err := m.Gateway.CreateCheckout(ctx, userID, plan.Price, plan.Tag, desc)
	if err != nil {
		return nil, fmt.Errorf("create checkout: %w", err)
	}

	if _, err := m.DB.CreatePayment(userID, co.PaymentID, co.ConfirmationURL, plan.Price, plan.Tag); err != nil {
		return nil, fmt.Errorf("record checkout: %w", err)
	}

	return &Checkout{
		PaymentID:       co.PaymentID,
		ConfirmationURL: co.ConfirmationURL,
		Plan:            plan,
	}, nil
}

// CheckResult is the outcome of a user-triggered status check.
type CheckResult struct {
	Status       string `json:"status"`
	PremiumUntil int64  `json:"premium_until,omitempty"`
}

// Check statuses surfaced to callers.
const (
	CheckPaid     = "paid"
	CheckPending  = "pending"
	CheckCanceled = "canceled"
	CheckNotFound = "not_found"
)

// CheckPayment polls the gateway for a pending payment and applies the
// outcome. A successful payment activates premium exactly once; repeat checks
// on a paid payment report paid without touching the user again. Statuses
// other than succeeded or canceled leave the payment pending and
// re-checkable.
func (m *Manager) CheckPayment(ctx context.Context, paymentID string) (*CheckResult, error) {
	p, err := m.DB.GetPayment(paymentID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return &CheckResult{Status: CheckNotFound}, nil
	}
	if p.Status == store.PaymentPaid {
		return &CheckResult{Status: CheckPaid}, nil
	}
	if p.Status == store.PaymentCanceled {
		return &CheckResult{Status: CheckCanceled}, nil
	}

	status, err := m.Gateway.GetStatus(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("check payment %s: %w", paymentID, err)
	}

	switch status {
	case payment.StatusSucceeded:
		plan, ok := PlanByTag(p.Plan)
		if !ok {
			return nil, fmt.Errorf("payment %s references unknown plan %q", paymentID, p.Plan)
		}
		until := plan.Until(time.Now())
		if _, err := m.DB.MarkPaid(paymentID, until); err != nil {
			return nil, err
		}
		return &CheckResult{Status: CheckPaid, PremiumUntil: until}, nil
	case payment.StatusCanceled:
		if err := m.DB.MarkCanceled(paymentID); err != nil {
			return nil, err
		}
		return &CheckResult{Status: CheckCanceled}, nil
	case payment.StatusNotFound:
		return &CheckResult{Status: CheckNotFound}, nil
	default:
		return &CheckResult{Status: CheckPending}, nil
	}
}

// Grant activates premium for a user without a payment, for the given number
// of days from now. Used by the admin CLI.
func (m *Manager) Grant(userID int64, days int) (int64, error) {
	if days < 1 {
		return 0, fmt.Errorf("grant: days must be positive, got %d", days)
	}
	until := time.Now().Add(time.Duration(days) * 24 * time.Hour).UnixMilli()
	if err := m.DB.ActivatePremium(userID, until); err != nil {
		return 0, err
	}
	return until, nil
}
