package premium

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icebox-app/icebox/internal/payment"
	"github.com/icebox-app/icebox/internal/store"
)

type fakeGateway struct {
	checkouts int
	statuses  map[string]payment.Status
}

func (g *fakeGateway) CreateCheckout(_ context.Context, userID int64, amount float64, plan, description string) (*payment.Checkout, error) {
	g.checkouts++
	return &payment.Checkout{
		PaymentID:       "pay-1",
		ConfirmationURL: "https://pay.example/redirect",
	}, nil
}

func (g *fakeGateway) GetStatus(_ context.Context, paymentID string) (payment.Status, error) {
	st, ok := g.statuses[paymentID]
	if !ok {
		return payment.StatusNotFound, nil
	}
	return st, nil
}

func testManager(t *testing.T) (*Manager, *fakeGateway) {
	t.Helper()
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	gw := &fakeGateway{statuses: map[string]payment.Status{}}
	return NewManager(db, gw), gw
}

func TestPlanByTag(t *testing.T) {
	p, ok := PlanByTag("month")
	require.True(t, ok)
	assert.Equal(t, 99.0, p.Price)
	assert.Equal(t, 30, p.Days)

	p, ok = PlanByTag("lifetime")
	require.True(t, ok)
	assert.Equal(t, 1999.0, p.Price)
	assert.Equal(t, 36500, p.Days)

	_, ok = PlanByTag("weekly")
	assert.False(t, ok)
}

func TestStartCheckout(t *testing.T) {
	m, gw := testManager(t)
	_, err := m.DB.GetOrCreateUser(42)
	require.NoError(t, err)

	co, err := m.StartCheckout(context.Background(), 42, "month")
	require.NoError(t, err)
	assert.Equal(t, "pay-1", co.PaymentID)
	assert.Equal(t, "https://pay.example/redirect", co.ConfirmationURL)
	assert.Equal(t, "month", co.Plan.Tag)
	assert.Equal(t, 1, gw.checkouts)

	p, err := m.DB.GetPayment("pay-1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, store.PaymentPending, p.Status)
	assert.Equal(t, 99.0, p.Amount)
}

func TestStartCheckoutUnknownPlan(t *testing.T) {
	m, gw := testManager(t)
	_, err := m.StartCheckout(context.Background(), 42, "weekly")
	require.Error(t, err)
	assert.Equal(t, 0, gw.checkouts, "gateway must not be called for unknown plans")
}

func TestCheckPaymentSucceeded(t *testing.T) {
	m, gw := testManager(t)
	_, err := m.DB.GetOrCreateUser(42)
	require.NoError(t, err)
	_, err = m.StartCheckout(context.Background(), 42, "year")
	require.NoError(t, err)

	gw.statuses["pay-1"] = payment.StatusSucceeded

	res, err := m.CheckPayment(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.Equal(t, CheckPaid, res.Status)

	wantUntil := time.Now().Add(365 * 24 * time.Hour).UnixMilli()
	assert.InDelta(t, wantUntil, res.PremiumUntil, 5000)

	u, err := m.DB.GetOrCreateUser(42)
	require.NoError(t, err)
	assert.True(t, u.IsPremium)

	// Repeat check reports paid without re-activating.
	res, err = m.CheckPayment(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.Equal(t, CheckPaid, res.Status)
}

func TestCheckPaymentCanceled(t *testing.T) {
	m, gw := testManager(t)
	_, err := m.DB.GetOrCreateUser(42)
	require.NoError(t, err)
	_, err = m.StartCheckout(context.Background(), 42, "month")
	require.NoError(t, err)

	gw.statuses["pay-1"] = payment.StatusCanceled

	res, err := m.CheckPayment(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.Equal(t, CheckCanceled, res.Status)

	u, err := m.DB.GetOrCreateUser(42)
	require.NoError(t, err)
	assert.False(t, u.IsPremium)

	// Canceled is terminal even if the gateway later reports success.
	gw.statuses["pay-1"] = payment.StatusSucceeded
	res, err = m.CheckPayment(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.Equal(t, CheckCanceled, res.Status)
}

func TestCheckPaymentStillPending(t *testing.T) {
	m, gw := testManager(t)
	_, err := m.DB.GetOrCreateUser(42)
	require.NoError(t, err)
	_, err = m.StartCheckout(context.Background(), 42, "month")
	require.NoError(t, err)

	gw.statuses["pay-1"] = payment.StatusWaitingCapture

	res, err := m.CheckPayment(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.Equal(t, CheckPending, res.Status)

	p, err := m.DB.GetPayment("pay-1")
	require.NoError(t, err)
	assert.Equal(t, store.PaymentPending, p.Status)
}

func TestCheckPaymentUnknown(t *testing.T) {
	m, _ := testManager(t)
	res, err := m.CheckPayment(context.Background(), "pay-nope")
	require.NoError(t, err)
	assert.Equal(t, CheckNotFound, res.Status)
}

func TestGrant(t *testing.T) {
	m, _ := testManager(t)
	_, err := m.DB.GetOrCreateUser(7)
	require.NoError(t, err)

	until, err := m.Grant(7, 30)
	require.NoError(t, err)
	wantUntil := time.Now().Add(30 * 24 * time.Hour).UnixMilli()
	assert.InDelta(t, wantUntil, until, 5000)

	u, err := m.DB.GetOrCreateUser(7)
	require.NoError(t, err)
	assert.True(t, u.IsPremium)

	_, err = m.Grant(7, 0)
	assert.Error(t, err)
}

func TestStartCheckoutForUnseenUser(t *testing.T) {
	m, gw := testManager(t)

	// No prior GetOrCreateUser call: the first contact is the purchase.
	co, err := m.StartCheckout(context.Background(), 99, "month")
	require.NoError(t, err)

	p, err := m.DB.GetPayment(co.PaymentID)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, int64(99), p.UserID)

	gw.statuses[co.PaymentID] = payment.StatusSucceeded
	res, err := m.CheckPayment(context.Background(), co.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, CheckPaid, res.Status)

	u, err := m.DB.GetOrCreateUser(99)
	require.NoError(t, err)
	assert.True(t, u.IsPremium)
	require.NotNil(t, u.PremiumUntil)
	assert.Equal(t, res.PremiumUntil, *u.PremiumUntil)
}
