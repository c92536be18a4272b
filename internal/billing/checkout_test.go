package billing

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashboard/hashboard/internal/database"
	"github.com/hashboard/hashboard/internal/store"
)

// fakeProvider scripts provider answers per session id.
type fakeProvider struct {
	states   map[string]*CheckoutState
	getErr   error
	checkout string
	getCalls int
}

func (f *fakeProvider) CreateCheckoutSession(ctx context.Context, username string, amountCents int64, interval string) (string, error) {
	if f.checkout == "" {
		return "", errors.New("provider down")
	}
	return f.checkout, nil
}

func (f *fakeProvider) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutState, error) {
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	state, ok := f.states[sessionID]
	if !ok {
		return nil, errors.New("no such session")
	}
	return state, nil
}

func setupOrchestrator(t *testing.T, provider Provider) (*Orchestrator, *store.AccountStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	accounts := store.NewAccountStore(db)
	_, err = accounts.Create("alice", "alice@example.com", "h", "Alice")
	require.NoError(t, err)

	return NewOrchestrator(provider, accounts, slog.Default()), accounts
}

func TestStartCheckout(t *testing.T) {
	provider := &fakeProvider{checkout: "https://pay.example.com/cs_123"}
	o, _ := setupOrchestrator(t, provider)

	url, err := o.StartCheckout(context.Background(), "alice", PlanMonthly)
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/cs_123", url)
}

func TestStartCheckoutNoProvider(t *testing.T) {
	o, _ := setupOrchestrator(t, nil)

	_, err := o.StartCheckout(context.Background(), "alice", PlanMonthly)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestStartCheckoutProviderError(t *testing.T) {
	o, _ := setupOrchestrator(t, &fakeProvider{})

	// Before money moves, provider failures surface with no fallback.
	_, err := o.StartCheckout(context.Background(), "alice", PlanMonthly)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestStartCheckoutUnknownAccount(t *testing.T) {
	provider := &fakeProvider{checkout: "https://pay.example.com/cs_123"}
	o, _ := setupOrchestrator(t, provider)

	_, err := o.StartCheckout(context.Background(), "mallory", PlanMonthly)
	assert.ErrorIs(t, err, store.ErrAccountNotFound)
}

func TestCompleteCheckoutAuthoritativePeriodEnd(t *testing.T) {
	periodEnd := time.Now().UTC().Add(32 * 24 * time.Hour).Truncate(time.Second)
	provider := &fakeProvider{states: map[string]*CheckoutState{
		"cs_123": {
			SessionID:       "cs_123",
			Paid:            true,
			AmountCents:     999,
			Username:        "alice",
			SubscriptionRef: "sub_abc",
			PeriodEnd:       periodEnd,
		},
	}}
	o, accounts := setupOrchestrator(t, provider)

	grant, err := o.CompleteCheckout(context.Background(), "cs_123", "alice")
	require.NoError(t, err)
	assert.Equal(t, "sub_abc", grant.SubscriptionRef)
	assert.True(t, grant.ExpiresAt.Equal(periodEnd))
	assert.False(t, grant.Degraded)

	a, err := accounts.GetByUsername("alice")
	require.NoError(t, err)
	assert.True(t, a.IsPremium)
	require.NotNil(t, a.ExpiresAt)
	assert.True(t, a.ExpiresAt.Equal(periodEnd))
	require.NotNil(t, a.SubscriptionRef)
	assert.Equal(t, "sub_abc", *a.SubscriptionRef)
}

func TestCompleteCheckoutMonthlyAmountFallback(t *testing.T) {
	provider := &fakeProvider{states: map[string]*CheckoutState{
		"cs_123": {
			SessionID:   "cs_123",
			Paid:        true,
			AmountCents: 999,
			Username:    "alice",
		},
	}}
	o, _ := setupOrchestrator(t, provider)
	now := time.Now().UTC()
	o.now = func() time.Time { return now }

	grant, err := o.CompleteCheckout(context.Background(), "cs_123", "alice")
	require.NoError(t, err)
	assert.True(t, grant.Degraded)
	assert.WithinDuration(t, now.Add(30*24*time.Hour), grant.ExpiresAt, time.Second)
}

func TestCompleteCheckoutAnnualAmountFallback(t *testing.T) {
	// 9900 cents classifies as annual regardless of any local plan hint.
	provider := &fakeProvider{states: map[string]*CheckoutState{
		"cs_123": {
			SessionID:   "cs_123",
			Paid:        true,
			AmountCents: 9900,
			Username:    "alice",
		},
	}}
	o, _ := setupOrchestrator(t, provider)
	now := time.Now().UTC()
	o.now = func() time.Time { return now }

	grant, err := o.CompleteCheckout(context.Background(), "cs_123", "alice")
	require.NoError(t, err)
	assert.True(t, grant.Degraded)
	assert.WithinDuration(t, now.Add(365*24*time.Hour), grant.ExpiresAt, time.Second)
}

func TestCompleteCheckoutUnpaid(t *testing.T) {
	provider := &fakeProvider{states: map[string]*CheckoutState{
		"cs_123": {SessionID: "cs_123", Paid: false, Username: "alice"},
	}}
	o, accounts := setupOrchestrator(t, provider)

	_, err := o.CompleteCheckout(context.Background(), "cs_123", "alice")
	assert.ErrorIs(t, err, ErrPaymentNotConfirmed)

	a, _ := accounts.GetByUsername("alice")
	assert.False(t, a.IsPremium, "unpaid checkout must grant nothing")
}

func TestCompleteCheckoutProviderUnreachable(t *testing.T) {
	provider := &fakeProvider{getErr: errors.New("connection refused")}
	o, accounts := setupOrchestrator(t, provider)

	// Payment cannot be confirmed, so nothing is granted.
	_, err := o.CompleteCheckout(context.Background(), "cs_123", "alice")
	assert.ErrorIs(t, err, ErrProviderUnavailable)

	a, _ := accounts.GetByUsername("alice")
	assert.False(t, a.IsPremium)
}

func TestCompleteCheckoutUsernameMismatch(t *testing.T) {
	provider := &fakeProvider{states: map[string]*CheckoutState{
		"cs_123": {SessionID: "cs_123", Paid: true, AmountCents: 999, Username: "bob"},
	}}
	o, _ := setupOrchestrator(t, provider)

	_, err := o.CompleteCheckout(context.Background(), "cs_123", "alice")
	assert.Error(t, err)
}

func TestCompleteCheckoutIdempotentAuthoritative(t *testing.T) {
	periodEnd := time.Now().UTC().Add(30 * 24 * time.Hour).Truncate(time.Second)
	provider := &fakeProvider{states: map[string]*CheckoutState{
		"cs_123": {
			SessionID:       "cs_123",
			Paid:            true,
			AmountCents:     999,
			Username:        "alice",
			SubscriptionRef: "sub_abc",
			PeriodEnd:       periodEnd,
		},
	}}
	o, _ := setupOrchestrator(t, provider)

	first, err := o.CompleteCheckout(context.Background(), "cs_123", "alice")
	require.NoError(t, err)
	second, err := o.CompleteCheckout(context.Background(), "cs_123", "alice")
	require.NoError(t, err)

	assert.True(t, first.ExpiresAt.Equal(second.ExpiresAt), "replay must not extend the period")
}

func TestCompleteCheckoutIdempotentDegraded(t *testing.T) {
	provider := &fakeProvider{states: map[string]*CheckoutState{
		"cs_123": {
			SessionID:   "cs_123",
			Paid:        true,
			AmountCents: 999,
			Username:    "alice",
		},
	}}
	o, _ := setupOrchestrator(t, provider)

	first, err := o.CompleteCheckout(context.Background(), "cs_123", "alice")
	require.NoError(t, err)

	// The degraded path computes expiry from the clock; a replay minutes
	// later must land on the recorded period, not a fresh one.
	o.now = func() time.Time { return time.Now().UTC().Add(5 * time.Minute) }
	second, err := o.CompleteCheckout(context.Background(), "cs_123", "alice")
	require.NoError(t, err)

	assert.True(t, first.ExpiresAt.Equal(second.ExpiresAt), "degraded replay must not extend the period")
}

func TestCompleteCheckoutDegradedReplayAfterExpiry(t *testing.T) {
	provider := &fakeProvider{states: map[string]*CheckoutState{
		"cs_123": {
			SessionID:   "cs_123",
			Paid:        true,
			AmountCents: 999,
			Username:    "alice",
		},
	}}
	o, _ := setupOrchestrator(t, provider)
	start := time.Now().UTC()
	o.now = func() time.Time { return start }

	first, err := o.CompleteCheckout(context.Background(), "cs_123", "alice")
	require.NoError(t, err)

	// Re-hitting the return URL after the granted month has lapsed must not
	// turn one payment into a rolling subscription.
	o.now = func() time.Time { return start.Add(31 * 24 * time.Hour) }
	second, err := o.CompleteCheckout(context.Background(), "cs_123", "alice")
	require.NoError(t, err)

	assert.True(t, first.ExpiresAt.Equal(second.ExpiresAt),
		"replay after expiry granted a new period: first=%v second=%v", first.ExpiresAt, second.ExpiresAt)
}

func TestCompleteCheckoutMissingUsernameMetadata(t *testing.T) {
	// A session carrying no username metadata completes for nobody.
	provider := &fakeProvider{states: map[string]*CheckoutState{
		"cs_123": {SessionID: "cs_123", Paid: true, AmountCents: 999},
	}}
	o, accounts := setupOrchestrator(t, provider)

	_, err := o.CompleteCheckout(context.Background(), "cs_123", "alice")
	assert.Error(t, err)

	a, _ := accounts.GetByUsername("alice")
	assert.False(t, a.IsPremium)
}

func TestCompleteCheckoutRenewalExtends(t *testing.T) {
	firstEnd := time.Now().UTC().Add(30 * 24 * time.Hour).Truncate(time.Second)
	provider := &fakeProvider{states: map[string]*CheckoutState{
		"cs_123": {
			SessionID:       "cs_123",
			Paid:            true,
			AmountCents:     999,
			Username:        "alice",
			SubscriptionRef: "sub_abc",
			PeriodEnd:       firstEnd,
		},
	}}
	o, _ := setupOrchestrator(t, provider)

	_, err := o.CompleteCheckout(context.Background(), "cs_123", "alice")
	require.NoError(t, err)

	// Next billing cycle reports a later period end for the same subscription.
	renewalEnd := firstEnd.Add(30 * 24 * time.Hour)
	provider.states["cs_123"].PeriodEnd = renewalEnd

	grant, err := o.CompleteCheckout(context.Background(), "cs_123", "alice")
	require.NoError(t, err)
	assert.True(t, grant.ExpiresAt.Equal(renewalEnd))
}
