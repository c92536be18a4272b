package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashboard/hashboard/internal/store"
)

var (
	// ErrProviderUnavailable means the payment provider is unconfigured or
	// could not be reached.
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	// ErrPaymentNotConfirmed means the provider does not report the checkout
	// as paid. The redirect back from the hosted page is attacker-influenced
	// and never grants anything on its own.
	ErrPaymentNotConfirmed = errors.New("payment not confirmed by provider")
)

// CheckoutState is the provider's authoritative view of one checkout attempt.
type CheckoutState struct {
	SessionID       string
	Paid            bool
	AmountCents     int64
	Username        string
	SubscriptionRef string
	// PeriodEnd is the subscription's current period end, zero when the
	// provider could not report one.
	PeriodEnd time.Time
}

// Provider is the outbound payment-provider surface the orchestrator needs.
type Provider interface {
	// CreateCheckoutSession returns the hosted-page URL for a new checkout
	// carrying the username as opaque metadata.
	CreateCheckoutSession(ctx context.Context, username string, amountCents int64, interval string) (string, error)
	// GetCheckoutSession retrieves the verified state of a checkout session.
	GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutState, error)
}

// Grant describes the entitlement recorded after a completed checkout.
type Grant struct {
	Username        string    `json:"username"`
	SubscriptionRef string    `json:"subscription_ref"`
	ExpiresAt       time.Time `json:"expires_at"`
	// Degraded marks grants computed from the paid amount because the
	// provider's period end was unavailable.
	Degraded bool `json:"degraded,omitempty"`
}

// Orchestrator drives checkout attempts against the payment provider and
// reconciles completed payments into the account store.
type Orchestrator struct {
	provider Provider
	accounts *store.AccountStore
	logger   *slog.Logger
	now      func() time.Time
}

func NewOrchestrator(provider Provider, accounts *store.AccountStore, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		provider: provider,
		accounts: accounts,
		logger:   logger,
		now:      time.Now,
	}
}

// StartCheckout creates a provider checkout session for the plan and returns
// the hosted-page URL. No money has moved yet, so provider failures surface
// directly with no fallback.
func (o *Orchestrator) StartCheckout(ctx context.Context, username string, plan Plan) (string, error) {
	if o.provider == nil {
		return "", ErrProviderUnavailable
	}
	account, err := o.accounts.GetByUsername(username)
	if err != nil {
		return "", fmt.Errorf("lookup account: %w", err)
	}
	if account == nil {
		return "", store.ErrAccountNotFound
	}
	url, err := o.provider.CreateCheckoutSession(ctx, username, plan.AmountCents(), plan.Interval())
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	return url, nil
}

// CompleteCheckout reconciles a checkout the user was redirected back from.
// The provider is always re-queried: payment_status must read paid before
// anything is granted. The new expiry prefers the provider's period end and
// degrades to now + interval classified from the paid amount. Safe to call
// more than once for the same session; replays land on the same expiry.
func (o *Orchestrator) CompleteCheckout(ctx context.Context, providerSessionID, username string) (*Grant, error) {
	if o.provider == nil {
		return nil, ErrProviderUnavailable
	}

	state, err := o.provider.GetCheckoutSession(ctx, providerSessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	if !state.Paid {
		return nil, ErrPaymentNotConfirmed
	}
	// The session must be bound to the caller's account; missing metadata is
	// as disqualifying as a mismatch.
	if state.Username != username {
		return nil, fmt.Errorf("checkout session not bound to this account")
	}

	ref := state.SubscriptionRef
	if ref == "" {
		ref = state.SessionID
	}
	if ref == "" {
		ref = providerSessionID
	}

	expiresAt := state.PeriodEnd.UTC()
	degraded := false
	if state.PeriodEnd.IsZero() {
		// Provider reported no period end. The user has paid, so grant a
		// period from the paid amount instead of failing. A replay of the
		// same checkout lands on the already-recorded period instead of
		// recomputing a fresh one from the current clock.
		if existing := o.existingGrant(username, ref); existing != nil {
			return existing, nil
		}
		plan := ClassifyAmount(state.AmountCents)
		expiresAt = o.now().UTC().Add(plan.Duration())
		degraded = true
		o.logger.Warn("granting entitlement without provider period end",
			"username", username,
			"session_id", providerSessionID,
			"amount_cents", state.AmountCents,
			"plan", plan,
		)
	}

	granted, err := o.accounts.GrantSubscription(username, ref, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("record entitlement: %w", err)
	}

	o.logger.Info("entitlement granted",
		"username", username,
		"subscription_ref", ref,
		"expires_at", granted,
		"degraded", degraded,
	)
	return &Grant{
		Username:        username,
		SubscriptionRef: ref,
		ExpiresAt:       granted,
		Degraded:        degraded,
	}, nil
}

// existingGrant returns the grant already recorded for this subscription ref.
// In degraded mode the recorded period is the only evidence there is, so a
// replay always lands on it, even after it lapsed: re-presenting the same
// checkout is not a renewal.
func (o *Orchestrator) existingGrant(username, ref string) *Grant {
	account, err := o.accounts.GetByUsername(username)
	if err != nil || account == nil {
		return nil
	}
	if account.SubscriptionRef == nil || *account.SubscriptionRef != ref {
		return nil
	}
	if account.ExpiresAt == nil {
		return nil
	}
	return &Grant{
		Username:        username,
		SubscriptionRef: ref,
		ExpiresAt:       *account.ExpiresAt,
		Degraded:        true,
	}
}
