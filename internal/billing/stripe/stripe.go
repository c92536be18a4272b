package stripe

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	stripe "github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"

	"github.com/hashboard/hashboard/internal/billing"
)

const (
	productName = "Hashboard Premium"
	currency    = "usd"

	// Provider calls are bounded; a hung Stripe call must not hang the
	// request.
	callTimeout = 10 * time.Second
)

type Config struct {
	SecretKey  string
	SuccessURL string
	CancelURL  string
}

type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	stripe.Key = cfg.SecretKey
	return &Client{cfg: cfg}
}

// CreateCheckoutSession creates a subscription-mode checkout session with
// inline price data and the username embedded as metadata, and returns the
// hosted-page URL. The metadata is how the account is recovered at
// completion without a local mapping table.
func (c *Client) CreateCheckoutSession(ctx context.Context, username string, amountCents int64, interval string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(currency),
					UnitAmount: stripe.Int64(amountCents),
					Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
						Interval: stripe.String(interval),
					},
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(productName),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(c.cfg.SuccessURL),
		CancelURL:         stripe.String(c.cfg.CancelURL),
		ClientReferenceID: stripe.String(uuid.NewString()),
	}
	params.Context = ctx
	params.AddMetadata("username", username)

	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

// GetCheckoutSession retrieves the authoritative state of a checkout session,
// expanding the subscription so the period end comes back in one call.
// Transient failures are retried with backoff before giving up.
func (c *Client) GetCheckoutSession(ctx context.Context, sessionID string) (*billing.CheckoutState, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	var sess *stripe.CheckoutSession
	backoff := retry.WithMaxRetries(2, retry.NewExponential(200*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		params := &stripe.CheckoutSessionParams{}
		params.Context = ctx
		params.AddExpand("subscription")

		var err error
		sess, err = checkoutsession.Get(sessionID, params)
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get checkout session: %w", err)
	}

	state := &billing.CheckoutState{
		SessionID:   sess.ID,
		Paid:        sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		AmountCents: sess.AmountTotal,
		Username:    sess.Metadata["username"],
	}
	if sess.Subscription != nil {
		state.SubscriptionRef = sess.Subscription.ID
		if end := periodEnd(sess.Subscription); end > 0 {
			state.PeriodEnd = time.Unix(end, 0).UTC()
		}
	}
	return state, nil
}

// periodEnd returns the latest current_period_end across the subscription's
// items, or 0 when none is reported.
func periodEnd(sub *stripe.Subscription) int64 {
	if sub.Items == nil {
		return 0
	}
	var end int64
	for _, item := range sub.Items.Data {
		if item.CurrentPeriodEnd > end {
			end = item.CurrentPeriodEnd
		}
	}
	return end
}
