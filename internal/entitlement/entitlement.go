// Package entitlement decides, at a point in time, whether an account may see
// premium content. The stored premium flag is never trusted on its own: an
// account whose paid period has lapsed still carries is_premium = 1 in the
// database, and only resolution downgrades its access.
package entitlement

import (
	"fmt"
	"time"

	"github.com/hashboard/hashboard/internal/model"
)

type Status string

const (
	// StatusFree means no premium grant on record.
	StatusFree Status = "free"
	// StatusActive means a paid period covers the current moment.
	StatusActive Status = "premium_active"
	// StatusLegacy means a premium flag with no expiry: a non-expiring grant
	// from before subscriptions existed. Named explicitly so callers never
	// infer it from null handling.
	StatusLegacy Status = "premium_legacy"
	// StatusExpired means the premium flag is set but the paid period is over.
	// The flag stays in storage; only access downgrades.
	StatusExpired Status = "premium_expired"
)

// Premium reports whether the status grants premium access.
func (s Status) Premium() bool {
	return s == StatusActive || s == StatusLegacy
}

// Resolution is the point-in-time answer for one account.
type Resolution struct {
	Status    Status     `json:"status"`
	Reason    string     `json:"reason"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Resolve computes the effective entitlement for an account at the given
// instant. Pure function of the account row and the clock; safe for
// concurrent use. An expiry exactly equal to now counts as expired.
func Resolve(a *model.Account, now time.Time) Resolution {
	if !a.IsPremium {
		return Resolution{Status: StatusFree, Reason: "no subscription on record"}
	}
	if a.ExpiresAt == nil {
		return Resolution{Status: StatusLegacy, Reason: "non-expiring premium grant"}
	}
	if now.Before(*a.ExpiresAt) {
		return Resolution{
			Status:    StatusActive,
			Reason:    fmt.Sprintf("subscription active until %s", a.ExpiresAt.UTC().Format(time.RFC3339)),
			ExpiresAt: a.ExpiresAt,
		}
	}
	return Resolution{
		Status:    StatusExpired,
		Reason:    fmt.Sprintf("subscription expired %s", a.ExpiresAt.UTC().Format(time.RFC3339)),
		ExpiresAt: a.ExpiresAt,
	}
}
