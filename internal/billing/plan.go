package billing

import (
	"fmt"
	"time"
)

// Plan is one of the fixed subscription offerings.
type Plan string

const (
	PlanMonthly Plan = "monthly"
	PlanAnnual  Plan = "annual"
)

const (
	monthlyAmountCents int64 = 999
	annualAmountCents  int64 = 9900

	monthlyDuration = 30 * 24 * time.Hour
	annualDuration  = 365 * 24 * time.Hour
)

func ParsePlan(s string) (Plan, error) {
	switch Plan(s) {
	case PlanMonthly, PlanAnnual:
		return Plan(s), nil
	}
	return "", fmt.Errorf("unknown plan %q", s)
}

// AmountCents is the charge for one billing interval, in USD cents.
func (p Plan) AmountCents() int64 {
	if p == PlanAnnual {
		return annualAmountCents
	}
	return monthlyAmountCents
}

// Interval is the provider-facing recurring interval name.
func (p Plan) Interval() string {
	if p == PlanAnnual {
		return "year"
	}
	return "month"
}

// Duration is the entitlement period granted when the provider reports no
// authoritative period end.
func (p Plan) Duration() time.Duration {
	if p == PlanAnnual {
		return annualDuration
	}
	return monthlyDuration
}

// ClassifyAmount maps a provider-reported paid amount to a plan. Anything at
// or above the annual price is annual; everything else is monthly. Locally
// cached plan selection is never consulted, it is a UI hint only.
func ClassifyAmount(cents int64) Plan {
	if cents >= annualAmountCents {
		return PlanAnnual
	}
	return PlanMonthly
}
