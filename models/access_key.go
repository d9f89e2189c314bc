package models

import "time"

const (
	PlanLifetime     = "lifetime"
	PlanSubscription = "subscription"
	PlanUnknown      = "unknown"
)

// AccessKey is the persisted unit of value: one row per paid checkout.
// StripeSessionID is the dedup anchor; both it and Key carry unique
// indexes in storage.
type AccessKey struct {
	ID               string
	Key              string
	Email            string
	Plan             string
	StripeSessionID  string
	StripeCustomerID string
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NormalizePlan maps checkout metadata onto the closed plan set. Missing or
// unrecognized metadata never blocks issuance.
func NormalizePlan(plan string) string {
	switch plan {
	case PlanLifetime, PlanSubscription:
		return plan
	default:
		return PlanUnknown
	}
}
