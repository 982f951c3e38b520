// Package premium manages subscription plans, activation, and the payment
// confirmation flow against the external gateway.
package premium

import "time"

// Plan is a purchasable subscription tier. Prices are display/billing values
// only; entitlements are enforced by the engine's gates.
type Plan struct {
	Tag   string
	Label string
	Price float64
	Days  int
}

// The three plans. Lifetime maps to a ~100-year window.
var plans = []Plan{
	{Tag: "month", Label: "30 days", Price: 99, Days: 30},
	{Tag: "year", Label: "1 year", Price: 999, Days: 365},
	{Tag: "lifetime", Label: "forever", Price: 1999, Days: 36500},
}

// PlanByTag resolves a plan, reporting false for unknown tags.
func PlanByTag(tag string) (Plan, bool) {
	for _, p := range plans {
		if p.Tag == tag {
			return p, true
		}
	}
	return Plan{}, false
}

// Plans lists all purchasable plans in display order.
func Plans() []Plan {
	out := make([]Plan, len(plans))
	copy(out, plans)
	return out
}

// Until computes the premium expiry for an activation made now.
func (p Plan) Until(now time.Time) int64 {
	return now.Add(time.Duration(p.Days) * 24 * time.Hour).UnixMilli()
}
