// Package gateway holds the payment gateway configuration model, account ID
// pattern selection and the errors raised while completing a payment.
package gateway

// PatternKey names one of the configured account ID patterns.
type PatternKey string

const (
	// PatternDefault applies to orders with no items or when no better pattern is configured
	PatternDefault PatternKey = "default"
	// PatternPlan applies to orders containing only plan items
	PatternPlan PatternKey = "plan"
	// PatternNonPlan applies to orders containing only non-plan items
	PatternNonPlan PatternKey = "nonplan"
	// PatternPlanPlusNonPlan applies to orders mixing plan and non-plan items
	PatternPlanPlusNonPlan PatternKey = "plan_plus_nonplan"
)

// PatternKeys lists every pattern key in resolution order.
var PatternKeys = []PatternKey{PatternDefault, PatternPlan, PatternNonPlan, PatternPlanPlusNonPlan}

// String returns the string representation of PatternKey
func (k PatternKey) String() string {
	return string(k)
}

// SelectPattern picks the account ID pattern for a sequence of items, where
// isPlan[i] tells whether item i is a plan item. The result depends only on
// whether plan and non-plan items are present; evaluation stops as soon as
// both have been seen.
func SelectPattern(isPlan []bool) PatternKey {
	selected := PatternDefault
	for _, plan := range isPlan {
		if plan {
			switch selected {
			case PatternDefault:
				selected = PatternPlan
			case PatternNonPlan:
				return PatternPlanPlusNonPlan
			}
			continue
		}
		switch selected {
		case PatternDefault:
			selected = PatternNonPlan
		case PatternPlan:
			return PatternPlanPlusNonPlan
		}
	}
	return selected
}
