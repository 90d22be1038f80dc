// Package quota decides whether an account may start another generation.
package quota

// Plan is a subscription tier.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPaid Plan = "paid"
)

// FreeLimit is the total number of generations a free account may create.
const FreeLimit = 5

// Unlimited is the JSON value reported as remainingGenerations for paid accounts.
const Unlimited = "unlimited"

// ReasonLimitReached is the denial reason for an exhausted free plan.
const ReasonLimitReached = "LIMIT_REACHED"

// Valid reports whether p is a known plan.
func (p Plan) Valid() bool {
	return p == PlanFree || p == PlanPaid
}

// Decision is the outcome of evaluating the policy.
type Decision struct {
	Allowed   bool
	Remaining int // meaningful only when Unlimited is false
	Unlimited bool
	Reason    string
}

// Evaluate applies the quota policy. It has no side effects; callers must
// evaluate it before creating a generation and before counting usage.
// Unknown plans are treated as free.
func Evaluate(plan Plan, used int) Decision {
	if plan == PlanPaid {
		return Decision{Allowed: true, Unlimited: true}
	}
	if used < 0 {
		used = 0
	}
	if used >= FreeLimit {
		return Decision{Allowed: false, Remaining: 0, Reason: ReasonLimitReached}
	}
	return Decision{Allowed: true, Remaining: FreeLimit - used}
}

// Remaining returns remainingGenerations as reported to clients: an int
// clamped at zero for free accounts, the string "unlimited" for paid ones.
func Remaining(plan Plan, used int) any {
	d := Evaluate(plan, used)
	if d.Unlimited {
		return Unlimited
	}
	return d.Remaining
}

// CountsUsage reports whether a successful create increments the usage counter.
func CountsUsage(plan Plan) bool {
	return plan != PlanPaid
}
