package quota

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateFree(t *testing.T) {
	for used := 0; used <= FreeLimit+2; used++ {
		d := Evaluate(PlanFree, used)
		if used < FreeLimit {
			assert.True(t, d.Allowed, "used=%d", used)
			assert.Equal(t, FreeLimit-used, d.Remaining, "used=%d", used)
			assert.Empty(t, d.Reason)
		} else {
			assert.False(t, d.Allowed, "used=%d", used)
			assert.Equal(t, 0, d.Remaining)
			assert.Equal(t, ReasonLimitReached, d.Reason)
		}
		assert.False(t, d.Unlimited)
	}
}

func TestEvaluatePaid(t *testing.T) {
	for _, used := range []int{0, 5, 500} {
		d := Evaluate(PlanPaid, used)
		assert.True(t, d.Allowed)
		assert.True(t, d.Unlimited)
	}
}

func TestRemaining(t *testing.T) {
	assert.Equal(t, 5, Remaining(PlanFree, 0))
	assert.Equal(t, 1, Remaining(PlanFree, 4))
	assert.Equal(t, 0, Remaining(PlanFree, 5))
	assert.Equal(t, 0, Remaining(PlanFree, 9))
	assert.Equal(t, Unlimited, Remaining(PlanPaid, 9))
}

func TestUnknownPlanIsFree(t *testing.T) {
	assert.False(t, Plan("gold").Valid())
	assert.False(t, Evaluate(Plan("gold"), FreeLimit).Allowed)
	assert.True(t, CountsUsage(Plan("gold")))
	assert.False(t, CountsUsage(PlanPaid))
}
