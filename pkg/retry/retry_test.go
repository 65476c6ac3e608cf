package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDelayNoJitterExponentialBackoff(t *testing.T) {
	c := NewCalculator(1)
	policy := Policy{
		MaxAttempts:       5,
		BaseDelay:         100 * time.Millisecond,
		MaxDelay:          1 * time.Second,
		BackoffMultiplier: 2,
		JitterRange:       0,
	}

	assert.Equal(t, 100*time.Millisecond, c.Delay(policy, 1))
	assert.Equal(t, 200*time.Millisecond, c.Delay(policy, 2))
	assert.Equal(t, 400*time.Millisecond, c.Delay(policy, 3))
	assert.Equal(t, 800*time.Millisecond, c.Delay(policy, 4))
}

func TestDelayClampedAtMaxDelay(t *testing.T) {
	c := NewCalculator(1)
	policy := Policy{
		BaseDelay:         100 * time.Millisecond,
		MaxDelay:          300 * time.Millisecond,
		BackoffMultiplier: 2,
	}

	assert.Equal(t, 300*time.Millisecond, c.Delay(policy, 5))
}

func TestDelayJitterWithinRange(t *testing.T) {
	c := NewCalculator(42)
	policy := Policy{
		BaseDelay:         100 * time.Millisecond,
		MaxDelay:          1 * time.Second,
		BackoffMultiplier: 2,
		JitterRange:       50 * time.Millisecond,
	}

	for attempt := 1; attempt <= 4; attempt++ {
		d := c.Delay(policy, attempt)
		base := 100 * time.Millisecond * time.Duration(1<<uint(attempt-1))
		assert.GreaterOrEqual(t, d, base)
		assert.LessOrEqual(t, d, base+50*time.Millisecond)
	}
}

func TestCalculatorDeterministicForFixedSeed(t *testing.T) {
	policy := Policy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, BackoffMultiplier: 2, JitterRange: 75 * time.Millisecond}

	c1 := NewCalculator(7)
	c2 := NewCalculator(7)

	for attempt := 1; attempt <= 5; attempt++ {
		assert.Equal(t, c1.Delay(policy, attempt), c2.Delay(policy, attempt))
	}
}
