// Package retry computes backoff delays for recoverable stage, batch, and
// task failures. Mirrors the hand-rolled jittered backoff idiom used
// elsewhere in this stack (queue.Worker.pollInterval, resilience.Retry)
// rather than a third-party backoff library, because the delay formula
// must stay reproducible given a fixed seed — most backoff packages drive
// jitter off the global math/rand source, which this system cannot pin.
package retry

import (
	"math/rand/v2"
	"time"
)

// Policy is the per-stage (or per-batch, per-session) retry configuration.
// Attempts are 1-indexed; attempt 1 always uses base delay + jitter.
type Policy struct {
	MaxAttempts      int
	BaseDelay        time.Duration
	MaxDelay         time.Duration
	BackoffMultiplier float64
	JitterRange      time.Duration
}

// Calculator computes delay(policy, attempt) = min(max_delay, base_delay *
// multiplier^(attempt-1)) + random(0, jitter_range). It is a pure function
// of (policy, attempt) except for the jitter draw, which is seeded so a
// given Calculator instance is reproducible across a whole session.
type Calculator struct {
	rng *rand.Rand
}

// NewCalculator builds a Calculator whose jitter draws are deterministic
// for a fixed seed — required so replaying a session's recorded events
// against the same seed reproduces the same delays.
func NewCalculator(seed uint64) *Calculator {
	return &Calculator{rng: rand.New(rand.NewPCG(seed, seed))}
}

// Delay computes the backoff duration for the given 1-indexed attempt
// under policy.
func (c *Calculator) Delay(policy Policy, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	base := float64(policy.BaseDelay)
	mult := policy.BackoffMultiplier
	if mult <= 0 {
		mult = 1
	}

	scaled := base * pow(mult, attempt-1)
	capped := scaled
	if policy.MaxDelay > 0 && time.Duration(scaled) > policy.MaxDelay {
		capped = float64(policy.MaxDelay)
	}

	var jitter time.Duration
	if policy.JitterRange > 0 {
		jitter = time.Duration(c.rng.Int64N(int64(policy.JitterRange) + 1))
	}

	return time.Duration(capped) + jitter
}

func pow(base float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}
