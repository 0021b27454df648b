package engine

import (
	"math"
	"math/rand"
	"time"
)

// backoff computes exponential poll delays with jitter.
type backoff struct {
	baseDelay time.Duration
	maxDelay  time.Duration
	failures  int
}

func newBackoff(baseDelay, maxDelay time.Duration) *backoff {
	if maxDelay < baseDelay {
		maxDelay = baseDelay
	}
	return &backoff{baseDelay: baseDelay, maxDelay: maxDelay}
}

// Next records a failed attempt and returns the delay before the next one.
func (b *backoff) Next() time.Duration {
	b.failures++
	return b.calculateDelay(b.failures)
}

// Reset clears the failure count.
func (b *backoff) Reset() {
	b.failures = 0
}

// calculateDelay returns baseDelay * 2^(failures-1), capped at maxDelay, plus up to 10% jitter.
func (b *backoff) calculateDelay(failures int) time.Duration {
	// 2^30 already exceeds any sane cap.
	multiplier := math.Pow(2, float64(min(failures-1, 30)))
	delay := time.Duration(float64(b.baseDelay) * multiplier)

	if delay > b.maxDelay {
		delay = b.maxDelay
	}

	jitter := time.Duration(rand.Float64() * 0.1 * float64(delay))
	return delay + jitter
}
