package scheduler

import (
	"time"

	"github.com/rahulnat/sentinelq/pkg/models"
)

// maxBackoffShift caps exponential growth so the delay never overflows.
const maxBackoffShift = 20

// backoffDelay computes the delay before the next attempt. attempt is the
// number of executions completed so far (>= 1).
func backoffDelay(strategy models.BackoffStrategy, base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	switch strategy {
	case models.BackoffLinear:
		return base * time.Duration(attempt)
	case models.BackoffExponential:
		shift := attempt - 1
		if shift > maxBackoffShift {
			shift = maxBackoffShift
		}
		return base * time.Duration(1<<shift)
	default: // fixed
		return base
	}
}
