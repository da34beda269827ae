package infra

import (
	"math/rand"
	"time"
)

const (
	// Standard backoff constants for order submission retries.
	baseDelay = 1 * time.Second
	maxDelay  = 60 * time.Second

	// Rate-limit cool-down window (5-10 seconds, randomized).
	rateLimitCooldownMin = 5 * time.Second
	rateLimitCooldownMax = 10 * time.Second

	// Jitter added on top of the exponential delay (0-1000ms).
	maxJitter = 1 * time.Second
)

// CalculateBackoff returns the exponential backoff duration for a given
// retry count: baseDelay * 2^retryCount, capped at maxDelay.
// If retryCount is negative, it returns baseDelay.
func CalculateBackoff(retryCount int) time.Duration {
	if retryCount < 0 {
		return baseDelay
	}

	// 2^30 seconds is already far beyond maxDelay; cap early to avoid
	// shifting past 63 bits.
	if retryCount > 30 {
		return maxDelay
	}

	backoff := baseDelay * time.Duration(1<<retryCount)
	if backoff > maxDelay {
		return maxDelay
	}
	return backoff
}

// BackoffWithJitter returns CalculateBackoff plus a random 0-1000ms jitter,
// so that simultaneous retries across symbols do not synchronize.
func BackoffWithJitter(retryCount int) time.Duration {
	return CalculateBackoff(retryCount) + time.Duration(rand.Int63n(int64(maxJitter)))
}

// RateLimitCooldown returns a random wait in the 5-10 second range, used
// once before retrying an operation the exchange throttled.
func RateLimitCooldown() time.Duration {
	spread := int64(rateLimitCooldownMax - rateLimitCooldownMin)
	return rateLimitCooldownMin + time.Duration(rand.Int63n(spread))
}
