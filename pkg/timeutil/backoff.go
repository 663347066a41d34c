package timeutil

import (
	"math"
	"math/rand"
	"time"
)

// Exponential backoff parameters
// example:
//
//	initialDuration := 500 * time.Millisecond // first delay
//	multiplier := 2.0                         // double each time
//	maxDuration := 30 * time.Second           // cap at 30s
type BackoffParam struct {
	initialDuration time.Duration
	multiplier      float64
	maxDuration     time.Duration
}

func NewBackoffParam(
	initialDuration time.Duration,
	multiplier float64,
	maxDuration time.Duration,
) BackoffParam {
	return BackoffParam{
		initialDuration: initialDuration,
		multiplier:      multiplier,
		maxDuration:     maxDuration,
	}
}

func (b *BackoffParam) InitialDuration() time.Duration {
	return b.initialDuration
}

func (b *BackoffParam) Multiplier() float64 {
	return b.multiplier
}

func (b *BackoffParam) MaxDuration() time.Duration {
	return b.maxDuration
}

// ExponentialBackoffDelay computes the delay before retry number
// attempt (1-based): initial * multiplier^(attempt-1), capped at the
// configured maximum, plus uniform jitter in [0, jitter).
func ExponentialBackoffDelay(
	attempt int,
	jitter time.Duration,
	rng rand.Rand,
	param BackoffParam,
) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	exponent := float64(attempt - 1)
	delay := float64(param.initialDuration) * math.Pow(param.multiplier, exponent)
	if delay > float64(param.maxDuration) {
		delay = float64(param.maxDuration)
	}
	if delay < 0 {
		delay = 0
	}

	if jitter > 0 {
		delay += float64(ComputeJitter(jitter, rng))
	}

	return time.Duration(delay)
}

// ComputeJitter returns a pseudo-random duration in [0, max).
// Non-positive max yields zero.
func ComputeJitter(max time.Duration, rng rand.Rand) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rng.Int63n(int64(max)))
}

// MaxDuration returns the largest duration in the slice, or zero for an
// empty slice.
func MaxDuration(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}
	max := durations[0]
	for _, d := range durations[1:] {
		if d > max {
			max = d
		}
	}
	return max
}

// DurationPtr is a helper to create a pointer to a time.Duration.
func DurationPtr(d time.Duration) *time.Duration {
	return &d
}
