package main

import (
	"math/rand/v2"
	"time"
)

const (
	maxBackoff   = 10 * time.Second
	jitterWindow = 250 * time.Millisecond
)

// backoff doubles the idle delay after each failed batch up to max and
// resets to base once a batch succeeds.
type backoff struct {
	base    time.Duration
	max     time.Duration
	current time.Duration
}

func newBackoff(base, max time.Duration) *backoff {
	if max < base {
		max = base
	}
	return &backoff{base: base, max: max, current: base}
}

func (b *backoff) fail() time.Duration {
	b.current = min(b.current*2, b.max)
	return jitter(b.current)
}

func (b *backoff) succeed() time.Duration {
	b.current = b.base
	return jitter(b.base)
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}
