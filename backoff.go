package main

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	BackoffFixed       = "fixed"
	BackoffExponential = "exponential"
)

// Backoff decides how long the loop waits after a failed poll.
type Backoff interface {
	Next() time.Duration
	Reset()
}

func NewBackoff(cfg BackoffConfig) (Backoff, error) {
	switch cfg.Strategy {
	case BackoffFixed, "":
		return &fixedBackoff{delay: cfg.Delay}, nil
	case BackoffExponential:
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = cfg.Delay
		b.MaxInterval = cfg.MaxDelay
		b.Multiplier = 2
		b.RandomizationFactor = 0.2
		b.Reset()
		return &exponentialBackoff{b: b, max: cfg.MaxDelay}, nil
	default:
		return nil, fmt.Errorf("unknown backoff strategy: %s", cfg.Strategy)
	}
}

type fixedBackoff struct {
	delay time.Duration
}

func (f *fixedBackoff) Next() time.Duration { return f.delay }

func (f *fixedBackoff) Reset() {}

type exponentialBackoff struct {
	b   *backoff.ExponentialBackOff
	max time.Duration
}

func (e *exponentialBackoff) Next() time.Duration {
	d := e.b.NextBackOff()
	if d == backoff.Stop || d > e.max {
		return e.max
	}
	return d
}

func (e *exponentialBackoff) Reset() {
	e.b.Reset()
}

// sleep waits for d or until stop is closed, whichever comes first.
func sleep(d time.Duration, stop <-chan struct{}) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-stop:
	}
}
