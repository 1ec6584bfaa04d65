package connection

import (
	"errors"
	"fmt"
	"time"
)

// DefaultMaxTrials is the default number of discovery trials.
const DefaultMaxTrials = 5

// ErrInvalidPolicy is returned by RetryPolicy.Validate.
var ErrInvalidPolicy = errors.New("invalid retry policy")

// RetryPolicy configures discovery retries. It is copied into the Manager at
// construction and not changed afterwards.
type RetryPolicy struct {
	// MaxTrials is the number of failed discovery attempts after which
	// Discover gives up with ErrDeviceUnreachable. Must be >= 1.
	MaxTrials int

	// BackoffDelay is the wait before the first retry.
	BackoffDelay time.Duration

	// Multiplier grows the delay between retries. <= 1 means fixed delay.
	Multiplier float64

	// MaxDelay caps the delay when Multiplier > 1.
	MaxDelay time.Duration

	// Jitter adds up to Jitter*delay of random extra wait.
	Jitter float64

	// ResetTrialsOnConnect restarts the trial counter at every Discover call.
	// When false the counter accumulates over the lifetime of the Manager.
	ResetTrialsOnConnect bool
}

// DefaultRetryPolicy returns the default policy: 5 trials, fixed 5s delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxTrials:            DefaultMaxTrials,
		BackoffDelay:         DefaultBackoffDelay,
		Multiplier:           1,
		MaxDelay:             DefaultMaxDelay,
		ResetTrialsOnConnect: true,
	}
}

// Validate checks the policy.
func (p RetryPolicy) Validate() error {
	if p.MaxTrials < 1 {
		return fmt.Errorf("%w: max trials must be >= 1, got %d", ErrInvalidPolicy, p.MaxTrials)
	}
	if p.BackoffDelay < 0 {
		return fmt.Errorf("%w: negative backoff delay %v", ErrInvalidPolicy, p.BackoffDelay)
	}
	if p.Jitter < 0 || p.Jitter > 1 {
		return fmt.Errorf("%w: jitter must be within [0,1], got %v", ErrInvalidPolicy, p.Jitter)
	}
	return nil
}

// backoff builds the delay calculator for this policy. A zero BackoffDelay
// retries immediately.
func (p RetryPolicy) backoff() *Backoff {
	if p.BackoffDelay == 0 {
		return &Backoff{}
	}
	return NewBackoffWithConfig(BackoffConfig{
		Initial:    p.BackoffDelay,
		Max:        p.MaxDelay,
		Multiplier: p.Multiplier,
		Jitter:     p.Jitter,
	})
}
