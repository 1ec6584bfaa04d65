package connection

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

const (
	// DefaultBackoffDelay is the wait between discovery trials.
	DefaultBackoffDelay = 5 * time.Second

	// DefaultMaxDelay caps exponential schedules.
	DefaultMaxDelay = 60 * time.Second
)

// BackoffConfig describes a retry schedule.
type BackoffConfig struct {
	// Initial is the first delay.
	Initial time.Duration

	// Max caps the delay.
	Max time.Duration

	// Multiplier grows the delay per attempt; <= 1 keeps it fixed.
	Multiplier float64

	// Jitter adds a random extra wait of up to Jitter times the delay.
	Jitter float64
}

// Backoff hands out the delays of a schedule. The zero value never waits.
type Backoff struct {
	cfg BackoffConfig

	mu       sync.Mutex
	attempts int
}

// NewBackoff creates a fixed schedule of DefaultBackoffDelay.
func NewBackoff() *Backoff {
	return NewBackoffWithConfig(BackoffConfig{})
}

// NewBackoffWithConfig creates a schedule, filling zero fields with the
// defaults.
func NewBackoffWithConfig(cfg BackoffConfig) *Backoff {
	if cfg.Initial <= 0 {
		cfg.Initial = DefaultBackoffDelay
	}
	cfg.Multiplier = max(cfg.Multiplier, 1)
	if cfg.Max <= 0 {
		cfg.Max = DefaultMaxDelay
	}
	cfg.Max = max(cfg.Max, cfg.Initial)
	cfg.Jitter = max(cfg.Jitter, 0)
	return &Backoff{cfg: cfg}
}

// Next returns the delay for the current attempt, jitter included, and
// moves to the next one.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.withJitter(b.base(b.attempts))
	b.attempts++
	return d
}

// Reset restarts the schedule.
func (b *Backoff) Reset() {
	b.mu.Lock()
	b.attempts = 0
	b.mu.Unlock()
}

func (b *Backoff) base(attempt int) time.Duration {
	if b.cfg.Multiplier <= 1 {
		return b.cfg.Initial
	}
	d := float64(b.cfg.Initial) * math.Pow(b.cfg.Multiplier, float64(attempt))
	return time.Duration(min(d, float64(b.cfg.Max)))
}

func (b *Backoff) withJitter(d time.Duration) time.Duration {
	if b.cfg.Jitter <= 0 {
		return d
	}
	return d + time.Duration(float64(d)*b.cfg.Jitter*rand.Float64())
}
