package transport

import (
	"context"
	"sync"
	"time"
)

// Keep-alive defaults. A dead gateway is noticed after at most
// DetectionDelay of the default config (35s).
const (
	DefaultPingInterval   = 15 * time.Second
	DefaultPongTimeout    = 5 * time.Second
	DefaultMaxMissedPongs = 2
)

// KeepAliveConfig configures session pings. Zero fields take the defaults.
type KeepAliveConfig struct {
	PingInterval   time.Duration
	PongTimeout    time.Duration
	MaxMissedPongs int
}

// DefaultKeepAliveConfig returns the default keep-alive configuration.
func DefaultKeepAliveConfig() KeepAliveConfig {
	return KeepAliveConfig{}.withDefaults()
}

// DetectionDelay is the worst-case time to notice a dead peer.
func (c KeepAliveConfig) DetectionDelay() time.Duration {
	return time.Duration(c.MaxMissedPongs)*c.PingInterval + c.PongTimeout
}

func (c KeepAliveConfig) withDefaults() KeepAliveConfig {
	if c.PingInterval <= 0 {
		c.PingInterval = DefaultPingInterval
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = DefaultPongTimeout
	}
	if c.MaxMissedPongs <= 0 {
		c.MaxMissedPongs = DefaultMaxMissedPongs
	}
	return c
}

// KeepAliveStats is a snapshot of a KeepAlive's counters.
type KeepAliveStats struct {
	LastPingTime time.Time
	LastPongTime time.Time
	MissedPongs  int
	CurrentSeq   uint32
	Latency      time.Duration
}

// KeepAlive pings the peer on an interval. When MaxMissedPongs pings in a
// row stay unanswered for PongTimeout, it stops and calls onTimeout.
type KeepAlive struct {
	config    KeepAliveConfig
	sendPing  func(seq uint32) error
	onTimeout func()
	pongs     chan uint32

	mu      sync.Mutex
	stop    chan struct{}
	running bool
	stats   KeepAliveStats
}

// NewKeepAlive creates a stopped keep-alive. onTimeout may be nil.
func NewKeepAlive(config KeepAliveConfig, sendPing func(seq uint32) error, onTimeout func()) *KeepAlive {
	return &KeepAlive{
		config:    config.withDefaults(),
		sendPing:  sendPing,
		onTimeout: onTimeout,
		pongs:     make(chan uint32, 1),
	}
}

// Start sends the first ping and starts the loop. Calling Start on a
// running KeepAlive does nothing.
func (ka *KeepAlive) Start(ctx context.Context) {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	if ka.running {
		return
	}
	ka.running = true
	ka.stats.MissedPongs = 0
	ka.stop = make(chan struct{})
	go ka.run(ctx, ka.stop)
}

// Stop ends the loop. It is safe to call more than once.
func (ka *KeepAlive) Stop() {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	if ka.running {
		ka.running = false
		close(ka.stop)
	}
}

// PongReceived feeds a pong read from the peer. It never blocks.
func (ka *KeepAlive) PongReceived(seq uint32) {
	select {
	case ka.pongs <- seq:
	default:
	}
}

// IsRunning reports whether the loop is active.
func (ka *KeepAlive) IsRunning() bool {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	return ka.running
}

// Stats returns the current counters.
func (ka *KeepAlive) Stats() KeepAliveStats {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	return ka.stats
}

// run owns the outstanding ping. Only counters shared with Stats go
// through the mutex.
func (ka *KeepAlive) run(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(ka.config.PingInterval)
	defer ticker.Stop()

	var (
		pending uint32
		waiting bool
		sentAt  time.Time
		missed  int
	)
	send := func() {
		ka.mu.Lock()
		ka.stats.CurrentSeq++
		pending = ka.stats.CurrentSeq
		sentAt = time.Now()
		ka.stats.LastPingTime = sentAt
		ka.mu.Unlock()
		waiting = true
		// A failed send shows up as a missed pong.
		_ = ka.sendPing(pending)
	}

	send()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return

		case seq := <-ka.pongs:
			now := time.Now()
			ka.mu.Lock()
			ka.stats.LastPongTime = now
			// Pongs for older pings only refresh LastPongTime.
			if waiting && seq == pending {
				waiting = false
				missed = 0
				ka.stats.Latency = now.Sub(sentAt)
				ka.stats.MissedPongs = 0
			}
			ka.mu.Unlock()

		case <-ticker.C:
			if waiting && time.Since(sentAt) >= ka.config.PongTimeout {
				waiting = false
				missed++
				ka.mu.Lock()
				ka.stats.MissedPongs = missed
				ka.mu.Unlock()
				if missed >= ka.config.MaxMissedPongs {
					ka.Stop()
					if ka.onTimeout != nil {
						ka.onTimeout()
					}
					return
				}
			}
			send()
		}
	}
}
