package device

import (
	"log/slog"

	"github.com/dpcontrol/dpcontrol-go/pkg/connection"
	"github.com/dpcontrol/dpcontrol-go/pkg/log"
)

// errorBufferSize is the capacity of the Errors channel. Errors that do not
// fit are dropped from the channel but still reach OnError callbacks.
const errorBufferSize = 16

// Option configures a Controller.
type Option func(*options)

type options struct {
	waitFirstState    bool
	policy            connection.RetryPolicy
	maxTrials         int
	debug             bool
	label             string
	logger            *slog.Logger
	sessionLogger     log.Logger
	resetOnDisconnect bool
}

func defaultOptions() options {
	return options{
		policy: connection.DefaultRetryPolicy(),
	}
}

// WithWaitFirstState makes Connect return only after the first state update.
func WithWaitFirstState(wait bool) Option {
	return func(o *options) { o.waitFirstState = wait }
}

// WithRetryPolicy sets the discovery retry policy.
func WithRetryPolicy(p connection.RetryPolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithMaxConnectTrials overrides MaxTrials of the retry policy, regardless of
// option order.
func WithMaxConnectTrials(n int) Option {
	return func(o *options) { o.maxTrials = n }
}

// WithDebug enables debug logging. Without it the controller is silent.
func WithDebug(debug bool) Option {
	return func(o *options) { o.debug = debug }
}

// WithDebugLabel sets the label debug records carry instead of the device ID.
func WithDebugLabel(label string) Option {
	return func(o *options) { o.label = label }
}

// WithLogger sets the logger used when debug logging is enabled.
// Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSessionLogger records a protocol session log for every connection.
func WithSessionLogger(l log.Logger) Option {
	return func(o *options) { o.sessionLogger = l }
}

// WithResetOnDisconnect clears the snapshot when the device disconnects.
// By default the last known state survives reconnects.
func WithResetOnDisconnect(reset bool) Option {
	return func(o *options) { o.resetOnDisconnect = reset }
}

func (o *options) retryPolicy() connection.RetryPolicy {
	p := o.policy
	if o.maxTrials != 0 {
		p.MaxTrials = o.maxTrials
	}
	return p
}

func (o *options) debugLogger(id string) *slog.Logger {
	if !o.debug {
		return slog.New(slog.DiscardHandler)
	}
	l := o.logger
	if l == nil {
		l = slog.Default()
	}
	label := o.label
	if label == "" {
		label = id
	}
	return l.With("device", label)
}
