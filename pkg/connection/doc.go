// Package connection provides the device connection lifecycle.
//
// This package handles:
//   - Bounded discovery retries with a configurable backoff
//   - Connection state tracking (Disconnected, Discovering, Connected)
//   - A one-shot "first state received" signal for callers that want
//     Connect to return only once the device has reported its state
//
// # Discovery Strategy
//
// Before a session can be opened the device has to be found on the network.
// Manager.Discover calls the supplied find function until it succeeds or the
// RetryPolicy is exhausted:
//
//  1. Call find
//  2. On failure, count one trial
//  3. If trials reached MaxTrials, fail with ErrDeviceUnreachable
//  4. Otherwise wait the backoff delay and go to 1
//
// The default policy waits a fixed 5 seconds between trials and gives up
// after 5 trials. Exponential growth and jitter are available through
// RetryPolicy.Multiplier and RetryPolicy.Jitter.
//
// # Connected
//
// Discovery success does not mean the device is connected. A device counts as
// Connected once the first state update arrives, which is reported through
// Manager.MarkConnected. There is no automatic reconnection: after the
// transport drops, the state returns to Disconnected and the caller decides
// whether to call Connect again.
package connection
