// Package device implements the generic device controller.
//
// A Controller couples three parts:
//
//   - a connection.Manager that drives discovery with bounded retries and
//     tracks the connection state,
//   - an Accumulator that merges incremental DP updates into a snapshot,
//   - a Profile that translates between a friendly state type S and raw DPs.
//
// Device types (light, plug, curtain, switch) are profiles, not subclasses;
// see package profile.
//
// # Connection lifecycle
//
// Connect discovers the device (retrying per the RetryPolicy), subscribes to
// transport events and connects the transport. The controller becomes
// connected when the first data or dp-refresh event arrives. With
// WithWaitFirstState, Connect returns only after that event.
//
// A disconnected event marks the controller disconnected. Nothing reconnects
// automatically; callers call Connect again.
//
// # Errors
//
// Discovery exhaustion returns an error wrapping ErrDeviceUnreachable.
// Runtime transport failures arrive as *TransportError on Errors() and the
// OnError callbacks. Write failures are returned from SetState as
// *SetStateError.
package device
