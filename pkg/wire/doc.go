// Package wire defines the CBOR messages exchanged with a DP gateway.
//
// Every message is a CBOR map with integer keys. Key 1 always holds the
// message Kind so a receiver can route a frame with PeekKind before decoding
// the full body.
//
// # Message Types
//
//   - Hello / HelloAck: session setup, authenticated by a tag derived from the
//     device key
//   - SetRequest / SetAck: DP writes and their acknowledgement
//   - Data: DP updates pushed by the gateway (incremental or full refresh)
//   - RefreshRequest: ask the gateway for a full DP refresh
//   - Control: ping, pong and close
//
// DP maps are keyed by the DP number as a string. Values are bool, integer,
// float or string; integers decode as uint64 or int64.
package wire
