// Package transport defines the device transport contract and ships a
// reference implementation that talks to a local DP gateway.
//
// A Transport finds a device, opens a session to it, writes DPs and emits
// events: data (incremental update), dp-refresh (full refresh), disconnected
// and error. The device controller in pkg/device only depends on this
// contract.
//
// # Gateway Protocol Stack
//
//	┌────────────────────────────────┐
//	│   CBOR Messages (pkg/wire)     │
//	├────────────────────────────────┤
//	│   Length-Prefix Framing (4B)   │
//	├────────────────────────────────┤
//	│           TCP                  │
//	└────────────────────────────────┘
//
// Sessions start with a Hello carrying an HKDF tag derived from the device
// key, so the gateway can reject clients that do not know the key. The
// session itself is not encrypted.
//
// # Keep-Alive
//
// The client pings the gateway on an interval:
//   - Ping interval: 15 seconds
//   - Pong timeout: 5 seconds
//   - Max missed pongs: 2
//
// A keep-alive timeout is reported as an error event followed by
// disconnected.
package transport
