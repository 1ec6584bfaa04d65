// Package discovery implements mDNS/DNS-SD discovery for DP gateways.
//
// A gateway serving one device advertises the service type _dpgw._tcp.
// Instance name format: dpgw-<device-id> (truncated to the DNS label limit).
//
// TXT records:
//   - id: device ID (required)
//   - pk: product key (optional)
//   - ver: gateway protocol version (optional)
//
// Clients locate the gateway for a device with MDNSBrowser.FindDevice or,
// when only an address is needed, MDNSBrowser.Resolve. The latter satisfies
// transport.Resolver, so a GatewayTransport can browse without importing this
// package's types.
package discovery
