package discovery

import (
	"context"
	"time"
)

// Advertiser announces gateways on the local network.
type Advertiser interface {
	// Advertise starts advertising a gateway. Advertising the same device
	// again replaces the previous registration.
	Advertise(ctx context.Context, info *GatewayInfo) error

	// Update replaces the TXT records of an advertised gateway.
	Update(info *GatewayInfo) error

	// Stop stops advertising the gateway for deviceID.
	Stop(deviceID string) error

	// StopAll stops all advertisements.
	StopAll()
}

// AdvertiserConfig configures advertiser behavior.
type AdvertiserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// TTL is the DNS record TTL.
	// Default: 120 seconds.
	TTL time.Duration
}

// DefaultAdvertiserConfig returns the default advertiser configuration.
func DefaultAdvertiserConfig() AdvertiserConfig {
	return AdvertiserConfig{
		Interface: "",
		TTL:       DefaultTTL,
	}
}
