package discovery

import (
	"context"
	"time"
)

// Browser provides mDNS service browsing capabilities.
type Browser interface {
	// Browse streams gateways as they are found. The channel closes when ctx
	// is done.
	Browse(ctx context.Context) (<-chan *GatewayService, error)

	// FindDevice returns the gateway serving deviceID.
	FindDevice(ctx context.Context, deviceID string) (*GatewayService, error)

	// FindAll collects every gateway seen until ctx is done.
	FindAll(ctx context.Context) ([]*GatewayService, error)

	// Stop stops all active browsing operations.
	Stop()
}

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// BrowseTimeout bounds FindDevice and Resolve when the caller's context
	// has no deadline.
	// Default: 10 seconds.
	BrowseTimeout time.Duration

	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string
}

// DefaultBrowserConfig returns the default browser configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		BrowseTimeout: BrowseTimeout,
		Interface:     "",
	}
}

// FilterFunc filters browse results.
type FilterFunc func(*GatewayService) bool

// FilterByProductKey matches gateways advertising one of the product keys.
func FilterByProductKey(keys ...string) FilterFunc {
	return func(svc *GatewayService) bool {
		for _, k := range keys {
			if svc.ProductKey == k {
				return true
			}
		}
		return false
	}
}

// FilterByDeviceID matches the gateway for one device.
func FilterByDeviceID(deviceID string) FilterFunc {
	return func(svc *GatewayService) bool {
		return svc.DeviceID == deviceID
	}
}

// FilterBrowseResults applies a filter to a browse result channel.
func FilterBrowseResults(in <-chan *GatewayService, filter FilterFunc) <-chan *GatewayService {
	out := make(chan *GatewayService)
	go func() {
		defer close(out)
		for svc := range in {
			if filter(svc) {
				out <- svc
			}
		}
	}()
	return out
}
