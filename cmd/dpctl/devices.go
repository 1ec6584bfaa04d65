package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dpcontrol/dpcontrol-go/pkg/config"
	"github.com/dpcontrol/dpcontrol-go/pkg/connection"
	"github.com/dpcontrol/dpcontrol-go/pkg/device"
	"github.com/dpcontrol/dpcontrol-go/pkg/discovery"
	dplog "github.com/dpcontrol/dpcontrol-go/pkg/log"
	"github.com/dpcontrol/dpcontrol-go/pkg/profile"
	"github.com/dpcontrol/dpcontrol-go/pkg/transport"
)

// openDevices creates one device per configuration entry, keyed by display
// name. Nothing is connected yet.
func openDevices(cfg *config.Config, selected []config.DeviceConfig, browser *discovery.MDNSBrowser, sessionLogger dplog.Logger, logger *slog.Logger) (map[string]profile.Device, error) {
	var resolver transport.Resolver
	if browser != nil {
		resolver = browser
	}

	devices := make(map[string]profile.Device, len(selected))
	for _, dc := range selected {
		if cfg.Log.Level == "debug" {
			dc.Debug = true
		}
		tc := cfg.TransportConfig(dc, resolver)
		if dc.Debug {
			tc.Logger = logger.With("device", dc.DisplayName())
		}
		tr, err := transport.NewGatewayTransport(tc)
		if err != nil {
			return nil, fmt.Errorf("transport for %s: %w", dc.DisplayName(), err)
		}

		opts := append(dc.Options(), device.WithLogger(logger))
		if sessionLogger != nil {
			opts = append(opts, device.WithSessionLogger(sessionLogger))
		}
		d, err := profile.Open(dc.Kind, dc.Identity(), tr, opts...)
		if err != nil {
			return nil, fmt.Errorf("device %s: %w", dc.DisplayName(), err)
		}
		devices[dc.DisplayName()] = d
	}
	return devices, nil
}

// connectAll connects every device concurrently. Failures are logged; the
// device stays usable for a later retry.
func connectAll(ctx context.Context, devices map[string]profile.Device) {
	var g errgroup.Group
	for name, d := range devices {
		g.Go(func() error {
			start := time.Now()
			if err := d.Connect(ctx); err != nil {
				log.Printf("[%s] connect failed: %v", name, err)
				return nil
			}
			log.Printf("[%s] connected (%s)", name, time.Since(start).Round(time.Millisecond))
			return nil
		})
	}
	_ = g.Wait()
}

func disconnectAll(devices map[string]profile.Device) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var g errgroup.Group
	for name, d := range devices {
		if d.State() == connection.StateDisconnected {
			continue
		}
		g.Go(func() error {
			if err := d.Disconnect(ctx); err != nil {
				log.Printf("[%s] disconnect: %v", name, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}
