// Package sim runs a simulated DP device behind a gateway server.
//
// The device keeps a DP snapshot, acknowledges writes to DPs it knows,
// echoes accepted changes as data messages and answers refresh requests
// with the full snapshot. Curtains additionally track their position and
// last action the way a real motor reports them.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/dpcontrol/dpcontrol-go/pkg/dps"
	"github.com/dpcontrol/dpcontrol-go/pkg/log"
	"github.com/dpcontrol/dpcontrol-go/pkg/profile"
	"github.com/dpcontrol/dpcontrol-go/pkg/transport"
	"github.com/dpcontrol/dpcontrol-go/pkg/wire"
)

// Config configures a simulated device.
type Config struct {
	// Address to listen on (default: ":6668").
	Address string

	DeviceID  string
	DeviceKey string

	// Kind selects the initial DP layout. Empty means no layout; Initial
	// must then list the DPs.
	Kind string

	// Initial overrides or extends the kind's default DPs.
	Initial dps.Update

	// Logger receives operational debug output. Nil means silent.
	Logger *slog.Logger

	// SessionLogger records every client session.
	SessionLogger log.Logger
}

// Device is a running simulated device.
type Device struct {
	config Config
	server *transport.Server
	logger *slog.Logger

	mu    sync.Mutex
	state dps.Snapshot
	known map[dps.Key]bool
	sets  int
}

// DefaultState returns the power-on DPs of a device kind.
func DefaultState(kind string) (dps.Update, error) {
	switch kind {
	case profile.KindLight:
		return dps.Update{
			profile.LightDPPower:       false,
			profile.LightDPMode:        profile.ModeWhite,
			profile.LightDPBrightness:  1000,
			profile.LightDPTemperature: 500,
			profile.LightDPColor:       "000003e803e8",
			profile.LightDPScene:       "",
		}, nil
	case profile.KindPlug:
		return dps.Update{profile.PlugDPPower: false}, nil
	case profile.KindCurtain:
		return dps.Update{
			profile.CurtainDPState:            profile.CurtainStop,
			profile.CurtainDPClosedPercentage: 0,
			profile.CurtainDPLastAction:       profile.CurtainStop,
		}, nil
	case profile.KindSwitch:
		return dps.Update{
			"1":                            false,
			"2":                            false,
			"3":                            false,
			profile.SwitchDPPowerIndicator: true,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", profile.ErrUnknownKind, kind)
	}
}

// New creates a simulated device. It does not listen until Start.
func New(config Config) (*Device, error) {
	if config.DeviceID == "" {
		return nil, fmt.Errorf("device ID is required")
	}

	initial := dps.Update{}
	if config.Kind != "" {
		defaults, err := DefaultState(config.Kind)
		if err != nil {
			return nil, err
		}
		initial = defaults
	}
	for k, v := range config.Initial {
		initial[k] = v
	}
	if len(initial) == 0 {
		return nil, fmt.Errorf("device has no data points")
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	d := &Device{
		config: config,
		logger: logger.With("sim", config.DeviceID),
		state:  dps.NewSnapshot(),
		known:  make(map[dps.Key]bool, len(initial)),
	}
	d.state.Merge(initial)
	for k := range initial {
		d.known[k] = true
	}

	var auth func(*wire.Hello) error
	if config.DeviceKey != "" {
		auth = transport.KeyAuthenticator(map[string]string{config.DeviceID: config.DeviceKey})
	}
	d.server = transport.NewServer(transport.ServerConfig{
		Address:       config.Address,
		Authenticate:  auth,
		Logger:        logger,
		SessionLogger: config.SessionLogger,
		OnConnect: func(conn *transport.ServerConn) {
			d.logger.Debug("client connected", "session", conn.ID())
		},
		OnDisconnect: func(conn *transport.ServerConn, err error) {
			d.logger.Debug("client disconnected", "session", conn.ID(), "error", err)
		},
		OnMessage: d.handle,
	})
	return d, nil
}

// Start starts accepting sessions.
func (d *Device) Start(ctx context.Context) error {
	return d.server.Start(ctx)
}

// Stop closes all sessions and the listener.
func (d *Device) Stop() error {
	return d.server.Stop()
}

// Addr returns the listening address, or nil before Start.
func (d *Device) Addr() net.Addr {
	return d.server.Addr()
}

// Port returns the listening TCP port, or 0 before Start.
func (d *Device) Port() int {
	if addr, ok := d.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

// Sessions returns the number of connected clients.
func (d *Device) Sessions() int {
	return d.server.ConnectionCount()
}

// State returns a copy of the current DPs.
func (d *Device) State() dps.Update {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.Update()
}

// SetCount returns the number of accepted set requests.
func (d *Device) SetCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sets
}

// Push simulates a local change on the device (a button press, a motor
// reaching its end stop) and reports it to every client.
func (d *Device) Push(u dps.Update) error {
	if len(u) == 0 {
		return nil
	}
	d.mu.Lock()
	d.state.Merge(u)
	for k := range u {
		d.known[k] = true
	}
	d.mu.Unlock()

	return d.server.Broadcast(&wire.Data{DPS: u.Clone()})
}

func (d *Device) handle(conn *transport.ServerConn, m wire.Message) {
	switch msg := m.(type) {
	case *wire.RefreshRequest:
		state := d.State()
		if len(msg.DPs) > 0 {
			partial := dps.Update{}
			for _, k := range msg.DPs {
				if v, ok := state[k]; ok {
					partial[k] = v
				}
			}
			state = partial
		}
		_ = conn.Send(&wire.Data{Refresh: true, DPS: state})

	case *wire.SetRequest:
		changed, err := d.apply(msg.DPS)
		if err != nil {
			d.logger.Debug("set rejected", "error", err)
			_ = conn.Send(&wire.SetAck{RequestID: msg.RequestID, OK: false, Error: err.Error()})
			return
		}
		_ = conn.Send(&wire.SetAck{RequestID: msg.RequestID, OK: true, DPS: msg.DPS})
		if err := d.server.Broadcast(&wire.Data{DPS: changed}); err != nil {
			d.logger.Debug("broadcast failed", "error", err)
		}
	}
}

// apply validates and merges a write. It returns the DPs to report, which
// may include side effects of the write.
func (d *Device) apply(u dps.Update) (dps.Update, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, k := range u.Keys() {
		if !d.known[k] {
			return nil, fmt.Errorf("unsupported dp %s", k)
		}
	}

	changed := u.Clone()
	if d.config.Kind == profile.KindCurtain {
		curtainEffects(changed)
	}
	d.state.Merge(changed)
	d.sets++
	return changed, nil
}

// curtainEffects adds the position and last action a curtain motor reports
// after a command. A stopped curtain keeps its position.
func curtainEffects(u dps.Update) {
	cmd, ok := u[profile.CurtainDPState].(string)
	if !ok {
		if _, moved := u[profile.CurtainDPClosedPercentage]; moved {
			u[profile.CurtainDPLastAction] = "position"
		}
		return
	}
	u[profile.CurtainDPLastAction] = cmd
	if _, explicit := u[profile.CurtainDPClosedPercentage]; explicit {
		return
	}
	switch cmd {
	case profile.CurtainOpen:
		u[profile.CurtainDPClosedPercentage] = 0
	case profile.CurtainClose:
		u[profile.CurtainDPClosedPercentage] = 100
	}
}
