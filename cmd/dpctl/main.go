// Command dpctl controls DP devices from the command line.
//
// Usage:
//
//	dpctl [flags] <command> [args...]
//	dpctl [flags] -interactive
//	dpctl [flags] -mqtt
//
// Flags:
//
//	-config string       Configuration file path (default "dpcontrol.yaml")
//	-device string       Device name or ID from the configuration
//	-id string           Device ID (ad-hoc device without configuration)
//	-key string          Device local key (with -id)
//	-kind string         Device kind: light, plug, curtain, switch (with -id)
//	-addr string         Gateway address host:port; empty uses mDNS
//	-log-level string    Log level: debug, info, warn, error (default "info")
//	-interactive         Start the interactive shell
//	-mqtt                Bridge all configured devices to MQTT
//	-session-log string  Directory for protocol session logs
//	-timeout duration    Timeout for one-shot commands (default 15s)
//
// Commands:
//
//	state, raw, set <json>, dp <key> <value>, refresh
//	on, off, toggle [channel]
//	brightness, temp, color, scene, white, colour
//	open, close, stop, position <pct>, indicator on|off
//	watch       - Print every state change until interrupted
//	discover    - List gateways found via mDNS
//
// Examples:
//
//	# Turn on the kitchen light
//	dpctl -device kitchen on
//
//	# Set brightness and colour in one go
//	dpctl -device kitchen set '{"brightness":40,"color":"#ff8800"}'
//
//	# Talk to a device that is not in the configuration
//	dpctl -id bf0123456789abcdef -key 0123456789abcdef -kind plug -addr 192.168.1.40:6668 toggle
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dpcontrol/dpcontrol-go/cmd/dpctl/interactive"
	"github.com/dpcontrol/dpcontrol-go/pkg/config"
	"github.com/dpcontrol/dpcontrol-go/pkg/connection"
	"github.com/dpcontrol/dpcontrol-go/pkg/discovery"
	dplog "github.com/dpcontrol/dpcontrol-go/pkg/log"
	"github.com/dpcontrol/dpcontrol-go/pkg/mqttbridge"
	"github.com/dpcontrol/dpcontrol-go/pkg/profile"
)

// Flags holds the command line settings.
type Flags struct {
	ConfigFile  string
	Device      string
	ID          string
	Key         string
	Kind        string
	Addr        string
	LogLevel    string
	Interactive bool
	MQTT        bool
	SessionDir  string
	Timeout     time.Duration
}

var flags Flags

func init() {
	flag.StringVar(&flags.ConfigFile, "config", "dpcontrol.yaml", "Configuration file path")
	flag.StringVar(&flags.Device, "device", "", "Device name or ID from the configuration")
	flag.StringVar(&flags.ID, "id", "", "Device ID (ad-hoc device without configuration)")
	flag.StringVar(&flags.Key, "key", "", "Device local key (with -id)")
	flag.StringVar(&flags.Kind, "kind", "", "Device kind: "+strings.Join(profile.Kinds(), ", ")+" (with -id)")
	flag.StringVar(&flags.Addr, "addr", "", "Gateway address host:port; empty uses mDNS")
	flag.StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.BoolVar(&flags.Interactive, "interactive", false, "Start the interactive shell")
	flag.BoolVar(&flags.MQTT, "mqtt", false, "Bridge all configured devices to MQTT")
	flag.StringVar(&flags.SessionDir, "session-log", "", "Directory for protocol session logs")
	flag.DurationVar(&flags.Timeout, "timeout", 15*time.Second, "Timeout for one-shot commands")
}

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if flags.LogLevel != "" {
		cfg.Log.Level = flags.LogLevel
	}
	if flags.SessionDir != "" {
		cfg.Log.SessionDir = flags.SessionDir
	}
	logger := setupLogging(cfg.Log.Level)

	args := flag.Args()
	if len(args) > 0 && args[0] == "discover" {
		if err := runDiscover(cfg); err != nil {
			log.Fatalf("Discovery failed: %v", err)
		}
		return
	}

	if !flags.Interactive && !flags.MQTT && len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	sessionLogger, closeSession, err := openSessionLog(cfg.Log.SessionDir)
	if err != nil {
		log.Fatalf("Failed to open session log: %v", err)
	}
	defer closeSession()
	if cfg.Log.Level == "debug" {
		sessionLogger = withConsoleTrace(sessionLogger, logger)
	}

	selected, err := selectDevices(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	var resolver *discovery.MDNSBrowser
	if needsResolver(selected) {
		resolver, err = discovery.NewMDNSBrowser(discovery.BrowserConfig{
			BrowseTimeout: cfg.Gateway.BrowseTimeout,
			Interface:     cfg.Gateway.Interface,
		})
		if err != nil {
			log.Fatalf("Failed to create mDNS browser: %v", err)
		}
		defer resolver.Stop()
	}

	devices, err := openDevices(cfg, selected, resolver, sessionLogger, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			log.Printf("Received signal: %v", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	switch {
	case flags.MQTT:
		err = runBridge(ctx, cfg, devices, logger)
	case flags.Interactive:
		err = runInteractive(ctx, cancel, devices)
	default:
		err = runOneShot(ctx, devices, args)
	}

	disconnectAll(devices)
	if err != nil {
		log.Fatalf("%v", err)
	}
}

func loadConfig() (*config.Config, error) {
	if flags.ID != "" {
		cfg := config.Default()
		cfg.Devices = []config.DeviceConfig{{
			ID:      flags.ID,
			Key:     flags.Key,
			Kind:    flags.Kind,
			Address: flags.Addr,
		}}
		return cfg, cfg.Validate()
	}
	return config.Load(flags.ConfigFile)
}

func selectDevices(cfg *config.Config) ([]config.DeviceConfig, error) {
	if flags.Device != "" {
		d, ok := cfg.Device(flags.Device)
		if !ok {
			return nil, fmt.Errorf("unknown device: %s", flags.Device)
		}
		if flags.Addr != "" {
			d.Address = flags.Addr
		}
		return []config.DeviceConfig{d}, nil
	}
	if len(cfg.Devices) == 0 {
		return nil, errors.New("no devices configured")
	}
	if len(cfg.Devices) > 1 && !flags.Interactive && !flags.MQTT {
		return nil, errors.New("several devices configured, select one with -device")
	}
	return cfg.Devices, nil
}

func needsResolver(devices []config.DeviceConfig) bool {
	for _, d := range devices {
		if d.Address == "" {
			return true
		}
	}
	return false
}

func openSessionLog(dir string) (dplog.Logger, func(), error) {
	if dir == "" {
		return nil, func() {}, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, err
	}
	path := filepath.Join(dir, fmt.Sprintf("dpctl-%s.dplog", time.Now().Format("20060102-150405")))
	fl, err := dplog.NewFileLogger(path)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("Session log: %s", path)
	return fl, func() {
		if err := fl.Close(); err != nil {
			log.Printf("Warning: Failed to close session log: %v", err)
		}
	}, nil
}

// withConsoleTrace mirrors session events to the console logger.
func withConsoleTrace(sessionLogger dplog.Logger, logger *slog.Logger) dplog.Logger {
	return dplog.Tee(sessionLogger, dplog.NewSlogAdapter(logger.With("component", "session")))
}

func runOneShot(parent context.Context, devices map[string]profile.Device, args []string) error {
	ctx, cancel := context.WithTimeout(parent, flags.Timeout)
	defer cancel()

	var d profile.Device
	for _, dev := range devices {
		d = dev
	}
	if err := d.Connect(ctx); err != nil {
		return fmt.Errorf("connect %s: %w", d.Label(), err)
	}

	cmd, rest := args[0], args[1:]
	if cmd == "watch" {
		return runWatch(parent, d)
	}
	// Reads want a populated snapshot.
	if cmd == "state" || cmd == "raw" {
		if err := waitFirstState(ctx, d); err != nil {
			return err
		}
	}
	return interactive.RunCommand(ctx, os.Stdout, d, cmd, rest)
}

func waitFirstState(ctx context.Context, d profile.Device) error {
	if d.RawState().Len() > 0 {
		return nil
	}
	got := make(chan struct{}, 1)
	d.OnChange(func() {
		select {
		case got <- struct{}{}:
		default:
		}
	})
	if d.RawState().Len() > 0 {
		return nil
	}
	select {
	case <-got:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for state: %w", ctx.Err())
	}
}

// runWatch prints the state on every change until ctx is done. It is not
// bound by -timeout.
func runWatch(ctx context.Context, d profile.Device) error {
	d.OnChange(func() {
		if js, err := d.StateJSON(); err == nil {
			fmt.Printf("%s %s\n", time.Now().Format("15:04:05.000"), js)
		}
	})
	disconnected := make(chan struct{}, 1)
	d.OnConnectionChange(func(_, newState connection.State) {
		log.Printf("Connection: %s", newState)
		if newState == connection.StateDisconnected {
			select {
			case disconnected <- struct{}{}:
			default:
			}
		}
	})
	if err := d.Refresh(ctx); err != nil {
		log.Printf("Warning: refresh failed: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-disconnected:
			return errors.New("device disconnected")
		case err := <-d.Errors():
			log.Printf("Device error: %v", err)
		}
	}
}

func runInteractive(ctx context.Context, cancel context.CancelFunc, devices map[string]profile.Device) error {
	shell := interactive.New(devices)
	if err := shell.Open(); err != nil {
		return err
	}
	// Keep log output from garbling the prompt.
	log.SetOutput(shell.Stdout())
	go shell.Run(ctx, cancel)
	go connectAll(ctx, devices)

	<-ctx.Done()
	return nil
}

func runBridge(ctx context.Context, cfg *config.Config, devices map[string]profile.Device, logger *slog.Logger) error {
	if cfg.MQTT.Broker == "" {
		return errors.New("mqtt.broker is not configured")
	}

	client, err := mqttbridge.Dial(mqttbridge.DialConfig{
		Broker:      cfg.MQTT.Broker,
		ClientID:    cfg.MQTT.ClientID,
		Username:    cfg.MQTT.Username,
		Password:    cfg.MQTT.Password,
		TopicPrefix: cfg.MQTT.TopicPrefix,
	})
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Printf("Connected to MQTT broker %s", cfg.MQTT.Broker)

	bridge := mqttbridge.New(client, mqttbridge.Config{
		TopicPrefix: cfg.MQTT.TopicPrefix,
		QoS:         byte(cfg.MQTT.QoS),
		SetTimeout:  cfg.Gateway.SetTimeout,
		Logger:      logger,
	})
	for name, d := range devices {
		if err := bridge.Add(name, d); err != nil {
			return fmt.Errorf("bridge %s: %w", name, err)
		}
	}
	bridge.Start()
	defer bridge.Stop()

	connectAll(ctx, devices)

	<-ctx.Done()
	log.Println("Shutting down...")
	return nil
}

func runDiscover(cfg *config.Config) error {
	browser, err := discovery.NewMDNSBrowser(discovery.BrowserConfig{
		BrowseTimeout: cfg.Gateway.BrowseTimeout,
		Interface:     cfg.Gateway.Interface,
	})
	if err != nil {
		return err
	}
	defer browser.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Gateway.BrowseTimeout)
	defer cancel()

	found, err := browser.FindAll(ctx)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		fmt.Println("No gateways found")
		return nil
	}
	for _, g := range found {
		addr, _ := g.Address()
		name := ""
		if d, ok := cfg.Device(g.DeviceID); ok {
			name = d.DisplayName()
		}
		fmt.Printf("%-24s %-22s %-12s %s\n", g.DeviceID, addr, g.ProductKey, name)
	}
	return nil
}

func setupLogging(level string) *slog.Logger {
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	var lvl slog.Level
	switch level {
	case "debug":
		log.SetFlags(log.Ltime | log.Lmicroseconds | log.Lshortfile)
		lvl = slog.LevelDebug
	case "warn":
		log.SetFlags(log.Ltime)
		lvl = slog.LevelWarn
	case "error":
		log.SetFlags(log.Ltime)
		lvl = slog.LevelError
	}
	slog.SetLogLoggerLevel(lvl)
	return slog.Default()
}
