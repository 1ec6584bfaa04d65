// Command dpsim simulates a DP device gateway for testing dpctl and the
// library without hardware.
//
// Usage:
//
//	dpsim [flags]
//
// Flags:
//
//	-kind string         Device kind: light, plug, curtain, switch (default "plug")
//	-id string           Device ID (default: generated)
//	-key string          Device local key (default "0123456789abcdef")
//	-port int            Listen port (default 6668)
//	-product-key string  Product key advertised via mDNS
//	-no-advertise        Do not advertise via mDNS
//	-session-log string  Session log file path
//	-log-level string    Log level: debug, info, warn, error (default "info")
//	-interactive         Enable interactive command mode
//
// Interactive Commands:
//
//	state              - Show the current DPs
//	push <dp> <value>  - Simulate a local DP change
//	sessions           - Show connected clients
//	quit               - Exit the simulator
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/dpcontrol/dpcontrol-go/internal/sim"
	"github.com/dpcontrol/dpcontrol-go/pkg/discovery"
	dplog "github.com/dpcontrol/dpcontrol-go/pkg/log"
	"github.com/dpcontrol/dpcontrol-go/pkg/profile"
	"github.com/dpcontrol/dpcontrol-go/pkg/transport"
)

// Config holds the simulator settings.
type Config struct {
	Kind        string
	DeviceID    string
	DeviceKey   string
	Port        int
	ProductKey  string
	NoAdvertise bool
	SessionLog  string
	LogLevel    string
	Interactive bool
}

var config Config

func init() {
	flag.StringVar(&config.Kind, "kind", profile.KindPlug, "Device kind: "+strings.Join(profile.Kinds(), ", "))
	flag.StringVar(&config.DeviceID, "id", "", "Device ID (default: generated)")
	flag.StringVar(&config.DeviceKey, "key", "0123456789abcdef", "Device local key")
	flag.IntVar(&config.Port, "port", transport.DefaultPort, "Listen port")
	flag.StringVar(&config.ProductKey, "product-key", "", "Product key advertised via mDNS")
	flag.BoolVar(&config.NoAdvertise, "no-advertise", false, "Do not advertise via mDNS")
	flag.StringVar(&config.SessionLog, "session-log", "", "Session log file path")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.BoolVar(&config.Interactive, "interactive", false, "Enable interactive command mode")
}

func main() {
	flag.Parse()

	logger := setupLogging(config.LogLevel)

	if config.DeviceID == "" {
		config.DeviceID = "sim" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	}

	log.Println("DP Device Simulator")
	log.Println("===================")
	log.Printf("Kind:      %s", config.Kind)
	log.Printf("Device ID: %s", config.DeviceID)

	var sessionLogger dplog.Logger
	if config.SessionLog != "" {
		fl, err := dplog.NewFileLogger(config.SessionLog)
		if err != nil {
			log.Fatalf("Failed to open session log: %v", err)
		}
		defer fl.Close()
		sessionLogger = fl
		log.Printf("Session log: %s", config.SessionLog)
	}

	dev, err := sim.New(sim.Config{
		Address:       fmt.Sprintf(":%d", config.Port),
		DeviceID:      config.DeviceID,
		DeviceKey:     config.DeviceKey,
		Kind:          config.Kind,
		Logger:        logger,
		SessionLogger: sessionLogger,
	})
	if err != nil {
		log.Fatalf("Failed to create simulator: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := dev.Start(ctx); err != nil {
		log.Fatalf("Failed to start simulator: %v", err)
	}
	log.Printf("Listening on %s", dev.Addr())

	if !config.NoAdvertise {
		adv, err := discovery.NewMDNSAdvertiser(discovery.DefaultAdvertiserConfig())
		if err != nil {
			log.Fatalf("Failed to create mDNS advertiser: %v", err)
		}
		defer adv.StopAll()

		info := &discovery.GatewayInfo{
			DeviceID:   config.DeviceID,
			ProductKey: config.ProductKey,
			Port:       uint16(dev.Port()),
		}
		if err := adv.Advertise(ctx, info); err != nil {
			log.Printf("Warning: mDNS advertising failed: %v", err)
		} else {
			log.Printf("Advertising %s.%s.%s", info.InstanceName(), discovery.ServiceType, discovery.Domain)
		}
	}

	if config.Interactive {
		c, err := newConsole(dev)
		if err != nil {
			log.Fatalf("Failed to create interactive console: %v", err)
		}
		log.SetOutput(c.Stdout())
		go c.Run(ctx, cancel)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received signal: %v", sig)
	case <-ctx.Done():
	}

	log.Println("Shutting down...")
	if err := dev.Stop(); err != nil {
		log.Printf("Error stopping simulator: %v", err)
	}
	log.Println("Goodbye!")
}

func setupLogging(level string) *slog.Logger {
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	lvl := slog.LevelInfo
	switch level {
	case "debug":
		log.SetFlags(log.Ltime | log.Lmicroseconds | log.Lshortfile)
		lvl = slog.LevelDebug
	case "warn", "error":
		log.SetFlags(log.Ltime)
		lvl = slog.LevelWarn
	}
	slog.SetLogLoggerLevel(lvl)
	return slog.Default()
}
