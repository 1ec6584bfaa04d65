package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dpcontrol/dpcontrol-go/pkg/connection"
	"github.com/dpcontrol/dpcontrol-go/pkg/device"
	"github.com/dpcontrol/dpcontrol-go/pkg/profile"
	"github.com/dpcontrol/dpcontrol-go/pkg/transport"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DPCONTROL_"

// Config is the root configuration.
type Config struct {
	Devices []DeviceConfig `yaml:"devices"`
	Gateway GatewayConfig  `yaml:"gateway"`
	MQTT    MQTTConfig     `yaml:"mqtt"`
	Log     LogConfig      `yaml:"log"`
}

// DeviceConfig describes one controlled device.
type DeviceConfig struct {
	ID   string `yaml:"id"`
	Key  string `yaml:"key"`
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`

	// Address pins the gateway address and skips mDNS discovery.
	Address string `yaml:"address"`

	WaitFirstState bool        `yaml:"wait_first_state"`
	Retry          RetryConfig `yaml:"retry"`
	Debug          bool        `yaml:"debug"`
}

// RetryConfig overrides the discovery retry policy. Zero values keep the
// defaults.
type RetryConfig struct {
	MaxTrials    int           `yaml:"max_trials"`
	BackoffDelay time.Duration `yaml:"backoff_delay"`
	Multiplier   float64       `yaml:"multiplier"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// GatewayConfig holds transport settings shared by all devices.
type GatewayConfig struct {
	BrowseTimeout time.Duration   `yaml:"browse_timeout"`
	Interface     string          `yaml:"interface"`
	SetTimeout    time.Duration   `yaml:"set_timeout"`
	KeepAlive     KeepAliveConfig `yaml:"keepalive"`
}

// KeepAliveConfig tunes session pings.
type KeepAliveConfig struct {
	Disabled  bool          `yaml:"disabled"`
	Interval  time.Duration `yaml:"interval"`
	Timeout   time.Duration `yaml:"timeout"`
	MaxMissed int           `yaml:"max_missed"`
}

// MQTTConfig configures the state bridge. An empty Broker disables it.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         int    `yaml:"qos"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`

	// SessionDir, when set, receives one .dplog file per run.
	SessionDir string `yaml:"session_dir"`
}

// Default returns the built-in defaults.
func Default() *Config {
	ka := transport.DefaultKeepAliveConfig()
	return &Config{
		Gateway: GatewayConfig{
			BrowseTimeout: transport.DefaultBrowseTimeout,
			SetTimeout:    transport.DefaultSetTimeout,
			KeepAlive: KeepAliveConfig{
				Interval:  ka.PingInterval,
				Timeout:   ka.PongTimeout,
				MaxMissed: ka.MaxMissedPongs,
			},
		},
		MQTT: MQTTConfig{
			ClientID:    "dpcontrol",
			TopicPrefix: "dpcontrol",
			QoS:         1,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path, applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse is Load for an in-memory document.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies DPCONTROL_* variables.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv(EnvPrefix + "MQTT_BROKER"); v != "" {
		cfg.MQTT.Broker = v
	}
	if v := os.Getenv(EnvPrefix + "MQTT_USERNAME"); v != "" {
		cfg.MQTT.Username = v
	}
	if v := os.Getenv(EnvPrefix + "MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}
	if v := os.Getenv(EnvPrefix + "MQTT_TOPIC_PREFIX"); v != "" {
		cfg.MQTT.TopicPrefix = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv(EnvPrefix + "GATEWAY_BROWSE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sGATEWAY_BROWSE_TIMEOUT: %w", EnvPrefix, err)
		}
		cfg.Gateway.BrowseTimeout = d
	}

	// Per-device keys: DPCONTROL_DEVICE_<N>_KEY, N counted from 0.
	for i := range cfg.Devices {
		if v := os.Getenv(EnvPrefix + "DEVICE_" + strconv.Itoa(i) + "_KEY"); v != "" {
			cfg.Devices[i].Key = v
		}
	}
	return nil
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	names := make(map[string]bool)
	for i, d := range c.Devices {
		where := fmt.Sprintf("devices[%d]", i)
		if d.ID == "" {
			errs = append(errs, where+".id is required")
		}
		if d.Key == "" {
			errs = append(errs, where+".key is required")
		}
		if !slices.Contains(profile.Kinds(), d.Kind) {
			errs = append(errs, fmt.Sprintf("%s.kind must be one of %s", where, strings.Join(profile.Kinds(), ", ")))
		}
		if d.Retry.MaxTrials < 0 {
			errs = append(errs, where+".retry.max_trials must not be negative")
		}
		name := d.DisplayName()
		if names[name] {
			errs = append(errs, fmt.Sprintf("%s.name %q is not unique", where, name))
		}
		names[name] = true
	}

	if c.Gateway.BrowseTimeout < 0 {
		errs = append(errs, "gateway.browse_timeout must not be negative")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Broker != "" && c.MQTT.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix is required when a broker is set")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "log.level must be debug, info, warn or error")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Device returns the device with the given name or ID.
func (c *Config) Device(nameOrID string) (DeviceConfig, bool) {
	for _, d := range c.Devices {
		if d.Name == nameOrID || d.ID == nameOrID {
			return d, true
		}
	}
	return DeviceConfig{}, false
}

// DisplayName returns Name, or the ID when no name is set.
func (d DeviceConfig) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}

// Identity returns the device identity.
func (d DeviceConfig) Identity() device.Identity {
	return device.Identity{ID: d.ID, Key: d.Key}
}

// RetryPolicy returns the default policy with the configured overrides.
func (d DeviceConfig) RetryPolicy() connection.RetryPolicy {
	p := connection.DefaultRetryPolicy()
	if d.Retry.MaxTrials > 0 {
		p.MaxTrials = d.Retry.MaxTrials
	}
	if d.Retry.BackoffDelay > 0 {
		p.BackoffDelay = d.Retry.BackoffDelay
	}
	if d.Retry.Multiplier > 0 {
		p.Multiplier = d.Retry.Multiplier
	}
	if d.Retry.MaxDelay > 0 {
		p.MaxDelay = d.Retry.MaxDelay
	}
	return p
}

// Options returns the controller options for the device.
func (d DeviceConfig) Options() []device.Option {
	return []device.Option{
		device.WithRetryPolicy(d.RetryPolicy()),
		device.WithWaitFirstState(d.WaitFirstState),
		device.WithDebug(d.Debug),
		device.WithDebugLabel(d.DisplayName()),
	}
}

// TransportConfig builds the gateway transport configuration for d.
// resolver is used when d has no static address.
func (c *Config) TransportConfig(d DeviceConfig, resolver transport.Resolver) transport.GatewayConfig {
	tc := transport.DefaultGatewayConfig(d.ID, d.Key)
	tc.Address = d.Address
	if d.Address == "" {
		tc.Resolver = resolver
	}
	if c.Gateway.BrowseTimeout > 0 {
		tc.BrowseTimeout = c.Gateway.BrowseTimeout
	}
	if c.Gateway.SetTimeout > 0 {
		tc.SetTimeout = c.Gateway.SetTimeout
	}

	ka := c.Gateway.KeepAlive
	tc.Conn.DisableKeepAlive = ka.Disabled
	if ka.Interval > 0 {
		tc.Conn.KeepAlive.PingInterval = ka.Interval
	}
	if ka.Timeout > 0 {
		tc.Conn.KeepAlive.PongTimeout = ka.Timeout
	}
	if ka.MaxMissed > 0 {
		tc.Conn.KeepAlive.MaxMissedPongs = ka.MaxMissed
	}
	return tc
}
