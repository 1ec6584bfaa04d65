package mqttbridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/dpcontrol/dpcontrol-go/pkg/connection"
	"github.com/dpcontrol/dpcontrol-go/pkg/profile"
)

// Availability payloads.
const (
	Online  = "online"
	Offline = "offline"
)

// Defaults.
const (
	DefaultTopicPrefix    = "dpcontrol"
	DefaultPublishTimeout = 5 * time.Second
	DefaultSetTimeout     = 10 * time.Second
	connectTimeout        = 10 * time.Second
)

// Errors returned by the bridge.
var (
	ErrDuplicateName = errors.New("device name already registered")
	ErrInvalidName   = errors.New("invalid device name")
)

// Client is the part of the paho client the bridge uses.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Subscribe(topic string, qos byte, callback pahomqtt.MessageHandler) pahomqtt.Token
	Unsubscribe(topics ...string) pahomqtt.Token
}

// Config configures a Bridge.
type Config struct {
	TopicPrefix string
	QoS         byte

	// PublishTimeout bounds the wait for a publish acknowledgement.
	PublishTimeout time.Duration

	// SetTimeout bounds applying one set payload to a device.
	SetTimeout time.Duration

	// Logger receives bridge logs. Nil means silent.
	Logger *slog.Logger
}

// Bridge publishes device state and applies set payloads.
type Bridge struct {
	client Client
	config Config
	logger *slog.Logger

	mu      sync.Mutex
	devices map[string]profile.Device
}

// New creates a bridge on an already connected client.
func New(client Client, config Config) *Bridge {
	if config.TopicPrefix == "" {
		config.TopicPrefix = DefaultTopicPrefix
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = DefaultPublishTimeout
	}
	if config.SetTimeout <= 0 {
		config.SetTimeout = DefaultSetTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Bridge{
		client:  client,
		config:  config,
		logger:  logger.With("component", "mqtt"),
		devices: make(map[string]profile.Device),
	}
}

// Topic returns the topic for a device and leaf ("state", "availability",
// "set").
func (b *Bridge) Topic(name, leaf string) string {
	return b.config.TopicPrefix + "/" + name + "/" + leaf
}

// BridgeTopic is the bridge's own availability topic.
func (b *Bridge) BridgeTopic() string {
	return b.config.TopicPrefix + "/bridge/availability"
}

// Add registers a device under name, subscribes its set topic and publishes
// its current availability and state.
func (b *Bridge) Add(name string, d profile.Device) error {
	if name == "" || strings.ContainsAny(name, "/+#") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	b.mu.Lock()
	if _, ok := b.devices[name]; ok {
		b.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	b.devices[name] = d
	b.mu.Unlock()

	d.OnChange(func() { b.publishState(name, d) })
	d.OnConnectionChange(func(_, newState connection.State) {
		b.publishAvailability(name, newState == connection.StateConnected)
	})

	token := b.client.Subscribe(b.Topic(name, "set"), b.config.QoS, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		b.handleSet(name, d, msg.Payload())
	})
	if err := b.wait(token); err != nil {
		b.mu.Lock()
		delete(b.devices, name)
		b.mu.Unlock()
		return fmt.Errorf("subscribe %s: %w", b.Topic(name, "set"), err)
	}

	b.publishAvailability(name, d.IsConnected())
	if d.IsConnected() {
		b.publishState(name, d)
	}
	b.logger.Info("device bridged", "name", name, "kind", d.Kind())
	return nil
}

// Names returns the registered device names.
func (b *Bridge) Names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.devices))
	for name := range b.devices {
		names = append(names, name)
	}
	return names
}

// Start announces the bridge as online.
func (b *Bridge) Start() {
	b.publish(b.BridgeTopic(), []byte(Online), true)
}

// Stop marks every device and the bridge offline and drops the set
// subscriptions. Device callbacks stay registered but publish nothing
// useful once the client is disconnected.
func (b *Bridge) Stop() {
	b.mu.Lock()
	names := make([]string, 0, len(b.devices))
	for name := range b.devices {
		names = append(names, name)
	}
	b.mu.Unlock()

	topics := make([]string, 0, len(names))
	for _, name := range names {
		b.publishAvailability(name, false)
		topics = append(topics, b.Topic(name, "set"))
	}
	if len(topics) > 0 {
		if err := b.wait(b.client.Unsubscribe(topics...)); err != nil {
			b.logger.Warn("MQTT unsubscribe failed", "err", err)
		}
	}
	b.publish(b.BridgeTopic(), []byte(Offline), true)
}

func (b *Bridge) handleSet(name string, d profile.Device, payload []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), b.config.SetTimeout)
	defer cancel()

	if err := d.ApplyJSON(ctx, payload); err != nil {
		b.logger.Warn("set failed", "name", name, "err", err)
		return
	}
	b.logger.Debug("set applied", "name", name)
}

func (b *Bridge) publishState(name string, d profile.Device) {
	payload, err := d.StateJSON()
	if err != nil {
		b.logger.Warn("encode state", "name", name, "err", err)
		return
	}
	b.publish(b.Topic(name, "state"), payload, true)
}

func (b *Bridge) publishAvailability(name string, online bool) {
	payload := Offline
	if online {
		payload = Online
	}
	b.publish(b.Topic(name, "availability"), []byte(payload), true)
}

func (b *Bridge) publish(topic string, payload []byte, retained bool) {
	token := b.client.Publish(topic, b.config.QoS, retained, payload)
	go func() {
		if err := b.wait(token); err != nil {
			b.logger.Warn("MQTT publish failed", "topic", topic, "err", err)
		}
	}()
}

func (b *Bridge) wait(token pahomqtt.Token) error {
	if !token.WaitTimeout(b.config.PublishTimeout) {
		return errors.New("timeout")
	}
	return token.Error()
}
