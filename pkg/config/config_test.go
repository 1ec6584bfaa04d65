package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpcontrol/dpcontrol-go/pkg/connection"
	"github.com/dpcontrol/dpcontrol-go/pkg/transport"
)

const validConfig = `
devices:
  - id: bf0123456789abcdef
    key: 0123456789abcdef
    name: hall
    kind: light
    wait_first_state: true
    retry:
      max_trials: 2
      backoff_delay: 250ms
  - id: bf0000000000000001
    key: fedcba9876543210
    kind: plug
    address: 192.168.1.20:6668
gateway:
  browse_timeout: 3s
  keepalive:
    interval: 10s
mqtt:
  broker: tcp://localhost:1883
log:
  level: debug
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dpcontrol.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	require.Len(t, cfg.Devices, 2)
	hall := cfg.Devices[0]
	assert.Equal(t, "hall", hall.DisplayName())
	assert.Equal(t, "light", hall.Kind)
	assert.True(t, hall.WaitFirstState)
	assert.Equal(t, 250*time.Millisecond, hall.Retry.BackoffDelay)
	assert.Equal(t, "bf0000000000000001", cfg.Devices[1].DisplayName())

	assert.Equal(t, 3*time.Second, cfg.Gateway.BrowseTimeout)
	assert.Equal(t, "dpcontrol", cfg.MQTT.TopicPrefix, "default kept")
	assert.Equal(t, 1, cfg.MQTT.QoS)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/dpcontrol.yaml")
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "devices: [id: {"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "missing key",
			content: "devices:\n  - id: a\n    kind: plug\n",
			want:    "devices[0].key is required",
		},
		{
			name:    "unknown kind",
			content: "devices:\n  - id: a\n    key: k\n    kind: toaster\n",
			want:    "devices[0].kind must be one of",
		},
		{
			name:    "duplicate name",
			content: "devices:\n  - id: a\n    key: k\n    kind: plug\n    name: x\n  - id: b\n    key: k\n    kind: plug\n    name: x\n",
			want:    `devices[1].name "x" is not unique`,
		},
		{
			name:    "bad qos",
			content: "mqtt:\n  qos: 3\n",
			want:    "mqtt.qos",
		},
		{
			name:    "bad level",
			content: "log:\n  level: chatty\n",
			want:    "log.level",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DPCONTROL_MQTT_BROKER", "tcp://broker:1883")
	t.Setenv("DPCONTROL_LOG_LEVEL", "warn")
	t.Setenv("DPCONTROL_DEVICE_0_KEY", "from-env")
	t.Setenv("DPCONTROL_GATEWAY_BROWSE_TIMEOUT", "9s")

	cfg, err := Parse([]byte("devices:\n  - id: a\n    kind: switch\n"))
	require.NoError(t, err)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Broker)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "from-env", cfg.Devices[0].Key)
	assert.Equal(t, 9*time.Second, cfg.Gateway.BrowseTimeout)

	t.Setenv("DPCONTROL_GATEWAY_BROWSE_TIMEOUT", "soon")
	_, err = Parse([]byte("{}"))
	assert.Error(t, err)
}

func TestDeviceHelpers(t *testing.T) {
	cfg, err := Parse([]byte(validConfig))
	require.NoError(t, err)

	hall, ok := cfg.Device("hall")
	require.True(t, ok)
	_, ok = cfg.Device("bf0000000000000001")
	assert.True(t, ok)
	_, ok = cfg.Device("attic")
	assert.False(t, ok)

	p := hall.RetryPolicy()
	assert.Equal(t, 2, p.MaxTrials)
	assert.Equal(t, 250*time.Millisecond, p.BackoffDelay)
	assert.Equal(t, connection.DefaultRetryPolicy().MaxDelay, p.MaxDelay)
	assert.NotEmpty(t, hall.Options())

	tc := cfg.TransportConfig(hall, nil)
	assert.Empty(t, tc.Address)
	assert.Equal(t, 3*time.Second, tc.BrowseTimeout)
	assert.Equal(t, 10*time.Second, tc.Conn.KeepAlive.PingInterval)
	assert.Equal(t, transport.DefaultSetTimeout, tc.SetTimeout)

	tc = cfg.TransportConfig(cfg.Devices[1], nil)
	assert.Equal(t, "192.168.1.20:6668", tc.Address)
}
