package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "tcpin:0.0.0.0:4560", cfg.Bridge.Endpoint)
	assert.Equal(t, 4, cfg.Bridge.Thrusters)
	assert.True(t, cfg.Bridge.Lockstep)
	assert.Equal(t, 250.0, cfg.Bridge.UpdateRate)
	assert.Equal(t, 255, cfg.Bridge.SystemID)
	assert.Equal(t, 0, cfg.Bridge.ComponentID)
	assert.Equal(t, time.Second, cfg.Bridge.HeartbeatInterval)
	assert.Zero(t, cfg.Bridge.HandshakeTimeout)
	assert.Zero(t, cfg.Bridge.LockstepTimeout)
	assert.True(t, cfg.Vehicle.Enabled)
	assert.False(t, cfg.MCP)
	assert.False(t, cfg.Debug)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	tests := []struct {
		name   string
		envKey string
		envVal string
		check  func(t *testing.T, cfg Config)
	}{
		{
			name:   "MAVBRIDGE_ENDPOINT",
			envKey: "MAVBRIDGE_ENDPOINT",
			envVal: "udpin:0.0.0.0:14560",
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, "udpin:0.0.0.0:14560", cfg.Bridge.Endpoint)
			},
		},
		{
			name:   "MAVBRIDGE_THRUSTERS valid",
			envKey: "MAVBRIDGE_THRUSTERS",
			envVal: "6",
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, 6, cfg.Bridge.Thrusters)
			},
		},
		{
			name:   "MAVBRIDGE_THRUSTERS invalid falls back to default",
			envKey: "MAVBRIDGE_THRUSTERS",
			envVal: "six",
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, 4, cfg.Bridge.Thrusters)
			},
		},
		{
			name:   "MAVBRIDGE_LOCKSTEP false",
			envKey: "MAVBRIDGE_LOCKSTEP",
			envVal: "false",
			check: func(t *testing.T, cfg Config) {
				assert.False(t, cfg.Bridge.Lockstep)
			},
		},
		{
			name:   "MAVBRIDGE_LOCKSTEP invalid falls back to default",
			envKey: "MAVBRIDGE_LOCKSTEP",
			envVal: "maybe",
			check: func(t *testing.T, cfg Config) {
				assert.True(t, cfg.Bridge.Lockstep)
			},
		},
		{
			name:   "MAVBRIDGE_UPDATE_RATE valid",
			envKey: "MAVBRIDGE_UPDATE_RATE",
			envVal: "400",
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, 400.0, cfg.Bridge.UpdateRate)
			},
		},
		{
			name:   "MAVBRIDGE_SYSTEM_ID",
			envKey: "MAVBRIDGE_SYSTEM_ID",
			envVal: "42",
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, 42, cfg.Bridge.SystemID)
			},
		},
		{
			name:   "MAVBRIDGE_HANDSHAKE_TIMEOUT valid",
			envKey: "MAVBRIDGE_HANDSHAKE_TIMEOUT",
			envVal: "30s",
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, 30*time.Second, cfg.Bridge.HandshakeTimeout)
			},
		},
		{
			name:   "MAVBRIDGE_LOCKSTEP_TIMEOUT invalid falls back to default",
			envKey: "MAVBRIDGE_LOCKSTEP_TIMEOUT",
			envVal: "soon",
			check: func(t *testing.T, cfg Config) {
				assert.Zero(t, cfg.Bridge.LockstepTimeout)
			},
		},
		{
			name:   "MAVBRIDGE_HOME_LAT",
			envKey: "MAVBRIDGE_HOME_LAT",
			envVal: "-33.5",
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, -33.5, cfg.Vehicle.HomeLatitude)
			},
		},
		{
			name:   "MAVBRIDGE_MCP",
			envKey: "MAVBRIDGE_MCP",
			envVal: "1",
			check: func(t *testing.T, cfg Config) {
				assert.True(t, cfg.MCP)
			},
		},
		{
			name:   "MAVBRIDGE_DEBUG",
			envKey: "MAVBRIDGE_DEBUG",
			envVal: "true",
			check: func(t *testing.T, cfg Config) {
				assert.True(t, cfg.Debug)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.envKey, tt.envVal)
			cfg, err := Load()
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mavbridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
bridge:
  endpoint: serial:/dev/ttyACM0:921600
  thrusters: 6
  lockstep: false
  handshake_timeout: 5s
mixer:
  scaling: [1000, 1000, 1000, 1000, 1000, 1000]
  zero_position_armed: [100, 100, 100, 100, 100, 100]
vehicle:
  home_latitude: 1.5
mcp: true
`)
	t.Setenv("MAVBRIDGE_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "serial:/dev/ttyACM0:921600", cfg.Bridge.Endpoint)
	assert.Equal(t, 6, cfg.Bridge.Thrusters)
	assert.False(t, cfg.Bridge.Lockstep)
	assert.Equal(t, 5*time.Second, cfg.Bridge.HandshakeTimeout)
	assert.Equal(t, 250.0, cfg.Bridge.UpdateRate, "unset keys keep defaults")
	assert.Len(t, cfg.Mixer.Scaling, 6)
	assert.Equal(t, 100.0, cfg.Mixer.ZeroPositionArmed[5])
	assert.Equal(t, 1.5, cfg.Vehicle.HomeLatitude)
	assert.Equal(t, 8.545594, cfg.Vehicle.HomeLongitude)
	assert.True(t, cfg.MCP)
	assert.NoError(t, cfg.Validate())
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "bridge:\n  thrusters: 6\n  endpoint: udpin:0.0.0.0:14560\n")
	t.Setenv("MAVBRIDGE_CONFIG", path)
	t.Setenv("MAVBRIDGE_THRUSTERS", "8")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Bridge.Thrusters)
	assert.Equal(t, "udpin:0.0.0.0:14560", cfg.Bridge.Endpoint)
}

func TestLoadFileErrors(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		t.Setenv("MAVBRIDGE_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))
		_, err := Load()
		assert.ErrorContains(t, err, "read config")
	})
	t.Run("malformed", func(t *testing.T) {
		t.Setenv("MAVBRIDGE_CONFIG", writeConfig(t, "bridge: [not, a, map"))
		_, err := Load()
		assert.ErrorContains(t, err, "parse config")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad endpoint", func(c *Config) { c.Bridge.Endpoint = "tcp:localhost" }},
		{"no thrusters", func(c *Config) { c.Bridge.Thrusters = 0 }},
		{"too many thrusters", func(c *Config) { c.Bridge.Thrusters = 17 }},
		{"zero rate", func(c *Config) { c.Bridge.UpdateRate = 0 }},
		{"system id zero", func(c *Config) { c.Bridge.SystemID = 0 }},
		{"component id too large", func(c *Config) { c.Bridge.ComponentID = 256 }},
		{"zero heartbeat interval", func(c *Config) { c.Bridge.HeartbeatInterval = 0 }},
		{"negative timeout", func(c *Config) { c.Bridge.HandshakeTimeout = -time.Second }},
		{"latitude out of range", func(c *Config) { c.Vehicle.HomeLatitude = 91 }},
		{"longitude out of range", func(c *Config) { c.Vehicle.HomeLongitude = -181 }},
		{"mixer longer than thrusters", func(c *Config) { c.Mixer.Offset = []float64{0, 0, 0, 0, 0} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}
