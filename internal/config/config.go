package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eytandecker/mavbridge/internal/actuator"
	"github.com/eytandecker/mavbridge/internal/transport"
)

// ErrInvalid is returned by Validate for unusable settings.
var ErrInvalid = errors.New("config: invalid value")

// maxThrusters is the number of control channels in HIL_ACTUATOR_CONTROLS.
const maxThrusters = 16

// Config holds all application configuration.
type Config struct {
	Bridge  BridgeConfig         `yaml:"bridge"`
	Mixer   actuator.LinearMixer `yaml:"mixer"`
	Vehicle VehicleConfig        `yaml:"vehicle"`
	MCP     bool                 `yaml:"mcp"`
	Debug   bool                 `yaml:"debug"`
}

// BridgeConfig holds MAVLink link and scheduler settings.
type BridgeConfig struct {
	Endpoint          string        `yaml:"endpoint"`
	Thrusters         int           `yaml:"thrusters"`
	Lockstep          bool          `yaml:"lockstep"`
	UpdateRate        float64       `yaml:"update_rate"`
	SystemID          int           `yaml:"system_id"`
	ComponentID       int           `yaml:"component_id"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
	LockstepTimeout   time.Duration `yaml:"lockstep_timeout"`
}

// VehicleConfig holds settings for the built-in stationary vehicle.
type VehicleConfig struct {
	Enabled       bool    `yaml:"enabled"`
	HomeLatitude  float64 `yaml:"home_latitude"`
	HomeLongitude float64 `yaml:"home_longitude"`
	HomeAltitude  float64 `yaml:"home_altitude"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Bridge: BridgeConfig{
			Endpoint:          "tcpin:0.0.0.0:4560",
			Thrusters:         4,
			Lockstep:          true,
			UpdateRate:        250,
			SystemID:          255,
			ComponentID:       0,
			HeartbeatInterval: time.Second,
		},
		Vehicle: VehicleConfig{
			Enabled:       true,
			HomeLatitude:  47.397742,
			HomeLongitude: 8.545594,
			HomeAltitude:  488,
		},
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// MAVBRIDGE_CONFIG if set, then environment variables.
func Load() (Config, error) {
	cfg := Default()
	if path := os.Getenv("MAVBRIDGE_CONFIG"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	b := &cfg.Bridge
	b.Endpoint = getEnvString("MAVBRIDGE_ENDPOINT", b.Endpoint)
	b.Thrusters = getEnvInt("MAVBRIDGE_THRUSTERS", b.Thrusters)
	b.Lockstep = getEnvBool("MAVBRIDGE_LOCKSTEP", b.Lockstep)
	b.UpdateRate = getEnvFloat("MAVBRIDGE_UPDATE_RATE", b.UpdateRate)
	b.SystemID = getEnvInt("MAVBRIDGE_SYSTEM_ID", b.SystemID)
	b.ComponentID = getEnvInt("MAVBRIDGE_COMPONENT_ID", b.ComponentID)
	b.HeartbeatInterval = getEnvDuration("MAVBRIDGE_HEARTBEAT_INTERVAL", b.HeartbeatInterval)
	b.HandshakeTimeout = getEnvDuration("MAVBRIDGE_HANDSHAKE_TIMEOUT", b.HandshakeTimeout)
	b.LockstepTimeout = getEnvDuration("MAVBRIDGE_LOCKSTEP_TIMEOUT", b.LockstepTimeout)

	v := &cfg.Vehicle
	v.Enabled = getEnvBool("MAVBRIDGE_VEHICLE", v.Enabled)
	v.HomeLatitude = getEnvFloat("MAVBRIDGE_HOME_LAT", v.HomeLatitude)
	v.HomeLongitude = getEnvFloat("MAVBRIDGE_HOME_LON", v.HomeLongitude)
	v.HomeAltitude = getEnvFloat("MAVBRIDGE_HOME_ALT", v.HomeAltitude)

	cfg.MCP = getEnvBool("MAVBRIDGE_MCP", cfg.MCP)
	cfg.Debug = getEnvBool("MAVBRIDGE_DEBUG", cfg.Debug)
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	b := c.Bridge
	if _, err := transport.ParseEndpoint(b.Endpoint); err != nil {
		return fmt.Errorf("%w: endpoint: %w", ErrInvalid, err)
	}
	switch {
	case b.Thrusters < 1 || b.Thrusters > maxThrusters:
		return fmt.Errorf("%w: thrusters must be 1..%d, got %d", ErrInvalid, maxThrusters, b.Thrusters)
	case b.UpdateRate <= 0:
		return fmt.Errorf("%w: update rate must be positive, got %g", ErrInvalid, b.UpdateRate)
	case b.SystemID < 1 || b.SystemID > 255:
		return fmt.Errorf("%w: system id must be 1..255, got %d", ErrInvalid, b.SystemID)
	case b.ComponentID < 0 || b.ComponentID > 255:
		return fmt.Errorf("%w: component id must be 0..255, got %d", ErrInvalid, b.ComponentID)
	case b.HeartbeatInterval <= 0:
		return fmt.Errorf("%w: heartbeat interval must be positive, got %s", ErrInvalid, b.HeartbeatInterval)
	case b.HandshakeTimeout < 0 || b.LockstepTimeout < 0:
		return fmt.Errorf("%w: timeouts must not be negative", ErrInvalid)
	case c.Vehicle.HomeLatitude < -90 || c.Vehicle.HomeLatitude > 90:
		return fmt.Errorf("%w: home latitude %g out of range", ErrInvalid, c.Vehicle.HomeLatitude)
	case c.Vehicle.HomeLongitude < -180 || c.Vehicle.HomeLongitude > 180:
		return fmt.Errorf("%w: home longitude %g out of range", ErrInvalid, c.Vehicle.HomeLongitude)
	}
	if err := c.Mixer.Validate(b.Thrusters); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
