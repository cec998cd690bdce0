package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by alco-lock-server and alco-lock-ctl.
type Config struct {
	// HTTPAddress is the listen address of the status page and JSON endpoints.
	HTTPAddress string `yaml:"http_addr"`
	// GRPCAddress is the listen address of the control API. Empty disables it on the server.
	GRPCAddress string `yaml:"grpc_addr"`
	// Timeout bounds network operations and RPC calls.
	Timeout time.Duration `yaml:"timeout"`
	// PollInterval is how often the page refreshes and the monitor samples the sensor.
	PollInterval time.Duration `yaml:"poll_interval"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// Simulation forces the in-memory sensor and relay even when GPIO is available.
	Simulation bool `yaml:"simulation"`
	// StateFile is where the last relay state is kept. Empty disables persistence.
	StateFile string `yaml:"state_file"`
	// Sensor describes the alcohol sensor input line.
	Sensor Sensor `yaml:"sensor"`
	// Relay describes the ignition relay output line.
	Relay Relay `yaml:"relay"`
	// Interlock configures automatic locking on detection.
	Interlock Interlock `yaml:"interlock"`
	// Auth protects state-changing web requests.
	Auth Auth `yaml:"auth"`
	// MQTT configures the optional broker bridge.
	MQTT MQTT `yaml:"mqtt"`
}

// Sensor describes the digital output of the gas sensor.
type Sensor struct {
	// Pin is the BCM number of the input line.
	Pin int `yaml:"pin"`
	// ActiveLow reports detection on a low level instead of a high one.
	ActiveLow bool `yaml:"active_low"`
}

// Relay describes the relay driving the ignition lock.
type Relay struct {
	// Pin is the BCM number of the output line.
	Pin int `yaml:"pin"`
	// ActiveLow energises the relay with a low level.
	ActiveLow bool `yaml:"active_low"`
	// InitialActive is the relay state applied at start-up (true = unlocked).
	InitialActive bool `yaml:"initial_active"`
}

// Interlock locks the relay while alcohol is detected.
type Interlock struct {
	Enabled bool `yaml:"enabled"`
}

// Auth enables HTTP basic auth on /action when Username is set.
type Auth struct {
	Username string `yaml:"username"`
	// PasswordHash is a bcrypt hash, see `alco-lock-server hash-password`.
	PasswordHash string `yaml:"password_hash"`
}

// Enabled reports whether credentials are configured.
func (a Auth) Enabled() bool {
	return a.Username != ""
}

// MQTT configures the broker bridge. An empty BrokerURI disables it.
type MQTT struct {
	BrokerURI   string `yaml:"broker_uri"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	// Discovery publishes Home Assistant discovery documents on connect.
	Discovery bool `yaml:"discovery"`
}

// Enabled reports whether a broker is configured.
func (m MQTT) Enabled() bool {
	return m.BrokerURI != ""
}

const (
	// DefaultConfigFilename is the default settings file.
	DefaultConfigFilename = "alco-lock.yaml"

	// DefaultHTTPAddress is the status page address.
	DefaultHTTPAddress = ":5000"

	// DefaultGRPCAddress is the default control API address.
	DefaultGRPCAddress = ":5051"

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second

	// DefaultPollInterval is the default page refresh and monitor period.
	DefaultPollInterval = time.Second

	// DefaultSensorPin is the BCM pin wired to the sensor's D0 output.
	DefaultSensorPin = 17

	// DefaultRelayPin is the BCM pin wired to the relay input.
	DefaultRelayPin = 27

	// DefaultMQTTPrefix is the topic prefix and client ID base.
	DefaultMQTTPrefix = "alco-lock"

	// DefaultFilePermissions is the permission for files written by the project.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errHTTPAddressRequired is returned when the web listen address is missing.
	errHTTPAddressRequired = errors.New("http address must be provided")
	// errSamePins is returned when sensor and relay share a line.
	errSamePins = errors.New("sensor and relay must use different pins")
	// errNegativePin is returned for pin numbers below zero.
	errNegativePin = errors.New("pin numbers must not be negative")
	// errPasswordHashRequired is returned when auth has a user but no hash.
	errPasswordHashRequired = errors.New("auth password_hash must be set when auth username is set")
)

// Default returns the settings used when no file exists.
func Default() *Config {
	return &Config{
		HTTPAddress:  DefaultHTTPAddress,
		GRPCAddress:  DefaultGRPCAddress,
		Timeout:      DefaultTimeout,
		PollInterval: DefaultPollInterval,
		LogLevel:     "info",
		Sensor: Sensor{
			Pin: DefaultSensorPin,
		},
		Relay: Relay{
			Pin:           DefaultRelayPin,
			InitialActive: true,
		},
		MQTT: MQTT{
			ClientID:    DefaultMQTTPrefix,
			TopicPrefix: DefaultMQTTPrefix,
			Discovery:   true,
		},
	}
}

// Load reads settings from path on top of Default and validates them.
// A missing file is not an error: the defaults are returned.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	cfg := Default()

	contents, err := os.ReadFile(filepath.Clean(path))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(contents, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// Keep defaults.
	default:
		return nil, fmt.Errorf("read settings: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes settings to path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions: the file may hold the MQTT password.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and fills defaults for zero durations.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.HTTPAddress == "" {
		return errHTTPAddressRequired
	}

	if _, err := net.ResolveTCPAddr("tcp", cfg.HTTPAddress); err != nil {
		return fmt.Errorf("invalid http address: %w", err)
	}

	if cfg.GRPCAddress != "" {
		if _, err := net.ResolveTCPAddr("tcp", cfg.GRPCAddress); err != nil {
			return fmt.Errorf("invalid grpc address: %w", err)
		}
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	if cfg.Sensor.Pin < 0 || cfg.Relay.Pin < 0 {
		return errNegativePin
	}

	if cfg.Sensor.Pin == cfg.Relay.Pin {
		return errSamePins
	}

	if cfg.Auth.Enabled() {
		if cfg.Auth.PasswordHash == "" {
			return errPasswordHashRequired
		}

		if _, err := bcrypt.Cost([]byte(cfg.Auth.PasswordHash)); err != nil {
			return fmt.Errorf("invalid auth password_hash: %w", err)
		}
	}

	return validateMQTT(&cfg.MQTT)
}

// validateMQTT checks the broker URI and fills topic defaults.
func validateMQTT(m *MQTT) error {
	if !m.Enabled() {
		return nil
	}

	if _, err := url.ParseRequestURI(m.BrokerURI); err != nil {
		return fmt.Errorf("invalid mqtt broker_uri: %w", err)
	}

	m.TopicPrefix = strings.Trim(m.TopicPrefix, "/")
	if m.TopicPrefix == "" {
		m.TopicPrefix = DefaultMQTTPrefix
	}

	if m.ClientID == "" {
		m.ClientID = DefaultMQTTPrefix
	}

	return nil
}
