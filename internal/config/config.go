// Package config provides Viper-based configuration loading for the volleyball server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cory-johannsen/volleyball/internal/protocol"
)

// UDPConfig holds the game datagram endpoint settings.
type UDPConfig struct {
	// Host is the bind address for the UDP socket.
	Host string `mapstructure:"host"`
	// Port is the well-known UDP port clients send input to.
	Port int `mapstructure:"port"`
	// WriteTimeout bounds a single outbound datagram write.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the "host:port" bind address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (u UDPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", u.Host, u.Port)
}

// ControlConfig holds the TCP control channel settings.
type ControlConfig struct {
	// Host is the bind address for the TCP listener.
	Host string `mapstructure:"host"`
	// Port is the well-known TCP port for the id handshake and keepalives.
	Port int `mapstructure:"port"`
	// PingCheckInterval is how often each connection checks its last ping.
	PingCheckInterval time.Duration `mapstructure:"ping_check_interval"`
	// PingTimeout is the silence after which a connection is torn down.
	PingTimeout time.Duration `mapstructure:"ping_timeout"`
	// WriteTimeout bounds a single write to a control connection.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// TickInterval is the period of simulation tick requests sent to the coordinator.
	TickInterval time.Duration `mapstructure:"tick_interval"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (c ControlConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MatchConfig holds rally and snapshot rules.
type MatchConfig struct {
	// PointLimit is the score at which a session is over.
	PointLimit int `mapstructure:"point_limit"`
	// ResetDelayTicks is the number of fixed ticks between a point and the position reset.
	ResetDelayTicks int `mapstructure:"reset_delay_ticks"`
	// GravityDelayTicks is the number of fixed ticks between the reset and the serve.
	GravityDelayTicks int `mapstructure:"gravity_delay_ticks"`
	// LivenessWindow gates snapshot delivery on recent pings; zero disables gating.
	LivenessWindow time.Duration `mapstructure:"liveness_window"`
	// SnapshotRevision selects the outbound snapshot layout.
	SnapshotRevision string `mapstructure:"snapshot_revision"`
}

// QueueConfig holds the capacities of the inter-component queues.
type QueueConfig struct {
	CoordinatorDepth int `mapstructure:"coordinator_depth"`
	SenderDepth      int `mapstructure:"sender_depth"`
	MailboxDepth     int `mapstructure:"mailbox_depth"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	UDP     UDPConfig     `mapstructure:"udp"`
	Control ControlConfig `mapstructure:"control"`
	Match   MatchConfig   `mapstructure:"match"`
	Queues  QueueConfig   `mapstructure:"queues"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	for _, check := range []error{
		validateUDP(c.UDP),
		validateControl(c.Control),
		validateMatch(c.Match),
		validateQueues(c.Queues),
		validateLogging(c.Logging),
	} {
		if check != nil {
			errs = append(errs, check.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validatePort(key string, port int) string {
	if port < 1 || port > 65535 {
		return fmt.Sprintf("%s must be 1-65535, got %d", key, port)
	}
	return ""
}

func validateUDP(u UDPConfig) error {
	var errs []string
	if msg := validatePort("udp.port", u.Port); msg != "" {
		errs = append(errs, msg)
	}
	if u.WriteTimeout < 0 {
		errs = append(errs, "udp.write_timeout must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateControl(c ControlConfig) error {
	var errs []string
	if msg := validatePort("control.port", c.Port); msg != "" {
		errs = append(errs, msg)
	}
	if c.PingCheckInterval <= 0 {
		errs = append(errs, "control.ping_check_interval must be positive")
	}
	if c.PingTimeout <= 0 {
		errs = append(errs, "control.ping_timeout must be positive")
	}
	if c.WriteTimeout < 0 {
		errs = append(errs, "control.write_timeout must not be negative")
	}
	if c.TickInterval <= 0 {
		errs = append(errs, "control.tick_interval must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateMatch(m MatchConfig) error {
	var errs []string
	if m.PointLimit < 1 {
		errs = append(errs, fmt.Sprintf("match.point_limit must be >= 1, got %d", m.PointLimit))
	}
	if m.ResetDelayTicks < 0 {
		errs = append(errs, fmt.Sprintf("match.reset_delay_ticks must be >= 0, got %d", m.ResetDelayTicks))
	}
	if m.GravityDelayTicks < 0 {
		errs = append(errs, fmt.Sprintf("match.gravity_delay_ticks must be >= 0, got %d", m.GravityDelayTicks))
	}
	if m.LivenessWindow < 0 {
		errs = append(errs, "match.liveness_window must not be negative")
	}
	if _, err := protocol.ParseRevision(m.SnapshotRevision); err != nil {
		errs = append(errs, fmt.Sprintf("match.snapshot_revision: %v", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateQueues(q QueueConfig) error {
	var errs []string
	if q.CoordinatorDepth < 1 {
		errs = append(errs, fmt.Sprintf("queues.coordinator_depth must be >= 1, got %d", q.CoordinatorDepth))
	}
	if q.SenderDepth < 1 {
		errs = append(errs, fmt.Sprintf("queues.sender_depth must be >= 1, got %d", q.SenderDepth))
	}
	if q.MailboxDepth < 1 {
		errs = append(errs, fmt.Sprintf("queues.mailbox_depth must be >= 1, got %d", q.MailboxDepth))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result. An empty path loads defaults and
// environment overrides only.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()

	// Environment variable overrides with VOLLEY_ prefix
	v.SetEnvPrefix("VOLLEY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the built-in configuration without reading any file.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := LoadFromViper(v)
	if err != nil {
		panic("config.Default: built-in defaults are invalid: " + err.Error())
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("udp.host", "0.0.0.0")
	v.SetDefault("udp.port", 12542)
	v.SetDefault("udp.write_timeout", "1s")

	v.SetDefault("control.host", "0.0.0.0")
	v.SetDefault("control.port", 12541)
	v.SetDefault("control.ping_check_interval", "10s")
	v.SetDefault("control.ping_timeout", "30s")
	v.SetDefault("control.write_timeout", "5s")
	v.SetDefault("control.tick_interval", "10ms")

	v.SetDefault("match.point_limit", 15)
	v.SetDefault("match.reset_delay_ticks", 60)
	v.SetDefault("match.gravity_delay_ticks", 60)
	v.SetDefault("match.liveness_window", "0s")
	v.SetDefault("match.snapshot_revision", protocol.RevisionVelocities.String())

	v.SetDefault("queues.coordinator_depth", 4096)
	v.SetDefault("queues.sender_depth", 4096)
	v.SetDefault("queues.mailbox_depth", 16)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
