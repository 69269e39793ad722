// Package config loads engine configuration from a YAML file.
//
// Command-line tools layer flags on top: flags override file values, file
// values override defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration errors.
var (
	ErrBadPort      = errors.New("port out of range")
	ErrBadFrequency = errors.New("frequency must be positive")
	ErrEmptyDataref = errors.New("subscription dataref is empty")
)

// Defaults for fields left zero in the file.
const (
	DefaultHost             = "127.0.0.1"
	DefaultPort             = 49000
	DefaultQueryTimeout     = 2 * time.Second
	DefaultQueryFrequencyHz = 10
)

// Subscription names one dataref to stream from startup.
type Subscription struct {
	Dataref     string `yaml:"dataref"`
	FrequencyHz uint32 `yaml:"frequency_hz"`
}

// Config is the engine configuration.
type Config struct {
	// Host and Port locate the simulator's UDP endpoint.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// QueryTimeout bounds synchronous dataref and position queries.
	QueryTimeout time.Duration `yaml:"query_timeout"`

	// QueryFrequencyHz is the delivery rate requested for one-shot queries.
	QueryFrequencyHz int32 `yaml:"query_frequency_hz"`

	// FailFast stops the receive loop on the first framing error instead
	// of skipping the malformed datagram.
	FailFast bool `yaml:"fail_fast"`

	// LogFile enables the protocol event trace when non-empty.
	LogFile string `yaml:"log_file,omitempty"`

	// Subscriptions are established right after connecting.
	Subscriptions []Subscription `yaml:"subscriptions,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Host:             DefaultHost,
		Port:             DefaultPort,
		QueryTimeout:     DefaultQueryTimeout,
		QueryFrequencyHz: DefaultQueryFrequencyHz,
	}
}

// Load reads a YAML configuration file, fills unset fields with defaults and
// validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration bytes, fills unset fields with defaults
// and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = DefaultQueryTimeout
	}
	if c.QueryFrequencyHz <= 0 {
		c.QueryFrequencyHz = DefaultQueryFrequencyHz
	}
}

// Validate checks the configuration for values the engine would reject.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrBadPort, c.Port)
	}
	if c.QueryFrequencyHz <= 0 {
		return fmt.Errorf("%w: query_frequency_hz %d", ErrBadFrequency, c.QueryFrequencyHz)
	}
	for i, sub := range c.Subscriptions {
		if sub.Dataref == "" {
			return fmt.Errorf("%w: subscription %d", ErrEmptyDataref, i)
		}
		if sub.FrequencyHz == 0 {
			return fmt.Errorf("%w: subscription %q frequency_hz 0", ErrBadFrequency, sub.Dataref)
		}
	}
	return nil
}
