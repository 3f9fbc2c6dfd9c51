// Package config loads the YAML robot configuration used by host
// programs: which IO backend to drive, how fast to tick the scheduler,
// where to log, and the named channel map wiring code to board pins.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// IO backends.
const (
	BackendSim    = "sim"
	BackendSerial = "serial"
)

// Channel kinds for the named channel map.
const (
	KindInput   = "input"
	KindOutput  = "output"
	KindPWM     = "pwm"
	KindAnalog  = "analog"
	KindCounter = "counter"
)

// Config is the root of the robot configuration file.
type Config struct {
	Robot    string                   `yaml:"robot"`
	PeriodMs int                      `yaml:"periodMs"`
	IO       IOConfig                 `yaml:"io"`
	Logging  LoggingConfig            `yaml:"logging"`
	Mirror   MirrorConfig             `yaml:"mirror"`
	Channels map[string]ChannelConfig `yaml:"channels"`
}

// IOConfig selects the hardware backend.
type IOConfig struct {
	Backend string `yaml:"backend"`
	Device  string `yaml:"device"`
	Baud    int    `yaml:"baud"`
}

// LoggingConfig shapes the process logger. An empty File logs to
// stderr; a path switches to a rotating file.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
}

// MirrorConfig shapes the MQTT dashboard mirror.
type MirrorConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Broker        string `yaml:"broker"`
	Prefix        string `yaml:"prefix"`
	QoS           int    `yaml:"qos"`
	MinIntervalMs int    `yaml:"minIntervalMs"`
}

// ChannelConfig names one board channel and what it is wired as.
type ChannelConfig struct {
	Channel int    `yaml:"channel"`
	Kind    string `yaml:"kind"`
}

// Period returns the scheduler loop period.
func (c *Config) Period() time.Duration {
	return time.Duration(c.PeriodMs) * time.Millisecond
}

// MinInterval returns the mirror publish coalescing window.
func (m *MirrorConfig) MinInterval() time.Duration {
	return time.Duration(m.MinIntervalMs) * time.Millisecond
}

// Default returns a configuration with every default applied: a
// simulated backend ticking at 20 ms, text logging to stderr, mirror
// disabled.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads and parses the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data, fills defaults and validates.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills in missing values with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Robot == "" {
		cfg.Robot = "rover"
	}
	if cfg.PeriodMs == 0 {
		cfg.PeriodMs = 20
	}
	if cfg.IO.Backend == "" {
		cfg.IO.Backend = BackendSim
	}
	if cfg.IO.Baud == 0 {
		cfg.IO.Baud = 115200
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.MaxSizeMB == 0 {
		cfg.Logging.MaxSizeMB = 10
	}
	if cfg.Logging.MaxBackups == 0 {
		cfg.Logging.MaxBackups = 3
	}
	if cfg.Mirror.Broker == "" {
		cfg.Mirror.Broker = "tcp://127.0.0.1:1883"
	}
	if cfg.Mirror.Prefix == "" {
		cfg.Mirror.Prefix = "rover"
	}
	if cfg.Mirror.MinIntervalMs == 0 {
		cfg.Mirror.MinIntervalMs = 250
	}
}

func validate(cfg *Config) error {
	if cfg.PeriodMs < 1 || cfg.PeriodMs > 1000 {
		return fmt.Errorf("loop period %dms outside 1..1000", cfg.PeriodMs)
	}
	switch cfg.IO.Backend {
	case BackendSim:
	case BackendSerial:
		if cfg.IO.Device == "" {
			return fmt.Errorf("serial backend needs a device")
		}
	default:
		return fmt.Errorf("unknown io backend %q", cfg.IO.Backend)
	}
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", cfg.Logging.Format)
	}
	if cfg.Mirror.QoS < 0 || cfg.Mirror.QoS > 2 {
		return fmt.Errorf("mirror qos %d outside 0..2", cfg.Mirror.QoS)
	}
	for name, ch := range cfg.Channels {
		switch ch.Kind {
		case KindInput, KindOutput, KindPWM, KindAnalog, KindCounter:
		default:
			return fmt.Errorf("channel %s: unknown kind %q", name, ch.Kind)
		}
		if ch.Channel < 0 || ch.Channel > 255 {
			return fmt.Errorf("channel %s: number %d outside 0..255", name, ch.Channel)
		}
	}
	return nil
}
