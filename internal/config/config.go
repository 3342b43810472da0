// Package config loads and persists user-level settings for the sequencer
// daemon: MIDI output routing, scheduler tuning knobs, and the default
// sample pack to load at startup.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// OutputConfig defines a named MIDI output the player can send to.
type OutputConfig struct {
	PortName    string `json:"portName"`
	Channel     int    `json:"channel,omitempty"`
	AutoConnect bool   `json:"autoConnect"`
}

// SchedulerConfig exposes the tick-rate / lookahead tuning from spec.md §4.1.
// Values are in milliseconds; Load clamps them back to sane defaults if a
// hand-edited config violates the §5 jitter guarantee (interval <= 50% of
// schedule-ahead).
type SchedulerConfig struct {
	LookaheadIntervalMS int `json:"lookaheadIntervalMs,omitempty"`
	ScheduleAheadMS      int `json:"scheduleAheadMs,omitempty"`
}

// UIConfig stores preferences carried across runs.
type UIConfig struct {
	LastBPM int `json:"lastBpm,omitempty"`
}

// Config is the main configuration structure, persisted as JSON.
type Config struct {
	Outputs      []OutputConfig  `json:"outputs,omitempty"`
	Scheduler    SchedulerConfig `json:"scheduler,omitempty"`
	DefaultPack  string          `json:"defaultPack,omitempty"`
	UI           UIConfig        `json:"ui,omitempty"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Outputs: []OutputConfig{
			{PortName: "", Channel: 1, AutoConnect: true},
		},
		Scheduler: SchedulerConfig{
			LookaheadIntervalMS: 25,
			ScheduleAheadMS:      100,
		},
		DefaultPack: "gm",
		UI: UIConfig{
			LastBPM: 120,
		},
	}
}

// normalize enforces the interval <= 50% of schedule-ahead guarantee from
// spec.md §5, falling back to defaults for anything out of range.
func (c *Config) normalize() {
	if c.Scheduler.LookaheadIntervalMS <= 0 {
		c.Scheduler.LookaheadIntervalMS = 25
	}
	if c.Scheduler.ScheduleAheadMS <= 0 {
		c.Scheduler.ScheduleAheadMS = 100
	}
	if c.Scheduler.LookaheadIntervalMS*2 > c.Scheduler.ScheduleAheadMS {
		c.Scheduler.LookaheadIntervalMS = 25
		c.Scheduler.ScheduleAheadMS = 100
	}
	if c.DefaultPack == "" {
		c.DefaultPack = "gm"
	}
}

// ConfigDir returns the config directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "drumseq"), nil
}

// ConfigPath returns the full path to config.json.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.normalize()

	return &cfg, nil
}

// Save writes the config to disk.
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// FindOutput finds an output config by port name.
func (c *Config) FindOutput(portName string) *OutputConfig {
	for i := range c.Outputs {
		if c.Outputs[i].PortName == portName {
			return &c.Outputs[i]
		}
	}
	return nil
}

// AddOutput adds or updates an output config.
func (c *Config) AddOutput(out OutputConfig) {
	for i := range c.Outputs {
		if c.Outputs[i].PortName == out.PortName {
			c.Outputs[i] = out
			return
		}
	}
	c.Outputs = append(c.Outputs, out)
}

// AutoConnectOutputs returns outputs with autoConnect enabled.
func (c *Config) AutoConnectOutputs() []OutputConfig {
	var result []OutputConfig
	for _, out := range c.Outputs {
		if out.AutoConnect {
			result = append(result, out)
		}
	}
	return result
}
