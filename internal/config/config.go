// Package config provides YAML-based configuration loading for the
// Beacon daemon. The mesh tunables (dedup window, per-kind hop budgets)
// default to the protocol's stock constants; they exist because radio
// range and device density vary enough between deployments that the
// constants are not universal.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/goodmartian/beacon/internal/ledger"
	"github.com/goodmartian/beacon/internal/mesh"
)

// Config is the top-level Beacon configuration, loaded from config.yaml.
type Config struct {
	DataDir       string     `yaml:"data_dir"`
	Listen        string     `yaml:"listen"`
	Bootstrap     []string   `yaml:"bootstrap"`
	MetricsListen string     `yaml:"metrics_listen"`
	Mesh          MeshConfig `yaml:"mesh"`
}

// MeshConfig holds the relay-protocol tunables.
type MeshConfig struct {
	DedupWindow Duration         `yaml:"dedup_window"`
	HopBudgets  map[string]uint8 `yaml:"hop_budgets"` // kind name -> budget
}

// Duration is a time.Duration that unmarshals from YAML strings like
// "5m" or "90s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("config: duration must be a string like \"5m\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: bad duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) String() string { return time.Duration(d).String() }

// Default returns a Config with all defaults applied and no file loaded.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		home, _ := os.UserHomeDir()
		c.DataDir = home + "/.beacon"
	}
	if c.Listen == "" {
		c.Listen = "0.0.0.0:4780"
	}
	if c.MetricsListen == "" {
		c.MetricsListen = "127.0.0.1:9478"
	}
	if c.Mesh.DedupWindow == 0 {
		c.Mesh.DedupWindow = Duration(ledger.DefaultWindow)
	}
}

func (c *Config) validate() error {
	if c.Mesh.DedupWindow < 0 {
		return fmt.Errorf("config: dedup_window must be positive, got %s", c.Mesh.DedupWindow)
	}
	for name, budget := range c.Mesh.HopBudgets {
		if _, ok := mesh.KindFromString(name); !ok {
			return fmt.Errorf("config: hop_budgets: unknown kind %q", name)
		}
		if budget == 0 {
			return fmt.Errorf("config: hop_budgets: %s: budget must be at least 1", name)
		}
	}
	return nil
}

// DedupWindow returns the dedup expiry window as a time.Duration.
func (c *Config) DedupWindow() time.Duration { return time.Duration(c.Mesh.DedupWindow) }

// HopBudgets resolves the per-kind overrides to mesh kinds. Kinds
// without an override keep their factory default.
func (c *Config) HopBudgets() map[mesh.Kind]uint8 {
	if len(c.Mesh.HopBudgets) == 0 {
		return nil
	}
	out := make(map[mesh.Kind]uint8, len(c.Mesh.HopBudgets))
	for name, budget := range c.Mesh.HopBudgets {
		k, _ := mesh.KindFromString(name)
		out[k] = budget
	}
	return out
}
