// Package policy loads the ledger configuration and exposes it to the application layer.
package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Storage drivers accepted in storage.driver.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// GlobalStateDir returns the default global state directory (~/.config/dao-ledger).
func GlobalStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".config", "dao-ledger")
}

// GlobalStateFile returns the default global state file path.
func GlobalStateFile() string {
	return filepath.Join(GlobalStateDir(), "state.sqlite")
}

// StorageConfig selects the state repository.
type StorageConfig struct {
	Driver string `yaml:"driver"` // sqlite (default), postgres, memory
	DSN    string `yaml:"dsn"`    // postgres connection string; ignored by sqlite and memory
}

// EventsConfig configures where committed ledger events are published.
// Empty fields disable the corresponding sink.
type EventsConfig struct {
	AMQPURL   string `yaml:"amqp_url"`
	AMQPQueue string `yaml:"amqp_queue"`
	RedisAddr string `yaml:"redis_addr"`
	RedisKey  string `yaml:"redis_key"`
}

// Config holds ledger configuration
type Config struct {
	StateFile    string   `yaml:"state_file"`
	LogFile      string   `yaml:"log_file"`
	HTTPPort     int      `yaml:"http_port"`
	EnabledTools []string `yaml:"enabled_tools"`

	Storage StorageConfig `yaml:"storage"`
	Events  EventsConfig  `yaml:"events"`
}

// DefaultConfig returns sensible defaults: sqlite storage, all tools, no HTTP, no event sinks.
func DefaultConfig() *Config {
	return &Config{
		EnabledTools: []string{"*"},
		Storage:      StorageConfig{Driver: DriverSQLite},
		Events: EventsConfig{
			AMQPQueue: "ledger-events",
			RedisKey:  "dao-ledger:tally",
		},
	}
}

// LoadConfig loads configuration from a YAML file on top of DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unknown storage drivers and a postgres driver without a DSN.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "":
		c.Storage.Driver = DriverSQLite
	case DriverSQLite, DriverMemory:
	case DriverPostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage: postgres driver requires dsn")
		}
	default:
		return fmt.Errorf("storage: unknown driver %q", c.Storage.Driver)
	}
	if c.HTTPPort < 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("http_port %d out of range", c.HTTPPort)
	}
	return nil
}

// Policy exposes configuration to the rest of the program.
type Policy struct {
	config *Config
	mu     sync.RWMutex
}

// New creates a policy over cfg.
func New(cfg *Config) *Policy {
	return &Policy{config: cfg}
}

// StateFile returns the configured state file path.
// If unset, defaults to the global state file (~/.config/dao-ledger/state.sqlite).
// Relative paths resolve against the working directory.
func (p *Policy) StateFile() string {
	p.mu.RLock()
	sf := p.config.StateFile
	p.mu.RUnlock()

	if sf == "" {
		return GlobalStateFile()
	}
	if filepath.IsAbs(sf) {
		return sf
	}
	abs, err := filepath.Abs(sf)
	if err != nil {
		return sf
	}
	return abs
}

// SetStateFile overrides the state file, e.g. from a command-line flag.
func (p *Policy) SetStateFile(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.config.StateFile = path
}

// SignalFilePath returns the path to the notify signal file (same directory as state file).
// Watchers use this to detect commits without relying on SQLite WAL file events.
func (p *Policy) SignalFilePath() string {
	return filepath.Join(filepath.Dir(p.StateFile()), ".dao-ledger-notify")
}

// LogFile returns the configured log file path.
// If unset, defaults to ~/.config/dao-ledger/dao-ledger.log.
// Set to "none" or "off" to disable file logging entirely.
func (p *Policy) LogFile() string {
	p.mu.RLock()
	lf := p.config.LogFile
	p.mu.RUnlock()

	if lf == "" {
		return filepath.Join(GlobalStateDir(), "dao-ledger.log")
	}
	return lf
}

// HTTPPort returns the dashboard/MCP HTTP port; 0 disables the listener.
func (p *Policy) HTTPPort() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.config.HTTPPort
}

// IsToolEnabled checks if a tool is enabled
func (p *Policy) IsToolEnabled(name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, t := range p.config.EnabledTools {
		if t == "*" || t == name {
			return true
		}
	}
	return false
}

// Storage returns the storage settings with the driver defaulted.
func (p *Policy) Storage() StorageConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := p.config.Storage
	if s.Driver == "" {
		s.Driver = DriverSQLite
	}
	return s
}

// StorageLocation returns what the repository factory should open:
// the DSN for postgres, the state file otherwise.
func (p *Policy) StorageLocation() string {
	s := p.Storage()
	if s.Driver == DriverPostgres {
		return s.DSN
	}
	return p.StateFile()
}

// Events returns the event sink settings.
func (p *Policy) Events() EventsConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.config.Events
}
