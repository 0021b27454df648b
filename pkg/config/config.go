package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	DB        DBConfig        `yaml:"db"`
	Server    ServerConfig    `yaml:"server"`
	Host      HostConfig      `yaml:"host"`
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// HostConfig selects and tunes the map host runtime.
type HostConfig struct {
	Provider    string         `yaml:"provider"` // "websocket", "mock"
	PaneName    string         `yaml:"pane_name"`
	PaneZIndex  int            `yaml:"pane_z_index"`
	LayerName   string         `yaml:"layer_name"`
	SendBuffer  int            `yaml:"send_buffer"`
	WriteWait   Duration       `yaml:"write_wait"`
	AllowOrigin []string       `yaml:"allow_origin"`
	Mock        MockHostConfig `yaml:"mock"`
}

// MockHostConfig seeds the in-process host used for demos and headless runs.
type MockHostConfig struct {
	Portals []MockPortal `yaml:"portals"`
}

// MockPortal is one seeded portal of the mock host.
type MockPortal struct {
	ID      string  `yaml:"id"`
	Title   string  `yaml:"title"`
	Faction string  `yaml:"faction"`
	Level   float64 `yaml:"level"`
	Lat     float64 `yaml:"lat"`
	Lng     float64 `yaml:"lng"`
}

// BootstrapConfig tunes the readiness task.
type BootstrapConfig struct {
	PollInterval    Duration `yaml:"poll_interval"`
	MaxPollInterval Duration `yaml:"max_poll_interval"`
	SiblingGrace    Duration `yaml:"sibling_grace"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Requests: LogSettings{
				Path:  "./logs/requests.log",
				Level: "INFO",
			},
		},
		DB: DBConfig{
			Path: "./data/portalslayer.db",
		},
		Server: ServerConfig{
			Address: "localhost:1930",
		},
		Host: HostConfig{
			Provider:   "websocket",
			PaneName:   "plugin-portal-slayer-pane",
			PaneZIndex: 650,
			LayerName:  "Portal Slayer",
			SendBuffer: 256,
			WriteWait:  Duration(10 * time.Second),
			AllowOrigin: []string{
				"https://intel.ingress.com",
				"https://intel-x.ingress.com",
			},
		},
		Bootstrap: BootstrapConfig{
			PollInterval:    Duration(500 * time.Millisecond),
			MaxPollInterval: Duration(10 * time.Second),
			SiblingGrace:    Duration(1 * time.Second),
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// An existing file is merged over the defaults but never written back, so user comments survive.
// PORTALSLAYER_* environment variables (also read from a .env file) override file values.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	// Missing .env is the normal case.
	_ = godotenv.Load()

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORTALSLAYER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("PORTALSLAYER_DB_PATH"); v != "" {
		cfg.DB.Path = v
	}
	if v := os.Getenv("PORTALSLAYER_HOST_PROVIDER"); v != "" {
		cfg.Host.Provider = v
	}
}

var panePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Validate checks values that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	switch c.Host.Provider {
	case "websocket", "mock":
	default:
		return fmt.Errorf("invalid host provider '%s': must be 'websocket' or 'mock'", c.Host.Provider)
	}
	if !panePattern.MatchString(c.Host.PaneName) {
		return fmt.Errorf("invalid pane_name '%s'", c.Host.PaneName)
	}
	if c.Bootstrap.PollInterval <= 0 {
		return fmt.Errorf("bootstrap.poll_interval must be positive")
	}
	if c.Bootstrap.MaxPollInterval < c.Bootstrap.PollInterval {
		return fmt.Errorf("bootstrap.max_poll_interval must not be below poll_interval")
	}
	for i, p := range c.Host.Mock.Portals {
		if p.ID == "" {
			return fmt.Errorf("host.mock.portals[%d]: missing id", i)
		}
	}
	return nil
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# PortalSlayer Configuration
# -------------------------
# Supported Units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)

`)
	data = append(header, data...)

	reProvider := regexp.MustCompile(`(?m)^(\s+)provider:`)
	data = reProvider.ReplaceAll(data, []byte("${1}# Options: websocket, mock\n${1}provider:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return Save(path, DefaultConfig())
}
