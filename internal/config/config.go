package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration for the update daemon.
type Config struct {
	Updates    UpdatesConfig     `yaml:"updates"`
	Source     SourceConfig      `yaml:"source"`
	Components []ComponentConfig `yaml:"components"`
	Notify     NotifyConfig      `yaml:"notify"`
	History    HistoryConfig     `yaml:"history"`
	Server     ServerConfig      `yaml:"server"`
	Logging    LoggingConfig     `yaml:"logging"`
}

// UpdatesConfig holds the scheduling knobs. All duration fields are
// Go duration strings ("30m", "1h30m"); empty fields keep their defaults.
type UpdatesConfig struct {
	Enabled       *bool  `yaml:"enabled"`
	CheckInterval string `yaml:"check_interval"`
	InitialDelay  string `yaml:"initial_delay"`
	StaggerDelay  string `yaml:"stagger_delay"`
}

// SourceConfig identifies the remote release source.
type SourceConfig struct {
	APIBaseURL string `yaml:"api_base_url"`
	RawBaseURL string `yaml:"raw_base_url"`
	Token      string `yaml:"token"`
}

// ComponentConfig declares one tracked component.
type ComponentConfig struct {
	Name     string `yaml:"name"`
	Version  string `yaml:"version"`
	Owner    string `yaml:"owner"`
	Repo     string `yaml:"repo"`
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled"`
}

// NotifyConfig configures the optional update-event publishers.
type NotifyConfig struct {
	NATS NATSConfig `yaml:"nats"`
}

// NATSConfig configures the NATS publisher. Disabled unless a URL is set.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// HistoryConfig configures the sqlite update-history store.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ServerConfig configures the admin HTTP server.
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// LoggingConfig selects log level and output format.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// Load reads and parses the configuration file. Environment variables
// referenced as ${VAR} in the YAML are expanded, and a .env file next to the
// working directory is loaded first (without overriding the process
// environment) so tokens can live outside the config file.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Note: .env file couldn't be loaded: %v\n", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Source.APIBaseURL == "" {
		cfg.Source.APIBaseURL = "https://api.github.com"
	}
	if cfg.Source.RawBaseURL == "" {
		cfg.Source.RawBaseURL = "https://raw.githubusercontent.com"
	}
	if cfg.Notify.NATS.URL != "" && cfg.Notify.NATS.Subject == "" {
		cfg.Notify.NATS.Subject = "plugwatch.updates"
	}
	if cfg.History.Enabled && cfg.History.Path == "" {
		cfg.History.Path = "plugwatch-history.db"
	}
	if cfg.Server.Enabled && cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8642"
	}
	cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))
}

// Validate checks the parts of the config that cannot be defaulted away.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Components))
	for i, comp := range c.Components {
		if comp.Name == "" {
			return fmt.Errorf("components[%d]: name is required", i)
		}
		if seen[comp.Name] {
			return fmt.Errorf("components[%d]: duplicate component name %q", i, comp.Name)
		}
		seen[comp.Name] = true
		if comp.Owner == "" || comp.Repo == "" {
			return fmt.Errorf("component %q: owner and repo are required", comp.Name)
		}
		if comp.Path == "" {
			return fmt.Errorf("component %q: path is required", comp.Name)
		}
	}
	if _, err := c.Updates.Settings(); err != nil {
		return err
	}
	return nil
}
