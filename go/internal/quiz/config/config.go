// Package config loads the smash quiz runtime configuration from an optional
// YAML file and the environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/mcdev12/smashquiz/go/internal/models"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config.yaml"

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Gateway struct {
		Port       string `yaml:"port"`
		BackendURL string `yaml:"backend_url"`
		URL        string `yaml:"url"`
	} `yaml:"gateway"`

	Broadcast struct {
		NATSURL       string        `yaml:"nats_url"`
		StreamName    string        `yaml:"stream_name"`
		SubjectPrefix string        `yaml:"subject_prefix"`
		MaxRetries    int           `yaml:"max_retries"`
		RetryDelay    time.Duration `yaml:"retry_delay"`
	} `yaml:"broadcast"`

	Game struct {
		Rule  *models.Rule `yaml:"rule"`
		Teams []string     `yaml:"teams"`
	} `yaml:"game"`

	Settings struct {
		// Driver is "file" or "postgres".
		Driver string `yaml:"driver"`
		Path   string `yaml:"path"`
	} `yaml:"settings"`

	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var c Config
	c.Server.Port = "8080"
	c.Gateway.Port = "8081"
	c.Gateway.BackendURL = "http://localhost:8080"
	c.Gateway.URL = "ws://localhost:8080/ws"
	c.Broadcast.StreamName = "SMASHQUIZ_EVENTS"
	c.Broadcast.SubjectPrefix = "smashquiz.events"
	c.Broadcast.MaxRetries = 3
	c.Broadcast.RetryDelay = 200 * time.Millisecond
	c.Settings.Driver = "file"
	c.Settings.Path = "smashquiz-settings.json"
	c.LogLevel = "info"
	return &c
}

// Load reads path over the defaults, then applies environment overrides. A
// missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()
	if cfg.Game.Rule != nil {
		if err := cfg.Game.Rule.Validate(); err != nil {
			return nil, fmt.Errorf("game rule: %w", err)
		}
	}
	return cfg, nil
}

// LoadFromEnv loads the file named by SMASHQUIZ_CONFIG, or config.yaml.
func LoadFromEnv() (*Config, error) {
	return Load(GetEnv("SMASHQUIZ_CONFIG", DefaultPath))
}

func (c *Config) applyEnv() {
	c.Server.Port = GetEnv("PORT", c.Server.Port)
	c.Gateway.Port = GetEnv("GATEWAY_PORT", c.Gateway.Port)
	c.Gateway.BackendURL = GetEnv("BACKEND_URL", c.Gateway.BackendURL)
	c.Gateway.URL = GetEnv("GATEWAY_URL", c.Gateway.URL)
	c.Broadcast.NATSURL = GetEnv("NATS_URL", c.Broadcast.NATSURL)
	c.Broadcast.MaxRetries = GetEnvAsInt("BROADCAST_MAX_RETRIES", c.Broadcast.MaxRetries)
	c.Settings.Driver = GetEnv("SETTINGS_DRIVER", c.Settings.Driver)
	c.Settings.Path = GetEnv("SETTINGS_PATH", c.Settings.Path)
	c.LogLevel = GetEnv("LOG_LEVEL", c.LogLevel)
}

// Level parses LogLevel, falling back to info.
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// DefaultRule is the configured rule or the built-in default.
func (c *Config) DefaultRule() models.Rule {
	if c.Game.Rule != nil {
		return *c.Game.Rule
	}
	return models.DefaultRule()
}

// DefaultTeams is the configured team list or the built-in names.
func (c *Config) DefaultTeams() []string {
	if len(c.Game.Teams) > 0 {
		return append([]string(nil), c.Game.Teams...)
	}
	return models.DefaultTeamNames()
}

func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func GetEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
