// Package config loads msgsync settings from the environment, an optional
// .env file and an optional YAML file.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bhandras/msgsync/internal/filter"
	"github.com/bhandras/msgsync/pkg/logger"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables read by Load.
const (
	EnvServerURL   = "MSGSYNC_SERVER_URL"
	EnvToken       = "MSGSYNC_TOKEN"
	EnvDebug       = "MSGSYNC_DEBUG"
	EnvLogLevel    = "MSGSYNC_LOG_LEVEL"
	EnvMetricsAddr = "MSGSYNC_METRICS_ADDR"
	EnvConfig      = "MSGSYNC_CONFIG"
)

type Config struct {
	// ServerURL is the base URL of the chat server.
	ServerURL string `yaml:"server_url"`
	// Token is the bearer token for REST and the event stream.
	Token string `yaml:"-"`

	// Debug enables verbose logging and forces LogLevel to debug.
	Debug bool `yaml:"debug"`
	// LogLevel is one of trace|debug|info|warn|error.
	LogLevel string `yaml:"log_level"`
	// MetricsAddr is the listen address of /metrics; empty disables it.
	MetricsAddr string `yaml:"metrics_addr"`
	// SocketPath is the Socket.IO path of the event stream.
	SocketPath string `yaml:"socket_path"`

	// AllowEditHistory mirrors the realm's edit history policy.
	AllowEditHistory bool `yaml:"allow_edit_history"`

	Fetch FetchConfig `yaml:"fetch"`
	Views []View      `yaml:"views"`

	// Path is the YAML file the config was read from, if any.
	Path string `yaml:"-"`
}

// FetchConfig tunes the remote message fetcher.
type FetchConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	Retries int           `yaml:"retries"`
	// RPS limits requests per second; zero means unlimited.
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// View is a list the client keeps open from startup.
type View struct {
	Name  string        `yaml:"name"`
	Terms []filter.Term `yaml:"terms"`
	// Home marks the list shown first and never torn down.
	Home bool `yaml:"home"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		LogLevel:         "info",
		SocketPath:       "/socket.io",
		AllowEditHistory: true,
		Fetch: FetchConfig{
			Timeout: 30 * time.Second,
			Retries: 2,
			RPS:     10,
			Burst:   5,
		},
		Views: []View{{Name: "home", Home: true}},
	}
}

// Load reads .env (if present), then the YAML file named by MSGSYNC_CONFIG,
// then the environment, each overriding the previous layer.
func Load() (*Config, error) {
	// .env never overrides variables already set in the environment.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warnf("config: ignoring .env: %v", err)
	}

	cfg := Default()
	if path := os.Getenv(EnvConfig); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads a YAML file on top of the defaults without consulting the
// environment.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	if info.Mode().Perm()&0004 != 0 {
		logger.Warnf("config: %s is world-readable", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
	}
	c.Path = path
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvServerURL); v != "" {
		c.ServerURL = v
	}
	if v := os.Getenv(EnvToken); v != "" {
		c.Token = v
	}
	if v := os.Getenv(EnvDebug); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidConfig, EnvDebug, v)
		}
		c.Debug = debug
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvMetricsAddr); v != "" {
		c.MetricsAddr = v
	}
	return nil
}

// Validate checks the merged configuration.
func (c *Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if c.ServerURL == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: server url %q", ErrInvalidConfig, c.ServerURL)
	}
	if c.Token == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidConfig, EnvToken)
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Fetch.RPS < 0 || c.Fetch.Burst < 0 || c.Fetch.Retries < 0 {
		return fmt.Errorf("%w: negative fetch limits", ErrInvalidConfig)
	}

	homes := 0
	for i := range c.Views {
		v := &c.Views[i]
		if strings.TrimSpace(v.Name) == "" {
			return fmt.Errorf("%w: view %d has no name", ErrInvalidConfig, i)
		}
		for j, t := range v.Terms {
			t = t.Canonical()
			if !t.Operator.Valid() {
				return fmt.Errorf("%w: view %q: unknown operator %q", ErrInvalidConfig, v.Name, t.Operator)
			}
			v.Terms[j] = t
		}
		if v.Home {
			homes++
		}
	}
	if homes > 1 {
		return fmt.Errorf("%w: more than one home view", ErrInvalidConfig)
	}
	return nil
}

// Level returns the effective log level.
func (c *Config) Level() logger.Level {
	l, err := logger.ParseLevel(c.LogLevel)
	if err != nil {
		l = logger.LevelInfo
	}
	if c.Debug && l > logger.LevelDebug {
		return logger.LevelDebug
	}
	return l
}
