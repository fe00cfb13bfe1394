// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the wallman YAML configuration file, applies
// defaults and environment overrides, and converts the wallpaper rules
// into a validated wallpaper.ConfigSet.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	wallmanerrors "github.com/tombee/wallman/pkg/errors"
)

// Config is the complete wallman configuration.
type Config struct {
	// Pool is the theme directory relative image paths are resolved against.
	Pool string `yaml:"pool,omitempty"`

	// Background, Time and Weather hold wallpaper rules keyed by output
	// name or "*".
	Background map[string]BackgroundEntry `yaml:"background,omitempty"`
	Time       map[string]TimeEntry       `yaml:"time,omitempty"`
	Weather    map[string]WeatherEntry    `yaml:"weather,omitempty"`

	Daemon     DaemonConfig     `yaml:"daemon"`
	Compositor CompositorConfig `yaml:"compositor"`
	Backend    BackendConfig    `yaml:"backend"`
	WeatherAPI WeatherAPIConfig `yaml:"weather_api"`
	Log        LogConfig        `yaml:"log"`
	Tracing    TracingConfig    `yaml:"tracing"`

	// path is the file the configuration was read from, if any.
	path string
}

// BackgroundEntry is a fixed image rule.
type BackgroundEntry struct {
	Image    string `yaml:"image"`
	FillMode string `yaml:"fill_mode,omitempty"`
}

// TimeEntry is a day/night rule. DayRange is "START-END" in local hours,
// for example "8-19" or "07:30-20:00".
type TimeEntry struct {
	Day      string `yaml:"day"`
	Night    string `yaml:"night"`
	DayRange string `yaml:"day_range,omitempty"`
}

// WeatherEntry maps current conditions at a location to images. Image keys
// are condition names: clear, cloudy, rainy, snowy, stormy (sunny, raining,
// snowing and lighting are accepted too).
type WeatherEntry struct {
	Lat    float64           `yaml:"lat"`
	Lon    float64           `yaml:"lon"`
	Images map[string]string `yaml:"images"`
}

// DaemonConfig configures the background process.
type DaemonConfig struct {
	// PollInterval is the time between evaluation cycles.
	PollInterval time.Duration `yaml:"poll_interval"`

	// WeatherTTL is how long a weather lookup is reused.
	WeatherTTL time.Duration `yaml:"weather_ttl"`

	// WeatherTimeout bounds a single weather lookup.
	WeatherTimeout time.Duration `yaml:"weather_timeout"`

	// CompositorTimeout bounds a single output query.
	CompositorTimeout time.Duration `yaml:"compositor_timeout"`

	// ApplyTimeout bounds a single backend call.
	ApplyTimeout time.Duration `yaml:"apply_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxParallel caps concurrently evaluated outputs.
	MaxParallel int `yaml:"max_parallel"`

	// SocketPath is the control socket.
	SocketPath string `yaml:"socket_path,omitempty"`

	// PIDFile is the lifecycle lock file.
	PIDFile string `yaml:"pid_file,omitempty"`

	// DataDir holds the PID file, history database and lifecycle log.
	DataDir string `yaml:"data_dir,omitempty"`

	// WatchConfig reloads automatically when the config file changes.
	// Default: true
	WatchConfig *bool `yaml:"watch_config,omitempty"`

	// HistoryLimit is the number of apply records kept.
	HistoryLimit int `yaml:"history_limit"`
}

// Watch reports whether hot reload is enabled.
func (d DaemonConfig) Watch() bool {
	return d.WatchConfig == nil || *d.WatchConfig
}

// CompositorConfig selects how outputs are listed.
type CompositorConfig struct {
	// Type is "auto", "ipc" (sway IPC socket) or "command".
	Type string `yaml:"type"`

	// Socket overrides $SWAYSOCK for the ipc type.
	Socket string `yaml:"socket,omitempty"`

	// Command is run for the command type and must print a JSON array of
	// outputs.
	Command []string `yaml:"command,omitempty"`
}

// BackendConfig selects how wallpapers are rendered.
type BackendConfig struct {
	// Type is "swaybg" or "command".
	Type string `yaml:"type"`

	// Binary is the swaybg executable.
	Binary string `yaml:"binary,omitempty"`

	// Command is a template for the command type, with {output}, {image}
	// and {mode} placeholders.
	Command string `yaml:"command,omitempty"`

	// Release is run with the same placeholders when an output goes away.
	Release string `yaml:"release,omitempty"`

	// Settle is how long a new swaybg must stay up before the old one is
	// stopped.
	Settle time.Duration `yaml:"settle"`
}

// WeatherAPIConfig configures the Open-Meteo client.
type WeatherAPIConfig struct {
	BaseURL       string        `yaml:"base_url"`
	RateLimit     time.Duration `yaml:"rate_limit"`
	Burst         int           `yaml:"burst"`
	RetryAttempts int           `yaml:"retry_attempts"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source,omitempty"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`

	// Exporter is "console", "otlp", "otlp-http" or "none".
	Exporter string `yaml:"exporter"`

	// Endpoint is the collector address for the otlp exporters.
	Endpoint string `yaml:"endpoint,omitempty"`

	// Insecure disables TLS for the otlp exporters.
	Insecure bool `yaml:"insecure,omitempty"`

	// SampleRatio is the fraction of cycles traced.
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Supported component types.
const (
	CompositorAuto    = "auto"
	CompositorIPC     = "ipc"
	CompositorCommand = "command"

	BackendSwaybg  = "swaybg"
	BackendCommand = "command"
)

// Default returns a Config with default settings and no wallpaper rules.
func Default() *Config {
	dataDir := DataDir()
	return &Config{
		Daemon: DaemonConfig{
			PollInterval:      time.Minute,
			WeatherTTL:        10 * time.Minute,
			WeatherTimeout:    10 * time.Second,
			CompositorTimeout: 5 * time.Second,
			ApplyTimeout:      10 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			MaxParallel:       4,
			SocketPath:        filepath.Join(RuntimeDir(), "wallman.sock"),
			PIDFile:           filepath.Join(dataDir, "wallman.pid"),
			DataDir:           dataDir,
			HistoryLimit:      500,
		},
		Compositor: CompositorConfig{
			Type:    CompositorAuto,
			Command: []string{"swaymsg", "-t", "get_outputs", "-r"},
		},
		Backend: BackendConfig{
			Type:   BackendSwaybg,
			Binary: "swaybg",
			Settle: 300 * time.Millisecond,
		},
		WeatherAPI: WeatherAPIConfig{
			BaseURL:       "https://api.open-meteo.com",
			RateLimit:     30 * time.Second,
			Burst:         4,
			RetryAttempts: 2,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Tracing: TracingConfig{
			Exporter:    "none",
			SampleRatio: 1.0,
		},
	}
}

// Find returns the first existing config file in search order:
// $WALLMAN_CONFIG, the user config path, then the system path.
func Find() (string, error) {
	var candidates []string
	if env := os.Getenv("WALLMAN_CONFIG"); env != "" {
		candidates = append(candidates, env)
	}
	if user, err := ConfigPath(); err == nil {
		candidates = append(candidates, user)
	}
	candidates = append(candidates, SystemConfigPath)

	for _, c := range candidates {
		path, err := expandHome(c)
		if err != nil {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", &wallmanerrors.NotFoundError{Resource: "config file", ID: strings.Join(candidates, ", ")}
}

// Load reads configuration from configPath, or from the first file Find
// returns when configPath is empty. A .env file next to the config file is
// loaded into the environment first without overriding existing variables.
// Environment variables take precedence over the file.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		found, err := Find()
		if err != nil {
			return nil, &wallmanerrors.ConfigError{Key: "config_file", Reason: "no configuration file found", Cause: err}
		}
		configPath = found
	}

	path, err := expandHome(configPath)
	if err != nil {
		return nil, &wallmanerrors.ConfigError{Key: "config_file", Reason: "invalid path", Cause: err}
	}

	if err := loadDotEnv(filepath.Dir(path)); err != nil {
		return nil, &wallmanerrors.ConfigError{Key: ".env", Reason: "failed to load", Cause: err}
	}

	cfg := Default()
	if err := cfg.loadFromFile(path); err != nil {
		return nil, &wallmanerrors.ConfigError{
			Key:    "config_file",
			Reason: fmt.Sprintf("failed to load from %s", path),
			Cause:  err,
		}
	}

	cfg.applyDefaults()
	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path returns the file the configuration was loaded from.
func (c *Config) Path() string { return c.path }

// loadDotEnv loads dir/.env when it exists.
func loadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// yaml.v3 rejects duplicate mapping keys, so a repeated output name
	// fails here.
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	c.path = path
	return nil
}

// applyDefaults fills zero values left by a partial file.
func (c *Config) applyDefaults() {
	defaults := Default()

	if c.Daemon.PollInterval == 0 {
		c.Daemon.PollInterval = defaults.Daemon.PollInterval
	}
	if c.Daemon.WeatherTTL == 0 {
		c.Daemon.WeatherTTL = defaults.Daemon.WeatherTTL
	}
	if c.Daemon.WeatherTimeout == 0 {
		c.Daemon.WeatherTimeout = defaults.Daemon.WeatherTimeout
	}
	if c.Daemon.CompositorTimeout == 0 {
		c.Daemon.CompositorTimeout = defaults.Daemon.CompositorTimeout
	}
	if c.Daemon.ApplyTimeout == 0 {
		c.Daemon.ApplyTimeout = defaults.Daemon.ApplyTimeout
	}
	if c.Daemon.ShutdownTimeout == 0 {
		c.Daemon.ShutdownTimeout = defaults.Daemon.ShutdownTimeout
	}
	if c.Daemon.MaxParallel == 0 {
		c.Daemon.MaxParallel = defaults.Daemon.MaxParallel
	}
	if c.Daemon.DataDir == "" {
		c.Daemon.DataDir = defaults.Daemon.DataDir
	}
	if c.Daemon.SocketPath == "" {
		c.Daemon.SocketPath = defaults.Daemon.SocketPath
	}
	if c.Daemon.PIDFile == "" {
		c.Daemon.PIDFile = filepath.Join(c.Daemon.DataDir, "wallman.pid")
	}
	if c.Daemon.HistoryLimit == 0 {
		c.Daemon.HistoryLimit = defaults.Daemon.HistoryLimit
	}

	if c.Compositor.Type == "" {
		c.Compositor.Type = defaults.Compositor.Type
	}
	if len(c.Compositor.Command) == 0 {
		c.Compositor.Command = defaults.Compositor.Command
	}

	if c.Backend.Type == "" {
		c.Backend.Type = defaults.Backend.Type
	}
	if c.Backend.Binary == "" {
		c.Backend.Binary = defaults.Backend.Binary
	}
	if c.Backend.Settle == 0 {
		c.Backend.Settle = defaults.Backend.Settle
	}

	if c.WeatherAPI.BaseURL == "" {
		c.WeatherAPI.BaseURL = defaults.WeatherAPI.BaseURL
	}
	if c.WeatherAPI.RateLimit == 0 {
		c.WeatherAPI.RateLimit = defaults.WeatherAPI.RateLimit
	}
	if c.WeatherAPI.Burst == 0 {
		c.WeatherAPI.Burst = defaults.WeatherAPI.Burst
	}

	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}

	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = defaults.Tracing.Exporter
	}
	if c.Tracing.SampleRatio == 0 {
		c.Tracing.SampleRatio = defaults.Tracing.SampleRatio
	}
}

// loadFromEnv applies environment overrides.
func (c *Config) loadFromEnv() {
	if val := os.Getenv("WALLMAN_POOL"); val != "" {
		c.Pool = val
	}
	if val := os.Getenv("WALLMAN_SOCKET"); val != "" {
		c.Daemon.SocketPath = val
	}
	if val := os.Getenv("WALLMAN_PID_FILE"); val != "" {
		c.Daemon.PIDFile = val
	}
	if val := os.Getenv("WALLMAN_DATA_DIR"); val != "" {
		c.Daemon.DataDir = val
	}
	if val := os.Getenv("WALLMAN_POLL_INTERVAL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.Daemon.PollInterval = d
		}
	}
	if val := os.Getenv("WALLMAN_WEATHER_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.Daemon.WeatherTTL = d
		}
	}
	if val := os.Getenv("WALLMAN_MAX_PARALLEL"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Daemon.MaxParallel = n
		}
	}
	if val := os.Getenv("WALLMAN_BACKEND"); val != "" {
		c.Backend.Type = strings.ToLower(val)
	}
	if val := os.Getenv("WALLMAN_COMPOSITOR"); val != "" {
		c.Compositor.Type = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = strings.ToLower(val)
	}
	if val := os.Getenv("WALLMAN_TRACING_EXPORTER"); val != "" {
		c.Tracing.Exporter = strings.ToLower(val)
		c.Tracing.Enabled = c.Tracing.Exporter != "none"
	}
	if val := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); val != "" && c.Tracing.Endpoint == "" {
		c.Tracing.Endpoint = val
	}
}
