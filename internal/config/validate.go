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

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tombee/wallman/internal/log"
	wallmanerrors "github.com/tombee/wallman/pkg/errors"
)

var validExporters = map[string]bool{
	"none":      true,
	"console":   true,
	"otlp":      true,
	"otlp-http": true,
}

// Validate checks settings and wallpaper rules. All problems are reported
// together in a single *errors.ConfigError.
func (c *Config) Validate() error {
	var errs []error

	positive := func(key string, d time.Duration) {
		if d <= 0 {
			errs = append(errs, &wallmanerrors.ConfigError{Key: key, Reason: fmt.Sprintf("must be positive, got %v", d)})
		}
	}
	positive("daemon.poll_interval", c.Daemon.PollInterval)
	positive("daemon.weather_ttl", c.Daemon.WeatherTTL)
	positive("daemon.weather_timeout", c.Daemon.WeatherTimeout)
	positive("daemon.compositor_timeout", c.Daemon.CompositorTimeout)
	positive("daemon.apply_timeout", c.Daemon.ApplyTimeout)
	positive("daemon.shutdown_timeout", c.Daemon.ShutdownTimeout)

	if c.Daemon.CompositorTimeout >= c.Daemon.PollInterval && c.Daemon.PollInterval > 0 {
		errs = append(errs, &wallmanerrors.ConfigError{
			Key:    "daemon.compositor_timeout",
			Reason: fmt.Sprintf("must be shorter than poll_interval (%v)", c.Daemon.PollInterval),
		})
	}
	if c.Daemon.MaxParallel < 1 {
		errs = append(errs, &wallmanerrors.ConfigError{Key: "daemon.max_parallel", Reason: "must be at least 1"})
	}
	if c.Daemon.SocketPath == "" {
		errs = append(errs, &wallmanerrors.ConfigError{Key: "daemon.socket_path", Reason: "is required"})
	}
	if c.Daemon.HistoryLimit < 0 {
		errs = append(errs, &wallmanerrors.ConfigError{Key: "daemon.history_limit", Reason: "must not be negative"})
	}

	switch c.Compositor.Type {
	case CompositorAuto, CompositorIPC:
	case CompositorCommand:
		if len(c.Compositor.Command) == 0 {
			errs = append(errs, &wallmanerrors.ConfigError{Key: "compositor.command", Reason: "is required for the command type"})
		}
	default:
		errs = append(errs, &wallmanerrors.ConfigError{Key: "compositor.type", Reason: fmt.Sprintf("unknown type %q", c.Compositor.Type)})
	}

	switch c.Backend.Type {
	case BackendSwaybg:
	case BackendCommand:
		if c.Backend.Command == "" {
			errs = append(errs, &wallmanerrors.ConfigError{Key: "backend.command", Reason: "is required for the command type"})
		} else if !strings.Contains(c.Backend.Command, "{image}") {
			errs = append(errs, &wallmanerrors.ConfigError{Key: "backend.command", Reason: "must contain the {image} placeholder"})
		}
	default:
		errs = append(errs, &wallmanerrors.ConfigError{Key: "backend.type", Reason: fmt.Sprintf("unknown type %q", c.Backend.Type)})
	}

	if c.WeatherAPI.Burst < 1 {
		errs = append(errs, &wallmanerrors.ConfigError{Key: "weather_api.burst", Reason: "must be at least 1"})
	}
	if c.WeatherAPI.RetryAttempts < 0 {
		errs = append(errs, &wallmanerrors.ConfigError{Key: "weather_api.retry_attempts", Reason: "must not be negative"})
	}

	if !log.ValidLevel(c.Log.Level) {
		errs = append(errs, &wallmanerrors.ConfigError{Key: "log.level", Reason: fmt.Sprintf("unknown level %q", c.Log.Level)})
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, &wallmanerrors.ConfigError{Key: "log.format", Reason: fmt.Sprintf("unknown format %q", c.Log.Format)})
	}

	if !validExporters[c.Tracing.Exporter] {
		errs = append(errs, &wallmanerrors.ConfigError{Key: "tracing.exporter", Reason: fmt.Sprintf("unknown exporter %q", c.Tracing.Exporter)})
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, &wallmanerrors.ConfigError{Key: "tracing.sample_ratio", Reason: "must be between 0 and 1"})
	}

	if _, err := c.WallpaperSet(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	return &wallmanerrors.ConfigError{
		Key:    "validation",
		Reason: fmt.Sprintf("%d problems", len(errs)),
		Cause:  errors.Join(errs...),
	}
}
