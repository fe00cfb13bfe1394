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


package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tombee/wallman/internal/config"
	"github.com/tombee/wallman/internal/lifecycle"
	"github.com/tombee/wallman/internal/log"
)

// RunOptions configures daemon execution.
type RunOptions struct {
	Version   string
	Commit    string
	BuildDate string

	// ConfigPath overrides the config file search.
	ConfigPath string

	// SocketPath and PIDFile override the configured paths.
	SocketPath string
	PIDFile    string
}

// Run loads configuration, starts the daemon and blocks until SIGINT,
// SIGTERM or a shutdown request. It is the entry point for both
// `wallman daemon start --foreground` and the detached --daemon-child.
func Run(opts RunOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		log.New(log.FromEnv()).Error("failed to load config", log.Error(err))
		return err
	}

	if opts.SocketPath != "" {
		cfg.Daemon.SocketPath = opts.SocketPath
	}
	if opts.PIDFile != "" {
		cfg.Daemon.PIDFile = opts.PIDFile
	}

	logger := log.New(LogConfig(cfg))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := New(ctx, cfg, Options{
		Version:   opts.Version,
		Commit:    opts.Commit,
		BuildDate: opts.BuildDate,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("failed to create daemon", log.Error(err))
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	if err := d.Run(ctx); err != nil {
		var running *lifecycle.AlreadyRunningError
		if !errors.As(err, &running) {
			logger.Error("daemon error", log.Error(err))
		}
		return err
	}
	return nil
}

// LogConfig builds the logger configuration from the environment and
// cfg. WALLMAN_DEBUG and WALLMAN_LOG_LEVEL win over the file.
func LogConfig(cfg *config.Config) *log.Config {
	lc := log.FromEnv()
	if os.Getenv("WALLMAN_DEBUG") == "" && os.Getenv("WALLMAN_LOG_LEVEL") == "" && cfg.Log.Level != "" {
		lc.Level = cfg.Log.Level
	}
	if cfg.Log.Format != "" {
		lc.Format = log.Format(cfg.Log.Format)
	}
	lc.AddSource = lc.AddSource || cfg.Log.AddSource
	return lc
}
