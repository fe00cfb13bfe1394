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


// Package daemon wires the wallman components from configuration and runs
// them with the control API until shutdown.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tombee/wallman/internal/apply"
	"github.com/tombee/wallman/internal/config"
	"github.com/tombee/wallman/internal/daemon/api"
	"github.com/tombee/wallman/internal/daemon/history"
	"github.com/tombee/wallman/internal/daemon/listener"
	"github.com/tombee/wallman/internal/daemon/runtime"
	"github.com/tombee/wallman/internal/lifecycle"
	internallog "github.com/tombee/wallman/internal/log"
	"github.com/tombee/wallman/internal/outputs"
	"github.com/tombee/wallman/internal/tracing"
	"github.com/tombee/wallman/internal/wallpaper"
	"github.com/tombee/wallman/internal/weather"
	"github.com/tombee/wallman/pkg/httpclient"
)

// Options contains daemon options set at build time.
type Options struct {
	Version   string
	Commit    string
	BuildDate string

	// Logger is the base logger. Nil means slog.Default().
	Logger *slog.Logger
}

// Daemon owns every long-lived component of a running wallman.
type Daemon struct {
	cfg    *config.Config
	opts   Options
	logger *slog.Logger

	runtime  *runtime.Runtime
	engine   *apply.Engine
	history  *history.Store
	provider *tracing.Provider
	audit    *lifecycle.LifecycleLogger

	server *http.Server
	ln     net.Listener

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New builds a daemon from cfg. Nothing is started until Run.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Daemon, error) {
	logger := internallog.WithComponent(opts.Logger, "daemon")

	if err := os.MkdirAll(cfg.Daemon.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	rules, err := cfg.WallpaperSet()
	if err != nil {
		return nil, err
	}

	provider, err := tracing.NewProvider(ctx, tracingConfig(cfg, opts.Version))
	if err != nil {
		return nil, fmt.Errorf("failed to create telemetry provider: %w", err)
	}
	metrics := provider.Metrics()

	backend, engine, err := newEngine(cfg, metrics, opts.Logger)
	if err != nil {
		_ = provider.Shutdown(ctx)
		return nil, err
	}

	fetch, err := NewWeatherFetch(cfg, opts)
	if err != nil {
		_ = provider.Shutdown(ctx)
		_ = backend.Close()
		return nil, err
	}

	store, err := history.Open(ctx, filepath.Join(cfg.Daemon.DataDir, "history.db"), cfg.Daemon.HistoryLimit)
	if err != nil {
		_ = provider.Shutdown(ctx)
		_ = backend.Close()
		return nil, fmt.Errorf("failed to open history: %w", err)
	}

	audit := lifecycle.NewLifecycleLogger(filepath.Join(cfg.Daemon.DataDir, "lifecycle.log"))
	configPath := cfg.Path()

	rt, err := runtime.New(runtime.Options{
		Loader:         reloader(configPath),
		Rules:          rules,
		Outputs:        outputs.NewResolver(NewLister(cfg.Compositor), cfg.Daemon.CompositorTimeout, opts.Logger),
		Engine:         engine,
		Fetch:          fetch,
		Cache:          weather.NewCache(weather.WithRecorder(metrics)),
		History:        store,
		Metrics:        metrics,
		Tracer:         provider.Tracer("github.com/tombee/wallman/runtime"),
		Logger:         opts.Logger,
		LockPath:       cfg.Daemon.PIDFile,
		Audit:          audit,
		Version:        opts.Version,
		PollInterval:   cfg.Daemon.PollInterval,
		WeatherTTL:     cfg.Daemon.WeatherTTL,
		WeatherTimeout: cfg.Daemon.WeatherTimeout,
		ApplyTimeout:   cfg.Daemon.ApplyTimeout,
		MaxParallel:    cfg.Daemon.MaxParallel,
	})
	if err != nil {
		_ = provider.Shutdown(ctx)
		_ = backend.Close()
		_ = store.Close()
		return nil, err
	}

	return &Daemon{
		cfg:      cfg,
		opts:     opts,
		logger:   logger,
		runtime:  rt,
		engine:   engine,
		history:  store,
		provider: provider,
		audit:    audit,
		stopCh:   make(chan struct{}),
	}, nil
}

// Runtime returns the evaluation runtime.
func (d *Daemon) Runtime() *runtime.Runtime { return d.runtime }

// Run starts the runtime, then the control API and config watcher, and
// blocks until ctx is cancelled, a shutdown is requested over the API or
// a component fails. It always cleans up before returning.
func (d *Daemon) Run(ctx context.Context) error {
	start := time.Now()
	d.audit.LogStart(d.opts.Version, d.cfg.Path())

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	runErr := make(chan error, 1)
	go func() { runErr <- d.runtime.Run(runCtx) }()

	select {
	case <-d.runtime.Ready():
	case err := <-runErr:
		d.closeComponents(ctx)
		var running *lifecycle.AlreadyRunningError
		if !errors.As(err, &running) {
			d.audit.LogStartFailure(err)
		}
		return err
	}

	srvErr, err := d.serve()
	if err != nil {
		d.audit.LogStartFailure(err)
		d.shutdown(cancelRun, runErr)
		return err
	}

	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()
	d.startWatcher(watchCtx)

	pid := os.Getpid()
	d.audit.LogStartSuccess(pid, time.Since(start))
	d.logger.Info("wallman daemon started",
		slog.String("version", d.opts.Version),
		slog.Int("pid", pid),
		slog.String("socket", d.cfg.Daemon.SocketPath),
		slog.String("config", d.cfg.Path()))

	var (
		reason string
		result error
	)
	select {
	case <-ctx.Done():
		reason = "signal"
	case <-d.stopCh:
		reason = "api"
	case err := <-runErr:
		// Put it back for shutdown to drain.
		runErr <- err
		reason = "runtime exited"
		result = err
	case err := <-srvErr:
		reason = "control server failed"
		result = fmt.Errorf("control server: %w", err)
	}

	stopStart := time.Now()
	d.audit.LogStop(pid, reason)
	d.logger.Info("graceful shutdown initiated", slog.String("reason", reason))

	if err := d.shutdown(cancelRun, runErr); err != nil {
		d.audit.LogStopFailure(pid, err)
		if result == nil {
			result = err
		}
		return result
	}

	d.audit.LogStopSuccess(pid, time.Since(stopStart))
	d.logger.Info("daemon stopped")
	return result
}

// RequestShutdown asks Run to stop. It does not wait.
func (d *Daemon) RequestShutdown() {
	d.stopOnce.Do(func() { close(d.stopCh) })
}

func (d *Daemon) serve() (<-chan error, error) {
	ln, err := listener.New(d.cfg.Daemon.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create listener: %w", err)
	}
	d.ln = ln

	router := api.NewRouter(api.RouterConfig{
		Version:   d.opts.Version,
		Commit:    d.opts.Commit,
		BuildDate: d.opts.BuildDate,
		Logger:    d.opts.Logger,
	})
	router.SetStatusProvider(d.runtime)
	router.SetMetricsHandler(d.provider.MetricsHandler())
	api.NewControlHandler(d.runtime, d.RequestShutdown).RegisterRoutes(router.Mux())
	api.NewHistoryHandler(d.history).RegisterRoutes(router.Mux())

	d.server = &http.Server{
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := d.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	return errCh, nil
}

func (d *Daemon) startWatcher(ctx context.Context) {
	path := d.cfg.Path()
	if !d.cfg.Daemon.Watch() || path == "" {
		return
	}

	w, err := config.NewWatcher(path, config.DefaultDebounce, func(ctx context.Context) {
		reloadCtx, cancel := context.WithTimeout(ctx, d.cfg.Daemon.ShutdownTimeout)
		defer cancel()
		if err := d.runtime.Reload(reloadCtx); err != nil && !errors.Is(err, runtime.ErrNotRunning) {
			d.logger.Warn("automatic reload failed", internallog.Error(err))
		}
	}, d.opts.Logger)
	if err != nil {
		d.logger.Warn("config watcher disabled", internallog.Error(err))
		return
	}

	go func() {
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Warn("config watcher stopped", internallog.Error(err))
		}
	}()
}

// shutdown stops the runtime, then the server, then closes everything
// else. The in-flight cycle finishes first.
func (d *Daemon) shutdown(cancelRun context.CancelFunc, runErr <-chan error) error {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Daemon.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := d.runtime.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("runtime shutdown: %w", err))
		cancelRun()
	}
	select {
	case err := <-runErr:
		if err != nil {
			errs = append(errs, err)
		}
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("runtime did not stop within %v", d.cfg.Daemon.ShutdownTimeout))
	}

	if d.server != nil {
		d.server.SetKeepAlivesEnabled(false)
		if err := d.server.Shutdown(ctx); err != nil {
			d.logger.Error("HTTP server shutdown error", internallog.Error(err))
		}
	}

	d.closeComponents(ctx)

	if d.ln != nil {
		if err := os.Remove(d.cfg.Daemon.SocketPath); err != nil && !os.IsNotExist(err) {
			d.logger.Error("failed to remove socket file",
				internallog.Error(err),
				slog.String("path", d.cfg.Daemon.SocketPath))
		}
	}

	return errors.Join(errs...)
}

func (d *Daemon) closeComponents(ctx context.Context) {
	if err := d.engine.Close(); err != nil {
		d.logger.Error("failed to stop backend", internallog.Error(err))
	}
	if err := d.history.Close(); err != nil {
		d.logger.Error("failed to close history", internallog.Error(err))
	}
	if err := d.provider.Shutdown(ctx); err != nil {
		d.logger.Error("telemetry shutdown error", internallog.Error(err))
	}
}

// reloader reads rules from the config file at path on every call.
func reloader(path string) runtime.Loader {
	return func() (*wallpaper.ConfigSet, error) {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		return cfg.WallpaperSet()
	}
}

func tracingConfig(cfg *config.Config, version string) tracing.Config {
	tc := tracing.DefaultConfig()
	tc.Enabled = cfg.Tracing.Enabled
	tc.Exporter = cfg.Tracing.Exporter
	tc.Endpoint = cfg.Tracing.Endpoint
	tc.Insecure = cfg.Tracing.Insecure
	tc.SampleRatio = cfg.Tracing.SampleRatio
	if version != "" {
		tc.ServiceVersion = version
	}
	return tc
}

// NewLister picks how outputs are listed.
func NewLister(cc config.CompositorConfig) outputs.Lister {
	switch cc.Type {
	case config.CompositorIPC:
		return outputs.SwayIPC{Socket: cc.Socket}
	case config.CompositorCommand:
		return outputs.CommandLister{Args: cc.Command}
	default:
		return outputs.Auto(cc.Socket, cc.Command)
	}
}

// newEngine builds the configured backend and the engine in front of it.
// A swaybg child that exits on its own makes the engine forget the output
// so the next cycle starts a new one.
func newEngine(cfg *config.Config, recorder apply.Recorder, logger *slog.Logger) (apply.Backend, *apply.Engine, error) {
	var (
		backend apply.Backend
		engine  *apply.Engine
	)

	switch cfg.Backend.Type {
	case config.BackendCommand:
		cmd, err := apply.NewCommand(cfg.Backend.Command, cfg.Backend.Release)
		if err != nil {
			return nil, nil, err
		}
		backend = cmd
	default:
		backend = apply.NewSwaybg(
			apply.WithBinary(cfg.Backend.Binary),
			apply.WithSettle(cfg.Backend.Settle),
			apply.WithSwaybgLogger(logger),
			apply.WithExitHandler(func(output string) {
				if engine != nil {
					engine.Forget(output)
				}
			}),
		)
	}

	engine = apply.NewEngine(backend, apply.WithLogger(logger), apply.WithRecorder(recorder))
	return backend, engine, nil
}

// NewWeatherFetch builds the rate-limited Open-Meteo client behind the
// shared retrying HTTP client.
func NewWeatherFetch(cfg *config.Config, opts Options) (weather.FetchFunc, error) {
	hc := httpclient.DefaultConfig()
	hc.Timeout = cfg.Daemon.WeatherTimeout
	hc.RetryAttempts = cfg.WeatherAPI.RetryAttempts
	hc.Logger = opts.Logger
	if opts.Version != "" {
		hc.UserAgent = "wallman/" + opts.Version
	}

	client, err := httpclient.New(hc)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	om := weather.NewOpenMeteo(client,
		weather.WithBaseURL(cfg.WeatherAPI.BaseURL),
		weather.WithRateLimit(cfg.WeatherAPI.RateLimit, cfg.WeatherAPI.Burst),
		weather.WithLogger(opts.Logger))
	return om.Fetch, nil
}
