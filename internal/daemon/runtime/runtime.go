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


// Package runtime runs the wallman evaluation loop: it polls the
// compositor for outputs, resolves each output's rules, evaluates the
// trigger chain and pushes changed wallpapers to the backend.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/tombee/wallman/internal/apply"
	"github.com/tombee/wallman/internal/daemon/history"
	"github.com/tombee/wallman/internal/lifecycle"
	"github.com/tombee/wallman/internal/log"
	"github.com/tombee/wallman/internal/outputs"
	"github.com/tombee/wallman/internal/trigger"
	"github.com/tombee/wallman/internal/wallpaper"
	"github.com/tombee/wallman/internal/weather"
)

// State is the runtime lifecycle state.
type State string

// Runtime states, in the order they are entered.
const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// Default settings used when Options leaves them zero.
const (
	DefaultPollInterval   = time.Minute
	DefaultWeatherTTL     = 10 * time.Minute
	DefaultWeatherTimeout = 10 * time.Second
	DefaultApplyTimeout   = 10 * time.Second
	DefaultMaxParallel    = 4
)

var (
	// ErrNotRunning is returned by control calls when Run is not active.
	ErrNotRunning = errors.New("runtime is not running")

	// ErrAlreadyStarted is returned when Run is called twice.
	ErrAlreadyStarted = errors.New("runtime already started")
)

// Loader reads the current wallpaper rules.
type Loader func() (*wallpaper.ConfigSet, error)

// HistoryRecorder stores apply attempts.
type HistoryRecorder interface {
	Record(ctx context.Context, e history.Entry) error
}

// Metrics receives cycle level measurements. *tracing.Metrics implements it.
type Metrics interface {
	RecordCycle(ctx context.Context, result string, d time.Duration)
	RecordCompositorError(ctx context.Context, kind string)
	RecordReload(ctx context.Context, success bool)
	SetOutputs(n int)
}

// Cycle results reported to Metrics.
const (
	CycleOK      = "ok"
	CyclePartial = "partial"
	CycleSkipped = "skipped"
)

// Options wires the runtime to its components. Loader, Outputs and Engine
// are required.
type Options struct {
	// Loader reads the wallpaper rules at start and on every reload.
	Loader Loader

	// Rules is the initial rule set. When nil, Loader is called at start.
	Rules *wallpaper.ConfigSet

	Outputs *outputs.Resolver
	Engine  *apply.Engine

	// Chain defaults to trigger.DefaultChain().
	Chain *trigger.Chain

	// Fetch looks up weather. A nil Fetch makes weather rules pass.
	Fetch weather.FetchFunc
	Cache *weather.Cache

	History HistoryRecorder
	Metrics Metrics
	Tracer  trace.Tracer
	Logger  *slog.Logger

	// Now returns the local time used for day ranges.
	Now func() time.Time

	// LockPath is the PID file held while running. Empty disables locking.
	LockPath string
	Audit    *lifecycle.LifecycleLogger

	Version string

	PollInterval   time.Duration
	WeatherTTL     time.Duration
	WeatherTimeout time.Duration
	ApplyTimeout   time.Duration
	MaxParallel    int
}

// Runtime owns the evaluation loop and its state. Control calls are
// serviced by the loop goroutine between cycles.
type Runtime struct {
	opts    Options
	chain   *trigger.Chain
	tracer  trace.Tracer
	logger  *slog.Logger
	backoff *outputs.Backoff

	control chan request
	ready   chan struct{}
	done    chan struct{}

	// rules is only touched by the loop goroutine.
	rules *wallpaper.ConfigSet

	mu     sync.RWMutex
	status Status
	ran    bool
}

type requestKind int

const (
	requestReload requestKind = iota
	requestShutdown
)

type request struct {
	kind  requestKind
	reply chan error
}

// New creates a runtime. It does not start the loop.
func New(opts Options) (*Runtime, error) {
	if opts.Loader == nil && opts.Rules == nil {
		return nil, fmt.Errorf("runtime: a loader or initial rules are required")
	}
	if opts.Outputs == nil {
		return nil, fmt.Errorf("runtime: an output resolver is required")
	}
	if opts.Engine == nil {
		return nil, fmt.Errorf("runtime: an apply engine is required")
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.WeatherTTL <= 0 {
		opts.WeatherTTL = DefaultWeatherTTL
	}
	if opts.WeatherTimeout <= 0 {
		opts.WeatherTimeout = DefaultWeatherTimeout
	}
	if opts.ApplyTimeout <= 0 {
		opts.ApplyTimeout = DefaultApplyTimeout
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = DefaultMaxParallel
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Fetch != nil && opts.Cache == nil {
		opts.Cache = weather.NewCache()
	}

	chain := opts.Chain
	if chain == nil {
		chain = trigger.DefaultChain()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("wallman")
	}

	return &Runtime{
		opts:    opts,
		chain:   chain,
		tracer:  tracer,
		logger:  log.WithComponent(opts.Logger, "runtime"),
		backoff: outputs.NewBackoff(opts.PollInterval),
		control: make(chan request),
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
		status: Status{
			State:   StateStopped,
			Version: opts.Version,
			Backend: opts.Engine.Backend(),
			Outputs: map[string]OutputStatus{},
		},
	}, nil
}

// Run acquires the lifecycle lock and runs cycles until ctx is cancelled
// or Shutdown is called. The first cycle runs immediately. Run may be
// called once.
func (r *Runtime) Run(ctx context.Context) (err error) {
	r.mu.Lock()
	if r.ran {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	r.ran = true
	r.status.State = StateStarting
	r.mu.Unlock()

	started := time.Now()
	defer close(r.done)
	defer r.setState(StateStopped)

	if r.opts.LockPath != "" {
		lock, err := lifecycle.AcquireLock(r.opts.LockPath, r.opts.Audit)
		if err != nil {
			return err
		}
		defer func() {
			if rerr := lock.Release(); rerr != nil {
				r.logger.Warn("failed to release lock", log.Error(rerr))
			}
		}()
		r.mu.Lock()
		r.status.PID = lock.PID()
		r.mu.Unlock()
	}

	r.rules = r.opts.Rules
	if r.rules == nil {
		r.rules, err = r.opts.Loader()
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
	}

	r.mu.Lock()
	r.status.State = StateRunning
	r.status.StartedAt = &started
	r.mu.Unlock()
	close(r.ready)
	r.logger.Info("runtime started",
		slog.Duration("poll_interval", r.opts.PollInterval),
		slog.String("backend", r.opts.Engine.Backend()))

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.setState(StateStopping)
			r.logger.Info("runtime stopping", slog.String("reason", "context cancelled"))
			return nil

		case req := <-r.control:
			switch req.kind {
			case requestShutdown:
				r.setState(StateStopping)
				r.logger.Info("runtime stopping", slog.String("reason", "shutdown requested"))
				req.reply <- nil
				return nil
			case requestReload:
				rerr := r.reload(ctx)
				req.reply <- rerr
				if rerr == nil {
					resetTimer(timer, 0)
				}
			}

		case <-timer.C:
			next := r.cycle(ctx)
			r.setNext(next)
			timer.Reset(next)
		}
	}
}

// Reload re-reads the rules through the loader. On failure the previous
// rules stay in effect and the error is returned and kept in Status. On
// success a cycle runs immediately.
func (r *Runtime) Reload(ctx context.Context) error {
	if r.opts.Loader == nil {
		return fmt.Errorf("runtime: reload needs a loader")
	}
	return r.send(ctx, requestReload)
}

// Shutdown stops the loop after any in-flight cycle and waits for Run to
// return. It is a no-op when Run is not active.
func (r *Runtime) Shutdown(ctx context.Context) error {
	if err := r.send(ctx, requestShutdown); err != nil {
		if errors.Is(err, ErrNotRunning) {
			return nil
		}
		return err
	}
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ready is closed once Run holds the lock and has loaded the rules. It is
// never closed when Run fails to start; wait on Done as well.
func (r *Runtime) Ready() <-chan struct{} { return r.ready }

// Done is closed when Run returns.
func (r *Runtime) Done() <-chan struct{} { return r.done }

func (r *Runtime) send(ctx context.Context, kind requestKind) error {
	if r.State() != StateRunning {
		return ErrNotRunning
	}
	req := request{kind: kind, reply: make(chan error, 1)}
	select {
	case r.control <- req:
	case <-r.done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runtime) reload(ctx context.Context) error {
	now := time.Now()
	rules, err := r.opts.Loader()
	if r.opts.Metrics != nil {
		r.opts.Metrics.RecordReload(ctx, err == nil)
	}

	r.mu.Lock()
	r.status.LastReloadAt = &now
	if err != nil {
		r.status.LastReloadError = err.Error()
	} else {
		r.status.LastReloadError = ""
	}
	r.mu.Unlock()

	if err != nil {
		r.logger.Warn("reload failed, keeping previous configuration", log.Error(err))
		return err
	}
	r.rules = rules
	r.logger.Info("configuration reloaded")
	return nil
}

func (r *Runtime) setState(s State) {
	r.mu.Lock()
	r.status.State = s
	r.mu.Unlock()
}

func (r *Runtime) setNext(d time.Duration) {
	next := time.Now().Add(d)
	r.mu.Lock()
	r.status.NextCycleAt = &next
	r.mu.Unlock()
}

// State returns the current lifecycle state.
func (r *Runtime) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status.State
}

func resetTimer(t *time.Timer, d time.Duration) {
	t.Stop()
	t.Reset(d)
}
