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

// Package apply pushes wallpaper targets to a rendering backend, calling it
// only when an output's target actually changes.
package apply

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/tombee/wallman/internal/log"
	"github.com/tombee/wallman/internal/wallpaper"
	"github.com/tombee/wallman/pkg/errors"
)

// Backend renders an image onto one output.
type Backend interface {
	// Name identifies the backend in logs and errors.
	Name() string

	// Apply shows image on output using mode.
	Apply(ctx context.Context, output, image string, mode wallpaper.FillMode) error

	// Release stops rendering on output. Releasing an unknown output is a no-op.
	Release(output string) error

	// Close releases every output.
	Close() error
}

// Apply results reported to the Recorder.
const (
	ResultApplied = "applied"
	ResultSkipped = "skipped"
	ResultFailed  = "failed"
)

// Recorder observes apply outcomes.
type Recorder interface {
	RecordApply(ctx context.Context, output, result string, d time.Duration)
}

// BackendError reports a failed backend call.
type BackendError struct {
	Backend string
	Output  string
	Cause   error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: apply to %s: %v", e.Backend, e.Output, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *BackendError) Unwrap() error { return e.Cause }

// ErrorType implements errors.ErrorClassifier.
func (e *BackendError) ErrorType() string { return "backend" }

// IsRetryable implements errors.ErrorClassifier. The next cycle retries.
func (e *BackendError) IsRetryable() bool { return true }

// Engine remembers the last target applied to each output.
type Engine struct {
	backend  Backend
	logger   *slog.Logger
	recorder Recorder

	mu      sync.RWMutex
	applied map[string]wallpaper.Target
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = log.WithComponent(logger, "apply") }
}

// WithRecorder sets a Recorder for apply outcomes.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// NewEngine creates an Engine over backend.
func NewEngine(backend Backend, opts ...Option) *Engine {
	e := &Engine{
		backend: backend,
		logger:  log.WithComponent(nil, "apply"),
		applied: make(map[string]wallpaper.Target),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply sends target to the backend unless it is already shown on output.
// It reports whether the backend was called successfully. On failure the
// recorded state for output is left untouched.
func (e *Engine) Apply(ctx context.Context, output string, target wallpaper.Target) (bool, error) {
	if target.IsZero() {
		return false, &errors.ValidationError{Field: "image", Message: "target has no image"}
	}

	e.mu.RLock()
	current, ok := e.applied[output]
	e.mu.RUnlock()
	if ok && current == target {
		e.record(ctx, output, ResultSkipped, 0)
		return false, nil
	}

	start := time.Now()
	err := e.backend.Apply(ctx, output, target.Image, target.FillMode)
	elapsed := time.Since(start)
	if err != nil {
		e.record(ctx, output, ResultFailed, elapsed)
		var be *BackendError
		if !errors.As(err, &be) {
			err = &BackendError{Backend: e.backend.Name(), Output: output, Cause: err}
		}
		return false, err
	}

	e.mu.Lock()
	e.applied[output] = target
	e.mu.Unlock()

	e.record(ctx, output, ResultApplied, elapsed)
	e.logger.Info("wallpaper applied",
		log.OutputKey, output,
		log.ImageKey, target.Image,
		"fill_mode", target.FillMode,
		log.DurationKey, elapsed.Milliseconds(),
	)
	return true, nil
}

// Forget drops the recorded target for output so the next Apply reaches
// the backend again.
func (e *Engine) Forget(output string) {
	e.mu.Lock()
	delete(e.applied, output)
	e.mu.Unlock()
}

// Retain drops state for every output not in outputs and releases it in
// the backend. It returns the released outputs, sorted.
func (e *Engine) Retain(outputs []string) []string {
	keep := make(map[string]struct{}, len(outputs))
	for _, o := range outputs {
		keep[o] = struct{}{}
	}

	e.mu.Lock()
	var removed []string
	for o := range e.applied {
		if _, ok := keep[o]; !ok {
			removed = append(removed, o)
			delete(e.applied, o)
		}
	}
	e.mu.Unlock()

	slices.Sort(removed)
	for _, o := range removed {
		if err := e.backend.Release(o); err != nil {
			e.logger.Warn("failed to release output", log.OutputKey, o, log.Error(err))
			continue
		}
		e.logger.Debug("output released", log.OutputKey, o)
	}
	return removed
}

// Snapshot returns a copy of the applied state.
func (e *Engine) Snapshot() map[string]wallpaper.Target {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return maps.Clone(e.applied)
}

// Backend returns the backend name.
func (e *Engine) Backend() string { return e.backend.Name() }

// Close shuts the backend down.
func (e *Engine) Close() error {
	return e.backend.Close()
}

func (e *Engine) record(ctx context.Context, output, result string, d time.Duration) {
	if e.recorder != nil {
		e.recorder.RecordApply(ctx, output, result, d)
	}
}
