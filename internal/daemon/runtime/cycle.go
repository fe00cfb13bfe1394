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


package runtime

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/tombee/wallman/internal/daemon/history"
	"github.com/tombee/wallman/internal/log"
	"github.com/tombee/wallman/internal/outputs"
	"github.com/tombee/wallman/internal/tracing"
	"github.com/tombee/wallman/internal/trigger"
	"github.com/tombee/wallman/internal/wallpaper"
	"github.com/tombee/wallman/internal/weather"
)

type outcome int

const (
	outcomeUnresolved outcome = iota
	outcomeUnchanged
	outcomeApplied
	outcomeFailed
)

type outputResult struct {
	output   string
	decision trigger.Decision
	outcome  outcome
	err      error
}

// cycle runs one evaluation pass and returns the delay until the next.
// It is detached from parent's cancellation so shutdown never interrupts
// a backend call halfway.
func (r *Runtime) cycle(parent context.Context) time.Duration {
	ctx := context.WithoutCancel(parent)
	id := uuid.NewString()
	logger := log.WithCycle(r.logger, id)
	start := time.Now()
	in := trigger.Inputs{Now: r.opts.Now()}
	if r.opts.Fetch != nil {
		in.Weather = r.lookupWeather
	}

	ctx, span := r.tracer.Start(ctx, "wallman.cycle",
		trace.WithAttributes(attribute.String("wallman.cycle_id", id)))

	topo, err := r.opts.Outputs.Refresh(ctx)
	if err != nil {
		delay := r.backoff.Next()
		if r.opts.Metrics != nil {
			r.opts.Metrics.RecordCompositorError(ctx, compositorErrorKind(err))
			r.opts.Metrics.RecordCycle(ctx, CycleSkipped, time.Since(start))
		}
		logger.Warn("compositor query failed, skipping cycle",
			log.Error(err),
			slog.Duration("retry_in", delay))
		r.finishSkipped(CycleStatus{ID: id, At: start, DurationMS: time.Since(start).Milliseconds(), Error: err.Error()})
		tracing.End(span, err)
		return delay
	}
	r.backoff.Reset()

	if topo.Changed() {
		logger.Info("outputs changed",
			slog.Any("added", topo.Added),
			slog.Any("removed", topo.Removed),
			slog.Int("count", len(topo.Outputs)))
	}
	if released := r.opts.Engine.Retain(topo.Outputs); len(released) > 0 {
		logger.Debug("released outputs", slog.Any("outputs", released))
	}

	effective := wallpaper.Resolve(topo.Outputs, r.rules)
	results := make([]outputResult, len(topo.Outputs))

	var g errgroup.Group
	g.SetLimit(r.opts.MaxParallel)
	for i, name := range topo.Outputs {
		g.Go(func() error {
			results[i] = r.evaluate(ctx, logger, id, effective[name], in)
			return nil
		})
	}
	_ = g.Wait()

	summary := CycleStatus{ID: id, At: start, DurationMS: time.Since(start).Milliseconds()}
	for _, res := range results {
		switch res.outcome {
		case outcomeApplied:
			summary.Applied++
		case outcomeUnchanged:
			summary.Unchanged++
		case outcomeFailed:
			summary.Failed++
		default:
			summary.Unresolved++
		}
	}
	r.finish(summary, topo.Outputs, results)

	result := CycleOK
	if summary.Failed > 0 {
		result = CyclePartial
	}
	if r.opts.Metrics != nil {
		r.opts.Metrics.RecordCycle(ctx, result, time.Since(start))
		r.opts.Metrics.SetOutputs(len(topo.Outputs))
	}
	span.SetAttributes(
		attribute.Int("wallman.outputs", len(topo.Outputs)),
		attribute.Int("wallman.applied", summary.Applied),
		attribute.Int("wallman.failed", summary.Failed))
	tracing.End(span, nil)

	logger.Debug("cycle complete",
		slog.Int("applied", summary.Applied),
		slog.Int("unchanged", summary.Unchanged),
		slog.Int("unresolved", summary.Unresolved),
		slog.Int("failed", summary.Failed),
		slog.Int64(log.DurationKey, summary.DurationMS))
	return r.opts.PollInterval
}

// evaluate runs the trigger chain for one output and applies the result.
func (r *Runtime) evaluate(ctx context.Context, logger *slog.Logger, cycleID string, cfg wallpaper.EffectiveOutputConfig, in trigger.Inputs) outputResult {
	logger = log.WithOutput(logger, cfg.Output)
	ctx, span := r.tracer.Start(ctx, "wallman.output",
		trace.WithAttributes(attribute.String("wallman.output", cfg.Output)))

	d := r.chain.Evaluate(ctx, cfg, in)
	res := outputResult{output: cfg.Output, decision: d}

	for _, step := range d.Trail {
		if step.Err != nil {
			logger.Warn("trigger skipped after a failed lookup",
				slog.String(log.TriggerKey, string(step.Kind)),
				log.Error(step.Err))
		}
	}
	if !d.Resolved {
		logger.Debug("no trigger resolved, leaving output unchanged")
		tracing.End(span, nil)
		return res
	}
	span.SetAttributes(
		attribute.String("wallman.trigger", string(d.Kind)),
		attribute.String("wallman.image", d.Target.Image))

	applyCtx, cancel := context.WithTimeout(ctx, r.opts.ApplyTimeout)
	start := time.Now()
	changed, err := r.opts.Engine.Apply(applyCtx, cfg.Output, d.Target)
	cancel()
	elapsed := time.Since(start)

	switch {
	case err != nil:
		res.outcome = outcomeFailed
		res.err = err
		logger.Warn("apply failed",
			slog.String(log.TriggerKey, string(d.Kind)),
			slog.String(log.ImageKey, d.Target.Image),
			log.Error(err))
	case changed:
		res.outcome = outcomeApplied
		logger.Debug("trigger resolved",
			slog.String(log.TriggerKey, string(d.Kind)),
			slog.String(log.ImageKey, d.Target.Image))
	default:
		res.outcome = outcomeUnchanged
	}

	if res.outcome == outcomeApplied || res.outcome == outcomeFailed {
		r.record(ctx, logger, history.Entry{
			Time:       start,
			CycleID:    cycleID,
			Output:     cfg.Output,
			Trigger:    string(d.Kind),
			Image:      d.Target.Image,
			FillMode:   string(d.Target.FillMode),
			Result:     historyResult(err),
			Error:      errString(err),
			DurationMS: elapsed.Milliseconds(),
		})
	}

	tracing.End(span, err)
	return res
}

func (r *Runtime) record(ctx context.Context, logger *slog.Logger, e history.Entry) {
	if r.opts.History == nil {
		return
	}
	if err := r.opts.History.Record(ctx, e); err != nil {
		logger.Warn("failed to record history", log.Error(err))
	}
}

func (r *Runtime) lookupWeather(ctx context.Context, lat, lon float64) (weather.Condition, error) {
	return r.opts.Cache.GetOrFetch(ctx, lat, lon, r.opts.WeatherTTL, func(ctx context.Context, lat, lon float64) (weather.Condition, error) {
		ctx, cancel := context.WithTimeout(ctx, r.opts.WeatherTimeout)
		defer cancel()
		return r.opts.Fetch(ctx, lat, lon)
	})
}

func compositorErrorKind(err error) string {
	var ce *outputs.CompositorError
	if !errors.As(err, &ce) {
		return "unknown"
	}
	if errors.Is(ce.Kind, outputs.ErrMalformedResponse) {
		return "malformed"
	}
	return "unavailable"
}

func historyResult(err error) string {
	if err != nil {
		return history.ResultFailed
	}
	return history.ResultApplied
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
