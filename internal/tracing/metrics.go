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

package tracing

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the daemon's metric instruments.
type Metrics struct {
	meter metric.Meter

	// Counters
	cyclesTotal           metric.Int64Counter
	appliesTotal          metric.Int64Counter
	weatherLookupsTotal   metric.Int64Counter
	compositorErrorsTotal metric.Int64Counter
	reloadsTotal          metric.Int64Counter

	// Histograms
	cycleDuration metric.Float64Histogram
	applyDuration metric.Float64Histogram

	// Gauges (observable)
	outputs atomic.Int64
	started time.Time
}

// NewMetrics creates the instruments on meterProvider.
func NewMetrics(meterProvider metric.MeterProvider) (*Metrics, error) {
	m := &Metrics{meter: meterProvider.Meter("wallman"), started: time.Now()}

	var err error

	m.cyclesTotal, err = m.meter.Int64Counter(
		"wallman_cycles",
		metric.WithDescription("Evaluation cycles run by the daemon"),
		metric.WithUnit("{cycle}"),
	)
	if err != nil {
		return nil, err
	}

	m.appliesTotal, err = m.meter.Int64Counter(
		"wallman_applies",
		metric.WithDescription("Wallpaper apply attempts per output"),
		metric.WithUnit("{apply}"),
	)
	if err != nil {
		return nil, err
	}

	m.weatherLookupsTotal, err = m.meter.Int64Counter(
		"wallman_weather_lookups",
		metric.WithDescription("Weather cache lookups by result"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	m.compositorErrorsTotal, err = m.meter.Int64Counter(
		"wallman_compositor_errors",
		metric.WithDescription("Failed compositor output queries"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	m.reloadsTotal, err = m.meter.Int64Counter(
		"wallman_config_reloads",
		metric.WithDescription("Configuration reload attempts"),
		metric.WithUnit("{reload}"),
	)
	if err != nil {
		return nil, err
	}

	m.cycleDuration, err = m.meter.Float64Histogram(
		"wallman_cycle_duration",
		metric.WithDescription("Evaluation cycle duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.applyDuration, err = m.meter.Float64Histogram(
		"wallman_apply_duration",
		metric.WithDescription("Backend apply duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	_, err = m.meter.Int64ObservableGauge(
		"wallman_outputs",
		metric.WithDescription("Active outputs seen by the last refresh"),
		metric.WithUnit("{output}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(m.outputs.Load())
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	_, err = m.meter.Float64ObservableGauge(
		"wallman_uptime",
		metric.WithDescription("Time since the daemon started"),
		metric.WithUnit("s"),
		metric.WithFloat64Callback(func(_ context.Context, o metric.Float64Observer) error {
			o.Observe(time.Since(m.started).Seconds())
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordCycle records one evaluation cycle. result is "ok", "skipped" or
// "error".
func (m *Metrics) RecordCycle(ctx context.Context, result string, d time.Duration) {
	attrs := metric.WithAttributes(attribute.String("result", result))
	m.cyclesTotal.Add(ctx, 1, attrs)
	m.cycleDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordApply implements apply.Recorder.
func (m *Metrics) RecordApply(ctx context.Context, output, result string, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("output", output),
		attribute.String("result", result),
	)
	m.appliesTotal.Add(ctx, 1, attrs)
	if d > 0 {
		m.applyDuration.Record(ctx, d.Seconds(), attrs)
	}
}

// RecordWeatherLookup implements weather.Recorder.
func (m *Metrics) RecordWeatherLookup(ctx context.Context, result string) {
	m.weatherLookupsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordCompositorError counts a failed output query of the given kind.
func (m *Metrics) RecordCompositorError(ctx context.Context, kind string) {
	m.compositorErrorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordReload counts a configuration reload attempt.
func (m *Metrics) RecordReload(ctx context.Context, success bool) {
	result := "ok"
	if !success {
		result = "error"
	}
	m.reloadsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// SetOutputs updates the active output gauge.
func (m *Metrics) SetOutputs(n int) {
	m.outputs.Store(int64(n))
}
