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
	"bytes"
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestProvider(t *testing.T) (*Provider, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	p, err := NewProvider(context.Background(), DefaultConfig(), sdktrace.WithSpanProcessor(rec))
	require.NoError(t, err)
	t.Cleanup(func() { p.Shutdown(context.Background()) })
	return p, rec
}

func TestProvider_Spans(t *testing.T) {
	p, rec := newTestProvider(t)
	tracer := p.Tracer("test")

	ctx, parent := tracer.Start(context.Background(), "cycle")
	_, child := tracer.Start(ctx, "apply")
	End(child, errors.New("swaybg exited"))
	End(parent, nil)

	spans := rec.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "apply", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "swaybg exited", spans[0].Status().Description)
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())

	assert.Equal(t, "cycle", spans[1].Name())
	assert.Equal(t, codes.Ok, spans[1].Status().Code)
}

func TestProvider_MetricsHandler(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()

	m := p.Metrics()
	m.RecordCycle(ctx, "ok", 20*time.Millisecond)
	m.RecordApply(ctx, "DP-1", "applied", 5*time.Millisecond)
	m.RecordWeatherLookup(ctx, "hit")
	m.SetOutputs(2)

	srv := httptest.NewServer(p.MetricsHandler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	for _, name := range []string{"wallman_cycles", "wallman_applies", "wallman_weather_lookups", "wallman_outputs", "go_goroutines"} {
		assert.True(t, strings.Contains(text, name), "metric %s missing", name)
	}
	assert.Contains(t, text, `output="DP-1"`)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", DefaultConfig(), false},
		{"console", Config{Enabled: true, Exporter: ExporterConsole, SampleRatio: 1}, false},
		{"otlp without endpoint", Config{Enabled: true, Exporter: ExporterOTLP, SampleRatio: 1}, true},
		{"otlp with endpoint", Config{Enabled: true, Exporter: ExporterOTLPHTTP, Endpoint: "localhost:4318", SampleRatio: 1}, false},
		{"unknown exporter", Config{Exporter: "zipkin"}, true},
		{"bad ratio", Config{Exporter: ExporterNone, SampleRatio: 2}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCreateExporter_Console(t *testing.T) {
	var buf bytes.Buffer
	exp, err := CreateExporter(context.Background(), Config{Exporter: ExporterConsole}, &buf)
	require.NoError(t, err)
	require.NotNil(t, exp)

	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	_, span := tp.Tracer("test").Start(context.Background(), "refresh")
	span.End()
	require.NoError(t, tp.Shutdown(context.Background()))

	assert.Contains(t, buf.String(), "refresh")
}

func TestCreateExporter_None(t *testing.T) {
	exp, err := CreateExporter(context.Background(), Config{Exporter: ExporterNone}, nil)
	require.NoError(t, err)
	assert.Nil(t, exp)

	_, err = CreateExporter(context.Background(), Config{Exporter: "jaeger"}, nil)
	assert.Error(t, err)
}
