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

/*
Package tracing wires OpenTelemetry traces and metrics for the wallman daemon.

A Provider owns a tracer provider and a meter provider whose readings are
bridged into a private Prometheus registry served on /metrics:

	p, err := tracing.NewProvider(ctx, tracing.Config{
	    Enabled:  true,
	    Exporter: tracing.ExporterConsole,
	})
	if err != nil {
	    return err
	}
	defer p.Shutdown(ctx)

	ctx, span := p.Tracer("daemon").Start(ctx, "cycle")
	defer tracing.End(span, err)

Metrics implements the recorder hooks of the weather cache and the apply
engine, so wiring it in is enough to get per-output counters.
*/
package tracing
