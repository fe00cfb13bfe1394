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
	"fmt"
	"time"
)

// Exporter types.
const (
	ExporterNone     = "none"
	ExporterConsole  = "console"
	ExporterOTLP     = "otlp"
	ExporterOTLPHTTP = "otlp-http"
)

// Config holds observability configuration.
type Config struct {
	// Enabled controls whether spans are exported.
	Enabled bool

	// ServiceName identifies this service in traces.
	ServiceName string

	// ServiceVersion is the application version.
	ServiceVersion string

	// Exporter is one of the Exporter constants.
	Exporter string

	// Endpoint is the collector address for the otlp exporters.
	Endpoint string

	// Insecure disables TLS for the otlp exporters.
	Insecure bool

	// SampleRatio is the fraction of root spans sampled (0.0 - 1.0).
	SampleRatio float64

	// BatchInterval is how often spans are flushed (default: 5s).
	BatchInterval time.Duration
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "wallman",
		ServiceVersion: "unknown",
		Exporter:       ExporterNone,
		SampleRatio:    1.0,
		BatchInterval:  5 * time.Second,
	}
}

// Validate checks the exporter settings.
func (c Config) Validate() error {
	switch c.Exporter {
	case "", ExporterNone, ExporterConsole:
	case ExporterOTLP, ExporterOTLPHTTP:
		if c.Enabled && c.Endpoint == "" {
			return fmt.Errorf("exporter %s requires an endpoint", c.Exporter)
		}
	default:
		return fmt.Errorf("unknown exporter type: %s", c.Exporter)
	}
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return fmt.Errorf("sample ratio %v is outside [0, 1]", c.SampleRatio)
	}
	return nil
}
