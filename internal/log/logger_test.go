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

package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != "info" {
		t.Errorf("expected default level 'info', got %q", cfg.Level)
	}
	if cfg.Format != FormatText {
		t.Errorf("expected default format 'text', got %q", cfg.Format)
	}
	if cfg.Output != os.Stderr {
		t.Errorf("expected default output to be os.Stderr")
	}
	if cfg.AddSource {
		t.Errorf("expected default AddSource to be false")
	}
}

func TestFromEnv(t *testing.T) {
	tests := []struct {
		name      string
		envVars   map[string]string
		level     string
		format    Format
		addSource bool
	}{
		{
			name:   "defaults when no env vars",
			level:  "info",
			format: FormatText,
		},
		{
			name:    "LOG_LEVEL is lowercased",
			envVars: map[string]string{"LOG_LEVEL": "DEBUG"},
			level:   "debug",
			format:  FormatText,
		},
		{
			name:    "WALLMAN_LOG_LEVEL wins over LOG_LEVEL",
			envVars: map[string]string{"LOG_LEVEL": "warn", "WALLMAN_LOG_LEVEL": "trace"},
			level:   "trace",
			format:  FormatText,
		},
		{
			name:      "WALLMAN_DEBUG wins over everything",
			envVars:   map[string]string{"WALLMAN_DEBUG": "1", "WALLMAN_LOG_LEVEL": "error"},
			level:     "debug",
			format:    FormatText,
			addSource: true,
		},
		{
			name:      "json format and source",
			envVars:   map[string]string{"LOG_FORMAT": "JSON", "LOG_SOURCE": "1"},
			level:     "info",
			format:    FormatJSON,
			addSource: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"WALLMAN_DEBUG", "WALLMAN_LOG_LEVEL", "LOG_LEVEL", "LOG_FORMAT", "LOG_SOURCE"} {
				t.Setenv(key, "")
			}
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := FromEnv()
			if cfg.Level != tt.level {
				t.Errorf("level = %q, want %q", cfg.Level, tt.level)
			}
			if cfg.Format != tt.format {
				t.Errorf("format = %q, want %q", cfg.Format, tt.format)
			}
			if cfg.AddSource != tt.addSource {
				t.Errorf("addSource = %v, want %v", cfg.AddSource, tt.addSource)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"trace":   LevelTrace,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "info", Format: FormatJSON, Output: &buf})

	logger = WithComponent(logger, "runtime")
	logger = WithCycle(logger, "c-1")
	WithOutput(logger, "DP-1").Info("applied", Error(errors.New("boom")))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log line %q: %v", buf.String(), err)
	}

	want := map[string]string{
		"component": "runtime",
		CycleIDKey:  "c-1",
		OutputKey:   "DP-1",
		"error":     "boom",
		"msg":       "applied",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("field %s = %v, want %q", k, entry[k], v)
		}
	}
}

func TestTrace_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	Trace(New(&Config{Level: "debug", Output: &buf}), "hidden")
	if buf.Len() != 0 {
		t.Errorf("trace message logged at debug level: %q", buf.String())
	}

	Trace(New(&Config{Level: "trace", Output: &buf}), "shown", slog.String("k", "v"))
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("trace message missing: %q", buf.String())
	}
}

func TestOrDefault(t *testing.T) {
	if OrDefault(nil) != slog.Default() {
		t.Error("nil logger should map to slog.Default()")
	}
}

func TestDuration(t *testing.T) {
	attr := Duration("fetch", 42)
	if attr.Key != "fetch_ms" || attr.Value.Int64() != 42 {
		t.Errorf("unexpected attr %v", attr)
	}
}

func TestValidLevel(t *testing.T) {
	for _, l := range []string{"trace", "DEBUG", "info", "warn", "warning", "error"} {
		if !ValidLevel(l) {
			t.Errorf("ValidLevel(%q) = false", l)
		}
	}
	if ValidLevel("verbose") {
		t.Error("ValidLevel(verbose) = true")
	}
}
