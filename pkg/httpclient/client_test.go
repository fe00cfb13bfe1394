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

package httpclient

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/wallman/internal/log"
)

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.RetryBackoff = 5 * time.Millisecond
	cfg.MaxBackoff = 20 * time.Millisecond
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, "timeout"},
		{"negative retries", func(c *Config) { c.RetryAttempts = -1 }, "retry_attempts"},
		{"zero backoff with retries", func(c *Config) { c.RetryBackoff = 0 }, "retry_backoff"},
		{"max below base", func(c *Config) { c.MaxBackoff = time.Millisecond }, "max_backoff"},
		{"no retries ignores backoff", func(c *Config) { c.RetryAttempts = 0; c.RetryBackoff = 0 }, ""},
		{"empty user agent", func(c *Config) { c.UserAgent = "" }, "user_agent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := New(fastConfig())
	require.NoError(t, err)

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestClient_ReturnsLastResponseWhenExhausted(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := New(fastConfig())
	require.NoError(t, err)

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client, err := New(fastConfig())
	require.NoError(t, err)

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestClient_DoesNotRetryPost(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := New(fastConfig())
	require.NoError(t, err)

	resp, err := client.Post(server.URL, "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestClient_SetsUserAgentAndRedactsLogs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "wallman/1.0", r.UserAgent())
	}))
	defer server.Close()

	var buf bytes.Buffer
	cfg := fastConfig()
	cfg.Logger = log.New(&log.Config{Level: "debug", Output: &buf})
	client, err := New(cfg)
	require.NoError(t, err)

	resp, err := client.Get(server.URL + "/v1/forecast?latitude=51.50&longitude=-0.12&current_weather=true")
	require.NoError(t, err)
	resp.Body.Close()

	assert.NotContains(t, buf.String(), "51.50")
	assert.Contains(t, buf.String(), "current_weather=true")
}

func TestRetryAfter(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	assert.Zero(t, retryAfter(resp))

	resp.Header.Set("Retry-After", "3")
	assert.Equal(t, 3*time.Second, retryAfter(resp))

	resp.Header.Set("Retry-After", "garbage")
	assert.Zero(t, retryAfter(resp))
}

func TestBackoffIsCapped(t *testing.T) {
	rt := newRetryTransport(nil, Config{RetryAttempts: 5, RetryBackoff: 10 * time.Millisecond, MaxBackoff: 40 * time.Millisecond})
	for attempt := 1; attempt <= 6; attempt++ {
		d := rt.backoff(attempt)
		assert.LessOrEqual(t, d, 48*time.Millisecond, "attempt %d", attempt)
	}
}

func TestSanitizeURL(t *testing.T) {
	u, err := url.Parse("https://user:pw@api.open-meteo.com/v1/forecast?latitude=1&longitude=2&apikey=s&current_weather=true")
	require.NoError(t, err)

	got := sanitizeURL(u)
	assert.NotContains(t, got, "pw")
	assert.Contains(t, got, "latitude=%5BREDACTED%5D")
	assert.Contains(t, got, "apikey=%5BREDACTED%5D")
	assert.Contains(t, got, "current_weather=true")
	assert.Empty(t, sanitizeURL(nil))
}
