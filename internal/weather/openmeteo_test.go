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

package weather

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMeteo_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/forecast", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "51.50", q.Get("latitude"))
		assert.Equal(t, "-0.12", q.Get("longitude"))
		assert.Equal(t, "true", q.Get("current_weather"))
		fmt.Fprint(w, `{"latitude":51.5,"longitude":-0.12,"current_weather":{"temperature":11.2,"weathercode":63}}`)
	}))
	defer server.Close()

	om := NewOpenMeteo(server.Client(), WithBaseURL(server.URL), WithRateLimit(0, 0))
	cond, err := om.Fetch(context.Background(), 51.5, -0.12)
	require.NoError(t, err)
	assert.Equal(t, Rainy, cond)
}

func TestOpenMeteo_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
	}{
		{"server error", http.StatusInternalServerError, "", http.StatusInternalServerError},
		{"bad json", http.StatusOK, "{", 0},
		{"missing weathercode", http.StatusOK, `{"current_weather":{"temperature":3}}`, 0},
		{"missing current_weather", http.StatusOK, `{}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			om := NewOpenMeteo(server.Client(), WithBaseURL(server.URL), WithRateLimit(0, 0))
			_, err := om.Fetch(context.Background(), 0, 0)
			require.Error(t, err)

			var fe *FetchError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, "open-meteo", fe.Provider)
			assert.Equal(t, tt.wantStatus, fe.StatusCode)
			assert.True(t, fe.IsRetryable())
		})
	}
}

func TestOpenMeteo_RateLimited(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `{"current_weather":{"weathercode":0}}`)
	}))
	defer server.Close()

	om := NewOpenMeteo(server.Client(), WithBaseURL(server.URL), WithRateLimit(time.Hour, 1))

	cond, err := om.Fetch(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, Clear, cond)

	_, err = om.Fetch(context.Background(), 1, 1)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, int32(1), hits.Load())
}

func TestOpenMeteo_ThroughCache(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `{"current_weather":{"weathercode":95}}`)
	}))
	defer server.Close()

	om := NewOpenMeteo(server.Client(), WithBaseURL(server.URL), WithRateLimit(0, 0))
	cache := NewCache()

	for i := 0; i < 3; i++ {
		cond, err := cache.GetOrFetch(context.Background(), 40.71, -74.0, time.Minute, om.Fetch)
		require.NoError(t, err)
		assert.Equal(t, Stormy, cond)
	}
	assert.Equal(t, int32(1), hits.Load())
}
