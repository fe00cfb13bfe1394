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
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/tombee/wallman/internal/log"
)

// DefaultOpenMeteoURL is the public Open-Meteo API.
const DefaultOpenMeteoURL = "https://api.open-meteo.com"

const maxResponseBytes = 64 << 10

// OpenMeteo fetches current conditions from the Open-Meteo forecast API.
type OpenMeteo struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// OpenMeteoOption configures an OpenMeteo client.
type OpenMeteoOption func(*OpenMeteo)

// WithBaseURL points the client at a different API host.
func WithBaseURL(u string) OpenMeteoOption {
	return func(o *OpenMeteo) { o.baseURL = u }
}

// WithRateLimit caps outgoing requests to one per interval with the given
// burst. A zero interval disables limiting.
func WithRateLimit(interval time.Duration, burst int) OpenMeteoOption {
	return func(o *OpenMeteo) {
		if interval <= 0 {
			o.limiter = nil
			return
		}
		o.limiter = rate.NewLimiter(rate.Every(interval), burst)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) OpenMeteoOption {
	return func(o *OpenMeteo) { o.logger = l }
}

// NewOpenMeteo creates a client. A nil http.Client uses http.DefaultClient.
func NewOpenMeteo(client *http.Client, opts ...OpenMeteoOption) *OpenMeteo {
	if client == nil {
		client = http.DefaultClient
	}
	o := &OpenMeteo{
		baseURL: DefaultOpenMeteoURL,
		client:  client,
		limiter: rate.NewLimiter(rate.Every(30*time.Second), 4),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = log.WithComponent(o.logger, "weather")
	return o
}

// Name identifies the provider in errors and logs.
func (o *OpenMeteo) Name() string { return "open-meteo" }

type forecastResponse struct {
	CurrentWeather *struct {
		WeatherCode *int    `json:"weathercode"`
		Temperature float64 `json:"temperature"`
	} `json:"current_weather"`
}

// Fetch implements FetchFunc.
func (o *OpenMeteo) Fetch(ctx context.Context, lat, lon float64) (Condition, error) {
	if o.limiter != nil && !o.limiter.Allow() {
		return "", &FetchError{Provider: o.Name(), Cause: ErrRateLimited}
	}

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', 2, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', 2, 64))
	q.Set("current_weather", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/v1/forecast?"+q.Encode(), nil)
	if err != nil {
		return "", &FetchError{Provider: o.Name(), Cause: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", &FetchError{Provider: o.Name(), Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &FetchError{Provider: o.Name(), StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", &FetchError{Provider: o.Name(), Cause: err}
	}
	log.Trace(o.logger, "forecast response", slog.String("body", string(body)))

	var parsed forecastResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &FetchError{Provider: o.Name(), Cause: fmt.Errorf("decode response: %w", err)}
	}
	if parsed.CurrentWeather == nil || parsed.CurrentWeather.WeatherCode == nil {
		return "", &FetchError{Provider: o.Name(), Cause: fmt.Errorf("response has no current_weather.weathercode")}
	}

	code := *parsed.CurrentWeather.WeatherCode
	cond := ClassifyWMO(code)
	o.logger.Debug("weather classified", "wmo_code", code, "condition", cond)
	return cond, nil
}
