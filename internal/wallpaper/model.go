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

package wallpaper

import (
	"fmt"
	"math"
	"sort"

	"github.com/tombee/wallman/internal/weather"
	"github.com/tombee/wallman/pkg/errors"
)

// OutputKey names a display output, or the wildcard that applies to every
// output without its own entry.
type OutputKey string

// Wildcard is the OutputKey matching every output.
const Wildcard OutputKey = "*"

// IsWildcard reports whether k is the wildcard key.
func (k OutputKey) IsWildcard() bool { return k == Wildcard }

// BackgroundSpec is a fixed image.
type BackgroundSpec struct {
	Image    string   `json:"image" yaml:"image"`
	FillMode FillMode `json:"fill_mode" yaml:"fill_mode"`
}

// Validate reports a missing image or unknown fill mode.
func (s BackgroundSpec) Validate() error {
	if s.Image == "" {
		return fmt.Errorf("image is required")
	}
	if !s.FillMode.Valid() {
		return fmt.Errorf("unknown fill mode %q", s.FillMode)
	}
	return nil
}

// TimeSpec switches between a day and a night image.
type TimeSpec struct {
	DayImage   string   `json:"day_image" yaml:"day_image"`
	NightImage string   `json:"night_image" yaml:"night_image"`
	DayRange   DayRange `json:"day_range" yaml:"day_range"`
}

// Validate requires both images and a valid day range.
func (s TimeSpec) Validate() error {
	if s.DayImage == "" {
		return fmt.Errorf("day_image is required")
	}
	if s.NightImage == "" {
		return fmt.Errorf("night_image is required")
	}
	return s.DayRange.Validate()
}

// WeatherSpec maps current weather at a location to images. Conditions
// without an image are left unmapped.
type WeatherSpec struct {
	Lat    float64                      `json:"lat" yaml:"lat"`
	Lon    float64                      `json:"lon" yaml:"lon"`
	Images map[weather.Condition]string `json:"images" yaml:"images"`
}

// Validate checks coordinates and that mapped images are non-empty.
func (s WeatherSpec) Validate() error {
	if math.IsNaN(s.Lat) || s.Lat < -90 || s.Lat > 90 {
		return fmt.Errorf("lat %v out of range", s.Lat)
	}
	if math.IsNaN(s.Lon) || s.Lon < -180 || s.Lon > 180 {
		return fmt.Errorf("lon %v out of range", s.Lon)
	}
	if len(s.Images) == 0 {
		return fmt.Errorf("at least one condition image is required")
	}
	for cond, img := range s.Images {
		if img == "" {
			return fmt.Errorf("image for %s is empty", cond)
		}
	}
	return nil
}

// Image returns the image mapped to cond.
func (s WeatherSpec) Image(cond weather.Condition) (string, bool) {
	img, ok := s.Images[cond]
	return img, ok && img != ""
}

// ConfigSet is the full set of wallpaper rules. It is immutable once
// handed to the daemon.
type ConfigSet struct {
	Background map[OutputKey]BackgroundSpec `json:"background,omitempty"`
	Time       map[OutputKey]TimeSpec       `json:"time,omitempty"`
	Weather    map[OutputKey]WeatherSpec    `json:"weather,omitempty"`
}

// Validate checks every entry and returns the first problem as a
// *errors.ConfigError.
func (c *ConfigSet) Validate() error {
	if c == nil {
		return &errors.ConfigError{Reason: "no configuration"}
	}
	for _, key := range sortedKeys(c.Background) {
		if err := validKey(key); err != nil {
			return &errors.ConfigError{Key: "background", Reason: err.Error()}
		}
		if err := c.Background[key].Validate(); err != nil {
			return &errors.ConfigError{Key: fmt.Sprintf("background.%s", key), Reason: err.Error()}
		}
	}
	for _, key := range sortedKeys(c.Time) {
		if err := validKey(key); err != nil {
			return &errors.ConfigError{Key: "time", Reason: err.Error()}
		}
		if err := c.Time[key].Validate(); err != nil {
			return &errors.ConfigError{Key: fmt.Sprintf("time.%s", key), Reason: err.Error()}
		}
	}
	for _, key := range sortedKeys(c.Weather) {
		if err := validKey(key); err != nil {
			return &errors.ConfigError{Key: "weather", Reason: err.Error()}
		}
		if err := c.Weather[key].Validate(); err != nil {
			return &errors.ConfigError{Key: fmt.Sprintf("weather.%s", key), Reason: err.Error()}
		}
	}
	return nil
}

// Keys returns every output key used by any group, sorted, wildcard first.
func (c *ConfigSet) Keys() []OutputKey {
	seen := make(map[OutputKey]struct{})
	for k := range c.Background {
		seen[k] = struct{}{}
	}
	for k := range c.Time {
		seen[k] = struct{}{}
	}
	for k := range c.Weather {
		seen[k] = struct{}{}
	}
	return sortedKeys(seen)
}

func validKey(k OutputKey) error {
	if k == "" {
		return fmt.Errorf("empty output key")
	}
	return nil
}

func sortedKeys[V any](m map[OutputKey]V) []OutputKey {
	keys := make([]OutputKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].IsWildcard() != keys[j].IsWildcard() {
			return keys[i].IsWildcard()
		}
		return keys[i] < keys[j]
	})
	return keys
}

// EffectiveOutputConfig is the merged configuration for one output. A nil
// group is absent.
type EffectiveOutputConfig struct {
	Output     string          `json:"output" yaml:"output"`
	Background *BackgroundSpec `json:"background,omitempty" yaml:"background,omitempty"`
	Time       *TimeSpec       `json:"time,omitempty" yaml:"time,omitempty"`
	Weather    *WeatherSpec    `json:"weather,omitempty" yaml:"weather,omitempty"`
}

// IsEmpty reports whether no group is present.
func (e EffectiveOutputConfig) IsEmpty() bool {
	return e.Background == nil && e.Time == nil && e.Weather == nil
}

// Target is the image and fill mode selected for an output.
type Target struct {
	Image    string   `json:"image" yaml:"image"`
	FillMode FillMode `json:"fill_mode" yaml:"fill_mode"`
}

// IsZero reports whether t selects nothing.
func (t Target) IsZero() bool { return t.Image == "" }

// String implements fmt.Stringer.
func (t Target) String() string {
	return fmt.Sprintf("%s (%s)", t.Image, t.FillMode)
}
