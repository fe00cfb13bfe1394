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

package trigger

import (
	"context"
	"fmt"

	"github.com/tombee/wallman/internal/wallpaper"
)

// WeatherEvaluator selects the image mapped to the current condition.
// A failed lookup or an unmapped condition passes.
type WeatherEvaluator struct{}

// Kind implements Evaluator.
func (WeatherEvaluator) Kind() Kind { return KindWeather }

// Evaluate implements Evaluator.
func (WeatherEvaluator) Evaluate(ctx context.Context, cfg wallpaper.EffectiveOutputConfig, in Inputs) Result {
	spec := cfg.Weather
	if spec == nil {
		return pass(KindWeather, "not configured")
	}
	if in.Weather == nil {
		return pass(KindWeather, "no weather source")
	}

	cond, err := in.Weather(ctx, spec.Lat, spec.Lon)
	if err != nil {
		return Result{Kind: KindWeather, Reason: "lookup failed", Err: err}
	}

	img, ok := spec.Image(cond)
	if !ok {
		return pass(KindWeather, fmt.Sprintf("no image for %s", cond))
	}
	return resolved(KindWeather, wallpaper.Target{Image: img, FillMode: DefaultFillMode}, string(cond))
}

// DayTimeEvaluator selects the day or night image.
type DayTimeEvaluator struct{}

// Kind implements Evaluator.
func (DayTimeEvaluator) Kind() Kind { return KindDayTime }

// Evaluate implements Evaluator.
func (DayTimeEvaluator) Evaluate(_ context.Context, cfg wallpaper.EffectiveOutputConfig, in Inputs) Result {
	spec := cfg.Time
	if spec == nil {
		return pass(KindDayTime, "not configured")
	}
	if spec.DayRange.IsDay(in.Now) {
		return resolved(KindDayTime, wallpaper.Target{Image: spec.DayImage, FillMode: DefaultFillMode}, "day")
	}
	return resolved(KindDayTime, wallpaper.Target{Image: spec.NightImage, FillMode: DefaultFillMode}, "night")
}

// StaticEvaluator selects the fixed background.
type StaticEvaluator struct{}

// Kind implements Evaluator.
func (StaticEvaluator) Kind() Kind { return KindStatic }

// Evaluate implements Evaluator.
func (StaticEvaluator) Evaluate(_ context.Context, cfg wallpaper.EffectiveOutputConfig, _ Inputs) Result {
	spec := cfg.Background
	if spec == nil {
		return pass(KindStatic, "not configured")
	}
	mode := spec.FillMode
	if mode == "" {
		mode = DefaultFillMode
	}
	return resolved(KindStatic, wallpaper.Target{Image: spec.Image, FillMode: mode}, "background")
}
