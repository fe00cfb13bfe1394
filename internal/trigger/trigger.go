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

// Package trigger picks the wallpaper for one output by running an ordered
// chain of evaluators. The first evaluator that resolves wins; the others
// pass and explain why.
package trigger

import (
	"context"
	"time"

	"github.com/tombee/wallman/internal/wallpaper"
	"github.com/tombee/wallman/internal/weather"
)

// DefaultFillMode is used for images chosen by rules that carry no fill
// mode of their own (time and weather).
const DefaultFillMode = wallpaper.FillModeFill

// Kind names a trigger.
type Kind string

// Built-in trigger kinds, highest priority first.
const (
	KindWeather Kind = "weather"
	KindDayTime Kind = "daytime"
	KindStatic  Kind = "static"
)

// LookupFunc returns the current weather at a location.
type LookupFunc func(ctx context.Context, lat, lon float64) (weather.Condition, error)

// Inputs are the external facts an evaluation depends on.
type Inputs struct {
	// Now is the local time of the evaluation.
	Now time.Time
	// Weather looks up current conditions. A nil lookup makes weather
	// rules pass.
	Weather LookupFunc
}

// Result is the outcome of one evaluator.
type Result struct {
	Kind     Kind
	Resolved bool
	Target   wallpaper.Target
	// Reason explains a pass, or adds detail to a resolution.
	Reason string
	// Err is set when the evaluator passed because a dependency failed.
	Err error
}

func resolved(kind Kind, target wallpaper.Target, reason string) Result {
	return Result{Kind: kind, Resolved: true, Target: target, Reason: reason}
}

func pass(kind Kind, reason string) Result {
	return Result{Kind: kind, Reason: reason}
}

// Evaluator is one trigger in the chain.
type Evaluator interface {
	Kind() Kind
	Evaluate(ctx context.Context, cfg wallpaper.EffectiveOutputConfig, in Inputs) Result
}
