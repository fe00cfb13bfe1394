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

	"github.com/tombee/wallman/internal/wallpaper"
)

// Decision is the outcome of running a chain for one output.
type Decision struct {
	Output string
	// Target is valid only when Resolved is true.
	Target   wallpaper.Target
	Resolved bool
	// Kind is the trigger that resolved.
	Kind Kind
	// Trail holds every evaluator result in the order they ran.
	Trail []Result
}

// Chain runs evaluators in priority order.
type Chain struct {
	evaluators []Evaluator
}

// NewChain creates a chain from evaluators, highest priority first.
func NewChain(evaluators ...Evaluator) *Chain {
	return &Chain{evaluators: append([]Evaluator(nil), evaluators...)}
}

// DefaultChain returns weather, then day time, then static.
func DefaultChain() *Chain {
	return NewChain(WeatherEvaluator{}, DayTimeEvaluator{}, StaticEvaluator{})
}

// Insert adds e at position, clamped to the chain bounds. Position 0 is
// the highest priority.
func (c *Chain) Insert(position int, e Evaluator) {
	if position < 0 {
		position = 0
	}
	if position > len(c.evaluators) {
		position = len(c.evaluators)
	}
	c.evaluators = append(c.evaluators, nil)
	copy(c.evaluators[position+1:], c.evaluators[position:])
	c.evaluators[position] = e
}

// Kinds returns the evaluator kinds in order.
func (c *Chain) Kinds() []Kind {
	kinds := make([]Kind, len(c.evaluators))
	for i, e := range c.evaluators {
		kinds[i] = e.Kind()
	}
	return kinds
}

// Evaluate runs the chain until an evaluator resolves. When none resolves
// the returned Decision has Resolved false and the output should be left
// as it is.
func (c *Chain) Evaluate(ctx context.Context, cfg wallpaper.EffectiveOutputConfig, in Inputs) Decision {
	d := Decision{Output: cfg.Output}
	if cfg.IsEmpty() {
		return d
	}

	for _, e := range c.evaluators {
		r := e.Evaluate(ctx, cfg, in)
		d.Trail = append(d.Trail, r)
		if r.Resolved {
			d.Resolved = true
			d.Target = r.Target
			d.Kind = r.Kind
			return d
		}
	}
	return d
}
