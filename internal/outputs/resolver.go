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

package outputs

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/tombee/wallman/internal/log"
	wallmanerrors "github.com/tombee/wallman/pkg/errors"
)

// DefaultTimeout bounds a single compositor query.
const DefaultTimeout = 5 * time.Second

// Topology is the set of active outputs after a refresh, with the
// differences from the previous successful refresh.
type Topology struct {
	Outputs []string
	Added   []string
	Removed []string
}

// Changed reports whether any output appeared or disappeared.
func (t Topology) Changed() bool {
	return len(t.Added) > 0 || len(t.Removed) > 0
}

// Resolver tracks the output topology across refreshes.
type Resolver struct {
	lister  Lister
	timeout time.Duration
	logger  *slog.Logger

	mu   sync.Mutex
	last []string
}

// NewResolver creates a Resolver. A non-positive timeout uses DefaultTimeout.
func NewResolver(lister Lister, timeout time.Duration, logger *slog.Logger) *Resolver {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Resolver{
		lister:  lister,
		timeout: timeout,
		logger:  log.WithComponent(logger, "outputs"),
	}
}

// Refresh queries the compositor and diffs the result against the
// previous successful refresh. On error the previous topology is kept.
func (r *Resolver) Refresh(ctx context.Context) (Topology, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	outs, err := r.lister.List(ctx)
	if err != nil {
		return Topology{}, r.classify(ctx, err)
	}
	names := ActiveNames(outs)

	r.mu.Lock()
	topo := Topology{
		Outputs: names,
		Added:   difference(names, r.last),
		Removed: difference(r.last, names),
	}
	r.last = names
	r.mu.Unlock()

	if topo.Changed() {
		r.logger.Info("output topology changed",
			"outputs", topo.Outputs,
			"added", topo.Added,
			"removed", topo.Removed,
			log.DurationKey, time.Since(start).Milliseconds(),
		)
	}
	return topo, nil
}

// Current returns the outputs seen by the last successful refresh.
func (r *Resolver) Current() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.last)
}

func (r *Resolver) classify(ctx context.Context, err error) error {
	source, cause := "compositor", err
	var ce *CompositorError
	if errors.As(err, &ce) {
		source, cause = ce.Source, ce.Cause
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return unavailable(source, r.timeoutError(cause))
	}
	if ce != nil {
		return err
	}
	return unavailable(source, err)
}

func (r *Resolver) timeoutError(cause error) error {
	return &wallmanerrors.TimeoutError{
		Operation: "compositor query",
		Duration:  r.timeout,
		Cause:     cause,
	}
}

// difference returns the elements of a not in b. Both are sorted.
func difference(a, b []string) []string {
	var out []string
	for _, s := range a {
		if _, found := slices.BinarySearch(b, s); !found {
			out = append(out, s)
		}
	}
	return out
}
