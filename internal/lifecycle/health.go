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

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrHealthCheckTimeout is returned when the daemon does not become healthy in time.
var ErrHealthCheckTimeout = errors.New("health check timeout")

// CheckFunc probes the daemon once.
type CheckFunc func(ctx context.Context) error

// HealthChecker polls a CheckFunc with exponential backoff.
type HealthChecker struct {
	check           CheckFunc
	initialInterval time.Duration
	maxInterval     time.Duration
	multiplier      float64
}

// NewHealthChecker creates a checker with 50ms initial interval, 2x
// multiplier and 1s maximum interval.
func NewHealthChecker(check CheckFunc) *HealthChecker {
	return &HealthChecker{
		check:           check,
		initialInterval: 50 * time.Millisecond,
		maxInterval:     time.Second,
		multiplier:      2.0,
	}
}

// WithBackoff configures custom backoff parameters.
func (h *HealthChecker) WithBackoff(initial, max time.Duration, multiplier float64) *HealthChecker {
	h.initialInterval = initial
	h.maxInterval = max
	h.multiplier = multiplier
	return h
}

// WaitUntilHealthy polls until the check succeeds or timeout elapses and
// returns the number of attempts made.
func (h *HealthChecker) WaitUntilHealthy(ctx context.Context, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	interval := h.initialInterval
	attempts := 0
	for {
		attempts++
		err := h.check(ctx)
		if err == nil {
			return attempts, nil
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempts, fmt.Errorf("%w after %d attempts: %v", ErrHealthCheckTimeout, attempts, err)
		case <-timer.C:
		}

		interval = time.Duration(float64(interval) * h.multiplier)
		if interval > h.maxInterval {
			interval = h.maxInterval
		}
	}
}
