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


package runtime

import (
	"maps"
	"time"

	"github.com/tombee/wallman/internal/weather"
)

// Status is a point-in-time view of the runtime.
type Status struct {
	State       State      `json:"state"`
	PID         int        `json:"pid,omitempty"`
	Version     string     `json:"version,omitempty"`
	Backend     string     `json:"backend"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	NextCycleAt *time.Time `json:"next_cycle_at,omitempty"`
	Cycles      int64      `json:"cycles"`

	LastCycle       *CycleStatus `json:"last_cycle,omitempty"`
	LastReloadAt    *time.Time   `json:"last_reload_at,omitempty"`
	LastReloadError string       `json:"last_reload_error,omitempty"`

	// Outputs is keyed by output name and holds only connected outputs.
	Outputs map[string]OutputStatus `json:"outputs"`

	Weather *weather.Stats `json:"weather,omitempty"`
}

// Uptime returns how long the runtime has been running at now.
func (s Status) Uptime(now time.Time) time.Duration {
	if s.StartedAt == nil || s.State == StateStopped {
		return 0
	}
	return now.Sub(*s.StartedAt)
}

// CycleStatus summarises one evaluation cycle.
type CycleStatus struct {
	ID         string    `json:"id"`
	At         time.Time `json:"at"`
	DurationMS int64     `json:"duration_ms"`
	Applied    int       `json:"applied"`
	Unchanged  int       `json:"unchanged"`
	Unresolved int       `json:"unresolved"`
	Failed     int       `json:"failed"`
	// Error is set when the cycle was skipped.
	Error string `json:"error,omitempty"`
}

// OutputStatus is the last known state of one output.
type OutputStatus struct {
	Name      string     `json:"name"`
	Trigger   string     `json:"trigger,omitempty"`
	Image     string     `json:"image,omitempty"`
	FillMode  string     `json:"fill_mode,omitempty"`
	AppliedAt *time.Time `json:"applied_at,omitempty"`
	Resolved  bool       `json:"resolved"`
	LastError string     `json:"last_error,omitempty"`
}

// Status returns a snapshot without waiting for an in-flight cycle.
func (r *Runtime) Status() Status {
	r.mu.RLock()
	s := r.status
	s.Outputs = maps.Clone(r.status.Outputs)
	if r.status.LastCycle != nil {
		c := *r.status.LastCycle
		s.LastCycle = &c
	}
	r.mu.RUnlock()

	// The backend may have dropped an image since the last cycle, e.g. a
	// swaybg child exited and the engine forgot the output.
	applied := r.opts.Engine.Snapshot()
	for name, st := range s.Outputs {
		if st.Image == "" {
			continue
		}
		if _, ok := applied[name]; !ok {
			st.Trigger, st.Image, st.FillMode, st.AppliedAt = "", "", "", nil
			s.Outputs[name] = st
		}
	}

	if r.opts.Cache != nil {
		stats := r.opts.Cache.Stats()
		s.Weather = &stats
	}
	return s
}

// finishSkipped publishes a cycle that never reached the outputs. The
// per-output state is kept.
func (r *Runtime) finishSkipped(summary CycleStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.Cycles++
	r.status.LastCycle = &summary
}

// finish publishes a completed cycle. Outputs not in connected are dropped.
func (r *Runtime) finish(summary CycleStatus, connected []string, results []outputResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.status.Cycles++
	r.status.LastCycle = &summary

	next := make(map[string]OutputStatus, len(connected))
	for _, name := range connected {
		next[name] = r.status.Outputs[name]
	}
	for _, res := range results {
		st := next[res.output]
		st.Name = res.output
		st.Resolved = res.decision.Resolved
		switch res.outcome {
		case outcomeApplied:
			at := summary.At
			st.Trigger = string(res.decision.Kind)
			st.Image = res.decision.Target.Image
			st.FillMode = string(res.decision.Target.FillMode)
			st.AppliedAt = &at
			st.LastError = ""
		case outcomeUnchanged:
			// Trigger stays with the one that applied the image.
			st.LastError = ""
		case outcomeFailed:
			st.LastError = errString(res.err)
		}
		next[res.output] = st
	}
	r.status.Outputs = next
}
