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

// Package outputs lists the display outputs connected to the compositor
// and tracks how that set changes between refreshes.
package outputs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Output is one display output reported by the compositor.
type Output struct {
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// Lister queries the compositor for its outputs.
type Lister interface {
	List(ctx context.Context) ([]Output, error)
}

// ListFunc adapts a function to Lister.
type ListFunc func(ctx context.Context) ([]Output, error)

// List implements Lister.
func (f ListFunc) List(ctx context.Context) ([]Output, error) { return f(ctx) }

var (
	// ErrCompositorUnavailable means the compositor could not be reached:
	// no socket, connection refused or closed, command missing, or timeout.
	ErrCompositorUnavailable = errors.New("compositor unavailable")

	// ErrMalformedResponse means the compositor replied with something that
	// could not be parsed.
	ErrMalformedResponse = errors.New("malformed compositor response")
)

// CompositorError reports a failed output query. Kind is
// ErrCompositorUnavailable or ErrMalformedResponse.
type CompositorError struct {
	Source string
	Kind   error
	Cause  error
}

// Error implements the error interface.
func (e *CompositorError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v: %v", e.Source, e.Kind, e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Source, e.Kind)
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (e *CompositorError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// ErrorType implements errors.ErrorClassifier.
func (e *CompositorError) ErrorType() string { return "compositor" }

// IsRetryable implements errors.ErrorClassifier.
func (e *CompositorError) IsRetryable() bool {
	return errors.Is(e.Kind, ErrCompositorUnavailable)
}

func unavailable(source string, cause error) error {
	return &CompositorError{Source: source, Kind: ErrCompositorUnavailable, Cause: cause}
}

func malformed(source string, cause error) error {
	return &CompositorError{Source: source, Kind: ErrMalformedResponse, Cause: cause}
}

// rawOutput covers the output objects of sway (active), hyprland
// (disabled) and wlr-randr (enabled).
type rawOutput struct {
	Name     string `json:"name"`
	Active   *bool  `json:"active"`
	Enabled  *bool  `json:"enabled"`
	Disabled *bool  `json:"disabled"`
}

func (r rawOutput) active() bool {
	switch {
	case r.Active != nil:
		return *r.Active
	case r.Enabled != nil:
		return *r.Enabled
	case r.Disabled != nil:
		return !*r.Disabled
	default:
		return true
	}
}

// ParseOutputs decodes a JSON array of output objects.
func ParseOutputs(data []byte) ([]Output, error) {
	var raw []rawOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make([]Output, 0, len(raw))
	for i, r := range raw {
		if r.Name == "" {
			return nil, fmt.Errorf("output %d has no name", i)
		}
		out = append(out, Output{Name: r.Name, Active: r.active()})
	}
	return out, nil
}

// ActiveNames returns the sorted, de-duplicated names of active outputs.
func ActiveNames(outs []Output) []string {
	seen := make(map[string]struct{}, len(outs))
	names := make([]string, 0, len(outs))
	for _, o := range outs {
		if !o.Active {
			continue
		}
		if _, dup := seen[o.Name]; dup {
			continue
		}
		seen[o.Name] = struct{}{}
		names = append(names, o.Name)
	}
	sort.Strings(names)
	return names
}
