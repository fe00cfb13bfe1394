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

// Package wallpaper holds the configuration model for per-output wallpaper
// rules and merges the wildcard entry with output-specific overrides.
//
// A ConfigSet has three independent field groups (background, time and
// weather), each keyed by an output name or by the wildcard "*". Resolve
// turns a ConfigSet and the list of connected outputs into one
// EffectiveOutputConfig per output. For each group, a concrete entry
// replaces the wildcard entry in full; fields are never mixed between the
// two.
package wallpaper
