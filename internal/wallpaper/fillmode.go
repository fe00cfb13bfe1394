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
	"strings"
)

// FillMode controls how an image is scaled onto an output. It is passed to
// the renderer unchanged.
type FillMode string

// Supported fill modes.
const (
	FillModeFill    FillMode = "fill"
	FillModeFit     FillMode = "fit"
	FillModeStretch FillMode = "stretch"
	FillModeCenter  FillMode = "center"
	FillModeTile    FillMode = "tile"
)

// FillModes lists every supported mode.
var FillModes = []FillMode{FillModeFill, FillModeFit, FillModeStretch, FillModeCenter, FillModeTile}

// ParseFillMode parses a fill mode case-insensitively.
func ParseFillMode(s string) (FillMode, error) {
	m := FillMode(strings.ToLower(strings.TrimSpace(s)))
	if m.Valid() {
		return m, nil
	}
	return "", fmt.Errorf("unknown fill mode %q (want one of fill, fit, stretch, center, tile)", s)
}

// Valid reports whether m is a supported mode.
func (m FillMode) Valid() bool {
	for _, known := range FillModes {
		if m == known {
			return true
		}
	}
	return false
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *FillMode) UnmarshalText(text []byte) error {
	parsed, err := ParseFillMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
