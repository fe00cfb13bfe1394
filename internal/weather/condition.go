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

// Package weather classifies current weather into a small set of
// conditions and caches lookups per location.
package weather

import (
	"fmt"
	"strings"
)

// Condition is a coarse weather classification used to pick an image.
type Condition string

// Known conditions.
const (
	Clear  Condition = "clear"
	Cloudy Condition = "cloudy"
	Rainy  Condition = "rainy"
	Snowy  Condition = "snowy"
	Stormy Condition = "stormy"
)

// Conditions lists every known condition in display order.
var Conditions = []Condition{Clear, Cloudy, Rainy, Snowy, Stormy}

// aliases maps legacy config keys onto conditions.
var aliases = map[string]Condition{
	"sunny":     Clear,
	"raining":   Rainy,
	"snowing":   Snowy,
	"lighting":  Stormy,
	"lightning": Stormy,
}

// ParseCondition accepts a condition name or one of its aliases,
// case-insensitively.
func ParseCondition(s string) (Condition, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for _, c := range Conditions {
		if string(c) == key {
			return c, nil
		}
	}
	if c, ok := aliases[key]; ok {
		return c, nil
	}
	return "", fmt.Errorf("unknown weather condition %q", s)
}

// ClassifyWMO maps a WMO weather interpretation code onto a Condition.
// Unknown codes are treated as cloudy.
func ClassifyWMO(code int) Condition {
	switch code {
	case 0:
		return Clear
	case 1, 2, 3, 45, 48, 51, 53, 55, 56, 57:
		return Cloudy
	case 61, 63, 65, 66, 67, 80, 81, 82:
		return Rainy
	case 71, 73, 75, 77, 85, 86:
		return Snowy
	case 95, 96, 99:
		return Stormy
	default:
		return Cloudy
	}
}
