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

package weather

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyWMO(t *testing.T) {
	tests := []struct {
		codes []int
		want  Condition
	}{
		{[]int{0}, Clear},
		{[]int{1, 2, 3, 45, 48, 51, 53, 55, 56, 57}, Cloudy},
		{[]int{61, 63, 65, 66, 67, 80, 81, 82}, Rainy},
		{[]int{71, 73, 75, 77, 85, 86}, Snowy},
		{[]int{95, 96, 99}, Stormy},
		{[]int{-1, 4, 100, 1000}, Cloudy},
	}

	for _, tt := range tests {
		for _, code := range tt.codes {
			assert.Equal(t, tt.want, ClassifyWMO(code), "code %d", code)
		}
	}
}

func TestParseCondition(t *testing.T) {
	tests := map[string]Condition{
		"clear":     Clear,
		"Cloudy":    Cloudy,
		" rainy ":   Rainy,
		"sunny":     Clear,
		"raining":   Rainy,
		"snowing":   Snowy,
		"lighting":  Stormy,
		"lightning": Stormy,
	}
	for in, want := range tests {
		got, err := ParseCondition(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseCondition("foggy")
	assert.Error(t, err)
}
