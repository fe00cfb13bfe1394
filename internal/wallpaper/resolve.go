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

// Resolve merges set into one EffectiveOutputConfig per output. Each field
// group is chosen independently: the output's own entry if there is one,
// otherwise the wildcard entry, otherwise nothing. Image paths are passed
// through as given.
func Resolve(outputs []string, set *ConfigSet) map[string]EffectiveOutputConfig {
	result := make(map[string]EffectiveOutputConfig, len(outputs))
	for _, out := range outputs {
		eff := EffectiveOutputConfig{Output: out}
		if set != nil {
			eff.Background = pick(set.Background, out)
			eff.Time = pick(set.Time, out)
			eff.Weather = pick(set.Weather, out)
		}
		result[out] = eff
	}
	return result
}

// ResolveOne is Resolve for a single output.
func ResolveOne(output string, set *ConfigSet) EffectiveOutputConfig {
	return Resolve([]string{output}, set)[output]
}

func pick[V any](group map[OutputKey]V, output string) *V {
	if v, ok := group[OutputKey(output)]; ok {
		return &v
	}
	if v, ok := group[Wildcard]; ok {
		return &v
	}
	return nil
}
