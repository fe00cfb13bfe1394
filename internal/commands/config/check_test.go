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


package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/tombee/wallman/internal/commands/shared"
	"github.com/tombee/wallman/internal/config"
	"github.com/tombee/wallman/internal/weather"
)

const rulesYAML = `
background:
  "*":
    image: default.png
    fill_mode: fit
time:
  DP-1:
    day: day.png
    night: night.png
    day_range: "8-19"
weather:
  HDMI-A-1:
    lat: 51.5
    lon: -0.12
    images:
      rainy: rain.png
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	t.Setenv("LOG_LEVEL", "")
	shared.SetConfigPathForTest(path)
	shared.SetOutputForTest(false, "")
	t.Cleanup(func() {
		shared.SetConfigPathForTest("")
		shared.SetOutputForTest(false, "")
	})
	return dir
}

func stubFetch(t *testing.T, cond weather.Condition, err error) *int {
	t.Helper()
	calls := 0
	old := newFetch
	newFetch = func(*config.Config) (weather.FetchFunc, error) {
		return func(ctx context.Context, lat, lon float64) (weather.Condition, error) {
			calls++
			return cond, err
		}, nil
	}
	t.Cleanup(func() { newFetch = old })
	return &calls
}

func runJSON(t *testing.T, args ...string) CheckReport {
	t.Helper()
	shared.SetOutputForTest(true, "")
	out, err := execute(t, args...)
	require.NoError(t, err)

	var report CheckReport
	require.NoError(t, json.Unmarshal([]byte(out), &report), out)
	return report
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewConfigCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCheck_Offline(t *testing.T) {
	dir := writeConfig(t, rulesYAML)

	report := runJSON(t, "check", "--outputs", "HDMI-A-1,DP-1", "--at", "21:30", "--offline")

	assert.True(t, report.Valid)
	assert.Equal(t, SourceFlag, report.OutputsFrom)
	assert.Equal(t, 21, report.At.Hour())
	require.Len(t, report.Outputs, 2)

	dp := report.Outputs[0]
	assert.Equal(t, "DP-1", dp.Output)
	require.NotNil(t, dp.Effective.Time)
	require.NotNil(t, dp.Effective.Background)
	assert.Nil(t, dp.Effective.Weather)
	assert.True(t, dp.Decision.Resolved)
	assert.Equal(t, "daytime", dp.Decision.Trigger)
	assert.Equal(t, filepath.Join(dir, "night.png"), dp.Decision.Target.Image)
	assert.Equal(t, "fill", string(dp.Decision.Target.FillMode))

	hdmi := report.Outputs[1]
	assert.Equal(t, "HDMI-A-1", hdmi.Output)
	assert.Equal(t, "static", hdmi.Decision.Trigger)
	assert.Equal(t, filepath.Join(dir, "default.png"), hdmi.Decision.Target.Image)
	assert.Equal(t, "fit", string(hdmi.Decision.Target.FillMode))
	require.Len(t, hdmi.Decision.Trail, 3)
	assert.Equal(t, "weather", hdmi.Decision.Trail[0].Trigger)
	assert.False(t, hdmi.Decision.Trail[0].Resolved)
}

func TestCheck_Weather(t *testing.T) {
	t.Run("condition mapped", func(t *testing.T) {
		dir := writeConfig(t, rulesYAML)
		calls := stubFetch(t, weather.Rainy, nil)

		report := runJSON(t, "check", "--outputs", "HDMI-A-1")
		require.Len(t, report.Outputs, 1)
		assert.Equal(t, "weather", report.Outputs[0].Decision.Trigger)
		assert.Equal(t, filepath.Join(dir, "rain.png"), report.Outputs[0].Decision.Target.Image)
		assert.Equal(t, 1, *calls)
	})

	t.Run("lookup failure falls through", func(t *testing.T) {
		writeConfig(t, rulesYAML)
		stubFetch(t, "", errors.New("api down"))

		report := runJSON(t, "check", "--outputs", "HDMI-A-1")
		d := report.Outputs[0].Decision
		assert.Equal(t, "static", d.Trigger)
		require.NotEmpty(t, d.Trail)
		assert.Contains(t, d.Trail[0].Error, "api down")
	})
}

func TestCheck_CompositorOutputs(t *testing.T) {
	t.Run("listed by command", func(t *testing.T) {
		writeConfig(t, rulesYAML+`
compositor:
  type: command
  command: [sh, -c, 'echo ''[{"name":"eDP-1","active":true},{"name":"DP-9","active":false}]''']
`)
		report := runJSON(t, "check", "--offline")
		assert.Equal(t, SourceCompositor, report.OutputsFrom)
		require.Len(t, report.Outputs, 1)
		assert.Equal(t, "eDP-1", report.Outputs[0].Output)
		assert.Equal(t, "static", report.Outputs[0].Decision.Trigger)
	})

	t.Run("falls back to config names", func(t *testing.T) {
		writeConfig(t, rulesYAML+`
compositor:
  type: command
  command: [sh, -c, 'exit 1']
`)
		report := runJSON(t, "check", "--offline")
		assert.Equal(t, SourceConfig, report.OutputsFrom)
		require.Len(t, report.Warnings, 1)
		var names []string
		for _, o := range report.Outputs {
			names = append(names, o.Output)
		}
		assert.Equal(t, []string{"DP-1", "HDMI-A-1"}, names)
	})
}

func TestCheck_YAML(t *testing.T) {
	writeConfig(t, rulesYAML)

	out, err := execute(t, "check", "--outputs", "DP-1", "--at", "12:00", "--offline", "--yaml")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc), out)
	assert.Equal(t, true, doc["valid"])
	assert.Equal(t, SourceFlag, doc["outputs_from"])
	assert.Contains(t, out, "08:00-19:00")
}

func TestCheck_Human(t *testing.T) {
	writeConfig(t, rulesYAML)

	out, err := execute(t, "check", "--outputs", "DP-1", "--at", "12:00", "--offline")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")
	assert.Contains(t, out, "DP-1")
	assert.Contains(t, out, "[Daytime]")
	assert.Contains(t, out, "day.png")
}

func TestCheck_InvalidConfig(t *testing.T) {
	writeConfig(t, `
time:
  DP-1:
    day: day.png
    night: night.png
    day_range: "9-9"
`)
	_, err := execute(t, "check", "--offline")
	require.Error(t, err)
	assert.Equal(t, shared.ExitFailure, shared.ExitCode(err))
}

func TestParseAt(t *testing.T) {
	now := time.Date(2026, 10, 19, 9, 15, 0, 0, time.Local)

	got, err := parseAt("", now)
	require.NoError(t, err)
	assert.Equal(t, now, got)

	got, err = parseAt("21:30", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 19, 21, 30, 0, 0, time.Local), got)

	got, err = parseAt("2026-01-02T03:04:05Z", now)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))

	_, err = parseAt("25:00", now)
	assert.Error(t, err)
}

func TestConfigPath(t *testing.T) {
	dir := writeConfig(t, rulesYAML)

	out, err := execute(t, "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.yaml")+"\n", out)
}
