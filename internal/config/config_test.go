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
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/wallman/internal/wallpaper"
	"github.com/tombee/wallman/internal/weather"
	wallmanerrors "github.com/tombee/wallman/pkg/errors"
)

// isolate points every XDG lookup at a temp dir and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	t.Setenv("HOME", root)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(root, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(root, "data"))
	t.Setenv("XDG_RUNTIME_DIR", filepath.Join(root, "run"))
	for _, key := range []string{
		"WALLMAN_CONFIG", "WALLMAN_POOL", "WALLMAN_SOCKET", "WALLMAN_PID_FILE", "WALLMAN_DATA_DIR",
		"WALLMAN_POLL_INTERVAL", "WALLMAN_WEATHER_TTL", "WALLMAN_MAX_PARALLEL", "WALLMAN_BACKEND",
		"WALLMAN_COMPOSITOR", "LOG_LEVEL", "LOG_FORMAT", "WALLMAN_TRACING_EXPORTER", "OTEL_EXPORTER_OTLP_ENDPOINT",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	return root
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	root := isolate(t)
	cfg := Default()

	assert.Equal(t, time.Minute, cfg.Daemon.PollInterval)
	assert.Equal(t, 10*time.Minute, cfg.Daemon.WeatherTTL)
	assert.Equal(t, filepath.Join(root, "run", "wallman", "wallman.sock"), cfg.Daemon.SocketPath)
	assert.Equal(t, filepath.Join(root, "data", "wallman", "wallman.pid"), cfg.Daemon.PIDFile)
	assert.Equal(t, CompositorAuto, cfg.Compositor.Type)
	assert.Equal(t, BackendSwaybg, cfg.Backend.Type)
	assert.True(t, cfg.Daemon.Watch())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FullFile(t *testing.T) {
	root := isolate(t)
	pool := filepath.Join(root, "themes", "forest")
	writeFile(t, filepath.Join(pool, "images", "day.png"), "x")
	writeFile(t, filepath.Join(pool, "night.png"), "x")

	path := writeFile(t, filepath.Join(root, "config", "wallman", "config.yaml"), `
pool: {{POOL}}
background:
  "*":
    image: /abs/default.png
    fill_mode: Center
time:
  DP-1:
    day: day.png
    night: night.png
    day_range: "22-6"
weather:
  "*":
    lat: 51.5
    lon: -0.12
    images:
      sunny: day.png
      raining: /abs/rain.png
daemon:
  poll_interval: 30s
  weather_ttl: 15m
  watch_config: false
compositor:
  type: command
  command: [hyprctl, monitors, -j]
backend:
  type: command
  command: swww img -o {output} {image}
log:
  level: debug
  format: json
`)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	writeFile(t, path, strings.ReplaceAll(string(content), "{{POOL}}", pool))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path())
	assert.Equal(t, 30*time.Second, cfg.Daemon.PollInterval)
	assert.Equal(t, 15*time.Minute, cfg.Daemon.WeatherTTL)
	assert.Equal(t, 10*time.Second, cfg.Daemon.WeatherTimeout, "defaults fill gaps")
	assert.False(t, cfg.Daemon.Watch())
	assert.Equal(t, []string{"hyprctl", "monitors", "-j"}, cfg.Compositor.Command)
	assert.Equal(t, "debug", cfg.Log.Level)

	set, err := cfg.WallpaperSet()
	require.NoError(t, err)

	bg := set.Background[wallpaper.Wildcard]
	assert.Equal(t, "/abs/default.png", bg.Image)
	assert.Equal(t, wallpaper.FillModeCenter, bg.FillMode)

	tm := set.Time["DP-1"]
	assert.Equal(t, filepath.Join(pool, "images", "day.png"), tm.DayImage, "images/ sub-folder wins when the file exists")
	assert.Equal(t, filepath.Join(pool, "night.png"), tm.NightImage)
	assert.Equal(t, wallpaper.DayRange{Start: wallpaper.Clock(22, 0), End: wallpaper.Clock(6, 0)}, tm.DayRange)

	w := set.Weather[wallpaper.Wildcard]
	assert.Equal(t, 51.5, w.Lat)
	assert.Equal(t, filepath.Join(pool, "images", "day.png"), w.Images[weather.Clear])
	assert.Equal(t, "/abs/rain.png", w.Images[weather.Rainy])
}

func TestLoad_RelativeToConfigDirWithoutPool(t *testing.T) {
	root := isolate(t)
	path := writeFile(t, filepath.Join(root, "cfg", "config.yaml"), `
background:
  "*": {image: walls/a.jpg}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	set, err := cfg.WallpaperSet()
	require.NoError(t, err)

	bg := set.Background[wallpaper.Wildcard]
	assert.Equal(t, filepath.Join(root, "cfg", "walls", "a.jpg"), bg.Image)
	assert.Equal(t, wallpaper.FillModeFill, bg.FillMode, "fill is the default mode")
}

func TestLoad_DefaultDayRange(t *testing.T) {
	root := isolate(t)
	path := writeFile(t, filepath.Join(root, "config.yaml"), `
time:
  "*": {day: /d.png, night: /n.png}
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	set, err := cfg.WallpaperSet()
	require.NoError(t, err)
	assert.Equal(t, wallpaper.DefaultDayRange, set.Time[wallpaper.Wildcard].DayRange)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantKey string
	}{
		{
			name:    "duplicate output key",
			yaml:    "background:\n  DP-1: {image: /a.png}\n  DP-1: {image: /b.png}\n",
			wantKey: "config_file",
		},
		{
			name:    "keys collide after trimming",
			yaml:    "background:\n  DP-1: {image: /a.png}\n  \" DP-1\": {image: /b.png}\n",
			wantKey: "background",
		},
		{
			name:    "alias collides with condition",
			yaml:    "weather:\n  \"*\": {lat: 1, lon: 1, images: {sunny: /a.png, clear: /b.png}}\n",
			wantKey: "weather.*.images",
		},
		{
			name:    "unknown condition",
			yaml:    "weather:\n  \"*\": {lat: 1, lon: 1, images: {foggy: /a.png}}\n",
			wantKey: "weather.*.images",
		},
		{
			name:    "bad day range",
			yaml:    "time:\n  DP-1: {day: /d, night: /n, day_range: \"8-8\"}\n",
			wantKey: "time.DP-1.day_range",
		},
		{
			name:    "bad fill mode",
			yaml:    "background:\n  \"*\": {image: /a.png, fill_mode: zoom}\n",
			wantKey: "background.*.fill_mode",
		},
		{
			name:    "missing image",
			yaml:    "background:\n  \"*\": {fill_mode: fit}\n",
			wantKey: "background.*",
		},
		{
			name:    "missing pool",
			yaml:    "pool: /does/not/exist\nbackground:\n  \"*\": {image: a.png}\n",
			wantKey: "pool",
		},
		{
			name:    "bad backend",
			yaml:    "backend: {type: feh}\n",
			wantKey: "backend.type",
		},
		{
			name:    "malformed yaml",
			yaml:    "background: [\n",
			wantKey: "config_file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := isolate(t)
			path := writeFile(t, filepath.Join(root, "config.yaml"), tt.yaml)

			_, err := Load(path)
			require.Error(t, err)

			var ce *wallmanerrors.ConfigError
			require.True(t, wallmanerrors.As(err, &ce), "want ConfigError, got %T: %v", err, err)
			assert.Equal(t, tt.wantKey, ce.Key, "error: %v", err)
		})
	}
}

func TestValidate_CollectsProblems(t *testing.T) {
	isolate(t)
	cfg := Default()
	cfg.Daemon.PollInterval = 0
	cfg.Daemon.MaxParallel = 0
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)

	var ce *wallmanerrors.ConfigError
	require.True(t, wallmanerrors.As(err, &ce))
	assert.Equal(t, "validation", ce.Key)
	assert.Contains(t, err.Error(), "daemon.poll_interval")
	assert.Contains(t, err.Error(), "daemon.max_parallel")
	assert.Contains(t, err.Error(), "log.format")
}

func TestLoad_EnvOverrides(t *testing.T) {
	root := isolate(t)
	path := writeFile(t, filepath.Join(root, "config.yaml"), "daemon:\n  poll_interval: 2m\n")

	t.Setenv("WALLMAN_POLL_INTERVAL", "45s")
	t.Setenv("WALLMAN_SOCKET", "/tmp/custom.sock")
	t.Setenv("WALLMAN_BACKEND", "COMMAND")
	t.Setenv("LOG_LEVEL", "WARN")

	cfg, err := Load(path)
	require.Error(t, err, "command backend without a template must fail validation")

	os.Unsetenv("WALLMAN_BACKEND")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Daemon.PollInterval)
	assert.Equal(t, "/tmp/custom.sock", cfg.Daemon.SocketPath)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_DotEnv(t *testing.T) {
	root := isolate(t)
	pool := filepath.Join(root, "pool")
	require.NoError(t, os.MkdirAll(pool, 0o755))

	dir := filepath.Join(root, "cfg")
	writeFile(t, filepath.Join(dir, ".env"), "WALLMAN_POOL="+pool+"\n")
	path := writeFile(t, filepath.Join(dir, "config.yaml"), "background:\n  \"*\": {image: a.png}\n")
	t.Cleanup(func() { os.Unsetenv("WALLMAN_POOL") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, pool, cfg.Pool)

	set, err := cfg.WallpaperSet()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(pool, "a.png"), set.Background[wallpaper.Wildcard].Image)
}

func TestFind(t *testing.T) {
	root := isolate(t)

	_, err := Find()
	var nf *wallmanerrors.NotFoundError
	assert.True(t, wallmanerrors.As(err, &nf))

	user := writeFile(t, filepath.Join(root, "config", "wallman", "config.yaml"), "{}\n")
	found, err := Find()
	require.NoError(t, err)
	assert.Equal(t, user, found)

	explicit := writeFile(t, filepath.Join(root, "elsewhere.yaml"), "{}\n")
	t.Setenv("WALLMAN_CONFIG", explicit)
	found, err = Find()
	require.NoError(t, err)
	assert.Equal(t, explicit, found)
}

func TestLoad_NoFile(t *testing.T) {
	isolate(t)
	_, err := Load("")
	var ce *wallmanerrors.ConfigError
	require.True(t, wallmanerrors.As(err, &ce))
	assert.Equal(t, "config_file", ce.Key)
}

func TestExpandHome(t *testing.T) {
	root := isolate(t)
	for in, want := range map[string]string{
		"~":         root,
		"~/a/b.png": filepath.Join(root, "a", "b.png"),
		"/abs.png":  "/abs.png",
		"rel.png":   "rel.png",
		"~user/x":   "~user/x",
		"":          "",
	} {
		got, err := expandHome(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
}
