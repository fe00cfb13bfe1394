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
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tombee/wallman/internal/wallpaper"
	"github.com/tombee/wallman/internal/weather"
	wallmanerrors "github.com/tombee/wallman/pkg/errors"
)

// WallpaperSet converts the wallpaper rules into a validated ConfigSet.
// Relative image paths are resolved against the theme pool, or against the
// config file's directory when no pool is set.
func (c *Config) WallpaperSet() (*wallpaper.ConfigSet, error) {
	base, err := c.imageBase()
	if err != nil {
		return nil, err
	}

	set := &wallpaper.ConfigSet{
		Background: make(map[wallpaper.OutputKey]wallpaper.BackgroundSpec),
		Time:       make(map[wallpaper.OutputKey]wallpaper.TimeSpec),
		Weather:    make(map[wallpaper.OutputKey]wallpaper.WeatherSpec),
	}

	bgKeys, err := canonicalKeys("background", c.Background)
	if err != nil {
		return nil, err
	}
	for _, raw := range sortedStrings(bgKeys) {
		key := bgKeys[raw]
		entry := c.Background[raw]
		mode := wallpaper.FillModeFill
		if entry.FillMode != "" {
			mode, err = wallpaper.ParseFillMode(entry.FillMode)
			if err != nil {
				return nil, &wallmanerrors.ConfigError{Key: fmt.Sprintf("background.%s.fill_mode", key), Reason: err.Error()}
			}
		}
		set.Background[key] = wallpaper.BackgroundSpec{
			Image:    base.resolve(entry.Image),
			FillMode: mode,
		}
	}

	timeKeys, err := canonicalKeys("time", c.Time)
	if err != nil {
		return nil, err
	}
	for _, raw := range sortedStrings(timeKeys) {
		key := timeKeys[raw]
		entry := c.Time[raw]
		dr := wallpaper.DefaultDayRange
		if entry.DayRange != "" {
			dr, err = wallpaper.ParseDayRange(entry.DayRange)
			if err != nil {
				return nil, &wallmanerrors.ConfigError{Key: fmt.Sprintf("time.%s.day_range", key), Reason: err.Error()}
			}
		}
		set.Time[key] = wallpaper.TimeSpec{
			DayImage:   base.resolve(entry.Day),
			NightImage: base.resolve(entry.Night),
			DayRange:   dr,
		}
	}

	weatherKeys, err := canonicalKeys("weather", c.Weather)
	if err != nil {
		return nil, err
	}
	for _, raw := range sortedStrings(weatherKeys) {
		key := weatherKeys[raw]
		entry := c.Weather[raw]
		images := make(map[weather.Condition]string, len(entry.Images))
		for _, name := range sortedStrings(entry.Images) {
			cond, err := weather.ParseCondition(name)
			if err != nil {
				return nil, &wallmanerrors.ConfigError{Key: fmt.Sprintf("weather.%s.images", key), Reason: err.Error()}
			}
			if _, dup := images[cond]; dup {
				return nil, &wallmanerrors.ConfigError{
					Key:    fmt.Sprintf("weather.%s.images", key),
					Reason: fmt.Sprintf("condition %s is mapped more than once", cond),
				}
			}
			images[cond] = base.resolve(entry.Images[name])
		}
		set.Weather[key] = wallpaper.WeatherSpec{Lat: entry.Lat, Lon: entry.Lon, Images: images}
	}

	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}

// canonicalKeys maps each raw YAML key to its trimmed OutputKey and rejects
// keys that are empty or collide after trimming.
func canonicalKeys[V any](group string, m map[string]V) (map[string]wallpaper.OutputKey, error) {
	out := make(map[string]wallpaper.OutputKey, len(m))
	seen := make(map[wallpaper.OutputKey]string, len(m))
	for _, raw := range sortedStrings(m) {
		key := wallpaper.OutputKey(strings.TrimSpace(raw))
		if key == "" {
			return nil, &wallmanerrors.ConfigError{Key: group, Reason: "empty output name"}
		}
		if prev, dup := seen[key]; dup {
			return nil, &wallmanerrors.ConfigError{
				Key:    group,
				Reason: fmt.Sprintf("output %q is defined twice (%q and %q)", key, prev, raw),
			}
		}
		seen[key] = raw
		out[raw] = key
	}
	return out, nil
}

func sortedStrings[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// imageBase describes where relative image paths live.
type imageBase struct {
	dir    string
	images string
}

func (c *Config) imageBase() (imageBase, error) {
	if c.Pool == "" {
		if c.path == "" {
			return imageBase{}, nil
		}
		return imageBase{dir: filepath.Dir(c.path)}, nil
	}

	pool, err := expandHome(c.Pool)
	if err != nil {
		return imageBase{}, &wallmanerrors.ConfigError{Key: "pool", Reason: "invalid path", Cause: err}
	}
	if !filepath.IsAbs(pool) && c.path != "" {
		pool = filepath.Join(filepath.Dir(c.path), pool)
	}
	info, err := os.Stat(pool)
	if err != nil {
		return imageBase{}, &wallmanerrors.ConfigError{Key: "pool", Reason: fmt.Sprintf("theme pool %s is not accessible", pool), Cause: err}
	}
	if !info.IsDir() {
		return imageBase{}, &wallmanerrors.ConfigError{Key: "pool", Reason: fmt.Sprintf("theme pool %s is not a directory", pool)}
	}
	return imageBase{dir: pool, images: filepath.Join(pool, "images")}, nil
}

// resolve returns p unchanged when it is empty or absolute. Otherwise it
// prefers <pool>/images/<p> when that file exists and falls back to
// <base>/<p>.
func (b imageBase) resolve(p string) string {
	if p == "" {
		return ""
	}
	if expanded, err := expandHome(p); err == nil {
		p = expanded
	}
	if filepath.IsAbs(p) {
		return p
	}
	if b.images != "" {
		candidate := filepath.Join(b.images, p)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	if b.dir == "" {
		return p
	}
	return filepath.Join(b.dir, p)
}
