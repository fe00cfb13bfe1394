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
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// templateHeader prefixes files written by Save.
const templateHeader = `# wallman configuration
#
# Wallpaper rules are keyed by output name (e.g. DP-1) or "*" for every
# other output. For each output the first matching rule wins, in the
# order weather, time, background:
#
# background:
#   "*":
#     image: default.png
#     fill_mode: fill        # fill, fit, stretch, center or tile
# time:
#   DP-1:
#     day: day.png
#     night: night.png
#     day_range: "8-19"
# weather:
#   "*":
#     lat: 51.5
#     lon: -0.12
#     images:
#       clear: clear.png
#       rainy: rain.png
#
# Relative image paths are resolved against pool (or pool/images).

`

// Template returns the configuration written by `wallman config init`:
// the defaults without the machine-specific daemon paths, which are
// derived again at load time.
func Template() *Config {
	cfg := Default()
	cfg.Daemon.SocketPath = ""
	cfg.Daemon.PIDFile = ""
	cfg.Daemon.DataDir = ""
	return cfg
}

// Save writes cfg to path as YAML with a commented header. The file is
// written to a temporary file and renamed into place.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(templateHeader)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}
