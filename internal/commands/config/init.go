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

	"github.com/spf13/cobra"

	"github.com/tombee/wallman/internal/commands/shared"
	"github.com/tombee/wallman/internal/config"
)

// InitResult is the JSON form of `config init`.
type InitResult struct {
	Path    string `json:"path"`
	Created bool   `json:"created"`
}

// NewInitCommand creates the 'config init' subcommand.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Long: `Write a configuration file with the default daemon settings and an
example of every wallpaper rule.

The file is written to --config when given, otherwise $WALLMAN_CONFIG or
the user config path. An existing file is left untouched unless --force
is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")

	return cmd
}

func runInit(cmd *cobra.Command, force bool) error {
	path, err := initPath()
	if err != nil {
		return err
	}

	result := InitResult{Path: path}
	_, statErr := os.Stat(path)
	exists := statErr == nil

	if !exists || force {
		if err := config.Save(path, config.Template()); err != nil {
			return &shared.ExitError{Code: shared.ExitFailure, Message: "could not write config", Cause: err}
		}
		result.Created = true
	}

	if shared.GetJSON() {
		return shared.EmitJSON(cmd.Context(), cmd.OutOrStdout(), result)
	}

	out := cmd.OutOrStdout()
	if !result.Created {
		fmt.Fprintf(out, "Config already exists at %s\n", path)
		return nil
	}
	if !shared.GetQuiet() {
		fmt.Fprintln(out, shared.RenderOK("Config initialised at "+path))
	}
	return nil
}

// initPath picks where init writes: the --config flag, $WALLMAN_CONFIG,
// then the user config path.
func initPath() (string, error) {
	if p := shared.GetConfigPath(); p != "" {
		return p, nil
	}
	if p := os.Getenv("WALLMAN_CONFIG"); p != "" {
		return p, nil
	}
	return config.ConfigPath()
}
