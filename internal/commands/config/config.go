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


// Package config implements the `wallman config` command group.
package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tombee/wallman/internal/commands/shared"
	"github.com/tombee/wallman/internal/config"
)

// NewConfigCommand creates the config command with subcommands
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create and inspect the wallman configuration",
		Long: `Create and inspect the wallman configuration.

Subcommands:
  init  - Write a default config file
  check - Validate the config and show what each output would display
  path  - Show the config file location`,
	}

	cmd.AddCommand(NewInitCommand())
	cmd.AddCommand(NewCheckCommand())
	cmd.AddCommand(newConfigPathCommand())

	return cmd
}

// newConfigPathCommand creates the 'config path' subcommand
func newConfigPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show config file location",
		Long: `Display the configuration file wallman would load.

The search order is --config, $WALLMAN_CONFIG, the user config directory
and then /etc/wallman/config.yaml.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := shared.GetConfigPath()
			if path == "" {
				found, err := config.Find()
				if err != nil {
					return err
				}
				path = found
			}
			if shared.GetJSON() {
				return shared.EmitJSON(cmd.Context(), cmd.OutOrStdout(), map[string]string{"path": path})
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}
