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


/*
Package cli provides the root command and global flags for the wallman CLI.

This package creates the root Cobra command and handles global concerns like
version information, persistent flags, and error handling. Individual commands
are implemented in the internal/commands subpackages.

# Command Tree

The CLI is organized as:

	wallman
	├── daemon        Daemon control
	│   ├── start     Start in the background (or --foreground)
	│   ├── stop      Stop gracefully
	│   ├── restart   Stop then start
	│   ├── status    State and current wallpapers
	│   ├── reload    Re-read wallpaper rules
	│   └── history   Recently applied wallpapers
	├── config        Configuration
	│   ├── init      Write a default config file
	│   ├── check     Validate and preview
	│   └── path      Show config file location
	├── version       Show version
	└── help          Show help

# Usage

From main.go:

	cli.SetVersion(version, commit, date)
	rootCmd := cli.NewRootCommand()
	// ... add commands ...
	if err := rootCmd.Execute(); err != nil {
	    cli.HandleExitError(err)
	}

# Global Flags

All commands inherit these flags:

	--verbose, -v    Enable verbose output
	--quiet, -q      Suppress non-error output
	--json           Output in JSON format
	--jq             Filter JSON output (implies --json)
	--config         Path to config file

# Exit Codes

	0  success
	1  the daemon is already running
	2  the daemon is not running
	3  any other failure
*/
package cli
