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


package main

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/pflag"

	"github.com/tombee/wallman/internal/cli"
	"github.com/tombee/wallman/internal/commands/config"
	daemoncmd "github.com/tombee/wallman/internal/commands/daemon"
	versioncmd "github.com/tombee/wallman/internal/commands/version"
	"github.com/tombee/wallman/internal/daemon"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	// A process spawned by `wallman daemon start` runs the daemon directly,
	// before any cobra processing.
	if i := slices.Index(os.Args[1:], daemoncmd.ChildFlag); i >= 0 {
		flags, err := parseChildFlags(os.Args[i+2:])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Daemon error: %v\n", err)
			os.Exit(3)
		}

		err = daemon.Run(daemon.RunOptions{
			Version:    version,
			Commit:     commit,
			BuildDate:  buildDate,
			ConfigPath: flags.config,
			SocketPath: flags.socket,
			PIDFile:    flags.pidFile,
		})
		if err != nil {
			cli.HandleExitError(err)
		}
		return
	}

	cli.SetVersion(version, commit, buildDate)

	rootCmd := cli.NewRootCommand()
	rootCmd.AddCommand(daemoncmd.NewCommand())
	rootCmd.AddCommand(config.NewConfigCommand())
	rootCmd.AddCommand(versioncmd.NewVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		cli.HandleExitError(err)
	}
}

// childFlags holds the flags passed to a detached daemon process.
type childFlags struct {
	config  string
	socket  string
	pidFile string
}

// parseChildFlags parses the flags that follow --daemon-child.
func parseChildFlags(args []string) (childFlags, error) {
	var flags childFlags

	fs := pflag.NewFlagSet("daemon-child", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.StringVar(&flags.config, "config", "", "Config file")
	fs.StringVar(&flags.socket, "socket", "", "Unix socket path")
	fs.StringVar(&flags.pidFile, "pid-file", "", "PID file path")

	if err := fs.Parse(args); err != nil {
		return childFlags{}, fmt.Errorf("invalid daemon flags: %w", err)
	}
	return flags, nil
}
