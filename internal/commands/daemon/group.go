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


// Package daemon implements the `wallman daemon` command group.
package daemon

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/wallman/internal/client"
	"github.com/tombee/wallman/internal/commands/shared"
	"github.com/tombee/wallman/internal/config"
)

// requestTimeout bounds a single control API call.
const requestTimeout = 10 * time.Second

// socketFlag overrides the configured control socket for every subcommand.
var socketFlag string

// NewCommand creates the daemon command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the wallman daemon",
		Long: `Commands for managing the wallman daemon.

The daemon watches connected outputs and applies a wallpaper to each one
according to the weather, time and background rules in the config file.
The CLI talks to it over a unix socket.`,
	}

	cmd.PersistentFlags().StringVar(&socketFlag, "socket", "", "Control socket path (default: from config)")

	cmd.AddCommand(NewStartCommand())
	cmd.AddCommand(NewStopCommand())
	cmd.AddCommand(NewRestartCommand())
	cmd.AddCommand(NewStatusCommand())
	cmd.AddCommand(NewReloadCommand())
	cmd.AddCommand(NewHistoryCommand())

	return cmd
}

// settings is the resolved configuration a subcommand acts on.
type settings struct {
	cfg        *config.Config
	socketPath string
}

// loadSettings loads the config file. Commands that only talk to a running
// daemon pass strict=false and fall back to the defaults when the file is
// missing or invalid; start needs a valid file.
func loadSettings(strict bool) (*settings, error) {
	cfg, err := config.Load(shared.GetConfigPath())
	if err != nil {
		if strict {
			return nil, err
		}
		cfg = config.Default()
		cfg.Daemon.SocketPath = client.DefaultSocketPath()
	}

	s := &settings{cfg: cfg, socketPath: cfg.Daemon.SocketPath}
	if socketFlag != "" {
		s.socketPath = socketFlag
	}
	return s, nil
}

func (s *settings) client() *client.Client {
	return client.New(s.socketPath)
}

// notRunning converts a dial failure into the not-running exit error.
func notRunning(err error) error {
	if client.IsDaemonNotRunning(err) {
		return shared.NewNotRunningError("", err)
	}
	return err
}
