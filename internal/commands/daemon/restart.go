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


package daemon

import (
	"time"

	"github.com/spf13/cobra"
)

// NewRestartCommand creates the daemon restart command.
func NewRestartCommand() *cobra.Command {
	var (
		stop  stopOptions
		start startOptions
	)

	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the wallman daemon",
		Long: `Restart the wallman daemon by stopping and starting it.

Use this after changing daemon settings such as the socket path, backend or
poll interval; wallpaper rules are picked up by 'wallman daemon reload'.
Restarting when no daemon is running exits with code 2.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runStop(cmd.Context(), cmd.OutOrStdout(), stop); err != nil {
				return err
			}
			return runStart(cmd.Context(), cmd.OutOrStdout(), start)
		},
	}

	cmd.Flags().DurationVar(&stop.timeout, "stop-timeout", 30*time.Second, "Graceful shutdown timeout")
	cmd.Flags().BoolVar(&stop.force, "force", false, "Send SIGKILL if the stop timeout is exceeded")
	cmd.Flags().DurationVar(&start.timeout, "timeout", 30*time.Second, "Health check timeout")

	return cmd
}
