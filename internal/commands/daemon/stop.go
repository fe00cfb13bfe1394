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
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/wallman/internal/client"
	"github.com/tombee/wallman/internal/commands/shared"
	"github.com/tombee/wallman/internal/lifecycle"
)

// NewStopCommand creates the daemon stop command.
func NewStopCommand() *cobra.Command {
	var opts stopOptions

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the wallman daemon",
		Long: `Stop the wallman daemon gracefully.

The daemon is asked to shut down over its control socket. If the socket
does not answer, or the process is still alive after --timeout, SIGTERM is
sent to the PID in the PID file. --force follows up with SIGKILL.

Stopping when no daemon is running exits with code 2.`,
		Example: `  # Stop the daemon
  wallman daemon stop

  # Kill it if it does not exit within 5s
  wallman daemon stop --timeout 5s --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStop(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "Graceful shutdown timeout")
	cmd.Flags().BoolVar(&opts.force, "force", false, "Send SIGKILL if the timeout is exceeded")

	return cmd
}

type stopOptions struct {
	timeout time.Duration
	force   bool
}

func runStop(ctx context.Context, out io.Writer, opts stopOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := loadSettings(false)
	if err != nil {
		return err
	}

	pid, err := requestShutdown(ctx, s.client())
	switch {
	case err == nil:
		if pid == 0 || lifecycle.WaitForExit(pid, opts.timeout) == nil {
			printStopped(out)
			return nil
		}
	case client.IsDaemonNotRunning(err):
		// The socket is gone but the process may still be alive.
	default:
		fmt.Fprintln(out, shared.RenderWarn(fmt.Sprintf("Shutdown request failed: %v", err)))
	}

	if pid == 0 {
		if filePID, running, _ := lifecycle.Probe(s.cfg.Daemon.PIDFile); running {
			pid = filePID
		}
	}
	if pid <= 0 || !lifecycle.IsProcessRunning(pid) {
		if err == nil {
			printStopped(out)
			return nil
		}
		return shared.NewNotRunningError("", &client.DaemonNotRunningError{SocketPath: s.socketPath, Err: err})
	}

	if err := lifecycle.GracefulShutdown(pid, opts.timeout, opts.force); err != nil {
		if errors.Is(err, lifecycle.ErrProcessNotRunning) {
			printStopped(out)
			return nil
		}
		return fmt.Errorf("failed to stop daemon (PID %d): %w", pid, err)
	}
	printStopped(out)
	return nil
}

// requestShutdown asks the daemon to stop and returns its PID.
func requestShutdown(ctx context.Context, c *client.Client) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	st, err := c.Status(ctx)
	if err != nil {
		return 0, err
	}
	if err := c.Shutdown(ctx); err != nil {
		return st.PID, err
	}
	return st.PID, nil
}

func printStopped(out io.Writer) {
	if !shared.GetQuiet() {
		fmt.Fprintln(out, shared.RenderOK("Daemon stopped"))
	}
}
