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
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/wallman/internal/commands/shared"
	daemonpkg "github.com/tombee/wallman/internal/daemon"
	"github.com/tombee/wallman/internal/lifecycle"
)

// ChildFlag marks a process spawned by `wallman daemon start`.
const ChildFlag = "--daemon-child"

// Replaced in tests.
var (
	runForeground = daemonpkg.Run
	spawnDaemon   = func(binary string, args []string, logPath string) (int, error) {
		return lifecycle.NewSpawner().SpawnDetached(binary, args, logPath)
	}
)

// NewStartCommand creates the daemon start command.
func NewStartCommand() *cobra.Command {
	var opts startOptions

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the wallman daemon",
		Long: `Start the wallman daemon in the background.

The daemon detaches from the terminal, writes its PID file and logs to
daemon.log in the data directory. The command returns once the daemon
answers on its control socket.

Use --foreground to run in the current terminal (for systemd units or
compositor exec lines). Starting while a daemon is already running exits
with code 1.`,
		Example: `  # Start in the background
  wallman daemon start

  # Run in the foreground, e.g. from sway: exec wallman daemon start -f
  wallman daemon start --foreground

  # Use another config file
  wallman --config ~/wallpapers/wallman.yaml daemon start`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.foreground, "foreground", "f", false, "Run in the foreground")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "Health check timeout")

	return cmd
}

type startOptions struct {
	foreground bool
	timeout    time.Duration
}

func runStart(ctx context.Context, out io.Writer, opts startOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := loadSettings(true)
	if err != nil {
		return err
	}

	if err := checkNotRunning(ctx, s); err != nil {
		return err
	}

	v, c, b := shared.GetVersion()
	if opts.foreground {
		return runForeground(daemonpkg.RunOptions{
			Version:    v,
			Commit:     c,
			BuildDate:  b,
			ConfigPath: s.cfg.Path(),
			SocketPath: s.socketPath,
		})
	}

	binary, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	logPath := filepath.Join(s.cfg.Daemon.DataDir, "daemon.log")
	pid, err := spawnDaemon(binary, childArgs(s), logPath)
	if err != nil {
		return fmt.Errorf("failed to spawn daemon: %w", err)
	}
	if !shared.GetQuiet() {
		fmt.Fprintf(out, "Starting daemon (PID %d)...\n", pid)
	}

	checker := lifecycle.NewHealthChecker(s.client().Ping)
	if _, err := checker.WaitUntilHealthy(ctx, opts.timeout); err != nil {
		if lifecycle.IsProcessRunning(pid) {
			_ = lifecycle.SendSignal(pid, syscall.SIGTERM)
		}
		return fmt.Errorf("daemon did not become healthy within %v, see %s: %w", opts.timeout, logPath, err)
	}

	if !shared.GetQuiet() {
		fmt.Fprintln(out, shared.RenderOK(fmt.Sprintf("Daemon started (PID %d)", pid)))
	}
	return nil
}

// checkNotRunning returns an AlreadyRunningError when the PID file is held
// or the control socket answers.
func checkNotRunning(ctx context.Context, s *settings) error {
	if pid, running, err := lifecycle.Probe(s.cfg.Daemon.PIDFile); err == nil && running {
		return &lifecycle.AlreadyRunningError{PID: pid, Path: s.cfg.Daemon.PIDFile}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.client().Ping(ctx); err == nil {
		return &lifecycle.AlreadyRunningError{Path: s.socketPath}
	}
	return nil
}

// childArgs builds the arguments of the detached daemon process.
func childArgs(s *settings) []string {
	args := []string{ChildFlag, "--socket", s.socketPath}
	if path := s.cfg.Path(); path != "" {
		args = append(args, "--config", path)
	}
	return args
}
