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
	"bytes"
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/wallman/internal/commands/shared"
	daemonpkg "github.com/tombee/wallman/internal/daemon"
	"github.com/tombee/wallman/internal/daemon/api"
	"github.com/tombee/wallman/internal/daemon/history"
	"github.com/tombee/wallman/internal/daemon/runtime"
	wallmanerrors "github.com/tombee/wallman/pkg/errors"
)

type stubRuntime struct {
	mu        sync.Mutex
	reloadErr error
	reloads   int
	shutdowns int
}

func (s *stubRuntime) Status() runtime.Status {
	applied := time.Now().Add(-time.Minute)
	return runtime.Status{
		State:   runtime.StateRunning,
		Backend: "swaybg",
		Cycles:  3,
		LastCycle: &runtime.CycleStatus{
			ID: "c-3", At: time.Now(), Applied: 1, Unchanged: 1,
		},
		Outputs: map[string]runtime.OutputStatus{
			"DP-1":     {Name: "DP-1", Trigger: "daytime", Image: "/pool/day.png", FillMode: "fill", AppliedAt: &applied, Resolved: true},
			"HDMI-A-1": {Name: "HDMI-A-1"},
		},
	}
}

func (s *stubRuntime) Reload(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloads++
	return s.reloadErr
}

func (s *stubRuntime) Recent(_ context.Context, limit int, output string) ([]history.Entry, error) {
	return []history.Entry{
		{ID: 2, Time: time.Now(), Output: "DP-1", Trigger: "weather", Image: "/pool/rain.png", Result: history.ResultApplied, DurationMS: 12},
		{ID: 1, Time: time.Now(), Output: "DP-1", Trigger: "static", Result: history.ResultFailed, Error: "swaybg exited"},
	}, nil
}

func (s *stubRuntime) shutdownCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdowns
}

type fixture struct {
	dir     string
	socket  string
	pidFile string
}

// newFixture writes a config file whose socket and PID file live in a
// fresh directory and points the CLI at it.
func newFixture(t *testing.T) fixture {
	t.Helper()
	dir, err := os.MkdirTemp("/tmp", "wallman-cmd-")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	t.Setenv("WALLMAN_SOCKET", "")
	t.Setenv("WALLMAN_PID_FILE", "")
	t.Setenv("LOG_LEVEL", "")

	f := fixture{
		dir:     dir,
		socket:  filepath.Join(dir, "d.sock"),
		pidFile: filepath.Join(dir, "wallman.pid"),
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bg.png"), []byte("x"), 0o644))

	cfg := `
background:
  "*":
    image: ` + filepath.Join(dir, "bg.png") + `
daemon:
  data_dir: ` + dir + `
  socket_path: ` + f.socket + `
  pid_file: ` + f.pidFile + `
`
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	shared.SetConfigPathForTest(cfgPath)
	shared.SetOutputForTest(false, "")
	t.Cleanup(func() {
		shared.SetConfigPathForTest("")
		shared.SetOutputForTest(false, "")
	})
	return f
}

// serve runs a control API for rt on the fixture socket.
func (f fixture) serve(t *testing.T, rt *stubRuntime) {
	t.Helper()
	router := api.NewRouter(api.RouterConfig{Version: "test"})
	router.SetStatusProvider(rt)
	api.NewControlHandler(rt, func() {
		rt.mu.Lock()
		rt.shutdowns++
		rt.mu.Unlock()
	}).RegisterRoutes(router.Mux())
	api.NewHistoryHandler(rt).RegisterRoutes(router.Mux())

	ln, err := net.Listen("unix", f.socket)
	require.NoError(t, err)
	srv := &http.Server{Handler: router}
	go srv.Serve(ln)
	t.Cleanup(func() { srv.Close() })
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestNewCommand_Subcommands(t *testing.T) {
	cmd := NewCommand()
	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"start", "stop", "restart", "status", "reload", "history"}, names)
	assert.NotNil(t, cmd.PersistentFlags().Lookup("socket"))
}

func TestNotRunning_ExitCode(t *testing.T) {
	for _, sub := range []string{"status", "reload", "history", "stop", "restart"} {
		t.Run(sub, func(t *testing.T) {
			newFixture(t)
			_, err := execute(t, sub)
			require.Error(t, err)
			assert.Equal(t, shared.ExitNotRunning, shared.ExitCode(err))
		})
	}
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	f.serve(t, &stubRuntime{})

	out, err := execute(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Wallman Daemon")
	assert.Contains(t, out, "Running")
	assert.Contains(t, out, "DP-1")
	assert.Contains(t, out, "day.png")
	assert.Contains(t, out, "Daytime")
	assert.Contains(t, out, "unresolved")
}

func TestStatus_JQ(t *testing.T) {
	f := newFixture(t)
	f.serve(t, &stubRuntime{})
	shared.SetOutputForTest(false, `.outputs["DP-1"].image`)

	out, err := execute(t, "status")
	require.NoError(t, err)
	assert.Equal(t, "/pool/day.png\n", out)
}

func TestStatus_SocketFlag(t *testing.T) {
	f := newFixture(t)
	other := fixture{socket: filepath.Join(f.dir, "other.sock")}
	other.serve(t, &stubRuntime{})

	_, err := execute(t, "status")
	assert.Equal(t, shared.ExitNotRunning, shared.ExitCode(err))

	_, err = execute(t, "status", "--socket", other.socket)
	require.NoError(t, err)
}

func TestReload(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		f := newFixture(t)
		rt := &stubRuntime{}
		f.serve(t, rt)

		out, err := execute(t, "reload")
		require.NoError(t, err)
		assert.Contains(t, out, "Configuration reloaded")
		assert.Equal(t, 1, rt.reloads)
	})

	t.Run("invalid config exits 3", func(t *testing.T) {
		f := newFixture(t)
		f.serve(t, &stubRuntime{reloadErr: &wallmanerrors.ConfigError{Key: "time.DP-1.day_range", Reason: "start equals end"}})

		_, err := execute(t, "reload")
		require.Error(t, err)
		assert.Equal(t, shared.ExitFailure, shared.ExitCode(err))
		assert.Contains(t, err.Error(), "day_range")
	})
}

func TestHistory(t *testing.T) {
	f := newFixture(t)
	f.serve(t, &stubRuntime{})

	out, err := execute(t, "history", "-n", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "rain.png")
	assert.Contains(t, out, "swaybg exited")
	assert.Contains(t, out, "Weather")

	shared.SetOutputForTest(false, "map(.result)")
	out, err = execute(t, "history")
	require.NoError(t, err)
	assert.JSONEq(t, `["applied","failed"]`, out)
}

func TestStop_ViaAPI(t *testing.T) {
	f := newFixture(t)
	rt := &stubRuntime{}
	f.serve(t, rt)

	out, err := execute(t, "stop", "--timeout", "1s")
	require.NoError(t, err)
	assert.Contains(t, out, "Daemon stopped")
	assert.Eventually(t, func() bool { return rt.shutdownCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestStart_AlreadyRunning(t *testing.T) {
	f := newFixture(t)
	f.serve(t, &stubRuntime{})

	called := false
	stubForeground(t, func(daemonpkg.RunOptions) error {
		called = true
		return nil
	})

	_, err := execute(t, "start", "--foreground")
	require.Error(t, err)
	assert.Equal(t, shared.ExitAlreadyRunning, shared.ExitCode(err))
	assert.False(t, called)
}

func TestStart_Foreground(t *testing.T) {
	f := newFixture(t)

	var got daemonpkg.RunOptions
	stubForeground(t, func(opts daemonpkg.RunOptions) error {
		got = opts
		return nil
	})

	_, err := execute(t, "start", "-f")
	require.NoError(t, err)
	assert.Equal(t, f.socket, got.SocketPath)
	assert.Equal(t, filepath.Join(f.dir, "config.yaml"), got.ConfigPath)
}

func TestStart_Background(t *testing.T) {
	f := newFixture(t)

	var gotArgs []string
	old := spawnDaemon
	spawnDaemon = func(binary string, args []string, logPath string) (int, error) {
		gotArgs = args
		assert.Equal(t, filepath.Join(f.dir, "daemon.log"), logPath)
		f.serve(t, &stubRuntime{})
		return 4242, nil
	}
	t.Cleanup(func() { spawnDaemon = old })

	out, err := execute(t, "start", "--timeout", "5s")
	require.NoError(t, err)
	assert.Contains(t, out, "Daemon started (PID 4242)")
	assert.Equal(t, []string{ChildFlag, "--socket", f.socket, "--config", filepath.Join(f.dir, "config.yaml")}, gotArgs)
}

func TestStart_InvalidConfig(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "config.yaml"), []byte("log:\n  level: verbose\n"), 0o644))

	_, err := execute(t, "start", "-f")
	require.Error(t, err)
	assert.Equal(t, shared.ExitFailure, shared.ExitCode(err))
}

func stubForeground(t *testing.T, fn func(daemonpkg.RunOptions) error) {
	t.Helper()
	old := runForeground
	runForeground = fn
	t.Cleanup(func() { runForeground = old })
}
