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


package client

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/wallman/internal/daemon/api"
	"github.com/tombee/wallman/internal/daemon/history"
	"github.com/tombee/wallman/internal/daemon/runtime"
	wallmanerrors "github.com/tombee/wallman/pkg/errors"
)

type stubController struct {
	reloadErr error
}

func (s *stubController) Status() runtime.Status {
	return runtime.Status{
		State:   runtime.StateRunning,
		Backend: "swaybg",
		Outputs: map[string]runtime.OutputStatus{"DP-1": {Name: "DP-1", Image: "/img/a.png"}},
	}
}

func (s *stubController) Reload(context.Context) error { return s.reloadErr }

type stubHistory struct {
	gotLimit  int
	gotOutput string
}

func (s *stubHistory) Recent(_ context.Context, limit int, output string) ([]history.Entry, error) {
	s.gotLimit, s.gotOutput = limit, output
	return []history.Entry{{ID: 1, Output: "DP-1", Result: history.ResultApplied}}, nil
}

// serveUnix serves a control API on a unix socket and returns its path.
func serveUnix(t *testing.T, ctrl *stubController, hist *stubHistory, shutdown func()) string {
	t.Helper()
	dir, err := os.MkdirTemp("/tmp", "wallman-client-")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	socket := filepath.Join(dir, "s.sock")

	router := api.NewRouter(api.RouterConfig{Version: "1.0.0"})
	router.SetStatusProvider(ctrl)
	api.NewControlHandler(ctrl, shutdown).RegisterRoutes(router.Mux())
	api.NewHistoryHandler(hist).RegisterRoutes(router.Mux())

	ln, err := net.Listen("unix", socket)
	require.NoError(t, err)
	srv := &http.Server{Handler: router}
	go srv.Serve(ln)
	t.Cleanup(func() { srv.Close() })
	return socket
}

func TestClient_OverUnixSocket(t *testing.T) {
	hist := &stubHistory{}
	shut := make(chan struct{})
	socket := serveUnix(t, &stubController{}, hist, func() { close(shut) })
	c := New(socket)
	ctx := context.Background()

	health, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)

	v, err := c.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", v.Version)

	st, err := c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, runtime.StateRunning, st.State)
	assert.Equal(t, "/img/a.png", st.Outputs["DP-1"].Image)

	require.NoError(t, c.Reload(ctx))

	entries, err := c.History(ctx, 5, "DP-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 5, hist.gotLimit)
	assert.Equal(t, "DP-1", hist.gotOutput)

	require.NoError(t, c.Shutdown(ctx))
	select {
	case <-shut:
	case <-time.After(time.Second):
		t.Fatal("shutdown not delivered")
	}
}

func TestClient_ReloadRejected(t *testing.T) {
	ctrl := &stubController{reloadErr: &wallmanerrors.ConfigError{Key: "time.DP-1.day_range", Reason: "start equals end"}}
	c := New(serveUnix(t, ctrl, &stubHistory{}, nil))

	err := c.Reload(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "config", apiErr.ErrorType())
	assert.Contains(t, apiErr.Message, "day_range")
	assert.NotEmpty(t, apiErr.Suggestion())
	assert.False(t, IsDaemonNotRunning(err))
}

func TestClient_NotRunning(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing socket", func(t *testing.T) {
		c := New(filepath.Join(dir, "missing.sock"))
		_, err := c.Status(context.Background())
		require.True(t, IsDaemonNotRunning(err), "got %v", err)

		var ue wallmanerrors.UserVisibleError
		require.True(t, errors.As(err, &ue))
		assert.Contains(t, ue.Suggestion(), "wallman daemon start")
	})

	t.Run("stale socket file", func(t *testing.T) {
		short, err := os.MkdirTemp("/tmp", "wallman-client-")
		require.NoError(t, err)
		defer os.RemoveAll(short)
		socket := filepath.Join(short, "s.sock")

		ln, err := net.Listen("unix", socket)
		require.NoError(t, err)
		ln.(*net.UnixListener).SetUnlinkOnClose(false)
		ln.Close()

		_, err = New(socket).Health(context.Background())
		assert.True(t, IsDaemonNotRunning(err), "got %v", err)
	})
}

func TestClient_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New("unused", WithHTTPClient(srv.Client()), WithBaseURL(srv.URL))
	_, err := c.Status(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "Bad Gateway", apiErr.Message)
	assert.True(t, apiErr.IsRetryable())
}

func TestClient_HistoryQuery(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode(api.HistoryResponse{})
	}))
	defer srv.Close()

	c := New("unused", WithHTTPClient(srv.Client()), WithBaseURL(srv.URL))
	_, err := c.History(context.Background(), 0, "")
	require.NoError(t, err)
	assert.Empty(t, gotQuery)

	_, err = c.History(context.Background(), 3, "HDMI-A-1")
	require.NoError(t, err)
	assert.Equal(t, "limit=3&output=HDMI-A-1", gotQuery)
}

func TestDefaultSocketPath(t *testing.T) {
	t.Setenv(SocketEnv, "/run/custom.sock")
	assert.Equal(t, "/run/custom.sock", DefaultSocketPath())

	t.Setenv(SocketEnv, "")
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	assert.Equal(t, "/run/user/1000/wallman/wallman.sock", DefaultSocketPath())
}
