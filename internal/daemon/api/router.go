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


// Package api provides the HTTP control API served on the daemon's unix
// socket.
package api

import (
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/tombee/wallman/internal/daemon/httputil"
	wallmanruntime "github.com/tombee/wallman/internal/daemon/runtime"
	"github.com/tombee/wallman/internal/log"
)

// RouterConfig holds configuration for the API router.
type RouterConfig struct {
	Version   string
	Commit    string
	BuildDate string

	// Logger receives request logs. Nil means slog.Default().
	Logger *slog.Logger
}

// StatusProvider reports the runtime state for health checks.
type StatusProvider interface {
	Status() wallmanruntime.Status
}

// HealthResponse is the body of GET /v1/health.
type HealthResponse struct {
	Status  string               `json:"status"`
	State   wallmanruntime.State `json:"state,omitempty"`
	Version string               `json:"version"`
	Uptime  string               `json:"uptime,omitempty"`
}

// VersionResponse is the body of GET /v1/version.
type VersionResponse struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
	GoVersion string `json:"go_version"`
}

// Router wraps an http.ServeMux with request logging.
type Router struct {
	mux     *http.ServeMux
	config  RouterConfig
	status  StatusProvider
	logger  *slog.Logger
	handler http.Handler
}

// NewRouter creates a router with the health and version endpoints.
func NewRouter(cfg RouterConfig) *Router {
	r := &Router{
		mux:    http.NewServeMux(),
		config: cfg,
		logger: log.WithComponent(cfg.Logger, "api"),
	}
	r.handler = log.Middleware(r.logger, r.mux)

	r.mux.HandleFunc("GET /v1/health", r.handleHealth)
	r.mux.HandleFunc("GET /v1/version", r.handleVersion)
	r.mux.HandleFunc("GET /{$}", r.handleRoot)

	return r
}

// SetStatusProvider sets the source of the health state.
func (r *Router) SetStatusProvider(p StatusProvider) {
	r.status = p
}

// SetMetricsHandler registers the Prometheus metrics endpoint.
func (r *Router) SetMetricsHandler(handler http.Handler) {
	if handler != nil {
		r.mux.Handle("GET /metrics", handler)
	}
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

// Mux returns the underlying ServeMux for registering additional routes.
func (r *Router) Mux() *http.ServeMux {
	return r.mux
}

// handleRoot handles GET / for basic connectivity.
func (r *Router) handleRoot(w http.ResponseWriter, req *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"name":    "wallman",
		"version": r.config.Version,
	})
}

// handleHealth reports 200 while the runtime is running and 503 otherwise.
func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	resp := HealthResponse{Status: "ok", Version: r.config.Version}
	code := http.StatusOK

	if r.status != nil {
		st := r.status.Status()
		resp.State = st.State
		if up := st.Uptime(time.Now()); up > 0 {
			resp.Uptime = up.Round(time.Second).String()
		}
		if st.State != wallmanruntime.StateRunning {
			resp.Status = "unavailable"
			code = http.StatusServiceUnavailable
		}
	}

	httputil.WriteJSON(w, code, resp)
}

func (r *Router) handleVersion(w http.ResponseWriter, req *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, VersionResponse{
		Version:   r.config.Version,
		Commit:    r.config.Commit,
		BuildDate: r.config.BuildDate,
		GoVersion: runtime.Version(),
	})
}
