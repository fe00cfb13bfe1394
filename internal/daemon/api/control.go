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


package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/tombee/wallman/internal/daemon/httputil"
	wallmanruntime "github.com/tombee/wallman/internal/daemon/runtime"
)

// Controller is the part of the runtime the control endpoints drive.
type Controller interface {
	Status() wallmanruntime.Status
	Reload(ctx context.Context) error
}

// ControlHandler serves status, reload and shutdown.
type ControlHandler struct {
	runtime Controller
	// shutdown starts a graceful stop. It must not block on the request.
	shutdown func()
}

// NewControlHandler creates a control handler. shutdown is called in its
// own goroutine after the shutdown response is written.
func NewControlHandler(rt Controller, shutdown func()) *ControlHandler {
	return &ControlHandler{runtime: rt, shutdown: shutdown}
}

// RegisterRoutes registers the control routes on mux.
func (h *ControlHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/status", h.handleStatus)
	mux.HandleFunc("POST /v1/reload", h.handleReload)
	mux.HandleFunc("POST /v1/shutdown", h.handleShutdown)
}

func (h *ControlHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.runtime.Status())
}

// handleReload handles POST /v1/reload. A configuration error is a 422 and
// leaves the previous configuration in effect.
func (h *ControlHandler) handleReload(w http.ResponseWriter, r *http.Request) {
	err := h.runtime.Reload(r.Context())
	switch {
	case err == nil:
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
	case errors.Is(err, wallmanruntime.ErrNotRunning):
		w.Header().Set("Retry-After", "1")
		httputil.WriteError(w, http.StatusServiceUnavailable, err.Error())
	default:
		httputil.WriteErr(w, httputil.StatusFor(err), err)
	}
}

func (h *ControlHandler) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if h.shutdown == nil {
		httputil.WriteError(w, http.StatusNotImplemented, "shutdown is not available")
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "shutting down"})
	go h.shutdown()
}
