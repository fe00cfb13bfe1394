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
	"net/http"
	"strconv"

	"github.com/tombee/wallman/internal/daemon/history"
	"github.com/tombee/wallman/internal/daemon/httputil"
)

// DefaultHistoryLimit is used when the request has no limit.
const DefaultHistoryLimit = 20

// HistoryReader lists recent apply attempts.
type HistoryReader interface {
	Recent(ctx context.Context, limit int, output string) ([]history.Entry, error)
}

// HistoryHandler serves GET /v1/history.
type HistoryHandler struct {
	store HistoryReader
}

// NewHistoryHandler creates a history handler.
func NewHistoryHandler(store HistoryReader) *HistoryHandler {
	return &HistoryHandler{store: store}
}

// RegisterRoutes registers the history route on mux.
func (h *HistoryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/history", h.handleList)
}

// HistoryResponse is the body of GET /v1/history.
type HistoryResponse struct {
	Entries []history.Entry `json:"entries"`
}

// handleList handles GET /v1/history?limit=N&output=NAME.
func (h *HistoryHandler) handleList(w http.ResponseWriter, r *http.Request) {
	limit := DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httputil.WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := h.store.Recent(r.Context(), limit, r.URL.Query().Get("output"))
	if err != nil {
		httputil.WriteErr(w, http.StatusInternalServerError, err)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	httputil.WriteJSON(w, http.StatusOK, HistoryResponse{Entries: entries})
}
