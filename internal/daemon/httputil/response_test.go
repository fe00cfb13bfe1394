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


package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	wallmanerrors "github.com/tombee/wallman/pkg/errors"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusAccepted, map[string]string{"status": "reloaded"})

	if w.Code != http.StatusAccepted {
		t.Errorf("status = %d, want %d", w.Code, http.StatusAccepted)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var got map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["status"] != "reloaded" {
		t.Errorf("body = %v", got)
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, http.StatusBadRequest, "limit must be a positive integer")

	var body ErrorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if w.Code != http.StatusBadRequest || body.Error != "limit must be a positive integer" {
		t.Errorf("got %d %+v", w.Code, body)
	}
	if body.Type != "" || body.Suggestion != "" {
		t.Errorf("unexpected classification %+v", body)
	}
}

func TestWriteErr_ConfigError(t *testing.T) {
	err := fmt.Errorf("reload: %w", &wallmanerrors.ConfigError{Key: "time.DP-1.day_range", Reason: "start equals end"})

	w := httptest.NewRecorder()
	WriteErr(w, StatusFor(err), err)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
	var body ErrorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Type != "config" {
		t.Errorf("type = %q, want config", body.Type)
	}
	if body.Suggestion == "" {
		t.Error("config errors carry a suggestion")
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"config", &wallmanerrors.ConfigError{Key: "k", Reason: "r"}, http.StatusUnprocessableEntity},
		{"validation", &wallmanerrors.ValidationError{Field: "image", Message: "empty"}, http.StatusUnprocessableEntity},
		{"not found", &wallmanerrors.NotFoundError{Resource: "output", ID: "DP-9"}, http.StatusNotFound},
		{"timeout", &wallmanerrors.TimeoutError{Operation: "reload"}, http.StatusGatewayTimeout},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusFor(tt.err); got != tt.want {
				t.Errorf("StatusFor() = %d, want %d", got, tt.want)
			}
		})
	}
}
