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


// Package httputil holds the JSON response helpers of the control API.
package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	wallmanerrors "github.com/tombee/wallman/pkg/errors"
)

// ErrorBody is the JSON body of every non-2xx control API response.
type ErrorBody struct {
	Error      string `json:"error"`
	Type       string `json:"type,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// WriteJSON writes data as JSON with the given status code.
// If encoding fails, it logs the error.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", slog.Any("error", err))
	}
}

// WriteError writes an ErrorBody carrying only a message.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorBody{Error: message})
}

// WriteErr writes err with the given status, adding its type and
// suggestion when err carries them.
func WriteErr(w http.ResponseWriter, status int, err error) {
	body := ErrorBody{Error: err.Error()}

	var classified wallmanerrors.ErrorClassifier
	if errors.As(err, &classified) {
		body.Type = classified.ErrorType()
	}
	var visible wallmanerrors.UserVisibleError
	if errors.As(err, &visible) && visible.IsUserVisible() {
		body.Error = visible.UserMessage()
		body.Suggestion = visible.Suggestion()
	}

	WriteJSON(w, status, body)
}

// StatusFor maps an error to an HTTP status: configuration and validation
// errors are 422, missing resources 404, timeouts 504, anything else 500.
func StatusFor(err error) int {
	var (
		cfgErr     *wallmanerrors.ConfigError
		validation *wallmanerrors.ValidationError
		notFound   *wallmanerrors.NotFoundError
		timeout    *wallmanerrors.TimeoutError
	)
	switch {
	case errors.As(err, &cfgErr), errors.As(err, &validation):
		return http.StatusUnprocessableEntity
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &timeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
