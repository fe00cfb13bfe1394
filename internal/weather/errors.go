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

package weather

import (
	"errors"
	"fmt"
)

// ErrRateLimited is returned when the request budget for the weather API
// is exhausted.
var ErrRateLimited = errors.New("weather lookup rate limited")

// FetchError reports a failed weather lookup.
type FetchError struct {
	// Provider names the weather source.
	Provider string
	// StatusCode is the HTTP status, when a response was received.
	StatusCode int
	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	msg := fmt.Sprintf("weather fetch from %s failed", e.Provider)
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s [HTTP %d]", msg, e.StatusCode)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error { return e.Cause }

// ErrorType implements errors.ErrorClassifier.
func (e *FetchError) ErrorType() string { return "weather" }

// IsRetryable implements errors.ErrorClassifier. Lookups are always
// retried on a later cycle.
func (e *FetchError) IsRetryable() bool { return true }
