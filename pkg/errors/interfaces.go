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

// Package errors defines the error types shared by wallman packages and the
// CLI's error rendering.
package errors

// UserVisibleError is implemented by errors that the CLI prints with a
// friendly message and an actionable suggestion.
type UserVisibleError interface {
	error

	// IsUserVisible returns true if this error should be shown to users.
	IsUserVisible() bool

	// UserMessage returns a user-friendly error message.
	UserMessage() string

	// Suggestion returns actionable guidance, or "" when none applies.
	Suggestion() string
}

// ErrorClassifier is implemented by errors that carry a category and a
// retry hint. The daemon uses it to decide whether a failed cycle step is
// worth retrying on the next tick and to label error metrics.
type ErrorClassifier interface {
	error

	// ErrorType returns a category such as "config", "timeout", "compositor".
	ErrorType() string

	// IsRetryable returns true if the operation should be retried.
	IsRetryable() bool
}
