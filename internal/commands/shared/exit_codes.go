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


package shared

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tombee/wallman/internal/client"
	"github.com/tombee/wallman/internal/lifecycle"
	wallmanerrors "github.com/tombee/wallman/pkg/errors"
)

// Exit codes for wallman commands.
const (
	ExitSuccess        = 0
	ExitAlreadyRunning = 1
	ExitNotRunning     = 2
	ExitFailure        = 3
)

// ExitError is an error that carries an exit code
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		if e.Message == "" {
			return e.Cause.Error()
		}
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewAlreadyRunningError reports that a daemon is already running.
func NewAlreadyRunningError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitAlreadyRunning, Message: msg, Cause: cause}
}

// NewNotRunningError reports that no daemon is running.
func NewNotRunningError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitNotRunning, Message: msg, Cause: cause}
}

// ExitCode maps err to a process exit code. Explicit ExitErrors win;
// otherwise lifecycle errors anywhere in the chain select their code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	var running *lifecycle.AlreadyRunningError
	if errors.As(err, &running) {
		return ExitAlreadyRunning
	}
	if client.IsDaemonNotRunning(err) {
		return ExitNotRunning
	}
	return ExitFailure
}

// Report prints err and any suggestion it carries to w and returns the
// exit code for it.
func Report(w io.Writer, err error) int {
	if err == nil {
		return ExitSuccess
	}

	msg := err.Error()
	var userErr wallmanerrors.UserVisibleError
	if errors.As(err, &userErr) && userErr.IsUserVisible() && userErr.UserMessage() != "" {
		msg = userErr.UserMessage()
	}
	fmt.Fprintln(w, RenderError("Error: "+msg))

	printUserVisibleSuggestion(w, err)
	return ExitCode(err)
}

// HandleExitError reports err on stderr and exits with the mapped code.
func HandleExitError(err error) {
	if err == nil {
		return
	}
	os.Exit(Report(os.Stderr, err))
}

// printUserVisibleSuggestion prints the suggestion of the first
// UserVisibleError in the chain, if any.
func printUserVisibleSuggestion(w io.Writer, err error) {
	var userErr wallmanerrors.UserVisibleError
	if !errors.As(err, &userErr) || !userErr.IsUserVisible() {
		return
	}
	if suggestion := userErr.Suggestion(); suggestion != "" {
		fmt.Fprintf(w, "\nSuggestion: %s\n", suggestion)
	}
}
