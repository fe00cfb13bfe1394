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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"

	"github.com/tombee/wallman/internal/config"
)

// SocketEnv overrides the control socket path.
const SocketEnv = "WALLMAN_SOCKET"

// DefaultSocketPath returns $WALLMAN_SOCKET, or the socket under the
// runtime directory.
func DefaultSocketPath() string {
	if p := os.Getenv(SocketEnv); p != "" {
		return p
	}
	return config.Default().Daemon.SocketPath
}

// DaemonNotRunningError indicates nothing is listening on the socket.
type DaemonNotRunningError struct {
	SocketPath string
	Err        error
}

func (e *DaemonNotRunningError) Error() string {
	return fmt.Sprintf("wallman daemon is not running (socket: %s)", e.SocketPath)
}

func (e *DaemonNotRunningError) Unwrap() error {
	return e.Err
}

// ErrorType implements errors.ErrorClassifier.
func (e *DaemonNotRunningError) ErrorType() string { return "lifecycle" }

// IsRetryable implements errors.ErrorClassifier.
func (e *DaemonNotRunningError) IsRetryable() bool { return false }

// IsUserVisible implements errors.UserVisibleError.
func (e *DaemonNotRunningError) IsUserVisible() bool { return true }

// UserMessage implements errors.UserVisibleError.
func (e *DaemonNotRunningError) UserMessage() string { return "wallman daemon is not running" }

// Suggestion implements errors.UserVisibleError.
func (e *DaemonNotRunningError) Suggestion() string {
	return "Start it with 'wallman daemon start'"
}

// IsDaemonNotRunning reports whether err means the daemon is not running.
func IsDaemonNotRunning(err error) bool {
	var dnr *DaemonNotRunningError
	return errors.As(err, &dnr)
}

// notRunning reports whether a dial error means no daemon is listening.
func notRunning(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, fs.ErrNotExist)
}
