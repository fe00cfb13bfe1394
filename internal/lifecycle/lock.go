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

package lifecycle

import (
	"errors"
	"fmt"
	"os"
)

// AlreadyRunningError reports that another daemon holds the lock.
type AlreadyRunningError struct {
	PID  int
	Path string
}

// Error implements the error interface.
func (e *AlreadyRunningError) Error() string {
	if e.PID > 0 {
		return fmt.Sprintf("wallman daemon already running (pid %d)", e.PID)
	}
	return "wallman daemon already running"
}

// ErrorType implements errors.ErrorClassifier.
func (e *AlreadyRunningError) ErrorType() string { return "lifecycle" }

// IsRetryable implements errors.ErrorClassifier.
func (e *AlreadyRunningError) IsRetryable() bool { return false }

// IsUserVisible implements errors.UserVisibleError.
func (e *AlreadyRunningError) IsUserVisible() bool { return true }

// UserMessage implements errors.UserVisibleError.
func (e *AlreadyRunningError) UserMessage() string { return e.Error() }

// Suggestion implements errors.UserVisibleError.
func (e *AlreadyRunningError) Suggestion() string {
	return "Use 'wallman daemon restart' to replace it or 'wallman daemon stop' to stop it."
}

// Lock is the held single-instance lock of a running daemon.
type Lock struct {
	pidFile *PIDFile
	audit   *LifecycleLogger
}

// AcquireLock takes the daemon lock at path and records the current PID.
// A live owner yields *AlreadyRunningError. A file left by a dead process,
// or naming a process that is not wallman, is reclaimed. audit may be nil.
func AcquireLock(path string, audit *LifecycleLogger) (*Lock, error) {
	pf := NewPIDFile(path)
	previous, err := pf.Lock()
	if errors.Is(err, ErrPIDFileLocked) {
		audit.LogAlreadyRunning(previous)
		return nil, &AlreadyRunningError{PID: previous, Path: path}
	}
	if err != nil {
		return nil, err
	}

	self := os.Getpid()
	if previous > 0 && previous != self {
		// An unlocked file whose PID is still a wallman process predates
		// locking; leave it alone.
		if IsProcessRunning(previous) && IsWallmanProcess(previous) {
			pf.unlock()
			audit.LogAlreadyRunning(previous)
			return nil, &AlreadyRunningError{PID: previous, Path: path}
		}
		reason := "process not running"
		if IsProcessRunning(previous) {
			reason = "PID belongs to another program"
		}
		audit.LogStalePID(previous, reason)
	}

	if err := pf.Write(self); err != nil {
		pf.Release()
		return nil, err
	}
	return &Lock{pidFile: pf, audit: audit}, nil
}

// PID returns the PID recorded by the lock.
func (l *Lock) PID() int { return os.Getpid() }

// Path returns the PID file path.
func (l *Lock) Path() string { return l.pidFile.Path() }

// Release removes the PID file and drops the lock.
func (l *Lock) Release() error {
	return l.pidFile.Release()
}

// Probe reports the PID recorded at path and whether a daemon owns it.
// A missing file is not an error.
func Probe(path string) (pid int, running bool, err error) {
	pf := NewPIDFile(path)
	pid, err = pf.Read()
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if pf.Held() {
		return pid, true, nil
	}
	return pid, pid > 0 && IsProcessRunning(pid) && IsWallmanProcess(pid), nil
}
