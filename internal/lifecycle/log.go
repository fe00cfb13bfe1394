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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Lifecycle event names.
const (
	EventStart        = "start"
	EventStartSuccess = "start_success"
	EventStartFailure = "start_failure"
	EventStop         = "stop"
	EventStopSuccess  = "stop_success"
	EventStopFailure  = "stop_failure"
	EventStalePID     = "stale_pid_detected"
	EventRunning      = "already_running"
)

// LifecycleEvent is one line of the lifecycle log.
type LifecycleEvent struct {
	Timestamp  time.Time `json:"timestamp"`
	Event      string    `json:"event"`
	PID        int       `json:"pid,omitempty"`
	Version    string    `json:"version,omitempty"`
	Success    bool      `json:"success"`
	Message    string    `json:"message,omitempty"`
	ConfigFile string    `json:"config_file,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// LifecycleLogger appends lifecycle events as JSON lines. A nil
// *LifecycleLogger discards events.
type LifecycleLogger struct {
	logPath string
	mu      sync.Mutex
}

// NewLifecycleLogger creates a new lifecycle logger.
func NewLifecycleLogger(logPath string) *LifecycleLogger {
	return &LifecycleLogger{logPath: logPath}
}

// LogStart records that the daemon is starting.
func (l *LifecycleLogger) LogStart(version, configFile string) error {
	return l.writeEvent(LifecycleEvent{
		Event:      EventStart,
		PID:        os.Getpid(),
		Version:    version,
		Success:    true,
		Message:    "Daemon start initiated",
		ConfigFile: configFile,
	})
}

// LogStartSuccess records a daemon that is up and serving.
func (l *LifecycleLogger) LogStartSuccess(pid int, duration time.Duration) error {
	return l.writeEvent(LifecycleEvent{
		Event:   EventStartSuccess,
		PID:     pid,
		Success: true,
		Message: fmt.Sprintf("Daemon started (duration: %v)", duration),
	})
}

// LogStartFailure records a failed start.
func (l *LifecycleLogger) LogStartFailure(err error) error {
	return l.writeEvent(LifecycleEvent{
		Event:   EventStartFailure,
		Message: "Daemon failed to start",
		Error:   errString(err),
	})
}

// LogStop records a stop request.
func (l *LifecycleLogger) LogStop(pid int, reason string) error {
	return l.writeEvent(LifecycleEvent{
		Event:   EventStop,
		PID:     pid,
		Success: true,
		Message: "Daemon stop initiated: " + reason,
	})
}

// LogStopSuccess records a clean shutdown.
func (l *LifecycleLogger) LogStopSuccess(pid int, duration time.Duration) error {
	return l.writeEvent(LifecycleEvent{
		Event:   EventStopSuccess,
		PID:     pid,
		Success: true,
		Message: fmt.Sprintf("Daemon stopped (duration: %v)", duration),
	})
}

// LogStopFailure records a failed shutdown.
func (l *LifecycleLogger) LogStopFailure(pid int, err error) error {
	return l.writeEvent(LifecycleEvent{
		Event:   EventStopFailure,
		PID:     pid,
		Message: "Failed to stop daemon",
		Error:   errString(err),
	})
}

// LogStalePID records a reclaimed PID file.
func (l *LifecycleLogger) LogStalePID(pid int, reason string) error {
	return l.writeEvent(LifecycleEvent{
		Event:   EventStalePID,
		PID:     pid,
		Success: true,
		Message: "Stale PID file reclaimed: " + reason,
	})
}

// LogAlreadyRunning records a start refused because a daemon owns the lock.
func (l *LifecycleLogger) LogAlreadyRunning(pid int) error {
	return l.writeEvent(LifecycleEvent{
		Event:   EventRunning,
		PID:     pid,
		Success: true,
		Message: "Daemon already running",
	})
}

func (l *LifecycleLogger) writeEvent(event LifecycleEvent) error {
	if l == nil || l.logPath == "" {
		return nil
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.logPath), 0o700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(l.logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open lifecycle log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
