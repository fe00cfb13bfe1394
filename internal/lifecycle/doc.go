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

/*
Package lifecycle manages the wallman daemon process lifecycle.

It provides the single-instance lock, process validation and signalling,
detached spawning for "wallman daemon start", readiness polling, and an
append-only audit log of lifecycle events.

# Single-instance lock

The lock is a PID file held open under an exclusive flock for the life of
the daemon. The kernel drops the flock when the process dies, so a file
left behind by a crash is detected and reclaimed:

	lock, err := lifecycle.AcquireLock(pidPath, audit)
	var running *lifecycle.AlreadyRunningError
	if errors.As(err, &running) {
	    // another daemon owns the session
	}
	defer lock.Release()

# Process Operations

Process validation ensures signals are only sent to wallman processes,
so a stale PID reused by an unrelated program is never killed:

	pid, running, err := lifecycle.Probe(pidPath)
	if running {
	    err = lifecycle.GracefulShutdown(pid, 10*time.Second, false)
	}

# Readiness

	checker := lifecycle.NewHealthChecker(client.Health)
	_, err := checker.WaitUntilHealthy(ctx, 5*time.Second)
*/
package lifecycle
