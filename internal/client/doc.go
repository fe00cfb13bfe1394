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
Package client talks to a running wallman daemon over its unix control
socket.

# Basic Usage

	c, err := client.New(socketPath)
	if err != nil {
	    return err
	}

	st, err := c.Status(ctx)
	if client.IsDaemonNotRunning(err) {
	    // nothing is listening on socketPath
	}

# Errors

A socket that is missing or refuses connections yields
*DaemonNotRunningError. A non-2xx reply yields *APIError carrying the
status code and the daemon's message; a rejected reload is a 422.

# API Methods

  - Health, Version: liveness and build information
  - Status: runtime snapshot with per-output state
  - Reload: re-read the configuration file
  - Shutdown: ask the daemon to stop
  - History: recent apply attempts
*/
package client
