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

// Package httpclient builds the outbound HTTP client used for weather
// lookups.
//
// Requests pass through two layers on top of the standard transport. The
// logging layer sets the User-Agent, logs every request with location
// query parameters redacted, and tags the log line with the active trace
// ID. The retry layer retries idempotent requests on 5xx, 408, 429 and
// transient network errors with exponential backoff and jitter, honouring
// Retry-After when the server sends a shorter delay.
//
//	cfg := httpclient.DefaultConfig()
//	cfg.Timeout = 10 * time.Second
//	client, err := httpclient.New(cfg)
package httpclient
