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


package version

import (
	"context"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/wallman/internal/client"
	"github.com/tombee/wallman/internal/commands/shared"
)

// VersionInfo contains version metadata
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`

	// Daemon is the version reported by a running daemon, if any.
	Daemon string `json:"daemon,omitempty"`
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Display version, commit hash and build date for wallman, and the
version of the running daemon when one answers.`,
		RunE: runVersion,
	}
}

func runVersion(cmd *cobra.Command, args []string) error {
	v, c, b := shared.GetVersion()

	info := VersionInfo{
		Version:   v,
		Commit:    c,
		BuildDate: b,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		Daemon:    daemonVersion(cmd.Context()),
	}

	if shared.GetJSON() {
		return shared.EmitJSON(cmd.Context(), cmd.OutOrStdout(), info)
	}

	cmd.Printf("wallman version %s\n", info.Version)
	cmd.Printf("  commit:     %s\n", info.Commit)
	cmd.Printf("  build date: %s\n", info.BuildDate)
	cmd.Printf("  go:         %s %s\n", info.GoVersion, info.Platform)
	if info.Daemon != "" {
		cmd.Printf("  daemon:     %s\n", info.Daemon)
	}
	return nil
}

// daemonVersion asks a running daemon for its version and returns "" when
// none answers quickly.
func daemonVersion(ctx context.Context) string {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	resp, err := client.New(client.DefaultSocketPath()).Version(ctx)
	if err != nil {
		return ""
	}
	return resp.Version
}
