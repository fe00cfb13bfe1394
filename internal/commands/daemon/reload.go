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


package daemon

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tombee/wallman/internal/commands/shared"
)

// NewReloadCommand creates the daemon reload command.
func NewReloadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Reload wallpaper rules",
		Long: `Ask the daemon to re-read its configuration file.

The new rules are validated first; if they are invalid the daemon keeps
the previous rules and the command exits with code 3. A successful reload
triggers an immediate evaluation cycle.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(false)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			if err := s.client().Reload(ctx); err != nil {
				return notRunning(err)
			}

			if shared.GetJSON() {
				return shared.EmitJSON(ctx, cmd.OutOrStdout(), map[string]string{"status": "reloaded"})
			}
			if !shared.GetQuiet() {
				fmt.Fprintln(cmd.OutOrStdout(), shared.RenderOK("Configuration reloaded"))
			}
			return nil
		},
	}
}
