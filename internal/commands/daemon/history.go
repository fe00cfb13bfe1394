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
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/wallman/internal/commands/shared"
	"github.com/tombee/wallman/internal/daemon/api"
	"github.com/tombee/wallman/internal/daemon/history"
)

// NewHistoryCommand creates the daemon history command.
func NewHistoryCommand() *cobra.Command {
	var (
		limit  int
		output string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently applied wallpapers",
		Long: `List the most recent wallpaper changes and failures recorded by the
daemon, newest first.`,
		Example: `  wallman daemon history --limit 50

  # Only DP-1, as JSON
  wallman daemon history --output DP-1 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(false)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			entries, err := s.client().History(ctx, limit, output)
			if err != nil {
				return notRunning(err)
			}

			if shared.GetJSON() {
				if entries == nil {
					entries = []history.Entry{}
				}
				return shared.EmitJSON(ctx, cmd.OutOrStdout(), entries)
			}
			renderHistory(cmd.OutOrStdout(), entries)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", api.DefaultHistoryLimit, "Number of entries to show")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Only show entries for this output")

	return cmd
}

func renderHistory(out io.Writer, entries []history.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(out, shared.Muted.Render("No wallpaper changes recorded"))
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tOUTPUT\tTRIGGER\tRESULT\tIMAGE\tDURATION")
	for _, e := range entries {
		result := shared.StatusOK.Render(e.Result)
		image := imageName(e.Image)
		if e.Error != "" {
			result = shared.StatusError.Render(e.Result)
			image = e.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			shared.FormatTime(e.Time),
			e.Output,
			shared.Title(e.Trigger),
			result,
			image,
			(time.Duration(e.DurationMS) * time.Millisecond).String(),
		)
	}
	w.Flush()
}
