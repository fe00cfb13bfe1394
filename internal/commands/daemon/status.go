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
	"path/filepath"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/wallman/internal/commands/shared"
	"github.com/tombee/wallman/internal/daemon/runtime"
)

// NewStatusCommand creates the daemon status command.
func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status and current wallpapers",
		Long: `Display the daemon state, the last evaluation cycle and the wallpaper
currently applied to each connected output.

Exits with code 2 when no daemon is running.`,
		Example: `  wallman daemon status

  # Image on DP-1
  wallman daemon status --jq '.outputs["DP-1"].image'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(false)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			st, err := s.client().Status(ctx)
			if err != nil {
				return notRunning(err)
			}

			if shared.GetJSON() {
				return shared.EmitJSON(ctx, cmd.OutOrStdout(), st)
			}
			renderStatus(cmd.OutOrStdout(), st, time.Now())
			return nil
		},
	}
}

func renderStatus(out io.Writer, st *runtime.Status, now time.Time) {
	fmt.Fprintln(out, shared.Header.Render("Wallman Daemon"))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\n", shared.RenderLabel("State:"), shared.RenderState(string(st.State)))
	if st.PID > 0 {
		fmt.Fprintf(w, "%s\t%d\n", shared.RenderLabel("PID:"), st.PID)
	}
	if st.Version != "" {
		fmt.Fprintf(w, "%s\t%s\n", shared.RenderLabel("Version:"), st.Version)
	}
	fmt.Fprintf(w, "%s\t%s\n", shared.RenderLabel("Backend:"), st.Backend)
	fmt.Fprintf(w, "%s\t%s\n", shared.RenderLabel("Uptime:"), st.Uptime(now).Round(time.Second))
	fmt.Fprintf(w, "%s\t%d\n", shared.RenderLabel("Cycles:"), st.Cycles)
	if c := st.LastCycle; c != nil {
		fmt.Fprintf(w, "%s\t%s\n", shared.RenderLabel("Last cycle:"), describeCycle(c, now))
	}
	if st.NextCycleAt != nil {
		fmt.Fprintf(w, "%s\t%s\n", shared.RenderLabel("Next cycle:"), shared.FormatTime(*st.NextCycleAt))
	}
	if st.LastReloadAt != nil {
		reload := shared.FormatAgo(*st.LastReloadAt, now)
		if st.LastReloadError != "" {
			reload = shared.StatusError.Render("failed " + reload + ": " + st.LastReloadError)
		}
		fmt.Fprintf(w, "%s\t%s\n", shared.RenderLabel("Last reload:"), reload)
	}
	if ws := st.Weather; ws != nil {
		fmt.Fprintf(w, "%s\t%d cached, %d hits, %d misses, %d errors\n",
			shared.RenderLabel("Weather:"), ws.Entries, ws.Hits, ws.Misses, ws.Errors)
	}
	w.Flush()

	fmt.Fprintln(out)
	if len(st.Outputs) == 0 {
		fmt.Fprintln(out, shared.Muted.Render("No outputs connected"))
		return
	}

	names := make([]string, 0, len(st.Outputs))
	for name := range st.Outputs {
		names = append(names, name)
	}
	slices.Sort(names)

	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "OUTPUT\tTRIGGER\tIMAGE\tMODE\tAPPLIED")
	for _, name := range names {
		o := st.Outputs[name]
		trigger := shared.Title(o.Trigger)
		if !o.Resolved {
			trigger = shared.StatusWarn.Render("unresolved")
		}
		applied := "-"
		if o.AppliedAt != nil {
			applied = shared.FormatAgo(*o.AppliedAt, now)
		}
		if o.LastError != "" {
			applied = shared.StatusError.Render(shared.SymbolError + " " + o.LastError)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", name, trigger, imageName(o.Image), dash(o.FillMode), applied)
	}
	w.Flush()
}

func describeCycle(c *runtime.CycleStatus, now time.Time) string {
	when := shared.FormatAgo(c.At, now)
	if c.Error != "" {
		return shared.StatusWarn.Render(fmt.Sprintf("skipped %s: %s", when, c.Error))
	}
	return fmt.Sprintf("%s, %d applied, %d unchanged, %d unresolved, %d failed (%dms)",
		when, c.Applied, c.Unchanged, c.Unresolved, c.Failed, c.DurationMS)
}

func imageName(path string) string {
	if path == "" {
		return "-"
	}
	return filepath.Base(path)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
