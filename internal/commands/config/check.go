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


package config

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tombee/wallman/internal/commands/shared"
	"github.com/tombee/wallman/internal/config"
	daemonpkg "github.com/tombee/wallman/internal/daemon"
	"github.com/tombee/wallman/internal/log"
	"github.com/tombee/wallman/internal/trigger"
	"github.com/tombee/wallman/internal/wallpaper"
	"github.com/tombee/wallman/internal/weather"
)

// Where the checked outputs came from.
const (
	SourceFlag       = "flag"
	SourceCompositor = "compositor"
	SourceConfig     = "config"
)

// Replaced in tests.
var newFetch = func(cfg *config.Config) (weather.FetchFunc, error) {
	v, _, _ := shared.GetVersion()
	return daemonpkg.NewWeatherFetch(cfg, daemonpkg.Options{
		Version: v,
		Logger:  log.New(&log.Config{Level: "error"}),
	})
}

// CheckReport is the result of `wallman config check`.
type CheckReport struct {
	Config      string         `json:"config" yaml:"config"`
	Valid       bool           `json:"valid" yaml:"valid"`
	At          time.Time      `json:"at" yaml:"at"`
	OutputsFrom string         `json:"outputs_from" yaml:"outputs_from"`
	Warnings    []string       `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Outputs     []OutputReport `json:"outputs" yaml:"outputs"`
}

// OutputReport is the effective configuration and dry-run decision for
// one output.
type OutputReport struct {
	Output    string                          `json:"output" yaml:"output"`
	Effective wallpaper.EffectiveOutputConfig `json:"effective" yaml:"effective"`
	Decision  DecisionReport                  `json:"decision" yaml:"decision"`
}

// DecisionReport mirrors trigger.Decision with errors as strings.
type DecisionReport struct {
	Resolved bool              `json:"resolved" yaml:"resolved"`
	Trigger  string            `json:"trigger,omitempty" yaml:"trigger,omitempty"`
	Target   *wallpaper.Target `json:"target,omitempty" yaml:"target,omitempty"`
	Trail    []StepReport      `json:"trail,omitempty" yaml:"trail,omitempty"`
}

// StepReport is one evaluator result.
type StepReport struct {
	Trigger  string `json:"trigger" yaml:"trigger"`
	Resolved bool   `json:"resolved" yaml:"resolved"`
	Reason   string `json:"reason,omitempty" yaml:"reason,omitempty"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

type checkOptions struct {
	outputs []string
	at      string
	offline bool
	yaml    bool
}

// NewCheckCommand creates the 'config check' subcommand.
func NewCheckCommand() *cobra.Command {
	var opts checkOptions

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the config and preview wallpapers",
		Long: `Load and validate the configuration, then show the merged rules for
each output and the wallpaper the daemon would choose for it right now.

Outputs are taken from --outputs, otherwise from the compositor, otherwise
from the output names used in the config. Nothing is applied.

Checks performed:
  - YAML syntax and daemon settings
  - Every rule has its required images and a valid fill mode
  - Day ranges parse and do not start and end at the same time
  - Weather locations are in range and map at least one condition

An invalid configuration exits with code 3.`,
		Example: `  # Check the default config
  wallman config check

  # Preview two outputs at 21:30 without weather lookups
  wallman config check --outputs DP-1,HDMI-A-1 --at 21:30 --offline

  # Effective config as YAML
  wallman config check --yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.outputs, "outputs", nil, "Output names to check (default: from the compositor)")
	cmd.Flags().StringVar(&opts.at, "at", "", "Evaluate at this time (HH:MM today, or RFC 3339)")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "Skip weather lookups")
	cmd.Flags().BoolVar(&opts.yaml, "yaml", false, "Output the report as YAML")

	return cmd
}

func runCheck(ctx context.Context, out io.Writer, opts checkOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	at, err := parseAt(opts.at, time.Now())
	if err != nil {
		return err
	}

	cfg, err := config.Load(shared.GetConfigPath())
	if err != nil {
		return err
	}
	set, err := cfg.WallpaperSet()
	if err != nil {
		return err
	}

	report := &CheckReport{Config: cfg.Path(), Valid: true, At: at}

	names, source, warning := checkOutputs(ctx, cfg, set, opts.outputs)
	report.OutputsFrom = source
	if warning != "" {
		report.Warnings = append(report.Warnings, warning)
	}

	in := trigger.Inputs{Now: at}
	if !opts.offline {
		fetch, err := newFetch(cfg)
		if err != nil {
			return err
		}
		cache := weather.NewCache()
		in.Weather = func(ctx context.Context, lat, lon float64) (weather.Condition, error) {
			return cache.GetOrFetch(ctx, lat, lon, cfg.Daemon.WeatherTTL, func(ctx context.Context, lat, lon float64) (weather.Condition, error) {
				ctx, cancel := context.WithTimeout(ctx, cfg.Daemon.WeatherTimeout)
				defer cancel()
				return fetch(ctx, lat, lon)
			})
		}
	}

	chain := trigger.DefaultChain()
	effective := wallpaper.Resolve(names, set)
	for _, name := range names {
		eff := effective[name]
		report.Outputs = append(report.Outputs, OutputReport{
			Output:    name,
			Effective: eff,
			Decision:  decisionReport(chain.Evaluate(ctx, eff, in)),
		})
	}

	switch {
	case opts.yaml:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		return enc.Close()
	case shared.GetJSON():
		return shared.EmitJSON(ctx, out, report)
	default:
		renderReport(out, report)
		return nil
	}
}

// checkOutputs picks the outputs to evaluate.
func checkOutputs(ctx context.Context, cfg *config.Config, set *wallpaper.ConfigSet, flag []string) (names []string, source, warning string) {
	if len(flag) > 0 {
		return uniqueSorted(flag), SourceFlag, ""
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Daemon.CompositorTimeout)
	defer cancel()
	listed, err := daemonpkg.NewLister(cfg.Compositor).List(ctx)
	if err == nil {
		for _, o := range listed {
			if o.Active {
				names = append(names, o.Name)
			}
		}
		return uniqueSorted(names), SourceCompositor, ""
	}

	for _, key := range set.Keys() {
		if !key.IsWildcard() {
			names = append(names, string(key))
		}
	}
	return uniqueSorted(names), SourceConfig, fmt.Sprintf("could not list outputs, using names from the config: %v", err)
}

func decisionReport(d trigger.Decision) DecisionReport {
	r := DecisionReport{Resolved: d.Resolved}
	if d.Resolved {
		target := d.Target
		r.Trigger = string(d.Kind)
		r.Target = &target
	}
	for _, step := range d.Trail {
		s := StepReport{Trigger: string(step.Kind), Resolved: step.Resolved, Reason: step.Reason}
		if step.Err != nil {
			s.Error = step.Err.Error()
		}
		r.Trail = append(r.Trail, s)
	}
	return r
}

// parseAt parses "HH:MM" as a time today, or an RFC 3339 timestamp.
func parseAt(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return now, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Local(), nil
	}
	c, err := wallpaper.ParseClockTime(s)
	if err != nil {
		return time.Time{}, &shared.ExitError{Code: shared.ExitFailure, Message: fmt.Sprintf("invalid --at %q, want HH:MM or RFC 3339", s), Cause: err}
	}
	y, m, d := now.Date()
	return time.Date(y, m, d, c.Hour(), c.Minute(), 0, 0, now.Location()), nil
}

func uniqueSorted(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func renderReport(out io.Writer, r *CheckReport) {
	fmt.Fprintln(out, shared.RenderOK("Configuration is valid: "+r.Config))
	for _, w := range r.Warnings {
		fmt.Fprintln(out, shared.RenderWarn(w))
	}
	fmt.Fprintln(out, shared.RenderLabel(fmt.Sprintf("Evaluated at %s for outputs from the %s", shared.FormatTime(r.At), r.OutputsFrom)))

	if len(r.Outputs) == 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, shared.Muted.Render("No outputs to check"))
		return
	}

	for _, o := range r.Outputs {
		fmt.Fprintln(out)
		fmt.Fprintln(out, shared.Header.Render(o.Output))

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		if b := o.Effective.Background; b != nil {
			fmt.Fprintf(w, "  %s\t%s (%s)\n", shared.RenderLabel("background"), b.Image, b.FillMode)
		}
		if t := o.Effective.Time; t != nil {
			fmt.Fprintf(w, "  %s\tday %s, night %s, day range %s\n", shared.RenderLabel("time"), t.DayImage, t.NightImage, t.DayRange)
		}
		if wt := o.Effective.Weather; wt != nil {
			conds := make([]string, 0, len(wt.Images))
			for c := range wt.Images {
				conds = append(conds, string(c))
			}
			slices.Sort(conds)
			fmt.Fprintf(w, "  %s\t%.2f,%.2f: %s\n", shared.RenderLabel("weather"), wt.Lat, wt.Lon, strings.Join(conds, ", "))
		}
		if o.Effective.IsEmpty() {
			fmt.Fprintf(w, "  %s\t%s\n", shared.RenderLabel("rules"), shared.Muted.Render("none"))
		}
		w.Flush()

		d := o.Decision
		if d.Resolved {
			fmt.Fprintf(out, "  %s %s\n", shared.RenderStatus(true, shared.Title(d.Trigger)), d.Target)
		} else {
			fmt.Fprintf(out, "  %s left unchanged\n", shared.RenderStatus(false, "unresolved"))
		}
		for _, step := range d.Trail {
			if step.Resolved {
				continue
			}
			detail := step.Reason
			if step.Error != "" {
				detail = step.Error
			}
			fmt.Fprintf(out, "    %s %s: %s\n", shared.SymbolInfo, step.Trigger, detail)
		}
	}
}
