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

package apply

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/tombee/wallman/internal/wallpaper"
)

// DefaultCommandTimeout bounds one run of a command backend.
const DefaultCommandTimeout = 30 * time.Second

// Command runs a one-shot command per apply, built from a template with
// {output}, {image} and {mode} placeholders, e.g.
// "swww img -o {output} {image}". The template is split on whitespace
// before substitution so image paths may contain spaces.
type Command struct {
	args    []string
	release []string
	timeout time.Duration
}

// NewCommand parses template. Release, when non-empty, is run with the
// same placeholders when an output disappears.
func NewCommand(template, release string) (*Command, error) {
	args := strings.Fields(template)
	if len(args) == 0 {
		return nil, fmt.Errorf("command template is empty")
	}
	if !strings.Contains(template, "{image}") {
		return nil, fmt.Errorf("command template %q has no {image} placeholder", template)
	}
	return &Command{
		args:    args,
		release: strings.Fields(release),
		timeout: DefaultCommandTimeout,
	}, nil
}

// Name implements Backend.
func (c *Command) Name() string { return c.args[0] }

// Apply implements Backend.
func (c *Command) Apply(ctx context.Context, output, image string, mode wallpaper.FillMode) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return run(ctx, expand(c.args, output, image, mode))
}

// Release implements Backend.
func (c *Command) Release(output string) error {
	if len(c.release) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return run(ctx, expand(c.release, output, "", ""))
}

// Close implements Backend.
func (c *Command) Close() error { return nil }

func expand(tmpl []string, output, image string, mode wallpaper.FillMode) []string {
	r := strings.NewReplacer("{output}", output, "{image}", image, "{mode}", string(mode))
	out := make([]string, len(tmpl))
	for i, a := range tmpl {
		out[i] = r.Replace(a)
	}
	return out
}

func run(ctx context.Context, argv []string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}
