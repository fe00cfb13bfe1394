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

package outputs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// CommandLister runs an external command that prints a JSON array of
// outputs, such as "swaymsg -t get_outputs -r" or "hyprctl monitors -j".
type CommandLister struct {
	Args []string
}

// List implements Lister.
func (c CommandLister) List(ctx context.Context) ([]Output, error) {
	if len(c.Args) == 0 {
		return nil, unavailable("command", errors.New("no command configured"))
	}
	source := c.Args[0]

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Args[0], c.Args[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, unavailable(source, ctx.Err())
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return nil, unavailable(source, err)
	}

	outs, err := ParseOutputs(stdout.Bytes())
	if err != nil {
		return nil, malformed(source, err)
	}
	return outs, nil
}

// Auto returns the sway IPC lister when a socket is available and the
// command lister otherwise.
func Auto(socket string, command []string) Lister {
	ipc := SwayIPC{Socket: socket}
	if ipc.socket() != "" {
		return ipc
	}
	return CommandLister{Args: command}
}
