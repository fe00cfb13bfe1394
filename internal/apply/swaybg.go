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
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/tombee/wallman/internal/log"
	"github.com/tombee/wallman/internal/wallpaper"
)

// Swaybg defaults.
const (
	DefaultSwaybgBinary = "swaybg"
	DefaultSettle       = 300 * time.Millisecond

	stopTimeout = 2 * time.Second
)

// Swaybg keeps one long-lived swaybg process per output. A replacement
// process must survive the settle window before the previous one is
// stopped, so a bad image never blanks the output.
type Swaybg struct {
	binary string
	settle time.Duration
	logger *slog.Logger
	onExit func(output string)

	mu    sync.Mutex
	procs map[string]*child
}

// SwaybgOption configures a Swaybg backend.
type SwaybgOption func(*Swaybg)

// WithBinary overrides the swaybg executable.
func WithBinary(path string) SwaybgOption {
	return func(s *Swaybg) {
		if path != "" {
			s.binary = path
		}
	}
}

// WithSettle sets how long a new process must stay up.
func WithSettle(d time.Duration) SwaybgOption {
	return func(s *Swaybg) {
		if d > 0 {
			s.settle = d
		}
	}
}

// WithExitHandler registers fn to be called when a current process exits
// on its own, so the output can be re-applied.
func WithExitHandler(fn func(output string)) SwaybgOption {
	return func(s *Swaybg) { s.onExit = fn }
}

// WithSwaybgLogger sets the backend logger.
func WithSwaybgLogger(logger *slog.Logger) SwaybgOption {
	return func(s *Swaybg) { s.logger = log.WithComponent(logger, "swaybg") }
}

// NewSwaybg creates a swaybg backend.
func NewSwaybg(opts ...SwaybgOption) *Swaybg {
	s := &Swaybg{
		binary: DefaultSwaybgBinary,
		settle: DefaultSettle,
		logger: log.WithComponent(nil, "swaybg"),
		procs:  make(map[string]*child),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Backend.
func (s *Swaybg) Name() string { return "swaybg" }

// Apply implements Backend.
func (s *Swaybg) Apply(ctx context.Context, output, image string, mode wallpaper.FillMode) error {
	if _, err := os.Stat(image); err != nil {
		return fmt.Errorf("image %s: %w", image, err)
	}

	c, err := startChild(s.binary, "-o", output, "-i", image, "-m", string(mode))
	if err != nil {
		return err
	}

	timer := time.NewTimer(s.settle)
	defer timer.Stop()

	select {
	case <-c.done:
		return fmt.Errorf("swaybg exited during startup: %w", c.exitError())
	case <-ctx.Done():
		c.stop()
		return ctx.Err()
	case <-timer.C:
	}

	s.mu.Lock()
	old := s.procs[output]
	s.procs[output] = c
	s.mu.Unlock()

	go s.watch(output, c)

	if old != nil {
		old.stop()
	}
	return nil
}

// Release implements Backend.
func (s *Swaybg) Release(output string) error {
	s.mu.Lock()
	c := s.procs[output]
	delete(s.procs, output)
	s.mu.Unlock()

	if c != nil {
		c.stop()
	}
	return nil
}

// Close implements Backend.
func (s *Swaybg) Close() error {
	s.mu.Lock()
	procs := s.procs
	s.procs = make(map[string]*child)
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, c := range procs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.stop()
		}()
	}
	wg.Wait()
	return nil
}

// PID returns the process ID serving output, or 0.
func (s *Swaybg) PID(output string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c := s.procs[output]; c != nil {
		return c.cmd.Process.Pid
	}
	return 0
}

// watch notices a current process dying on its own.
func (s *Swaybg) watch(output string, c *child) {
	<-c.done

	s.mu.Lock()
	current := s.procs[output] == c
	if current {
		delete(s.procs, output)
	}
	s.mu.Unlock()

	if !current || c.stopped() {
		return
	}
	s.logger.Warn("swaybg exited unexpectedly", log.OutputKey, output, log.Error(c.exitError()))
	if s.onExit != nil {
		s.onExit(output)
	}
}

// child is a started process that is reaped in the background.
type child struct {
	cmd    *exec.Cmd
	stderr *tailBuffer
	done   chan struct{}
	err    error

	mu       sync.Mutex
	stopping bool
}

func startChild(binary string, args ...string) (*child, error) {
	c := &child{
		cmd:    exec.Command(binary, args...),
		stderr: &tailBuffer{max: 2048},
		done:   make(chan struct{}),
	}
	c.cmd.Stderr = c.stderr
	c.cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.cmd.WaitDelay = stopTimeout

	if err := c.cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", binary, err)
	}
	go func() {
		c.err = c.cmd.Wait()
		close(c.done)
	}()
	return c, nil
}

// stop sends SIGTERM and escalates to SIGKILL if the process lingers.
func (c *child) stop() {
	c.mu.Lock()
	c.stopping = true
	c.mu.Unlock()

	select {
	case <-c.done:
		return
	default:
	}

	pgid := -c.cmd.Process.Pid
	_ = syscall.Kill(pgid, syscall.SIGTERM)
	select {
	case <-c.done:
	case <-time.After(stopTimeout):
		_ = syscall.Kill(pgid, syscall.SIGKILL)
		<-c.done
	}
}

func (c *child) stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopping
}

// exitError describes how the process ended. Only valid after done.
func (c *child) exitError() error {
	msg := strings.TrimSpace(c.stderr.String())
	switch {
	case c.err != nil && msg != "":
		return fmt.Errorf("%w: %s", c.err, msg)
	case c.err != nil:
		return c.err
	case msg != "":
		return fmt.Errorf("exit status 0: %s", msg)
	default:
		return fmt.Errorf("exit status 0")
	}
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
