/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package suspend puts the host to sleep by running the platform suspend command.
package suspend

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/go-logr/logr"
)

const (
	// DefaultTimeout bounds how long the suspend command may run
	DefaultTimeout = 30 * time.Second
)

// DefaultCommand asks systemd to suspend the machine
var DefaultCommand = []string{"systemctl", "suspend"}

// ErrEmptyCommand is returned when no suspend command is configured
var ErrEmptyCommand = errors.New("suspend command is empty")

// Runner executes a command and returns its combined output
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Options configures a Suspender
type Options struct {
	Command []string
	Timeout time.Duration
	DryRun  bool
	Runner  Runner
}

// Suspender runs the suspend command
type Suspender struct {
	command []string
	timeout time.Duration
	dryRun  bool
	runner  Runner
	log     logr.Logger
}

// New creates a Suspender, filling unset options with defaults
func New(opts Options, log logr.Logger) *Suspender {
	if len(opts.Command) == 0 {
		opts.Command = DefaultCommand
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Runner == nil {
		opts.Runner = ExecRunner{}
	}
	return &Suspender{
		command: append([]string(nil), opts.Command...),
		timeout: opts.Timeout,
		dryRun:  opts.DryRun,
		runner:  opts.Runner,
		log:     log,
	}
}

// Suspend runs the suspend command and waits for it to return
func (s *Suspender) Suspend(ctx context.Context) error {
	if len(s.command) == 0 || s.command[0] == "" {
		return ErrEmptyCommand
	}

	if s.dryRun {
		s.log.Info("Dry run: not suspending", "command", strings.Join(s.command, " "))
		return nil
	}

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	output, err := s.runner.Run(runCtx, s.command[0], s.command[1:]...)
	if err != nil {
		out := strings.TrimSpace(string(output))
		if out != "" {
			return fmt.Errorf("%s failed: %w: %s", strings.Join(s.command, " "), err, out)
		}
		return fmt.Errorf("%s failed: %w", strings.Join(s.command, " "), err)
	}

	s.log.Info("System suspend initiated", "command", strings.Join(s.command, " "), "durationMs", time.Since(start).Milliseconds())
	return nil
}
