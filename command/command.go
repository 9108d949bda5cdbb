// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package command runs external tools and reports their combined output and
// exit status.
package command

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/go4org/hashtriemap"
	"github.com/magefile/mage/sh"

	"go.astrophena.name/pyship/logger"
)

// Cmd describes a command invocation.
type Cmd struct {
	// Dir is the working directory. Empty means the current one.
	Dir string
	// Name is the program to run, looked up in PATH if it has no separators.
	Name string
	// Args are the program arguments.
	Args []string
	// Stdin, if not nil, is connected to the standard input.
	Stdin io.Reader
	// Env holds additional KEY=value pairs appended to the process
	// environment.
	Env []string
}

// String returns the command line of c.
func (c Cmd) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Result is the outcome of a command that ran to completion.
type Result struct {
	// Output holds the interleaved standard output and standard error.
	Output []byte
	// ExitCode is the exit status of the process.
	ExitCode int
}

// Err returns an [*ExitError] for c if r reports a non-zero exit status.
func (r Result) Err(c Cmd) error {
	if r.ExitCode == 0 {
		return nil
	}
	return &ExitError{Cmd: c.String(), Code: r.ExitCode, Output: r.Output}
}

// Runner runs commands.
//
// A command that starts and exits with a non-zero status is reported through
// [Result.ExitCode] with a nil error. An error is returned only if the
// command could not be run at all.
type Runner interface {
	Run(ctx context.Context, c Cmd) (Result, error)
}

// ExitError reports a command that exited with a non-zero status.
type ExitError struct {
	Cmd    string
	Code   int
	Output []byte
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s: exit status %d", e.Cmd, e.Code)
	if out := bytes.TrimSpace(e.Output); len(out) > 0 {
		msg += ":\n" + string(out)
	}
	return msg
}

// ExitCode returns the exit status of the command.
func (e *ExitError) ExitCode() int { return e.Code }

// Exec is a [Runner] that starts real processes. The zero value is ready to
// use; it must not be copied after first use.
type Exec struct {
	paths hashtriemap.HashTrieMap[string, string]
}

// Run implements [Runner].
func (e *Exec) Run(ctx context.Context, c Cmd) (Result, error) {
	path, err := e.lookPath(c.Name)
	if err != nil {
		return Result{}, fmt.Errorf("running %s: %w", c, err)
	}

	var buf bytes.Buffer
	cmd := exec.CommandContext(ctx, path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdin = c.Stdin
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	logger.Debug(ctx, "running command", slog.String("cmd", c.String()), slog.String("dir", c.Dir))
	err = cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{Output: buf.Bytes()}, fmt.Errorf("%s: %w", c, ctxErr)
	}
	if !sh.CmdRan(err) {
		return Result{}, fmt.Errorf("running %s: %w", c, err)
	}
	return Result{Output: buf.Bytes(), ExitCode: sh.ExitStatus(err)}, nil
}

func (e *Exec) lookPath(name string) (string, error) {
	if strings.ContainsRune(name, os.PathSeparator) {
		return name, nil
	}
	if path, ok := e.paths.Load(name); ok {
		return path, nil
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", err
	}
	path, _ = e.paths.LoadOrStore(name, path)
	return path, nil
}
