// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package commandtest provides a scripted [command.Runner] for tests.
package commandtest

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.astrophena.name/pyship/command"
)

// Call is a recorded command invocation.
type Call struct {
	command.Cmd
	// Stdin holds everything the command's standard input provided.
	Stdin string
}

// Handler produces the result of a command.
type Handler func(c Call) (command.Result, error)

// Fake is a [command.Runner] that dispatches commands to handlers keyed by
// command line prefix and records every call.
type Fake struct {
	mu       sync.Mutex
	handlers []prefixHandler
	calls    []Call
}

type prefixHandler struct {
	prefix string
	h      Handler
}

// Handle registers h for commands whose command line starts with prefix.
// The longest matching prefix wins; among equal prefixes the latest
// registration wins.
func (f *Fake) Handle(prefix string, h Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, prefixHandler{prefix: prefix, h: h})
}

// Reply registers a handler that always returns output and exit code.
func (f *Fake) Reply(prefix, output string, code int) {
	f.Handle(prefix, func(Call) (command.Result, error) {
		return command.Result{Output: []byte(output), ExitCode: code}, nil
	})
}

// Run implements [command.Runner]. Commands without a handler fail with an
// error, like a missing executable.
func (f *Fake) Run(ctx context.Context, c command.Cmd) (command.Result, error) {
	if err := ctx.Err(); err != nil {
		return command.Result{}, err
	}
	call := Call{Cmd: c}
	if c.Stdin != nil {
		b, err := io.ReadAll(c.Stdin)
		if err != nil {
			return command.Result{}, err
		}
		call.Stdin = string(b)
	}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	var (
		best Handler
		n    = -1
	)
	line := c.String()
	for _, ph := range f.handlers {
		if strings.HasPrefix(line, ph.prefix) && len(ph.prefix) >= n {
			best, n = ph.h, len(ph.prefix)
		}
	}
	f.mu.Unlock()

	if best == nil {
		return command.Result{}, fmt.Errorf("running %s: executable file not found", c)
	}
	return best(call)
}

// Calls returns the recorded calls.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Lines returns the command lines of the recorded calls.
func (f *Fake) Lines() []string {
	var lines []string
	for _, c := range f.Calls() {
		lines = append(lines, c.String())
	}
	return lines
}
