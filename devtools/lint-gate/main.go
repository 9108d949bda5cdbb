// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.astrophena.name/pyship/cli"
	"go.astrophena.name/pyship/command"
	"go.astrophena.name/pyship/devtools/internal"
	"go.astrophena.name/pyship/git"
)

const hookShellScript = `#!/bin/sh
exec %s -C "$(git rev-parse --show-toplevel)"
`

var errHookExists = errors.New("hook already exists")

func main() { cli.Main(new(app)) }

type app struct {
	dir            string
	install, force bool

	// for tests
	runner     command.Runner
	executable func() (string, error)
}

func (a *app) Flags(flags *flag.FlagSet) {
	flags.StringVar(&a.dir, "C", "", "Run as if started in `dir`.")
	flags.BoolVar(&a.install, "install", false, "Install the Git pre-commit hook and exit.")
	flags.BoolVar(&a.force, "force", false, "With -install, replace an existing hook.")
}

func (a *app) Run(ctx context.Context) error {
	env := cli.GetEnv(ctx)
	if len(env.Args) > 0 {
		return fmt.Errorf("%w: unexpected arguments %q", cli.ErrInvalidArgs, env.Args)
	}
	if a.runner == nil {
		a.runner = new(command.Exec)
	}

	repo, err := git.Open(ctx, a.runner, a.dir)
	if err != nil {
		return err
	}
	if a.install {
		return a.installHook(ctx, repo)
	}

	cfg, err := internal.LoadConfig(repo.Root)
	if err != nil {
		return err
	}
	report, err := cfg.LintGate.Gate(a.runner).Check(ctx, repo)
	if err != nil {
		return err
	}
	if !report.Failed() {
		return nil
	}
	if err := report.Print(env.Stdout, cli.TerminalWidth(env.Stdout) > 0); err != nil {
		return err
	}
	return &cli.ExitError{Code: report.ExitCode}
}

func (a *app) installHook(ctx context.Context, repo *git.Repo) error {
	env := cli.GetEnv(ctx)

	path, err := repo.HookPath(ctx, "pre-commit")
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil && !a.force {
		return fmt.Errorf("%s: %w; use -force to replace it", path, errHookExists)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	executable := a.executable
	if executable == nil {
		executable = os.Executable
	}
	exe, err := executable()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, fmt.Appendf(nil, hookShellScript, shellQuote(exe)), 0o755); err != nil {
		return err
	}
	// WriteFile keeps the mode of a replaced hook.
	if err := os.Chmod(path, 0o755); err != nil {
		return err
	}
	env.Logf("Installed %s.", path)
	return nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
