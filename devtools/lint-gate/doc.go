// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Lint-gate runs a linter over the staged changes of a Git repository. It is
meant to be called from a Git pre-commit hook.

If the linter finds problems, lint-gate prints "flake8 checking failed:"
followed by the linter's output and exits with the linter's exit code, which
makes Git abort the commit. Otherwise it prints nothing and exits with
status 0. When no matching files are staged the linter is not started.

Usage:

	lint-gate [-C dir] [-install [-force]]

With -install, lint-gate writes a pre-commit hook that runs the current
executable and exits. An existing hook is only replaced with -force.

The linter is configured through the .devtools/config.txtar file in the
repository root. This file is a txtar archive and can contain a
lint-gate.json file with the following fields:

  - linter: the linter command line (default ["flake8"]). The name of its
    executable is used in the failure banner.
  - mode: "paths" (default) passes the staged files as arguments; "diff"
    pipes the staged diff to the linter's standard input, as expected by
    "flake8 --diff".
  - scope: "staged" (default) or "tracked" to lint every tracked file.
  - extensions: file extensions to lint (default [".py"]); "*" selects
    every file.
  - only_changed_lines: if true, diagnostics that point outside the lines
    added by the staged changes are ignored.
*/
package main

import (
	_ "embed"

	"go.astrophena.name/pyship/cli"
)

//go:embed doc.go
var doc []byte

func init() { cli.SetDocComment(doc) }
