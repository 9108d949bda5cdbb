// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package lint runs a linter over the files of a Git working tree and
// reports its verdict.
package lint

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/fatih/color"

	"go.astrophena.name/pyship/command"
	"go.astrophena.name/pyship/git"
	"go.astrophena.name/pyship/logger"
	"go.astrophena.name/pyship/syncx"
)

// Mode selects how files are handed to the linter.
type Mode string

const (
	// ModePaths passes the file paths as arguments.
	ModePaths Mode = "paths"
	// ModeDiff pipes the staged diff into the linter's standard input.
	ModeDiff Mode = "diff"
)

// Scope selects which files are linted.
type Scope string

const (
	// ScopeStaged lints files with staged changes.
	ScopeStaged Scope = "staged"
	// ScopeTracked lints every tracked file.
	ScopeTracked Scope = "tracked"
)

var (
	// DefaultLinter is used when Gate.Linter is empty.
	DefaultLinter = []string{"flake8"}
	// DefaultExtensions is used when Gate.Extensions is empty.
	DefaultExtensions = []string{".py"}
)

// Gate decides whether a working tree passes the linter.
type Gate struct {
	Runner command.Runner

	// Linter is the linter command line. Defaults to DefaultLinter.
	Linter []string
	// Mode defaults to ModePaths.
	Mode Mode
	// Scope defaults to ScopeStaged.
	Scope Scope
	// Extensions limits linted files by extension. Defaults to
	// DefaultExtensions; "*" matches every file.
	Extensions []string
	// OnlyChangedLines drops diagnostics outside lines added by the staged
	// changes. It has no effect with ScopeTracked.
	OnlyChangedLines bool
}

func (g *Gate) linter() []string {
	if len(g.Linter) == 0 {
		return DefaultLinter
	}
	return g.Linter
}

// Check lints repo.
//
// Failures of the linter are reported through [Report.ExitCode]; an error is
// returned only if Git fails or the linter cannot be started.
func (g *Gate) Check(ctx context.Context, repo *git.Repo) (*Report, error) {
	linter := g.linter()
	report := &Report{Linter: filepath.Base(linter[0])}

	var files []string
	var err error
	switch g.Scope {
	case ScopeStaged, "":
		files, err = repo.StagedFiles(ctx)
	case ScopeTracked:
		files, err = repo.TrackedFiles(ctx)
	default:
		return nil, fmt.Errorf("lint: unknown scope %q", g.Scope)
	}
	if err != nil {
		return nil, fmt.Errorf("lint: listing files: %w", err)
	}
	report.Files = g.filter(files)
	if len(report.Files) == 0 {
		logger.Debug(ctx, "nothing to lint", slog.Int("candidates", len(files)))
		return report, nil
	}

	var diff syncx.Lazy[[]byte]
	stagedDiff := func() ([]byte, error) {
		return diff.GetErr(func() ([]byte, error) { return repo.StagedDiff(ctx, 0) })
	}

	c := command.Cmd{Dir: repo.Root, Name: linter[0], Args: slices.Clone(linter[1:])}
	switch g.Mode {
	case ModePaths, "":
		c.Args = append(c.Args, report.Files...)
	case ModeDiff:
		d, err := stagedDiff()
		if err != nil {
			return nil, fmt.Errorf("lint: reading staged diff: %w", err)
		}
		c.Stdin = bytes.NewReader(d)
	default:
		return nil, fmt.Errorf("lint: unknown mode %q", g.Mode)
	}

	res, err := g.Runner.Run(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("lint: %w", err)
	}
	report.ExitCode, report.Output = res.ExitCode, res.Output

	if report.Failed() && g.OnlyChangedLines && g.Scope != ScopeTracked {
		d, err := stagedDiff()
		if err != nil {
			return nil, fmt.Errorf("lint: reading staged diff: %w", err)
		}
		changed, err := ChangedLines(d)
		if err != nil {
			return nil, fmt.Errorf("lint: %w", err)
		}
		out, significant := FilterOutput(report.Output, repo.Root, changed)
		report.Output = out
		if !significant {
			logger.Debug(ctx, "all diagnostics outside changed lines", slog.Int("exit_code", report.ExitCode))
			report.ExitCode, report.Output = 0, nil
		}
	}
	return report, nil
}

func (g *Gate) filter(files []string) []string {
	exts := g.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	if slices.Contains(exts, "*") {
		return files
	}
	var matched []string
	for _, f := range files {
		if slices.Contains(exts, filepath.Ext(f)) {
			matched = append(matched, f)
		}
	}
	return matched
}

// Report is the outcome of a [Gate.Check].
type Report struct {
	// Linter is the linter's name used in the banner.
	Linter string
	// Files are the linted files.
	Files []string
	// ExitCode is the linter's exit status; zero if it did not run.
	ExitCode int
	// Output is the linter's combined output.
	Output []byte
}

// Failed reports whether the linter found problems.
func (r *Report) Failed() bool { return r.ExitCode != 0 }

// Banner returns the header line printed above the output of a failed run.
func (r *Report) Banner() string { return r.Linter + " checking failed:" }

// Print writes the banner and output of a failed run to w. It writes
// nothing if the run succeeded. The banner is colored if colored is true.
func (r *Report) Print(w io.Writer, colored bool) error {
	if !r.Failed() {
		return nil
	}
	banner := color.New(color.FgRed, color.Bold)
	if colored {
		banner.EnableColor()
	} else {
		banner.DisableColor()
	}
	if _, err := banner.Fprintln(w, r.Banner()); err != nil {
		return err
	}
	out := r.Output
	if len(out) > 0 && out[len(out)-1] != '\n' {
		out = append(slices.Clip(out), '\n')
	}
	_, err := w.Write(out)
	return err
}

// Err returns an [*Error] if the run failed.
func (r *Report) Err() error {
	if !r.Failed() {
		return nil
	}
	return &Error{Linter: r.Linter, Code: r.ExitCode}
}

// Error reports a failed lint run.
type Error struct {
	Linter string
	Code   int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s checking failed (exit status %d)", e.Linter, e.Code)
}

// ExitCode returns the linter's exit status.
func (e *Error) ExitCode() int { return e.Code }

func cleanPath(p, root string) string {
	if filepath.IsAbs(p) {
		if rel, err := filepath.Rel(root, p); err == nil {
			p = rel
		}
	}
	return strings.TrimPrefix(filepath.ToSlash(filepath.Clean(p)), "./")
}
