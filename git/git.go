// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package git queries and cleans a Git working tree through the git command.
package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"go.astrophena.name/pyship/command"
	"go.astrophena.name/pyship/logger"
)

// StagedFilter selects added, copied, modified, renamed, type-changed,
// unmerged, unknown and pairing-broken files; deletions are excluded.
const StagedFilter = "ACMRTUXB"

var (
	// ErrNotRepository is returned when a directory is not inside a Git
	// working tree.
	ErrNotRepository = errors.New("not a git repository")
	// ErrUnsafeClean is returned when the clean precondition fails.
	ErrUnsafeClean = errors.New("refusing to clean")
)

// Repo is a Git working tree.
type Repo struct {
	// Root is the absolute path of the top-level directory.
	Root string

	runner command.Runner
}

// Open finds the working tree containing dir.
func Open(ctx context.Context, r command.Runner, dir string) (*Repo, error) {
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	root, err := toplevel(ctx, r, abs)
	if err != nil {
		return nil, err
	}
	logger.Debug(ctx, "opened repository", slog.String("root", root))
	return &Repo{Root: root, runner: r}, nil
}

func toplevel(ctx context.Context, r command.Runner, dir string) (string, error) {
	c := command.Cmd{Name: "git", Args: []string{"-C", dir, "rev-parse", "--show-toplevel"}}
	res, err := r.Run(ctx, c)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("%s: %w", dir, errors.Join(ErrNotRepository, res.Err(c)))
	}
	root := strings.TrimSpace(string(res.Output))
	if root == "" {
		return "", fmt.Errorf("%s: %w", dir, ErrNotRepository)
	}
	return filepath.Clean(filepath.FromSlash(root)), nil
}

func (r *Repo) git(ctx context.Context, args ...string) ([]byte, error) {
	c := command.Cmd{Dir: r.Root, Name: "git", Args: args}
	res, err := r.runner.Run(ctx, c)
	if err != nil {
		return nil, err
	}
	if err := res.Err(c); err != nil {
		return nil, err
	}
	return res.Output, nil
}

// StagedFiles returns the repository-relative paths of staged files matching
// [StagedFilter], in the order reported by Git.
func (r *Repo) StagedFiles(ctx context.Context) ([]string, error) {
	out, err := r.git(ctx, "diff", "--cached", "--name-only", "-z", "--diff-filter="+StagedFilter)
	if err != nil {
		return nil, err
	}
	return splitNUL(out), nil
}

// TrackedFiles returns the repository-relative paths of all tracked files.
func (r *Repo) TrackedFiles(ctx context.Context) ([]string, error) {
	out, err := r.git(ctx, "ls-files", "-z")
	if err != nil {
		return nil, err
	}
	return splitNUL(out), nil
}

// StagedDiff returns the unified diff of staged changes matching
// [StagedFilter] with the given number of context lines.
func (r *Repo) StagedDiff(ctx context.Context, lines int) ([]byte, error) {
	return r.git(ctx,
		"diff", "--cached", "--no-color", "--no-ext-diff",
		"-U"+strconv.Itoa(lines),
		"--diff-filter="+StagedFilter,
	)
}

// HookPath returns the absolute path of the hook script name, honoring
// core.hooksPath and linked worktrees.
func (r *Repo) HookPath(ctx context.Context, name string) (string, error) {
	out, err := r.git(ctx, "rev-parse", "--git-path", "hooks/"+name)
	if err != nil {
		return "", err
	}
	p := filepath.FromSlash(strings.TrimSpace(string(out)))
	if !filepath.IsAbs(p) {
		p = filepath.Join(r.Root, p)
	}
	return p, nil
}

// Clean removes every untracked file from the working tree, including
// ignored ones. If dryRun is true, nothing is removed.
//
// It returns the repository-relative paths that were (or would be) removed.
//
// Before running, Clean checks that Root is still the top-level directory
// of a working tree, that it is not the filesystem root and that check, if
// not nil, accepts it.
func (r *Repo) Clean(ctx context.Context, dryRun bool, check func(root string) error) ([]string, error) {
	if err := r.checkClean(ctx, check); err != nil {
		return nil, err
	}
	mode := "-f"
	if dryRun {
		mode = "-n"
	}
	out, err := r.git(ctx, "clean", "-x", "-d", mode)
	if err != nil {
		return nil, err
	}
	return parseClean(out), nil
}

func (r *Repo) checkClean(ctx context.Context, check func(root string) error) error {
	if r.Root == "" || filepath.Dir(r.Root) == r.Root {
		return fmt.Errorf("%w %q: not a project directory", ErrUnsafeClean, r.Root)
	}
	root, err := toplevel(ctx, r.runner, r.Root)
	if err != nil {
		return fmt.Errorf("%w %q: %w", ErrUnsafeClean, r.Root, err)
	}
	if root != r.Root {
		return fmt.Errorf("%w %q: top-level directory is %q", ErrUnsafeClean, r.Root, root)
	}
	if check != nil {
		if err := check(r.Root); err != nil {
			return fmt.Errorf("%w %q: %w", ErrUnsafeClean, r.Root, err)
		}
	}
	return nil
}

func parseClean(out []byte) []string {
	var paths []string
	for line := range strings.Lines(string(out)) {
		line = strings.TrimRight(line, "\n")
		for _, prefix := range []string{"Removing ", "Would remove "} {
			if p, ok := strings.CutPrefix(line, prefix); ok {
				paths = append(paths, p)
				break
			}
		}
	}
	return paths
}

func splitNUL(b []byte) []string {
	var paths []string
	for p := range strings.SplitSeq(string(b), "\x00") {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}
