// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"go.astrophena.name/pyship/command"
	"go.astrophena.name/pyship/dist"
	"go.astrophena.name/pyship/git"
	"go.astrophena.name/pyship/lint"
	"go.astrophena.name/pyship/logger"
	"go.astrophena.name/pyship/pyproject"
	"go.astrophena.name/pyship/upload"
)

// Policy decides what a lint failure does to the pipeline.
type Policy string

const (
	// PolicyAbort stops the pipeline on lint failure.
	PolicyAbort Policy = "abort"
	// PolicyWarn reports the failure and continues.
	PolicyWarn Policy = "warn"
)

// String implements [flag.Value].
func (p *Policy) String() string { return string(*p) }

// Set implements [flag.Value].
func (p *Policy) Set(s string) error {
	switch Policy(s) {
	case PolicyAbort, PolicyWarn:
		*p = Policy(s)
		return nil
	}
	return fmt.Errorf("unknown lint policy %q (want %q or %q)", s, PolicyAbort, PolicyWarn)
}

// DefaultDistDir is the directory, relative to the repository root, that
// builds write artifacts to.
const DefaultDistDir = "dist"

// ErrNoUploader is returned by [Publisher.Publish] if no uploader is set
// outside of a dry run.
var ErrNoUploader = errors.New("no uploader configured")

// Publisher publishes the Python package of a Git repository.
type Publisher struct {
	Runner command.Runner
	// Gate lints the repository. If nil, a default lint.Gate is used. Its
	// Runner defaults to Runner.
	Gate *lint.Gate
	// LintPolicy defaults to PolicyAbort.
	LintPolicy Policy
	// Build is the build command, run in the repository root. If empty,
	// "python3 -m build" writes an sdist and a wheel to DistDir.
	Build []string
	// DistDir defaults to DefaultDistDir.
	DistDir  string
	Uploader upload.Uploader
	// DryRun lists what clean would remove instead of removing it and skips
	// the upload.
	DryRun bool

	// Stdout receives lint reports. If nil, they are discarded.
	Stdout io.Writer
	// Color enables the colored lint banner.
	Color bool
	// Logf, if not nil, receives progress messages meant for the user.
	Logf logger.Logf
	// Progress is passed to the underlying [Pipeline].
	Progress func(current, total int, name string)
}

// Publish runs the publish pipeline for the repository containing dir.
func (p *Publisher) Publish(ctx context.Context, dir string) error {
	if p.Uploader == nil && !p.DryRun {
		return ErrNoUploader
	}
	repo, err := git.Open(ctx, p.Runner, dir)
	if err != nil {
		return err
	}
	logger.Info(ctx, "publishing", slog.String("root", repo.Root), slog.Bool("dry_run", p.DryRun))

	r := &run{Publisher: p, repo: repo}
	pl := &Pipeline{
		Steps: []Step{
			{Name: "clean", Run: r.clean},
			{Name: "lint", Run: r.lint},
			{Name: "build", Run: r.build},
			{Name: "upload", Run: r.upload},
		},
		Cleanup:  Step{Name: "clean", Run: r.clean},
		Progress: p.Progress,
	}
	return pl.Run(ctx)
}

// run holds the state of one Publish call.
type run struct {
	*Publisher
	repo      *git.Repo
	artifacts []dist.Artifact
}

func (r *run) logf(format string, args ...any) {
	if r.Logf != nil {
		r.Logf(format, args...)
	}
}

func (r *run) clean(ctx context.Context) error {
	removed, err := r.repo.Clean(ctx, r.DryRun, pyproject.CheckMetadata)
	if err != nil {
		return err
	}
	if r.DryRun {
		for _, path := range removed {
			r.logf("Would remove %s", path)
		}
		return nil
	}
	logger.Debug(ctx, "cleaned working tree", slog.Int("removed", len(removed)))
	return nil
}

func (r *run) lint(ctx context.Context) error {
	g := lint.Gate{}
	if r.Gate != nil {
		g = *r.Gate
	}
	if g.Runner == nil {
		g.Runner = r.Runner
	}
	report, err := g.Check(ctx, r.repo)
	if err != nil {
		return err
	}
	if !report.Failed() {
		return nil
	}
	if r.Stdout != nil {
		if err := report.Print(r.Stdout, r.Color); err != nil {
			return err
		}
	}
	if r.LintPolicy == PolicyWarn {
		logger.Warn(ctx, "lint failed, continuing", slog.String("linter", report.Linter), slog.Int("exit_code", report.ExitCode))
		return nil
	}
	return report.Err()
}

func (r *run) distDir() string {
	d := r.DistDir
	if d == "" {
		d = DefaultDistDir
	}
	if filepath.IsAbs(d) {
		return d
	}
	return filepath.Join(r.repo.Root, d)
}

func (r *run) buildCmd() command.Cmd {
	c := command.Cmd{Dir: r.repo.Root}
	if len(r.Build) > 0 {
		c.Name, c.Args = r.Build[0], slices.Clone(r.Build[1:])
		return c
	}
	c.Name = "python3"
	c.Args = []string{"-m", "build", "--sdist", "--wheel", "--outdir", r.distDir(), r.repo.Root}
	return c
}

func (r *run) build(ctx context.Context) error {
	c := r.buildCmd()
	res, err := r.Runner.Run(ctx, c)
	if err != nil {
		return err
	}
	if err := res.Err(c); err != nil {
		return err
	}

	artifacts, err := dist.Collect(r.distDir())
	if err != nil {
		return err
	}
	if err := r.verify(artifacts); err != nil {
		return err
	}
	r.artifacts = artifacts
	for _, a := range artifacts {
		logger.Debug(ctx, "built artifact", slog.String("file", a.Filename()), slog.String("kind", string(a.Kind)))
	}
	return nil
}

// verify checks that artifacts belong to the project described by
// pyproject.toml, if its name and version are static.
func (r *run) verify(artifacts []dist.Artifact) error {
	m, err := pyproject.Load(r.repo.Root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	want := m.Project.FilenamePrefix()
	if want == "" {
		return nil
	}
	for _, a := range artifacts {
		got := pyproject.FilenameName(a.Name) + "-" + a.Version
		if !strings.EqualFold(got, want) {
			return fmt.Errorf("artifact %s does not match project %s %s", a.Filename(), m.Project.Name, m.Project.Version)
		}
	}
	return nil
}

func (r *run) upload(ctx context.Context) error {
	if r.DryRun {
		for _, a := range r.artifacts {
			r.logf("Would upload %s", a.Filename())
		}
		return nil
	}
	if err := r.Uploader.Upload(ctx, r.artifacts); err != nil {
		return err
	}
	r.logf("Uploaded %d files", len(r.artifacts))
	return nil
}
