// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"

	"go.astrophena.name/pyship/cli"
	"go.astrophena.name/pyship/command"
	"go.astrophena.name/pyship/devtools/internal"
	"go.astrophena.name/pyship/git"
	"go.astrophena.name/pyship/lint"
	"go.astrophena.name/pyship/publish"
	"go.astrophena.name/pyship/upload"
)

func main() { cli.Main(new(app)) }

type app struct {
	flags *flag.FlagSet

	dir           string
	dryRun        bool
	lintPolicy    publish.Policy
	uploader      string
	repositoryURL string
	skipExisting  bool

	// for tests
	runner     command.Runner
	httpClient *http.Client
}

func (a *app) Flags(flags *flag.FlagSet) {
	a.flags = flags
	a.lintPolicy = publish.PolicyAbort
	a.uploader = "twine"
	flags.StringVar(&a.dir, "C", "", "Run as if started in `dir`.")
	flags.BoolVar(&a.dryRun, "n", false, "Show what would be removed and uploaded without doing it.")
	flags.Var(&a.lintPolicy, "lint-policy", "What a lint failure does: abort or warn.")
	flags.StringVar(&a.uploader, "uploader", a.uploader, "Upload with `uploader`: twine or legacy.")
	flags.StringVar(&a.repositoryURL, "repository-url", "", "Upload to the index at `url`.")
	flags.BoolVar(&a.skipExisting, "skip-existing", false, "Do not fail on files that the index already has.")
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
	cfg, err := internal.LoadConfig(repo.Root)
	if err != nil {
		return err
	}
	if err := a.applyConfig(cfg.Publish); err != nil {
		return err
	}

	up, err := a.newUploader(env, repo.Root)
	if err != nil {
		return err
	}
	gate := cfg.LintGate.Gate(a.runner)
	if cfg.Publish.LintScope != "" {
		gate.Scope = lint.Scope(cfg.Publish.LintScope)
	}

	p := &publish.Publisher{
		Runner:     a.runner,
		Gate:       gate,
		LintPolicy: a.lintPolicy,
		Build:      cfg.Publish.Build,
		DistDir:    cfg.Publish.DistDir,
		Uploader:   up,
		DryRun:     a.dryRun,
		Stdout:     env.Stdout,
		Color:      cli.TerminalWidth(env.Stdout) > 0,
		Logf:       env.Logf,
		Progress: func(current, total int, name string) {
			env.Logf("%s", progressMessage(current, total, name, cli.TerminalWidth(env.Stderr)))
		},
	}
	return p.Publish(ctx, repo.Root)
}

// applyConfig fills in settings from publish.json that were not set by
// flags.
func (a *app) applyConfig(c internal.Publish) error {
	set := make(map[string]bool)
	if a.flags != nil {
		a.flags.Visit(func(f *flag.Flag) { set[f.Name] = true })
	}
	if c.LintPolicy != "" && !set["lint-policy"] {
		if err := a.lintPolicy.Set(c.LintPolicy); err != nil {
			return fmt.Errorf("%s: publish.json: %w", internal.ConfigFile, err)
		}
	}
	if c.Uploader != "" && !set["uploader"] {
		a.uploader = c.Uploader
	}
	if c.RepositoryURL != "" && !set["repository-url"] {
		a.repositoryURL = c.RepositoryURL
	}
	if c.SkipExisting && !set["skip-existing"] {
		a.skipExisting = true
	}
	return nil
}

func (a *app) newUploader(env *cli.Env, root string) (upload.Uploader, error) {
	switch a.uploader {
	case "twine":
		return &upload.Twine{
			Runner:        a.runner,
			Dir:           root,
			RepositoryURL: a.repositoryURL,
			SkipExisting:  a.skipExisting,
		}, nil
	case "legacy":
		return &upload.Legacy{
			HTTPClient:    a.httpClient,
			RepositoryURL: a.repositoryURL,
			Username:      env.Getenv("TWINE_USERNAME"),
			Password:      env.Getenv("TWINE_PASSWORD"),
			SkipExisting:  a.skipExisting,
		}, nil
	}
	return nil, fmt.Errorf("%w: unknown uploader %q", cli.ErrInvalidArgs, a.uploader)
}

func progressMessage(current, total int, name string, width int) string {
	prefix := fmt.Sprintf("[%d/%d] Running step ", current, total)
	msg := prefix + name
	if width <= 0 || len(msg) <= width {
		return msg
	}
	if len(prefix) >= width {
		return prefix
	}
	avail := width - len(prefix)
	if avail <= 3 {
		return prefix + name[:avail]
	}
	return prefix + name[:avail-3] + "..."
}
