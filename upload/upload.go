// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package upload sends built distributions to a package index.
package upload

import (
	"context"
	"fmt"
	"log/slog"

	"go.astrophena.name/pyship/command"
	"go.astrophena.name/pyship/dist"
	"go.astrophena.name/pyship/logger"
)

// Uploader uploads distribution artifacts to a package index.
type Uploader interface {
	Upload(ctx context.Context, artifacts []dist.Artifact) error
}

// Func is an adapter to use an ordinary function as an [Uploader].
type Func func(ctx context.Context, artifacts []dist.Artifact) error

// Upload calls f(ctx, artifacts).
func (f Func) Upload(ctx context.Context, artifacts []dist.Artifact) error { return f(ctx, artifacts) }

// DefaultTwine is the default command used by [Twine].
var DefaultTwine = []string{"twine", "upload"}

// Twine uploads artifacts by running twine.
type Twine struct {
	Runner command.Runner
	// Dir is the working directory of twine, usually the repository root.
	Dir string
	// Command is the twine invocation. If empty, DefaultTwine is used.
	Command []string
	// RepositoryURL overrides the index twine uploads to.
	RepositoryURL string
	SkipExisting  bool
}

// Upload implements [Uploader].
func (t *Twine) Upload(ctx context.Context, artifacts []dist.Artifact) error {
	if len(artifacts) == 0 {
		return dist.ErrNoArtifacts
	}
	argv := DefaultTwine
	if len(t.Command) > 0 {
		argv = t.Command
	}
	args := append([]string(nil), argv[1:]...)
	if t.RepositoryURL != "" {
		args = append(args, "--repository-url", t.RepositoryURL)
	}
	if t.SkipExisting {
		args = append(args, "--skip-existing")
	}
	args = append(args, dist.Paths(artifacts)...)

	c := command.Cmd{Dir: t.Dir, Name: argv[0], Args: args}
	res, err := t.Runner.Run(ctx, c)
	if err != nil {
		return err
	}
	if err := res.Err(c); err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	logger.Info(ctx, "uploaded distributions", slog.Int("count", len(artifacts)), slog.String("uploader", "twine"))
	return nil
}
