// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package publish cleans, lints, builds and uploads a Python package as one
// ordered pipeline.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.astrophena.name/pyship/logger"
)

// Step is one stage of a [Pipeline].
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// Pipeline runs steps in order. Each step runs only if all previous steps
// succeeded.
type Pipeline struct {
	Steps []Step
	// Cleanup, if it has a Run function, runs after the other steps once the
	// first step has succeeded, regardless of later failures. It is not
	// affected by cancellation of the context.
	Cleanup Step
	// Progress, if not nil, is called before each step with its 1-based
	// position among all steps, counting Cleanup.
	Progress func(current, total int, name string)
}

// StepError reports the failure of a pipeline step.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string { return fmt.Sprintf("%s: %v", e.Step, e.Err) }

func (e *StepError) Unwrap() error { return e.Err }

// Run runs the pipeline. The returned error is a [*StepError] for the first
// failed step, joined with the cleanup failure, if any.
func (p *Pipeline) Run(ctx context.Context) error {
	total := len(p.Steps)
	if p.Cleanup.Run != nil {
		total++
	}

	var (
		err   error
		armed bool
	)
	for i, s := range p.Steps {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = &StepError{Step: s.Name, Err: ctxErr}
			break
		}
		p.progress(i+1, total, s.Name)
		if stepErr := s.Run(ctx); stepErr != nil {
			logger.Debug(ctx, "step failed", slog.String("step", s.Name), slog.Any("err", stepErr))
			err = &StepError{Step: s.Name, Err: stepErr}
			break
		}
		if i == 0 {
			armed = true
		}
	}

	if armed && p.Cleanup.Run != nil {
		p.progress(total, total, p.Cleanup.Name)
		if cleanupErr := p.Cleanup.Run(context.WithoutCancel(ctx)); cleanupErr != nil {
			err = errors.Join(err, &StepError{Step: p.Cleanup.Name, Err: cleanupErr})
		}
	}
	return err
}

func (p *Pipeline) progress(current, total int, name string) {
	if p.Progress != nil {
		p.Progress(current, total, name)
	}
}
