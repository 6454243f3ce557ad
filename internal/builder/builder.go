// Package builder runs the site's build pipeline as a sequence of named
// shell steps in the project root.
package builder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// Step is a single named build command, e.g. {Name: "lint", Run: "npm run lint"}
type Step struct {
	Name string `yaml:"name"`
	Run  string `yaml:"run"`
}

// StepError reports the build step that stopped the pipeline
type StepError struct {
	Step     Step
	ExitCode int   // -1 when the step never produced an exit status
	Err      error // set when the failure was not a plain non-zero exit
}

func (e *StepError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("build step %q failed: %v", e.Step.Name, e.Err)
	}
	return fmt.Sprintf("build step %q exited with status %d", e.Step.Name, e.ExitCode)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Runner executes build steps with a POSIX shell interpreter
type Runner struct {
	Dir    string    // working directory; the process working directory when empty
	Stdout io.Writer // defaults to os.Stdout
	Stderr io.Writer // defaults to os.Stderr
	Env    []string  // KEY=VALUE pairs added to the inherited environment
}

// Run executes steps in order and stops at the first one that does not exit zero.
func (r *Runner) Run(ctx context.Context, steps ...Step) error {
	logger := zerolog.Ctx(ctx)

	for _, step := range steps {
		begin := time.Now()
		logger.Info().
			Str("step", step.Name).
			Str("run", step.Run).
			Msg("Running build step")

		if err := r.runStep(ctx, step); err != nil {
			return err
		}

		logger.Info().
			Str("step", step.Name).
			Dur("elapsed", time.Since(begin)).
			Msg("Build step completed")
	}
	return nil
}

func (r *Runner) runStep(ctx context.Context, step Step) error {
	prog, err := syntax.NewParser().Parse(strings.NewReader(step.Run), step.Name)
	if err != nil {
		return &StepError{Step: step, ExitCode: -1, Err: fmt.Errorf("failed to parse command: %w", err)}
	}

	env := append(os.Environ(), r.Env...)
	opts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(nil, r.stdout(), r.stderr()),
		// errexit, so "a && b; c" style steps still fail fast
		interp.Params("-e"),
	}
	if r.Dir != "" {
		opts = append(opts, interp.Dir(r.Dir))
	}

	runner, err := interp.New(opts...)
	if err != nil {
		return &StepError{Step: step, ExitCode: -1, Err: fmt.Errorf("failed to create interpreter: %w", err)}
	}

	if err := runner.Run(ctx, prog); err != nil {
		var exitStatus interp.ExitStatus
		if errors.As(err, &exitStatus) {
			return &StepError{Step: step, ExitCode: int(exitStatus)}
		}
		return &StepError{Step: step, ExitCode: -1, Err: err}
	}
	return nil
}

func (r *Runner) stdout() io.Writer {
	if r.Stdout == nil {
		return os.Stdout
	}
	return r.Stdout
}

func (r *Runner) stderr() io.Writer {
	if r.Stderr == nil {
		return os.Stderr
	}
	return r.Stderr
}
