// Package task runs named recipes: fixed sequences of external tool
// invocations. Steps run strictly in order and the first failure
// aborts the recipe, preserving the failed tool's exit status.
package task

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
)

// Step is a single named action, usually one external tool invocation.
type Step struct {
	Name string
	Do   func(ctx context.Context) error
}

// Recipe is a named sequence of steps.
type Recipe struct {
	Name  string
	Steps []Step
}

// StepError reports which step of a recipe failed.
type StepError struct {
	Recipe string
	Step   string
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: step %q: %v", e.Recipe, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Run executes the recipe's steps sequentially. logger may be nil.
func (r *Recipe) Run(ctx context.Context, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, step := range r.Steps {
		logger.Info("running step",
			zap.String("recipe", r.Name),
			zap.String("step", step.Name))
		if err := step.Do(ctx); err != nil {
			return &StepError{Recipe: r.Name, Step: step.Name, Err: err}
		}
	}
	return nil
}

// ExitCode maps an error returned by Run to the exit status the shell
// should see: the wrapped tool's own status when it exited, 0 for nil,
// and 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

// Lock takes the named file lock under dir, creating the directory if
// needed, and blocks until it is acquired. Concurrent install recipes
// on the same machine serialize on it.
func Lock(dir, name string) (unlock func() error, err error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	fl := flock.New(filepath.Join(dir, name))
	if err := fl.Lock(); err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", fl.Path(), err)
	}
	return fl.Unlock, nil
}
