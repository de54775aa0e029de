// Package precommit wraps the pre-commit hook manager.
package precommit

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// PreCommit drives the pre-commit executable.
type PreCommit struct {
	exe    string
	stdout io.Writer
	stderr io.Writer
}

// New returns a ready-to-use PreCommit.
func New() *PreCommit {
	return &PreCommit{exe: "pre-commit", stdout: os.Stdout, stderr: os.Stderr}
}

// SetStdout redirects the tool's standard output.
func (p *PreCommit) SetStdout(w io.Writer) { p.stdout = w }

// SetStderr redirects the tool's standard error.
func (p *PreCommit) SetStderr(w io.Writer) { p.stderr = w }

// Install registers the git pre-commit hook ("pre-commit install").
func (p *PreCommit) Install(ctx context.Context) error {
	return p.run(ctx, "install")
}

// Run executes the configured hooks. With allFiles it passes
// --all-files instead of checking only staged changes.
func (p *PreCommit) Run(ctx context.Context, allFiles bool) error {
	args := []string{"run"}
	if allFiles {
		args = append(args, "--all-files")
	}
	return p.run(ctx, args...)
}

// Version returns the installed pre-commit version, e.g. "2.20.0".
func (p *PreCommit) Version(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, p.exe, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("pre-commit --version: %w", err)
	}
	return parseVersion(string(out))
}

func (p *PreCommit) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, p.exe, args...)
	cmd.Stdout = p.stdout
	cmd.Stderr = p.stderr
	return cmd.Run()
}

// parseVersion extracts the version from output like "pre-commit 2.20.0".
func parseVersion(banner string) (string, error) {
	fields := strings.Fields(banner)
	if len(fields) < 2 {
		return "", fmt.Errorf("pre-commit: unexpected version output %q", strings.TrimSpace(banner))
	}
	return fields[len(fields)-1], nil
}
