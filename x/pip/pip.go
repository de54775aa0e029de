// Package pip wraps the Python package installer via "python -m pip".
package pip

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Pip drives pip through a specific Python interpreter.
type Pip struct {
	python string
	stdout io.Writer
	stderr io.Writer
}

// New returns a ready-to-use Pip driving the given interpreter.
// An empty interpreter defaults to "python3".
func New(python string) *Pip {
	if python == "" {
		python = "python3"
	}
	return &Pip{python: python, stdout: os.Stdout, stderr: os.Stderr}
}

// SetStdout redirects the tool's standard output.
func (p *Pip) SetStdout(w io.Writer) { p.stdout = w }

// SetStderr redirects the tool's standard error.
func (p *Pip) SetStderr(w io.Writer) { p.stderr = w }

// SelfUpgrade runs "python -m pip install --upgrade pip".
func (p *Pip) SelfUpgrade(ctx context.Context) error {
	return p.run(ctx, p.selfUpgradeArgs())
}

// Install runs "python -m pip install -r <requirements>".
func (p *Pip) Install(ctx context.Context, requirements string) error {
	return p.run(ctx, p.installArgs(requirements))
}

// InstallPackages runs "python -m pip install <packages...>".
func (p *Pip) InstallPackages(ctx context.Context, packages ...string) error {
	if len(packages) == 0 {
		return fmt.Errorf("pip: no packages given")
	}
	return p.run(ctx, append([]string{"-m", "pip", "install"}, packages...))
}

// Version returns the installed pip version, e.g. "23.1.2".
func (p *Pip) Version(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, p.python, "-m", "pip", "--version").Output()
	if err != nil {
		return "", fmt.Errorf("pip --version: %w", err)
	}
	return parseVersion(string(out))
}

func (p *Pip) selfUpgradeArgs() []string {
	return []string{"-m", "pip", "install", "--upgrade", "pip"}
}

func (p *Pip) installArgs(requirements string) []string {
	return []string{"-m", "pip", "install", "-r", requirements}
}

func (p *Pip) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, p.python, args...)
	cmd.Stdout = p.stdout
	cmd.Stderr = p.stderr
	return cmd.Run()
}

// parseVersion extracts the version from pip's banner, which looks
// like "pip 23.1.2 from /usr/lib/python3/... (python 3.11)".
func parseVersion(banner string) (string, error) {
	fields := strings.Fields(banner)
	if len(fields) < 2 || fields[0] != "pip" {
		return "", fmt.Errorf("pip: unexpected version output %q", strings.TrimSpace(banner))
	}
	return fields[1], nil
}
