// Package pybuild wraps the PEP 517 build frontend ("python -m build"),
// which produces the sdist and wheel artifacts uploaded on release.
package pybuild

import (
	"context"
	"io"
	"os"
	"os/exec"
)

// Build drives the build frontend through a Python interpreter.
type Build struct {
	python    string
	outDir    string
	sdistOnly bool
	wheelOnly bool
	stdout    io.Writer
	stderr    io.Writer
}

// New returns a ready-to-use Build. An empty interpreter defaults to
// "python3".
func New(python string) *Build {
	if python == "" {
		python = "python3"
	}
	return &Build{python: python, stdout: os.Stdout, stderr: os.Stderr}
}

// SetStdout redirects the tool's standard output.
func (b *Build) SetStdout(w io.Writer) { b.stdout = w }

// SetStderr redirects the tool's standard error.
func (b *Build) SetStderr(w io.Writer) { b.stderr = w }

// OutDir sets the directory artifacts are written to (--outdir).
func (b *Build) OutDir(dir string) { b.outDir = dir }

// SdistOnly restricts the build to the source distribution.
func (b *Build) SdistOnly() { b.sdistOnly = true; b.wheelOnly = false }

// WheelOnly restricts the build to the wheel.
func (b *Build) WheelOnly() { b.wheelOnly = true; b.sdistOnly = false }

// Run builds the distributable artifacts for srcDir. An empty srcDir
// builds the current directory.
func (b *Build) Run(ctx context.Context, srcDir string) error {
	cmd := exec.CommandContext(ctx, b.python, b.args(srcDir)...)
	cmd.Stdout = b.stdout
	cmd.Stderr = b.stderr
	return cmd.Run()
}

func (b *Build) args(srcDir string) []string {
	args := []string{"-m", "build"}
	if b.sdistOnly {
		args = append(args, "--sdist")
	}
	if b.wheelOnly {
		args = append(args, "--wheel")
	}
	if b.outDir != "" {
		args = append(args, "--outdir", b.outDir)
	}
	if srcDir != "" {
		args = append(args, srcDir)
	}
	return args
}
