// Package black wraps the black code formatter, or any formatter with
// a compatible command line.
package black

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Black drives a formatter executable.
type Black struct {
	exe    string
	extra  []string
	stdout io.Writer
	stderr io.Writer
}

// New returns a formatter wrapper around exe with extra arguments
// inserted before the target paths. An empty exe defaults to "black".
func New(exe string, extra ...string) *Black {
	if exe == "" {
		exe = "black"
	}
	return &Black{exe: exe, extra: extra, stdout: os.Stdout, stderr: os.Stderr}
}

// SetStdout redirects the tool's standard output.
func (b *Black) SetStdout(w io.Writer) { b.stdout = w }

// SetStderr redirects the tool's standard error.
func (b *Black) SetStderr(w io.Writer) { b.stderr = w }

// Format rewrites the given paths in place. Target paths may also be
// part of the extra arguments, in which case none need to be passed
// here.
func (b *Black) Format(ctx context.Context, paths ...string) error {
	return b.run(ctx, b.formatArgs(false, paths))
}

// Check reports badly formatted files without rewriting them. The
// formatter exits non-zero when changes would be made.
func (b *Black) Check(ctx context.Context, paths ...string) error {
	return b.run(ctx, b.formatArgs(true, paths))
}

// Version returns the installed formatter version, e.g. "23.3.0".
func (b *Black) Version(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, b.exe, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("%s --version: %w", b.exe, err)
	}
	return parseVersion(string(out))
}

func (b *Black) formatArgs(check bool, paths []string) []string {
	var args []string
	if check {
		args = append(args, "--check")
	}
	args = append(args, b.extra...)
	return append(args, paths...)
}

func (b *Black) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, b.exe, args...)
	cmd.Stdout = b.stdout
	cmd.Stderr = b.stderr
	return cmd.Run()
}

// parseVersion extracts the version from output like
// "black, 23.3.0 (compiled: yes)".
func parseVersion(banner string) (string, error) {
	fields := strings.Fields(strings.ReplaceAll(banner, ",", " "))
	for i, f := range fields {
		if i > 0 && len(f) > 0 && f[0] >= '0' && f[0] <= '9' {
			return f, nil
		}
	}
	return "", fmt.Errorf("formatter: unexpected version output %q", strings.TrimSpace(banner))
}
