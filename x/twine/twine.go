// Package twine wraps the twine release-upload tool.
package twine

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Twine drives the twine executable. Credentials come from twine's own
// environment variables (TWINE_USERNAME, TWINE_PASSWORD) or its config
// files; squarectl never handles them.
type Twine struct {
	exe           string
	repositoryURL string
	skipExisting  bool
	stdout        io.Writer
	stderr        io.Writer
}

// New returns a ready-to-use Twine.
func New() *Twine {
	return &Twine{exe: "twine", stdout: os.Stdout, stderr: os.Stderr}
}

// SetStdout redirects the tool's standard output.
func (t *Twine) SetStdout(w io.Writer) { t.stdout = w }

// SetStderr redirects the tool's standard error.
func (t *Twine) SetStderr(w io.Writer) { t.stderr = w }

// RepositoryURL overrides the upload target (--repository-url).
func (t *Twine) RepositoryURL(url string) { t.repositoryURL = url }

// SkipExisting tells twine not to fail on already-uploaded artifacts.
func (t *Twine) SkipExisting() { t.skipExisting = true }

// Check runs "twine check" over the given artifacts.
func (t *Twine) Check(ctx context.Context, files ...string) error {
	if len(files) == 0 {
		return fmt.Errorf("twine: no artifacts to check")
	}
	return t.run(ctx, append([]string{"check"}, files...))
}

// Upload runs "twine upload" over the given artifacts.
func (t *Twine) Upload(ctx context.Context, files ...string) error {
	if len(files) == 0 {
		return fmt.Errorf("twine: no artifacts to upload")
	}
	return t.run(ctx, t.uploadArgs(files))
}

func (t *Twine) uploadArgs(files []string) []string {
	args := []string{"upload"}
	if t.repositoryURL != "" {
		args = append(args, "--repository-url", t.repositoryURL)
	}
	if t.skipExisting {
		args = append(args, "--skip-existing")
	}
	return append(args, files...)
}

func (t *Twine) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, t.exe, args...)
	cmd.Stdout = t.stdout
	cmd.Stderr = t.stderr
	return cmd.Run()
}
