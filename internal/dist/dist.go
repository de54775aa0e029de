// Package dist handles the distributable artifacts of a release:
// collecting them from the build backend's output directory, verifying
// archive integrity, staging them and writing checksums.
package dist

import (
	"archive/tar"
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/gzip"
	cp "github.com/otiai10/copy"
	"golang.org/x/sync/errgroup"
)

// ChecksumFile is the checksum manifest written next to staged artifacts.
const ChecksumFile = "SHA256SUMS"

// Artifact is one distributable file.
type Artifact struct {
	Path   string // absolute or dist-dir-relative path
	Name   string // base name
	Size   int64
	SHA256 string // hex digest; filled in by Stage
}

// Collect lists the release artifacts in distDir, sorted by name.
// It returns an error when the directory holds none: releasing an
// empty dist dir is always a mistake.
func Collect(distDir string) ([]Artifact, error) {
	entries, err := os.ReadDir(distDir)
	if err != nil {
		return nil, fmt.Errorf("read dist dir: %w", err)
	}

	var artifacts []Artifact
	for _, entry := range entries {
		if entry.IsDir() || !isArtifact(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, Artifact{
			Path: filepath.Join(distDir, entry.Name()),
			Name: entry.Name(),
			Size: info.Size(),
		})
	}
	if len(artifacts) == 0 {
		return nil, fmt.Errorf("no release artifacts in %s", distDir)
	}

	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].Name < artifacts[j].Name })
	return artifacts, nil
}

// isArtifact reports whether name looks like a distributable artifact.
func isArtifact(name string) bool {
	return strings.HasSuffix(name, ".tar.gz") ||
		strings.HasSuffix(name, ".whl") ||
		strings.HasSuffix(name, ".zip")
}

// Verify checks that every artifact is a readable archive. Corrupt
// uploads are rejected before the upload tool ever sees them.
func Verify(artifacts []Artifact) error {
	for _, a := range artifacts {
		var err error
		switch {
		case strings.HasSuffix(a.Name, ".tar.gz"):
			err = verifyTarGz(a.Path)
		case strings.HasSuffix(a.Name, ".whl"), strings.HasSuffix(a.Name, ".zip"):
			err = verifyZip(a.Path)
		}
		if err != nil {
			return fmt.Errorf("verify %s: %w", a.Name, err)
		}
	}
	return nil
}

func verifyTarGz(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	for {
		if _, err := tr.Next(); err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
		if _, err := io.Copy(io.Discard, tr); err != nil {
			return err
		}
	}
}

func verifyZip(path string) error {
	r, err := zip.OpenReader(path)
	if err != nil {
		return err
	}
	return r.Close()
}

// Stage copies the artifacts into stagingDir, computes their SHA-256
// digests in parallel and writes the ChecksumFile manifest. It returns
// the staged artifacts with digests filled in.
func Stage(ctx context.Context, artifacts []Artifact, stagingDir string) ([]Artifact, error) {
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return nil, err
	}

	staged := make([]Artifact, len(artifacts))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, a := range artifacts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			dest := filepath.Join(stagingDir, a.Name)
			if err := cp.Copy(a.Path, dest); err != nil {
				return fmt.Errorf("stage %s: %w", a.Name, err)
			}
			sum, err := fileSHA256(dest)
			if err != nil {
				return fmt.Errorf("checksum %s: %w", a.Name, err)
			}
			staged[i] = Artifact{Path: dest, Name: a.Name, Size: a.Size, SHA256: sum}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var manifest strings.Builder
	for _, a := range staged {
		fmt.Fprintf(&manifest, "%s  %s\n", a.SHA256, a.Name)
	}
	sumPath := filepath.Join(stagingDir, ChecksumFile)
	if err := os.WriteFile(sumPath, []byte(manifest.String()), 0644); err != nil {
		return nil, fmt.Errorf("write %s: %w", ChecksumFile, err)
	}
	return staged, nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Summary renders a one-line-per-artifact report with human-readable
// sizes, e.g. "pkg-1.0.tar.gz  14 kB  sha256:ab12…".
func Summary(artifacts []Artifact) string {
	var b strings.Builder
	for _, a := range artifacts {
		line := fmt.Sprintf("%s  %s", a.Name, humanize.Bytes(uint64(a.Size)))
		if a.SHA256 != "" {
			line += "  sha256:" + a.SHA256[:12]
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

// Paths returns the artifact file paths in order, as passed to the
// upload tool.
func Paths(artifacts []Artifact) []string {
	paths := make([]string, len(artifacts))
	for i, a := range artifacts {
		paths[i] = a.Path
	}
	return paths
}
