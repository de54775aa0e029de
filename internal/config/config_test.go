package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(cwd) })

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("Load without file != Default() (-want +got):\n%s", diff)
	}
}

func TestLoadExplicitMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load with explicit missing path succeeded, want error")
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "squarectl.yaml")
	content := `python: python3.11
formatter: black --line-length 100 .
dist_dir: build/dist
tools:
  python: "3.10"
  pre-commit: "2.20"
api:
  url: https://square.example.org/api
  verify_ssl: true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Python != "python3.11" {
		t.Errorf("Python = %q", cfg.Python)
	}
	// Unset keys keep their defaults.
	if cfg.Requirements != "requirements.txt" {
		t.Errorf("Requirements = %q", cfg.Requirements)
	}
	if cfg.DistDir != "build/dist" {
		t.Errorf("DistDir = %q", cfg.DistDir)
	}
	if cfg.API.URL != "https://square.example.org/api" || !cfg.API.VerifySSL {
		t.Errorf("API = %+v", cfg.API)
	}

	name, args, err := cfg.FormatterCommand()
	if err != nil {
		t.Fatalf("FormatterCommand: %v", err)
	}
	if name != "black" {
		t.Errorf("formatter name = %q", name)
	}
	if diff := cmp.Diff([]string{"--line-length", "100", "."}, args); diff != "" {
		t.Errorf("formatter args mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatterCommandQuoted(t *testing.T) {
	cfg := Default()
	cfg.Formatter = `ruff format --exclude "third party" .`

	name, args, err := cfg.FormatterCommand()
	if err != nil {
		t.Fatalf("FormatterCommand: %v", err)
	}
	if name != "ruff" {
		t.Errorf("formatter name = %q", name)
	}
	if diff := cmp.Diff([]string{"format", "--exclude", "third party", "."}, args); diff != "" {
		t.Errorf("formatter args mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatterCommandEmpty(t *testing.T) {
	cfg := Default()
	cfg.Formatter = "   "
	if _, _, err := cfg.FormatterCommand(); err == nil {
		t.Error("FormatterCommand on empty command succeeded, want error")
	}
}

func TestSaveRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "squarectl.yaml")
	if err := Default().Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	modified := Default()
	modified.Python = "python3.12"
	if err := modified.Save(path); err == nil {
		t.Error("Save overwrote existing config, want error")
	}

	// The refused save must leave the original file untouched.
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load saved config: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("saved config round trip (-want +got):\n%s", diff)
	}
}

func TestCheckToolVersion(t *testing.T) {
	cfg := Default()
	cfg.Tools = map[string]string{
		"python":     "3.10",
		"pre-commit": "2.20",
	}

	tests := []struct {
		tool      string
		installed string
		wantErr   bool
	}{
		{"python", "3.11.4", false},
		{"python", "3.10", false},
		{"python", "3.9.1", true},
		{"pre-commit", "3.0.0", false},
		{"pre-commit", "2.19", true},
		{"pre-commit", "garbage version", true},
		{"unconstrained", "0.0.1", false},
	}

	for _, tt := range tests {
		t.Run(tt.tool+"@"+tt.installed, func(t *testing.T) {
			err := cfg.CheckToolVersion(tt.tool, tt.installed)
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckToolVersion(%q, %q) = %v, wantErr %v", tt.tool, tt.installed, err, tt.wantErr)
			}
		})
	}
}
