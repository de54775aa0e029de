package black

import (
	"strings"
	"testing"
)

func TestFormatArgs(t *testing.T) {
	tests := []struct {
		name  string
		black *Black
		check bool
		paths []string
		want  string
	}{
		{"no args", New(""), false, nil, ""},
		{"check mode", New(""), true, []string{"."}, "--check ."},
		{"explicit paths", New(""), false, []string{"src", "tests"}, "src tests"},
		{"extra args", New("black", "--line-length", "100"), false, []string{"."}, "--line-length 100 ."},
		{"paths in extra", New("black", "--line-length", "100", "."), true, nil, "--check --line-length 100 ."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := strings.Join(tt.black.formatArgs(tt.check, tt.paths), " ")
			if got != tt.want {
				t.Errorf("formatArgs = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewDefaultExe(t *testing.T) {
	if b := New(""); b.exe != "black" {
		t.Errorf("default exe = %q, want black", b.exe)
	}
	if b := New("ruff", "format"); b.exe != "ruff" {
		t.Errorf("exe = %q, want ruff", b.exe)
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		banner  string
		want    string
		wantErr bool
	}{
		{"black, 23.3.0 (compiled: yes)\n", "23.3.0", false},
		{"black, version 22.12.0", "22.12.0", false},
		{"ruff 0.4.4", "0.4.4", false},
		{"", "", true},
		{"no digits here", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.banner, func(t *testing.T) {
			got, err := parseVersion(tt.banner)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseVersion(%q) error = %v, wantErr %v", tt.banner, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseVersion(%q) = %q, want %q", tt.banner, got, tt.want)
			}
		})
	}
}
