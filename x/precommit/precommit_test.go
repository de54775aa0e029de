package precommit

import "testing"

func TestParseVersion(t *testing.T) {
	tests := []struct {
		banner  string
		want    string
		wantErr bool
	}{
		{"pre-commit 2.20.0\n", "2.20.0", false},
		{"pre-commit 3.6.2", "3.6.2", false},
		{"", "", true},
		{"pre-commit", "", true},
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
