package twine

import (
	"context"
	"strings"
	"testing"
)

func TestUploadArgs(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*Twine)
		files []string
		want  string
	}{
		{
			"plain",
			func(tw *Twine) {},
			[]string{"dist/pkg-1.0.tar.gz", "dist/pkg-1.0-py3-none-any.whl"},
			"upload dist/pkg-1.0.tar.gz dist/pkg-1.0-py3-none-any.whl",
		},
		{
			"repository url",
			func(tw *Twine) { tw.RepositoryURL("https://test.pypi.org/legacy/") },
			[]string{"dist/pkg-1.0.tar.gz"},
			"upload --repository-url https://test.pypi.org/legacy/ dist/pkg-1.0.tar.gz",
		},
		{
			"skip existing",
			func(tw *Twine) { tw.SkipExisting() },
			[]string{"dist/pkg-1.0.tar.gz"},
			"upload --skip-existing dist/pkg-1.0.tar.gz",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tw := New()
			tt.setup(tw)
			if got := strings.Join(tw.uploadArgs(tt.files), " "); got != tt.want {
				t.Errorf("uploadArgs = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEmptyFileLists(t *testing.T) {
	tw := New()
	if err := tw.Upload(context.Background()); err == nil {
		t.Error("Upload with no files succeeded, want error")
	}
	if err := tw.Check(context.Background()); err == nil {
		t.Error("Check with no files succeeded, want error")
	}
}
