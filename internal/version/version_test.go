package version

import (
	"context"
	"errors"
	"testing"
)

type fakeSource struct {
	files   map[string]string
	tags    map[string][]string
	tagsErr error
}

func (f *fakeSource) ShowFile(_ context.Context, ref, path string) ([]byte, bool, error) {
	data, ok := f.files[ref+":"+path]
	if !ok {
		return nil, false, nil
	}
	return []byte(data), true, nil
}

func (f *fakeSource) Tags(_ context.Context, ref string) ([]string, error) {
	if f.tagsErr != nil {
		return nil, f.tagsErr
	}
	return f.tags[ref], nil
}

func TestReaderPrefersManifestField(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		files: map[string]string{"HEAD:package.json": `{"name":"jeet-u","version":"2.1.0"}`},
		tags:  map[string][]string{"HEAD": {"v9.9.9"}},
	}
	got, err := NewReader(src, "package.json", "").Read(context.Background(), "HEAD")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got != "2.1.0" {
		t.Fatalf("Read = %q, want 2.1.0", got)
	}
}

func TestReaderFallsBackToTags(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		files: map[string]string{"upstream/main:package.json": `{"name":"jeet-u"}`},
		tags:  map[string][]string{"upstream/main": {"nightly", "v1.10.0", "v1.9.3", "v1.10.0-rc.1"}},
	}
	got, err := NewReader(src, "package.json", "version").Read(context.Background(), "upstream/main")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got != "v1.10.0" {
		t.Fatalf("Read = %q, want v1.10.0", got)
	}
}

func TestReaderUnknown(t *testing.T) {
	t.Parallel()

	got, err := NewReader(&fakeSource{}, "package.json", "version").Read(context.Background(), "HEAD")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got != Unknown {
		t.Fatalf("Read = %q, want %q", got, Unknown)
	}
}

func TestReaderSurfacesGitFailure(t *testing.T) {
	t.Parallel()

	src := &fakeSource{tagsErr: errors.New("boom")}
	if _, err := NewReader(src, "", "").Read(context.Background(), "HEAD"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNewer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		current, latest string
		want            bool
	}{
		{"1.0.0", "1.1.0", true},
		{"v1.1.0", "1.1.0", false},
		{"1.2.0", "1.1.0", false},
		{Unknown, "1.1.0", false},
		{"1.0.0", "main", false},
	}
	for _, tt := range tests {
		if got := Newer(tt.current, tt.latest); got != tt.want {
			t.Fatalf("Newer(%q, %q) = %t, want %t", tt.current, tt.latest, got, tt.want)
		}
	}
}
