package profile

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestSaveLoadListDelete(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	want := &Profile{
		ProjectDir: strPtr("/srv/blog"),
		Mode:       strPtr("basic"),
		SkipBackup: boolPtr(false),
		Yes:        boolPtr(true),
	}
	if err := Save("blog", want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := Save("another", &Profile{Verbose: boolPtr(true)}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := Load("blog")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Load = %+v, want %+v", got, want)
	}
	if got.Output != nil {
		t.Fatalf("unset field decoded as %q", *got.Output)
	}

	names, err := List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"another", "blog"}) {
		t.Fatalf("List = %v", names)
	}

	if err := Delete("blog"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := Load("blog"); err == nil {
		t.Fatalf("expected error loading deleted profile")
	}
}

func TestListWithoutDirectory(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(t.TempDir(), "missing"))

	names, err := List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("List = %v, want empty", names)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	if err := os.MkdirAll(Dir(), 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(Dir(), "old.toml"), []byte("instance-dir = \"/x\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := Load("old"); err == nil {
		t.Fatalf("expected unknown key error")
	}
}

func TestValidateName(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"", ".", "..", "a/b", `a\b`} {
		if err := ValidateName(name); err == nil {
			t.Fatalf("ValidateName(%q) succeeded, want error", name)
		}
	}
	if err := ValidateName("daily-blog"); err != nil {
		t.Fatalf("ValidateName failed: %v", err)
	}
}
