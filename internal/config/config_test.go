package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	cfg, err := Load(tmp, "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Upstream.Remote != DefaultRemoteName || cfg.Upstream.Branch != DefaultBranch {
		t.Fatalf("unexpected upstream defaults: %+v", cfg.Upstream)
	}
	if len(cfg.Backup.Items) != len(DefaultItems()) {
		t.Fatalf("items = %d, want %d", len(cfg.Backup.Items), len(DefaultItems()))
	}
	if cfg.BackupDir() != filepath.Join(tmp, DefaultBackupDir) {
		t.Fatalf("BackupDir = %q", cfg.BackupDir())
	}
	if !cfg.AllowUnrelated() {
		t.Fatalf("AllowUnrelated should default to true")
	}
	if cfg.GitTimeout.Duration != DefaultGitTimeout {
		t.Fatalf("GitTimeout = %v", cfg.GitTimeout)
	}
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	t.Parallel()

	_, err := Load(t.TempDir(), filepath.Join(t.TempDir(), "nope.toml"))
	if err == nil {
		t.Fatalf("expected error for explicit missing config")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	writeConfig(t, tmp, `
git_timeout = "30s"

[upstream]
remote = "template"
url = "https://example.test/theme.git"
branch = "trunk"
allow_unrelated_histories = false

[backup]
dir = "/var/backups/site"
default_mode = "basic"
keep = 3

[[backup.items]]
src = "content"
dest = "content"
label = "Content"
required = true

[[backup.items]]
src = "public"
dest = "public"
label = "Public"
`)

	cfg, err := Load(tmp, "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.UpstreamRef() != "template/trunk" {
		t.Fatalf("UpstreamRef = %q", cfg.UpstreamRef())
	}
	if cfg.AllowUnrelated() {
		t.Fatalf("AllowUnrelated should be false")
	}
	if cfg.BackupDir() != "/var/backups/site" {
		t.Fatalf("BackupDir = %q", cfg.BackupDir())
	}
	if cfg.Backup.Keep != 3 || cfg.Backup.DefaultMode != "basic" {
		t.Fatalf("unexpected backup config: %+v", cfg.Backup)
	}
	if len(cfg.Backup.Items) != 2 {
		t.Fatalf("items = %+v", cfg.Backup.Items)
	}
	if cfg.Backup.Items[1].Required {
		t.Fatalf("second item should not inherit required from defaults")
	}
	if cfg.GitTimeout.Duration != 30*time.Second {
		t.Fatalf("GitTimeout = %v", cfg.GitTimeout)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Version.File != DefaultVersionFile || cfg.Install.Command != DefaultInstallCommand {
		t.Fatalf("defaults lost: %+v %+v", cfg.Version, cfg.Install)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "unknown key",
			content: "colour = \"blue\"\n",
			wantErr: "unknown key",
		},
		{
			name:    "bad mode",
			content: "[backup]\ndefault_mode = \"partial\"\n",
			wantErr: "backup.default_mode",
		},
		{
			name:    "escaping dest",
			content: "[[backup.items]]\nsrc = \"a\"\ndest = \"../a\"\n",
			wantErr: "escapes",
		},
		{
			name:    "duplicate dest",
			content: "[[backup.items]]\nsrc = \"a\"\ndest = \"x\"\n[[backup.items]]\nsrc = \"b\"\ndest = \"x\"\n",
			wantErr: "already used",
		},
		{
			name:    "nested dest",
			content: "[[backup.items]]\nsrc = \"a\"\ndest = \"content\"\n[[backup.items]]\nsrc = \"b\"\ndest = \"content/posts\"\n",
			wantErr: "overlaps",
		},
		{
			name:    "nested dest reversed",
			content: "[[backup.items]]\nsrc = \"b\"\ndest = \"content/posts\"\n[[backup.items]]\nsrc = \"a\"\ndest = \"content/\"\n",
			wantErr: "overlaps",
		},
		{
			name:    "backup dir is project root",
			content: "[backup]\ndir = \".\"\n",
			wantErr: "backup.dir must not be the project directory",
		},
		{
			name:    "reserved dest",
			content: "[[backup.items]]\nsrc = \"a\"\ndest = \"manifest.json\"\n",
			wantErr: "reserved",
		},
		{
			name:    "remote with slash",
			content: "[upstream]\nremote = \"up/stream\"\n",
			wantErr: "upstream.remote",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tmp := t.TempDir()
			writeConfig(t, tmp, tt.content)
			_, err := Load(tmp, "")
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateItemsAllowsSiblingPrefixes(t *testing.T) {
	t.Parallel()

	items := []BackupItem{
		{Src: "a", Dest: "content/post"},
		{Src: "b", Dest: "content/posts"},
		{Src: "c", Dest: "content/posts-archive"},
	}
	if err := validateItems(items); err != nil {
		t.Fatalf("validateItems rejected sibling dests: %v", err)
	}
	if err := validateItems(DefaultItems()); err != nil {
		t.Fatalf("default items are invalid: %v", err)
	}
}

func TestSelectItems(t *testing.T) {
	t.Parallel()

	items := []BackupItem{
		{Src: "a", Dest: "a", Required: true},
		{Src: "b", Dest: "b"},
		{Src: "c", Dest: "c", Required: true},
	}

	basic := SelectItems(items, ModeBasic)
	if len(basic) != 2 || basic[0].Src != "a" || basic[1].Src != "c" {
		t.Fatalf("basic selection = %+v", basic)
	}
	full := SelectItems(items, ModeFull)
	if len(full) != 3 {
		t.Fatalf("full selection = %+v", full)
	}
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{in: "", want: ModeFull},
		{in: "full", want: ModeFull},
		{in: " Basic ", want: ModeBasic},
		{in: "partial", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseMode(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("ParseMode(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestEnvFilePresent(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	project := filepath.Join(root, "site")
	if err := os.MkdirAll(project, 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	cfg := Default(project)
	if cfg.EnvFilePresent() {
		t.Fatalf("env file should be missing")
	}
	if err := os.WriteFile(filepath.Join(root, ".env"), []byte("TOKEN=x\n"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if !cfg.EnvFilePresent() {
		t.Fatalf("env file should be present at %s", cfg.EnvFilePath())
	}
}
