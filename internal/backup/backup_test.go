package backup

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeet-u/jeet-u-updater/internal/config"
	"github.com/jeet-u/jeet-u-updater/internal/testutil"
)

func newProject(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "src/config.ts", "export const title = 'mine'\n")
	testutil.WriteFile(t, dir, "src/content/posts/hello.md", "# hello\n")
	testutil.WriteFile(t, dir, "src/content/posts/2026/trip.md", "# trip\n")
	testutil.WriteFile(t, dir, "src/content/spec/about.md", "about me\n")
	testutil.WriteFile(t, dir, "src/content/data/links.json", `{"links":[]}`)
	testutil.WriteFile(t, dir, "src/assets/avatar.webp", "RIFFavatar")
	testutil.WriteFile(t, dir, "public/img/banner.png", "png")
	testutil.WriteFile(t, dir, ".astro/types.d.ts", "declare module 'x'\n")
	require.NoError(t, os.Chmod(filepath.Join(dir, "src/content/data/links.json"), 0o600))

	cfg := config.Default(dir)
	cfg.Backup.Dir = filepath.Join(t.TempDir(), "backups")
	return cfg
}

func readFile(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(name)))
	require.NoError(t, err)
	return string(data)
}

func writeTarGz(t *testing.T, path string, files map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0o644,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestBackupRestoreRoundTrip(t *testing.T) {
	cfg := newProject(t)
	tmp := t.TempDir()
	t.Setenv("TMPDIR", tmp)
	dir := cfg.ProjectDir
	ctx := context.Background()

	path, err := NewArchiver(cfg).Backup(ctx, config.ModeFull)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "jeet-u-backup-full-"))
	assert.True(t, strings.HasSuffix(path, ".tar.gz"))

	leftovers, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, leftovers, "staging directory must be removed")

	backups, err := os.ReadDir(cfg.BackupDir())
	require.NoError(t, err)
	require.Len(t, backups, 1, "no temporary archive may remain")

	// Damage the project after the snapshot.
	testutil.WriteFile(t, dir, "src/config.ts", "broken\n")
	require.NoError(t, os.RemoveAll(filepath.Join(dir, "src/content/posts")))
	require.NoError(t, os.Remove(filepath.Join(dir, "src/assets/avatar.webp")))
	testutil.WriteFile(t, dir, "src/content/spec/new.md", "added later\n")

	report, err := NewRestorer(dir, false).Restore(ctx, path)
	require.NoError(t, err)
	assert.False(t, report.DryRun)
	assert.Contains(t, report.Restored, "src/config.ts")
	assert.Contains(t, report.Skipped, "public/favicon.svg")
	assert.Contains(t, report.Skipped, "src/assets/images")

	assert.Equal(t, "export const title = 'mine'\n", readFile(t, dir, "src/config.ts"))
	assert.Equal(t, "# hello\n", readFile(t, dir, "src/content/posts/hello.md"))
	assert.Equal(t, "# trip\n", readFile(t, dir, "src/content/posts/2026/trip.md"))
	assert.Equal(t, "RIFFavatar", readFile(t, dir, "src/assets/avatar.webp"))
	assert.Equal(t, "declare module 'x'\n", readFile(t, dir, ".astro/types.d.ts"))
	assert.Equal(t, "added later\n", readFile(t, dir, "src/content/spec/new.md"), "restore overlays, it does not delete")

	info, err := os.Stat(filepath.Join(dir, "src/content/data/links.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	leftovers, err = os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, leftovers, "extraction directory must be removed")
}

func TestBackupBasicManifestIsRequiredSubset(t *testing.T) {
	t.Parallel()
	cfg := newProject(t)

	path, err := NewArchiver(cfg).Backup(context.Background(), config.ModeBasic)
	require.NoError(t, err)
	assert.Contains(t, filepath.Base(path), "-basic-")

	m, err := ReadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, ManifestName, m.Name)
	assert.Equal(t, ManifestVersion, m.Version)
	assert.Equal(t, config.ModeBasic, m.Mode)

	var want []ManifestItem
	for _, it := range cfg.Backup.Items {
		if it.Required {
			want = append(want, ManifestItem{Src: it.Src, Dest: it.Dest})
		}
	}
	assert.Equal(t, want, m.Items)

	var names []string
	require.NoError(t, walkArchive(path, func(hdr *tar.Header, _ io.Reader) error {
		names = append(names, hdr.Name)
		return nil
	}))
	assert.Equal(t, ManifestFile, names[0])
	assert.NotContains(t, names, "public/img/banner.png")
	assert.NotContains(t, names, "cache/astro/types.d.ts")
	assert.Contains(t, names, "content/posts/2026/trip.md")
}

func TestBackupManifestJSONShape(t *testing.T) {
	t.Parallel()
	cfg := newProject(t)
	a := NewArchiver(cfg)
	a.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }

	path, err := a.Backup(context.Background(), config.ModeFull)
	require.NoError(t, err)
	assert.Equal(t, "jeet-u-backup-full-20260304-050607.tar.gz", filepath.Base(path))

	var raw []byte
	require.NoError(t, walkArchive(path, func(hdr *tar.Header, r io.Reader) error {
		if hdr.Name == ManifestFile {
			var err error
			raw, err = io.ReadAll(r)
			return err
		}
		return nil
	}))
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "jeet-u-backup", doc["name"])
	assert.Equal(t, "1", doc["version"])
	assert.Equal(t, "2026-03-04T05:06:07Z", doc["createdAt"])
	assert.Equal(t, "full", doc["mode"])
	items, ok := doc["items"].([]any)
	require.True(t, ok)
	assert.Len(t, items, len(cfg.Backup.Items))
	assert.Equal(t, map[string]any{"src": "src/config.ts", "dest": "config/config.ts"}, items[0])
}

func TestBackupNameCollision(t *testing.T) {
	t.Parallel()
	cfg := newProject(t)
	a := NewArchiver(cfg)
	a.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }

	first, err := a.Backup(context.Background(), config.ModeBasic)
	require.NoError(t, err)
	second, err := a.Backup(context.Background(), config.ModeBasic)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, "jeet-u-backup-basic-20260304-050607-2.tar.gz", filepath.Base(second))
}

func TestBackupWithProgress(t *testing.T) {
	t.Parallel()
	cfg := newProject(t)
	a := NewArchiver(cfg)
	var progress bytes.Buffer
	a.Progress = &progress

	path, err := a.Backup(context.Background(), config.ModeFull)
	require.NoError(t, err)
	_, err = ReadManifest(path)
	require.NoError(t, err)
}

func TestBackupCancelledLeavesNoArchive(t *testing.T) {
	t.Parallel()
	cfg := newProject(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewArchiver(cfg).Backup(ctx, config.ModeFull)
	var backupErr *BackupError
	require.True(t, errors.As(err, &backupErr))
	assert.ErrorIs(t, err, context.Canceled)

	entries, err := os.ReadDir(cfg.BackupDir())
	if err == nil {
		assert.Empty(t, entries)
	}
}

func TestRestoreDryRunWritesNothing(t *testing.T) {
	t.Parallel()
	cfg := newProject(t)
	dir := cfg.ProjectDir

	path, err := NewArchiver(cfg).Backup(context.Background(), config.ModeBasic)
	require.NoError(t, err)
	testutil.WriteFile(t, dir, "src/config.ts", "changed\n")

	report, err := NewRestorer(dir, true).Restore(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Empty(t, report.Restored)
	assert.Contains(t, report.Planned, PlannedCopy{From: "config/config.ts", To: "src/config.ts"})
	assert.Equal(t, "changed\n", readFile(t, dir, "src/config.ts"))
}

func TestRestorePartialFailure(t *testing.T) {
	t.Parallel()
	cfg := newProject(t)
	dir := cfg.ProjectDir
	cfg.Backup.Items = []config.BackupItem{
		{Src: "src/content/posts", Dest: "content/posts", Required: true},
		{Src: "src/config.ts", Dest: "config/config.ts", Required: true},
		{Src: "src/content/data", Dest: "content/data", Required: true},
	}

	path, err := NewArchiver(cfg).Backup(context.Background(), config.ModeFull)
	require.NoError(t, err)

	// A non-empty directory where the file should go makes the copy fail.
	require.NoError(t, os.Remove(filepath.Join(dir, "src/config.ts")))
	testutil.WriteFile(t, dir, "src/config.ts/blocker", "x")

	_, err = NewRestorer(dir, false).Restore(context.Background(), path)
	var restoreErr *RestoreError
	require.True(t, errors.As(err, &restoreErr))
	assert.Equal(t, "src/config.ts", restoreErr.Item)
	assert.Equal(t, []string{"src/content/posts"}, restoreErr.Restored)
	assert.Equal(t, []string{"src/content/data"}, restoreErr.Remaining)
	assert.Contains(t, err.Error(), "src/content/data")
}

func TestRestoreRejectsBadArchives(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		files map[string]string
		want  error
	}{
		{
			name:  "foreign manifest",
			files: map[string]string{"manifest.json": `{"name":"other-tool","version":"1","items":[]}`},
			want:  ErrForeignArchive,
		},
		{
			name:  "missing manifest",
			files: map[string]string{"config/config.ts": "x"},
			want:  ErrManifestMissing,
		},
		{
			name:  "corrupt manifest",
			files: map[string]string{"manifest.json": "{not json"},
			want:  ErrManifestMissing,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "archive.tar.gz")
			writeTarGz(t, path, tt.files)

			_, err := NewRestorer(t.TempDir(), false).Restore(context.Background(), path)
			var restoreErr *RestoreError
			require.True(t, errors.As(err, &restoreErr))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRestoreRejectsPathTraversal(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	project := filepath.Join(root, "project")
	require.NoError(t, os.MkdirAll(project, 0o755))
	path := filepath.Join(root, "evil.tar.gz")
	writeTarGz(t, path, map[string]string{"../escaped.txt": "gotcha"})

	_, err := NewRestorer(project, false).Restore(context.Background(), path)
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(root, "escaped.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRestoreRejectsManifestEscapingProject(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "evil.tar.gz")
	writeTarGz(t, path, map[string]string{
		"manifest.json": `{"name":"jeet-u-backup","version":"1","items":[{"src":"../outside","dest":"x"}]}`,
		"x":             "payload",
	})

	_, err := NewRestorer(t.TempDir(), false).Restore(context.Background(), path)
	require.Error(t, err)
}

func TestListPruneLatest(t *testing.T) {
	t.Parallel()
	cfg := newProject(t)
	a := NewArchiver(cfg)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	var paths []string
	for i := 0; i < 3; i++ {
		i := i
		a.now = func() time.Time { return base.Add(time.Duration(i) * time.Hour) }
		p, err := a.Backup(context.Background(), config.ModeBasic)
		require.NoError(t, err)
		paths = append(paths, p)
	}
	// Unrelated files are ignored.
	testutil.WriteFile(t, cfg.BackupDir(), "notes.txt", "keep me")

	entries, err := List(cfg.BackupDir())
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, paths[2], entries[0].Path)
	assert.Equal(t, paths[0], entries[2].Path)
	assert.Equal(t, config.ModeBasic, entries[0].Mode)
	assert.Equal(t, 5, entries[0].Items)

	latest, err := Latest(cfg.BackupDir())
	require.NoError(t, err)
	assert.Equal(t, paths[2], latest.Path)

	removed, err := Prune(cfg.BackupDir(), 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, paths[:2], removed)

	entries, err = List(cfg.BackupDir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "keep me", readFile(t, cfg.BackupDir(), "notes.txt"))

	_, err = Prune(cfg.BackupDir(), 0)
	require.Error(t, err)
}

func TestListMissingDirAndLatestEmpty(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "none")

	entries, err := List(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = Latest(dir)
	assert.ErrorIs(t, err, ErrNoBackups)
}

func TestListMarksInvalidArchives(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jeet-u-backup-full-20260101-000000.tar.gz"), []byte("not gzip"), 0o644))

	entries, err := List(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].Invalid)

	_, err = Latest(dir)
	assert.ErrorIs(t, err, ErrNoBackups)
}

func TestBackupPrunesBeyondKeep(t *testing.T) {
	t.Parallel()
	cfg := newProject(t)
	cfg.Backup.Keep = 2
	a := NewArchiver(cfg)
	base := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

	var paths []string
	for i := 0; i < 4; i++ {
		i := i
		a.now = func() time.Time { return base.Add(time.Duration(i) * time.Minute) }
		p, err := a.Backup(context.Background(), config.ModeBasic)
		require.NoError(t, err)
		paths = append(paths, p)
	}

	entries, err := List(cfg.BackupDir())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, paths[3], entries[0].Path)
	assert.Equal(t, paths[2], entries[1].Path)
}

func TestBackupDirInsideProjectIsIgnored(t *testing.T) {
	t.Parallel()

	inside := newProject(t)
	inside.Backup.Dir = config.DefaultBackupDir
	_, err := NewArchiver(inside).Backup(context.Background(), config.ModeBasic)
	require.NoError(t, err)
	assert.Equal(t, "*\n", readFile(t, inside.BackupDir(), IgnoreFile))

	entries, err := List(inside.BackupDir())
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	outside := newProject(t)
	_, err = NewArchiver(outside).Backup(context.Background(), config.ModeBasic)
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(outside.BackupDir(), IgnoreFile))
}

func TestBackupKeepsExistingIgnoreFile(t *testing.T) {
	t.Parallel()

	cfg := newProject(t)
	cfg.Backup.Dir = config.DefaultBackupDir
	testutil.WriteFile(t, cfg.BackupDir(), IgnoreFile, "*.tar.gz\n")

	_, err := NewArchiver(cfg).Backup(context.Background(), config.ModeBasic)
	require.NoError(t, err)
	assert.Equal(t, "*.tar.gz\n", readFile(t, cfg.BackupDir(), IgnoreFile))
}

func TestBackupFollowsSymlinks(t *testing.T) {
	t.Parallel()
	cfg := newProject(t)
	dir := cfg.ProjectDir
	ctx := context.Background()

	shared := t.TempDir()
	testutil.WriteFile(t, shared, "config.ts", "export const title = 'linked'\n")
	testutil.WriteFile(t, shared, "extra.md", "# extra\n")
	testutil.WriteFile(t, shared, "pages/about.md", "linked about\n")

	link := func(target, name string) {
		t.Helper()
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.RemoveAll(p))
		require.NoError(t, os.Symlink(target, p))
	}
	link(filepath.Join(shared, "config.ts"), "src/config.ts")
	link(filepath.Join(shared, "pages"), "src/content/spec")
	link(filepath.Join(shared, "extra.md"), "src/content/posts/extra.md")
	link(filepath.Join(dir, "src/content/posts"), "src/content/posts/loop")
	link(filepath.Join(dir, "missing.md"), "src/content/posts/broken.md")
	link(filepath.Join(dir, "missing.webp"), "src/assets/avatar.webp")

	path, err := NewArchiver(cfg).Backup(ctx, config.ModeBasic)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(dir, "src/config.ts")))
	require.NoError(t, os.Remove(filepath.Join(dir, "src/content/spec")))
	require.NoError(t, os.RemoveAll(filepath.Join(dir, "src/content/posts")))

	report, err := NewRestorer(dir, false).Restore(ctx, path)
	require.NoError(t, err)
	assert.Contains(t, report.Restored, "src/config.ts")
	assert.Contains(t, report.Restored, "src/content/spec")
	assert.Contains(t, report.Restored, "src/content/posts")
	assert.Contains(t, report.Skipped, "src/assets/avatar.webp")

	assert.Equal(t, "export const title = 'linked'\n", readFile(t, dir, "src/config.ts"))
	assert.Equal(t, "linked about\n", readFile(t, dir, "src/content/spec/about.md"))
	assert.Equal(t, "# extra\n", readFile(t, dir, "src/content/posts/extra.md"))
	assert.Equal(t, "# hello\n", readFile(t, dir, "src/content/posts/hello.md"))
	assert.NoFileExists(t, filepath.Join(dir, "src/content/posts/broken.md"))
	assert.NoDirExists(t, filepath.Join(dir, "src/content/posts/loop"))
}
