// Package backup creates and restores snapshot archives of a project's
// user-owned files.
package backup

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/schollz/progressbar/v3"

	"github.com/jeet-u/jeet-u-updater/internal/config"
	"github.com/jeet-u/jeet-u-updater/internal/logging"
)

const (
	filePrefix = ManifestName + "-"
	fileSuffix = ".tar.gz"
	timeLayout = "20060102-150405"
)

// Archiver snapshots the configured backup items into a compressed archive.
type Archiver struct {
	projectDir string
	backupDir  string
	items      []config.BackupItem
	keep       int

	// Progress, when set, receives a byte progress bar while compressing.
	Progress io.Writer

	now func() time.Time
}

func NewArchiver(cfg *config.Config) *Archiver {
	return &Archiver{
		projectDir: cfg.ProjectDir,
		backupDir:  cfg.BackupDir(),
		items:      cfg.Backup.Items,
		keep:       cfg.Backup.Keep,
		now:        time.Now,
	}
}

// Backup archives the items selected by mode and returns the archive path.
// The archive appears under its final name only once fully written; staging
// data and partial archives are removed on every exit path. When a keep
// count is configured, older archives beyond it are pruned afterwards.
func (a *Archiver) Backup(ctx context.Context, mode config.Mode) (string, error) {
	items := config.SelectItems(a.items, mode)
	now := a.now()
	logging.Infof("Creating %s backup (%d items)...\n", mode, len(items))

	staging, err := os.MkdirTemp("", "jeet-u-backup-*")
	if err != nil {
		return "", &BackupError{Err: fmt.Errorf("creating staging directory: %w", err)}
	}
	defer func() {
		if err := os.RemoveAll(staging); err != nil {
			logging.Warnf("could not remove staging directory %s: %v\n", staging, err)
		}
	}()
	logging.Debugf("Verbose: backup staging dir=%s mode=%s\n", staging, mode)

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return "", &BackupError{Err: err}
		}
		src := filepath.Join(a.projectDir, filepath.FromSlash(item.Src))
		ok, err := exists(src)
		if err != nil {
			return "", &BackupError{Item: item.Src, Err: err}
		}
		if !ok {
			logging.Infof("  skipping %s (not found)\n", item.Src)
			continue
		}
		if err := copyPath(ctx, src, filepath.Join(staging, filepath.FromSlash(item.Dest))); err != nil {
			return "", &BackupError{Item: item.Src, Err: err}
		}
		logging.Debugf("Verbose: backup staged src=%s dest=%s\n", item.Src, item.Dest)
	}

	if err := writeManifest(staging, newManifest(mode, items, now)); err != nil {
		return "", &BackupError{Err: err}
	}

	if err := os.MkdirAll(a.backupDir, 0o755); err != nil {
		return "", &BackupError{Err: fmt.Errorf("creating backup directory: %w", err)}
	}
	if err := a.ignoreBackupDir(); err != nil {
		return "", &BackupError{Err: err}
	}
	dest, err := a.archivePath(mode, now)
	if err != nil {
		return "", &BackupError{Err: err}
	}
	tmpPath := filepath.Join(a.backupDir, "."+filepath.Base(dest)+".tmp")

	if err := a.compress(ctx, staging, tmpPath); err != nil {
		os.Remove(tmpPath)
		return "", &BackupError{Err: err}
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return "", &BackupError{Err: fmt.Errorf("finalizing archive: %w", err)}
	}

	logging.Debugf("Verbose: backup written path=%s\n", dest)

	if a.keep > 0 {
		removed, err := Prune(a.backupDir, a.keep)
		if err != nil {
			logging.Warnf("could not prune old backups: %v\n", err)
		} else if len(removed) > 0 {
			logging.Infof("Pruned %d old backup(s), keeping %d\n", len(removed), a.keep)
		}
	}
	return dest, nil
}

// IgnoreFile is written into a backup directory that lies inside the
// checkout so git never reports its archives as untracked changes.
const IgnoreFile = ".gitignore"

func (a *Archiver) ignoreBackupDir() error {
	rel, err := filepath.Rel(a.projectDir, a.backupDir)
	if err != nil || rel == "." || !filepath.IsLocal(rel) {
		return nil
	}
	path := filepath.Join(a.backupDir, IgnoreFile)
	ok, err := exists(path)
	if err != nil || ok {
		return err
	}
	if err := os.WriteFile(path, []byte("*\n"), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	logging.Debugf("Verbose: backup dir ignored path=%s\n", path)
	return nil
}

// archivePath picks a name that does not collide with an existing archive.
func (a *Archiver) archivePath(mode config.Mode, now time.Time) (string, error) {
	base := filePrefix + string(mode) + "-" + now.Format(timeLayout)
	for i := 1; ; i++ {
		name := base
		if i > 1 {
			name += "-" + strconv.Itoa(i)
		}
		path := filepath.Join(a.backupDir, name+fileSuffix)
		ok, err := exists(path)
		if err != nil {
			return "", err
		}
		if !ok {
			return path, nil
		}
	}
}

func (a *Archiver) compress(ctx context.Context, root, dest string) error {
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}
	defer f.Close()

	var bar *progressbar.ProgressBar
	var progress io.Writer
	if a.Progress != nil {
		total, err := treeSize(root)
		if err != nil {
			return err
		}
		bar = progressbar.NewOptions64(total,
			progressbar.OptionSetWriter(a.Progress),
			progressbar.OptionSetDescription("Compressing"),
			progressbar.OptionShowBytes(true),
			progressbar.OptionClearOnFinish(),
		)
		progress = bar
	}

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	// manifest.json goes first so readers can stop early.
	if err := addFile(tw, root, ManifestFile, progress); err != nil {
		return err
	}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." || rel == ManifestFile {
			return nil
		}
		return addFile(tw, root, rel, progress)
	})
	if err != nil {
		return fmt.Errorf("writing archive: %w", err)
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("closing archive: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("closing archive: %w", err)
	}
	if bar != nil {
		_ = bar.Finish()
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing archive: %w", err)
	}
	return f.Close()
}

// addFile writes one staged entry. progress, if non-nil, is fed the file bytes.
func addFile(tw *tar.Writer, root, rel string, progress io.Writer) error {
	path := filepath.Join(root, rel)
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() && !info.Mode().IsRegular() {
		return nil
	}

	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = filepath.ToSlash(rel)
	if info.IsDir() && !strings.HasSuffix(hdr.Name, "/") {
		hdr.Name += "/"
	}
	hdr.Uid, hdr.Gid = 0, 0
	hdr.Uname, hdr.Gname = "", ""

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	if info.IsDir() {
		return nil
	}

	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	var w io.Writer = tw
	if progress != nil {
		w = io.MultiWriter(tw, progress)
	}
	_, err = io.Copy(w, src)
	return err
}

func treeSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
		}
		return nil
	})
	return total, err
}
