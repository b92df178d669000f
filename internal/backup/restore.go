package backup

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"github.com/jeet-u/jeet-u-updater/internal/logging"
)

// errStopWalk ends walkArchive early without error.
var errStopWalk = errors.New("stop")

// PlannedCopy is one archive-to-project copy.
type PlannedCopy struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// RestoreReport describes what a restore did, or would do for a dry run.
type RestoreReport struct {
	Archive  string        `json:"archive" yaml:"archive"`
	Manifest *Manifest     `json:"manifest" yaml:"manifest"`
	DryRun   bool          `json:"dryRun" yaml:"dryRun"`
	Planned  []PlannedCopy `json:"planned" yaml:"planned"`
	Restored []string      `json:"restored" yaml:"restored"`
	Skipped  []string      `json:"skipped" yaml:"skipped"`
}

// Restorer copies archived items back into a project checkout.
type Restorer struct {
	projectDir string
	dryRun     bool
}

// NewRestorer creates a restorer for projectDir. With dryRun set, Restore
// reports the planned copies without writing anything.
func NewRestorer(projectDir string, dryRun bool) *Restorer {
	return &Restorer{projectDir: projectDir, dryRun: dryRun}
}

// Restore unpacks archivePath and copies each manifest item back to its
// source location, overwriting existing files. Items missing from the archive
// are reported as skipped. A failure part way returns *RestoreError listing
// what was and was not restored; restored items are left in place.
func (r *Restorer) Restore(ctx context.Context, archivePath string) (*RestoreReport, error) {
	tmp, err := os.MkdirTemp("", "jeet-u-restore-*")
	if err != nil {
		return nil, &RestoreError{Err: fmt.Errorf("creating extraction directory: %w", err)}
	}
	defer os.RemoveAll(tmp)

	if err := extract(ctx, archivePath, tmp); err != nil {
		return nil, &RestoreError{Err: err}
	}

	data, err := os.ReadFile(filepath.Join(tmp, ManifestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &RestoreError{Err: ErrManifestMissing}
		}
		return nil, &RestoreError{Err: fmt.Errorf("reading manifest: %w", err)}
	}
	manifest, err := decodeManifest(data)
	if err != nil {
		return nil, &RestoreError{Err: err}
	}

	report := &RestoreReport{
		Archive:  archivePath,
		Manifest: manifest,
		DryRun:   r.dryRun,
		Planned:  []PlannedCopy{},
		Restored: []string{},
		Skipped:  []string{},
	}
	logging.Debugf("Verbose: restore manifest mode=%s items=%d created=%s\n",
		manifest.Mode, len(manifest.Items), manifest.CreatedAt.Format("2006-01-02T15:04:05Z07:00"))

	for i, item := range manifest.Items {
		from := filepath.Join(tmp, filepath.FromSlash(item.Dest))
		ok, err := exists(from)
		if err != nil {
			return report, r.failure(report, manifest, i, err)
		}
		if !ok {
			logging.Infof("  skipping %s (not in archive)\n", item.Src)
			report.Skipped = append(report.Skipped, item.Src)
			continue
		}
		report.Planned = append(report.Planned, PlannedCopy{From: item.Dest, To: item.Src})
		if r.dryRun {
			continue
		}

		to := filepath.Join(r.projectDir, filepath.FromSlash(item.Src))
		if err := copyPath(ctx, from, to); err != nil {
			return report, r.failure(report, manifest, i, err)
		}
		report.Restored = append(report.Restored, item.Src)
		logging.Debugf("Verbose: restored src=%s dest=%s\n", item.Src, item.Dest)
	}

	return report, nil
}

func (r *Restorer) failure(report *RestoreReport, m *Manifest, failed int, err error) error {
	remaining := make([]string, 0, len(m.Items)-failed-1)
	for _, it := range m.Items[failed+1:] {
		remaining = append(remaining, it.Src)
	}
	return &RestoreError{
		Item:      m.Items[failed].Src,
		Restored:  append([]string{}, report.Restored...),
		Remaining: remaining,
		Err:       err,
	}
}

// extract unpacks a tar.gz into dir. Entries that would land outside dir or
// that are not regular files or directories are rejected.
func extract(ctx context.Context, archivePath, dir string) error {
	return walkArchive(archivePath, func(hdr *tar.Header, r io.Reader) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !filepath.IsLocal(filepath.FromSlash(hdr.Name)) {
			return fmt.Errorf("archive entry %q escapes the extraction root", hdr.Name)
		}
		target := filepath.Join(dir, filepath.FromSlash(hdr.Name))
		perm := hdr.FileInfo().Mode().Perm()

		switch hdr.Typeflag {
		case tar.TypeDir:
			return os.MkdirAll(target, 0o755)
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
			if err != nil {
				return err
			}
			_, err = io.Copy(f, r)
			if err == nil {
				err = f.Chmod(perm)
			}
			if closeErr := f.Close(); err == nil {
				err = closeErr
			}
			return err
		default:
			return fmt.Errorf("archive entry %q has unsupported type %q", hdr.Name, hdr.Typeflag)
		}
	})
}

// walkArchive calls fn for each entry of a tar.gz file. fn may return
// errStopWalk to end the walk early.
func walkArchive(archivePath string, fn func(*tar.Header, io.Reader) error) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("reading archive %s: %w", filepath.Base(archivePath), err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading archive %s: %w", filepath.Base(archivePath), err)
		}
		if err := fn(hdr, tr); err != nil {
			if errors.Is(err, errStopWalk) {
				return nil
			}
			return err
		}
	}
}
