package backup

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jeet-u/jeet-u-updater/internal/config"
	"github.com/jeet-u/jeet-u-updater/internal/logging"
)

// ErrNoBackups is returned by Latest when the backup directory holds no archives.
var ErrNoBackups = errors.New("no backups found")

// Entry is an archive found in the backup directory.
type Entry struct {
	Path      string      `json:"path" yaml:"path"`
	Size      int64       `json:"size" yaml:"size"`
	CreatedAt time.Time   `json:"createdAt" yaml:"createdAt"`
	Mode      config.Mode `json:"mode" yaml:"mode"`
	Items     int         `json:"items" yaml:"items"`
	// Invalid holds the reason the manifest could not be read, if any.
	Invalid string `json:"invalid,omitempty" yaml:"invalid,omitempty"`
}

// List returns the archives in dir, newest first. A missing directory yields
// an empty list. Archives with unreadable manifests are listed with Invalid
// set and dated by modification time.
func List(dir string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	entries := []Entry{}
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		e := Entry{Path: filepath.Join(dir, name), Size: info.Size(), CreatedAt: info.ModTime().UTC()}

		m, err := ReadManifest(e.Path)
		if err != nil {
			e.Invalid = err.Error()
			logging.Debugf("Verbose: backup list invalid path=%s err=%v\n", e.Path, err)
		} else {
			e.CreatedAt = m.CreatedAt
			e.Mode = m.Mode
			e.Items = len(m.Items)
		}
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return entries[i].Path > entries[j].Path
	})
	return entries, nil
}

// Latest returns the newest valid archive in dir.
func Latest(dir string) (Entry, error) {
	entries, err := List(dir)
	if err != nil {
		return Entry{}, err
	}
	for _, e := range entries {
		if e.Invalid == "" {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("%w in %s", ErrNoBackups, dir)
}

// Prune deletes all but the newest keep archives in dir and returns the
// removed paths. keep must be at least 1.
func Prune(dir string, keep int) ([]string, error) {
	if keep < 1 {
		return nil, fmt.Errorf("keep must be at least 1, got %d", keep)
	}
	entries, err := List(dir)
	if err != nil {
		return nil, err
	}

	removed := []string{}
	if len(entries) <= keep {
		return removed, nil
	}
	for _, e := range entries[keep:] {
		if err := os.Remove(e.Path); err != nil {
			return removed, fmt.Errorf("removing %s: %w", filepath.Base(e.Path), err)
		}
		logging.Debugf("Verbose: pruned backup path=%s\n", e.Path)
		removed = append(removed, e.Path)
	}
	return removed, nil
}

// ReadManifest reads only the manifest of an archive.
func ReadManifest(archivePath string) (*Manifest, error) {
	var data []byte
	err := walkArchive(archivePath, func(hdr *tar.Header, r io.Reader) error {
		if hdr.Name != ManifestFile {
			return nil
		}
		var err error
		data, err = io.ReadAll(r)
		if err != nil {
			return err
		}
		return errStopWalk
	})
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, ErrManifestMissing
	}
	return decodeManifest(data)
}
