package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jeet-u/jeet-u-updater/internal/config"
)

const (
	ManifestFile    = "manifest.json"
	ManifestName    = "jeet-u-backup"
	ManifestVersion = "1"
)

// Manifest describes an archive's contents. It is stored as manifest.json at
// the archive root.
type Manifest struct {
	Name      string         `json:"name" yaml:"name"`
	Version   string         `json:"version" yaml:"version"`
	CreatedAt time.Time      `json:"createdAt" yaml:"createdAt"`
	Mode      config.Mode    `json:"mode" yaml:"mode"`
	Items     []ManifestItem `json:"items" yaml:"items"`
}

// ManifestItem maps a project path to its location inside the archive.
type ManifestItem struct {
	Src  string `json:"src" yaml:"src"`
	Dest string `json:"dest" yaml:"dest"`
}

func newManifest(mode config.Mode, items []config.BackupItem, now time.Time) *Manifest {
	m := &Manifest{
		Name:      ManifestName,
		Version:   ManifestVersion,
		CreatedAt: now.UTC().Truncate(time.Second),
		Mode:      mode,
		Items:     make([]ManifestItem, 0, len(items)),
	}
	for _, it := range items {
		m.Items = append(m.Items, ManifestItem{Src: it.Src, Dest: it.Dest})
	}
	return m
}

func writeManifest(dir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

func decodeManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifestMissing, err)
	}
	if m.Name != ManifestName {
		return nil, fmt.Errorf("%w: manifest name %q", ErrForeignArchive, m.Name)
	}
	for _, it := range m.Items {
		if _, err := config.CleanRelative(it.Src); err != nil {
			return nil, fmt.Errorf("manifest item src %q: %w", it.Src, err)
		}
		if _, err := config.CleanRelative(it.Dest); err != nil {
			return nil, fmt.Errorf("manifest item dest %q: %w", it.Dest, err)
		}
	}
	return &m, nil
}
