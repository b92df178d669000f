package profile

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

// Profile holds saveable CLI options. All fields are pointers so we can
// distinguish "not set" from zero values.
type Profile struct {
	ProjectDir *string `toml:"project-dir,omitempty"`
	Config     *string `toml:"config,omitempty"`
	Mode       *string `toml:"mode,omitempty"`
	SkipBackup *bool   `toml:"skip-backup,omitempty"`
	Yes        *bool   `toml:"yes,omitempty"`
	Output     *string `toml:"output,omitempty"`
	NoJournal  *bool   `toml:"no-journal,omitempty"`
	EnvFile    *string `toml:"env-file,omitempty"`
	Verbose    *bool   `toml:"verbose,omitempty"`
	LogFile    *string `toml:"log-file,omitempty"`
}

// Dir returns the profiles directory, using XDG_CONFIG_HOME with a fallback
// to ~/.config.
func Dir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "jeet-u-updater", "profiles")
}

// ValidateName rejects names that cannot be used as a profile file name.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid profile name %q", name)
	}
	return nil
}

func path(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return filepath.Join(Dir(), name+".toml"), nil
}

// Load reads a named profile from the profiles directory.
func Load(name string) (*Profile, error) {
	p, err := path(name)
	if err != nil {
		return nil, err
	}
	var prof Profile
	md, err := toml.DecodeFile(p, &prof)
	if err != nil {
		return nil, fmt.Errorf("loading profile %q: %w", name, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("loading profile %q: unknown key %q", name, undecoded[0].String())
	}
	return &prof, nil
}

// Save writes a profile to the profiles directory, creating it if needed.
func Save(name string, prof *Profile) error {
	p, err := path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("creating profiles directory: %w", err)
	}

	tmpPath := p + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating profile file: %w", err)
	}
	err = toml.NewEncoder(f).Encode(prof)
	closeErr := f.Close()
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("encoding profile: %w", err)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing profile file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, p); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("finalizing profile: %w", err)
	}
	return nil
}

// List returns the names of all saved profiles, sorted.
func List() ([]string, error) {
	dir := Dir()

	var names []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if path == dir {
			return nil
		}
		if d.IsDir() {
			return filepath.SkipDir
		}
		if strings.HasSuffix(d.Name(), ".toml") {
			names = append(names, strings.TrimSuffix(d.Name(), ".toml"))
		}
		return nil
	})
	if err != nil && os.IsNotExist(err) {
		return nil, nil
	}
	slices.Sort(names)
	return names, err
}

// Delete removes a named profile.
func Delete(name string) error {
	p, err := path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		return fmt.Errorf("deleting profile %q: %w", name, err)
	}
	return nil
}
