package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// FileName is the optional per-project configuration file.
const FileName = ".jeet-u.toml"

const (
	DefaultRemoteName     = "upstream"
	DefaultRemoteURL      = "https://github.com/jeet-u/jeet-u.git"
	DefaultBranch         = "main"
	DefaultBackupDir      = "backups"
	DefaultVersionFile    = "package.json"
	DefaultVersionField   = "version"
	DefaultInstallCommand = "pnpm install"
	DefaultEnvFile        = "../.env"
	DefaultGitTimeout     = 2 * time.Minute
)

// Config is everything the update and backup workflow needs to know about a
// project. It is loaded once and passed to each component at construction.
type Config struct {
	Upstream UpstreamConfig `toml:"upstream"`
	Backup   BackupConfig   `toml:"backup"`
	Version  VersionConfig  `toml:"version"`
	Install  InstallConfig  `toml:"install"`

	// EnvFile is checked for presence only; its values are never read.
	EnvFile    string   `toml:"env_file"`
	GitTimeout Duration `toml:"git_timeout"`

	// ProjectDir is the checkout root. It is set by Load, not read from the file.
	ProjectDir string `toml:"-"`
}

type UpstreamConfig struct {
	Remote                  string `toml:"remote"`
	URL                     string `toml:"url"`
	Branch                  string `toml:"branch"`
	AllowUnrelatedHistories *bool  `toml:"allow_unrelated_histories"`
}

type BackupConfig struct {
	Dir         string       `toml:"dir"`
	DefaultMode string       `toml:"default_mode"`
	Keep        int          `toml:"keep"`
	Items       []BackupItem `toml:"items"`
}

type VersionConfig struct {
	File  string `toml:"file"`
	Field string `toml:"field"`
}

type InstallConfig struct {
	Command string `toml:"command"`
	Skip    bool   `toml:"skip"`
}

// Duration lets TOML files use strings such as "90s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the built-in configuration for projectDir.
func Default(projectDir string) *Config {
	allow := true
	return &Config{
		Upstream: UpstreamConfig{
			Remote:                  DefaultRemoteName,
			URL:                     DefaultRemoteURL,
			Branch:                  DefaultBranch,
			AllowUnrelatedHistories: &allow,
		},
		Backup: BackupConfig{
			Dir:         DefaultBackupDir,
			DefaultMode: string(ModeFull),
			Items:       DefaultItems(),
		},
		Version: VersionConfig{
			File:  DefaultVersionFile,
			Field: DefaultVersionField,
		},
		Install: InstallConfig{
			Command: DefaultInstallCommand,
		},
		EnvFile:    DefaultEnvFile,
		GitTimeout: Duration{DefaultGitTimeout},
		ProjectDir: projectDir,
	}
}

// Load reads path, or <projectDir>/.jeet-u.toml when path is empty.
// A missing default file is not an error; the defaults are returned.
// Values present in the file override the defaults field by field.
func Load(projectDir, path string) (*Config, error) {
	abs, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("resolving project directory: %w", err)
	}
	cfg := Default(abs)

	explicit := path != ""
	if !explicit {
		path = filepath.Join(abs, FileName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// The decoder reuses existing slice elements, so the default item list is
	// cleared first and only restored when the file does not define its own.
	defaults := cfg.Backup.Items
	cfg.Backup.Items = nil
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if !md.IsDefined("backup", "items") {
		cfg.Backup.Items = defaults
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("parsing config %s: unknown key %q", path, undecoded[0].String())
	}
	cfg.ProjectDir = abs

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Upstream.Remote) == "" {
		return fmt.Errorf("upstream.remote is required")
	}
	if strings.ContainsAny(c.Upstream.Remote, " /") {
		return fmt.Errorf("upstream.remote %q must not contain spaces or slashes", c.Upstream.Remote)
	}
	if strings.TrimSpace(c.Upstream.URL) == "" {
		return fmt.Errorf("upstream.url is required")
	}
	if strings.TrimSpace(c.Upstream.Branch) == "" {
		return fmt.Errorf("upstream.branch is required")
	}
	if c.Backup.Dir == "" {
		return fmt.Errorf("backup.dir is required")
	}
	if filepath.Clean(c.BackupDir()) == filepath.Clean(c.ProjectDir) {
		return fmt.Errorf("backup.dir must not be the project directory")
	}
	if c.Backup.Keep < 0 {
		return fmt.Errorf("backup.keep must not be negative")
	}
	if _, err := ParseMode(c.Backup.DefaultMode); err != nil {
		return fmt.Errorf("backup.default_mode: %w", err)
	}
	if err := validateItems(c.Backup.Items); err != nil {
		return err
	}
	if c.GitTimeout.Duration <= 0 {
		return fmt.Errorf("git_timeout must be positive")
	}
	return nil
}

// UpstreamRef is the remote-tracking ref updates are merged from.
func (c *Config) UpstreamRef() string {
	return c.Upstream.Remote + "/" + c.Upstream.Branch
}

// AllowUnrelated reports whether merges may join unrelated histories.
func (c *Config) AllowUnrelated() bool {
	return c.Upstream.AllowUnrelatedHistories == nil || *c.Upstream.AllowUnrelatedHistories
}

// BackupDir returns the absolute backup storage directory.
func (c *Config) BackupDir() string {
	return c.resolve(c.Backup.Dir)
}

// EnvFilePath returns the absolute path of the environment file.
func (c *Config) EnvFilePath() string {
	return c.resolve(c.EnvFile)
}

// EnvFilePresent reports whether the environment file exists.
func (c *Config) EnvFilePresent() bool {
	if c.EnvFile == "" {
		return false
	}
	info, err := os.Stat(c.EnvFilePath())
	return err == nil && !info.IsDir()
}

func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.ProjectDir, p)
}
