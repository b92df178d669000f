package updater

import (
	"context"
	"errors"
	"fmt"

	"github.com/jeet-u/jeet-u-updater/internal/backup"
	"github.com/jeet-u/jeet-u-updater/internal/config"
	"github.com/jeet-u/jeet-u-updater/internal/fetcher"
	"github.com/jeet-u/jeet-u-updater/internal/git"
	"github.com/jeet-u/jeet-u-updater/internal/logging"
)

// StatusReport is a read-only summary of a checkout.
type StatusReport struct {
	ProjectDir     string              `json:"projectDir" yaml:"projectDir"`
	Git            *git.StatusInfo     `json:"git" yaml:"git"`
	Update         *fetcher.UpdateInfo `json:"update" yaml:"update"`
	UpdateError    string              `json:"updateError,omitempty" yaml:"updateError,omitempty"`
	EnvFile        string              `json:"envFile" yaml:"envFile"`
	EnvFilePresent bool                `json:"envFilePresent" yaml:"envFilePresent"`
	LatestBackup   *backup.Entry       `json:"latestBackup,omitempty" yaml:"latestBackup,omitempty"`
}

// Report gathers the working tree state, upstream divergence, env file
// presence and the newest backup. An unreachable upstream is recorded in
// UpdateError instead of failing the report.
func Report(ctx context.Context, cfg *config.Config, probe git.Probe, checker UpdateChecker) (*StatusReport, error) {
	gs, err := probe.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("checking working tree: %w", err)
	}
	logging.Debugf("Verbose: status branch=%s clean=%t uncommitted=%d\n", gs.CurrentBranch, gs.IsClean, gs.UncommittedCount)

	report := &StatusReport{
		ProjectDir:     cfg.ProjectDir,
		Git:            gs,
		EnvFile:        cfg.EnvFilePath(),
		EnvFilePresent: cfg.EnvFilePresent(),
	}

	info, err := checker.CheckForUpdates(ctx)
	if err != nil {
		report.UpdateError = err.Error()
	} else {
		report.Update = info
	}

	latest, err := backup.Latest(cfg.BackupDir())
	switch {
	case err == nil:
		report.LatestBackup = &latest
	case errors.Is(err, backup.ErrNoBackups):
	default:
		return nil, err
	}
	return report, nil
}
