package updater

import (
	"github.com/jeet-u/jeet-u-updater/internal/fetcher"
	"github.com/jeet-u/jeet-u-updater/internal/git"
	"github.com/jeet-u/jeet-u-updater/internal/merge"
)

// Action is an event fed to Transition. The set is closed: only the types
// in this file implement it.
type Action interface {
	Name() string
	isAction()
}

// GitChecked carries the working tree status.
type GitChecked struct {
	Status *git.StatusInfo
}

// Fetched carries the upstream comparison.
type Fetched struct {
	Info *fetcher.UpdateInfo
}

// BackupConfirm accepts the backup prompt.
type BackupConfirm struct{}

// BackupSkip declines the backup; only allowed with SkipBackup or Force.
type BackupSkip struct{}

// BackupDone carries the path of the written archive.
type BackupDone struct {
	Path string
}

// UpdateConfirm accepts the update prompt.
type UpdateConfirm struct{}

// Merged carries the merge outcome.
type Merged struct {
	Result *merge.Result
}

// Installed reports that dependencies were refreshed.
type Installed struct{}

// Failed moves any non-terminal state to error.
type Failed struct {
	Message string
}

func (GitChecked) Name() string    { return "GIT_CHECKED" }
func (Fetched) Name() string       { return "FETCHED" }
func (BackupConfirm) Name() string { return "BACKUP_CONFIRM" }
func (BackupSkip) Name() string    { return "BACKUP_SKIP" }
func (BackupDone) Name() string    { return "BACKUP_DONE" }
func (UpdateConfirm) Name() string { return "UPDATE_CONFIRM" }
func (Merged) Name() string        { return "MERGED" }
func (Installed) Name() string     { return "INSTALLED" }
func (Failed) Name() string        { return "ERROR" }

func (GitChecked) isAction()    {}
func (Fetched) isAction()       {}
func (BackupConfirm) isAction() {}
func (BackupSkip) isAction()    {}
func (BackupDone) isAction()    {}
func (UpdateConfirm) isAction() {}
func (Merged) isAction()        {}
func (Installed) isAction()     {}
func (Failed) isAction()        {}
