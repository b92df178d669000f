package updater

import (
	"github.com/jeet-u/jeet-u-updater/internal/fetcher"
	"github.com/jeet-u/jeet-u-updater/internal/git"
	"github.com/jeet-u/jeet-u-updater/internal/merge"
)

// Status is the phase of an update session.
type Status string

const (
	StatusChecking      Status = "checking"
	StatusDirtyWarning  Status = "dirty-warning"
	StatusFetching      Status = "fetching"
	StatusUpToDate      Status = "up-to-date"
	StatusPreview       Status = "preview"
	StatusBackupConfirm Status = "backup-confirm"
	StatusBackingUp     Status = "backing-up"
	StatusMerging       Status = "merging"
	StatusConflict      Status = "conflict"
	StatusInstalling    Status = "installing"
	StatusDone          Status = "done"
	StatusError         Status = "error"
)

// Statuses lists every status in workflow order.
var Statuses = []Status{
	StatusChecking,
	StatusDirtyWarning,
	StatusFetching,
	StatusUpToDate,
	StatusPreview,
	StatusBackupConfirm,
	StatusBackingUp,
	StatusMerging,
	StatusConflict,
	StatusInstalling,
	StatusDone,
	StatusError,
}

// Options are fixed for the lifetime of a session.
type Options struct {
	// CheckOnly stops at the preview without prompting or changing anything.
	CheckOnly bool `json:"checkOnly" yaml:"checkOnly"`
	// SkipBackup merges without creating a backup archive.
	SkipBackup bool `json:"skipBackup" yaml:"skipBackup"`
	// Force proceeds past a dirty working tree and allows skipping the backup.
	Force bool `json:"force" yaml:"force"`
}

// State is the snapshot published after every accepted transition.
type State struct {
	Status     Status              `json:"status" yaml:"status"`
	Git        *git.StatusInfo     `json:"git,omitempty" yaml:"git,omitempty"`
	Update     *fetcher.UpdateInfo `json:"update,omitempty" yaml:"update,omitempty"`
	Merge      *merge.Result       `json:"merge,omitempty" yaml:"merge,omitempty"`
	BackupFile string              `json:"backupFile,omitempty" yaml:"backupFile,omitempty"`
	Error      string              `json:"error,omitempty" yaml:"error,omitempty"`
	Options    Options             `json:"options" yaml:"options"`
}

// Initial returns the state a session starts in.
func Initial(opts Options) State {
	return State{Status: StatusChecking, Options: opts}
}

// IsTerminal reports whether no further action is accepted in s.
func IsTerminal(s State) bool {
	switch s.Status {
	case StatusDirtyWarning, StatusConflict, StatusUpToDate, StatusDone, StatusError:
		return true
	case StatusPreview:
		return s.Options.CheckOnly
	default:
		return false
	}
}

// Command is a side effect the session driver performs after a transition.
type Command int

const (
	CmdCheckGit Command = iota + 1
	CmdFetch
	CmdPromptUpdate
	CmdPromptBackup
	CmdBackup
	CmdMerge
	CmdInstall
)

func (c Command) String() string {
	switch c {
	case CmdCheckGit:
		return "check-git"
	case CmdFetch:
		return "fetch"
	case CmdPromptUpdate:
		return "prompt-update"
	case CmdPromptBackup:
		return "prompt-backup"
	case CmdBackup:
		return "backup"
	case CmdMerge:
		return "merge"
	case CmdInstall:
		return "install"
	default:
		return "unknown"
	}
}
