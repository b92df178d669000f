package updater

import (
	"context"
	"errors"
	"fmt"

	"github.com/jeet-u/jeet-u-updater/internal/config"
	"github.com/jeet-u/jeet-u-updater/internal/fetcher"
	"github.com/jeet-u/jeet-u-updater/internal/git"
	"github.com/jeet-u/jeet-u-updater/internal/installer"
	"github.com/jeet-u/jeet-u-updater/internal/logging"
	"github.com/jeet-u/jeet-u-updater/internal/merge"
)

// UpdateChecker compares the checkout with upstream.
type UpdateChecker interface {
	CheckForUpdates(ctx context.Context) (*fetcher.UpdateInfo, error)
}

// Archiver snapshots user files before a merge.
type Archiver interface {
	Backup(ctx context.Context, mode config.Mode) (string, error)
}

// Merger merges upstream into the checkout.
type Merger interface {
	MergeFromUpstream(ctx context.Context) (*merge.Result, error)
}

// Prompter asks the user to confirm risky steps.
type Prompter interface {
	// ConfirmUpdate is asked once upstream changes are known.
	ConfirmUpdate(ctx context.Context, info *fetcher.UpdateInfo) (bool, error)
	// ConfirmBackup is asked before archiving. allowSkip reports whether
	// declining skips the backup; otherwise declining cancels the update.
	ConfirmBackup(ctx context.Context, allowSkip bool) (bool, error)
}

// Components are the collaborators a session drives.
type Components struct {
	Probe     git.Probe
	Fetcher   UpdateChecker
	Archiver  Archiver
	Merger    Merger
	Installer installer.Installer
}

// SessionConfig holds per-run settings that are not part of the state.
type SessionConfig struct {
	Options    Options
	BackupMode config.Mode
	// AssumeYes answers every prompt affirmatively.
	AssumeYes bool
}

// Result is the outcome of a session.
type Result struct {
	State State `json:"state" yaml:"state"`
	// Cancelled is set when the user declined a prompt.
	Cancelled bool `json:"cancelled" yaml:"cancelled"`
}

// ExitCode maps the final state to a process exit status.
func (r *Result) ExitCode() int {
	if r.Cancelled {
		return 0
	}
	switch r.State.Status {
	case StatusDone, StatusUpToDate, StatusPreview:
		return 0
	case StatusConflict:
		return 2
	case StatusDirtyWarning:
		return 3
	default:
		return 1
	}
}

// Session runs one update from checking to a terminal state.
type Session struct {
	cfg       SessionConfig
	c         Components
	prompter  Prompter
	observers []Observer
}

func NewSession(cfg SessionConfig, c Components, prompter Prompter, observers ...Observer) *Session {
	if cfg.BackupMode == "" {
		cfg.BackupMode = config.ModeFull
	}
	return &Session{cfg: cfg, c: c, prompter: prompter, observers: observers}
}

// errDeclined ends a session without an error.
var errDeclined = errors.New("declined")

// Run executes commands until no more are queued. Component failures move
// the session to the error state; the returned error is reserved for the
// driver itself misbehaving.
func (s *Session) Run(ctx context.Context) (*Result, error) {
	state := Initial(s.cfg.Options)
	s.notify(state)

	queue := []Command{CmdCheckGit}
	for len(queue) > 0 {
		cmd := queue[0]
		queue = queue[1:]
		logging.Debugf("Verbose: session command=%s status=%s\n", cmd, state.Status)

		action, err := s.execute(ctx, cmd, state)
		if errors.Is(err, errDeclined) {
			logging.Infoln("Update cancelled.")
			return &Result{State: state, Cancelled: true}, nil
		}
		if err != nil {
			action = Failed{Message: err.Error()}
		}

		next, cmds, err := Transition(state, action)
		if err != nil {
			next, cmds, err = Transition(state, Failed{Message: err.Error()})
			if err != nil {
				return &Result{State: state}, err
			}
		}
		state = next
		s.notify(state)
		queue = append(queue, cmds...)
	}

	return &Result{State: state}, nil
}

func (s *Session) execute(ctx context.Context, cmd Command, state State) (Action, error) {
	switch cmd {
	case CmdCheckGit:
		status, err := s.c.Probe.Status(ctx)
		if err != nil {
			return nil, fmt.Errorf("checking working tree: %w", err)
		}
		return GitChecked{Status: status}, nil

	case CmdFetch:
		info, err := s.c.Fetcher.CheckForUpdates(ctx)
		if err != nil {
			return nil, err
		}
		return Fetched{Info: info}, nil

	case CmdPromptUpdate:
		if s.cfg.AssumeYes {
			return UpdateConfirm{}, nil
		}
		ok, err := s.prompter.ConfirmUpdate(ctx, state.Update)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errDeclined
		}
		return UpdateConfirm{}, nil

	case CmdPromptBackup:
		allowSkip := s.cfg.Options.SkipBackup || s.cfg.Options.Force
		if s.cfg.AssumeYes {
			return BackupConfirm{}, nil
		}
		ok, err := s.prompter.ConfirmBackup(ctx, allowSkip)
		if err != nil {
			return nil, err
		}
		if ok {
			return BackupConfirm{}, nil
		}
		if !allowSkip {
			return nil, errDeclined
		}
		return BackupSkip{}, nil

	case CmdBackup:
		// Once started, a backup runs to completion even if interrupted.
		path, err := s.c.Archiver.Backup(context.WithoutCancel(ctx), s.cfg.BackupMode)
		if err != nil {
			return nil, err
		}
		return BackupDone{Path: path}, nil

	case CmdMerge:
		res, err := s.c.Merger.MergeFromUpstream(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		return Merged{Result: res}, nil

	case CmdInstall:
		if err := s.c.Installer.Install(ctx); err != nil {
			return nil, fmt.Errorf("installing dependencies: %w", err)
		}
		return Installed{}, nil
	}
	return nil, fmt.Errorf("unknown command %d", int(cmd))
}

func (s *Session) notify(state State) {
	for _, o := range s.observers {
		o.Observe(state)
	}
}
