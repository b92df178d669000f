package updater

import (
	"errors"
	"fmt"

	"github.com/jeet-u/jeet-u-updater/internal/logging"
)

var (
	// ErrIllegalTransition is returned for an action the current state does
	// not accept. The state is left unchanged.
	ErrIllegalTransition = errors.New("illegal transition")
	// ErrBackupRequired is returned when a merge would start without a backup
	// while neither SkipBackup nor Force is set.
	ErrBackupRequired = errors.New("merge requires a completed backup")
)

// Transition computes the next state and the commands to run for it. It has
// no side effects; rejected actions return s unchanged with an error
// wrapping ErrIllegalTransition.
func Transition(s State, a Action) (State, []Command, error) {
	next, cmds, ok := step(s, a)
	if !ok {
		return reject(s, a, nil)
	}
	if next.Status == StatusMerging && s.Status != StatusMerging {
		if next.BackupFile == "" && !next.Options.SkipBackup && !next.Options.Force {
			return reject(s, a, ErrBackupRequired)
		}
	}
	logging.Debugf("Verbose: transition from=%s action=%s to=%s commands=%v\n", s.Status, a.Name(), next.Status, cmds)
	return next, cmds, nil
}

func reject(s State, a Action, cause error) (State, []Command, error) {
	logging.Debugf("Verbose: rejected transition status=%s action=%s\n", s.Status, a.Name())
	err := fmt.Errorf("%w: %s in %s", ErrIllegalTransition, a.Name(), s.Status)
	if cause != nil {
		err = fmt.Errorf("%w: %w", err, cause)
	}
	return s, nil, err
}

// step holds the transition table. ok is false for pairs the table does not list.
func step(s State, a Action) (next State, cmds []Command, ok bool) {
	if IsTerminal(s) {
		return s, nil, false
	}
	next = s

	if f, isFailure := a.(Failed); isFailure {
		next.Status = StatusError
		next.Error = f.Message
		if next.Error == "" {
			next.Error = "unknown error"
		}
		return next, nil, true
	}

	switch s.Status {
	case StatusChecking:
		act, match := a.(GitChecked)
		if !match || act.Status == nil {
			return s, nil, false
		}
		next.Git = act.Status
		if act.Status.IsClean || s.Options.Force {
			next.Status = StatusFetching
			return next, []Command{CmdFetch}, true
		}
		next.Status = StatusDirtyWarning
		return next, nil, true

	case StatusFetching:
		act, match := a.(Fetched)
		if !match || act.Info == nil {
			return s, nil, false
		}
		next.Update = act.Info
		if act.Info.BehindCount == 0 {
			next.Status = StatusUpToDate
			return next, nil, true
		}
		next.Status = StatusPreview
		if s.Options.CheckOnly {
			return next, nil, true
		}
		return next, []Command{CmdPromptUpdate}, true

	case StatusPreview:
		if _, match := a.(UpdateConfirm); !match {
			return s, nil, false
		}
		if s.Options.SkipBackup {
			next.Status = StatusMerging
			return next, []Command{CmdMerge}, true
		}
		next.Status = StatusBackupConfirm
		return next, []Command{CmdPromptBackup}, true

	case StatusBackupConfirm:
		switch a.(type) {
		case BackupConfirm:
			next.Status = StatusBackingUp
			return next, []Command{CmdBackup}, true
		case BackupSkip:
			if !s.Options.SkipBackup && !s.Options.Force {
				return s, nil, false
			}
			next.Status = StatusMerging
			return next, []Command{CmdMerge}, true
		}
		return s, nil, false

	case StatusBackingUp:
		act, match := a.(BackupDone)
		if !match || act.Path == "" {
			return s, nil, false
		}
		next.BackupFile = act.Path
		next.Status = StatusMerging
		return next, []Command{CmdMerge}, true

	case StatusMerging:
		act, match := a.(Merged)
		if !match || act.Result == nil {
			return s, nil, false
		}
		next.Merge = act.Result
		switch {
		case act.Result.Success:
			next.Status = StatusInstalling
			return next, []Command{CmdInstall}, true
		case act.Result.HasConflict:
			next.Status = StatusConflict
			return next, nil, true
		default:
			next.Status = StatusError
			next.Error = act.Result.Error
			if next.Error == "" {
				next.Error = "merge failed"
			}
			return next, nil, true
		}

	case StatusInstalling:
		if _, match := a.(Installed); !match {
			return s, nil, false
		}
		next.Status = StatusDone
		return next, nil, true
	}

	return s, nil, false
}
