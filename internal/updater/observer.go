package updater

import (
	"github.com/jeet-u/jeet-u-updater/internal/journal"
	"github.com/jeet-u/jeet-u-updater/internal/logging"
)

// Observer receives every state a session enters, starting with the initial one.
type Observer interface {
	Observe(State)
}

// JournalObserver records session states in the journal.
type JournalObserver struct {
	j  *journal.Journal
	id string
}

// NewJournalObserver starts a journal session for projectDir.
func NewJournalObserver(j *journal.Journal, projectDir string, opts Options) (*JournalObserver, error) {
	rec, err := j.Begin(journal.Session{
		ProjectDir: projectDir,
		CheckOnly:  opts.CheckOnly,
		SkipBackup: opts.SkipBackup,
		Force:      opts.Force,
		Status:     string(StatusChecking),
	})
	if err != nil {
		return nil, err
	}
	logging.Debugf("Verbose: journal session id=%s\n", rec.ID)
	return &JournalObserver{j: j, id: rec.ID}, nil
}

// SessionID is the journal key of the recorded session.
func (o *JournalObserver) SessionID() string {
	return o.id
}

// Observe appends s to the journal. Write failures are logged and do not
// interrupt the session.
func (o *JournalObserver) Observe(s State) {
	if err := o.j.Append(o.id, Snapshot(s)); err != nil {
		logging.Warnf("could not record session state: %v\n", err)
	}
}

// Snapshot condenses a state for the journal.
func Snapshot(s State) journal.Snapshot {
	snap := journal.Snapshot{
		Status:     string(s.Status),
		BackupFile: s.BackupFile,
		Error:      s.Error,
	}
	if s.Update != nil {
		snap.Behind = s.Update.BehindCount
	}
	if s.Merge != nil && s.Merge.HasConflict {
		snap.Conflicts = append([]string{}, s.Merge.ConflictFiles...)
	}
	return snap
}
