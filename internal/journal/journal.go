// Package journal records update sessions and the states they passed
// through, so past runs can be reviewed with the history command.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const keyPrefix = "session:"

// ErrNotFound is returned when a session ID is not in the journal.
var ErrNotFound = errors.New("session not found")

// Snapshot is one recorded state of a session.
type Snapshot struct {
	At         time.Time `json:"at" yaml:"at"`
	Status     string    `json:"status" yaml:"status"`
	Behind     int       `json:"behind,omitempty" yaml:"behind,omitempty"`
	BackupFile string    `json:"backupFile,omitempty" yaml:"backupFile,omitempty"`
	Conflicts  []string  `json:"conflicts,omitempty" yaml:"conflicts,omitempty"`
	Error      string    `json:"error,omitempty" yaml:"error,omitempty"`
}

// Session is the journal record of one update run.
type Session struct {
	ID         string     `json:"id" yaml:"id"`
	ProjectDir string     `json:"projectDir" yaml:"projectDir"`
	StartedAt  time.Time  `json:"startedAt" yaml:"startedAt"`
	CheckOnly  bool       `json:"checkOnly" yaml:"checkOnly"`
	SkipBackup bool       `json:"skipBackup" yaml:"skipBackup"`
	Force      bool       `json:"force" yaml:"force"`
	Status     string     `json:"status" yaml:"status"`
	Snapshots  []Snapshot `json:"snapshots" yaml:"snapshots"`
}

// Journal is a badger-backed session store. Keys are time-ordered UUIDs so
// iteration order is chronological.
type Journal struct {
	db *badger.DB
}

// DefaultDir returns $XDG_STATE_HOME/jeet-u-updater/journal, falling back
// to ~/.local/state.
func DefaultDir() (string, error) {
	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("determining home directory: %w", err)
		}
		base = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(base, "jeet-u-updater", "journal"), nil
}

// Open opens or creates the journal at dir.
func Open(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	return &Journal{db: db}, nil
}

// OpenInMemory opens a journal that is discarded on Close.
func OpenInMemory() (*Journal, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// Begin stores a new session record and returns it with its ID assigned.
func (j *Journal) Begin(s Session) (*Session, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating session id: %w", err)
	}
	s.ID = id.String()
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now().UTC()
	}
	if s.Snapshots == nil {
		s.Snapshots = []Snapshot{}
	}

	data, err := json.Marshal(&s)
	if err != nil {
		return nil, fmt.Errorf("encoding session: %w", err)
	}
	err = j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(makeKey(s.ID), data)
	})
	if err != nil {
		return nil, fmt.Errorf("writing session: %w", err)
	}
	return &s, nil
}

// Append adds a snapshot to a session and makes its status current.
func (j *Journal) Append(id string, snap Snapshot) error {
	if snap.At.IsZero() {
		snap.At = time.Now().UTC()
	}
	key := makeKey(id)
	err := j.db.Update(func(txn *badger.Txn) error {
		s, err := getSession(txn, key)
		if err != nil {
			return err
		}
		s.Snapshots = append(s.Snapshots, snap)
		s.Status = snap.Status

		data, err := json.Marshal(s)
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return fmt.Errorf("appending to session %s: %w", id, err)
	}
	return nil
}

// Get returns a single session.
func (j *Journal) Get(id string) (*Session, error) {
	var s *Session
	err := j.db.View(func(txn *badger.Txn) error {
		var err error
		s, err = getSession(txn, makeKey(id))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("reading session %s: %w", id, err)
	}
	return s, nil
}

// Recent returns up to limit sessions, newest first. A non-empty projectDir
// restricts the result to that project; limit <= 0 means no limit.
func (j *Journal) Recent(projectDir string, limit int) ([]Session, error) {
	sessions := []Session{}
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(keyPrefix)
		// Reverse iteration starts from the last key under the prefix.
		seek := append(append([]byte{}, prefix...), 0xff)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			var s Session
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &s)
			})
			if err != nil {
				return err
			}
			if projectDir != "" && s.ProjectDir != projectDir {
				continue
			}
			sessions = append(sessions, s)
			if limit > 0 && len(sessions) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	return sessions, nil
}

func makeKey(id string) []byte {
	return []byte(keyPrefix + id)
}

func getSession(txn *badger.Txn, key []byte) (*Session, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var s Session
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &s)
	}); err != nil {
		return nil, err
	}
	return &s, nil
}
