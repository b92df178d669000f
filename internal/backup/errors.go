package backup

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrForeignArchive is returned for archives whose manifest names another tool.
	ErrForeignArchive = errors.New("archive was not created by jeet-u-updater")
	// ErrManifestMissing is returned for archives without a readable manifest.json.
	ErrManifestMissing = errors.New("archive has no manifest.json")
)

// BackupError reports a failure while producing an archive. The working tree
// is never modified by a backup, so no cleanup beyond the archiver's own
// temporary files is needed.
type BackupError struct {
	// Item is the backup item source being copied, if any.
	Item string
	Err  error
}

func (e *BackupError) Error() string {
	if e.Item != "" {
		return fmt.Sprintf("backup failed at %s: %v", e.Item, e.Err)
	}
	return fmt.Sprintf("backup failed: %v", e.Err)
}

func (e *BackupError) Unwrap() error {
	return e.Err
}

// RestoreError reports a restore that stopped part way. Items already
// restored are not rolled back.
type RestoreError struct {
	Item      string
	Restored  []string
	Remaining []string
	Err       error
}

func (e *RestoreError) Error() string {
	var b strings.Builder
	if e.Item != "" {
		fmt.Fprintf(&b, "restoring %s: %v", e.Item, e.Err)
	} else {
		fmt.Fprintf(&b, "restore failed: %v", e.Err)
	}
	if len(e.Remaining) > 0 {
		fmt.Fprintf(&b, " (not restored: %s)", strings.Join(e.Remaining, ", "))
	}
	return b.String()
}

func (e *RestoreError) Unwrap() error {
	return e.Err
}
