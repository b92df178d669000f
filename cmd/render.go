package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/jeet-u/jeet-u-updater/internal/backup"
	"github.com/jeet-u/jeet-u-updater/internal/fetcher"
	"github.com/jeet-u/jeet-u-updater/internal/git"
	"github.com/jeet-u/jeet-u-updater/internal/journal"
	"github.com/jeet-u/jeet-u-updater/internal/logging"
	"github.com/jeet-u/jeet-u-updater/internal/updater"
	"github.com/jeet-u/jeet-u-updater/internal/version"
)

type outputFormat string

const (
	formatText outputFormat = "text"
	formatJSON outputFormat = "json"
	formatYAML outputFormat = "yaml"
)

func parseOutputFormat(raw string) (outputFormat, error) {
	switch f := outputFormat(strings.ToLower(strings.TrimSpace(raw))); f {
	case "", formatText:
		return formatText, nil
	case formatJSON, formatYAML:
		return f, nil
	}
	return "", fmt.Errorf("invalid output format %q (expected text, json or yaml)", raw)
}

var (
	hashColor   = color.New(color.FgYellow).SprintFunc()
	statusColor = color.New(color.FgCyan, color.Bold).SprintFunc()
	faintColor  = color.New(color.Faint).SprintFunc()
)

// renderer writes command results. Text goes through the logging writer;
// json emits one object per line and yaml one document per value.
type renderer struct {
	format outputFormat

	mu sync.Mutex
	w  io.Writer
}

func newRenderer(format outputFormat, w io.Writer) *renderer {
	return &renderer{format: format, w: w}
}

func (r *renderer) structured() bool {
	return r.format != formatText
}

// emit writes v in the structured format. It is a no-op for text output.
func (r *renderer) emit(v any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.format {
	case formatJSON:
		return json.NewEncoder(r.w).Encode(v)
	case formatYAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		if _, err := io.WriteString(r.w, "---\n"); err != nil {
			return err
		}
		_, err = r.w.Write(data)
		return err
	}
	return nil
}

// Observe renders each session state as it is entered.
func (r *renderer) Observe(s updater.State) {
	if r.structured() {
		if err := r.emit(s); err != nil {
			logging.Warnf("could not write state: %v\n", err)
		}
		return
	}
	printState(s)
}

func printState(s updater.State) {
	switch s.Status {
	case updater.StatusChecking:
		logging.Infoln("Checking working tree...")
	case updater.StatusDirtyWarning:
		logging.Warnf("working tree has %d uncommitted change(s):\n", s.Git.UncommittedCount)
		for _, f := range s.Git.UncommittedFiles {
			logging.Infof("  %s\n", f)
		}
		logging.Infoln("Commit or stash them first, or rerun with --force.")
	case updater.StatusFetching:
		if s.Git != nil && !s.Git.IsClean {
			logging.Warnf("continuing with %d uncommitted change(s)\n", s.Git.UncommittedCount)
		}
		logging.Infoln("Fetching upstream...")
	case updater.StatusUpToDate:
		printUpdateSummary(s.Update)
		logging.Successf("Already up to date.\n")
	case updater.StatusPreview:
		printUpdateSummary(s.Update)
		if s.Options.CheckOnly {
			logging.Infoln("Run without --check-only to apply the update.")
		}
	case updater.StatusBackingUp:
		logging.Infoln("Creating backup...")
	case updater.StatusMerging:
		if s.BackupFile != "" {
			logging.Successf("Backup saved to %s\n", s.BackupFile)
		} else {
			logging.Warnf("merging without a backup\n")
		}
		logging.Infoln("Merging upstream changes...")
	case updater.StatusConflict:
		logging.Errorf("merge stopped with conflicts in %d file(s):\n", len(s.Merge.ConflictFiles))
		for _, f := range s.Merge.ConflictFiles {
			logging.Infof("  %s\n", f)
		}
		logging.Infoln("Resolve the conflicts and commit, or run 'git merge --abort'.")
		if s.BackupFile != "" {
			logging.Infof("Your files are saved in %s\n", s.BackupFile)
		}
	case updater.StatusInstalling:
		logging.Successf("Merge complete.\n")
		logging.Infoln("Installing dependencies...")
	case updater.StatusDone:
		logging.Successf("Update complete.\n")
	case updater.StatusError:
		logging.Errorf("%s\n", s.Error)
		if s.BackupFile != "" {
			logging.Infof("Your files are saved in %s\n", s.BackupFile)
		}
	}
}

func printUpdateSummary(info *fetcher.UpdateInfo) {
	if info == nil {
		return
	}
	if !info.HasUpstream {
		logging.Warnf("upstream branch not found\n")
		return
	}
	if version.Newer(info.CurrentVersion, info.LatestVersion) {
		logging.Infof("Version: %s -> %s\n", info.CurrentVersion, statusColor(info.LatestVersion))
	} else {
		logging.Infof("Version: %s\n", info.CurrentVersion)
	}
	if info.AheadCount > 0 {
		logging.Infof("%d local commit(s) not in upstream\n", info.AheadCount)
	}
	if info.BehindCount == 0 {
		return
	}
	logging.Infof("%d new upstream commit(s):\n", info.BehindCount)
	for _, c := range info.Commits {
		printCommit(c)
	}
}

func printCommit(c git.CommitInfo) {
	hash := c.Hash
	if len(hash) > 7 {
		hash = hash[:7]
	}
	logging.Infof("  %s %s %s\n", hashColor(hash), c.Message, faintColor("("+c.Author+", "+c.Date+")"))
}

func printStatusReport(r *updater.StatusReport) {
	logging.Infof("Project: %s\n", r.ProjectDir)
	logging.Infof("Branch:  %s\n", r.Git.CurrentBranch)
	if r.Git.IsClean {
		logging.Infoln("Tree:    clean")
	} else {
		logging.Infof("Tree:    %d uncommitted change(s)\n", r.Git.UncommittedCount)
		for _, f := range r.Git.UncommittedFiles {
			logging.Infof("  %s\n", f)
		}
	}

	switch {
	case r.UpdateError != "":
		logging.Warnf("could not check upstream: %s\n", r.UpdateError)
	case r.Update != nil && r.Update.HasUpstream:
		logging.Infof("Upstream: %d behind, %d ahead\n", r.Update.BehindCount, r.Update.AheadCount)
		printUpdateSummary(r.Update)
	default:
		printUpdateSummary(r.Update)
	}

	if r.EnvFilePresent {
		logging.Infof("Env file: %s\n", r.EnvFile)
	} else {
		logging.Warnf("env file %s not found\n", r.EnvFile)
	}
	if r.LatestBackup != nil {
		logging.Infof("Latest backup: %s (%s, %s)\n", r.LatestBackup.Path, r.LatestBackup.Mode, humanize.Time(r.LatestBackup.CreatedAt))
	} else {
		logging.Infoln("Latest backup: none")
	}
}

func printBackupEntries(entries []backup.Entry) {
	if len(entries) == 0 {
		logging.Infoln("No backups found.")
		return
	}
	for _, e := range entries {
		if e.Invalid != "" {
			logging.Warnf("%s: %s\n", e.Path, e.Invalid)
			continue
		}
		logging.Infof("%s  %-5s  %2d items  %8s  %s\n",
			e.CreatedAt.Local().Format(time.DateTime), e.Mode, e.Items,
			humanize.Bytes(uint64(e.Size)), e.Path)
	}
}

func printRestoreReport(r *backup.RestoreReport) {
	if r.DryRun {
		logging.Infof("Dry run: restoring %s would copy:\n", r.Archive)
		for _, c := range r.Planned {
			logging.Infof("  %s -> %s\n", c.From, c.To)
		}
	} else {
		logging.Successf("Restored %d item(s) from %s\n", len(r.Restored), r.Archive)
	}
	for _, s := range r.Skipped {
		logging.Warnf("%s is not in the archive, skipped\n", s)
	}
}

func printSession(s journal.Session) {
	trail := make([]string, 0, len(s.Snapshots))
	for _, snap := range s.Snapshots {
		trail = append(trail, snap.Status)
	}
	logging.Infof("%s  %s  %s\n", faintColor(s.ID), s.StartedAt.Local().Format(time.DateTime), statusColor(s.Status))
	logging.Infof("  %s\n", strings.Join(trail, " -> "))
	if n := len(s.Snapshots); n > 0 {
		last := s.Snapshots[n-1]
		if last.BackupFile != "" {
			logging.Infof("  backup: %s\n", last.BackupFile)
		}
		if len(last.Conflicts) > 0 {
			logging.Infof("  conflicts: %s\n", strings.Join(last.Conflicts, ", "))
		}
		if last.Error != "" {
			logging.Infof("  error: %s\n", last.Error)
		}
	}
}
