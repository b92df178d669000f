package merge

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/jeet-u/jeet-u-updater/internal/git"
	"github.com/jeet-u/jeet-u-updater/internal/logging"
)

// Result is the outcome of merging upstream into the checkout.
// HasConflict implies !Success, and ConflictFiles is non-empty exactly when
// HasConflict is set.
type Result struct {
	Success       bool     `json:"success" yaml:"success"`
	HasConflict   bool     `json:"hasConflict" yaml:"hasConflict"`
	ConflictFiles []string `json:"conflictFiles" yaml:"conflictFiles"`
	Error         string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// Coordinator merges the configured upstream ref into the current branch.
type Coordinator struct {
	probe          git.Probe
	upstreamRef    string
	allowUnrelated bool
}

func NewCoordinator(probe git.Probe, upstreamRef string, allowUnrelated bool) *Coordinator {
	return &Coordinator{probe: probe, upstreamRef: upstreamRef, allowUnrelated: allowUnrelated}
}

// MergeFromUpstream runs the merge. A failed or conflicting merge is reported
// in the Result; the returned error is reserved for git being unusable.
// Conflicts are left in place for the user to resolve; the merge is never
// aborted here.
func (c *Coordinator) MergeFromUpstream(ctx context.Context) (*Result, error) {
	logging.Infof("Merging %s...\n", c.upstreamRef)

	out, err := c.probe.Merge(ctx, c.upstreamRef, c.allowUnrelated)
	if err != nil {
		return nil, fmt.Errorf("running merge: %w", err)
	}
	logging.Debugf("Verbose: merge ref=%s exit=%d\n", c.upstreamRef, out.ExitCode)

	if out.ExitCode == 0 {
		return &Result{Success: true, ConflictFiles: []string{}}, nil
	}

	files, err := c.probe.ConflictedFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing conflicted files: %w", err)
	}
	if len(files) > 0 {
		files = slices.Clone(files)
		slices.Sort(files)
		files = slices.Compact(files)
		return &Result{HasConflict: true, ConflictFiles: files}, nil
	}

	msg := strings.TrimSpace(out.Stderr)
	if msg == "" {
		msg = strings.TrimSpace(out.Stdout)
	}
	if msg == "" {
		msg = fmt.Sprintf("git merge exited with status %d", out.ExitCode)
	}
	return &Result{ConflictFiles: []string{}, Error: msg}, nil
}
