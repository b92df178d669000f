package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jeet-u/jeet-u-updater/internal/logging"
)

// DefaultTimeout bounds a single git invocation.
const DefaultTimeout = 2 * time.Minute

// Probe is the version-control capability the update workflow depends on.
// Implementations carry no policy; they report what git reports.
type Probe interface {
	// Status reads the working tree without modifying it.
	Status(ctx context.Context) (*StatusInfo, error)
	// RemoteURL returns the fetch URL of a remote and whether it exists.
	RemoteURL(ctx context.Context, name string) (string, bool, error)
	AddRemote(ctx context.Context, name, url string) error
	// FetchUpstream fetches a remote; failures are *RemoteError.
	FetchUpstream(ctx context.Context, name, url string) error
	Divergence(ctx context.Context, localRef, upstreamRef string) (Divergence, error)
	// Log lists commits reachable from upstreamRef but not localRef, newest first.
	Log(ctx context.Context, localRef, upstreamRef string) ([]CommitInfo, error)
	Merge(ctx context.Context, upstreamRef string, allowUnrelated bool) (*MergeOutput, error)
	// ConflictedFiles lists paths with unresolved merge conflicts.
	ConflictedFiles(ctx context.Context) ([]string, error)
	// ShowFile returns the content of path at ref, or false if it does not exist there.
	ShowFile(ctx context.Context, ref, path string) ([]byte, bool, error)
	// Tags lists tags reachable from ref.
	Tags(ctx context.Context, ref string) ([]string, error)
	RefExists(ctx context.Context, ref string) bool
}

// ShellProbe implements Probe by shelling out to the git command.
type ShellProbe struct {
	dir     string
	timeout time.Duration
}

// NewShellProbe creates a probe for the checkout at dir.
func NewShellProbe(dir string, timeout time.Duration) *ShellProbe {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ShellProbe{dir: dir, timeout: timeout}
}

func (p *ShellProbe) Status(ctx context.Context) (*StatusInfo, error) {
	out, err := p.run(ctx, "status", "--porcelain=v2", "--branch", "--untracked-files=all")
	if err != nil {
		return nil, err
	}
	return parsePorcelainV2(out)
}

func (p *ShellProbe) RemoteURL(ctx context.Context, name string) (string, bool, error) {
	out, err := p.run(ctx, "remote")
	if err != nil {
		return "", false, err
	}
	if !slices.Contains(strings.Fields(out), name) {
		return "", false, nil
	}
	url, err := p.run(ctx, "remote", "get-url", name)
	if err != nil {
		return "", true, err
	}
	return strings.TrimSpace(url), true, nil
}

func (p *ShellProbe) AddRemote(ctx context.Context, name, url string) error {
	_, err := p.run(ctx, "remote", "add", name, url)
	return err
}

func (p *ShellProbe) FetchUpstream(ctx context.Context, name, url string) error {
	if _, err := p.run(ctx, "fetch", "--tags", name); err != nil {
		return &RemoteError{Remote: name, URL: url, Err: err}
	}
	return nil
}

func (p *ShellProbe) RefExists(ctx context.Context, ref string) bool {
	_, err := p.run(ctx, "rev-parse", "--verify", "--quiet", ref+"^{commit}")
	return err == nil
}

func (p *ShellProbe) Divergence(ctx context.Context, localRef, upstreamRef string) (Divergence, error) {
	if !p.RefExists(ctx, upstreamRef) {
		logging.Debugf("Verbose: upstream ref %s not found, reporting no upstream\n", upstreamRef)
		return Divergence{}, nil
	}
	out, err := p.run(ctx, "rev-list", "--left-right", "--count", localRef+"..."+upstreamRef)
	if err != nil {
		return Divergence{}, err
	}
	fields := strings.Fields(out)
	if len(fields) != 2 {
		return Divergence{}, fmt.Errorf("unexpected rev-list output %q", strings.TrimSpace(out))
	}
	ahead, err := strconv.Atoi(fields[0])
	if err != nil {
		return Divergence{}, fmt.Errorf("parsing ahead count: %w", err)
	}
	behind, err := strconv.Atoi(fields[1])
	if err != nil {
		return Divergence{}, fmt.Errorf("parsing behind count: %w", err)
	}
	return Divergence{HasUpstream: true, Ahead: ahead, Behind: behind}, nil
}

const (
	fieldSep  = "\x1f"
	recordSep = "\x1e"
)

func (p *ShellProbe) Log(ctx context.Context, localRef, upstreamRef string) ([]CommitInfo, error) {
	if !p.RefExists(ctx, upstreamRef) {
		return []CommitInfo{}, nil
	}
	format := "--format=%H%x1f%s%x1f%aI%x1f%an%x1e"
	out, err := p.run(ctx, "log", format, localRef+".."+upstreamRef)
	if err != nil {
		return nil, err
	}
	return parseLog(out), nil
}

func parseLog(out string) []CommitInfo {
	commits := []CommitInfo{}
	for _, record := range strings.Split(out, recordSep) {
		record = strings.Trim(record, "\n")
		if record == "" {
			continue
		}
		parts := strings.SplitN(record, fieldSep, 4)
		for len(parts) < 4 {
			parts = append(parts, "")
		}
		commits = append(commits, CommitInfo{
			Hash:    parts[0],
			Message: parts[1],
			Date:    parts[2],
			Author:  parts[3],
		})
	}
	return commits
}

func (p *ShellProbe) Merge(ctx context.Context, upstreamRef string, allowUnrelated bool) (*MergeOutput, error) {
	args := []string{"merge", "--no-edit"}
	if allowUnrelated {
		args = append(args, "--allow-unrelated-histories")
	}
	args = append(args, upstreamRef)

	res := p.exec(ctx, args...)
	if res.startErr != nil {
		return nil, res.startErr
	}
	return &MergeOutput{ExitCode: res.exitCode, Stdout: res.stdout, Stderr: res.stderr}, nil
}

func (p *ShellProbe) ConflictedFiles(ctx context.Context) ([]string, error) {
	out, err := p.run(ctx, "diff", "--name-only", "--diff-filter=U", "-z")
	if err != nil {
		return nil, err
	}
	var files []string
	for _, f := range strings.Split(out, "\x00") {
		if f != "" {
			files = append(files, f)
		}
	}
	slices.Sort(files)
	return slices.Compact(files), nil
}

func (p *ShellProbe) ShowFile(ctx context.Context, ref, path string) ([]byte, bool, error) {
	spec := ref + ":" + path
	res := p.exec(ctx, "cat-file", "-e", spec)
	if res.startErr != nil {
		return nil, false, res.startErr
	}
	if res.runErr != nil {
		if objectMissing(res) {
			return nil, false, nil
		}
		return nil, false, res.runErr
	}
	out, err := p.run(ctx, "cat-file", "-p", spec)
	if err != nil {
		return nil, false, err
	}
	return []byte(out), true, nil
}

// objectMissing reports whether cat-file failed only because the ref or
// path does not exist.
func objectMissing(res execResult) bool {
	if res.exitCode != 1 && res.exitCode != 128 {
		return false
	}
	for _, msg := range []string{"does not exist", "exists on disk, but not in", "Not a valid object name", "invalid object name"} {
		if strings.Contains(res.stderr, msg) {
			return true
		}
	}
	return res.exitCode == 1 && strings.TrimSpace(res.stderr) == ""
}

func (p *ShellProbe) Tags(ctx context.Context, ref string) ([]string, error) {
	out, err := p.run(ctx, "tag", "--merged", ref)
	if err != nil {
		return nil, err
	}
	return strings.Fields(out), nil
}

type execResult struct {
	stdout   string
	stderr   string
	exitCode int
	startErr error
	runErr   error
}

// exec runs git with the probe's timeout. Output is always captured; a
// process that could not be started or was killed sets startErr.
func (p *ShellProbe) exec(ctx context.Context, args ...string) execResult {
	cmdCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	fullArgs := append([]string{"-C", p.dir}, args...)
	cmd := exec.CommandContext(cmdCtx, "git", fullArgs...)
	cmd.Env = append(os.Environ(),
		"GIT_OPTIONAL_LOCKS=0",
		"GIT_TERMINAL_PROMPT=0",
		"GIT_MERGE_AUTOEDIT=no",
		"LC_ALL=C",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logging.Debugf("Verbose: git %s\n", strings.Join(args, " "))
	err := cmd.Run()
	res := execResult{stdout: stdout.String(), stderr: stderr.String()}
	if err == nil {
		return res
	}

	if cmdCtx.Err() == context.DeadlineExceeded {
		res.startErr = &CommandError{
			Args:     args,
			ExitCode: -1,
			Stderr:   res.stderr,
			Err:      fmt.Errorf("timed out after %v", p.timeout),
		}
		return res
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.exitCode = exitErr.ExitCode()
		res.runErr = &CommandError{Args: args, ExitCode: res.exitCode, Stderr: res.stderr, Err: err}
		return res
	}
	res.startErr = &CommandError{Args: args, ExitCode: -1, Stderr: res.stderr, Err: err}
	return res
}

// run executes git and returns stdout, or a *CommandError on any failure.
func (p *ShellProbe) run(ctx context.Context, args ...string) (string, error) {
	res := p.exec(ctx, args...)
	if res.startErr != nil {
		return "", res.startErr
	}
	if res.runErr != nil {
		return "", res.runErr
	}
	return res.stdout, nil
}
