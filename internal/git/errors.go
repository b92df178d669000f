package git

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRemoteMismatch is returned when the upstream remote already exists but
// points somewhere other than the configured URL.
var ErrRemoteMismatch = errors.New("remote already configured with a different url")

// CommandError reports a git subprocess that exited unsuccessfully.
type CommandError struct {
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("git %s: %v", strings.Join(e.Args, " "), e.Err)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// RemoteError reports an upstream remote that is unreachable or misconfigured.
type RemoteError struct {
	Remote string
	URL    string
	Err    error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("upstream remote %s (%s): %v", e.Remote, e.URL, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}
