package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/jeet-u/jeet-u-updater/internal/config"
	"github.com/jeet-u/jeet-u-updater/internal/logging"
)

// Installer refreshes project dependencies after a successful merge.
type Installer interface {
	Install(ctx context.Context) error
}

// Command runs the configured install command in the project directory.
// The command line is split on whitespace and executed without a shell.
type Command struct {
	dir  string
	args []string
	out  io.Writer
}

// New returns the installer configured by cfg. A skipped or empty install
// command yields an installer that does nothing.
func New(cfg *config.Config) Installer {
	args := strings.Fields(cfg.Install.Command)
	if cfg.Install.Skip || len(args) == 0 {
		return Noop{}
	}
	return &Command{dir: cfg.ProjectDir, args: args, out: logging.Writer()}
}

func (c *Command) Install(ctx context.Context) error {
	line := strings.Join(c.args, " ")
	logging.Infof("Running %s...\n", line)

	cmd := exec.CommandContext(ctx, c.args[0], c.args[1:]...)
	cmd.Dir = c.dir
	cmd.Stdout = c.out
	cmd.Stderr = c.out

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("%s exited with status %d", line, exitErr.ExitCode())
		}
		return fmt.Errorf("running %s: %w", line, err)
	}
	logging.Debugf("Verbose: install complete command=%q dir=%s\n", line, c.dir)
	return nil
}

// Noop skips dependency installation.
type Noop struct{}

func (Noop) Install(context.Context) error {
	logging.Infoln("Skipping dependency install")
	return nil
}
