package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/jeet-u/jeet-u-updater/internal/fetcher"
	"github.com/jeet-u/jeet-u-updater/internal/logging"
)

var errNotInteractive = errors.New("confirmation required but stdin is not a terminal; rerun with --yes")

// termPrompter asks yes/no questions on the controlling terminal.
type termPrompter struct {
	in          *os.File
	interactive func() bool
}

func newTermPrompter(in *os.File) *termPrompter {
	return &termPrompter{
		in:          in,
		interactive: func() bool { return term.IsTerminal(int(in.Fd())) },
	}
}

func (p *termPrompter) ConfirmUpdate(ctx context.Context, info *fetcher.UpdateInfo) (bool, error) {
	return p.ask(ctx, fmt.Sprintf("Merge %d upstream commit(s) into this checkout?", info.BehindCount))
}

func (p *termPrompter) ConfirmBackup(ctx context.Context, allowSkip bool) (bool, error) {
	if allowSkip {
		return p.ask(ctx, "Back up your files before merging? Answering no merges without a backup.")
	}
	return p.ask(ctx, "Back up your files before merging? Answering no cancels the update.")
}

func (p *termPrompter) ask(ctx context.Context, question string) (bool, error) {
	if !p.interactive() {
		return false, errNotInteractive
	}
	return confirm(ctx, p.in, logging.Writer(), question)
}

// confirm writes question and reads a y/N answer. Anything other than
// "y" or "yes" is a no. Cancelling ctx abandons the read.
func confirm(ctx context.Context, in io.Reader, w io.Writer, question string) (bool, error) {
	fmt.Fprintf(w, "%s [y/N] ", question)

	type answer struct {
		line string
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		line, err := bufio.NewReader(in).ReadString('\n')
		ch <- answer{line, err}
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(w)
		return false, ctx.Err()
	case a := <-ch:
		if a.err != nil && !errors.Is(a.err, io.EOF) {
			return false, fmt.Errorf("reading answer: %w", a.err)
		}
		if errors.Is(a.err, io.EOF) && a.line == "" {
			fmt.Fprintln(w)
		}
		switch strings.ToLower(strings.TrimSpace(a.line)) {
		case "y", "yes":
			return true, nil
		}
		return false, nil
	}
}
