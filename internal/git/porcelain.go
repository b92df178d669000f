package git

import (
	"strconv"
	"strings"
)

// parsePorcelainV2 reads `git status --porcelain=v2 --branch` output.
// Every changed, unmerged or untracked entry counts as uncommitted; ignored
// entries do not.
func parsePorcelainV2(output string) (*StatusInfo, error) {
	status := &StatusInfo{UncommittedFiles: []string{}}

	for _, line := range strings.Split(output, "\n") {
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "# "):
			parseHeaderLine(line, status)
		case strings.HasPrefix(line, "1 "):
			// 1 XY sub mH mI mW hH hI path
			addPath(status, fieldAfter(line, 8))
		case strings.HasPrefix(line, "2 "):
			// 2 XY sub mH mI mW hH hI Xscore path<TAB>origPath
			path := fieldAfter(line, 9)
			if i := strings.IndexByte(path, '\t'); i >= 0 {
				path = path[:i]
			}
			addPath(status, path)
		case strings.HasPrefix(line, "u "):
			// u XY sub m1 m2 m3 mW h1 h2 h3 path
			addPath(status, fieldAfter(line, 10))
		case strings.HasPrefix(line, "? "):
			addPath(status, line[2:])
		}
	}

	status.UncommittedCount = len(status.UncommittedFiles)
	status.IsClean = status.UncommittedCount == 0
	return status, nil
}

func parseHeaderLine(line string, status *StatusInfo) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 3 {
		return
	}
	if parts[1] == "branch.head" {
		if parts[2] == "(detached)" {
			status.CurrentBranch = "HEAD"
		} else {
			status.CurrentBranch = parts[2]
		}
	}
}

// fieldAfter returns the remainder of line after skipping n space-separated
// fields, so paths containing spaces survive intact.
func fieldAfter(line string, n int) string {
	parts := strings.SplitN(line, " ", n+1)
	if len(parts) <= n {
		return ""
	}
	return parts[n]
}

func addPath(status *StatusInfo, path string) {
	path = unquotePath(path)
	if path == "" {
		return
	}
	status.UncommittedFiles = append(status.UncommittedFiles, path)
}

// unquotePath undoes git's C-style quoting of unusual path names.
func unquotePath(path string) string {
	if len(path) >= 2 && path[0] == '"' && path[len(path)-1] == '"' {
		if unq, err := strconv.Unquote(path); err == nil {
			return unq
		}
	}
	return path
}
