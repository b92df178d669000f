// Package gittest provides an in-memory git.Probe for tests.
package gittest

import (
	"context"
	"sync"

	"github.com/jeet-u/jeet-u-updater/internal/git"
)

// Fake is a scripted git.Probe. Fields describe what each call returns;
// Calls records the method names in order.
type Fake struct {
	mu sync.Mutex

	StatusInfo *git.StatusInfo
	StatusErr  error

	Remotes      map[string]string
	AddRemoteErr error
	FetchErr     error

	Div    git.Divergence
	DivErr error

	Commits []git.CommitInfo
	LogErr  error

	MergeOut     *git.MergeOutput
	MergeErr     error
	Conflicts    []string
	ConflictsErr error

	Files     map[string]string
	TagsByRef map[string][]string

	Calls []string
}

// NewFake returns a clean, up-to-date checkout on main with no remotes.
func NewFake() *Fake {
	return &Fake{
		StatusInfo: &git.StatusInfo{CurrentBranch: "main", IsClean: true, UncommittedFiles: []string{}},
		Remotes:    map[string]string{},
		Div:        git.Divergence{HasUpstream: true},
		MergeOut:   &git.MergeOutput{},
		Files:      map[string]string{},
		TagsByRef:  map[string][]string{},
	}
}

// Behind configures the fake so upstream carries n commits the checkout lacks.
func (f *Fake) Behind(n int) *Fake {
	f.Div = git.Divergence{HasUpstream: true, Behind: n}
	f.Commits = make([]git.CommitInfo, n)
	for i := range f.Commits {
		f.Commits[i] = git.CommitInfo{
			Hash:    string(rune('a'+i)) + "0000000",
			Message: "upstream change",
			Date:    "2026-01-01T00:00:00Z",
			Author:  "Upstream",
		}
	}
	return f
}

// Dirty marks the working tree as modified.
func (f *Fake) Dirty(files ...string) *Fake {
	f.StatusInfo = &git.StatusInfo{
		CurrentBranch:    "main",
		IsClean:          false,
		UncommittedCount: len(files),
		UncommittedFiles: files,
	}
	return f
}

// Conflict makes Merge fail with the given conflicted files.
func (f *Fake) Conflict(files ...string) *Fake {
	f.MergeOut = &git.MergeOutput{ExitCode: 1, Stderr: "Automatic merge failed; fix conflicts and then commit the result."}
	f.Conflicts = files
	return f
}

// Called reports whether method was invoked.
func (f *Fake) Called(method string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.Calls {
		if c == method {
			return true
		}
	}
	return false
}

func (f *Fake) record(method string) {
	f.mu.Lock()
	f.Calls = append(f.Calls, method)
	f.mu.Unlock()
}

func (f *Fake) Status(context.Context) (*git.StatusInfo, error) {
	f.record("Status")
	if f.StatusErr != nil {
		return nil, f.StatusErr
	}
	s := *f.StatusInfo
	s.UncommittedFiles = append([]string{}, f.StatusInfo.UncommittedFiles...)
	return &s, nil
}

func (f *Fake) RemoteURL(_ context.Context, name string) (string, bool, error) {
	f.record("RemoteURL")
	url, ok := f.Remotes[name]
	return url, ok, nil
}

func (f *Fake) AddRemote(_ context.Context, name, url string) error {
	f.record("AddRemote")
	if f.AddRemoteErr != nil {
		return f.AddRemoteErr
	}
	f.Remotes[name] = url
	return nil
}

func (f *Fake) FetchUpstream(_ context.Context, name, url string) error {
	f.record("FetchUpstream")
	if f.FetchErr != nil {
		return &git.RemoteError{Remote: name, URL: url, Err: f.FetchErr}
	}
	return nil
}

func (f *Fake) Divergence(context.Context, string, string) (git.Divergence, error) {
	f.record("Divergence")
	return f.Div, f.DivErr
}

func (f *Fake) Log(context.Context, string, string) ([]git.CommitInfo, error) {
	f.record("Log")
	if f.LogErr != nil {
		return nil, f.LogErr
	}
	return append([]git.CommitInfo{}, f.Commits...), nil
}

func (f *Fake) Merge(context.Context, string, bool) (*git.MergeOutput, error) {
	f.record("Merge")
	if f.MergeErr != nil {
		return nil, f.MergeErr
	}
	out := *f.MergeOut
	return &out, nil
}

func (f *Fake) ConflictedFiles(context.Context) ([]string, error) {
	f.record("ConflictedFiles")
	return append([]string{}, f.Conflicts...), f.ConflictsErr
}

func (f *Fake) ShowFile(_ context.Context, ref, path string) ([]byte, bool, error) {
	f.record("ShowFile")
	data, ok := f.Files[ref+":"+path]
	if !ok {
		return nil, false, nil
	}
	return []byte(data), true, nil
}

func (f *Fake) Tags(_ context.Context, ref string) ([]string, error) {
	f.record("Tags")
	return f.TagsByRef[ref], nil
}

func (f *Fake) RefExists(_ context.Context, ref string) bool {
	f.record("RefExists")
	return ref == "HEAD" || f.Div.HasUpstream
}

var _ git.Probe = (*Fake)(nil)
