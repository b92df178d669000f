package fetcher

import (
	"context"
	"fmt"

	"github.com/jeet-u/jeet-u-updater/internal/config"
	"github.com/jeet-u/jeet-u-updater/internal/git"
	"github.com/jeet-u/jeet-u-updater/internal/logging"
	"github.com/jeet-u/jeet-u-updater/internal/version"
)

// UpdateInfo summarizes how far the checkout is from upstream.
// When HasUpstream is false every count is zero and Commits is empty.
type UpdateInfo struct {
	HasUpstream    bool             `json:"hasUpstream" yaml:"hasUpstream"`
	BehindCount    int              `json:"behindCount" yaml:"behindCount"`
	AheadCount     int              `json:"aheadCount" yaml:"aheadCount"`
	Commits        []git.CommitInfo `json:"commits" yaml:"commits"`
	CurrentVersion string           `json:"currentVersion" yaml:"currentVersion"`
	LatestVersion  string           `json:"latestVersion" yaml:"latestVersion"`
}

// Fetcher compares the local checkout against the configured upstream.
type Fetcher struct {
	probe       git.Probe
	upstream    config.UpstreamConfig
	upstreamRef string
	versions    *version.Reader
}

// New creates a fetcher using the upstream and version settings in cfg.
func New(probe git.Probe, cfg *config.Config) *Fetcher {
	return &Fetcher{
		probe:       probe,
		upstream:    cfg.Upstream,
		upstreamRef: cfg.UpstreamRef(),
		versions:    version.NewReader(probe, cfg.Version.File, cfg.Version.Field),
	}
}

// CheckForUpdates configures the upstream remote if needed, fetches it and
// reports divergence, new commits and the version at each side.
func (f *Fetcher) CheckForUpdates(ctx context.Context) (*UpdateInfo, error) {
	if err := f.ensureRemote(ctx); err != nil {
		return nil, err
	}

	logging.Infof("Fetching %s (%s)...\n", f.upstream.Remote, f.upstream.URL)
	if err := f.probe.FetchUpstream(ctx, f.upstream.Remote, f.upstream.URL); err != nil {
		return nil, err
	}

	upstreamRef := f.upstreamRef
	div, err := f.probe.Divergence(ctx, "HEAD", upstreamRef)
	if err != nil {
		return nil, fmt.Errorf("computing divergence from %s: %w", upstreamRef, err)
	}

	info := &UpdateInfo{
		Commits:        []git.CommitInfo{},
		CurrentVersion: version.Unknown,
		LatestVersion:  version.Unknown,
	}
	if !div.HasUpstream {
		logging.Warnf("upstream branch %s not found after fetch\n", upstreamRef)
		return info, nil
	}

	commits, err := f.probe.Log(ctx, "HEAD", upstreamRef)
	if err != nil {
		return nil, fmt.Errorf("listing upstream commits: %w", err)
	}
	if len(commits) != div.Behind {
		return nil, fmt.Errorf("upstream log lists %d commits but checkout is %d behind", len(commits), div.Behind)
	}

	info.HasUpstream = true
	info.AheadCount = div.Ahead
	info.BehindCount = div.Behind
	info.Commits = commits

	if info.CurrentVersion, err = f.versions.Read(ctx, "HEAD"); err != nil {
		return nil, err
	}
	if info.LatestVersion, err = f.versions.Read(ctx, upstreamRef); err != nil {
		return nil, err
	}

	logging.Debugf(
		"Verbose: divergence upstream=%s ahead=%d behind=%d current=%s latest=%s\n",
		upstreamRef, info.AheadCount, info.BehindCount, info.CurrentVersion, info.LatestVersion,
	)
	return info, nil
}

// ensureRemote adds the upstream remote when absent. An existing remote with
// the same URL is left alone; one pointing elsewhere is an error and is never
// silently repointed.
func (f *Fetcher) ensureRemote(ctx context.Context) error {
	name, url := f.upstream.Remote, f.upstream.URL

	current, exists, err := f.probe.RemoteURL(ctx, name)
	if err != nil {
		return &git.RemoteError{Remote: name, URL: url, Err: err}
	}
	if exists {
		if current != url {
			return &git.RemoteError{
				Remote: name,
				URL:    url,
				Err:    fmt.Errorf("%w: currently %s", git.ErrRemoteMismatch, current),
			}
		}
		return nil
	}

	logging.Infof("Adding remote %s → %s\n", name, url)
	if err := f.probe.AddRemote(ctx, name, url); err != nil {
		return &git.RemoteError{Remote: name, URL: url, Err: err}
	}
	return nil
}
