package git

// StatusInfo describes the working tree at the moment Status was called.
type StatusInfo struct {
	CurrentBranch    string   `json:"currentBranch" yaml:"currentBranch"`
	IsClean          bool     `json:"isClean" yaml:"isClean"`
	UncommittedCount int      `json:"uncommittedCount" yaml:"uncommittedCount"`
	UncommittedFiles []string `json:"uncommittedFiles" yaml:"uncommittedFiles"`
}

// CommitInfo describes one upstream commit not yet present locally.
type CommitInfo struct {
	Hash    string `json:"hash" yaml:"hash"`
	Message string `json:"message" yaml:"message"`
	Date    string `json:"date" yaml:"date"`
	Author  string `json:"author" yaml:"author"`
}

// Divergence counts the commits unique to each side of two histories.
// HasUpstream is false when the upstream ref does not resolve; both counts
// are zero in that case.
type Divergence struct {
	HasUpstream bool
	Ahead       int
	Behind      int
}

// MergeOutput is the raw outcome of a merge subprocess. A non-zero ExitCode
// is data for the caller to classify, not a failure of the probe.
type MergeOutput struct {
	ExitCode int
	Stdout   string
	Stderr   string
}
