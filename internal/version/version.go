// Package version reads the project version recorded at a git ref.
package version

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Unknown is reported when a ref carries no version marker.
const Unknown = "unknown"

// Source is the subset of git access the reader needs.
type Source interface {
	ShowFile(ctx context.Context, ref, path string) ([]byte, bool, error)
	Tags(ctx context.Context, ref string) ([]string, error)
}

// Reader resolves the version marker at a ref: the configured field of a JSON
// manifest first, then the highest semantic-version tag reachable from the ref.
type Reader struct {
	src   Source
	file  string
	field string
}

// NewReader creates a marker reader. An empty file disables the manifest lookup.
func NewReader(src Source, file, field string) *Reader {
	if field == "" {
		field = "version"
	}
	return &Reader{src: src, file: file, field: field}
}

// Read returns the version at ref, or Unknown when none is recorded.
// Only failures to talk to git are returned as errors.
func (r *Reader) Read(ctx context.Context, ref string) (string, error) {
	if r.file != "" {
		data, ok, err := r.src.ShowFile(ctx, ref, r.file)
		if err != nil {
			return "", fmt.Errorf("reading %s at %s: %w", r.file, ref, err)
		}
		if ok {
			if v := fieldValue(data, r.field); v != "" {
				return v, nil
			}
		}
	}

	tags, err := r.src.Tags(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("listing tags at %s: %w", ref, err)
	}
	if v := Highest(tags); v != "" {
		return v, nil
	}
	return Unknown, nil
}

func fieldValue(data []byte, field string) string {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return ""
	}
	v, ok := doc[field].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

// Highest returns the greatest tag that parses as a semantic version, keeping
// its original spelling. Non-version tags are ignored.
func Highest(tags []string) string {
	var best *semver.Version
	bestRaw := ""
	for _, tag := range tags {
		v, err := semver.NewVersion(tag)
		if err != nil {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best = v
			bestRaw = tag
		}
	}
	return bestRaw
}

// Newer reports whether latest is a strictly greater version than current.
// Unknown or unparsable versions are never newer.
func Newer(current, latest string) bool {
	if current == Unknown || latest == Unknown {
		return false
	}
	c, err := semver.NewVersion(current)
	if err != nil {
		return false
	}
	l, err := semver.NewVersion(latest)
	if err != nil {
		return false
	}
	return l.GreaterThan(c)
}
