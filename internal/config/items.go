package config

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// Mode selects which backup items are archived.
type Mode string

const (
	// ModeFull archives every configured item.
	ModeFull Mode = "full"
	// ModeBasic archives only required items.
	ModeBasic Mode = "basic"
)

// ParseMode validates a backup mode. Empty input defaults to full.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeFull:
		return ModeFull, nil
	case ModeBasic:
		return ModeBasic, nil
	default:
		return "", fmt.Errorf("invalid backup mode %q (expected full or basic)", raw)
	}
}

// BackupItem maps a project-relative source path to its location inside a
// backup archive.
type BackupItem struct {
	Src      string `toml:"src"`
	Dest     string `toml:"dest"`
	Label    string `toml:"label"`
	Required bool   `toml:"required"`
}

// DefaultItems is the item list used when the project config does not define one.
// Required entries hold user content and site configuration; the rest are
// assets that can be regenerated or re-downloaded.
func DefaultItems() []BackupItem {
	return []BackupItem{
		{Src: "src/config.ts", Dest: "config/config.ts", Label: "Site configuration", Required: true},
		{Src: "src/content/posts", Dest: "content/posts", Label: "Blog posts", Required: true},
		{Src: "src/content/spec", Dest: "content/spec", Label: "Special pages", Required: true},
		{Src: "src/content/data", Dest: "content/data", Label: "Content data", Required: true},
		{Src: "src/assets/avatar.webp", Dest: "assets/avatar.webp", Label: "Avatar", Required: true},
		{Src: "public/favicon.svg", Dest: "public/favicon.svg", Label: "Favicon", Required: false},
		{Src: "public/img", Dest: "public/img", Label: "Public images", Required: false},
		{Src: "src/assets/images", Dest: "assets/images", Label: "Optimized images", Required: false},
		{Src: ".astro", Dest: "cache/astro", Label: "Build cache", Required: false},
	}
}

// SelectItems returns the items archived in mode, preserving configured order.
func SelectItems(items []BackupItem, mode Mode) []BackupItem {
	selected := make([]BackupItem, 0, len(items))
	for _, item := range items {
		if mode == ModeBasic && !item.Required {
			continue
		}
		selected = append(selected, item)
	}
	return selected
}

// CleanRelative normalizes a relative slash path and rejects anything that
// would resolve outside its root.
func CleanRelative(p string) (string, error) {
	p = strings.TrimSpace(filepath.ToSlash(p))
	if p == "" {
		return "", fmt.Errorf("path is empty")
	}
	if path.IsAbs(p) || filepath.IsAbs(p) {
		return "", fmt.Errorf("path %q must be relative", p)
	}
	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("path %q escapes its root", p)
	}
	return cleaned, nil
}

func validateItems(items []BackupItem) error {
	dests := make(map[string]string, len(items))
	for i, item := range items {
		if _, err := CleanRelative(item.Src); err != nil {
			return fmt.Errorf("backup.items[%d].src: %w", i, err)
		}
		dest, err := CleanRelative(item.Dest)
		if err != nil {
			return fmt.Errorf("backup.items[%d].dest: %w", i, err)
		}
		if dest == "manifest.json" {
			return fmt.Errorf("backup.items[%d].dest: %q is reserved", i, dest)
		}
		if prev, ok := dests[dest]; ok {
			return fmt.Errorf("backup.items[%d].dest: %q already used by %q", i, dest, prev)
		}
		for other, src := range dests {
			if nestedPath(dest, other) || nestedPath(other, dest) {
				return fmt.Errorf("backup.items[%d].dest: %q overlaps %q used by %q", i, dest, other, src)
			}
		}
		dests[dest] = item.Src
	}
	return nil
}

// nestedPath reports whether child lies strictly inside parent.
func nestedPath(child, parent string) bool {
	return strings.HasPrefix(child, parent+"/")
}
