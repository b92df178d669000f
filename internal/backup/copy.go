package backup

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jeet-u/jeet-u-updater/internal/logging"
)

// copyPath copies a file or directory tree from src to dst, creating parent
// directories and overwriting existing files. Permission bits are preserved.
// Symlinks are followed and their targets copied as regular content; broken
// links, symlink loops and special files are skipped with a warning.
func copyPath(ctx context.Context, src, dst string) error {
	c := &treeCopier{ctx: ctx, active: map[string]bool{}}
	return c.copy(src, dst)
}

type treeCopier struct {
	ctx context.Context
	// active holds the resolved directories currently being walked.
	active map[string]bool
}

func (c *treeCopier) copy(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		if os.IsNotExist(err) && isSymlink(src) {
			logging.Warnf("skipping %s: broken symlink\n", src)
			return nil
		}
		return err
	}
	switch {
	case info.Mode().IsRegular():
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", filepath.Dir(dst), err)
		}
		return copyFile(src, dst, info.Mode().Perm())
	case info.IsDir():
		return c.copyDir(src, dst)
	default:
		logging.Warnf("skipping %s: not a regular file or directory (%s)\n", src, info.Mode().Type())
		return nil
	}
}

func (c *treeCopier) copyDir(src, dst string) error {
	root, err := filepath.EvalSymlinks(src)
	if err != nil {
		return err
	}
	if c.active[root] {
		logging.Warnf("skipping %s: symlink loop\n", src)
		return nil
	}
	c.active[root] = true
	defer delete(c.active, root)

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := c.ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.Type()&fs.ModeSymlink != 0 {
			logging.Debugf("Verbose: following symlink path=%s\n", path)
			return c.copy(path, target)
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		switch {
		case d.IsDir():
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("creating %s: %w", target, err)
			}
			return os.Chmod(target, info.Mode().Perm()|0o700)
		case info.Mode().IsRegular():
			return copyFile(path, target, info.Mode().Perm())
		default:
			logging.Warnf("skipping %s: not a regular file or directory (%s)\n", path, info.Mode().Type())
			return nil
		}
	})
}

func isSymlink(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.Mode()&fs.ModeSymlink != 0
}

// copyFile copies src to dst using an atomic write (write to dst.tmp, then rename).
func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	tmpPath := dst + ".tmp"
	out, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("creating %s: %w", tmpPath, err)
	}

	_, err = io.Copy(out, in)
	if err == nil {
		err = out.Chmod(perm)
	}
	closeErr := out.Close()
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", dst, err)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing %s: %w", dst, closeErr)
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("finalizing %s: %w", dst, err)
	}
	return nil
}

func exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
