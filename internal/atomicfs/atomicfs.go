// Package atomicfs provides crash-safe file writes and renames for durable
// workflow state. Task files, config files, and bucket moves flow through
// these primitives. Lock files do not: internal/lockmgr creates them itself
// with an O_CREATE|O_EXCL open.
package atomicfs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

// WriteFile atomically replaces path with data. It writes to a sibling
// temp file in dir(path) first, fsyncs it, then renames over the
// destination so a reader never observes a partial write.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".atomicfs-*")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp file %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("syncing temp file %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("chmod temp file %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming %s to %s: %w", tmpPath, path, err)
	}
	return nil
}

// RenameResult reports whether a rename was a plain filesystem rename or a
// degraded copy+remove fallback across devices.
type RenameResult struct {
	// Degraded is true when the rename could not use a single filesystem
	// rename and instead fell back to copy+remove. A crash mid-fallback
	// can leave the source present alongside the destination; callers
	// should surface this to the user and recommend `burl doctor --repair`.
	Degraded bool
}

// Rename moves src to dst, preferring an atomic same-filesystem rename.
// On EXDEV (cross-device) it falls back to copy+remove and reports the
// degraded mode via RenameResult.Degraded so callers can warn.
func Rename(src, dst string) (RenameResult, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return RenameResult{}, fmt.Errorf("creating directory for %s: %w", dst, err)
	}

	err := os.Rename(src, dst)
	if err == nil {
		return RenameResult{}, nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return RenameResult{}, fmt.Errorf("renaming %s to %s: %w", src, dst, err)
	}

	if copyErr := copyFile(src, dst); copyErr != nil {
		return RenameResult{}, fmt.Errorf("copying %s to %s during cross-device fallback: %w", src, dst, copyErr)
	}
	if rmErr := os.Remove(src); rmErr != nil {
		return RenameResult{Degraded: true}, fmt.Errorf("removing source %s after cross-device copy: %w", src, rmErr)
	}
	return RenameResult{Degraded: true}, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".atomicfs-copy-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, info.Mode()); err != nil {
		return err
	}
	return os.Rename(tmpPath, dst)
}
