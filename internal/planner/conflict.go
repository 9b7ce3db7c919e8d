package planner

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"syscall"

	"github.com/danieljhkim/patchlay/internal/fsops"
)

// ConflictChecker checks for conflicts when writing binary overrides.
type ConflictChecker struct {
	fs   fsops.FS
	root string
}

// NewConflictChecker creates a new ConflictChecker for a checkout root.
func NewConflictChecker(fs fsops.FS, root string) *ConflictChecker {
	return &ConflictChecker{
		fs:   fs,
		root: root,
	}
}

// CheckWrite checks whether a file can be written at destPath.
// Returns a Conflict if one is detected, or nil if the path is safe to use.
func (c *ConflictChecker) CheckWrite(relPath, destPath string) *Conflict {
	info, err := c.fs.Lstat(destPath)
	switch {
	case err == nil:
		if info.IsDir() {
			return &Conflict{
				Path:   relPath,
				Reason: "Directory exists at destination",
			}
		}
		if !info.Mode().IsRegular() {
			return &Conflict{
				Path:   relPath,
				Reason: fmt.Sprintf("Destination is not a regular file (%s)", info.Mode().Type()),
			}
		}
		return nil
	case !isMissing(err):
		return &Conflict{
			Path:   relPath,
			Reason: fmt.Sprintf("Failed to check path: %v", err),
		}
	}

	// Destination is missing; every existing ancestor must be a directory
	// for the parents to be created.
	for dir := filepath.Dir(destPath); c.within(dir); dir = filepath.Dir(dir) {
		info, err := c.fs.Stat(dir)
		if err != nil {
			if isMissing(err) {
				continue
			}
			return &Conflict{
				Path:   relPath,
				Reason: fmt.Sprintf("Failed to check path: %v", err),
			}
		}
		if !info.IsDir() {
			rel, _ := filepath.Rel(c.root, dir)
			return &Conflict{
				Path:   relPath,
				Reason: fmt.Sprintf("File exists where a directory is needed: %s", filepath.ToSlash(rel)),
			}
		}
		return nil
	}
	return nil
}

// within reports whether dir is strictly below the checkout root.
func (c *ConflictChecker) within(dir string) bool {
	rel, err := filepath.Rel(c.root, dir)
	if err != nil || rel == "." {
		return false
	}
	return filepath.IsLocal(rel)
}

// isMissing treats a non-directory path component like a missing path, so
// the ancestor walk can name the file in the way.
func isMissing(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}
