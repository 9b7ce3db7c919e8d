package stores

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/danieljhkim/patchlay/internal/fsops"
)

// Staging builds the next contents of a store in a sibling directory and
// swaps it into place on Commit, so readers never observe a half-cleared
// store.
type Staging struct {
	fs     fsops.FS
	logger *slog.Logger
	root   string
	dir    string
}

// NewStaging creates an empty staging directory next to the store root.
// A nil logger means slog.Default().
func NewStaging(fsys fsops.FS, root string, logger *slog.Logger) (*Staging, error) {
	if logger == nil {
		logger = slog.Default()
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	parent := filepath.Dir(absRoot)
	if err := fsys.MkdirAll(parent, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store parent: %w", err)
	}

	dir, err := fsys.MkdirTemp(parent, "."+filepath.Base(absRoot)+".staging-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	return &Staging{fs: fsys, logger: logger, root: absRoot, dir: dir}, nil
}

// Dir returns the staging directory.
func (s *Staging) Dir() string {
	return s.dir
}

// path validates rel and returns its location in the staging directory.
func (s *Staging) path(rel string) (string, error) {
	if err := s.fs.ValidateRelPath(rel); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, filepath.FromSlash(rel)), nil
}

// WriteFile stores data at rel.
func (s *Staging) WriteFile(rel string, data []byte) error {
	dst, err := s.path(rel)
	if err != nil {
		return err
	}
	return s.fs.AtomicWrite(dst, data, 0644)
}

// CopyFile stores a copy of src at rel.
func (s *Staging) CopyFile(rel, src string) error {
	dst, err := s.path(rel)
	if err != nil {
		return err
	}
	return s.fs.CopyFile(src, dst)
}

// CarryHidden copies dot-files (and files inside dot-directories) from the
// current store into staging. They are never artifacts, so regenerating a
// store must not lose them.
func (s *Staging) CarryHidden() ([]string, error) {
	exists, err := s.fs.Exists(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to check store: %w", err)
	}
	if !exists {
		return nil, nil
	}

	files, err := s.fs.WalkFiles(s.root, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to walk store: %w", err)
	}

	var carried []string
	for _, rel := range files {
		if !hasHiddenComponent(rel) {
			continue
		}
		if err := s.CopyFile(rel, filepath.Join(s.root, filepath.FromSlash(rel))); err != nil {
			return carried, fmt.Errorf("failed to carry %s: %w", rel, err)
		}
		carried = append(carried, rel)
	}
	return carried, nil
}

// Commit replaces the store root with the staging directory. Once the new
// store is in place, failing to remove the old one only logs a warning.
func (s *Staging) Commit() error {
	backup := s.dir + ".old"

	exists, err := s.fs.Exists(s.root)
	if err != nil {
		return fmt.Errorf("failed to check store: %w", err)
	}

	if exists {
		if err := s.fs.Rename(s.root, backup); err != nil {
			return fmt.Errorf("failed to move old store aside: %w", err)
		}
	}

	if err := s.fs.Rename(s.dir, s.root); err != nil {
		if exists {
			if rerr := s.fs.Rename(backup, s.root); rerr != nil {
				return errors.Join(
					fmt.Errorf("failed to move staging into place: %w", err),
					fmt.Errorf("failed to restore old store from %s: %w", backup, rerr),
				)
			}
		}
		return fmt.Errorf("failed to move staging into place: %w", err)
	}

	if exists {
		if err := s.fs.RemoveAll(backup); err != nil {
			s.logger.Warn("store replaced but the old copy could not be removed", "dir", backup, "error", err)
		}
	}
	return nil
}

// Discard removes the staging directory.
func (s *Staging) Discard() error {
	if err := s.fs.RemoveAll(s.dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove staging directory: %w", err)
	}
	return nil
}

func hasHiddenComponent(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if IsHidden(part) {
			return true
		}
	}
	return false
}
