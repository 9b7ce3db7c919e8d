// Package stores reads and writes artifact stores.
//
// An artifact store is a directory tree mirroring checkout-relative paths.
// Text overrides live at <path>.patch (or .diff) and are applied with git;
// every other file is a binary override copied verbatim. Application order
// comes either from an explicit manifest file listing artifact paths, or,
// when there is no manifest, from the lexical order of relative paths.
//
// Key components:
//   - Enumerate: reads a store into an ordered, immutable Snapshot
//   - Manifest helpers: parse, merge and format the ordering file
//   - Staging: builds a replacement store and swaps it in atomically
package stores

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/danieljhkim/patchlay/internal/fsops"
)

var (
	// ErrStoreNotFound indicates the store root does not exist.
	ErrStoreNotFound = errors.New("artifact store not found")

	// ErrManifestMissing indicates explicit ordering was requested without a manifest.
	ErrManifestMissing = errors.New("ordering manifest missing")

	// ErrInvalidEntry indicates a manifest entry is not a safe relative path.
	ErrInvalidEntry = errors.New("invalid manifest entry")
)

// Ordering is the strategy that produced a snapshot's order.
type Ordering string

const (
	// OrderingAuto picks explicit when the manifest exists, implicit otherwise.
	OrderingAuto Ordering = "auto"

	// OrderingExplicit orders artifacts as listed in the manifest.
	OrderingExplicit Ordering = "explicit"

	// OrderingImplicit orders every file in the store lexically.
	OrderingImplicit Ordering = "implicit"
)

// DefaultManifest is the default ordering manifest file name.
const DefaultManifest = "series"

// Options controls how a store is enumerated.
type Options struct {
	// Ordering selects the ordering strategy (default auto)
	Ordering Ordering

	// Manifest is the manifest file name at the store root (default "series")
	Manifest string

	// Logger receives warnings about skipped entries (default slog.Default())
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Ordering == "" {
		o.Ordering = OrderingAuto
	}
	if o.Manifest == "" {
		o.Manifest = DefaultManifest
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Snapshot is the ordered artifact list of a store at a point in time.
type Snapshot struct {
	// Root is the absolute store root
	Root string `json:"root"`

	// Ordering is the strategy actually used (never auto)
	Ordering Ordering `json:"ordering"`

	// Manifest is the manifest file name, set when Ordering is explicit
	Manifest string `json:"manifest,omitempty"`

	// Artifacts are in application order
	Artifacts []Artifact `json:"artifacts"`
}

// Len returns the number of artifacts.
func (s *Snapshot) Len() int {
	return len(s.Artifacts)
}

// Counts returns the number of text patches and binary overrides.
func (s *Snapshot) Counts() (patches, overrides int) {
	for _, a := range s.Artifacts {
		if a.Kind == KindTextPatch {
			patches++
		} else {
			overrides++
		}
	}
	return patches, overrides
}

// HasTextPatches reports whether any artifact needs git to apply.
func (s *Snapshot) HasTextPatches() bool {
	patches, _ := s.Counts()
	return patches > 0
}

// Enumerate reads the store at root into a Snapshot.
func Enumerate(fsys fsops.FS, root string, opts Options) (*Snapshot, error) {
	opts = opts.withDefaults()

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	info, err := fsys.Stat(absRoot)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrStoreNotFound, absRoot)
		}
		return nil, fmt.Errorf("failed to stat store: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrStoreNotFound, absRoot)
	}

	manifestPath := filepath.Join(absRoot, opts.Manifest)
	hasManifest, err := fsys.Exists(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to check manifest: %w", err)
	}

	ordering := opts.Ordering
	if ordering == OrderingAuto {
		ordering = OrderingImplicit
		if hasManifest {
			ordering = OrderingExplicit
		}
	}

	snapshot := &Snapshot{Root: absRoot, Ordering: ordering}

	var relPaths []string
	switch ordering {
	case OrderingExplicit:
		if !hasManifest {
			return nil, fmt.Errorf("%w: %s", ErrManifestMissing, manifestPath)
		}
		snapshot.Manifest = opts.Manifest
		relPaths, err = explicitOrder(fsys, absRoot, manifestPath, opts)
	case OrderingImplicit:
		relPaths, err = implicitOrder(fsys, absRoot, opts.Manifest)
	default:
		return nil, fmt.Errorf("unknown ordering %q", ordering)
	}
	if err != nil {
		return nil, err
	}

	for _, rel := range relPaths {
		artifact := Artifact{
			RelPath:    rel,
			Kind:       ClassifyArtifact(rel),
			SourcePath: filepath.Join(absRoot, filepath.FromSlash(rel)),
		}
		if artifact.Kind == KindTextPatch {
			content, err := fsys.ReadFile(artifact.SourcePath)
			if err != nil {
				return nil, fmt.Errorf("failed to read artifact %s: %w", rel, err)
			}
			if err := artifact.describePatch(content); err != nil {
				opts.Logger.Debug("could not parse patch", "artifact", rel, "error", err)
			}
		}
		snapshot.Artifacts = append(snapshot.Artifacts, artifact)
	}

	return snapshot, nil
}

// implicitOrder lists every non-hidden file except the manifest, sorted.
func implicitOrder(fsys fsops.FS, root, manifest string) ([]string, error) {
	files, err := fsys.WalkFiles(root, func(rel string, d fs.DirEntry) bool {
		return IsHidden(d.Name()) || rel == manifest
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk store: %w", err)
	}

	// WalkFiles is lexical per directory; a full sort makes the order
	// independent of how the walk groups directories.
	sort.Strings(files)
	return files, nil
}

// explicitOrder lists manifest entries that exist in the store.
func explicitOrder(fsys fsops.FS, root, manifestPath string, opts Options) ([]string, error) {
	data, err := fsys.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	entries, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}

	var relPaths []string
	for _, rel := range entries {
		if rel == opts.Manifest {
			continue
		}
		info, err := fsys.Stat(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				opts.Logger.Warn("manifest entry not found in store, skipping", "artifact", rel)
				continue
			}
			return nil, fmt.Errorf("failed to stat artifact %s: %w", rel, err)
		}
		if !info.Mode().IsRegular() {
			opts.Logger.Warn("manifest entry is not a regular file, skipping", "artifact", rel)
			continue
		}
		relPaths = append(relPaths, rel)
	}

	return relPaths, nil
}

// IsHidden reports whether a file or directory name is a dot-file.
func IsHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// normalizeEntry cleans a manifest entry into a slash-separated relative path.
func normalizeEntry(entry string) (string, error) {
	cleaned := path.Clean(filepath.ToSlash(entry))
	if cleaned == "." || path.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidEntry, entry)
	}
	return cleaned, nil
}
