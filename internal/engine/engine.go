// Package engine provides the core logic for patchlay operations.
//
// The engine package acts as the orchestration layer between CLI commands and
// lower-level operations. It resolves checkouts, reads artifact stores, drives
// git, and writes overrides.
//
// Key components:
//   - Engine: Main orchestrator that coordinates all operations
//   - Apply: Projects a store onto a checkout, idempotently
//   - Reset: Returns a checkout to its pristine committed state
//   - Scan/Regenerate: Rebuilds a store from a checkout's modifications
package engine

import (
	"fmt"
	"log/slog"

	"github.com/danieljhkim/patchlay/internal/fsops"
	"github.com/danieljhkim/patchlay/internal/gitx"
	"github.com/danieljhkim/patchlay/internal/hash"
	"github.com/danieljhkim/patchlay/internal/stores"
)

// ManifestPolicy decides what regeneration does with an existing manifest.
type ManifestPolicy = stores.ManifestPolicy

const (
	ManifestRewrite  = stores.ManifestRewrite
	ManifestPreserve = stores.ManifestPreserve
	ManifestDrop     = stores.ManifestDrop
)

// DefaultJobs bounds concurrent diff generation when Options.Jobs is unset.
const DefaultJobs = 4

// Options configures an Engine.
type Options struct {
	// Manifest is the store's manifest file name (default "series")
	Manifest string

	// Ordering is the store ordering strategy (default auto)
	Ordering stores.Ordering

	// ManifestPolicy applies when regenerating a store (default rewrite)
	ManifestPolicy ManifestPolicy

	// Jobs bounds concurrent git diff invocations during regeneration
	Jobs int

	// Logger receives progress and warnings (default slog.Default())
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Manifest == "" {
		o.Manifest = stores.DefaultManifest
	}
	if o.Ordering == "" {
		o.Ordering = stores.OrderingAuto
	}
	if o.ManifestPolicy == "" {
		o.ManifestPolicy = ManifestRewrite
	}
	if o.Jobs < 1 {
		o.Jobs = DefaultJobs
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Engine orchestrates all patchlay operations.
// It is the main API surface called by the CLI.
type Engine struct {
	gitRepo gitx.GitRepo
	fs      fsops.FS
	hasher  hash.Hasher
	logger  *slog.Logger
	opts    Options
}

// New creates a new Engine with the given dependencies.
func New(gitRepo gitx.GitRepo, fs fsops.FS, hasher hash.Hasher, opts Options) *Engine {
	opts = opts.withDefaults()
	return &Engine{
		gitRepo: gitRepo,
		fs:      fs,
		hasher:  hasher,
		logger:  opts.Logger,
		opts:    opts,
	}
}

// Enumerate reads the store at storeRoot using the engine's ordering options.
func (e *Engine) Enumerate(storeRoot string) (*stores.Snapshot, error) {
	return stores.Enumerate(e.fs, storeRoot, e.storeOptions())
}

func (e *Engine) storeOptions() stores.Options {
	return stores.Options{
		Ordering: e.opts.Ordering,
		Manifest: e.opts.Manifest,
		Logger:   e.logger,
	}
}

// resolveCheckout returns the effective checkout root.
func (e *Engine) resolveCheckout(root string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("%w: checkout root is required", ErrCheckoutNotFound)
	}

	resolved, nested, err := gitx.ResolveCheckout(root)
	if err != nil {
		return "", err
	}
	if nested {
		e.logger.Info("using nested source directory as checkout root", "root", resolved)
	}
	return resolved, nil
}
