package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/danieljhkim/patchlay/internal/stores"
)

// Regenerate rebuilds the store from the checkout's current modifications.
//
// Algorithm steps:
// 1. Scan the checkout; nothing changed leaves the store untouched
// 2. Register untracked files as intent-to-add so their diffs are not empty
// 3. Compute diffs concurrently (bounded by Options.Jobs)
// 4. Populate a staging directory in record order: binary files verbatim,
//    text files as <path>.patch; hidden files and the manifest carry over
// 5. Swap the staging directory in for the store
//
// Per-file failures are collected in the result and never stop the run.
func (e *Engine) Regenerate(ctx context.Context, req *RegenerateRequest) (*RegenerateResult, error) {
	root, err := e.resolveCheckout(req.CheckoutRoot)
	if err != nil {
		return nil, err
	}

	storeRoot, err := filepath.Abs(req.StoreRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	records, err := e.scan(ctx, root)
	if err != nil {
		return nil, err
	}

	result := &RegenerateResult{
		CheckoutRoot: root,
		StoreRoot:    storeRoot,
		Artifacts:    []string{},
	}

	if len(records) == 0 {
		e.logger.Info("no changes found, store left untouched", "checkout", root)
		return result, nil
	}

	var untracked []string
	for _, rec := range records {
		if rec.Kind == ChangeUntracked {
			untracked = append(untracked, rec.Path)
		}
	}
	if len(untracked) > 0 {
		if err := e.gitRepo.IntentToAdd(ctx, root, untracked); err != nil {
			return nil, opError(ErrScanFailed, root, "failed to register untracked files: %w", err)
		}
	}

	diffs, err := e.computeDiffs(ctx, root, records)
	if err != nil {
		return nil, err
	}

	stage, err := stores.NewStaging(e.fs, storeRoot, e.logger)
	if err != nil {
		return nil, &OpError{Kind: ErrWriteFailed, Path: storeRoot, Err: err}
	}
	committed := false
	defer func() {
		if !committed {
			if err := stage.Discard(); err != nil {
				e.logger.Warn("failed to remove staging directory", "dir", stage.Dir(), "error", err)
			}
		}
	}()

	carried, err := stage.CarryHidden()
	if err != nil {
		return nil, &OpError{Kind: ErrWriteFailed, Path: storeRoot, Err: err}
	}
	if len(carried) > 0 {
		e.logger.Debug("carried hidden files into new store", "files", carried)
	}

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e.materialize(stage, root, rec, diffs[i], result)
	}

	manifest, err := e.writeManifest(stage, storeRoot, result.Artifacts)
	if err != nil {
		return nil, err
	}
	result.Manifest = manifest

	if err := stage.Commit(); err != nil {
		return nil, &OpError{Kind: ErrWriteFailed, Path: storeRoot, Err: err}
	}
	committed = true

	result.Written = len(result.Artifacts)
	e.logger.Info("store regenerated",
		"store", storeRoot,
		"written", result.Written,
		"skipped", len(result.Skipped),
		"failed", len(result.Failed),
	)
	return result, nil
}

// diffOutput is the git diff of one text record.
type diffOutput struct {
	data []byte
	err  error
}

// computeDiffs runs git diff for every text record with at most Jobs
// invocations in flight. Results are indexed like records.
func (e *Engine) computeDiffs(ctx context.Context, root string, records []ChangeRecord) ([]diffOutput, error) {
	diffs := make([]diffOutput, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Jobs)
	for i, rec := range records {
		if rec.IsBinary {
			continue
		}
		i, rec := i, rec
		g.Go(func() error {
			data, err := e.gitRepo.Diff(gctx, root, rec.Path)
			diffs[i] = diffOutput{data: data, err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return diffs, nil
}

// materialize writes the artifact for one record into the staging
// directory and records the outcome.
func (e *Engine) materialize(stage *stores.Staging, root string, rec ChangeRecord, diff diffOutput, result *RegenerateResult) {
	artifact := stores.ArtifactPath(rec.Path, rec.IsBinary)

	fail := func(err error) {
		opErr := &OpError{Kind: ErrWriteFailed, Path: rec.Path, Err: err}
		e.logger.Warn("failed to store change", "path", rec.Path, "error", err)
		result.Failed = append(result.Failed, PathIssue{Path: rec.Path, Reason: diagnostic(err), Err: opErr})
	}

	if rec.IsBinary {
		if rec.Kind == ChangeDeleted {
			fail(errors.New("binary file was deleted; there is nothing to copy"))
			return
		}
		if err := stage.CopyFile(artifact, filepath.Join(root, filepath.FromSlash(rec.Path))); err != nil {
			fail(fmt.Errorf("failed to copy binary file: %w", err))
			return
		}
		result.Artifacts = append(result.Artifacts, artifact)
		return
	}

	if diff.err != nil {
		fail(fmt.Errorf("failed to diff: %w", diff.err))
		return
	}
	if len(diff.data) == 0 {
		e.logger.Warn("empty diff, skipping", "path", rec.Path)
		result.Skipped = append(result.Skipped, PathIssue{Path: rec.Path, Reason: "empty diff"})
		return
	}
	if err := stage.WriteFile(artifact, diff.data); err != nil {
		fail(fmt.Errorf("failed to write patch: %w", err))
		return
	}
	result.Artifacts = append(result.Artifacts, artifact)
}

// writeManifest applies the manifest policy to the staged store and returns
// the manifest name written, if any.
func (e *Engine) writeManifest(stage *stores.Staging, storeRoot string, artifacts []string) (string, error) {
	name := e.opts.Manifest
	oldPath := filepath.Join(storeRoot, filepath.FromSlash(name))

	data, err := e.fs.ReadFile(oldPath)
	hadManifest := err == nil
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", opError(ErrWriteFailed, name, "failed to read manifest: %w", err)
	}

	if e.opts.ManifestPolicy == ManifestDrop {
		// A hidden manifest was carried with the other dot-files.
		if err := e.fs.RemoveAll(filepath.Join(stage.Dir(), filepath.FromSlash(name))); err != nil {
			return "", opError(ErrWriteFailed, name, "failed to drop manifest: %w", err)
		}
		return "", nil
	}

	if !hadManifest {
		if e.opts.Ordering != stores.OrderingExplicit {
			return "", nil
		}
		// Explicit ordering needs a manifest to read the store back.
		entries := append([]string(nil), artifacts...)
		sort.Strings(entries)
		if err := stage.WriteFile(name, stores.FormatManifest(nil, entries)); err != nil {
			return "", opError(ErrWriteFailed, name, "failed to write manifest: %w", err)
		}
		return name, nil
	}

	switch e.opts.ManifestPolicy {
	case ManifestPreserve:
		if err := stage.CopyFile(name, oldPath); err != nil {
			return "", opError(ErrWriteFailed, name, "failed to copy manifest: %w", err)
		}
	default:
		previous, err := stores.ParseManifest(data)
		if err != nil {
			e.logger.Warn("old manifest is invalid, rewriting from scratch", "manifest", oldPath, "error", err)
			previous = nil
		}
		merged := stores.MergeManifest(previous, artifacts)
		if err := stage.WriteFile(name, stores.FormatManifest(stores.ManifestHeader(data), merged)); err != nil {
			return "", opError(ErrWriteFailed, name, "failed to write manifest: %w", err)
		}
	}
	return name, nil
}
