package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/danieljhkim/patchlay/internal/gitx"
	"github.com/danieljhkim/patchlay/internal/hash"
	"github.com/danieljhkim/patchlay/internal/planner"
)

// Apply projects the store onto the checkout.
//
// Algorithm steps:
// 1. Resolve the checkout root (wrapper layouts resolve to src/)
// 2. Enumerate the store into an ordered snapshot
// 3. Build the plan (one operation per artifact)
// 4. Execute operations in order; a text patch that neither applies nor
//    reverse-applies stops the run with ErrPatchConflict
// 5. Return counts and per-artifact outcomes
//
// Earlier artifacts stay applied when a later one fails. A dry run checks
// every artifact with git apply --check and collects conflicts instead of
// stopping.
func (e *Engine) Apply(ctx context.Context, req *ApplyRequest) (*ApplyResult, error) {
	root, err := e.resolveCheckout(req.CheckoutRoot)
	if err != nil {
		return nil, err
	}

	snapshot, err := e.Enumerate(req.StoreRoot)
	if err != nil {
		return nil, err
	}

	plan, err := planner.BuildApplyPlan(snapshot, root, e.fs)
	if err != nil {
		return nil, fmt.Errorf("failed to build apply plan: %w", err)
	}

	result := &ApplyResult{
		CheckoutRoot: root,
		StoreRoot:    snapshot.Root,
		Ordering:     snapshot.Ordering,
		DryRun:       req.DryRun,
		Outcomes:     []ArtifactOutcome{},
		Plan:         plan,
	}

	gitChecked := false
	total := len(plan.Operations)
	for i, op := range plan.Operations {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if op.Type == planner.OpPatch && !gitChecked {
			if err := e.gitRepo.Available(); err != nil {
				return result, &OpError{Kind: ErrToolUnavailable, Path: op.Artifact.RelPath, Err: err}
			}
			gitChecked = true
		}

		var outcome ArtifactOutcome
		switch op.Type {
		case planner.OpWrite:
			outcome, err = e.applyOverride(op, req.DryRun)
		case planner.OpPatch:
			outcome, err = e.applyPatch(ctx, root, op, req.DryRun)
		default:
			err = fmt.Errorf("unknown operation type: %s", op.Type)
		}

		if err != nil && outcome.Outcome != OutcomeConflict {
			return result, err
		}

		result.record(outcome)
		e.logger.Debug(fmt.Sprintf("[%d/%d] %s (%s)", i+1, total, op.Artifact.RelPath, outcome.Outcome))

		if outcome.Outcome == OutcomeConflict {
			if !req.DryRun {
				return result, err
			}
			if op.Conflict == nil {
				plan.AddConflict(planner.Conflict{
					Path:       op.Artifact.RelPath,
					Reason:     "Patch neither applies nor reverse-applies",
					Diagnostic: outcome.Diagnostic,
				})
			}
		}
	}

	result.Conflicts = plan.Conflicts
	e.logger.Info("apply finished",
		"checkout", root,
		"applied", result.Applied,
		"already_applied", result.AlreadyApplied,
		"conflicts", len(result.Conflicts),
		"dry_run", req.DryRun,
	)
	return result, nil
}

// applyOverride writes a binary override unless the checkout already holds
// identical bytes.
func (e *Engine) applyOverride(op planner.Operation, dryRun bool) (ArtifactOutcome, error) {
	outcome := ArtifactOutcome{Path: op.Artifact.RelPath, Kind: op.Artifact.Kind}

	if op.Conflict != nil {
		outcome.Outcome = OutcomeConflict
		outcome.Diagnostic = op.Conflict.Reason
		return outcome, &OpError{Kind: ErrWriteFailed, Path: op.Artifact.RelPath, Err: errors.New(op.Conflict.Reason)}
	}

	want, err := e.hasher.HashFile(op.Artifact.SourcePath)
	if err != nil {
		return outcome, opError(ErrWriteFailed, op.Artifact.RelPath, "failed to hash override: %w", err)
	}

	same, err := hash.SameContent(e.hasher, op.DestPath, want)
	if err != nil {
		return outcome, opError(ErrWriteFailed, op.Artifact.RelPath, "failed to hash destination: %w", err)
	}

	switch {
	case same:
		outcome.Outcome = OutcomeAlreadyApplied
	case dryRun:
		outcome.Outcome = OutcomeWouldApply
	default:
		if err := e.fs.CopyFile(op.Artifact.SourcePath, op.DestPath); err != nil {
			return outcome, opError(ErrWriteFailed, op.Artifact.RelPath, "failed to write override: %w", err)
		}
		outcome.Outcome = OutcomeApplied
	}
	return outcome, nil
}

// applyPatch applies a text patch, using the reverse check as the oracle
// for patches that are already present.
func (e *Engine) applyPatch(ctx context.Context, root string, op planner.Operation, dryRun bool) (ArtifactOutcome, error) {
	outcome := ArtifactOutcome{Path: op.Artifact.RelPath, Kind: op.Artifact.Kind}
	patch := op.Artifact.SourcePath

	forwardErr := e.gitRepo.Apply(ctx, root, patch, gitx.ApplyOptions{Check: dryRun})
	if forwardErr == nil {
		outcome.Outcome = OutcomeApplied
		if dryRun {
			outcome.Outcome = OutcomeWouldApply
		}
		return outcome, nil
	}
	if err := hardFailure(ctx, forwardErr); err != nil {
		return outcome, err
	}

	reverseErr := e.gitRepo.Apply(ctx, root, patch, gitx.ApplyOptions{Check: true, Reverse: true})
	if reverseErr == nil {
		outcome.Outcome = OutcomeAlreadyApplied
		return outcome, nil
	}
	if err := hardFailure(ctx, reverseErr); err != nil {
		return outcome, err
	}

	outcome.Outcome = OutcomeConflict
	outcome.Diagnostic = diagnostic(forwardErr)
	return outcome, &OpError{Kind: ErrPatchConflict, Path: op.Artifact.RelPath, Err: forwardErr}
}

// hardFailure returns the error when git could not run at all, as opposed
// to running and rejecting the patch.
func hardFailure(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, ErrToolUnavailable) {
		return err
	}
	return nil
}
