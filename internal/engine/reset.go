package engine

import (
	"context"
	"fmt"
)

// Reset returns the checkout to its last committed state: untracked files
// and directories are removed (ignored ones are kept), then tracked files
// are restored. Either step failing fails the whole reset.
func (e *Engine) Reset(ctx context.Context, req *ResetRequest) (*ResetResult, error) {
	root, err := e.resolveCheckout(req.CheckoutRoot)
	if err != nil {
		return nil, err
	}

	if !e.gitRepo.IsRepository(root) {
		return nil, fmt.Errorf("%w: %s", ErrNotVersionControlled, root)
	}

	if err := e.gitRepo.Available(); err != nil {
		return nil, err
	}

	if err := e.gitRepo.Clean(ctx, root); err != nil {
		return nil, opError(ErrResetFailed, root, "failed to remove untracked files: %w", err)
	}

	if err := e.gitRepo.RestoreTracked(ctx, root); err != nil {
		return nil, opError(ErrResetFailed, root, "failed to restore tracked files: %w", err)
	}

	e.logger.Info("checkout reset", "checkout", root)
	return &ResetResult{CheckoutRoot: root}, nil
}
