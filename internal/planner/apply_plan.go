package planner

import (
	"fmt"
	"path/filepath"

	"github.com/danieljhkim/patchlay/internal/fsops"
	"github.com/danieljhkim/patchlay/internal/stores"
)

// BuildApplyPlan generates a deterministic plan to apply a snapshot onto
// the checkout at checkoutRoot. Operations keep snapshot order.
func BuildApplyPlan(snapshot *stores.Snapshot, checkoutRoot string, fs fsops.FS) (*ApplyPlan, error) {
	if snapshot == nil {
		return nil, fmt.Errorf("snapshot is required")
	}

	root, err := filepath.Abs(checkoutRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	plan := NewApplyPlan(root)
	checker := NewConflictChecker(fs, root)

	for _, artifact := range snapshot.Artifacts {
		if artifact.Kind == stores.KindTextPatch {
			plan.AddOperation(Operation{
				Type:     OpPatch,
				Artifact: artifact,
			})
			continue
		}

		op := Operation{
			Type:     OpWrite,
			Artifact: artifact,
		}

		// Validate path safety before computing the destination
		if err := fs.ValidateRelPath(artifact.RelPath); err != nil {
			op.Conflict = &Conflict{
				Path:   artifact.RelPath,
				Reason: fmt.Sprintf("Unsafe destination path: %v", err),
			}
			plan.AddOperation(op)
			continue
		}

		op.DestPath = filepath.Join(root, filepath.FromSlash(artifact.TargetPath()))
		op.Conflict = checker.CheckWrite(artifact.RelPath, op.DestPath)
		plan.AddOperation(op)
	}

	return plan, nil
}
