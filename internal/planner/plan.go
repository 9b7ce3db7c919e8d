package planner

import "github.com/danieljhkim/patchlay/internal/stores"

// ApplyPlan represents a plan to apply a store snapshot to a checkout.
type ApplyPlan struct {
	// CheckoutRoot is the effective checkout root (absolute)
	CheckoutRoot string

	// Operations is the ordered list of operations to execute
	Operations []Operation

	// Conflicts is a list of detected conflicts (empty if no conflicts)
	Conflicts []Conflict
}

// Operation represents a single artifact application.
type Operation struct {
	// Type is the operation type: "write" or "patch"
	Type string

	// Artifact is the artifact being applied
	Artifact stores.Artifact

	// DestPath is the absolute destination for writes (empty for patches,
	// whose targets are decided by git)
	DestPath string

	// Conflict is set when planning found a problem with this operation
	Conflict *Conflict
}

// Conflict represents a conflict detected during planning or probing.
type Conflict struct {
	// Path is the artifact path relative to the store root
	Path string `json:"path"`

	// Reason is a human-readable explanation of the conflict
	Reason string `json:"reason"`

	// Diagnostic is the tool output that explains the conflict, if any
	Diagnostic string `json:"diagnostic,omitempty"`
}

// Operation type constants
const (
	OpWrite = "write"
	OpPatch = "patch"
)

// NewApplyPlan creates a new empty ApplyPlan.
func NewApplyPlan(checkoutRoot string) *ApplyPlan {
	return &ApplyPlan{
		CheckoutRoot: checkoutRoot,
		Operations:   []Operation{},
		Conflicts:    []Conflict{},
	}
}

// HasConflicts returns true if the plan has any conflicts.
func (p *ApplyPlan) HasConflicts() bool {
	return len(p.Conflicts) > 0
}

// AddOperation adds an operation to the plan. An operation carrying a
// conflict is also recorded in Conflicts.
func (p *ApplyPlan) AddOperation(op Operation) {
	p.Operations = append(p.Operations, op)
	if op.Conflict != nil {
		p.Conflicts = append(p.Conflicts, *op.Conflict)
	}
}

// AddConflict adds a conflict to the plan.
func (p *ApplyPlan) AddConflict(conflict Conflict) {
	p.Conflicts = append(p.Conflicts, conflict)
}

// NeedsGit reports whether any operation is a text patch.
func (p *ApplyPlan) NeedsGit() bool {
	for _, op := range p.Operations {
		if op.Type == OpPatch {
			return true
		}
	}
	return false
}
