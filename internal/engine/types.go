package engine

import (
	"github.com/danieljhkim/patchlay/internal/planner"
	"github.com/danieljhkim/patchlay/internal/stores"
)

// ApplyRequest represents a request to apply a store to a checkout.
type ApplyRequest struct {
	// CheckoutRoot is the checkout (or its wrapper directory)
	CheckoutRoot string

	// StoreRoot is the artifact store directory
	StoreRoot string

	// DryRun checks every artifact without changing the checkout
	DryRun bool
}

// Outcome is the result of applying one artifact.
type Outcome string

const (
	OutcomeApplied        Outcome = "applied"
	OutcomeAlreadyApplied Outcome = "already-applied"
	OutcomeConflict       Outcome = "conflict"
	OutcomeWouldApply     Outcome = "would-apply"
)

// ArtifactOutcome records what happened to one artifact.
type ArtifactOutcome struct {
	Path       string      `json:"path"`
	Kind       stores.Kind `json:"kind"`
	Outcome    Outcome     `json:"outcome"`
	Diagnostic string      `json:"diagnostic,omitempty"`
}

// ApplyResult represents the result of applying a store.
type ApplyResult struct {
	// CheckoutRoot is the effective checkout root
	CheckoutRoot string `json:"checkout"`

	// StoreRoot is the absolute store root
	StoreRoot string `json:"store"`

	// Ordering is the ordering strategy the store was read with
	Ordering stores.Ordering `json:"ordering"`

	// DryRun is true when nothing was changed
	DryRun bool `json:"dry_run"`

	// Applied counts artifacts written or patched by this run
	Applied int `json:"applied"`

	// AlreadyApplied counts artifacts found already in place
	AlreadyApplied int `json:"already_applied"`

	// Outcomes lists every artifact processed, in order
	Outcomes []ArtifactOutcome `json:"outcomes"`

	// Conflicts lists the conflicts a dry run collected
	Conflicts []planner.Conflict `json:"conflicts,omitempty"`

	// Plan is the executed plan
	Plan *planner.ApplyPlan `json:"-"`
}

func (r *ApplyResult) record(o ArtifactOutcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Outcome {
	case OutcomeApplied:
		r.Applied++
	case OutcomeAlreadyApplied:
		r.AlreadyApplied++
	}
}

// ResetRequest represents a request to restore a checkout.
type ResetRequest struct {
	// CheckoutRoot is the checkout (or its wrapper directory)
	CheckoutRoot string
}

// ResetResult represents the result of a reset.
type ResetResult struct {
	// CheckoutRoot is the effective checkout root that was reset
	CheckoutRoot string `json:"checkout"`
}

// ScanRequest represents a request to list a checkout's modifications.
type ScanRequest struct {
	// CheckoutRoot is the checkout (or its wrapper directory)
	CheckoutRoot string
}

// ChangeKind classifies a ChangeRecord.
type ChangeKind string

const (
	ChangeModified  ChangeKind = "modified"
	ChangeAdded     ChangeKind = "added"
	ChangeUntracked ChangeKind = "untracked"
	ChangeRenamed   ChangeKind = "renamed"
	ChangeDeleted   ChangeKind = "deleted"
)

// ChangeRecord is one modified file in a checkout.
type ChangeRecord struct {
	// Path is the slash-separated checkout-relative path (rename destination)
	Path string `json:"path"`

	// Status is git's two-character status code
	Status string `json:"status"`

	// Kind classifies the change
	Kind ChangeKind `json:"kind"`

	// IsBinary is true when the file is stored verbatim instead of diffed
	IsBinary bool `json:"binary"`
}

// ScanResult represents the modifications found in a checkout.
type ScanResult struct {
	// CheckoutRoot is the effective checkout root
	CheckoutRoot string `json:"checkout"`

	// Records are the changed files in git's order
	Records []ChangeRecord `json:"records"`
}

// RegenerateRequest represents a request to rebuild a store from a checkout.
type RegenerateRequest struct {
	// CheckoutRoot is the checkout (or its wrapper directory)
	CheckoutRoot string

	// StoreRoot is the artifact store directory
	StoreRoot string
}

// PathIssue names a file regeneration skipped or failed on.
type PathIssue struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`

	// Err is the underlying error for failures
	Err error `json:"-"`
}

// RegenerateResult represents the result of regenerating a store.
type RegenerateResult struct {
	// CheckoutRoot is the effective checkout root
	CheckoutRoot string `json:"checkout"`

	// StoreRoot is the absolute store root
	StoreRoot string `json:"store"`

	// Written counts artifacts written into the store
	Written int `json:"written"`

	// Artifacts are the store-relative paths written, in record order
	Artifacts []string `json:"artifacts"`

	// Manifest is the manifest written, empty when the store is implicit
	Manifest string `json:"manifest,omitempty"`

	// Skipped lists files with nothing to store
	Skipped []PathIssue `json:"skipped,omitempty"`

	// Failed lists files whose artifact could not be produced
	Failed []PathIssue `json:"failed,omitempty"`
}
