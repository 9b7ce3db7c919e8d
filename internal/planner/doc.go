// Package planner handles the planning phase of apply operations.
//
// The planner turns an artifact snapshot into a deterministic, ordered list
// of operations against a checkout. It validates paths and detects
// conflicts that can be known without running git, so that a dry run can
// report them and a real run can stop at the right artifact.
//
// Key responsibilities:
//   - Generate ApplyPlan with one operation per artifact, in snapshot order
//   - Map binary overrides to checkout destinations
//   - Detect conflicts (unsafe paths, directories or files in the way)
package planner
