package engine

import (
	"errors"
	"fmt"

	"github.com/danieljhkim/patchlay/internal/gitx"
	"github.com/danieljhkim/patchlay/internal/stores"
)

var (
	// ErrStoreNotFound indicates the artifact store root does not exist.
	ErrStoreNotFound = stores.ErrStoreNotFound

	// ErrManifestMissing indicates explicit ordering without a manifest.
	ErrManifestMissing = stores.ErrManifestMissing

	// ErrToolUnavailable indicates git could not be found.
	ErrToolUnavailable = gitx.ErrToolUnavailable

	// ErrNotVersionControlled indicates the checkout has no .git.
	ErrNotVersionControlled = gitx.ErrNotVersionControlled

	// ErrCheckoutNotFound indicates the checkout root does not exist.
	ErrCheckoutNotFound = gitx.ErrCheckoutNotFound

	// ErrPatchConflict indicates a patch neither applies nor reverse-applies.
	ErrPatchConflict = errors.New("patch conflict")

	// ErrResetFailed indicates git clean or git reset failed.
	ErrResetFailed = errors.New("reset failed")

	// ErrScanFailed indicates the checkout's changes could not be listed.
	ErrScanFailed = errors.New("scan failed")

	// ErrWriteFailed indicates an artifact or override could not be written.
	ErrWriteFailed = errors.New("write failed")
)

// OpError describes a failed operation on one path.
// It matches both its Kind sentinel and its cause with errors.Is/As.
type OpError struct {
	// Kind is one of the sentinel errors above
	Kind error

	// Path is the artifact, checkout file, or root the failure concerns
	Path string

	// Err is the underlying cause
	Err error
}

func (e *OpError) Error() string {
	msg := e.Kind.Error()
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Diagnostic returns the tool's verbatim error output when the cause is a
// git command, or the cause's message otherwise.
func (e *OpError) Diagnostic() string {
	return diagnostic(e.Err)
}

func diagnostic(err error) string {
	if err == nil {
		return ""
	}
	var cmdErr *gitx.CommandError
	if errors.As(err, &cmdErr) {
		if diag := cmdErr.Diagnostic(); diag != "" {
			return diag
		}
	}
	return err.Error()
}

func opError(kind error, path string, format string, args ...any) *OpError {
	return &OpError{Kind: kind, Path: path, Err: fmt.Errorf(format, args...)}
}
