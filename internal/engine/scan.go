package engine

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/danieljhkim/patchlay/internal/gitx"
	"github.com/danieljhkim/patchlay/internal/stores"
)

// Scan lists the checkout's modifications relative to its last commit.
func (e *Engine) Scan(ctx context.Context, req *ScanRequest) (*ScanResult, error) {
	root, err := e.resolveCheckout(req.CheckoutRoot)
	if err != nil {
		return nil, err
	}

	records, err := e.scan(ctx, root)
	if err != nil {
		return nil, err
	}

	return &ScanResult{CheckoutRoot: root, Records: records}, nil
}

// scan turns git status into change records. Untracked directories are
// expanded through git into one record per file git would add, so ignored
// files never become records. Nested repositories are skipped.
func (e *Engine) scan(ctx context.Context, root string) ([]ChangeRecord, error) {
	if err := e.gitRepo.Available(); err != nil {
		return nil, &OpError{Kind: ErrScanFailed, Path: root, Err: err}
	}

	entries, err := e.gitRepo.Status(ctx, root)
	if err != nil {
		return nil, opError(ErrScanFailed, root, "failed to read status: %w", err)
	}

	records := []ChangeRecord{}
	seen := make(map[string]bool)
	add := func(rec ChangeRecord) {
		if seen[rec.Path] {
			return
		}
		seen[rec.Path] = true
		records = append(records, rec)
	}

	for _, entry := range entries {
		if entry.IsIgnored() {
			continue
		}

		if entry.IsUntracked() {
			info, err := e.fs.Lstat(filepath.Join(root, filepath.FromSlash(entry.Path)))
			if err == nil && info.IsDir() {
				files, err := e.gitRepo.ListUntracked(ctx, root, entry.Path)
				if err != nil {
					return nil, opError(ErrScanFailed, entry.Path, "failed to list untracked directory: %w", err)
				}
				for _, f := range files {
					if strings.HasSuffix(f, "/") {
						e.logger.Warn("skipping nested repository", "path", strings.TrimSuffix(f, "/"))
						continue
					}
					add(newChangeRecord(f, entry.Code, ChangeUntracked))
				}
				continue
			}
		}

		add(newChangeRecord(entry.Path, entry.Code, changeKind(entry)))

		// A rename also removes its source; copies leave it in place.
		if entry.OrigPath != "" && strings.ContainsRune(entry.Code, 'R') {
			add(newChangeRecord(entry.OrigPath, entry.Code, ChangeDeleted))
		}
	}

	e.logger.Debug("scanned checkout", "checkout", root, "entries", len(entries), "records", len(records))
	return records, nil
}

func newChangeRecord(p, status string, kind ChangeKind) ChangeRecord {
	return ChangeRecord{
		Path:     p,
		Status:   status,
		Kind:     kind,
		IsBinary: stores.IsBinaryPath(p),
	}
}

func changeKind(entry gitx.StatusEntry) ChangeKind {
	switch {
	case entry.IsUntracked():
		return ChangeUntracked
	case entry.IsRenamed():
		return ChangeRenamed
	case entry.IsDeleted():
		return ChangeDeleted
	case entry.IsAdded():
		return ChangeAdded
	default:
		return ChangeModified
	}
}
