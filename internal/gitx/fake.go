package gitx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	difflib "github.com/pmezard/go-difflib/difflib"
)

// FakeGitRepo implements GitRepo in memory for testing.
//
// Patches are identified by their content: a patch applies forward once,
// after which only its reverse check succeeds, until RestoreTracked forgets
// everything. Patches registered with SetConflict fail both ways. Diffs are
// computed with difflib between a registered baseline and the file on disk.
type FakeGitRepo struct {
	mu sync.Mutex

	unavailable bool
	notRepo     bool

	applied   map[string]bool
	conflicts map[string]string
	baseline  map[string][]byte

	status    []StatusEntry
	statusErr error
	ignored   map[string]bool
	cleanErr  error
	resetErr  error
	intentErr error
	diffErrs  map[string]error

	intent []string
	calls  []string
}

// NewFakeGitRepo creates a FakeGitRepo that reports an available tool and
// treats every directory as a repository.
func NewFakeGitRepo() *FakeGitRepo {
	return &FakeGitRepo{
		applied:   make(map[string]bool),
		conflicts: make(map[string]string),
		baseline:  make(map[string][]byte),
		diffErrs:  make(map[string]error),
		ignored:   make(map[string]bool),
	}
}

// SetUnavailable makes Available fail with ErrToolUnavailable.
func (g *FakeGitRepo) SetUnavailable() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.unavailable = true
}

// SetNotRepository makes IsRepository return false.
func (g *FakeGitRepo) SetNotRepository() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.notRepo = true
}

// SetConflict makes a patch with the given content fail forward and reverse.
func (g *FakeGitRepo) SetConflict(patch, diagnostic string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.conflicts[patch] = diagnostic
}

// MarkApplied records a patch as already present in the tree.
func (g *FakeGitRepo) MarkApplied(patch string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.applied[patch] = true
}

// AppliedCount returns the number of patches currently applied.
func (g *FakeGitRepo) AppliedCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.applied)
}

// SetBaseline registers the committed content of relPath.
func (g *FakeGitRepo) SetBaseline(relPath string, content []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.baseline[relPath] = content
}

// SetStatus sets the entries returned by Status.
func (g *FakeGitRepo) SetStatus(entries ...StatusEntry) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status = entries
}

// SetIgnored marks root-relative files or directories as ignored, hiding
// them from ListUntracked.
func (g *FakeGitRepo) SetIgnored(paths ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, p := range paths {
		g.ignored[p] = true
	}
}

// SetStatusError makes Status fail.
func (g *FakeGitRepo) SetStatusError(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusErr = err
}

// SetCleanError makes Clean fail.
func (g *FakeGitRepo) SetCleanError(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cleanErr = err
}

// SetRestoreError makes RestoreTracked fail.
func (g *FakeGitRepo) SetRestoreError(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetErr = err
}

// SetIntentToAddError makes IntentToAdd fail.
func (g *FakeGitRepo) SetIntentToAddError(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intentErr = err
}

// SetDiffError makes Diff fail for relPath.
func (g *FakeGitRepo) SetDiffError(relPath string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.diffErrs[relPath] = err
}

// IntentToAddPaths returns the paths registered through IntentToAdd.
func (g *FakeGitRepo) IntentToAddPaths() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.intent...)
}

// Calls returns the names of the operations invoked, in order.
func (g *FakeGitRepo) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

func (g *FakeGitRepo) record(call string) {
	g.calls = append(g.calls, call)
}

// Available returns ErrToolUnavailable if SetUnavailable was called.
func (g *FakeGitRepo) Available() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("available")
	if g.unavailable {
		return fmt.Errorf("%w: git not on PATH", ErrToolUnavailable)
	}
	return nil
}

// IsRepository returns false only after SetNotRepository.
func (g *FakeGitRepo) IsRepository(root string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.notRepo
}

// Apply simulates git apply by tracking patch content.
func (g *FakeGitRepo) Apply(ctx context.Context, root, patchPath string, opts ApplyOptions) error {
	data, err := os.ReadFile(patchPath)
	if err != nil {
		return err
	}
	key := string(data)

	g.mu.Lock()
	defer g.mu.Unlock()

	name := "apply"
	if opts.Check {
		name += " --check"
	}
	if opts.Reverse {
		name += " --reverse"
	}
	g.record(name + " " + filepath.Base(patchPath))

	fail := func(diag string) error {
		return &CommandError{
			Args:     []string{"apply", patchPath},
			Dir:      root,
			ExitCode: 1,
			Stderr:   diag,
			Err:      errors.New("exit status 1"),
		}
	}

	if diag, ok := g.conflicts[key]; ok {
		return fail(diag)
	}

	present := g.applied[key]
	if opts.Reverse {
		if !present {
			return fail("error: patch failed: reversed patch does not apply")
		}
		if !opts.Check {
			delete(g.applied, key)
		}
		return nil
	}

	if present {
		return fail("error: patch failed: patch does not apply")
	}
	if !opts.Check {
		g.applied[key] = true
	}
	return nil
}

// Status returns the configured entries.
func (g *FakeGitRepo) Status(ctx context.Context, root string) ([]StatusEntry, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("status")
	if g.statusErr != nil {
		return nil, g.statusErr
	}
	return append([]StatusEntry(nil), g.status...), nil
}

// ListUntracked walks dir on disk, leaving out ignored paths and reporting
// directories that hold a .git entry as nested repositories.
func (g *FakeGitRepo) ListUntracked(ctx context.Context, root, dir string) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("ls-files " + dir)

	var paths []string
	base := filepath.Join(root, filepath.FromSlash(dir))
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if g.ignored[rel] {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if _, err := os.Lstat(filepath.Join(p, ".git")); err == nil {
				paths = append(paths, rel+"/")
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			paths = append(paths, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// Diff produces a git-style unified diff of relPath against its baseline.
// A path with no baseline is treated as a new file; a missing file on disk
// as a deletion.
func (g *FakeGitRepo) Diff(ctx context.Context, root, relPath string) ([]byte, error) {
	g.mu.Lock()
	g.record("diff " + relPath)
	diffErr := g.diffErrs[relPath]
	base, tracked := g.baseline[relPath]
	g.mu.Unlock()

	if diffErr != nil {
		return nil, diffErr
	}

	current, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(relPath)))
	exists := err == nil
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	if tracked && exists && bytes.Equal(base, current) {
		return nil, nil
	}
	if !tracked && !exists {
		return nil, nil
	}

	from, to := "a/"+relPath, "b/"+relPath
	var header strings.Builder
	fmt.Fprintf(&header, "diff --git a/%s b/%s\n", relPath, relPath)
	switch {
	case !tracked:
		header.WriteString("new file mode 100644\n")
		from = "/dev/null"
	case !exists:
		header.WriteString("deleted file mode 100644\n")
		to = "/dev/null"
	}

	body, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        splitLines(base),
		B:        splitLines(current),
		FromFile: from,
		ToFile:   to,
		Context:  3,
	})
	if err != nil {
		return nil, err
	}

	return []byte(header.String() + body), nil
}

// Clean records the call.
func (g *FakeGitRepo) Clean(ctx context.Context, root string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("clean")
	return g.cleanErr
}

// RestoreTracked forgets every applied patch.
func (g *FakeGitRepo) RestoreTracked(ctx context.Context, root string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("restore")
	if g.resetErr != nil {
		return g.resetErr
	}
	g.applied = make(map[string]bool)
	return nil
}

// IntentToAdd records the paths.
func (g *FakeGitRepo) IntentToAdd(ctx context.Context, root string, paths []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("intent-to-add")
	if g.intentErr != nil {
		return g.intentErr
	}
	g.intent = append(g.intent, paths...)
	return nil
}

// splitLines splits content into lines that keep their newline.
func splitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	lines := strings.SplitAfter(string(data), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
