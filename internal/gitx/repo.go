// Package gitx wraps the git operations the patch engine consumes.
//
// The engine never interprets diffs itself: applying, reverse-checking,
// listing status, diffing, cleaning, restoring and intent-to-add are all
// delegated to git through the GitRepo interface. RealGitRepo shells out to
// the git binary; FakeGitRepo simulates the same contract for tests.
package gitx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

var (
	// ErrToolUnavailable indicates the git executable could not be found.
	ErrToolUnavailable = errors.New("version-control tool unavailable")

	// ErrNotVersionControlled indicates a directory has no git metadata.
	ErrNotVersionControlled = errors.New("not a version-controlled checkout")

	// ErrCheckoutNotFound indicates the checkout root does not exist.
	ErrCheckoutNotFound = errors.New("checkout not found")
)

// intentToAddBatch bounds the number of paths passed to a single git add.
const intentToAddBatch = 256

// ApplyOptions selects the flavour of git apply.
type ApplyOptions struct {
	// Check only tests whether the patch applies, without touching the tree
	Check bool

	// Reverse applies (or checks) the patch in reverse
	Reverse bool
}

// GitRepo provides an abstraction for the git operations the engine needs.
// All paths handed to and returned from a GitRepo are relative to root
// unless stated otherwise.
type GitRepo interface {
	// Available reports ErrToolUnavailable if git cannot be executed.
	Available() error

	// IsRepository reports whether root carries git metadata.
	IsRepository(root string) bool

	// Apply applies the patch file at patchPath (absolute) with whitespace
	// tolerant matching and one leading path component stripped.
	Apply(ctx context.Context, root, patchPath string, opts ApplyOptions) error

	// Status lists the working tree changes relative to HEAD.
	Status(ctx context.Context, root string) ([]StatusEntry, error)

	// ListUntracked lists the untracked files below dir that git does not
	// ignore, relative to root. A nested repository is listed once, as its
	// directory with a trailing slash.
	ListUntracked(ctx context.Context, root, dir string) ([]string, error)

	// Diff returns the binary-safe, full-index diff of a single path against HEAD.
	Diff(ctx context.Context, root, relPath string) ([]byte, error)

	// Clean removes untracked files and directories, leaving ignored ones.
	Clean(ctx context.Context, root string) error

	// RestoreTracked discards all tracked modifications.
	RestoreTracked(ctx context.Context, root string) error

	// IntentToAdd registers untracked paths in the index as intent-to-add.
	IntentToAdd(ctx context.Context, root string, paths []string) error
}

// CommandError describes a failed git invocation.
// Stderr carries git's diagnostic verbatim.
type CommandError struct {
	Args     []string
	Dir      string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("git %s failed: %v", strings.Join(e.Args, " "), e.Err)
	if diag := e.Diagnostic(); diag != "" {
		msg += "\n" + diag
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Diagnostic returns git's error output, falling back to standard output.
func (e *CommandError) Diagnostic() string {
	if s := strings.TrimSpace(e.Stderr); s != "" {
		return s
	}
	return strings.TrimSpace(e.Stdout)
}

// RealGitRepo implements GitRepo using actual git commands.
type RealGitRepo struct {
	git string
}

// NewRealGitRepo creates a new RealGitRepo using the given executable
// (an empty name means "git").
func NewRealGitRepo(git string) *RealGitRepo {
	if git == "" {
		git = "git"
	}
	return &RealGitRepo{git: git}
}

// Available checks that the git executable is on PATH.
func (g *RealGitRepo) Available() error {
	if _, err := exec.LookPath(g.git); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrToolUnavailable, g.git, err)
	}
	return nil
}

// IsRepository reports whether root has a .git directory or file
// (the latter for worktrees and submodules).
func (g *RealGitRepo) IsRepository(root string) bool {
	return IsRepository(root)
}

// Apply runs git apply in root.
func (g *RealGitRepo) Apply(ctx context.Context, root, patchPath string, opts ApplyOptions) error {
	args := []string{"apply"}
	if opts.Check {
		args = append(args, "--check")
	}
	if opts.Reverse {
		args = append(args, "--reverse")
	}
	args = append(args, "--ignore-whitespace", "-p1", patchPath)

	_, err := g.runGit(ctx, root, args...)
	return err
}

// Status runs a porcelain v1 status listing and parses it.
func (g *RealGitRepo) Status(ctx context.Context, root string) ([]StatusEntry, error) {
	out, err := g.runGit(ctx, root, "-c", "core.quotepath=off", "status", "--porcelain=v1", "--untracked-files=normal")
	if err != nil {
		return nil, err
	}
	return ParseStatus(out)
}

// ListUntracked runs git ls-files --others --exclude-standard for dir.
func (g *RealGitRepo) ListUntracked(ctx context.Context, root, dir string) ([]string, error) {
	out, err := g.runGit(ctx, root, "ls-files", "--others", "--exclude-standard", "-z", "--", dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, p := range bytes.Split(out, []byte{0}) {
		if len(p) > 0 {
			paths = append(paths, string(p))
		}
	}
	return paths, nil
}

// Diff runs git diff --binary --full-index HEAD for a single path.
func (g *RealGitRepo) Diff(ctx context.Context, root, relPath string) ([]byte, error) {
	return g.runGit(ctx, root, "diff", "--binary", "--full-index", "HEAD", "--", relPath)
}

// Clean runs git clean -fd. Ignored files (build output) are left alone.
func (g *RealGitRepo) Clean(ctx context.Context, root string) error {
	_, err := g.runGit(ctx, root, "clean", "-fd")
	return err
}

// RestoreTracked runs git reset --hard.
func (g *RealGitRepo) RestoreTracked(ctx context.Context, root string) error {
	_, err := g.runGit(ctx, root, "reset", "--hard")
	return err
}

// IntentToAdd runs git add -N in batches.
func (g *RealGitRepo) IntentToAdd(ctx context.Context, root string, paths []string) error {
	for start := 0; start < len(paths); start += intentToAddBatch {
		end := min(start+intentToAddBatch, len(paths))
		args := append([]string{"add", "-N", "--"}, paths[start:end]...)
		if _, err := g.runGit(ctx, root, args...); err != nil {
			return err
		}
	}
	return nil
}

// runGit executes git in dir and returns its untrimmed standard output.
func (g *RealGitRepo) runGit(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, g.git, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		cerr := &CommandError{
			Args:     args,
			Dir:      dir,
			ExitCode: -1,
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Err:      err,
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			cerr.ExitCode = exitErr.ExitCode()
		}
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrToolUnavailable, cerr)
		}
		return nil, cerr
	}

	return stdout.Bytes(), nil
}

// IsRepository reports whether dir has a .git directory or file.
func IsRepository(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, ".git"))
	if err != nil {
		return false
	}
	return info.IsDir() || info.Mode().IsRegular()
}

// ResolveCheckout returns the effective checkout root for root.
// A wrapper layout (root/src is a directory) resolves to root/src.
// The boolean reports whether the wrapper indirection was taken.
func ResolveCheckout(root string) (string, bool, error) {
	absPath, err := filepath.Abs(root)
	if err != nil {
		return "", false, fmt.Errorf("failed to get absolute path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("%w: %s", ErrCheckoutNotFound, absPath)
		}
		return "", false, fmt.Errorf("failed to stat checkout: %w", err)
	}
	if !info.IsDir() {
		return "", false, fmt.Errorf("%w: %s is not a directory", ErrCheckoutNotFound, absPath)
	}

	nested := filepath.Join(absPath, "src")
	if info, err := os.Stat(nested); err == nil && info.IsDir() {
		return nested, true, nil
	}

	return absPath, false, nil
}
