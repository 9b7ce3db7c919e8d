package engine

import (
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/danieljhkim/patchlay/internal/fsops"
	"github.com/danieljhkim/patchlay/internal/gitx"
	"github.com/danieljhkim/patchlay/internal/hash"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newFakeEngine creates an Engine backed by a FakeGitRepo and the real filesystem.
func newFakeEngine(opts Options) (*Engine, *gitx.FakeGitRepo) {
	fake := gitx.NewFakeGitRepo()
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}
	return New(fake, fsops.NewRealFS(), hash.NewSHA256Hasher(), opts), fake
}

// newGitEngine creates an Engine that shells out to git.
func newGitEngine(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}
	return New(gitx.NewRealGitRepo("git"), fsops.NewRealFS(), hash.NewSHA256Hasher(), opts)
}

// writeFiles creates files below dir.
func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
}

func readFile(t *testing.T, dir, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func fileExists(dir, rel string) bool {
	_, err := os.Lstat(filepath.Join(dir, filepath.FromSlash(rel)))
	return err == nil
}

// listFiles returns every regular file below dir, slash-separated and sorted.
func listFiles(t *testing.T, dir string) []string {
	t.Helper()
	files, err := fsops.NewRealFS().WalkFiles(dir, nil)
	require.NoError(t, err)
	return files
}

// requireGit skips the test when git is not installed.
func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

// runGitCmd runs a git command in dir and fails the test on error.
func runGitCmd(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s failed: %v\n%s", strings.Join(args, " "), err, out)
	}
	return string(out)
}

// setupCheckout creates a git repository with a few committed files.
func setupCheckout(t *testing.T) string {
	t.Helper()
	requireGit(t)

	dir := t.TempDir()
	runGitCmd(t, dir, "init", "-q")
	runGitCmd(t, dir, "config", "user.email", "test@example.com")
	runGitCmd(t, dir, "config", "user.name", "Test User")
	runGitCmd(t, dir, "config", "commit.gpgsign", "false")

	writeFiles(t, dir, map[string]string{
		"main.cc":      "int main() {\n  return 0;\n}\n",
		"lib/util.h":   "#pragma once\nint util();\n",
		".gitignore":   "out/\n",
		"res/icon.png": "\x89PNG\r\n\x1a\noriginal",
	})
	runGitCmd(t, dir, "add", ".")
	runGitCmd(t, dir, "commit", "-q", "-m", "initial")

	return dir
}
