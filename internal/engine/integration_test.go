package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danieljhkim/patchlay/internal/gitx"
)

// snapshotStore reads every file in a store.
func snapshotStore(t *testing.T, store string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	for _, rel := range listFiles(t, store) {
		out[rel] = readFile(t, store, rel)
	}
	return out
}

func TestGit_RegenerateResetApplyRoundTrip(t *testing.T) {
	checkout := setupCheckout(t)
	store := filepath.Join(t.TempDir(), "patches")
	eng := newGitEngine(Options{Jobs: 2})
	ctx := context.Background()

	writeFiles(t, checkout, map[string]string{
		"main.cc":         "int main() {\n  return 1;\n}\n",
		"assets/logo.png": "\x89PNG\r\n\x1a\nnew-logo",
		"docs/new.md":     "# New\n\nhello\n",
		"out/build.log":   "ignored\n",
	})

	regen, err := eng.Regenerate(ctx, &RegenerateRequest{CheckoutRoot: checkout, StoreRoot: store})
	require.NoError(t, err)
	// git lists tracked changes before untracked paths.
	assert.Equal(t, []string{"main.cc.patch", "assets/logo.png", "docs/new.md.patch"}, regen.Artifacts)
	assert.Empty(t, regen.Failed)
	assert.Empty(t, regen.Manifest)
	first := snapshotStore(t, store)
	assert.Contains(t, first["docs/new.md.patch"], "new file mode")
	assert.Contains(t, first["main.cc.patch"], "+  return 1;")

	_, err = eng.Reset(ctx, &ResetRequest{CheckoutRoot: checkout})
	require.NoError(t, err)
	assert.Equal(t, "int main() {\n  return 0;\n}\n", readFile(t, checkout, "main.cc"))
	assert.False(t, fileExists(checkout, "assets/logo.png"))
	assert.False(t, fileExists(checkout, "docs/new.md"))
	assert.True(t, fileExists(checkout, "out/build.log"), "ignored files survive reset")

	applied, err := eng.Apply(ctx, &ApplyRequest{CheckoutRoot: checkout, StoreRoot: store})
	require.NoError(t, err)
	assert.Equal(t, 3, applied.Applied)
	assert.Equal(t, "int main() {\n  return 1;\n}\n", readFile(t, checkout, "main.cc"))
	assert.Equal(t, "\x89PNG\r\n\x1a\nnew-logo", readFile(t, checkout, "assets/logo.png"))
	assert.Equal(t, "# New\n\nhello\n", readFile(t, checkout, "docs/new.md"))

	again, err := eng.Apply(ctx, &ApplyRequest{CheckoutRoot: checkout, StoreRoot: store})
	require.NoError(t, err)
	assert.Equal(t, 0, again.Applied)
	assert.Equal(t, 3, again.AlreadyApplied)

	_, err = eng.Regenerate(ctx, &RegenerateRequest{CheckoutRoot: checkout, StoreRoot: store})
	require.NoError(t, err)
	assert.Equal(t, first, snapshotStore(t, store))
}

func TestGit_ApplyResetApply(t *testing.T) {
	checkout := setupCheckout(t)
	store := filepath.Join(t.TempDir(), "patches")
	eng := newGitEngine(Options{})
	ctx := context.Background()

	writeFiles(t, checkout, map[string]string{"lib/util.h": "#pragma once\nint util();\nint more();\n"})
	_, err := eng.Regenerate(ctx, &RegenerateRequest{CheckoutRoot: checkout, StoreRoot: store})
	require.NoError(t, err)
	runGitCmd(t, checkout, "checkout", "--", "lib/util.h")

	for i := 0; i < 2; i++ {
		result, err := eng.Apply(ctx, &ApplyRequest{CheckoutRoot: checkout, StoreRoot: store})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Applied, "apply on a pristine tree, pass %d", i)
		assert.Contains(t, readFile(t, checkout, "lib/util.h"), "int more();")

		_, err = eng.Reset(ctx, &ResetRequest{CheckoutRoot: checkout})
		require.NoError(t, err)
		assert.NotContains(t, readFile(t, checkout, "lib/util.h"), "int more();")
	}
}

func TestGit_ApplyConflictSurfacesDiagnostic(t *testing.T) {
	checkout := setupCheckout(t)
	store := t.TempDir()
	writeFiles(t, store, map[string]string{
		"main.cc.patch": "diff --git a/main.cc b/main.cc\n" +
			"--- a/main.cc\n" +
			"+++ b/main.cc\n" +
			"@@ -1,3 +1,3 @@\n" +
			" int main() {\n" +
			"-  return 42;\n" +
			"+  return 43;\n" +
			" }\n",
	})
	eng := newGitEngine(Options{})

	result, err := eng.Apply(context.Background(), &ApplyRequest{CheckoutRoot: checkout, StoreRoot: store})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPatchConflict)

	var cmdErr *gitx.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Contains(t, cmdErr.Diagnostic(), "main.cc")
	assert.Equal(t, []Outcome{OutcomeConflict}, outcomes(result))

	dry, err := eng.Apply(context.Background(), &ApplyRequest{CheckoutRoot: checkout, StoreRoot: store, DryRun: true})
	require.NoError(t, err)
	require.Len(t, dry.Conflicts, 1)
	assert.True(t, strings.Contains(dry.Conflicts[0].Diagnostic, "main.cc"))
}

func TestGit_WrapperLayout(t *testing.T) {
	requireGit(t)
	wrapper := t.TempDir()
	inner := setupCheckout(t)
	require.NoError(t, os.Rename(inner, filepath.Join(wrapper, "src")))

	store := t.TempDir()
	writeFiles(t, store, map[string]string{"res/icon.png": "replaced"})
	eng := newGitEngine(Options{})

	result, err := eng.Apply(context.Background(), &ApplyRequest{CheckoutRoot: wrapper, StoreRoot: store})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wrapper, "src"), result.CheckoutRoot)
	assert.Equal(t, "replaced", readFile(t, wrapper, "src/res/icon.png"))

	_, err = eng.Reset(context.Background(), &ResetRequest{CheckoutRoot: wrapper})
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG\r\n\x1a\noriginal", readFile(t, wrapper, "src/res/icon.png"))
}

func TestGit_ResetRequiresRepository(t *testing.T) {
	requireGit(t)
	eng := newGitEngine(Options{})

	_, err := eng.Reset(context.Background(), &ResetRequest{CheckoutRoot: t.TempDir()})
	assert.ErrorIs(t, err, ErrNotVersionControlled)
}

func TestGit_ScanExpandsUntrackedDirectories(t *testing.T) {
	checkout := setupCheckout(t)
	writeFiles(t, checkout, map[string]string{
		"third_party/pkg/a.c":   "a",
		"third_party/pkg/b.png": "b",
		"name with space.txt":   "x",
	})
	eng := newGitEngine(Options{})

	result, err := eng.Scan(context.Background(), &ScanRequest{CheckoutRoot: checkout})
	require.NoError(t, err)

	var paths []string
	for _, rec := range result.Records {
		paths = append(paths, rec.Path)
		assert.Equal(t, ChangeUntracked, rec.Kind)
	}
	assert.Equal(t, []string{"name with space.txt", "third_party/pkg/a.c", "third_party/pkg/b.png"}, paths)
	assert.True(t, result.Records[2].IsBinary)
}

func TestGit_RegenerateLeavesIgnoredFilesOut(t *testing.T) {
	checkout := setupCheckout(t)
	writeFiles(t, checkout, map[string]string{".gitignore": "out/\n*.o\n"})
	runGitCmd(t, checkout, "commit", "-q", "-am", "ignore objects")

	writeFiles(t, checkout, map[string]string{
		"newmod/a.cc": "int a;\n",
		"newmod/a.o":  "obj",
	})
	store := filepath.Join(t.TempDir(), "patches")
	eng := newGitEngine(Options{})
	ctx := context.Background()

	scan, err := eng.Scan(ctx, &ScanRequest{CheckoutRoot: checkout})
	require.NoError(t, err)
	require.Len(t, scan.Records, 1)
	assert.Equal(t, "newmod/a.cc", scan.Records[0].Path)

	result, err := eng.Regenerate(ctx, &RegenerateRequest{CheckoutRoot: checkout, StoreRoot: store})
	require.NoError(t, err)
	assert.Equal(t, []string{"newmod/a.cc.patch"}, result.Artifacts)
	assert.Empty(t, result.Failed)
	assert.Equal(t, []string{"newmod/a.cc.patch"}, listFiles(t, store))
	assert.Contains(t, readFile(t, store, "newmod/a.cc.patch"), "+int a;")
}
