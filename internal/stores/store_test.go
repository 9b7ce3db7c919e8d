package stores

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danieljhkim/patchlay/internal/fsops"
)

const samplePatch = `diff --git a/main.cc b/main.cc
index 1111111..2222222 100644
--- a/main.cc
+++ b/main.cc
@@ -1,3 +1,3 @@
 int main() {
-  return 0;
+  return 1;
 }
`

// writeStore creates a store directory with the given files.
func writeStore(t *testing.T, files map[string]string) string {
	t.Helper()

	root := filepath.Join(t.TempDir(), "patches")
	require.NoError(t, os.MkdirAll(root, 0755))
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
	return root
}

func relPaths(s *Snapshot) []string {
	out := make([]string, 0, len(s.Artifacts))
	for _, a := range s.Artifacts {
		out = append(out, a.RelPath)
	}
	return out
}

func captureLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, nil)), &buf
}

func TestEnumerate_Implicit(t *testing.T) {
	root := writeStore(t, map[string]string{
		"b/z.patch":       samplePatch,
		"b/a.cc.patch":    samplePatch,
		"a.png":           "PNG",
		".hidden/x.patch": samplePatch,
		"c/.keep":         "",
		"tools/gen.diff":  samplePatch,
	})

	snap, err := Enumerate(fsops.NewRealFS(), root, Options{})
	require.NoError(t, err)

	assert.Equal(t, OrderingImplicit, snap.Ordering)
	assert.Empty(t, snap.Manifest)
	assert.Equal(t, []string{"a.png", "b/a.cc.patch", "b/z.patch", "tools/gen.diff"}, relPaths(snap))

	patches, overrides := snap.Counts()
	assert.Equal(t, 3, patches)
	assert.Equal(t, 1, overrides)
	assert.True(t, snap.HasTextPatches())

	png := snap.Artifacts[0]
	assert.Equal(t, KindBinaryOverride, png.Kind)
	assert.Equal(t, filepath.Join(root, "a.png"), png.SourcePath)
	assert.Equal(t, "a.png", png.TargetPath())

	cc := snap.Artifacts[1]
	assert.Equal(t, KindTextPatch, cc.Kind)
	assert.Equal(t, "b/a.cc", cc.TargetPath())
	assert.Equal(t, []string{"main.cc"}, cc.Targets)
	assert.Equal(t, 1, cc.Added)
	assert.Equal(t, 1, cc.Deleted)
}

func TestEnumerate_Deterministic(t *testing.T) {
	root := writeStore(t, map[string]string{
		"x/y/z.patch": samplePatch,
		"x.patch":     samplePatch,
		"x-y.patch":   samplePatch,
		"w/logo.png":  "PNG",
	})

	fsys := fsops.NewRealFS()
	first, err := Enumerate(fsys, root, Options{})
	require.NoError(t, err)
	second, err := Enumerate(fsys, root, Options{})
	require.NoError(t, err)

	assert.Equal(t, relPaths(first), relPaths(second))
	assert.Equal(t, []string{"w/logo.png", "x-y.patch", "x.patch", "x/y/z.patch"}, relPaths(first))
}

func TestEnumerate_Explicit(t *testing.T) {
	root := writeStore(t, map[string]string{
		"series":       "# applied top to bottom\nz.patch\n\nimg/logo.png\n  a.patch  \nz.patch\n",
		"a.patch":      samplePatch,
		"z.patch":      samplePatch,
		"img/logo.png": "PNG",
		"unused.patch": samplePatch,
	})

	logger, logs := captureLogger()
	snap, err := Enumerate(fsops.NewRealFS(), root, Options{Logger: logger})
	require.NoError(t, err)

	assert.Equal(t, OrderingExplicit, snap.Ordering)
	assert.Equal(t, "series", snap.Manifest)
	assert.Equal(t, []string{"z.patch", "img/logo.png", "a.patch"}, relPaths(snap))
	assert.Empty(t, logs.String())
}

func TestEnumerate_ExplicitSkipsMissingEntries(t *testing.T) {
	root := writeStore(t, map[string]string{
		"series":      "gone.patch\na.patch\nsub\n",
		"a.patch":     samplePatch,
		"sub/b.patch": samplePatch,
	})

	logger, logs := captureLogger()
	snap, err := Enumerate(fsops.NewRealFS(), root, Options{Logger: logger})
	require.NoError(t, err)

	assert.Equal(t, []string{"a.patch"}, relPaths(snap))
	assert.Contains(t, logs.String(), "gone.patch")
	assert.Contains(t, logs.String(), "not a regular file")
}

func TestEnumerate_CustomManifestName(t *testing.T) {
	root := writeStore(t, map[string]string{
		"order.txt": "b.patch\na.patch\n",
		"a.patch":   samplePatch,
		"b.patch":   samplePatch,
		"series":    "a.patch\n",
	})

	snap, err := Enumerate(fsops.NewRealFS(), root, Options{Manifest: "order.txt"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b.patch", "a.patch"}, relPaths(snap))

	// Under implicit ordering the configured manifest is excluded, other files are not.
	snap, err = Enumerate(fsops.NewRealFS(), root, Options{Manifest: "order.txt", Ordering: OrderingImplicit})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.patch", "b.patch", "series"}, relPaths(snap))
}

func TestEnumerate_ForcedImplicitIgnoresManifest(t *testing.T) {
	root := writeStore(t, map[string]string{
		"series":  "b.patch\na.patch\n",
		"a.patch": samplePatch,
		"b.patch": samplePatch,
	})

	snap, err := Enumerate(fsops.NewRealFS(), root, Options{Ordering: OrderingImplicit})
	require.NoError(t, err)
	assert.Equal(t, OrderingImplicit, snap.Ordering)
	assert.Equal(t, []string{"a.patch", "b.patch"}, relPaths(snap))
}

func TestEnumerate_Errors(t *testing.T) {
	fsys := fsops.NewRealFS()

	t.Run("missing store", func(t *testing.T) {
		_, err := Enumerate(fsys, filepath.Join(t.TempDir(), "nope"), Options{})
		assert.ErrorIs(t, err, ErrStoreNotFound)
	})

	t.Run("store is a file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, nil, 0644))
		_, err := Enumerate(fsys, file, Options{})
		assert.ErrorIs(t, err, ErrStoreNotFound)
	})

	t.Run("explicit without manifest", func(t *testing.T) {
		root := writeStore(t, map[string]string{"a.patch": samplePatch})
		_, err := Enumerate(fsys, root, Options{Ordering: OrderingExplicit})
		assert.ErrorIs(t, err, ErrManifestMissing)
	})

	t.Run("traversal entry", func(t *testing.T) {
		root := writeStore(t, map[string]string{"series": "../outside.patch\n"})
		_, err := Enumerate(fsys, root, Options{})
		assert.ErrorIs(t, err, ErrInvalidEntry)
	})

	t.Run("unknown ordering", func(t *testing.T) {
		root := writeStore(t, nil)
		_, err := Enumerate(fsys, root, Options{Ordering: "random"})
		assert.Error(t, err)
	})
}

func TestEnumerate_EmptyStore(t *testing.T) {
	root := writeStore(t, nil)

	snap, err := Enumerate(fsops.NewRealFS(), root, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Len())
	assert.False(t, snap.HasTextPatches())
}

func TestEnumerate_UnparseablePatchStillListed(t *testing.T) {
	root := writeStore(t, map[string]string{"broken.patch": "not a diff at all\n"})

	snap, err := Enumerate(fsops.NewRealFS(), root, Options{})
	require.NoError(t, err)
	require.Equal(t, 1, snap.Len())
	assert.Equal(t, KindTextPatch, snap.Artifacts[0].Kind)
}
