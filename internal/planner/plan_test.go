package planner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danieljhkim/patchlay/internal/fsops"
	"github.com/danieljhkim/patchlay/internal/stores"
)

func TestNewApplyPlan(t *testing.T) {
	plan := NewApplyPlan("/checkout")

	assert.Equal(t, "/checkout", plan.CheckoutRoot)
	assert.NotNil(t, plan.Operations)
	assert.NotNil(t, plan.Conflicts)
	assert.False(t, plan.HasConflicts())
	assert.False(t, plan.NeedsGit())
}

func TestApplyPlan_AddOperation(t *testing.T) {
	plan := NewApplyPlan("/checkout")

	plan.AddOperation(Operation{Type: OpWrite, DestPath: "/checkout/a.png"})
	assert.False(t, plan.HasConflicts())

	plan.AddOperation(Operation{
		Type:     OpWrite,
		DestPath: "/checkout/b.png",
		Conflict: &Conflict{Path: "b.png", Reason: "Directory exists at destination"},
	})
	assert.True(t, plan.HasConflicts())
	assert.Len(t, plan.Operations, 2)
	assert.Equal(t, "b.png", plan.Conflicts[0].Path)

	plan.AddOperation(Operation{Type: OpPatch})
	assert.True(t, plan.NeedsGit())
}

func TestApplyPlan_AddConflict(t *testing.T) {
	plan := NewApplyPlan("/checkout")
	plan.AddConflict(Conflict{Path: "x.patch", Reason: "Patch does not apply", Diagnostic: "error: patch failed"})

	require.True(t, plan.HasConflicts())
	assert.Empty(t, plan.Operations)
	assert.Equal(t, "error: patch failed", plan.Conflicts[0].Diagnostic)
}

func TestBuildApplyPlan(t *testing.T) {
	checkout := t.TempDir()
	snapshot := &stores.Snapshot{
		Root:     "/store",
		Ordering: stores.OrderingExplicit,
		Artifacts: []stores.Artifact{
			{RelPath: "z/main.cc.patch", Kind: stores.KindTextPatch, SourcePath: "/store/z/main.cc.patch"},
			{RelPath: "img/logo.png", Kind: stores.KindBinaryOverride, SourcePath: "/store/img/logo.png"},
			{RelPath: "a.patch", Kind: stores.KindTextPatch, SourcePath: "/store/a.patch"},
		},
	}

	plan, err := BuildApplyPlan(snapshot, checkout, fsops.NewRealFS())
	require.NoError(t, err)

	require.Len(t, plan.Operations, 3)
	assert.False(t, plan.HasConflicts())
	assert.True(t, plan.NeedsGit())

	assert.Equal(t, OpPatch, plan.Operations[0].Type)
	assert.Equal(t, "z/main.cc.patch", plan.Operations[0].Artifact.RelPath)
	assert.Empty(t, plan.Operations[0].DestPath)

	assert.Equal(t, OpWrite, plan.Operations[1].Type)
	assert.Equal(t, filepath.Join(checkout, "img", "logo.png"), plan.Operations[1].DestPath)

	assert.Equal(t, OpPatch, plan.Operations[2].Type)
}

func TestBuildApplyPlan_OnlyOverrides(t *testing.T) {
	snapshot := &stores.Snapshot{
		Artifacts: []stores.Artifact{
			{RelPath: "a.png", Kind: stores.KindBinaryOverride},
		},
	}

	plan, err := BuildApplyPlan(snapshot, t.TempDir(), fsops.NewRealFS())
	require.NoError(t, err)
	assert.False(t, plan.NeedsGit())
}

func TestBuildApplyPlan_NilSnapshot(t *testing.T) {
	_, err := BuildApplyPlan(nil, t.TempDir(), fsops.NewRealFS())
	assert.Error(t, err)
}

func TestBuildApplyPlan_Conflicts(t *testing.T) {
	checkout := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(checkout, "dir.png"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(checkout, "blocker"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(checkout, "existing.png"), []byte("x"), 0644))

	snapshot := &stores.Snapshot{
		Artifacts: []stores.Artifact{
			{RelPath: "dir.png", Kind: stores.KindBinaryOverride},
			{RelPath: "blocker/deep/x.png", Kind: stores.KindBinaryOverride},
			{RelPath: "../escape.png", Kind: stores.KindBinaryOverride},
			{RelPath: "existing.png", Kind: stores.KindBinaryOverride},
			{RelPath: "new/dir/fresh.png", Kind: stores.KindBinaryOverride},
		},
	}

	plan, err := BuildApplyPlan(snapshot, checkout, fsops.NewRealFS())
	require.NoError(t, err)
	require.Len(t, plan.Operations, 5)
	require.Len(t, plan.Conflicts, 3)

	assert.Equal(t, "dir.png", plan.Conflicts[0].Path)
	assert.Contains(t, plan.Conflicts[0].Reason, "Directory exists")

	assert.Equal(t, "blocker/deep/x.png", plan.Conflicts[1].Path)
	assert.Contains(t, plan.Conflicts[1].Reason, "blocker")

	assert.Equal(t, "../escape.png", plan.Conflicts[2].Path)
	assert.Contains(t, plan.Conflicts[2].Reason, "Unsafe")
	assert.Empty(t, plan.Operations[2].DestPath)

	assert.Nil(t, plan.Operations[3].Conflict)
	assert.Nil(t, plan.Operations[4].Conflict)
}
