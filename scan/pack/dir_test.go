package pack

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redstone-tools/tickpack/scan"
)

func TestDir_CreateWritesPackMeta(t *testing.T) {
	// GIVEN an empty datapack root
	d := NewDir(t.TempDir())
	exists, err := d.Exists("song")
	require.NoError(t, err)
	require.False(t, exists)

	// WHEN a package is created
	pkg, err := d.CreateOrOpen("song")

	// THEN it exists with a valid pack.mcmeta
	require.NoError(t, err)
	assert.Equal(t, "song", pkg.Name)
	exists, err = d.Exists("song")
	require.NoError(t, err)
	assert.True(t, exists)

	data, err := os.ReadFile(filepath.Join(d.Root, "song", "pack.mcmeta"))
	require.NoError(t, err)
	var meta struct {
		Pack struct {
			Description string `json:"description"`
			PackFormat  int    `json:"pack_format"`
		} `json:"pack"`
	}
	require.NoError(t, json.Unmarshal(data, &meta))
	assert.Equal(t, 9, meta.Pack.PackFormat)
	assert.NotEmpty(t, meta.Pack.Description)
}

func TestDir_WriteBatchAppends(t *testing.T) {
	d := NewDir(t.TempDir())
	pkg, err := d.CreateOrOpen("song")
	require.NoError(t, err)

	_, err = d.WriteBatch(pkg, "song", "leaf_0_3", []string{"a", "b"})
	require.NoError(t, err)
	h, err := d.WriteBatch(pkg, "song", "leaf_0_3", []string{"c"})
	require.NoError(t, err)

	assert.Equal(t, scan.BatchHandle{Package: "song", Namespace: "song", Name: "leaf_0_3"}, h)
	lines, err := d.ReadBatch("song", "song", "leaf_0_3")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, lines)
	assert.FileExists(t, filepath.Join(d.Root, "song", "data", "song", "functions", "leaf_0_3.mcfunction"))
}

func TestDir_RenameAndListLeaves(t *testing.T) {
	// GIVEN two leaves and a selector
	d := NewDir(t.TempDir())
	pkg, err := d.CreateOrOpen("song")
	require.NoError(t, err)
	for _, name := range []string{"leaf_20_39", "leaf_0_19", "sel_0_39"} {
		_, err := d.WriteBatch(pkg, "song", name, []string{name})
		require.NoError(t, err)
	}

	// WHEN the selector is renamed to the entry point
	h, err := d.Rename(scan.BatchHandle{Package: "song", Namespace: "song", Name: "sel_0_39"}, "play_0_39")
	require.NoError(t, err)

	// THEN only leaves are listed and the rename is visible
	assert.Equal(t, "play_0_39", h.Name)
	leaves, err := d.ListLeaves(pkg, "song")
	require.NoError(t, err)
	require.Len(t, leaves, 2)
	assert.Equal(t, "leaf_0_19", leaves[0].Name)
	assert.Equal(t, "leaf_20_39", leaves[1].Name)
	names, err := d.Batches("song", "song")
	require.NoError(t, err)
	assert.Equal(t, []string{"leaf_0_19", "leaf_20_39", "play_0_39"}, names)

	// AND renaming onto an existing batch fails
	_, err = d.Rename(scan.BatchHandle{Package: "song", Namespace: "song", Name: "leaf_0_19"}, "leaf_20_39")
	assert.Error(t, err)
}

func TestDir_BatchesOfMissingNamespaceIsEmpty(t *testing.T) {
	d := NewDir(t.TempDir())
	names, err := d.Batches("absent", "absent")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestDir_EnableRunsHook(t *testing.T) {
	d := NewDir(t.TempDir())
	var enabled []string
	d.OnEnable = func(pkg string) error {
		enabled = append(enabled, pkg)
		return nil
	}

	require.NoError(t, d.Enable(scan.PackageHandle{Name: "song"}))

	assert.Equal(t, []string{"song"}, enabled)
}
