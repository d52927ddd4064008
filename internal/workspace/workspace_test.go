package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"cell-counter/internal/params"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), nil, 0o644))
	}
}

func layout(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	touch(t, filepath.Join(root, CompositeDir), "composite.tif")
	touch(t, filepath.Join(root, ManualDir), "manual.tif")
	touch(t, filepath.Join(root, Ch1Dir), "c.tif", "a.tif", "notes.txt", "b.TIF")
	return root
}

func TestResolveSortsAndFilters(t *testing.T) {
	root := layout(t)

	info, err := Resolve(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.tif", "b.TIF", "c.tif"}, info.Ch1Files)
	assert.Equal(t, filepath.Join(root, CompositeDir, "composite.tif"), info.CompositePath())
	assert.Equal(t, filepath.Join(root, ManualDir, "manual.tif"), info.ManualPath())

	st, err := os.Stat(info.OutputCh1)
	require.NoError(t, err)
	assert.True(t, st.IsDir())
}

func TestResolveMissingDirectory(t *testing.T) {
	root := layout(t)
	require.NoError(t, os.RemoveAll(filepath.Join(root, ManualDir)))

	_, err := Resolve(root)
	assert.ErrorIs(t, err, ErrMissingDir)
	assert.Contains(t, err.Error(), ManualDir)
}

func TestResolveEmptyChannel(t *testing.T) {
	root := layout(t)
	require.NoError(t, os.RemoveAll(filepath.Join(root, Ch1Dir)))
	touch(t, filepath.Join(root, Ch1Dir), "readme.md")

	_, err := Resolve(root)
	assert.ErrorIs(t, err, ErrNoImages)
}

func TestSourcePerChannel(t *testing.T) {
	info, err := Resolve(layout(t))
	require.NoError(t, err)

	tune := info.Source(params.ChannelTuning)
	assert.Equal(t, []string{"composite.tif"}, tune.Files)

	prod := info.Source(params.ChannelProduction)
	assert.Len(t, prod.Files, 3)
	assert.Equal(t, info.OutputCh1, prod.OutputDir)

	p, err := prod.Path(1)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(info.Ch1, "b.TIF"), p)

	_, err = prod.Path(3)
	assert.Error(t, err)
}

func TestStem(t *testing.T) {
	assert.Equal(t, "img_001", Stem("img_001.tif"))
	assert.Equal(t, "noext", Stem("noext"))
}
