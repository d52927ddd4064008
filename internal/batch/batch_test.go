package batch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"cell-counter/internal/counter"
	img "cell-counter/internal/image"
	"cell-counter/internal/params"
	"cell-counter/internal/workspace"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// widthCounter reports the frame width as the object count.
type widthCounter struct {
	mu       sync.Mutex
	settings []counter.Settings
	fail     string
}

func (c *widthCounter) Count(frame *img.Frame, name string, s counter.Settings) (*counter.Result, error) {
	c.mu.Lock()
	c.settings = append(c.settings, s)
	c.mu.Unlock()
	if name == c.fail {
		return nil, errors.New("segmentation exploded")
	}
	return &counter.Result{
		Labels:  img.NewLabelMap(frame.Width, frame.Height),
		Count:   frame.Width,
		ROISize: frame.Len(),
		Records: []counter.CellRecord{{File: name, ID: 1, Area: 1}},
	}, nil
}

type memStore struct {
	mu      sync.Mutex
	labels  []string
	records map[string]int
}

func (m *memStore) WriteLabels(name string, _ *img.LabelMap) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.labels = append(m.labels, name)
	return nil
}

func (m *memStore) WriteRecords(name string, _ params.Channel, records []counter.CellRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.records == nil {
		m.records = make(map[string]int)
	}
	m.records[name] = len(records)
	return nil
}

// setup builds a workspace whose Ch1 images have widths 3, 5 and 7.
func setup(t *testing.T) *workspace.Info {
	t.Helper()
	root := t.TempDir()
	for _, d := range []string{workspace.CompositeDir, workspace.ManualDir, workspace.Ch1Dir} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, d), 0o755))
	}
	require.NoError(t, img.SaveFrame(filepath.Join(root, workspace.CompositeDir, "comp.tif"), img.NewFrame(2, 2)))
	require.NoError(t, img.SaveFrame(filepath.Join(root, workspace.ManualDir, "manual.tif"), img.NewFrame(2, 2)))
	for name, w := range map[string]int{"img_a.tif": 3, "img_b.tif": 5, "img_c.tif": 7} {
		require.NoError(t, img.SaveFrame(filepath.Join(root, workspace.Ch1Dir, name), img.NewFrame(w, 2)))
	}

	info, err := workspace.Resolve(root)
	require.NoError(t, err)
	return info
}

func production() params.Parameters {
	return params.Default().WithProduction(8, 120)
}

func TestRunKeepsListingOrder(t *testing.T) {
	info := setup(t)
	c := &widthCounter{}
	store := &memStore{}
	r := &Runner{Counter: c, Store: store, SaveRecords: true}

	summary, err := r.Run(info, production(), params.ChannelProduction)
	require.NoError(t, err)
	require.Len(t, summary.Rows, 3)

	assert.Equal(t, "img_a.tif", summary.Rows[0].File)
	assert.Equal(t, "img_c.tif", summary.Rows[2].File)
	assert.Equal(t, []int{3, 5, 7}, []int{summary.Rows[0].Count, summary.Rows[1].Count, summary.Rows[2].Count})
	assert.Equal(t, 15, summary.Total())
	assert.Equal(t, 10, summary.Rows[1].ROISize)
	assert.Equal(t, 8, summary.Rows[0].Diameter)
	assert.Equal(t, 120.0, summary.Rows[0].Threshold)
	assert.Equal(t, 0.1, summary.Rows[0].ParticleMin)

	assert.Equal(t, []string{"img_a", "img_b", "img_c"}, store.labels)
	assert.Equal(t, map[string]int{"img_a": 1, "img_b": 1, "img_c": 1}, store.records)
	for _, s := range c.settings {
		assert.True(t, s.CaptureObjects)
	}
}

func TestRunWithoutRecords(t *testing.T) {
	info := setup(t)
	store := &memStore{}
	r := &Runner{Counter: &widthCounter{}, Store: store}

	_, err := r.Run(info, production(), params.ChannelProduction)
	require.NoError(t, err)
	assert.Len(t, store.labels, 3)
	assert.Nil(t, store.records)
}

func TestRunParallelMatchesSequential(t *testing.T) {
	info := setup(t)
	r := &Runner{Counter: &widthCounter{}, Workers: 3}

	summary, err := r.Run(info, production(), params.ChannelProduction)
	require.NoError(t, err)
	assert.Equal(t, []string{"img_a.tif", "img_b.tif", "img_c.tif"},
		[]string{summary.Rows[0].File, summary.Rows[1].File, summary.Rows[2].File})
}

func TestRunAbortsWithFileName(t *testing.T) {
	info := setup(t)
	c := &widthCounter{fail: "img_b.tif"}
	store := &memStore{}
	r := &Runner{Counter: c, Store: store}

	summary, err := r.Run(info, production(), params.ChannelProduction)
	require.Error(t, err)
	assert.Nil(t, summary)
	assert.Contains(t, err.Error(), "img_b.tif")
	assert.Equal(t, []string{"img_a"}, store.labels, "images after the failure are not processed")
}

func TestRunAbortsOnUnreadableImage(t *testing.T) {
	info := setup(t)
	require.NoError(t, os.WriteFile(filepath.Join(info.Ch1, "img_a.tif"), []byte("not a tiff"), 0o644))

	_, err := (&Runner{Counter: &widthCounter{}, Workers: 2}).Run(info, production(), params.ChannelProduction)
	require.Error(t, err)
	var fe *img.FileError
	assert.ErrorAs(t, err, &fe)
	assert.Contains(t, err.Error(), "img_a.tif")
}

func TestRunRequiresProductionParameters(t *testing.T) {
	info := setup(t)
	_, err := (&Runner{Counter: &widthCounter{}}).Run(info, params.Default(), params.ChannelProduction)
	assert.ErrorIs(t, err, params.ErrInvalid)
}

func TestRunParallelReportsLowestIndexError(t *testing.T) {
	for run := 0; run < 20; run++ {
		var mu sync.Mutex
		ran := make(map[int]bool)
		err := runParallel(8, 3, func(i int) error {
			mu.Lock()
			ran[i] = true
			mu.Unlock()
			if i >= 2 {
				return fmt.Errorf("image %d failed", i)
			}
			return nil
		})
		require.EqualError(t, err, "image 2 failed")
		assert.True(t, ran[0])
		assert.True(t, ran[1])
	}
}

func TestRunParallelRunsEverythingOnSuccess(t *testing.T) {
	var count atomic.Int32
	err := runParallel(10, 4, func(int) error {
		count.Add(1)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(10), count.Load())
}
