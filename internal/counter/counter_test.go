package counter

import (
	"os"
	"path/filepath"
	"testing"

	img "cell-counter/internal/image"
	"cell-counter/internal/params"
	"cell-counter/internal/workspace"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blobs renders bright discs of radius r on a dim background.
func blobs(w, h, r int, centres [][2]int) *img.Frame {
	f := img.NewFrame(w, h)
	for i := range f.Pix {
		f.Pix[i] = 100
	}
	for _, c := range centres {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dx, dy := x-c[0], y-c[1]
				if dx*dx+dy*dy <= r*r {
					f.Set(x, y, 4000)
				}
			}
		}
	}
	return f
}

func TestCountFindsSeparateBlobs(t *testing.T) {
	f := blobs(80, 60, 5, [][2]int{{20, 20}, {60, 20}, {40, 45}})

	res, err := Pipeline{}.Count(f, "three.tif", Settings{
		Diameter:       10,
		Threshold:      200,
		ParticleMin:    0.1,
		UseWatershed:   true,
		CaptureObjects: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Count)
	assert.Equal(t, 80*60, res.ROISize)
	require.Len(t, res.Records, 3)
	for i, r := range res.Records {
		assert.Equal(t, "three.tif", r.File)
		assert.Equal(t, i+1, r.ID)
		assert.Positive(t, r.Area)
		assert.Positive(t, r.Intensity)
		assert.Positive(t, r.RawIntensity)
	}
}

func TestCountAllBackgroundIsZero(t *testing.T) {
	f := blobs(32, 32, 0, nil)

	res, err := Pipeline{}.Count(f, "blank.tif", Settings{Diameter: 6, Threshold: 10, ParticleMin: 0.1, UseWatershed: true})
	require.NoError(t, err)
	assert.Zero(t, res.Count)
	assert.Zero(t, res.Labels.Foreground())
	assert.Nil(t, res.Records)
}

func TestCountWithoutCaptureHasNoRecords(t *testing.T) {
	f := blobs(40, 40, 5, [][2]int{{20, 20}})

	res, err := Pipeline{}.Count(f, "one.tif", Settings{Diameter: 10, Threshold: 200, ParticleMin: 0.1})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
	assert.Empty(t, res.Records)
}

func TestCountRejectsBadDiameter(t *testing.T) {
	_, err := Pipeline{}.Count(img.NewFrame(4, 4), "x.tif", Settings{Diameter: 0})
	assert.Error(t, err)
}

func TestMeasure(t *testing.T) {
	labels := img.NewLabelMap(3, 2)
	labels.Labels = []int32{1, 1, 0, 0, 2, 2}
	smoothed := img.NewFrame(3, 2)
	smoothed.Pix = []float64{2, 4, 9, 9, 6, 8}
	raw := img.NewFrame(3, 2)
	raw.Pix = []float64{10, 20, 0, 0, 30, 50}

	rec := Measure(labels, smoothed, raw, "m.tif")
	require.Len(t, rec, 2)
	assert.Equal(t, 2, rec[0].Area)
	assert.Equal(t, 3.0, rec[0].Intensity)
	assert.Equal(t, 15.0, rec[0].RawIntensity)
	assert.Equal(t, 7.0, rec[1].Intensity)
	assert.Equal(t, 40.0, rec[1].RawIntensity)
	assert.Equal(t, 1.5, rec[1].Centroid.X)
	assert.Equal(t, 1.0, rec[1].Centroid.Y)
}

func TestCountFileUsesChannelParameters(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{workspace.CompositeDir, workspace.ManualDir, workspace.Ch1Dir} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, d), 0o755))
	}
	f := blobs(60, 40, 5, [][2]int{{15, 20}, {45, 20}})
	require.NoError(t, img.SaveFrame(filepath.Join(root, workspace.CompositeDir, "comp.tif"), f))
	require.NoError(t, img.SaveFrame(filepath.Join(root, workspace.ManualDir, "manual.tif"), f))
	require.NoError(t, img.SaveFrame(filepath.Join(root, workspace.Ch1Dir, "a.tif"), f))

	info, err := workspace.Resolve(root)
	require.NoError(t, err)

	p := params.Default().WithTuning(10, 200).WithProduction(10, 200)
	res, err := CountFile(info, params.ChannelProduction, 0, p, true)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, "a.tif", res.Records[0].File)

	_, err = CountFile(info, params.ChannelProduction, 5, p, false)
	assert.Error(t, err)

	frame, name, err := Load(info.Source(params.ChannelTuning), 0)
	require.NoError(t, err)
	assert.Equal(t, "comp.tif", name)
	assert.Equal(t, 60*40, frame.Len())
}
