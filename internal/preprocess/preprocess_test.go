package preprocess

import (
	"math/rand"
	"testing"

	img "cell-counter/internal/image"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMedianKernel(t *testing.T) {
	tests := []struct {
		diameter int
		want     int
	}{
		{diameter: 0, want: 1},
		{diameter: 1, want: 1},
		{diameter: 2, want: 1},
		{diameter: 4, want: 1}, // half is 2, even, stepped to 1
		{diameter: 6, want: 3},
		{diameter: 8, want: 3},
		{diameter: 10, want: 5},
		{diameter: 13, want: 5},
		{diameter: 14, want: 7},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, MedianKernel(tc.diameter), "diameter %d", tc.diameter)
	}
}

func TestMedianKernelIsAlwaysOdd(t *testing.T) {
	for d := -3; d < 200; d++ {
		k := MedianKernel(d)
		assert.Equal(t, 1, k%2, "diameter %d gave even kernel %d", d, k)
		half := d / 2
		if half >= 1 && half%2 == 1 {
			assert.Equal(t, half, k)
		}
		if half >= 2 && half%2 == 0 {
			assert.Equal(t, half-1, k)
		}
	}
}

func TestReflect(t *testing.T) {
	assert.Equal(t, 0, reflect(-1, 4))
	assert.Equal(t, 1, reflect(-2, 4))
	assert.Equal(t, 3, reflect(4, 4))
	assert.Equal(t, 2, reflect(5, 4))
	assert.Equal(t, 0, reflect(-7, 1))
	assert.Equal(t, 2, reflect(2, 4))
}

func TestMedianFilterRemovesShotNoise(t *testing.T) {
	f := img.NewFrame(7, 7)
	for i := range f.Pix {
		f.Pix[i] = 100
	}
	f.Set(3, 3, 60000)

	out := MedianFilter(f, 3)
	assert.Equal(t, 100.0, out.At(3, 3))
	assert.Equal(t, 60000.0, f.At(3, 3), "input must not be modified")
}

func TestMedianFilterSmallKernelCopies(t *testing.T) {
	f := img.NewFrame(2, 2)
	f.Pix = []float64{1, 2, 3, 4}

	out := MedianFilter(f, 1)
	assert.Equal(t, f.Pix, out.Pix)
	out.Pix[0] = 9
	assert.Equal(t, 1.0, f.Pix[0])
}

func TestSubtractBackgroundNeverNegative(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	f := img.NewFrame(40, 30)
	for i := range f.Pix {
		f.Pix[i] = rng.Float64() * 4000
	}

	out, err := SubtractBackground(f, 12)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, out.Min(), 0.0)
	assert.Equal(t, f.Width, out.Width)
	assert.Equal(t, f.Height, out.Height)
}

func TestSubtractBackgroundFlatImageIsZero(t *testing.T) {
	f := img.NewFrame(20, 20)
	for i := range f.Pix {
		f.Pix[i] = 500
	}

	out, err := SubtractBackground(f, 6)
	require.NoError(t, err)
	assert.InDelta(t, 0, out.Max(), 1e-6)
}

func TestRunKeepsShapeAndHighlightsBlob(t *testing.T) {
	f := img.NewFrame(48, 48)
	for i := range f.Pix {
		f.Pix[i] = 200
	}
	for y := 0; y < 48; y++ {
		for x := 0; x < 48; x++ {
			dx, dy := x-24, y-24
			if dx*dx+dy*dy <= 16 {
				f.Set(x, y, 3000)
			}
		}
	}

	out, err := Run(f, 8)
	require.NoError(t, err)
	assert.Equal(t, 48, out.Width)
	assert.Equal(t, 48, out.Height)
	assert.Greater(t, out.At(24, 24), out.At(2, 2))
	assert.GreaterOrEqual(t, out.Min(), 0.0)
}

func TestRunRejectsNonPositiveDiameter(t *testing.T) {
	_, err := Run(img.NewFrame(4, 4), 0)
	assert.ErrorIs(t, err, ErrInvalidDiameter)
}
