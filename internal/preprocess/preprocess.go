// Package preprocess prepares a raw frame for thresholding: median denoising,
// large-scale background removal, and a final light Gaussian smoothing.
// All three scales derive from the expected object diameter.
package preprocess

import (
	"errors"
	"fmt"
	"image"
	"sort"

	img "cell-counter/internal/image"

	"gocv.io/x/gocv"
)

// ErrInvalidDiameter is returned when the expected object diameter is not positive.
var ErrInvalidDiameter = errors.New("diameter must be at least 1 pixel")

// MedianKernel returns the odd median window size for an object diameter:
// half the diameter, stepped down to the next odd value and never below 1.
func MedianKernel(diameter int) int {
	k := diameter / 2
	if k%2 == 0 {
		k--
	}
	if k < 1 {
		k = 1
	}
	return k
}

// BackgroundSigma is the Gaussian scale that approximates uneven illumination.
func BackgroundSigma(diameter int) float64 {
	return float64(diameter) * 3
}

// SmoothingSigma is the Gaussian scale applied after background removal.
func SmoothingSigma(diameter int) float64 {
	return float64(diameter) / 6
}

// Run applies median filtering, background subtraction and smoothing.
// The input frame is not modified.
func Run(f *img.Frame, diameter int) (*img.Frame, error) {
	if diameter < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDiameter, diameter)
	}

	median := MedianFilter(f, MedianKernel(diameter))

	flat, err := SubtractBackground(median, BackgroundSigma(diameter))
	if err != nil {
		return nil, fmt.Errorf("failed to subtract background: %w", err)
	}

	smoothed, err := Smooth(flat, SmoothingSigma(diameter))
	if err != nil {
		return nil, fmt.Errorf("failed to smooth: %w", err)
	}
	return smoothed, nil
}

// MedianFilter replaces each pixel with the median of its k×k neighbourhood.
// Borders are mirrored including the edge pixel (d c b a | a b c d).
// k values below 2 return a copy.
func MedianFilter(f *img.Frame, k int) *img.Frame {
	if k < 2 {
		return f.Clone()
	}

	out := img.NewFrame(f.Width, f.Height)
	half := k / 2
	window := make([]float64, 0, k*k)

	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			window = window[:0]
			for dy := -half; dy < k-half; dy++ {
				sy := reflect(y+dy, f.Height)
				for dx := -half; dx < k-half; dx++ {
					window = append(window, f.At(reflect(x+dx, f.Width), sy))
				}
			}
			sort.Float64s(window)
			out.Set(x, y, window[len(window)/2])
		}
	}
	return out
}

// reflect maps an out-of-range index back into [0, n) by mirroring about the
// edges, repeating the edge sample.
func reflect(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - 1 - i
	}
	return i
}

// SubtractBackground removes a Gaussian-estimated background and clips the
// result at zero, so the output is never negative.
func SubtractBackground(f *img.Frame, sigma float64) (*img.Frame, error) {
	background, err := gaussianBlur(f, sigma)
	if err != nil {
		return nil, err
	}

	out := img.NewFrame(f.Width, f.Height)
	for i, v := range f.Pix {
		d := v - background.Pix[i]
		if d < 0 {
			d = 0
		}
		out.Pix[i] = d
	}
	return out, nil
}

// Smooth applies a Gaussian blur with the given sigma.
func Smooth(f *img.Frame, sigma float64) (*img.Frame, error) {
	return gaussianBlur(f, sigma)
}

// gaussianBlur runs OpenCV's Gaussian filter in double precision with the
// kernel size derived from sigma and reflect-101 borders.
func gaussianBlur(f *img.Frame, sigma float64) (*img.Frame, error) {
	if sigma <= 0 {
		return f.Clone(), nil
	}

	src := img.ToMat(f)
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.GaussianBlur(src, &dst, image.Point{}, sigma, sigma, gocv.BorderReflect101)

	return img.FrameFromMat(dst)
}
