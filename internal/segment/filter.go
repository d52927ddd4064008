// Package segment turns a thresholded foreground mask into labelled objects,
// either by plain connected-component labelling or by distance-transform
// watershed splitting of touching objects.
package segment

import (
	"fmt"

	img "cell-counter/internal/image"

	"gocv.io/x/gocv"
)

// MinArea is the smallest component area kept by RemoveSmall.
func MinArea(diameter int, particleMin float64) float64 {
	return float64(diameter*diameter) * particleMin
}

// RemoveSmall clears every 8-connected component whose pixel area is strictly
// below diameter² × particleMin. Components exactly at the limit are kept.
func RemoveSmall(mask *img.Mask, diameter int, particleMin float64) (*img.Mask, error) {
	if diameter < 1 {
		return nil, fmt.Errorf("invalid diameter %d", diameter)
	}
	minArea := MinArea(diameter, particleMin)

	src := img.MaskToMat(mask)
	defer src.Close()
	labels := gocv.NewMat()
	defer labels.Close()
	stats := gocv.NewMat()
	defer stats.Close()
	centroids := gocv.NewMat()
	defer centroids.Close()

	n := gocv.ConnectedComponentsWithStats(src, &labels, &stats, &centroids)

	keep := make([]bool, n)
	for l := 1; l < n; l++ {
		area := stats.GetIntAt(l, int(gocv.CC_STAT_AREA))
		keep[l] = float64(area) >= minArea
	}

	out := img.NewMask(mask.Width, mask.Height)
	for y := 0; y < mask.Height; y++ {
		for x := 0; x < mask.Width; x++ {
			if l := labels.GetIntAt(y, x); l > 0 && keep[l] {
				out.Set(x, y, true)
			}
		}
	}
	return out, nil
}
