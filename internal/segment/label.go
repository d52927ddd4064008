package segment

import (
	img "cell-counter/internal/image"

	"gocv.io/x/gocv"
)

// Pixel connectivity for labelling.
const (
	// Cross joins pixels that share an edge.
	Cross = 4
	// Full also joins pixels that touch only at a corner.
	Full = 8
)

// Label assigns ids 1..n to the connected components of mask and returns n.
// connectivity is Cross or Full.
func Label(mask *img.Mask, connectivity int) (*img.LabelMap, int, error) {
	src := img.MaskToMat(mask)
	defer src.Close()
	labels := gocv.NewMat()
	defer labels.Close()

	n := gocv.ConnectedComponentsWithParams(src, &labels, connectivity, gocv.MatTypeCV32S, gocv.CCL_DEFAULT)

	out, err := img.LabelsFromMat(labels)
	if err != nil {
		return nil, 0, err
	}
	return out, n - 1, nil
}

// DistanceTransform returns, for each foreground pixel, the exact Euclidean
// distance to the nearest background pixel. Background pixels are 0.
func DistanceTransform(mask *img.Mask) (*img.Frame, error) {
	src := img.MaskToMat(mask)
	defer src.Close()
	dist := gocv.NewMat()
	defer dist.Close()
	labels := gocv.NewMat()
	defer labels.Close()

	gocv.DistanceTransform(src, &dist, &labels, gocv.DistL2, gocv.DistanceMaskPrecise, gocv.DistanceLabelCComp)

	return img.FrameFromMat(dist)
}
