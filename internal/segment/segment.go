package segment

import (
	"fmt"

	img "cell-counter/internal/image"
)

// Segment labels the objects of a thresholded mask and returns the label map
// with the object count. With useWatershed set, touching objects are split
// around distance-transform seeds and the count is the number of seeds;
// otherwise every edge-connected (4-neighbour) component is one object.
//
// An all-background mask is a valid input and yields an empty map and 0.
func Segment(mask *img.Mask, diameter int, particleMin float64, useWatershed bool) (*img.LabelMap, int, error) {
	if diameter < 1 {
		return nil, 0, fmt.Errorf("invalid diameter %d", diameter)
	}
	if !useWatershed {
		return Label(mask, Cross)
	}
	if !mask.Any() {
		return img.NewLabelMap(mask.Width, mask.Height), 0, nil
	}

	dist, err := DistanceTransform(mask)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to compute distance transform: %w", err)
	}

	seeds, err := FindSeeds(dist, diameter, particleMin)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find seeds: %w", err)
	}

	return Watershed(dist, mask, seeds), len(seeds), nil
}
