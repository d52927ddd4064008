package segment

import (
	"sort"

	img "cell-counter/internal/image"
	"cell-counter/pkg/geometry"
)

// Seed is a watershed basin origin: a distance-transform peak inside one
// object core.
type Seed struct {
	ID       int32
	Pos      geometry.PointInt
	Distance float64
}

// CoreCutoff is the distance a pixel must exceed to belong to an object core.
func CoreCutoff(diameter int, particleMin float64) float64 {
	return float64(diameter) * particleMin
}

// FindSeeds picks one seed per object core and enforces a minimum spacing of
// diameter pixels between seeds.
//
//  1. Cores are the connected regions where dist > diameter × particleMin.
//  2. Each core contributes its highest distance value (first in raster order
//     on ties).
//  3. Candidates are visited from highest to lowest; a candidate closer than
//     diameter to an already accepted seed is dropped.
//  4. Survivors are numbered 1..n in raster order.
//
// Peaks closer than the expected diameter are almost always the same object
// split by noise or an irregular outline.
//
// Peaks on or near the image border are kept like any other peak.
func FindSeeds(dist *img.Frame, diameter int, particleMin float64) ([]Seed, error) {
	cutoff := CoreCutoff(diameter, particleMin)
	core := img.NewMask(dist.Width, dist.Height)
	for i, v := range dist.Pix {
		core.Pix[i] = v > cutoff
	}
	if !core.Any() {
		return nil, nil
	}

	coreLabels, n, err := Label(core, Full)
	if err != nil {
		return nil, err
	}

	best := make([]int, n+1)
	for i := range best {
		best[i] = -1
	}
	for i, l := range coreLabels.Labels {
		if l <= 0 {
			continue
		}
		if b := best[l]; b < 0 || dist.Pix[i] > dist.Pix[b] {
			best[l] = i
		}
	}

	candidates := make([]Seed, 0, n)
	for l := 1; l <= n; l++ {
		i := best[l]
		if i < 0 {
			continue
		}
		candidates = append(candidates, Seed{
			Pos:      geometry.PointInt{X: i % dist.Width, Y: i / dist.Width},
			Distance: dist.Pix[i],
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Distance != candidates[j].Distance {
			return candidates[i].Distance > candidates[j].Distance
		}
		return rasterLess(candidates[i].Pos, candidates[j].Pos)
	})

	minSep := float64(diameter)
	var seeds []Seed
	for _, c := range candidates {
		tooClose := false
		for _, s := range seeds {
			if c.Pos.Distance(s.Pos) < minSep {
				tooClose = true
				break
			}
		}
		if !tooClose {
			seeds = append(seeds, c)
		}
	}

	sort.Slice(seeds, func(i, j int) bool { return rasterLess(seeds[i].Pos, seeds[j].Pos) })
	for i := range seeds {
		seeds[i].ID = int32(i + 1)
	}
	return seeds, nil
}

func rasterLess(a, b geometry.PointInt) bool {
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.X < b.X
}
