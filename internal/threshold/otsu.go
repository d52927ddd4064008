// Package threshold computes global intensity thresholds.
package threshold

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Otsu returns the threshold that maximises the between-class variance of
// values. Values are truncated to integers and binned one bin per integer
// between the minimum and maximum, so the result is always one of the
// integer levels present in the range. When several levels tie, the lowest
// wins. A constant input returns that constant.
// https://en.wikipedia.org/wiki/Otsu%27s_method
func Otsu(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	lo := math.Trunc(floats.Min(values))
	hi := math.Trunc(floats.Max(values))
	if lo == hi {
		return lo
	}

	n := int(hi-lo) + 1
	counts := make([]float64, n)
	for _, v := range values {
		counts[int(math.Trunc(v)-lo)]++
	}

	weighted := make([]float64, n)
	for i, c := range counts {
		weighted[i] = c * (lo + float64(i))
	}

	// Class below (inclusive) and above each candidate split.
	w1 := floats.CumSum(make([]float64, n), counts)
	s1 := floats.CumSum(make([]float64, n), weighted)
	total := w1[n-1]
	totalSum := s1[n-1]

	var (
		bestIdx      int
		bestVariance = -1.0
	)
	for i := 0; i < n-1; i++ {
		w2 := total - w1[i]
		if w1[i] == 0 || w2 == 0 {
			continue
		}
		mean1 := s1[i] / w1[i]
		mean2 := (totalSum - s1[i]) / w2
		variance := w1[i] * w2 * (mean1 - mean2) * (mean1 - mean2)
		if variance > bestVariance {
			bestVariance = variance
			bestIdx = i
		}
	}
	return lo + float64(bestIdx)
}
