package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPointIntDistance(t *testing.T) {
	a := PointInt{X: 0, Y: 0}
	b := PointInt{X: 3, Y: 4}
	assert.InDelta(t, 5.0, a.Distance(b), 1e-12)
}

func TestCentroid(t *testing.T) {
	c := Centroid([]PointInt{{0, 0}, {2, 0}, {2, 2}, {0, 2}})
	assert.Equal(t, Point2D{X: 1, Y: 1}, c)
	assert.Equal(t, Point2D{}, Centroid(nil))
}
