// Package image provides the grayscale frame, mask, and label-map types shared
// by the counting pipeline, plus TIFF loading and saving.
package image

import (
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Frame is a single-channel 2-D intensity grid stored row-major.
// Frames are treated as immutable once loaded; pipeline stages return new frames.
type Frame struct {
	Width  int
	Height int
	Pix    []float64
}

// NewFrame creates a zero-filled frame.
func NewFrame(width, height int) *Frame {
	return &Frame{
		Width:  width,
		Height: height,
		Pix:    make([]float64, width*height),
	}
}

// At returns the intensity at (x, y).
func (f *Frame) At(x, y int) float64 {
	return f.Pix[y*f.Width+x]
}

// Set stores v at (x, y). Only used while a frame is being built.
func (f *Frame) Set(x, y int, v float64) {
	f.Pix[y*f.Width+x] = v
}

// Len returns the number of pixels, which is also the ROI size of the frame.
func (f *Frame) Len() int {
	return f.Width * f.Height
}

// Max returns the largest intensity, or 0 for an empty frame.
func (f *Frame) Max() float64 {
	if len(f.Pix) == 0 {
		return 0
	}
	return floats.Max(f.Pix)
}

// Min returns the smallest intensity, or 0 for an empty frame.
func (f *Frame) Min() float64 {
	if len(f.Pix) == 0 {
		return 0
	}
	return floats.Min(f.Pix)
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	out := NewFrame(f.Width, f.Height)
	copy(out.Pix, f.Pix)
	return out
}

// Above returns the mask of pixels strictly brighter than t.
func (f *Frame) Above(t float64) *Mask {
	m := NewMask(f.Width, f.Height)
	for i, v := range f.Pix {
		m.Pix[i] = v > t
	}
	return m
}

// NonZero counts pixels with a non-zero intensity.
func (f *Frame) NonZero() int {
	n := 0
	for _, v := range f.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}

// Mask is a boolean foreground grid with the same layout as Frame.
type Mask struct {
	Width  int
	Height int
	Pix    []bool
}

// NewMask creates an all-background mask.
func NewMask(width, height int) *Mask {
	return &Mask{
		Width:  width,
		Height: height,
		Pix:    make([]bool, width*height),
	}
}

// At reports whether (x, y) is foreground.
func (m *Mask) At(x, y int) bool {
	return m.Pix[y*m.Width+x]
}

// Set marks (x, y) as foreground or background.
func (m *Mask) Set(x, y int, v bool) {
	m.Pix[y*m.Width+x] = v
}

// Count returns the number of foreground pixels.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Pix {
		if v {
			n++
		}
	}
	return n
}

// Any reports whether the mask has at least one foreground pixel.
func (m *Mask) Any() bool {
	for _, v := range m.Pix {
		if v {
			return true
		}
	}
	return false
}

// LabelMap assigns an object id to every pixel. 0 is background and each
// distinct positive value identifies one object.
type LabelMap struct {
	Width  int
	Height int
	Labels []int32
}

// NewLabelMap creates an all-background label map.
func NewLabelMap(width, height int) *LabelMap {
	return &LabelMap{
		Width:  width,
		Height: height,
		Labels: make([]int32, width*height),
	}
}

// At returns the label at (x, y).
func (l *LabelMap) At(x, y int) int32 {
	return l.Labels[y*l.Width+x]
}

// Set assigns a label to (x, y).
func (l *LabelMap) Set(x, y int, v int32) {
	l.Labels[y*l.Width+x] = v
}

// Foreground counts labelled pixels.
func (l *LabelMap) Foreground() int {
	n := 0
	for _, v := range l.Labels {
		if v > 0 {
			n++
		}
	}
	return n
}

// Distinct returns the positive labels present, in ascending order.
func (l *LabelMap) Distinct() []int32 {
	seen := make(map[int32]struct{})
	for _, v := range l.Labels {
		if v > 0 {
			seen[v] = struct{}{}
		}
	}
	out := make([]int32, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
