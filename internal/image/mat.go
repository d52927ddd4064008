package image

import (
	"fmt"

	"gocv.io/x/gocv"
)

// ToMat copies a frame into a single-channel CV_64F Mat.
// The caller owns the returned Mat and must Close it.
func ToMat(f *Frame) gocv.Mat {
	mat := gocv.NewMatWithSize(f.Height, f.Width, gocv.MatTypeCV64F)
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			mat.SetDoubleAt(y, x, f.At(x, y))
		}
	}
	return mat
}

// FrameFromMat copies a single-channel Mat of any depth into a new Frame.
func FrameFromMat(mat gocv.Mat) (*Frame, error) {
	if mat.Empty() {
		return nil, fmt.Errorf("empty mat")
	}
	if mat.Channels() != 1 {
		return nil, fmt.Errorf("expected one channel, got %d", mat.Channels())
	}

	src := mat
	if mat.Type() != gocv.MatTypeCV64F {
		src = gocv.NewMat()
		defer src.Close()
		mat.ConvertTo(&src, gocv.MatTypeCV64F)
	}

	rows, cols := src.Rows(), src.Cols()
	f := NewFrame(cols, rows)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			f.Set(x, y, src.GetDoubleAt(y, x))
		}
	}
	return f, nil
}

// MaskToMat renders a mask as a CV_8U Mat with foreground 255 and background 0.
func MaskToMat(m *Mask) gocv.Mat {
	mat := gocv.NewMatWithSize(m.Height, m.Width, gocv.MatTypeCV8U)
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if m.At(x, y) {
				mat.SetUCharAt(y, x, 255)
			} else {
				mat.SetUCharAt(y, x, 0)
			}
		}
	}
	return mat
}

// LabelsFromMat copies a CV_32S label Mat, as produced by connected-component
// labelling, into a LabelMap.
func LabelsFromMat(mat gocv.Mat) (*LabelMap, error) {
	if mat.Type() != gocv.MatTypeCV32S {
		return nil, fmt.Errorf("unsupported label mat type %v", mat.Type())
	}
	rows, cols := mat.Rows(), mat.Cols()
	l := NewLabelMap(cols, rows)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			l.Set(x, y, mat.GetIntAt(y, x))
		}
	}
	return l, nil
}
