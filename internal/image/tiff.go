package image

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/png"
	"os"

	"gocv.io/x/gocv"
	"golang.org/x/image/tiff"
)

// MaxLabel is the largest object id representable in a 16-bit label image.
const MaxLabel = 65535

// FileError ties an I/O failure to the file that caused it.
type FileError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// Load reads a single-channel image without reducing its bit depth.
// 16-bit TIFFs keep their full range; colour images are converted with the
// 16-bit gray model. TIFF layouts the Go decoder does not support, such as
// 32-bit integer or float samples, are read through OpenCV instead.
func Load(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &FileError{Op: "open", Path: path, Err: err}
	}
	defer file.Close()

	src, _, err := image.Decode(file)
	if err != nil {
		var unsupported tiff.UnsupportedError
		if errors.As(err, &unsupported) {
			return loadAnyDepth(path)
		}
		return nil, &FileError{Op: "decode", Path: path, Err: err}
	}
	return FromImage(src), nil
}

func loadAnyDepth(path string) (*Frame, error) {
	mat := gocv.IMRead(path, gocv.IMReadAnyDepth|gocv.IMReadGrayScale)
	defer mat.Close()
	if mat.Empty() {
		return nil, &FileError{Op: "decode", Path: path, Err: errors.New("unsupported image format")}
	}
	f, err := FrameFromMat(mat)
	if err != nil {
		return nil, &FileError{Op: "decode", Path: path, Err: err}
	}
	return f, nil
}

// FromImage converts a decoded Go image to a Frame.
func FromImage(src image.Image) *Frame {
	b := src.Bounds()
	f := NewFrame(b.Dx(), b.Dy())

	switch s := src.(type) {
	case *image.Gray16:
		for y := 0; y < f.Height; y++ {
			for x := 0; x < f.Width; x++ {
				f.Set(x, y, float64(s.Gray16At(b.Min.X+x, b.Min.Y+y).Y))
			}
		}
	case *image.Gray:
		for y := 0; y < f.Height; y++ {
			for x := 0; x < f.Width; x++ {
				f.Set(x, y, float64(s.GrayAt(b.Min.X+x, b.Min.Y+y).Y))
			}
		}
	default:
		for y := 0; y < f.Height; y++ {
			for x := 0; x < f.Width; x++ {
				g := color.Gray16Model.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
				f.Set(x, y, float64(g.Y))
			}
		}
	}
	return f
}

// ToGray16 renders a label map as a 16-bit image. Labels above MaxLabel are
// clamped; the number of clamped pixels is returned so callers can warn.
func ToGray16(l *LabelMap) (*image.Gray16, int) {
	dst := image.NewGray16(image.Rect(0, 0, l.Width, l.Height))
	clamped := 0
	for y := 0; y < l.Height; y++ {
		for x := 0; x < l.Width; x++ {
			v := l.At(x, y)
			if v > MaxLabel {
				v = MaxLabel
				clamped++
			}
			if v < 0 {
				v = 0
			}
			dst.SetGray16(x, y, color.Gray16{Y: uint16(v)})
		}
	}
	return dst, clamped
}

// SaveLabels writes a label map as a deflate-compressed 16-bit TIFF.
func SaveLabels(path string, l *LabelMap) (int, error) {
	dst, clamped := ToGray16(l)

	file, err := os.Create(path)
	if err != nil {
		return 0, &FileError{Op: "create", Path: path, Err: err}
	}
	if err := tiff.Encode(file, dst, &tiff.Options{Compression: tiff.Deflate}); err != nil {
		file.Close()
		return 0, &FileError{Op: "encode", Path: path, Err: err}
	}
	if err := file.Close(); err != nil {
		return 0, &FileError{Op: "close", Path: path, Err: err}
	}
	return clamped, nil
}

// SaveFrame writes a frame as a 16-bit TIFF, clipping to [0, 65535].
func SaveFrame(path string, f *Frame) error {
	dst := image.NewGray16(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			v := f.At(x, y)
			switch {
			case v < 0:
				v = 0
			case v > 65535:
				v = 65535
			}
			dst.SetGray16(x, y, color.Gray16{Y: uint16(v + 0.5)})
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return &FileError{Op: "create", Path: path, Err: err}
	}
	if err := tiff.Encode(file, dst, nil); err != nil {
		file.Close()
		return &FileError{Op: "encode", Path: path, Err: err}
	}
	if err := file.Close(); err != nil {
		return &FileError{Op: "close", Path: path, Err: err}
	}
	return nil
}
