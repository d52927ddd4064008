// Package counter runs the single-image counting pipeline: preprocess,
// threshold, drop small objects, segment, and optionally measure every
// object that was found.
package counter

import (
	"fmt"

	img "cell-counter/internal/image"
	"cell-counter/internal/params"
	"cell-counter/internal/preprocess"
	"cell-counter/internal/segment"
	"cell-counter/internal/workspace"
	"cell-counter/pkg/geometry"

	"gonum.org/v1/gonum/stat"
)

// Settings are the per-call counting knobs.
type Settings struct {
	Diameter       int
	Threshold      float64
	ParticleMin    float64
	UseWatershed   bool
	CaptureObjects bool
}

// SettingsFor builds Settings from a channel's resolved parameters.
func SettingsFor(cp params.ChannelParams, capture bool) Settings {
	return Settings{
		Diameter:       cp.Diameter,
		Threshold:      cp.Threshold,
		ParticleMin:    cp.ParticleMin,
		UseWatershed:   cp.UseWatershed,
		CaptureObjects: capture,
	}
}

// CellRecord describes one detected object.
type CellRecord struct {
	File string
	ID   int
	Area int
	// Intensity is the mean of the smoothed image over the object.
	Intensity float64
	// RawIntensity is the mean of the unprocessed image over the object.
	RawIntensity float64
	Centroid     geometry.Point2D
}

// Result is the outcome of counting one image.
type Result struct {
	Labels  *img.LabelMap
	Count   int
	ROISize int

	// Intermediates kept for diagnostics.
	Smoothed *img.Frame
	Mask     *img.Mask

	Records []CellRecord
}

// Pipeline counts images. The zero value is ready to use.
type Pipeline struct{}

// Preprocess returns the smoothed, background-subtracted frame for diameter.
func (Pipeline) Preprocess(frame *img.Frame, diameter int) (*img.Frame, error) {
	return preprocess.Run(frame, diameter)
}

// Count runs the full pipeline on frame. name is only used to tag records.
func (p Pipeline) Count(frame *img.Frame, name string, s Settings) (*Result, error) {
	smoothed, err := p.Preprocess(frame, s.Diameter)
	if err != nil {
		return nil, fmt.Errorf("failed to preprocess %s: %w", name, err)
	}

	mask := smoothed.Above(s.Threshold)
	filtered, err := segment.RemoveSmall(mask, s.Diameter, s.ParticleMin)
	if err != nil {
		return nil, fmt.Errorf("failed to filter %s: %w", name, err)
	}

	labels, n, err := segment.Segment(filtered, s.Diameter, s.ParticleMin, s.UseWatershed)
	if err != nil {
		return nil, fmt.Errorf("failed to segment %s: %w", name, err)
	}

	res := &Result{
		Labels:   labels,
		Count:    n,
		ROISize:  frame.Len(),
		Smoothed: smoothed,
		Mask:     filtered,
	}
	if s.CaptureObjects {
		res.Records = Measure(labels, smoothed, frame, name)
	}
	return res, nil
}

// Measure returns one record per distinct positive label, in label order.
func Measure(labels *img.LabelMap, smoothed, raw *img.Frame, name string) []CellRecord {
	type acc struct {
		smooth []float64
		raw    []float64
		pts    []geometry.PointInt
	}
	objects := make(map[int32]*acc)
	for y := 0; y < labels.Height; y++ {
		for x := 0; x < labels.Width; x++ {
			l := labels.At(x, y)
			if l <= 0 {
				continue
			}
			a, ok := objects[l]
			if !ok {
				a = &acc{}
				objects[l] = a
			}
			a.smooth = append(a.smooth, smoothed.At(x, y))
			a.raw = append(a.raw, raw.At(x, y))
			a.pts = append(a.pts, geometry.PointInt{X: x, Y: y})
		}
	}

	ids := labels.Distinct()
	records := make([]CellRecord, 0, len(ids))
	for _, id := range ids {
		a := objects[id]
		records = append(records, CellRecord{
			File:         name,
			ID:           int(id),
			Area:         len(a.pts),
			Intensity:    stat.Mean(a.smooth, nil),
			RawIntensity: stat.Mean(a.raw, nil),
			Centroid:     geometry.Centroid(a.pts),
		})
	}
	return records
}

// Load reads the index-th image of a channel source and returns it with its
// file name.
func Load(src workspace.Source, index int) (*img.Frame, string, error) {
	path, err := src.Path(index)
	if err != nil {
		return nil, "", err
	}
	frame, err := img.Load(path)
	if err != nil {
		return nil, "", err
	}
	return frame, src.Files[index], nil
}

// CountFile loads the index-th image of a channel and counts it with that
// channel's parameters.
func CountFile(info *workspace.Info, c params.Channel, index int, p params.Parameters, capture bool) (*Result, error) {
	frame, name, err := Load(info.Source(c), index)
	if err != nil {
		return nil, err
	}
	return Pipeline{}.Count(frame, name, SettingsFor(p.For(c), capture))
}
