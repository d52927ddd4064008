// Package optimize tunes the counting diameter and threshold against a single
// manually annotated reference image.
//
// Tuning runs in two strictly sequential phases. The diameter search starts at
// the seed diameter with the Otsu threshold of the preprocessed reference and
// shrinks the diameter until the automatic count reaches the manual count. The
// threshold sweep then counts the reference at evenly spaced thresholds with
// that diameter and picks the threshold just above the highest one whose count
// still matches or exceeds the manual count.
package optimize

import (
	"errors"
	"fmt"
	"math"

	"cell-counter/internal/counter"
	img "cell-counter/internal/image"
	"cell-counter/internal/logger"
	"cell-counter/internal/params"
	"cell-counter/internal/threshold"
	"cell-counter/internal/workspace"
)

const component = "Optimizer"

// Defaults used when the corresponding Optimizer field is zero.
const (
	DefaultStep          = 10.0
	DefaultMinDiameter   = 2
	DefaultMaxIterations = 100
)

var (
	// ErrEmptyManualCount is returned when the manual mask has no foreground.
	ErrEmptyManualCount = errors.New("manual count is zero")
	// ErrDiameterNotConverged is returned when no diameter above the minimum
	// reaches the manual count.
	ErrDiameterNotConverged = errors.New("diameter search did not reach the manual count")
	// ErrThresholdNotConverged is returned when no swept threshold reaches an
	// accuracy of at least 1.
	ErrThresholdNotConverged = errors.New("threshold sweep never reached the manual count")
)

// Engine is the counting pipeline the optimizer drives.
type Engine interface {
	Preprocess(frame *img.Frame, diameter int) (*img.Frame, error)
	Count(frame *img.Frame, name string, s counter.Settings) (*counter.Result, error)
}

// Reference is the annotated tuning image.
type Reference struct {
	Name   string
	Image  *img.Frame
	Manual *img.Frame
}

// ManualCount is the number of annotated pixels in the manual mask.
func (r Reference) ManualCount() int {
	return r.Manual.NonZero()
}

// LoadReference reads the composite and manual images named by info.
func LoadReference(info *workspace.Info) (Reference, error) {
	image, err := img.Load(info.CompositePath())
	if err != nil {
		return Reference{}, err
	}
	manual, err := img.Load(info.ManualPath())
	if err != nil {
		return Reference{}, err
	}
	if image.Width != manual.Width || image.Height != manual.Height {
		return Reference{}, fmt.Errorf("manual mask %s is %dx%d, composite is %dx%d",
			info.ManualPath(), manual.Width, manual.Height, image.Width, image.Height)
	}
	return Reference{Name: info.CompositeFiles[0], Image: image, Manual: manual}, nil
}

// Row is one tested threshold of the sweep.
type Row struct {
	Threshold      float64
	OtsuThreshold  float64
	ManualDiameter int
	ManualCount    int
	UseWatershed   bool
	AutoCount      int
	// AvgArea and Accuracy are NaN when AutoCount is zero.
	AvgArea  float64
	Accuracy float64
}

// Result is the outcome of a full optimization.
type Result struct {
	// Params is a copy of the input with the tuned values filled in.
	Params    params.Parameters
	Diameter  int
	Threshold float64
	Rows      []Row
}

// Optimizer runs the diameter search and threshold sweep.
type Optimizer struct {
	Engine        Engine
	Logger        logger.Logger
	Step          float64
	MinDiameter   int
	MaxIterations int
}

// New returns an Optimizer with default search bounds.
func New(engine Engine, log logger.Logger) *Optimizer {
	return &Optimizer{
		Engine:        engine,
		Logger:        log,
		Step:          DefaultStep,
		MinDiameter:   DefaultMinDiameter,
		MaxIterations: DefaultMaxIterations,
	}
}

func (o *Optimizer) step() float64 {
	if o.Step <= 0 {
		return DefaultStep
	}
	return o.Step
}

func (o *Optimizer) minDiameter() int {
	if o.MinDiameter < 1 {
		return DefaultMinDiameter
	}
	return o.MinDiameter
}

func (o *Optimizer) maxIterations() int {
	if o.MaxIterations < 1 {
		return DefaultMaxIterations
	}
	return o.MaxIterations
}

func (o *Optimizer) log() logger.Logger {
	if o.Logger == nil {
		return logger.Nop()
	}
	return o.Logger
}

// Optimize tunes p against ref. The returned Params carry the tuned diameter
// and threshold for both channels plus the Otsu threshold and manual count.
// On ErrThresholdNotConverged the partial Result still holds the sweep rows.
func (o *Optimizer) Optimize(ref Reference, p params.Parameters) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	manual := ref.ManualCount()
	if manual == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyManualCount, ref.Name)
	}

	smoothed, err := o.Engine.Preprocess(ref.Image, p.Diameter)
	if err != nil {
		return nil, fmt.Errorf("failed to preprocess reference: %w", err)
	}
	otsu := threshold.Otsu(smoothed.Pix)
	p.ManualCount = manual
	p.OtsuThreshold = otsu
	p.Threshold = otsu

	o.log().Info(component, "reference prepared", map[string]interface{}{
		"file":   ref.Name,
		"manual": manual,
		"otsu":   otsu,
	})

	diameter, err := o.SearchDiameter(ref, p)
	if err != nil {
		return nil, err
	}
	p = p.WithTuning(diameter, otsu)

	rows, err := o.SweepThreshold(ref, p, smoothed.Max())
	if err != nil {
		return nil, err
	}

	res := &Result{Diameter: diameter, Rows: rows}
	thresh, err := o.SelectThreshold(rows)
	if err != nil {
		res.Params = p
		return res, err
	}

	res.Threshold = thresh
	res.Params = p.WithProduction(diameter, thresh)
	o.log().Info(component, "optimization complete", map[string]interface{}{
		"diameter":  diameter,
		"threshold": thresh,
	})
	return res, nil
}

// SearchDiameter counts ref at p.Threshold, starting from p.Diameter and
// decreasing by one while the count is below p.ManualCount.
func (o *Optimizer) SearchDiameter(ref Reference, p params.Parameters) (int, error) {
	diameter := p.Diameter
	minD := o.minDiameter()
	if diameter < minD {
		return 0, fmt.Errorf("%w: seed diameter %d below minimum %d", ErrDiameterNotConverged, diameter, minD)
	}

	for iter := 0; iter < o.maxIterations(); iter++ {
		res, err := o.Engine.Count(ref.Image, ref.Name, counter.Settings{
			Diameter:     diameter,
			Threshold:    p.Threshold,
			ParticleMin:  p.ParticleMin,
			UseWatershed: p.UseWatershed,
		})
		if err != nil {
			return 0, fmt.Errorf("failed to count at diameter %d: %w", diameter, err)
		}
		o.log().Debug(component, "diameter tested", map[string]interface{}{
			"diameter": diameter,
			"count":    res.Count,
			"manual":   p.ManualCount,
		})
		if res.Count >= p.ManualCount {
			return diameter, nil
		}
		if diameter-1 < minD {
			return 0, fmt.Errorf("%w: count %d at minimum diameter %d, manual %d",
				ErrDiameterNotConverged, res.Count, diameter, p.ManualCount)
		}
		diameter--
	}
	return 0, fmt.Errorf("%w: gave up after %d iterations at diameter %d",
		ErrDiameterNotConverged, o.maxIterations(), diameter)
}

// Thresholds lists the sweep candidates 0, step, 2*step, ... below floor(maxValue).
func Thresholds(maxValue, step float64) []float64 {
	limit := math.Floor(maxValue)
	var out []float64
	for i := 0; ; i++ {
		t := float64(i) * step
		if !(t < limit) {
			break
		}
		out = append(out, t)
	}
	return out
}

// SweepThreshold counts ref at every candidate threshold below maxValue using
// p.Diameter and returns one Row per candidate.
func (o *Optimizer) SweepThreshold(ref Reference, p params.Parameters, maxValue float64) ([]Row, error) {
	candidates := Thresholds(maxValue, o.step())
	rows := make([]Row, 0, len(candidates))
	for _, t := range candidates {
		res, err := o.Engine.Count(ref.Image, ref.Name, counter.Settings{
			Diameter:     p.Diameter,
			Threshold:    t,
			ParticleMin:  p.ParticleMin,
			UseWatershed: p.UseWatershed,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to count at threshold %g: %w", t, err)
		}

		row := Row{
			Threshold:      t,
			OtsuThreshold:  p.OtsuThreshold,
			ManualDiameter: p.Diameter,
			ManualCount:    p.ManualCount,
			UseWatershed:   p.UseWatershed,
			AutoCount:      res.Count,
			AvgArea:        math.NaN(),
			Accuracy:       math.NaN(),
		}
		if res.Count > 0 {
			row.AvgArea = float64(res.Labels.Foreground()) / float64(res.Count)
			row.Accuracy = float64(res.Count) / float64(p.ManualCount)
		}
		rows = append(rows, row)
	}
	o.log().Info(component, "threshold sweep complete", map[string]interface{}{
		"rows": len(rows),
		"step": o.step(),
	})
	return rows, nil
}

// SelectThreshold scans rows from the highest threshold down and returns the
// threshold one row above the first row with accuracy of at least 1. NaN
// accuracy counts as below 1.
func (o *Optimizer) SelectThreshold(rows []Row) (float64, error) {
	i := len(rows) - 1
	for i >= 0 && !(rows[i].Accuracy >= 1) {
		i--
	}
	if i < 0 {
		return 0, fmt.Errorf("%w: %d thresholds tested", ErrThresholdNotConverged, len(rows))
	}
	if i == len(rows)-1 {
		o.log().Warning(component, "highest tested threshold still matches manual count", map[string]interface{}{
			"threshold": rows[i].Threshold,
		})
		return rows[i].Threshold, nil
	}
	return rows[i+1].Threshold, nil
}
