// Package params holds the counting parameters and the channel roles that
// select which of them apply.
package params

import (
	"errors"
	"fmt"
)

// ErrInvalid is returned by Validate for out-of-range parameters.
var ErrInvalid = errors.New("invalid parameters")

// Channel identifies which image set and parameter pair a count runs against.
type Channel int

const (
	// ChannelTuning counts the composite reference image during optimization.
	ChannelTuning Channel = iota
	// ChannelProduction counts the batch folder with the optimized parameters.
	ChannelProduction
)

func (c Channel) String() string {
	switch c {
	case ChannelTuning:
		return "Optim"
	case ChannelProduction:
		return "Ch1"
	default:
		return "Unknown"
	}
}

// Parameters is the full counting configuration. It is a value type: the
// optimizer returns an updated copy instead of mutating the caller's record.
type Parameters struct {
	// Diameter is the expected object diameter in pixels used while tuning.
	Diameter int `yaml:"diameter"`
	// ParticleMin is the smallest object area kept, as a fraction of Diameter².
	ParticleMin  float64 `yaml:"particle_min"`
	UseWatershed bool    `yaml:"use_watershed"`
	// Threshold is the intensity cutoff used while tuning.
	Threshold float64 `yaml:"threshold"`

	// Optimized values applied to the production channel.
	Ch1Diameter  int     `yaml:"ch1_diameter"`
	Ch1Threshold float64 `yaml:"ch1_threshold"`

	ManualCount   int     `yaml:"-"`
	OtsuThreshold float64 `yaml:"-"`
}

// ChannelParams is the resolved parameter set for one channel.
type ChannelParams struct {
	Diameter     int
	Threshold    float64
	ParticleMin  float64
	UseWatershed bool
}

// Default returns the seed values the optimizer starts from.
func Default() Parameters {
	return Parameters{
		Diameter:     6,
		ParticleMin:  0.1,
		UseWatershed: true,
	}
}

// For resolves the diameter and threshold that apply to a channel.
func (p Parameters) For(c Channel) ChannelParams {
	cp := ChannelParams{
		ParticleMin:  p.ParticleMin,
		UseWatershed: p.UseWatershed,
	}
	switch c {
	case ChannelProduction:
		cp.Diameter = p.Ch1Diameter
		cp.Threshold = p.Ch1Threshold
	default:
		cp.Diameter = p.Diameter
		cp.Threshold = p.Threshold
	}
	return cp
}

// WithTuning returns a copy with the tuning diameter and threshold replaced.
func (p Parameters) WithTuning(diameter int, threshold float64) Parameters {
	p.Diameter = diameter
	p.Threshold = threshold
	return p
}

// WithProduction returns a copy with the production diameter and threshold replaced.
func (p Parameters) WithProduction(diameter int, threshold float64) Parameters {
	p.Ch1Diameter = diameter
	p.Ch1Threshold = threshold
	return p
}

// Validate checks the seed values supplied by the caller.
func (p Parameters) Validate() error {
	if p.Diameter < 1 {
		return fmt.Errorf("%w: diameter must be at least 1, got %d", ErrInvalid, p.Diameter)
	}
	if p.ParticleMin < 0 || p.ParticleMin > 1 {
		return fmt.Errorf("%w: particle_min must be within [0, 1], got %g", ErrInvalid, p.ParticleMin)
	}
	if p.Threshold < 0 {
		return fmt.Errorf("%w: threshold must not be negative, got %g", ErrInvalid, p.Threshold)
	}
	return nil
}

// ValidateFor checks that a channel has usable values, e.g. that the production
// channel has been given optimized parameters before a batch run.
func (p Parameters) ValidateFor(c Channel) error {
	cp := p.For(c)
	if cp.Diameter < 1 {
		return fmt.Errorf("%w: %s diameter must be at least 1, got %d", ErrInvalid, c, cp.Diameter)
	}
	if cp.Threshold < 0 {
		return fmt.Errorf("%w: %s threshold must not be negative, got %g", ErrInvalid, c, cp.Threshold)
	}
	return nil
}
