package hrtf

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/cwbudde/algo-binaural/dsp/filter/biquad"
)

// SynthConfig describes a spherical-head model.
type SynthConfig struct {
	SampleRate int
	IRLength   int
	Step       int     // measurement grid step in degrees
	HeadRadius float64 // meters
	SoundSpeed float64 // m/s
}

// DefaultSynthConfig returns a 48 kHz, 64-tap model on a 15 degree grid.
func DefaultSynthConfig() SynthConfig {
	return SynthConfig{
		SampleRate: 48000,
		IRLength:   64,
		Step:       15,
		HeadRadius: 0.0875,
		SoundSpeed: 343,
	}
}

var (
	leftEar  = r3.Vec{Y: 1}
	rightEar = r3.Vec{Y: -1}
)

// WoodworthDelay returns the arrival delay in seconds at an ear for a
// source in the given direction, relative to the head centre. cosTheta is
// the cosine of the angle between the source direction and the ear axis.
func WoodworthDelay(cosTheta, headRadius, soundSpeed float64) float64 {
	theta := math.Acos(clamp(cosTheta, -1, 1))
	if theta <= math.Pi/2 {
		return -headRadius * math.Cos(theta) / soundSpeed
	}
	return headRadius * (theta - math.Pi/2) / soundSpeed
}

// Synthesize builds an HRTF table from a spherical-head model: Woodworth
// onset delays, and for each ear a broadband shadow gain with a one-pole
// low-pass that deepens towards the contralateral side.
func Synthesize(cfg SynthConfig) (*Table, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	t := &Table{SampleRate: cfg.SampleRate, IRLength: cfg.IRLength}
	for _, el := range axis(-90, 90, cfg.Step, true) {
		for _, az := range axis(0, 360, cfg.Step, false) {
			d := Direction(az, el)
			cl := r3.Dot(d, leftEar)
			cr := r3.Dot(d, rightEar)

			dl := WoodworthDelay(cl, cfg.HeadRadius, cfg.SoundSpeed)
			dr := WoodworthDelay(cr, cfg.HeadRadius, cfg.SoundSpeed)
			base := math.Min(dl, dr)

			t.Entries = append(t.Entries, HRIR{
				Azimuth:    az,
				Elevation:  el,
				LeftDelay:  (dl - base) * float64(cfg.SampleRate),
				RightDelay: (dr - base) * float64(cfg.SampleRate),
				Left:       shadowIR(cl, cfg.IRLength),
				Right:      shadowIR(cr, cfg.IRLength),
			})
		}
	}
	return t, nil
}

func shadowIR(cosTheta float64, n int) []float64 {
	shadow := (1 - cosTheta) / 2
	gain := 1 - 0.5*shadow
	pole := 0.6 * shadow

	ir := make([]float64, n)
	v := gain * (1 - pole)
	for i := range ir {
		ir[i] = v
		v *= pole
	}
	return ir
}

// SynthesizeILD builds an ILD table for the spherical-head model. Near-field
// tables boost the ipsilateral ear as the source approaches; high-performance
// tables carry the far-field level difference at a single reference
// distance. Each ear gets a broadband gain followed by a high shelf.
func SynthesizeILD(kind Kind, cfg SynthConfig) (*ILDTable, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var distances []float64
	var earDB func(distance, cosTheta float64) (broadband, shelf float64)
	switch kind {
	case KindNearFieldILD:
		distances = []float64{0.1, 0.15, 0.2, 0.3, 0.5, 0.75, 1, 1.5, 2}
		earDB = func(distance, cosTheta float64) (float64, float64) {
			if distance >= 1 {
				return 0, 0
			}
			near := 6 * math.Log2(1/distance)
			return 0.5 * near * cosTheta, 0.5 * near * cosTheta
		}
	case KindHighPerformanceILD:
		distances = []float64{ReferenceDistance}
		earDB = func(_ float64, cosTheta float64) (float64, float64) {
			return 3 * cosTheta, 9 * math.Min(cosTheta, 0)
		}
	default:
		return nil, fmt.Errorf("%w: %s is not an ild kind", ErrKindMismatch, kind)
	}

	sr := float64(cfg.SampleRate)
	var entries []ILDEntry
	for _, dist := range distances {
		for _, az := range axis(0, 360, cfg.Step, false) {
			d := Direction(az, 0)
			ear := func(earAxis r3.Vec) []biquad.Coefficients {
				bb, sh := earDB(dist, r3.Dot(d, earAxis))
				return []biquad.Coefficients{
					biquad.Gain(bb),
					biquad.HighShelf(3000, sh, 0, sr),
				}
			}
			entries = append(entries, ILDEntry{
				Distance: dist,
				Azimuth:  az,
				Left:     ear(leftEar),
				Right:    ear(rightEar),
			})
		}
	}

	return NewILDTable(kind, cfg.SampleRate, 2, entries)
}

// ReferenceDistance is the distance in meters at which far-field tables
// are defined.
const ReferenceDistance = 1.95

func (cfg SynthConfig) validate() error {
	switch {
	case cfg.SampleRate <= 0:
		return fmt.Errorf("synth sample rate must be positive: %d", cfg.SampleRate)
	case cfg.IRLength <= 0 || cfg.IRLength > MaxIRLength:
		return fmt.Errorf("synth ir length must be in [1, %d]: %d", MaxIRLength, cfg.IRLength)
	case cfg.Step < MinStep || cfg.Step > MaxStep:
		return fmt.Errorf("%w: %d", ErrInvalidStep, cfg.Step)
	case cfg.HeadRadius <= 0 || cfg.SoundSpeed <= 0:
		return fmt.Errorf("synth head radius and sound speed must be positive: %v, %v",
			cfg.HeadRadius, cfg.SoundSpeed)
	}
	return nil
}
