package binaural

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-binaural/dsp/conv"
	"github.com/cwbudde/algo-binaural/dsp/delay"
	"github.com/cwbudde/algo-binaural/dsp/filter/biquad"
	"github.com/cwbudde/algo-binaural/hrtf"
)

const (
	// MinDistance is the closest a source is treated as being, in meters.
	MinDistance = 0.1

	// Sources beyond FarDistance are low-passed, down to FarMinCutoff.
	FarDistance  = 15.0
	farMaxCutoff = 20000.0
	FarMinCutoff = 500.0

	maxITDSeconds = 0.005
	weightEpsilon = 1e-12
)

// Settings are the per-source processing switches.
type Settings struct {
	Mode                Mode
	Interpolation       bool
	FarLPF              bool
	DistanceAttenuation bool
	NearFieldILD        bool
	HRTF                bool
}

// DefaultSettings enables every stage in HighQuality mode.
func DefaultSettings() Settings {
	return Settings{
		Mode:                HighQuality,
		Interpolation:       true,
		FarLPF:              true,
		DistanceAttenuation: true,
		NearFieldILD:        true,
		HRTF:                true,
	}
}

// Source renders one mono source to two ears. It caches filters between
// blocks and is not safe for concurrent use; every voice owns one.
type Source struct {
	core *Core

	// Bound tables; a change drops cached state.
	boundHRTF   *HRTF
	boundEpoch  uint64
	boundInterp bool

	convL, convR *conv.Switched
	kernL, kernR conv.Kernel
	weights      []hrtf.Weight
	lastWeights  []hrtf.Weight
	blendK       []*conv.Kernel
	blendW       []float64
	kernelsValid bool

	delayL, delayR *delay.Line
	lpfL, lpfR     *biquad.Section
	ildL, ildR     *biquad.Chain

	distGain float64
	dirGain  [2]float64

	ramp []float64
}

// NewSource allocates the per-source state for core.
func NewSource(core *Core) (*Source, error) {
	if core == nil {
		return nil, fmt.Errorf("binaural: nil core")
	}

	maxDelay := int(math.Ceil(maxITDSeconds * float64(core.sampleRate)))
	dl, err := delay.New(maxDelay)
	if err != nil {
		return nil, err
	}
	dr, err := delay.New(maxDelay)
	if err != nil {
		return nil, err
	}

	return &Source{
		core:     core,
		delayL:   dl,
		delayR:   dr,
		lpfL:     biquad.NewSection(biquad.Identity),
		lpfR:     biquad.NewSection(biquad.Identity),
		distGain: math.NaN(),
		dirGain:  [2]float64{1, 1},
		ramp:     make([]float64, core.blockSize),
	}, nil
}

// Core returns the core the source was built for.
func (s *Source) Core() *Core { return s.core }

// Reset clears all filter memories.
func (s *Source) Reset() {
	if s.convL != nil {
		s.convL.Reset()
		s.convR.Reset()
	}
	s.delayL.Reset()
	s.delayR.Reset()
	s.lpfL.Reset()
	s.lpfR.Reset()
	if s.ildL != nil {
		s.ildL.Reset()
		s.ildR.Reset()
	}
	s.kernelsValid = false
	s.distGain = math.NaN()
	s.dirGain = [2]float64{1, 1}
}

// Process renders in to left and right. len(in) must not exceed the core
// block size; left and right must hold at least len(in) samples.
func (s *Source) Process(in, left, right []float64, l *Listener, pose Pose, set Settings) error {
	n := len(in)
	if n == 0 {
		return nil
	}
	if n > s.core.blockSize {
		return fmt.Errorf("%w: %d > %d", ErrBlockTooLong, n, s.core.blockSize)
	}
	if len(left) < n || len(right) < n {
		return fmt.Errorf("binaural: output shorter than input: %d/%d < %d", len(left), len(right), n)
	}
	left, right = left[:n], right[:n]

	if err := s.bind(l, set); err != nil {
		return err
	}

	geo := Relative(pose, l.ScaleFactor)

	switch set.Mode {
	case HighQuality:
		if set.HRTF && l.HRTF != nil {
			if err := s.convolve(in, left, right, l, geo, set.Interpolation); err != nil {
				return err
			}
			s.applyITD(left, right, l, geo)
		} else {
			copy(left, in)
			copy(right, in)
		}
		if set.NearFieldILD && l.NearFieldILD != nil {
			s.applyILD(left, right, l.NearFieldILD.Lookup(math.Max(geo.Distance, MinDistance), geo.Azimuth))
		}
	case HighPerformance:
		copy(left, in)
		copy(right, in)
		if l.HRTF != nil {
			s.weights = l.HRTF.Grid.Weights(geo.Azimuth, geo.Elevation, set.Interpolation, s.weights)
		}
		s.applyITD(left, right, l, geo)
		if l.HighPerformanceILD != nil {
			s.applyILD(left, right, l.HighPerformanceILD.Lookup(hrtf.ReferenceDistance, geo.Azimuth))
		}
	default:
		copy(left, in)
		copy(right, in)
	}

	if set.FarLPF && set.Mode != None {
		s.applyFarLPF(left, right, geo.Distance)
	}
	if set.DistanceAttenuation {
		s.applyDistance(left, right, l, geo.Distance)
	}
	s.applyDirectionality(left, right, l, geo.Azimuth)

	return nil
}

func (s *Source) bind(l *Listener, set Settings) error {
	h := l.HRTF
	if h != nil && h.core != s.core {
		return ErrForeignTable
	}

	if h != s.boundHRTF {
		s.boundHRTF = h
		s.kernelsValid = false
		s.convL, s.convR = nil, nil
		if h != nil {
			var err error
			if s.convL, err = conv.NewSwitched(s.core.blockSize, h.Grid.IRLength); err != nil {
				return err
			}
			if s.convR, err = conv.NewSwitched(s.core.blockSize, h.Grid.IRLength); err != nil {
				return err
			}
		}
	}

	if l.Epoch != s.boundEpoch || set.Interpolation != s.boundInterp {
		s.boundEpoch = l.Epoch
		s.boundInterp = set.Interpolation
		s.kernelsValid = false
	}
	return nil
}

func (s *Source) convolve(in, left, right []float64, l *Listener, geo Geometry, interpolate bool) error {
	h := l.HRTF
	s.weights = h.Grid.Weights(geo.Azimuth, geo.Elevation, interpolate, s.weights)

	if !s.kernelsValid || !sameWeights(s.weights, s.lastWeights) {
		s.blendK = s.blendK[:0]
		s.blendW = s.blendW[:0]
		for _, w := range s.weights {
			s.blendK = append(s.blendK, h.Left[w.Index])
			s.blendW = append(s.blendW, w.Weight)
		}
		if err := conv.Blend(&s.kernL, s.blendK, s.blendW); err != nil {
			return err
		}
		for i, w := range s.weights {
			s.blendK[i] = h.Right[w.Index]
		}
		if err := conv.Blend(&s.kernR, s.blendK, s.blendW); err != nil {
			return err
		}
		s.lastWeights = append(s.lastWeights[:0], s.weights...)
		s.kernelsValid = true
	}

	if err := s.convL.ProcessTo(left, in, &s.kernL); err != nil {
		return err
	}
	return s.convR.ProcessTo(right, in, &s.kernR)
}

func sameWeights(a, b []hrtf.Weight) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Index != b[i].Index || math.Abs(a[i].Weight-b[i].Weight) > weightEpsilon {
			return false
		}
	}
	return true
}

// itd returns the per-ear onset delays in samples.
func (s *Source) itd(l *Listener, geo Geometry) (float64, float64) {
	if l.CustomITD {
		d := hrtf.Direction(geo.Azimuth, geo.Elevation)
		dl := hrtf.WoodworthDelay(d.Y, l.HeadRadius, l.SoundSpeed)
		dr := hrtf.WoodworthDelay(-d.Y, l.HeadRadius, l.SoundSpeed)
		base := math.Min(dl, dr)
		sr := float64(s.core.sampleRate)
		return (dl - base) * sr, (dr - base) * sr
	}
	if l.HRTF != nil {
		return l.HRTF.Grid.Delays(s.weights)
	}
	return 0, 0
}

func (s *Source) applyITD(left, right []float64, l *Listener, geo Geometry) {
	dl, dr := s.itd(l, geo)
	s.delayL.ProcessBlock(left, finiteOrZero(dl))
	s.delayR.ProcessBlock(right, finiteOrZero(dr))
}

func (s *Source) applyILD(left, right []float64, e *hrtf.ILDEntry) {
	s.ildL = ensureChain(s.ildL, len(e.Left))
	s.ildR = ensureChain(s.ildR, len(e.Right))
	s.ildL.SetCoefficients(e.Left)
	s.ildR.SetCoefficients(e.Right)
	s.ildL.ProcessBlock(left)
	s.ildR.ProcessBlock(right)
}

func ensureChain(c *biquad.Chain, sections int) *biquad.Chain {
	if c != nil && c.NumSections() == sections {
		return c
	}
	return biquad.NewChain(make([]biquad.Coefficients, sections))
}

// FarCutoff returns the far-distance low-pass cutoff for a distance in
// meters, or 0 when no filtering applies.
func FarCutoff(distance float64) float64 {
	if distance <= FarDistance {
		return 0
	}
	return math.Max(FarMinCutoff, farMaxCutoff*FarDistance/distance)
}

func (s *Source) applyFarLPF(left, right []float64, distance float64) {
	fc := FarCutoff(distance)
	c := biquad.Identity
	if fc > 0 {
		c = biquad.Lowpass(fc, 0, float64(s.core.sampleRate))
	}
	if c.IsIdentity() && s.lpfL.IsIdentity() {
		return
	}
	s.lpfL.SetCoefficients(c)
	s.lpfR.SetCoefficients(c)
	s.lpfL.ProcessBlock(left)
	s.lpfR.ProcessBlock(right)
}

// DistanceGainDB returns the level change for a distance in meters given
// an attenuation per doubling of distance. The reference distance is 1 m.
func DistanceGainDB(attenuationDB, distance float64) float64 {
	return attenuationDB * math.Log2(math.Max(distance, MinDistance))
}

func (s *Source) applyDistance(left, right []float64, l *Listener, distance float64) {
	g := dbToGain(DistanceGainDB(l.AnechoicAttenuationDB, distance))
	start := s.distGain
	if math.IsNaN(start) {
		start = g
	}
	s.distGain = g

	s.ramped(left, start, g)
	s.ramped(right, start, g)
}

// DirectionalityGainDB returns the hearing-aid attenuation for a source at
// the given azimuth: 0 dB in front, -extendDB straight behind.
func DirectionalityGainDB(extendDB, azimuthDeg float64) float64 {
	return -extendDB * (1 - math.Cos(azimuthDeg*math.Pi/180)) / 2
}

func (s *Source) applyDirectionality(left, right []float64, l *Listener, azimuth float64) {
	bufs := [2][]float64{left, right}
	for ear := Left; ear <= Right; ear++ {
		d := l.Directionality[ear]
		g := 1.0
		if d.Enabled {
			g = dbToGain(DirectionalityGainDB(d.ExtendDB, azimuth))
		}
		prev := s.dirGain[ear]
		s.dirGain[ear] = g
		if g == 1 && prev == 1 {
			continue
		}
		s.ramped(bufs[ear], prev, g)
	}
}

// ramped scales buf by a gain moving linearly from one block's value to
// the next.
func (s *Source) ramped(buf []float64, from, to float64) {
	if from == to {
		vecmath.ScaleBlock(buf, buf, to)
		return
	}
	ramp := s.ramp[:len(buf)]
	n := float64(len(ramp))
	for i := range ramp {
		ramp[i] = from + (to-from)*float64(i+1)/n
	}
	vecmath.MulBlockInPlace(buf, ramp)
}

func dbToGain(db float64) float64 {
	return math.Pow(10, db/20)
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
