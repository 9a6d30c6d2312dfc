package dynamics

import (
	"fmt"
	"math"
)

const (
	defaultCompressorThresholdDB = -20.0
	defaultCompressorRatio       = 4.0
	defaultCompressorKneeDB      = 6.0
	defaultCompressorAttackMs    = 10.0
	defaultCompressorReleaseMs   = 100.0

	minCompressorRatio     = 1.0
	maxCompressorRatio     = 100.0
	minCompressorAttackMs  = 0.01
	maxCompressorAttackMs  = 1000.0
	minCompressorReleaseMs = 1.0
	maxCompressorReleaseMs = 5000.0
	minCompressorKneeDB    = 0.0
	maxCompressorKneeDB    = 24.0

	// log2(10) / 20
	log2Of10Div20 = 0.166096404744
)

// Compressor is a mono peak compressor with a log2-domain soft knee.
//
// It carries no makeup gain: the binaural chain only ever attenuates.
// Not safe for concurrent use.
type Compressor struct {
	thresholdDB float64
	ratio       float64
	kneeDB      float64
	attackMs    float64
	releaseMs   float64
	sampleRate  float64

	peakLevel float64

	attackCoeff      float64
	releaseCoeff     float64
	thresholdLog2    float64
	kneeWidthLog2    float64
	invKneeWidthLog2 float64
}

// NewCompressor creates a compressor with default settings
// (-20 dB threshold, 4:1, 6 dB knee, 10 ms attack, 100 ms release).
func NewCompressor(sampleRate float64) (*Compressor, error) {
	if !validRate(sampleRate) {
		return nil, fmt.Errorf("compressor sample rate must be positive and finite: %f", sampleRate)
	}

	c := &Compressor{
		thresholdDB: defaultCompressorThresholdDB,
		ratio:       defaultCompressorRatio,
		kneeDB:      defaultCompressorKneeDB,
		attackMs:    defaultCompressorAttackMs,
		releaseMs:   defaultCompressorReleaseMs,
		sampleRate:  sampleRate,
	}
	c.updateCoefficients()

	return c, nil
}

// SetThreshold sets the threshold in dBFS.
func (c *Compressor) SetThreshold(dB float64) error {
	if math.IsNaN(dB) || math.IsInf(dB, 0) {
		return fmt.Errorf("compressor threshold must be finite: %f", dB)
	}
	c.thresholdDB = dB
	c.updateCoefficients()
	return nil
}

// SetRatio sets the compression ratio in [1, 100].
func (c *Compressor) SetRatio(ratio float64) error {
	if !inRange(ratio, minCompressorRatio, maxCompressorRatio) {
		return fmt.Errorf("compressor ratio must be in [%f, %f]: %f",
			minCompressorRatio, maxCompressorRatio, ratio)
	}
	c.ratio = ratio
	return nil
}

// SetKnee sets the soft-knee width in dB. 0 is a hard knee.
func (c *Compressor) SetKnee(kneeDB float64) error {
	if !inRange(kneeDB, minCompressorKneeDB, maxCompressorKneeDB) {
		return fmt.Errorf("compressor knee must be in [%f, %f]: %f",
			minCompressorKneeDB, maxCompressorKneeDB, kneeDB)
	}
	c.kneeDB = kneeDB
	c.updateCoefficients()
	return nil
}

// SetAttack sets the attack time in milliseconds.
func (c *Compressor) SetAttack(ms float64) error {
	if !inRange(ms, minCompressorAttackMs, maxCompressorAttackMs) {
		return fmt.Errorf("compressor attack must be in [%f, %f]: %f",
			minCompressorAttackMs, maxCompressorAttackMs, ms)
	}
	c.attackMs = ms
	c.updateTimeConstants()
	return nil
}

// SetRelease sets the release time in milliseconds.
func (c *Compressor) SetRelease(ms float64) error {
	if !inRange(ms, minCompressorReleaseMs, maxCompressorReleaseMs) {
		return fmt.Errorf("compressor release must be in [%f, %f]: %f",
			minCompressorReleaseMs, maxCompressorReleaseMs, ms)
	}
	c.releaseMs = ms
	c.updateTimeConstants()
	return nil
}

// Detect advances the envelope follower with a rectified level and returns
// the resulting gain multiplier.
func (c *Compressor) Detect(level float64) float64 {
	if level > c.peakLevel {
		c.peakLevel += (level - c.peakLevel) * c.attackCoeff
	} else {
		c.peakLevel = level + (c.peakLevel-level)*c.releaseCoeff
	}

	return c.Gain(c.peakLevel)
}

// Gain returns the static gain multiplier for a detector level.
func (c *Compressor) Gain(peakLevel float64) float64 {
	if peakLevel <= 0 {
		return 1
	}

	overshoot := math.Log2(peakLevel) - c.thresholdLog2

	if c.kneeDB <= 0 {
		if overshoot <= 0 {
			return 1
		}
		return math.Exp2(-overshoot * (1 - 1/c.ratio))
	}

	halfWidth := c.kneeWidthLog2 * 0.5
	var effective float64
	switch {
	case overshoot < -halfWidth:
		return 1
	case overshoot > halfWidth:
		effective = overshoot
	default:
		s := overshoot + halfWidth
		effective = s * s * 0.5 * c.invKneeWidthLog2
	}

	return math.Exp2(-effective * (1 - 1/c.ratio))
}

func (c *Compressor) updateCoefficients() {
	c.thresholdLog2 = c.thresholdDB * log2Of10Div20
	c.kneeWidthLog2 = c.kneeDB * log2Of10Div20
	if c.kneeDB > 0 {
		c.invKneeWidthLog2 = 1 / c.kneeWidthLog2
	} else {
		c.invKneeWidthLog2 = 0
	}
	c.updateTimeConstants()
}

func (c *Compressor) updateTimeConstants() {
	c.attackCoeff = 1 - math.Exp(-math.Ln2/(c.attackMs*0.001*c.sampleRate))
	c.releaseCoeff = math.Exp(-math.Ln2 / (c.releaseMs * 0.001 * c.sampleRate))
}

func validRate(sr float64) bool {
	return sr > 0 && !math.IsNaN(sr) && !math.IsInf(sr, 0)
}

func inRange(v, lo, hi float64) bool {
	return v >= lo && v <= hi && !math.IsNaN(v)
}
